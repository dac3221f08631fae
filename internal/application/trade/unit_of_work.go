package trade

import (
	"context"

	inventoryapp "github.com/erp/backoffice/internal/application/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
)

// UnitOfWork runs fn inside one database transaction spanning the document
// and stock repositories. The transaction commits when fn returns nil.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories are the repositories bound to one transaction
type Repositories interface {
	inventoryapp.TransactionalRepositories
	QuoteRepo() trade.QuoteRepository
	OrderRepo() trade.OrderRepository
	InvoiceRepo() trade.InvoiceRepository
	SequenceRepo() trade.DocumentSequence
}

// StockScope exposes a UnitOfWork as the stock transaction scope so that
// inventory services share the same transactions as the document services
func StockScope(uow UnitOfWork) inventoryapp.TransactionScope {
	return stockScope{uow: uow}
}

type stockScope struct {
	uow UnitOfWork
}

func (s stockScope) Execute(ctx context.Context, fn func(repos inventoryapp.TransactionalRepositories) error) error {
	return s.uow.Execute(ctx, func(repos Repositories) error {
		return fn(repos)
	})
}
