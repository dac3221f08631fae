package persistence

import (
	"context"

	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
	"gorm.io/gorm"
)

// GormUnitOfWork implements the document unit of work using GORM transactions.
// Stock counters, ledger entries, reservations and documents written through
// one Execute call commit or roll back together.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos apptrade.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepositories{tx: tx})
	})
}

// Repositories returns repositories bound to the plain connection, for reads outside a transaction.
func (u *GormUnitOfWork) Repositories() apptrade.Repositories {
	return &gormRepositories{tx: u.db}
}

// gormRepositories provides access to all repositories within a transaction.
type gormRepositories struct {
	tx *gorm.DB
}

// ProductRepo returns the product repository scoped to the current transaction.
func (r *gormRepositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.tx)
}

// MovementRepo returns the stock movement repository scoped to the current transaction.
func (r *gormRepositories) MovementRepo() inventory.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

// ReservationRepo returns the stock reservation repository scoped to the current transaction.
func (r *gormRepositories) ReservationRepo() inventory.StockReservationRepository {
	return NewGormStockReservationRepository(r.tx)
}

// QuoteRepo returns the quote repository scoped to the current transaction.
func (r *gormRepositories) QuoteRepo() trade.QuoteRepository {
	return NewGormQuoteRepository(r.tx)
}

// OrderRepo returns the order repository scoped to the current transaction.
func (r *gormRepositories) OrderRepo() trade.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormRepositories) InvoiceRepo() trade.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// SequenceRepo returns the document sequence scoped to the current transaction.
func (r *gormRepositories) SequenceRepo() trade.DocumentSequence {
	return NewGormDocumentSequence(r.tx)
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ apptrade.UnitOfWork = (*GormUnitOfWork)(nil)

// Ensure gormRepositories implements Repositories
var _ apptrade.Repositories = (*gormRepositories)(nil)
