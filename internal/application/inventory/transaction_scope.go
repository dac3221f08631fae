package inventory

import (
	"context"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
)

// TransactionScope provides transactional access to the stock repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the stock repositories bound to one transaction.
//
// The product counter and the ledger must always be written through the same
// TransactionalRepositories so that stock == initial + sum(movements) holds at commit.
type TransactionalRepositories interface {
	// ProductRepo returns the product repository scoped to the current transaction
	ProductRepo() catalog.ProductRepository
	// MovementRepo returns the append-only stock movement repository
	MovementRepo() inventory.StockMovementRepository
	// ReservationRepo returns the stock reservation repository
	ReservationRepo() inventory.StockReservationRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// Useful for read paths and for tests where rollback is irrelevant.
type NoOpTransactionScope struct {
	productRepo     catalog.ProductRepository
	movementRepo    inventory.StockMovementRepository
	reservationRepo inventory.StockReservationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	productRepo catalog.ProductRepository,
	movementRepo inventory.StockMovementRepository,
	reservationRepo inventory.StockReservationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		productRepo:     productRepo,
		movementRepo:    movementRepo,
		reservationRepo: reservationRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ProductRepo returns the product repository.
func (s *NoOpTransactionScope) ProductRepo() catalog.ProductRepository {
	return s.productRepo
}

// MovementRepo returns the stock movement repository.
func (s *NoOpTransactionScope) MovementRepo() inventory.StockMovementRepository {
	return s.movementRepo
}

// ReservationRepo returns the stock reservation repository.
func (s *NoOpTransactionScope) ReservationRepo() inventory.StockReservationRepository {
	return s.reservationRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
