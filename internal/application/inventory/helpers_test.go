package inventory

import (
	"context"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/tests/testutil"
)

// memScope runs units of work against a MemoryStore, rolling back on error
type memScope struct {
	store *testutil.MemoryStore
}

func newMemScope() memScope {
	return memScope{store: testutil.NewMemoryStore()}
}

func (m memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return m.store.Atomically(func() error { return fn(m) })
}

func (m memScope) ProductRepo() catalog.ProductRepository {
	return m.store.Products()
}

func (m memScope) MovementRepo() inventory.StockMovementRepository {
	return m.store.Movements()
}

func (m memScope) ReservationRepo() inventory.StockReservationRepository {
	return m.store.Reservations()
}

var _ TransactionScope = memScope{}
