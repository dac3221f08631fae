package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockLedger writes the stock counter of a product together with the
// append-only movement log that explains it. A ledger is bound to the
// repositories of one unit of work.
type StockLedger struct {
	repos   TransactionalRepositories
	logger  *zap.Logger
	pending []shared.DomainEvent
}

// NewStockLedger creates a ledger over the given repositories
func NewStockLedger(repos TransactionalRepositories, logger *zap.Logger) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{repos: repos, logger: logger}
}

// Record appends a movement without touching the stock counter.
// Callers pair it with a counter change they performed themselves, or use Adjust.
func (l *StockLedger) Record(
	ctx context.Context,
	product *catalog.Product,
	delta int64,
	reason inventory.MovementReason,
	reference string,
) (*inventory.StockMovement, error) {
	movement, err := inventory.NewStockMovement(product.TenantID, product.ID, delta, reason, reference)
	if err != nil {
		return nil, err
	}
	if err := l.repos.MovementRepo().Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("append stock movement: %w", err)
	}
	return movement, nil
}

// CurrentLevel returns the stock counter of a product
func (l *StockLedger) CurrentLevel(ctx context.Context, productID uuid.UUID) (int64, error) {
	product, err := l.repos.ProductRepo().FindByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// Adjust applies delta to the stock counter, then appends the matching movement.
// A decrease that would take stock below zero fails with InsufficientStockError
// and changes nothing.
func (l *StockLedger) Adjust(
	ctx context.Context,
	product *catalog.Product,
	delta int64,
	reason inventory.MovementReason,
	reference string,
) (*inventory.StockMovement, error) {
	if delta == 0 {
		return nil, shared.NewValidationError("quantity", "Adjustment quantity cannot be zero")
	}
	if !reason.IsValid() {
		return nil, shared.NewValidationError("reason", fmt.Sprintf("Unknown movement reason '%s'", reason))
	}

	products := l.repos.ProductRepo()
	var (
		level int64
		err   error
	)
	if delta < 0 {
		level, err = products.DecrementIfAvailable(ctx, product.ID, -delta)
		if errors.Is(err, shared.ErrInsufficientStock) {
			return nil, l.shortage(ctx, product, -delta)
		}
	} else {
		level, err = products.AdjustStock(ctx, product.ID, delta)
	}
	if err != nil {
		return nil, fmt.Errorf("adjust stock of product %s: %w", product.ID, err)
	}
	product.Stock = level

	movement, err := l.Record(ctx, product, delta, reason, reference)
	if err != nil {
		return nil, err
	}

	l.pending = append(l.pending, inventory.NewStockAdjustedEvent(product.TenantID, product.ID, delta, level, reason, reference))
	l.logger.Debug("Stock adjusted",
		zap.String("product_id", product.ID.String()),
		zap.Int64("delta", delta),
		zap.Int64("stock", level),
		zap.String("reason", reason.String()),
		zap.String("reference", reference),
	)
	return movement, nil
}

// Movements returns the audit trail of a product, oldest first
func (l *StockLedger) Movements(ctx context.Context, productID uuid.UUID) ([]inventory.StockMovement, error) {
	return l.repos.MovementRepo().FindByProduct(ctx, productID)
}

// ReconcileReport compares the stock counter with the ledger
type ReconcileReport struct {
	ProductID uuid.UUID `json:"product_id"`
	Counter   int64     `json:"counter"`
	LedgerSum int64     `json:"ledger_sum"`
	Expected  int64     `json:"expected"`
	Drift     int64     `json:"drift"`
}

// InSync reports whether counter and ledger agree
func (r ReconcileReport) InSync() bool {
	return r.Drift == 0
}

// Reconcile checks stock == initial + sum(movements) for a product
func (l *StockLedger) Reconcile(ctx context.Context, productID uuid.UUID, initial int64) (*ReconcileReport, error) {
	counter, err := l.CurrentLevel(ctx, productID)
	if err != nil {
		return nil, err
	}
	sum, err := l.repos.MovementRepo().SumByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	expected := initial + sum
	return &ReconcileReport{
		ProductID: productID,
		Counter:   counter,
		LedgerSum: sum,
		Expected:  expected,
		Drift:     counter - expected,
	}, nil
}

// PendingEvents returns the events raised since the last call and forgets them.
// They are meant to be published after the unit of work commits.
func (l *StockLedger) PendingEvents() []shared.DomainEvent {
	events := l.pending
	l.pending = nil
	return events
}

func (l *StockLedger) shortage(ctx context.Context, product *catalog.Product, requested int64) error {
	available := product.Stock
	if fresh, err := l.repos.ProductRepo().FindByID(ctx, product.ID); err == nil {
		available = fresh.Stock
		product.Stock = fresh.Stock
	}
	return &shared.InsufficientStockError{Shortages: []shared.StockShortage{{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   requested,
		Available:   available,
	}}}
}
