package inventory

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StrategyResolver picks the stock strategy of a business vertical
type StrategyResolver interface {
	Resolve(verticalTag string) strategy.StockStrategy
}

// StockService exposes stock queries and manual stock corrections
type StockService struct {
	scope          TransactionScope
	strategies     StrategyResolver
	eventPublisher shared.EventPublisher
	reservationTTL time.Duration
	logger         *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(scope TransactionScope, strategies StrategyResolver, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{
		scope:          scope,
		strategies:     strategies,
		reservationTTL: inventory.DefaultReservationTTL,
		logger:         logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetReservationTTL sets the hold applied to new reservations
func (s *StockService) SetReservationTTL(ttl time.Duration) {
	if ttl > 0 {
		s.reservationTTL = ttl
	}
}

// StockLevel returns the stock position of a product
func (s *StockService) StockLevel(ctx context.Context, tenantID, productID uuid.UUID) (*StockLevelResponse, error) {
	var resp StockLevelResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		product, err := findTenantProduct(ctx, repos, tenantID, productID)
		if err != nil {
			return err
		}
		st := s.strategies.Resolve(product.VerticalTag)
		resp = toStockLevelResponse(product, st.Name(), st.StockLevel(product))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Movements returns the ledger of a product, oldest first
func (s *StockService) Movements(ctx context.Context, tenantID, productID uuid.UUID) ([]MovementResponse, error) {
	var out []MovementResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := findTenantProduct(ctx, repos, tenantID, productID); err != nil {
			return err
		}
		movements, err := NewStockLedger(repos, s.logger).Movements(ctx, productID)
		if err != nil {
			return err
		}
		out = make([]MovementResponse, 0, len(movements))
		for _, m := range movements {
			out = append(out, toMovementResponse(m))
		}
		return nil
	})
	return out, err
}

// Reconcile compares a product's counter with its ledger
func (s *StockService) Reconcile(ctx context.Context, tenantID, productID uuid.UUID, initial int64) (*ReconcileReport, error) {
	var report *ReconcileReport
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := findTenantProduct(ctx, repos, tenantID, productID); err != nil {
			return err
		}
		var err error
		report, err = NewStockLedger(repos, s.logger).Reconcile(ctx, productID, initial)
		return err
	})
	return report, err
}

// ReservationsForOrder lists every reservation held for an order number
func (s *StockService) ReservationsForOrder(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]ReservationResponse, error) {
	var out []ReservationResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		reservations, err := NewReservationStore(repos, s.logger).ForOrder(ctx, tenantID, orderRef)
		if err != nil {
			return err
		}
		out = make([]ReservationResponse, 0, len(reservations))
		for _, r := range reservations {
			out = append(out, ToReservationResponse(r))
		}
		return nil
	})
	return out, err
}

// Adjust applies a manual correction through the ledger
func (s *StockService) Adjust(ctx context.Context, tenantID uuid.UUID, req AdjustStockRequest) (*MovementResponse, error) {
	reason := inventory.MovementReason(req.Reason)
	if reason == "" {
		reason = inventory.ReasonAdjustment
	}

	var (
		movement *inventory.StockMovement
		events   []shared.DomainEvent
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		product, err := findTenantProduct(ctx, repos, tenantID, req.ProductID)
		if err != nil {
			return err
		}
		ledger := NewStockLedger(repos, s.logger)
		movement, err = ledger.Adjust(ctx, product, req.Delta, reason, req.Reference)
		if err != nil {
			return err
		}
		events = ledger.PendingEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	resp := toMovementResponse(*movement)
	return &resp, nil
}

// ReturnStock puts units back into stock through the product's strategy
func (s *StockService) ReturnStock(ctx context.Context, tenantID uuid.UUID, req ReturnStockRequest) error {
	reason := inventory.MovementReason(req.Reason)
	if reason == "" {
		reason = inventory.ReasonReturn
	}

	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		product, err := findTenantProduct(ctx, repos, tenantID, req.ProductID)
		if err != nil {
			return err
		}
		book := NewStockBook(repos, s.reservationTTL, s.logger)
		st := s.strategies.Resolve(product.VerticalTag)
		if err := st.IncrementStock(ctx, book, product, req.Quantity, reason, req.Reference); err != nil {
			return err
		}
		events = book.PendingEvents()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events)
	return nil
}

func (s *StockService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish stock events", zap.Error(err))
	}
}

func findTenantProduct(ctx context.Context, repos TransactionalRepositories, tenantID, productID uuid.UUID) (*catalog.Product, error) {
	product, err := repos.ProductRepo().FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.OwnedBy(tenantID) {
		return nil, shared.NewNotFoundError("product", productID)
	}
	return product, nil
}
