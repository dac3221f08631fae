package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appinventory "github.com/erp/backoffice/internal/application/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress rejects a RunOnce that overlaps a running sweep
	ErrSweepInProgress = fmt.Errorf("reservation sweep already in progress: %w", shared.ErrConcurrencyConflict)
)

// ReservationSweeper expires reservations whose hold ran out
type ReservationSweeper interface {
	ExpireOverdue(ctx context.Context) (*appinventory.ExpiredReservationStats, error)
}

// ReservationSweepConfig holds configuration for the reservation sweep
type ReservationSweepConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between two sweeps
	Interval time.Duration

	// RunTimeout bounds a single sweep
	RunTimeout time.Duration

	// RunOnStart sweeps immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultReservationSweepConfig returns default configuration
func DefaultReservationSweepConfig() ReservationSweepConfig {
	return ReservationSweepConfig{
		Enabled:    true,
		Interval:   5 * time.Minute,
		RunTimeout: 2 * time.Minute,
		RunOnStart: true,
	}
}

// Validate checks the configuration
func (c ReservationSweepConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: run timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// ReservationSweepScheduler periodically returns the stock of expired
// reservations. It is the only background actor of the service.
type ReservationSweepScheduler struct {
	sweeper ReservationSweeper
	metrics *telemetry.LifecycleMetrics
	logger  *zap.Logger
	config  ReservationSweepConfig

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  atomic.Bool
}

// NewReservationSweepScheduler creates a new reservation sweep scheduler
func NewReservationSweepScheduler(
	sweeper ReservationSweeper,
	logger *zap.Logger,
	config ReservationSweepConfig,
) *ReservationSweepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationSweepScheduler{
		sweeper: sweeper,
		logger:  logger,
		config:  config,
	}
}

// SetMetrics records sweep outcomes on m
func (s *ReservationSweepScheduler) SetMetrics(m *telemetry.LifecycleMetrics) {
	s.metrics = m
}

// Start starts the sweep loop
func (s *ReservationSweepScheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Reservation sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Reservation sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep or ctx
func (s *ReservationSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reservation sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reservation sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *ReservationSweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *ReservationSweepScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reservation sweep loop stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReservationSweepScheduler) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		s.logger.Error("Reservation sweep failed", zap.Error(err))
	}
}

// RunOnce performs one sweep under the configured timeout. Overlapping
// calls return ErrSweepInProgress.
func (s *ReservationSweepScheduler) RunOnce(ctx context.Context) (*appinventory.ExpiredReservationStats, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	stats, err := s.sweeper.ExpireOverdue(ctx)
	elapsed := time.Since(started)
	if err != nil {
		return stats, err
	}

	s.metrics.RecordSweep(ctx, stats.SuccessExpired, stats.Failed, elapsed)
	if stats.TotalExpired > 0 {
		s.logger.Info("Reservation sweep completed",
			zap.Int("total", stats.TotalExpired),
			zap.Int("expired", stats.SuccessExpired),
			zap.Int("conflicts", stats.Conflicts),
			zap.Int("failed", stats.Failed),
			zap.Duration("duration", elapsed),
		)
	}
	return stats, nil
}
