package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/backoffice/internal/application/inventory"
	tradeapp "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/auth"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/event"
	"github.com/erp/backoffice/internal/infrastructure/lock"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/scheduler"
	"github.com/erp/backoffice/internal/infrastructure/strategy"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/erp/backoffice/internal/interfaces/http/handler"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	maxRequestBodyBytes = 1 << 20
	shutdownTimeout     = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, zap.String("service", cfg.App.Name))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting back-office",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry: traces and metrics share the collector settings
	otelProviders, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	meter := otelProviders.Meter()
	lifecycleMetrics, err := telemetry.NewLifecycleMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register lifecycle metrics", zap.Error(err))
	}

	// Database
	dbOpts := []persistence.DatabaseOption{
		persistence.WithZapLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithSlowQueryThreshold(cfg.Database.SlowQuery),
	}
	if otelProviders.Enabled() {
		dbTracing := telemetry.NewDBTracing(log)
		dbTracing.SlowOver = cfg.Database.SlowQuery
		dbOpts = append(dbOpts, persistence.WithTracing(dbTracing))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	uow := persistence.NewGormUnitOfWork(db.DB)
	strategies, err := strategy.NewStockRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to build stock strategies", zap.Error(err))
	}
	log.Info("Stock strategies bound", zap.Any("verticals", strategies.Bindings()))

	// Redis backs document locks and delivery keys when enabled; otherwise both stay in-process
	var (
		locker     tradeapp.DocumentLocker = lock.NewLocalDocumentLocker()
		deliveries shared.IdempotencyStore = cache.NewMemoryIdempotencyStore()
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = client.Close()
		}()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		locker = lock.NewRedisDocumentLocker(client, cfg.Documents.LockTTL, log)
		deliveries = cache.NewRedisIdempotencyStore(client, cache.DefaultKeyPrefix)
		log.Info("Using redis for document locks and delivery keys", zap.String("addr", cfg.Redis.Addr()))
	}

	// Event bus: customer notices in-process, every event to RabbitMQ when enabled
	bus := event.NewInMemoryEventBus(log)
	notifications := tradeapp.NewDocumentNotificationHandler(tradeapp.NewLogNotifier(log), log)
	bus.Subscribe(event.NewDedupHandler("notifications", notifications, deliveries, cfg.Messaging.DedupTTL, log))
	if cfg.Messaging.Enabled {
		forwarder, err := event.DialAMQPForwarder(cfg.Messaging.URL, cfg.Messaging.Exchange, log)
		if err != nil {
			log.Fatal("Failed to connect to message broker", zap.Error(err))
		}
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Warn("Error closing message broker connection", zap.Error(err))
			}
		}()
		bus.Subscribe(forwarder)
		log.Info("Forwarding events to message broker", zap.String("exchange", cfg.Messaging.Exchange))
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Services
	quotes := tradeapp.NewQuoteService(uow, locker, log)
	quotes.SetEventPublisher(bus)
	quotes.SetQuoteValidity(cfg.Documents.QuoteValidity)
	quotes.SetMetrics(lifecycleMetrics)

	orders := tradeapp.NewOrderService(uow, locker, strategies, log)
	orders.SetEventPublisher(bus)
	orders.SetReservationTTL(cfg.StockReservation.DefaultTTL)
	orders.SetPaymentTerm(cfg.Documents.InvoicePaymentTerm)
	orders.SetMetrics(lifecycleMetrics)

	invoices := tradeapp.NewInvoiceService(uow, locker, log)
	invoices.SetEventPublisher(bus)
	invoices.SetPaymentTerm(cfg.Documents.InvoicePaymentTerm)
	invoices.SetMetrics(lifecycleMetrics)

	stockScope := tradeapp.StockScope(uow)
	stock := inventoryapp.NewStockService(stockScope, strategies, log)
	stock.SetEventPublisher(bus)
	stock.SetReservationTTL(cfg.StockReservation.DefaultTTL)

	// Reservation sweep
	expiration := inventoryapp.NewReservationExpirationService(stockScope, bus, cfg.StockReservation.SweepBatchSize, log)
	sweepCfg := scheduler.DefaultReservationSweepConfig()
	sweepCfg.Enabled = cfg.StockReservation.SweepEnabled
	sweepCfg.Interval = cfg.StockReservation.SweepInterval
	sweeper := scheduler.NewReservationSweepScheduler(expiration, log, sweepCfg)
	sweeper.SetMetrics(lifecycleMetrics)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start reservation sweep", zap.Error(err))
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		Logger:       log,
		Verifier:     auth.NewJWTService(cfg.JWT),
		ServiceName:  cfg.Telemetry.ServiceName,
		Tracing:      otelProviders.Enabled(),
		Meter:        meter,
		MaxBodyBytes: maxRequestBodyBytes,
		HealthCheck:  db.Ping,
	})
	router.NewRouter(engine).
		Register(handler.NewQuoteHandler(quotes)).
		Register(handler.NewOrderHandler(orders)).
		Register(handler.NewInvoiceHandler(invoices)).
		Register(handler.NewStockHandler(stock)).
		Register(handler.NewMaintenanceHandler(quotes, invoices, sweeper)).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Warn("Reservation sweep did not stop cleanly", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
