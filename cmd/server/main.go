package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/erp/stockledger/internal/interfaces/http/handler"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}
	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterCfg := telCfg
	meterCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, meterCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		dbTracing.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
		if cfg.Database.Driver == "sqlite" {
			dbTracing.DBSystem = "sqlite"
		}
		if err := telemetry.NewDBTracingPlugin(dbTracing, log).RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Repositories and transaction scope
	repos := persistence.NewGormRepositories(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB,
		persistence.WithLockTimeout(cfg.Ledger.LockTimeout),
		persistence.WithOperationTimeout(cfg.Ledger.OperationTimeout),
		persistence.WithScopeLogger(log),
	)

	strategy, err := inventory.NewAllocationStrategy(
		inventory.AllocationStrategyType(cfg.Ledger.AllocationStrategy),
		cfg.Ledger.NearExpiryHorizon,
	)
	if err != nil {
		log.Fatal("Invalid allocation strategy", zap.Error(err))
	}

	// Events: in-process bus, optionally forwarded to Kafka
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.Kafka.Enabled {
		kafkaPublisher := event.NewKafkaStockEventPublisher(
			event.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout), log)
		eventBus.Subscribe(kafkaPublisher)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		log.Info("Forwarding stock events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer shutdown(log, "event bus", eventBus.Stop)

	reorderCache, err := cache.NewReorderCache(cfg.Redis.Enabled, cache.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Ledger.ReorderCacheTTL, cache.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize reorder cache", zap.Error(err))
	}
	defer func() {
		_ = reorderCache.Close()
	}()

	// Application services
	alertLedger := appinv.NewAlertLedger(repos, cfg.Ledger.SafetyFloor, cfg.Ledger.AlertCooldown, log)
	alertLedger.SetEventPublisher(eventBus)

	reorderService := appinv.NewReorderService(scope, repos,
		persistence.NewGormSalesSampleReader(db.DB),
		inventory.NewReorderCalculator(cfg.Ledger.ReorderPolicy()),
		cfg.Ledger.SalesWindow, log)
	reorderService.SetAlertLedger(alertLedger)
	reorderService.SetCache(reorderCache)

	stockService := appinv.NewStockService(scope, repos, strategy, log)
	stockService.SetReorderService(reorderService)
	stockService.SetEventPublisher(eventBus)

	locationService := appinv.NewLocationService(repos, log)

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	if meterCfg.Enabled {
		ledgerMetrics, err := telemetry.NewLedgerMetrics(meter, telemetry.NewGormLedgerStatsProvider(db.DB), log)
		if err != nil {
			log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
		}
		stockService.SetMetrics(ledgerMetrics)
		alertLedger.SetMetrics(ledgerMetrics)
		ledgerMetrics.StartPeriodicCollection(rootCtx, cfg.Telemetry.MetricsInterval)
		defer ledgerMetrics.Stop()
	} else {
		meter = nil
	}

	// Maintenance jobs
	var jobs handler.JobRunner
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.Config{JobTimeout: cfg.Scheduler.JobTimeout}, log)
		if err := sched.Register(scheduler.NewAlertRetractionJob(alertLedger, log), cfg.Scheduler.AlertRetractInterval); err != nil {
			log.Fatal("Failed to register job", zap.Error(err))
		}
		if cfg.Scheduler.ExpiryWriteOffEnabled {
			job := scheduler.NewExpiryWriteOffJob(persistence.NewGormLocationCellRepository(db.DB), stockService, log)
			if err := sched.Register(job, cfg.Scheduler.ExpiryWriteOffInterval); err != nil {
				log.Fatal("Failed to register job", zap.Error(err))
			}
		}
		if err := sched.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer shutdown(log, "scheduler", sched.Stop)
		jobs = sched
	}

	// HTTP
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine, err := router.NewEngine(router.EngineConfig{
		Logger: log,
		CORS:   cors,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Meter:          meter,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.WriteTimeout,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	retryAfter := int(math.Ceil(cfg.HTTP.BusyRetryAfter.Seconds()))
	stockHandler := handler.NewStockHandler(stockService, reorderService)
	stockHandler.RetryAfter = retryAfter
	locationHandler := handler.NewLocationHandler(locationService)
	locationHandler.RetryAfter = retryAfter
	alertHandler := handler.NewAlertHandler(alertLedger)
	alertHandler.RetryAfter = retryAfter
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db, jobs)

	systemHandler.RegisterProbes(engine)
	router.Mount(engine, stockHandler, locationHandler, alertHandler, systemHandler)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// shutdown runs a component's shutdown with a fresh bounded context, since
// the root context is already cancelled by then.
func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
