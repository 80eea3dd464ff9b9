package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	automationapp "github.com/opsflow/backend/internal/application/automation"
	"github.com/opsflow/backend/internal/application/integration"
	inventoryapp "github.com/opsflow/backend/internal/application/inventory"
	notificationapp "github.com/opsflow/backend/internal/application/notification"
	salesapp "github.com/opsflow/backend/internal/application/sales"
	workflowapp "github.com/opsflow/backend/internal/application/workflow"
	"github.com/opsflow/backend/internal/domain/shared"
	"github.com/opsflow/backend/internal/infrastructure/auth"
	"github.com/opsflow/backend/internal/infrastructure/cache"
	"github.com/opsflow/backend/internal/infrastructure/config"
	"github.com/opsflow/backend/internal/infrastructure/event"
	"github.com/opsflow/backend/internal/infrastructure/logger"
	"github.com/opsflow/backend/internal/infrastructure/persistence"
	"github.com/opsflow/backend/internal/infrastructure/telemetry"
	"github.com/opsflow/backend/internal/infrastructure/webhook"
	"github.com/opsflow/backend/internal/interfaces/http/handler"
	"github.com/opsflow/backend/internal/interfaces/http/middleware"
	"github.com/opsflow/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting OpsFlow engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	gormLogLevel := gormlogger.Silent
	if cfg.App.Env != "production" {
		gormLogLevel = gormlogger.Warn
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	stepTaskRepo := persistence.NewGormStepTaskRepository(db.DB)
	taskRepo := persistence.NewGormTaskRepository(db.DB)
	assignmentRepo := persistence.NewGormAssignmentRepository(db.DB)
	taskEventRepo := persistence.NewGormTaskEventRepository(db.DB)
	inventoryRepo := persistence.NewGormInventoryRepository(db.DB)
	inventoryTxRepo := persistence.NewGormInventoryTransactionRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	userRepo := persistence.NewGormUserRepository(db.DB)
	roleRepo := persistence.NewGormRoleRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)

	// Event bus
	bus := event.NewInMemoryEventBus(log)

	// Webhook idempotency store: Redis when configured so multiple
	// instances share the sent set, in-process otherwise.
	var sentStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisStore.Close()
		sentStore = redisStore
	} else {
		memStore := cache.NewInMemoryIdempotencyStore()
		defer memStore.Close()
		sentStore = memStore
	}

	// Application services
	orderService := workflowapp.NewOrderService(
		persistence.NewGormWorkflowScope(db.DB), orderRepo, stepTaskRepo, log)
	taskService := automationapp.NewTaskService(
		persistence.NewGormAutomationScope(db.DB),
		taskRepo, assignmentRepo, taskEventRepo, userRepo, roleRepo, auditRepo, log)
	inventoryService := inventoryapp.NewService(
		persistence.NewGormInventoryScope(db.DB), inventoryRepo, inventoryTxRepo, log)
	salesService := salesapp.NewService(
		persistence.NewGormSalesScope(db.DB), saleRepo, log)
	notificationService := notificationapp.NewService(notificationRepo)

	orderService.SetEventPublisher(bus)
	taskService.SetEventPublisher(bus)
	inventoryService.SetEventPublisher(bus)
	salesService.SetEventPublisher(bus)

	// Cross-engine wiring. The order engine drives the automation engine
	// through the completion hook and vice versa through the step engine.
	orderService.SetStepCompletionHook(taskService)
	taskService.SetStepEngine(orderService)
	inventoryService.SetRestockTaskManager(taskService)
	salesService.SetStockLevelWatcher(inventoryService)

	commissionThreshold, err := decimal.NewFromString(cfg.Sales.CommissionThreshold)
	if err != nil {
		log.Warn("Invalid commission threshold, using 0",
			zap.String("value", cfg.Sales.CommissionThreshold))
		commissionThreshold = decimal.Zero
	}
	salesService.SetCommissionPolicy(commissionThreshold, cfg.Sales.ExcludedProducts)

	// Event subscribers
	orderTrigger := automationapp.NewOrderTrigger(taskService, orderRepo, bus, log)
	bus.Subscribe(orderTrigger, orderTrigger.EventTypes()...)

	dispatcher := notificationapp.NewDispatcher(
		notificationRepo, userRepo, roleRepo, taskRepo, assignmentRepo, orderRepo, log)
	bus.Subscribe(dispatcher, dispatcher.EventTypes()...)

	if cfg.Webhook.URL != "" {
		emitter := webhook.NewEmitter(cfg.Webhook.URL, cfg.Webhook.Timeout, sentStore, log)
		forwarder := integration.NewForwarder(emitter, cfg.App.Env, cfg.App.Name, log)
		bus.Subscribe(forwarder, forwarder.EventTypes()...)
		log.Info("Webhook forwarding enabled", zap.String("url", cfg.Webhook.URL))
	}

	if cfg.Telemetry.Enabled {
		engineMetrics, err := telemetry.NewEngineMetrics(meterProvider.Meter(telemetry.TracerName))
		if err != nil {
			log.Fatal("Failed to register engine metrics", zap.Error(err))
		}
		recorder := telemetry.NewEventRecorder(engineMetrics)
		bus.Subscribe(recorder, recorder.EventTypes()...)
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	verifier := auth.NewTokenVerifier(cfg.JWT)
	authConfig := middleware.DefaultAuthConfig(verifier)
	authConfig.AllowHeaderFallback = cfg.App.Env != "production"

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.CORSWithConfig(corsConfig),
	)
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(middleware.AuthMiddleware(authConfig))

	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(db.DB))
	r.Register(handler.NewOrderHandler(orderService))
	r.Register(handler.NewTaskHandler(taskService))
	r.Register(handler.NewInventoryHandler(inventoryService))
	r.Register(handler.NewSalesHandler(salesService))
	r.Register(handler.NewNotificationHandler(notificationService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
