package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arflow/backend/internal/application/dunning"
	syncapp "github.com/arflow/backend/internal/application/sync"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/infrastructure/cache"
	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/erp"
	"github.com/arflow/backend/internal/infrastructure/logger"
	"github.com/arflow/backend/internal/infrastructure/mail"
	"github.com/arflow/backend/internal/infrastructure/persistence"
	"github.com/arflow/backend/internal/infrastructure/printing"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/arflow/backend/internal/interfaces/http/handler"
	"github.com/arflow/backend/internal/interfaces/http/middleware"
	"github.com/arflow/backend/internal/interfaces/http/router"
)

// version is set at build time via -ldflags.
var version = "dev"

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
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ArFlow Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry tracing and metrics
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	dunningMetrics := telemetry.NopDunningMetrics(log)
	if meterProvider.IsEnabled() {
		dunningMetrics, err = telemetry.NewDunningMetrics(meterProvider.Meter(cfg.App.Name), log)
		if err != nil {
			log.Fatal("Failed to create metrics instruments", zap.Error(err))
		}
	}

	// Initialize database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	dbOpts := []persistence.Option{persistence.WithLogger(gormLog)}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithTracing())
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Initialize Redis for the run lock and send counters
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis client", zap.Error(err))
		}
	}()
	runLock := cache.NewRedisRunLock(redisClient, uuid.NewString())
	sendCounter := cache.NewRedisSendCounter(redisClient)

	// Initialize repositories
	invoiceRepo := persistence.NewGormCachedInvoiceRepository(db.DB)
	noteRepo := persistence.NewGormNoteRepository(db.DB)
	linkRepo := persistence.NewGormPaymentLinkRepository(db.DB)
	campaignRepo := persistence.NewGormCampaignRepository(db.DB)
	scheduleRepo := persistence.NewGormScheduleRepository(db.DB)
	prefRepo := persistence.NewGormPreferenceRepository(db.DB)
	runRepo := persistence.NewGormRunRepository(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)

	// Initialize the upstream order system gateway
	gateway, err := erp.NewClient(cfg.ERP)
	if err != nil {
		log.Fatal("Failed to initialize order system client", zap.Error(err))
	}

	// Initialize mail delivery
	sender := mail.NewSMTPSender(cfg.Mail)

	// Initialize PDF rendering when attachments are enabled
	var pdfRenderer printing.PDFRenderer
	if cfg.PDF.Enabled {
		renderer, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: cfg.PDF.RenderTimeout,
			NoSandbox:      true,
			Logger:         log,
		})
		if err != nil {
			log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
		}
		pdfRenderer = renderer
		defer func() {
			if err := renderer.Close(); err != nil {
				log.Error("Failed to close PDF renderer", zap.Error(err))
			}
		}()
	}

	// Initialize sync services
	synchronizer := syncapp.NewSynchronizer(gateway, invoiceRepo, noteRepo, linkRepo, invoice.DefaultStatusNamer(), cfg.ERP)
	notesEnricher := syncapp.NewNotesEnricher(gateway, noteRepo, cfg.ERP, cfg.Scheduler.NoteStaleness)
	linkEnricher := syncapp.NewPaymentLinkEnricher(gateway, invoiceRepo, linkRepo, cfg.ERP, cfg.Dunning.PaymentURLPattern)

	// Initialize dunning services
	cfgLoader := dunning.NewConfigurationLoader(settingsRepo, cfg.Dunning)
	renderer := dunning.NewTemplateRenderer(cfg.Dunning)
	governor := dunning.NewSafetyGovernor(invoiceRepo, scheduleRepo, prefRepo, campaignRepo, runRepo, sendCounter, cfg.Mail)
	campaignScheduler := dunning.NewCampaignScheduler(invoiceRepo, campaignRepo, scheduleRepo, prefRepo)
	pipeline := dunning.NewSendPipeline(scheduleRepo, campaignRepo, invoiceRepo, linkRepo, governor, renderer, sender, pdfRenderer, cfg.PDF)
	orchestrator := dunning.NewRunOrchestrator(
		runLock,
		cfg.Scheduler.RunLockTTL,
		runRepo,
		invoiceRepo,
		scheduleRepo,
		synchronizer,
		notesEnricher,
		linkEnricher,
		campaignScheduler,
		pipeline,
		governor,
		cfgLoader,
		dunningMetrics,
		log,
	)
	cronTrigger := dunning.NewCronTrigger(orchestrator, cfg.Scheduler, log)

	// Initialize handlers
	runHandler := handler.NewRunHandler(orchestrator, runRepo, log)
	campaignHandler := handler.NewCampaignHandler(campaignRepo, governor, pipeline)
	scheduleHandler := handler.NewScheduleHandler(scheduleRepo)
	preferenceHandler := handler.NewPreferenceHandler(prefRepo, cfg.Dunning)
	systemHandler := handler.NewSystemHandler(db, redisClient, runRepo, version)

	// Setup Gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(runHandler).
		Register(campaignHandler).
		Register(scheduleHandler).
		Register(preferenceHandler).
		Register(systemHandler)
	r.RegisterPublic(router.RegistrarFunc(preferenceHandler.RegisterPublicRoutes))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start the daily run trigger
	cronCtx, cronCancel := context.WithCancel(context.Background())
	defer cronCancel()
	go cronTrigger.Run(cronCtx)

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

	cronCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
