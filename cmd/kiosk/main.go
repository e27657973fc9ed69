package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/capture"
	"ai-photo-kiosk/internal/config"
	"ai-photo-kiosk/internal/database"
	"ai-photo-kiosk/internal/flow"
	"ai-photo-kiosk/internal/generation"
	"ai-photo-kiosk/internal/handlers"
	"ai-photo-kiosk/internal/middleware"
	"ai-photo-kiosk/internal/orders"
	"ai-photo-kiosk/internal/payment"
	"ai-photo-kiosk/internal/remote"
	"ai-photo-kiosk/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.Environment)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Remote backend client: source of truth for catalog, sessions,
	// generation and payments.
	remoteClient := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, logger)

	// Camera. Without a snapshot URL the controller starts on the simulated
	// device straight away.
	var device capture.Device
	if cfg.CameraSnapshotURL != "" {
		device = capture.NewSnapshotDevice(cfg.CameraSnapshotURL)
	}
	captureController := capture.NewController(device, logger)

	generator := generation.NewCoordinator(remoteClient, logger)
	payments := payment.NewCoordinator(remoteClient, logger).
		WithTiming(cfg.PaymentPollInterval, cfg.PaymentMaxWait)

	// Order ledger: durable when DATABASE_URL is set, in-memory otherwise.
	var ledger orders.Store = orders.NewMemory()
	if cfg.DatabaseURL != "" {
		migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize migrator, using in-memory ledger")
		} else {
			if err := migrator.Run(); err != nil {
				logger.Warn().Err(err).Msg("migration failed")
			}
			migrator.Close()

			pg, err := orders.NewPostgres(cfg.DatabaseURL)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to connect to database, using in-memory ledger")
			} else {
				defer pg.Close()
				ledger = pg
				logger.Info().Msg("durable order ledger enabled")
			}
		}
	}

	kiosk := flow.New(remoteClient, captureController, generator, payments, ledger, logger).
		WithPrices(cfg.PriceDownload, cfg.PricePrint)

	// Supabase is optional: artifact publishing and session events only.
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		supabaseClient, err := supabase.NewClient(cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize Supabase client")
		} else {
			kiosk.WithEvents(supabase.NewRealtimeClient(supabaseClient))
		}

		storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseStorageBucket)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize storage client")
		} else {
			kiosk.WithArtifacts(storageClient)
		}
	}

	flowHandler := handlers.NewFlowHandler(kiosk, logger)
	ordersHandler := handlers.NewOrdersHandler(ledger, logger)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", handlers.Health)

	api := router.Group("/api/v1")

	// Kiosk flow, driven by the local touchscreen front-end
	api.GET("/flow", flowHandler.GetState)
	api.POST("/flow/start", flowHandler.Start)
	api.POST("/flow/mode", flowHandler.ChooseMode)
	api.POST("/flow/effect", flowHandler.ChooseEffect)
	api.POST("/flow/effect/confirm", flowHandler.ConfirmEffect)
	api.POST("/flow/capture", flowHandler.Capture)
	api.POST("/flow/capture/retake", flowHandler.Retake)
	api.POST("/flow/capture/confirm", flowHandler.ConfirmPhoto)
	api.POST("/flow/generate", flowHandler.Generate)
	api.POST("/flow/regenerate", flowHandler.Regenerate)
	api.POST("/flow/confirm", flowHandler.ConfirmPreview)
	api.POST("/flow/payment", flowHandler.StartPayment)
	api.GET("/flow/payment", flowHandler.PaymentStatus)
	api.POST("/flow/payment/cancel", flowHandler.CancelPayment)
	api.POST("/flow/home", flowHandler.Home)

	// Operator API
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg))
	admin.GET("/orders", ordersHandler.ListOrders)
	admin.GET("/orders/:order_id", ordersHandler.GetOrder)

	logger.Info().Str("port", cfg.Port).Msg("kiosk service starting")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(environment string) zerolog.Logger {
	if environment == "production" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	return zerolog.New(writer).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}
