package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/adapter/cache"
	"github.com/seu-repo/ocpp-cs/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/ocpp-cs/internal/adapter/http/fiber/middleware"
	v16 "github.com/seu-repo/ocpp-cs/internal/adapter/ocpp/v16"
	"github.com/seu-repo/ocpp-cs/internal/adapter/queue"
	"github.com/seu-repo/ocpp-cs/internal/adapter/storage/sqlite"
	wsAdapter "github.com/seu-repo/ocpp-cs/internal/adapter/websocket"
	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/ports"
	"github.com/seu-repo/ocpp-cs/internal/service/billing"
	"github.com/seu-repo/ocpp-cs/internal/service/livestatus"
	"github.com/seu-repo/ocpp-cs/internal/service/monitor"
	"github.com/seu-repo/ocpp-cs/internal/service/smartcharging"
	"github.com/seu-repo/ocpp-cs/internal/service/tariff"
	"github.com/seu-repo/ocpp-cs/internal/service/transaction"
	"github.com/seu-repo/ocpp-cs/pkg/config"
)

const serviceName = "ocpp-cs"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting OCPP central system",
		zap.String("service", serviceName),
		zap.String("environment", cfg.App.Environment),
	)

	db, err := sqlite.NewConnection(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := sqlite.RunMigrations(db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	var cacheMirror ports.Cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("redis not available, live status cache runs without a mirror", zap.Error(err))
	} else {
		cacheMirror = redisCache
		defer redisCache.Close()
	}

	var messageQueue queue.MessageQueue
	messageQueue, err = queue.NewNATSQueue(cfg.NATS.URL, logger)
	if err != nil {
		logger.Warn("NATS not available, billing events will not be published", zap.Error(err))
		messageQueue = nil
	} else {
		defer messageQueue.Close()
	}

	// Repositories
	chargePointRepo := sqlite.NewChargePointRepository(db, logger)
	transactionRepo := sqlite.NewTransactionRepository(db, logger)
	stopRecordRepo := sqlite.NewStopRecordRepository(db, logger)
	meterSampleRepo := sqlite.NewMeterSampleRepository(db, logger)
	cardRepo := sqlite.NewCardRepository(db, logger)
	idTagRepo := sqlite.NewIdTagRepository(db, logger)
	whitelistRepo := sqlite.NewWhitelistRepository(db, logger)
	paymentRepo := sqlite.NewPaymentRepository(db, logger)
	realtimeDeductionRepo := sqlite.NewRealtimeDeductionRepository(db, logger)
	tariffRepo := sqlite.NewTariffRepository(db, logger)
	communitySettingsRepo := sqlite.NewCommunitySettingsRepository(db, logger)
	statusLogRepo := sqlite.NewStatusLogRepository(db, logger)

	if err := seedDefaults(context.Background(), cfg, tariffRepo, communitySettingsRepo, logger); err != nil {
		logger.Fatal("failed to seed default configuration", zap.Error(err))
	}

	txManager := sqlite.NewTxManager(db)

	tariffResolver, err := tariff.New(tariffRepo, meterSampleRepo, cfg.Region.Timezone, cfg.Region.DefaultPrice, logger)
	if err != nil {
		logger.Fatal("failed to initialize tariff resolver", zap.Error(err))
	}

	liveStatusCache := livestatus.New(livestatus.DefaultTTL, cacheMirror, logger)

	// OCPP 1.6J stack
	registry := v16.NewRegistry()
	commandService := v16.NewCommandService(registry, logger)

	smartChargingCoordinator := smartcharging.NewCoordinator(communitySettingsRepo, transactionRepo, chargePointRepo, commandService, logger)

	billingService := billing.NewService(
		transactionRepo,
		meterSampleRepo,
		cardRepo,
		realtimeDeductionRepo,
		tariffResolver,
		liveStatusCache,
		commandService,
		messageQueue,
		logger,
	)

	transactionService := transaction.NewService(
		transactionRepo,
		stopRecordRepo,
		cardRepo,
		idTagRepo,
		whitelistRepo,
		paymentRepo,
		realtimeDeductionRepo,
		tariffResolver,
		liveStatusCache,
		smartChargingCoordinator,
		commandService,
		txManager,
		logger,
	)

	ocppHandlers := v16.NewHandlers(chargePointRepo, statusLogRepo, idTagRepo, transactionService, billingService, logger)
	ocppServer := v16.NewServer(registry, ocppHandlers, logger)
	ocppServer.AdmissionToken = cfg.OCPP.AuthToken

	go func() {
		logger.Info("starting OCPP 1.6J server", zap.Int("port", cfg.OCPP.Port))
		if err := ocppServer.Start(cfg.OCPP.Port); err != nil {
			logger.Fatal("OCPP server failed", zap.Error(err))
		}
	}()

	backgroundMonitor := monitor.New(transactionRepo, cardRepo, chargePointRepo, transactionService, logger)
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go backgroundMonitor.Run(monitorCtx)

	dashboardHub := wsAdapter.NewHub()
	go dashboardHub.Run()
	stopDashboardFeed := startDashboardFeed(dashboardHub, commandService, liveStatusCache, logger)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))
	if cfg.CircuitBreaker.Enabled {
		app.Use(middleware.CircuitBreakerWithLogger(logger))
	}

	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendString("OK") })
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("database not ready")
		}
		return c.SendString("ready")
	})

	if cfg.Prometheus.Enabled {
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
			handler(c.Context())
			return nil
		})
	}

	connectionHandler := handlers.NewConnectionHandler(commandService, logger)
	chargePointHandler := handlers.NewChargePointHandler(chargePointRepo, transactionService, commandService, liveStatusCache, logger)
	cardHandler := handlers.NewCardHandler(cardRepo, logger)
	tariffHandler := handlers.NewTariffHandler(tariffRepo, tariffResolver, logger)
	communitySettingsHandler := handlers.NewCommunitySettingsHandler(communitySettingsRepo, smartChargingCoordinator, logger)
	debugHandler := handlers.NewDebugHandler(idTagRepo, cardRepo, whitelistRepo, transactionRepo, smartChargingCoordinator, logger)

	api := app.Group("/api", middleware.AdminAuthRequired(cfg.Admin.Token))

	api.Get("/connections", connectionHandler.List)

	api.Get("/charge-points", chargePointHandler.List)
	api.Post("/charge-points", chargePointHandler.Create)
	api.Put("/charge-points/:id", chargePointHandler.Update)
	api.Delete("/charge-points/:id", chargePointHandler.Delete)
	api.Post("/charge-points/:id/start", chargePointHandler.Start)
	api.Post("/charge-points/:id/stop", chargePointHandler.Stop)
	api.Post("/charge-points/:id/current-limit", chargePointHandler.CurrentLimit)
	api.Get("/charge-points/:id/live-status", chargePointHandler.LiveStatus)
	api.Get("/charge-points/:id/current-transaction/summary", chargePointHandler.CurrentTransactionSummary)
	api.Get("/charge-points/:id/current-transaction", chargePointHandler.CurrentTransaction)
	api.Get("/charge-points/:id/last-finished-transaction/summary", chargePointHandler.LastFinishedTransactionSummary)

	api.Get("/cards", cardHandler.List)
	api.Get("/cards/:id/balance", cardHandler.Balance)
	api.Post("/cards/:id/topup", cardHandler.Topup)

	api.Get("/daily-pricing", tariffHandler.List)
	api.Post("/daily-pricing", tariffHandler.Create)
	api.Put("/daily-pricing/:id", tariffHandler.Update)
	api.Delete("/daily-pricing/:id", tariffHandler.Delete)

	api.Get("/community-settings", communitySettingsHandler.Get)
	api.Post("/community-settings", communitySettingsHandler.Update)

	api.Get("/debug/start-transaction-check", debugHandler.StartTransactionCheck)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/live", websocket.New(func(c *websocket.Conn) {
		dashboardHub.AddClient(c)
	}))

	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	close(stopDashboardFeed)
	stopMonitor()
	ocppServer.Stop()

	logger.Info("server exited gracefully")
}

// seedDefaults populates the CommunitySettings singleton from configuration
// the first time it is empty; afterward it is managed exclusively through
// the admin HTTP surface. The daily-pricing table is not seeded.
func seedDefaults(
	ctx context.Context,
	cfg *config.Config,
	tariffRepo ports.TariffRepository,
	settingsRepo ports.CommunitySettingsRepository,
	log *zap.Logger,
) error {
	settings, err := settingsRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load community settings: %w", err)
	}
	if settings == nil {
		log.Info("seeding default community settings")
		if err := settingsRepo.Save(ctx, &domain.CommunitySettings{
			ContractKW:  cfg.Community.ContractKW,
			VoltageV:    cfg.Community.VoltageV,
			MinCurrentA: cfg.Community.MinCurrentA,
			MaxCurrentA: cfg.Community.MaxCurrentA,
		}); err != nil {
			return fmt.Errorf("save default community settings: %w", err)
		}
	}

	// No daily-pricing rows are seeded: TariffSegment is now keyed by
	// calendar date, so there is no finite flat schedule to pre-populate.
	// An empty table is handled by the resolver's DefaultPrice fallback
	// until an operator configures real dated segments through the
	// admin HTTP surface.

	return nil
}

// startDashboardFeed periodically republishes the live status of every
// connected charge point to the admin dashboard websocket. It returns a
// channel the caller closes to stop the feed.
func startDashboardFeed(hub *wsAdapter.Hub, commands ports.OCPPCommandService, liveStatus ports.LiveStatusCache, log *zap.Logger) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				snapshots := make([]ports.LiveStatusSnapshot, 0)
				for _, chargePointID := range commands.GetConnectedClients() {
					if snap, ok := liveStatus.Get(chargePointID); ok {
						snapshots = append(snapshots, snap)
					}
				}
				payload, err := json.Marshal(snapshots)
				if err != nil {
					log.Warn("failed to marshal dashboard feed", zap.Error(err))
					continue
				}
				hub.Broadcast(payload)
			}
		}
	}()
	return stop
}
