package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"platformBrain/app/echo-server/router"
	"platformBrain/business/brain"
	"platformBrain/business/decision"
	"platformBrain/business/dispatcher"
	"platformBrain/business/eventadapter"
	"platformBrain/business/orders"
	"platformBrain/business/recommendation"
	"platformBrain/business/userstate"
	"platformBrain/internal/middleware"
	"platformBrain/internal/repository/memory"
	"platformBrain/internal/repository/notification"
	psqlRepo "platformBrain/internal/repository/postgres"
	redisRepo "platformBrain/internal/repository/redis"
	"platformBrain/internal/rest"
	"platformBrain/pkg/config"
	"platformBrain/pkg/database"
	redisdb "platformBrain/pkg/database/redis"
	"platformBrain/pkg/logger"
	"platformBrain/pkg/metrics"
	"platformBrain/pkg/tracing"
	"platformBrain/pkg/utils"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
)

// cache is what every cache consumer needs; redis and the in-process
// fallback both satisfy it.
type cache interface {
	userstate.Cache
	dispatcher.Cache
	recommendation.Cache
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Platform Brain", "version", cfg.App.Version)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	metrics.Init()

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	shutdownTracing, err := tracing.Init(rootCtx, cfg.Tracing.OTLPEndpoint, cfg.App.Version)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected successfully")

	// Redis is optional; the brain degrades to a per-process cache.
	var (
		kv          cache
		redisClient *goredis.Client
	)
	redisClient, err = redisdb.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process cache", "error", err)
		mem := memory.NewCache()
		go sweep(rootCtx, mem, time.Minute)
		kv = mem
	} else {
		logger.Info("Redis connected successfully")
		kv = redisRepo.NewCacheRepository(redisClient)
	}

	// Init repo
	flagRepo := psqlRepo.NewFeatureFlagRepository(db)
	ruleRepo := psqlRepo.NewRuleRepository(db)
	decisionRepo := psqlRepo.NewDecisionLogRepository(db)
	historyRepo := psqlRepo.NewHistoryRepository(db)
	segmentRepo := psqlRepo.NewSegmentRepository(db)
	ordersRepo := psqlRepo.NewOrdersRepository(db)
	recommendationRepo := psqlRepo.NewRecommendationRepository(db)

	// Init platform brain
	flags := brain.NewFlagSet(flagRepo)
	historyQueue := brain.NewQueue("history", cfg.Brain.EventWorkers, cfg.Brain.EventQueueSize, cfg.Brain.JobTimeout)

	normalizer := eventadapter.NewNormalizer(
		eventadapter.WithHistorySink(historyRepo, historyQueue, func() bool {
			return flags.Current().HistoryForwarding()
		}),
	)
	stateService := userstate.NewService(historyRepo, kv, userstate.FromBrainConfig(cfg.Brain))
	engine := decision.NewEngine(
		ruleRepo,
		brain.StateGate{Flags: flags, State: stateService},
		segmentRepo,
		decisionRepo,
	)

	dispatchOpts := []dispatcher.Option{
		dispatcher.WithNotifications(psqlRepo.NewNotificationRepository(db)),
		dispatcher.WithDiscounts(psqlRepo.NewDiscountRepository(db)),
		dispatcher.WithCampaigns(psqlRepo.NewCampaignRepository(db)),
		dispatcher.WithRecommendations(recommendationRepo),
		dispatcher.WithHomepageCache(kv, cfg.Brain.HomepageTTL),
	}
	mailjetConfig := notification.MailjetConfig{
		MailjetBaseURL:           cfg.Mailjet.MailjetBaseUrl,
		MailjetBasicAuthUsername: cfg.Mailjet.MailjetBasicAuthUsername,
		MailjetBasicAuthPassword: cfg.Mailjet.MailjetBasicAuthPassword,
		MailjetSenderEmail:       cfg.Mailjet.MailjetSenderEmail,
		MailjetSenderName:        cfg.Mailjet.MailjetSenderName,
	}
	if mailjetConfig.Enabled() {
		dispatchOpts = append(dispatchOpts, dispatcher.WithMailer(
			notification.NewMailjetRepository(mailjetConfig),
			psqlRepo.NewRecipientRepository(db),
		))
	} else {
		logger.Info("Mailjet not configured, email notifications are stored only")
	}
	actionDispatcher := dispatcher.New(dispatchOpts...)

	platformBrain := brain.New(flags, normalizer, stateService, engine, actionDispatcher,
		brain.WithEventQueue(brain.NewQueue("events", cfg.Brain.EventWorkers, cfg.Brain.EventQueueSize, cfg.Brain.JobTimeout)),
		brain.WithRefreshQueue(brain.NewQueue("state_refresh", cfg.Brain.RefreshWorkers, cfg.Brain.RefreshQueueSize, cfg.Brain.JobTimeout)),
	)

	initCtx, cancelInit := context.WithTimeout(rootCtx, 5*time.Second)
	if err := platformBrain.Initialize(initCtx); err != nil {
		logger.Warn("Feature flags failed to load, platform brain disabled", "error", err)
	}
	cancelInit()

	historyQueue.Start()
	platformBrain.Start()
	logger.Info("Platform brain started", "flags", platformBrain.Flags())

	// Init service
	ordersService := orders.NewOrdersService(ordersRepo, platformBrain)
	recommendationService := recommendation.NewService(recommendationRepo, kv)

	// Init handler
	brainHandler := rest.NewBrainHandler(platformBrain)
	brainAdminHandler := rest.NewBrainAdminHandler(flagRepo, platformBrain, ruleRepo, decisionRepo)
	ordersHandler := rest.NewOrdersHandler(ordersService)
	recommendationHandler := rest.NewRecommendationHandler(recommendationService)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestContext())
	e.Use(middleware.Observe())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			middleware.HeaderTenantID, middleware.HeaderRequestID, rest.HeaderDeviceID,
		},
	}))

	// Setup routes
	router.SetupOpsRoutes(e, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	})
	api := e.Group("/api/v1")
	router.SetupBrainRoutes(api, brainHandler)
	router.SetupRecommendationRoutes(api, recommendationHandler)
	router.SetOrdersRoutes(api, ordersHandler)
	router.SetBrainAdminRoutes(api, brainAdminHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Drain the pipeline before closing its stores.
	platformBrain.Stop()
	historyQueue.Stop()
	stopRoot()

	if err := shutdownTracing(ctx); err != nil {
		logger.Error("Tracing shutdown error", "error", err)
	}
	if err := redisdb.CloseRedisClient(redisClient); err != nil {
		logger.Error("Redis close error", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server stopped")
}

func sweep(ctx context.Context, c *memory.Cache, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Sweep(); n > 0 {
				logger.Debug("cache sweep", "expired", n)
			}
		}
	}
}
