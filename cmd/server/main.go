package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/app"
	"github.com/Freeeeeet/creator_pipeline/internal/cache"
	"github.com/Freeeeeet/creator_pipeline/internal/config"
	"github.com/Freeeeeet/creator_pipeline/internal/controller/httpapi"
	"github.com/Freeeeeet/creator_pipeline/internal/controller/telegram"
	"github.com/Freeeeeet/creator_pipeline/internal/events"
	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/notify"
	"github.com/Freeeeeet/creator_pipeline/internal/repository"
	"github.com/Freeeeeet/creator_pipeline/internal/service"
	"github.com/Freeeeeet/creator_pipeline/internal/session"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting creator pipeline",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("telegram", cfg.TelegramToken != ""),
		zap.Bool("redis", cfg.RedisAddr != ""))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	// Репозитории
	userRepo := repository.NewUserRepository(pool)
	applicationRepo := repository.NewApplicationRepository(pool, userRepo)
	meetingRepo := repository.NewMeetingRepository(pool, logger)
	availabilityRepo := repository.NewAvailabilityRepository(pool, logger)
	accessRepo := repository.NewAccessLevelRepository(pool)
	onboardingRepo := repository.NewOnboardingRepository(pool)
	contractRepo := repository.NewContractRepository(pool)

	metricsReg := metrics.NewRegistry(prometheus.NewRegistry())
	bus := events.NewBus(logger)

	var ruleSource service.AvailabilityRuleStore = availabilityRepo
	if cfg.RuleCacheTTL > 0 {
		ruleCache := cache.NewRuleCache(availabilityRepo, cfg.RuleCacheTTL, metricsReg)
		bus.Subscribe(ruleCache.Handle, model.EventAvailabilityChanged)
		ruleSource = ruleCache
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return err
		}

		bus.SubscribeAll(events.NewRedisPublisher(redisClient, cfg.RedisStream, cfg.RedisStreamLen).Handle)
	}

	// Уведомления
	var (
		telegramBot *bot.Bot
		dispatcher  notify.Dispatcher = notify.NewLogDispatcher(logger)
		channel                       = "log"
	)
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
		dispatcher = notify.NewTelegramDispatcher(telegramBot)
		channel = "telegram"
	}

	async := notify.NewAsync(dispatcher, channel, cfg.NotifyTimeout, metricsReg, logger)
	defer async.Wait()
	notify.NewNotifier(userRepo, async, logger).Register(bus)

	// Сервисы
	policy, err := service.ParseOverlapPolicy(cfg.OverlapPolicy)
	if err != nil {
		return err
	}

	slotGenerator := service.NewSlotGenerator(ruleSource, policy, metricsReg, logger)
	accessService := service.NewAccessService(userRepo, accessRepo, bus, logger)
	lifecycleService := service.NewLifecycleService(userRepo, applicationRepo, meetingRepo, onboardingRepo, contractRepo, accessRepo, logger)
	bookingCoordinator := service.NewBookingCoordinator(
		userRepo, meetingRepo, accessRepo, slotGenerator, bus, metricsReg,
		service.BookingPolicy{EarlyAccess: cfg.EarlyAccess},
		logger,
	)
	applicationService := service.NewApplicationService(applicationRepo, userRepo, meetingRepo, bus, logger)
	onboardingService := service.NewOnboardingService(userRepo, accessRepo, meetingRepo, onboardingRepo, logger)
	contractService := service.NewContractService(userRepo, contractRepo, logger)
	availabilityService := service.NewAvailabilityService(availabilityRepo, bus, logger)

	tracker := session.NewTracker(cfg.IdleTimeout, time.Minute, func(userID int64) {
		logger.Info("Session idle timeout", zap.Int64("user_id", userID))
	}, metricsReg, logger)
	linkCodes := session.NewLinkCodes(session.DefaultLinkCodeTTL)

	scheduler := app.NewScheduler(availabilityService, cfg.RuleAuditInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := httpapi.NewRouter(httpapi.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.CORSOrigins,
		BookingRatePerMin: cfg.BookingRatePerMin,
	}, httpapi.Services{
		Users:        userRepo,
		Slots:        slotGenerator,
		Booking:      bookingCoordinator,
		Lifecycle:    lifecycleService,
		Access:       accessService,
		Applications: applicationService,
		Onboarding:   onboardingService,
		Contracts:    contractService,
		Availability: availabilityService,
		LinkCodes:    linkCodes,
	}, tracker, metricsReg, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if telegramBot != nil {
		controller := telegram.NewBotController(telegramBot, userRepo, linkCodes, lifecycleService, accessService, logger)
		if err := controller.RegisterHandlers(ctx); err != nil {
			logger.Warn("Failed to register bot commands", zap.Error(err))
		}
		g.Go(func() error {
			controller.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
