package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/shestoi/marketsettle/internal/api/http"
	stripeclient "github.com/shestoi/marketsettle/internal/client/stripe"
	"github.com/shestoi/marketsettle/internal/config"
	eventkafka "github.com/shestoi/marketsettle/internal/event/kafka"
	"github.com/shestoi/marketsettle/internal/repository/postgres"
	redisrepo "github.com/shestoi/marketsettle/internal/repository/redis"
	"github.com/shestoi/marketsettle/internal/service"
	"github.com/shestoi/marketsettle/internal/telegram"
	"github.com/shestoi/marketsettle/internal/templates"
	"github.com/shestoi/marketsettle/migrations"
	platformhealth "github.com/shestoi/marketsettle/platform/health/http"
	platformlogging "github.com/shestoi/marketsettle/platform/logging"
	platformobservability "github.com/shestoi/marketsettle/platform/observability"
	platformshutdown "github.com/shestoi/marketsettle/platform/shutdown"
)

const serviceName = "settlement"

// App содержит все зависимости для запуска и корректного shutdown Settlement Service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	shutdownMgr *platformshutdown.Manager
}

// Build создаёт и настраивает все зависимости Settlement Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"
	ctx := context.Background()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: serviceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}
	cfg.Log(logger)
	buildLogger := logger.With(zap.String("op", op))

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	// при ошибке сборки освобождаем то, что уже успели открыть
	fail := func(err error) (*App, error) {
		_ = shutdownMgr.Shutdown()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// OpenTelemetry
	otelShutdown, err := platformobservability.Init(ctx, platformobservability.Config{
		Enabled:               cfg.OTelEnabled,
		OTLPEndpoint:          cfg.OTelEndpoint,
		SamplingRatio:         cfg.OTelSamplingRatio,
		ServiceName:           serviceName,
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return fail(err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	// PostgreSQL: миграции до открытия пула, чтобы сервис не стартовал на старой схеме
	buildLogger.Info("Applying database migrations")
	if err := migrations.Up(ctx, cfg.PostgresDSN); err != nil {
		return fail(err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return fail(err)
	}
	shutdownMgr.Add("postgres_pool", platformshutdown.Pool(pool))
	if err := pool.Ping(ctx); err != nil {
		return fail(fmt.Errorf("postgres ping: %w", err))
	}
	buildLogger.Info("PostgreSQL connection established")

	// Redis: сессии auth-сервиса
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	shutdownMgr.Add("redis_client", platformshutdown.Closer(redisClient))
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fail(fmt.Errorf("redis ping: %w", err))
	}
	buildLogger.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))

	renderer, err := templates.NewRenderer(logger)
	if err != nil {
		return fail(err)
	}

	// Внешние коллабораторы
	gateway := stripeclient.NewGatewayAdapter(stripeclient.Config{
		SecretKey:            cfg.Stripe.SecretKey,
		WebhookSecret:        cfg.Stripe.WebhookSecret,
		Currency:             cfg.Currency,
		SuccessURL:           cfg.Stripe.SuccessURL,
		CancelURL:            cfg.Stripe.CancelURL,
		OnboardingReturnURL:  cfg.Stripe.OnboardingReturnURL,
		OnboardingRefreshURL: cfg.Stripe.OnboardingRefreshURL,
		Timeout:              cfg.Stripe.GatewayTimeout,
		BaseURL:              cfg.Stripe.APIBase,
	})

	publisher := eventkafka.NewNotificationPublisher(logger, cfg.Kafka, renderer)
	shutdownMgr.Add("kafka_writer", platformshutdown.Closer(publisher))

	var sender telegram.Sender = telegram.NewNoOpSender(logger)
	if cfg.Telegram.Enabled {
		sender = telegram.NewTelegramSender(logger, cfg.Telegram.BotToken, cfg.Telegram.APIBase)
	}
	alerter := telegram.NewOpsAlerter(sender, renderer, cfg.Telegram.ChatID)

	var metrics service.MetricsRecorder
	if cfg.OTelEnabled {
		metrics = newSettlementMetricsRecorder()
	}

	// Репозитории
	ledger := postgres.NewRepository(pool)
	sessions := redisrepo.NewSessionRepository(redisClient, logger)

	// Service слой
	checkoutService := service.NewCheckoutService(logger, ledger, ledger, gateway, service.CheckoutConfig{
		Currency:          cfg.Currency,
		FeePercent:        cfg.PlatformFeePercent,
		RequireOnboarding: cfg.RequireOnboarding,
	})
	webhookService := service.NewWebhookService(logger, ledger, gateway, alerter).WithMetrics(metrics)
	balanceService := service.NewBalanceService(logger, ledger, gateway, cfg.Currency)
	onboardingService := service.NewOnboardingService(logger, ledger, gateway)
	refundService := service.NewRefundService(logger, ledger, gateway, publisher, alerter).WithMetrics(metrics)

	handler := httpapi.NewHandler(logger, checkoutService, webhookService, balanceService, onboardingService, refundService)
	health := []platformhealth.Check{
		{Name: "postgres", Fn: pool.Ping},
		{Name: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}
	router := httpapi.NewRouter(handler, sessions, health, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// ответ может ждать процессор: таймаут шлюза плюс запас на БД
		WriteTimeout: cfg.Stripe.GatewayTimeout*2 + 5*time.Second,
	}
	// Сервер регистрируется последним: при остановке он гасится первым
	shutdownMgr.Add("http_server", platformshutdown.HTTPServer(httpServer))

	buildLogger.Info("Settlement service configured", zap.String("http_addr", cfg.HTTPAddr))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		shutdownMgr: shutdownMgr,
	}, nil
}

// Run запускает HTTP сервер и блокируется до сигнала shutdown или падения сервера
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting settlement service", zap.String("addr", a.httpServer.Addr))

	fatal := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal <- err
		}
	}()

	err := a.shutdownMgr.Wait(context.Background(), fatal)
	a.logger.Info("Settlement service stopped")
	return err
}
