package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"issuecompass/internal/ai"
	"issuecompass/internal/app"
	"issuecompass/internal/cache"
	"issuecompass/internal/config"
	"issuecompass/internal/enrich"
	"issuecompass/internal/logging"
	"issuecompass/internal/metrics"
	mysqlClient "issuecompass/internal/platform/mysql"
	rabbitmqClient "issuecompass/internal/platform/rabbitmq"
	redisClient "issuecompass/internal/platform/redis"
	"issuecompass/internal/repository"
	"issuecompass/internal/transport/http/handler"
	"issuecompass/internal/worker"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.EventPublisher
	PersistWorker *worker.PersistWorker
	Metrics       *metrics.Metrics

	Auth       *app.AuthService
	Workspaces *app.WorkspaceManager

	StartedAt time.Time
	logCloser io.Closer
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}
	slog.SetDefault(logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		logCloser: logCloser,
		StartedAt: time.Now(),
	}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.wire()
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := mysqlClient.Migrate(mysqlDB); err != nil {
		return err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.Redis = redisCli

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.HistoryQueue, cfg.RabbitMQ.ActivityQueue)
	if err != nil {
		return err
	}
	a.MQConn = mqConn

	persistWorker := worker.NewPersistWorker(
		mqConn,
		repository.NewHistoryRepository(mysqlDB),
		repository.NewActivityRepository(mysqlDB),
		cfg.RabbitMQ.HistoryQueue,
		cfg.RabbitMQ.ActivityQueue,
		a.Logger,
	)
	if err := persistWorker.Start(ctx); err != nil {
		return fmt.Errorf("start persist worker failed: %w", err)
	}
	a.PersistWorker = persistWorker
	a.Publisher = rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.HistoryQueue, cfg.RabbitMQ.ActivityQueue)
	return nil
}

func (a *App) wire() {
	cfg := a.Config

	a.Auth = app.NewAuthService(repository.NewUserRepository(a.MySQL), cfg.Auth.JWTSecret, cfg.JWTExpiration())

	historyCache := cache.NewHistoryCache(
		a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	store := app.NewHistoryStore(repository.NewHistoryRepository(a.MySQL), repository.NewActivityRepository(a.MySQL), historyCache, a.Publisher, a.Logger)

	wsCfg := WorkspaceConfig(cfg, a.Logger)
	wsCfg.DrainObserver = a.Metrics
	client := metrics.NewInstrumentedClient(NewAnalysisClient(cfg), a.Metrics)
	a.Workspaces = app.NewWorkspaceManager(client, wsCfg, store)
}

// NewAnalysisClient builds the LLM client from cfg, throttled to the
// configured requests per minute.
func NewAnalysisClient(cfg *config.Config) *ai.AnalysisClient {
	llm := ai.NewOpenAICompatibleClient(cfg.LLMTimeout(), ai.NewRateLimiter(cfg.LLM.RequestsPerMinute))
	return ai.NewAnalysisClient(llm, ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, cfg.LLM.Language)
}

func WorkspaceConfig(cfg *config.Config, logger *slog.Logger) app.WorkspaceConfig {
	return app.WorkspaceConfig{
		Language:           cfg.LLM.Language,
		MaxAttachmentBytes: cfg.Attachment.MaxBytes,
		Enrichment: enrich.Config{
			Cooldown: cfg.Enrichment.Cooldown(),
			Retry: enrich.RetryPolicy{
				MaxRetries: cfg.Enrichment.MaxRetries,
				BaseDelay:  cfg.Enrichment.RetryBase(),
				Step:       cfg.Enrichment.RetryStep(),
			},
			RequestTimeout: cfg.Enrichment.RequestTimeout(),
		},
		Logger: logger,
	}
}

// HealthChecks returns the dependency checks served by /healthz.
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	return map[string]handler.HealthCheck{
		"mysql": func(ctx context.Context) error {
			return mysqlClient.Ping(ctx, a.MySQL)
		},
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(context.Context) error {
			if a.MQConn == nil || a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	}
}

// Close stops workspaces first so their last events are still published,
// then tears down infrastructure.
func (a *App) Close() error {
	var closeErr error
	if a.Workspaces != nil {
		a.Workspaces.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.PersistWorker != nil {
		a.PersistWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	return closeErr
}
