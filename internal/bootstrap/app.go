package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pharmgpt/internal/config"
	"pharmgpt/internal/model"
	postgresClient "pharmgpt/internal/platform/postgres"
	rabbitmqClient "pharmgpt/internal/platform/rabbitmq"
	redisClient "pharmgpt/internal/platform/redis"
	"pharmgpt/internal/repository"
	"pharmgpt/internal/worker"
)

const sessionCleanupInterval = time.Hour

type App struct {
	Config        *config.Config
	Postgres      *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	MessageWorker *worker.MessagePersistWorker

	StartedAt time.Time

	cleanupCancel context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	db, err := postgresClient.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	if err := postgresClient.Migrate(db,
		&model.User{},
		&model.Session{},
		&model.Conversation{},
		&model.Message{},
		&model.Document{},
		&model.DocumentChunk{},
	); err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	messageRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, convRepo, cfg.RabbitMQ.MessagePersistQueue)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}

	app := &App{
		Config:        cfg,
		Postgres:      db,
		Redis:         redisCli,
		MQConn:        mqConn,
		MessageWorker: messageWorker,
		StartedAt:     time.Now(),
	}
	app.startSessionCleanup(ctx, repository.NewSessionRepository(db))
	return app, nil
}

// startSessionCleanup sweeps expired session rows on a fixed interval.
func (a *App) startSessionCleanup(ctx context.Context, sessions *repository.SessionRepository) {
	cleanupCtx, cancel := context.WithCancel(ctx)
	a.cleanupCancel = cancel

	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if deleted, err := sessions.DeleteExpired(); err != nil {
					log.Printf("session cleanup failed: %v", err)
				} else if deleted > 0 {
					log.Printf("session cleanup removed %d expired sessions", deleted)
				}
			}
		}
	}()
}

func (a *App) Close() error {
	var closeErr error
	if a.cleanupCancel != nil {
		a.cleanupCancel()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Postgres != nil {
		sqlDB, err := a.Postgres.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
