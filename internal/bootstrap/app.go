package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"careerhub/internal/config"
	"careerhub/internal/logging"
	"careerhub/internal/model"
	mysqlClient "careerhub/internal/platform/mysql"
	rabbitmqClient "careerhub/internal/platform/rabbitmq"
	redisClient "careerhub/internal/platform/redis"
	"careerhub/internal/repository"
	"careerhub/internal/worker"
)

type App struct {
	Config      *config.Config
	Logger      *logrus.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	AuditWorker *worker.AuditEventWorker
	Registry    *prometheus.Registry

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		Logger:    logging.New(cfg.App.Name, cfg.App.Env, cfg.Log.Level),
		StartedAt: time.Now(),
	}
	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN(), a.Logger)
	if err != nil {
		return err
	}
	a.MySQL = mysqlDB
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.AuditEvent{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.Redis = redisCli

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	a.MQConn = mqConn

	auditRepo := repository.NewAuditEventRepository(mysqlDB)
	auditWorker := worker.NewAuditEventWorker(mqConn, auditRepo, cfg.RabbitMQ.AuditEventQueue, a.Logger)
	if err := auditWorker.Start(ctx); err != nil {
		return fmt.Errorf("start audit worker failed: %w", err)
	}
	a.AuditWorker = auditWorker

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.Logger.WithFields(logrus.Fields{
		"env":   cfg.App.Env,
		"queue": cfg.RabbitMQ.AuditEventQueue,
	}).Info("dependencies ready")
	return nil
}

// Close stops the worker before the connections it depends on.
func (a *App) Close() error {
	var closeErr error
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
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
	return closeErr
}
