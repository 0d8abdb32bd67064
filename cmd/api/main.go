package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/ledger-service/internal/config"
	"github.com/Dan9191/ledger-service/internal/handler"
	"github.com/Dan9191/ledger-service/internal/notification"
	"github.com/Dan9191/ledger-service/internal/receipt"
	"github.com/Dan9191/ledger-service/internal/repository"
	"github.com/Dan9191/ledger-service/internal/repository/memory"
	"github.com/Dan9191/ledger-service/internal/scheduler"
	"github.com/Dan9191/ledger-service/internal/service"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	var store repository.Store
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	default:
		db, err := openDB(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = repository.NewRepository(db)
	}

	// Notification channels
	senders := notification.Senders{notification.NewLogSender(logger)}
	var mailer *notification.EmailSender
	if cfg.SMTPEnabled() {
		mailer = notification.NewEmailSender(cfg, logger, store)
		senders = append(senders, mailer)
	}
	if cfg.AMQPURL != "" {
		rabbit, err := notification.DialRabbit(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to rabbitmq: %v", err)
		}
		defer rabbit.Close()
		senders = append(senders, rabbit)
	}
	dispatcher := notification.NewDispatcher(senders, logger, notification.Options{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
		RetryDelay:  cfg.NotifyRetryDelay,
	})

	// Initialize layers
	svc := service.NewService(store, dispatcher, receipt.NewXMLRenderer(), logger, cfg)
	if err := svc.PromoteAdmins(context.Background(), cfg.AdminEmails); err != nil {
		logger.Fatalf("Failed to promote admins: %v", err)
	}
	h := handler.NewHandler(svc, logger)

	// Monthly statements need a mail channel
	jobs := scheduler.New(logger)
	if mailer != nil {
		if err := jobs.AddStatementJob(cfg.StatementCron, scheduler.NewStatementJob(store, svc, mailer, logger)); err != nil {
			logger.Fatalf("Failed to schedule statements: %v", err)
		}
	}
	jobs.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	jobs.Stop(ctx)
	if err := dispatcher.Close(ctx); err != nil {
		logger.Errorf("Pending notifications dropped: %v", err)
	}
}

func openDB(cfg *config.Config, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := repository.Migrate(db, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
