package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/handler"
	"github.com/Dan9191/bank-sync/internal/integrations/monobank"
	"github.com/Dan9191/bank-sync/internal/repository"
	"github.com/Dan9191/bank-sync/internal/scheduler"
	"github.com/Dan9191/bank-sync/internal/service"
	"github.com/Dan9191/bank-sync/internal/utils/email"
	"github.com/Dan9191/bank-sync/internal/worker"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// scheduledJobs adapts the service to the scheduler
type scheduledJobs struct {
	svc *service.Service
}

func (j scheduledJobs) SyncAllUsers(ctx context.Context) error {
	_, err := j.svc.SyncAll(ctx)
	return err
}

func (j scheduledJobs) ReconcileAllUsers(ctx context.Context) error {
	_, err := j.svc.ReconcileAll(ctx)
	return err
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, relying on environment")
	}

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := repository.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	repo := repository.NewRepository(db, cfg.DBDriver)
	if err := repo.Migrate(context.Background()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize layers
	client := monobank.NewClient(cfg, logger)
	pool := worker.NewPool(cfg.SyncWorkers, cfg.SyncQueue, logger)
	svc, err := service.NewService(repo, client, logger, cfg,
		service.WithQueue(pool),
		service.WithNotifier(email.NewSender(cfg, logger)),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize service: %v", err)
	}
	h := handler.NewHandler(svc, logger)

	sched, err := scheduler.New(cfg, scheduledJobs{svc: svc}, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize scheduler: %v", err)
	}
	sched.Start()

	// Start server
	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      handler.NewRouter(h, cfg, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	sched.Stop()
	if err := pool.Stop(ctx); err != nil {
		logger.Errorf("Background jobs did not finish: %v", err)
	}
}
