package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/app"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/config"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/db"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/lab"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Service: "labflow"}).Error("failed to load config", "error", err)
		return err
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "labflow",
	})
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	appCfg := app.Config{
		IsProduction:    cfg.IsProduction,
		ProdOrigins:     cfg.ProdOrigins,
		StoreDriver:     cfg.StoreDriver,
		JWTSecret:       cfg.JWTSecret,
		JWTTTL:          cfg.JWTAccessTokenTTL,
		BcryptCost:      cfg.BcryptCost,
		Location:        cfg.Location,
		Logger:          log,
		LabCacheTTL:     cfg.LabCacheTTL,
		NotifyWorkers:   cfg.NotifyWorkers,
		NotifyQueueSize: cfg.NotifyQueueSize,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
	}

	// Connect DB
	if cfg.StoreDriver == config.StoreDriverPostgres {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Error("failed to connect to db", "error", err)
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Error("failed to apply schema", "error", err)
			return err
		}
		appCfg.DBPool = pool
	}

	// Lab registry seed
	if cfg.LabSeedFile != "" {
		labs, err := lab.LoadSeed(cfg.LabSeedFile)
		if err != nil {
			log.Error("failed to load lab seed", "path", cfg.LabSeedFile, "error", err)
			return err
		}
		appCfg.LabSeed = labs
	}

	// Optional Kafka fan-out for notifications
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := notification.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, log)
		if err != nil {
			log.Error("failed to create kafka sink", "error", err)
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warn("kafka sink close failed", "error", err)
			}
		}()
		appCfg.ExtraSinks = append(appCfg.ExtraSinks, sink)
	}

	container, err := app.NewContainer(ctx, appCfg)
	if err != nil {
		log.Error("failed to build application", "error", err)
		return err
	}

	// Workers outlive the signal context so queued events drain on shutdown.
	container.Dispatcher.Start(context.Background())
	defer container.Dispatcher.Close()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server running", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for Ctrl+C or a listener failure
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", "error", err)
		return err
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}

	log.Info("server exited gracefully")
	return nil
}
