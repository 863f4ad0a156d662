package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/caregraph/caregraph-server/internal/api"
	"github.com/caregraph/caregraph-server/internal/config"
	"github.com/caregraph/caregraph-server/internal/data"
	"github.com/caregraph/caregraph-server/internal/domain"
	"github.com/caregraph/caregraph-server/internal/service"
	"github.com/caregraph/caregraph-server/internal/session"
	"github.com/caregraph/caregraph-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	// Load the comorbidity network and cost tables up front so a broken
	// artifact fails the process instead of the first request.
	network := data.NewNetworkStore(
		configManager.DataPath(cfg.Data.ICDMappingJSON),
		configManager.DataPath(cfg.Data.ComorbidityMatrixCSV),
		logger,
	)
	if err := network.Load(); err != nil {
		logger.WithError(err).Fatal("Failed to load comorbidity network")
	}

	costs := data.NewCostTables(
		configManager.DataPath(cfg.Data.ConditionCostsCSV),
		configManager.DataPath(cfg.Data.ConditionSummaryJSON),
		configManager.DataPath(cfg.Data.DrugCostsJSON),
		configManager.DataPath(cfg.Data.InterventionCostsJSON),
		logger,
	)
	if err := costs.Load(); err != nil {
		logger.WithError(err).Fatal("Failed to load cost tables")
	}

	// Interpreter client for unmapped-condition progressions. Without an API
	// key the engine runs fully from the local tables.
	var progressions *external.InterpreterClient
	if cfg.Interpreter.APIKey != "" {
		cache, err := external.NewResponseCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize interpreter cache")
		}
		defer cache.Close()
		progressions = external.NewInterpreterClient(cfg.Interpreter, cache, logger)
	} else {
		logger.Info("No interpreter API key configured, unmapped conditions will not expand")
	}

	sessions, err := session.Open(cfg.Session)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open session store")
	}
	defer sessions.Close()

	var generator domain.ProgressionGenerator
	var scorer domain.RelevanceScorer
	if progressions != nil {
		generator = progressions
		scorer = progressions
	}
	simulator := service.NewSimulator(network, costs, generator, cfg.Interpreter.Timeout, logger)

	server := api.NewServer(configManager, simulator, sessions, scorer, logger)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting CareGraph server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.ToLower(cfg.Format) == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}
