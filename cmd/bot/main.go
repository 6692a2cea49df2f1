package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-monitor/internal/bot"
	"github.com/xaenox/support-monitor/internal/classifier"
	"github.com/xaenox/support-monitor/internal/intake"
	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/internal/notifier"
	"github.com/xaenox/support-monitor/internal/router"
	"github.com/xaenox/support-monitor/internal/status"
	"github.com/xaenox/support-monitor/internal/storage"
	"github.com/xaenox/support-monitor/internal/telemetry"
	"github.com/xaenox/support-monitor/internal/tracker"
	"github.com/xaenox/support-monitor/internal/usage"
	"github.com/xaenox/support-monitor/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	// Initialize logger
	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.HistoryStore
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize tracing
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.OTelEnabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		TraceHTTP:    cfg.Telemetry.TraceHTTP,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Initialize classifier
	usageTracker := usage.NewTracker(cfg.OpenAI.Model, nil, logger)

	predictor, err := classifier.NewPredictor(cfg, tel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize predictor", zap.Error(err))
	}
	clf := classifier.New(predictor, usageTracker, classifier.ConfigFrom(cfg.Classifier), logger)

	// Initialize ticket tracker
	ticketTracker, err := tracker.New(cfg.Tracker, logger)
	if err != nil {
		logger.Fatal("Failed to initialize ticket tracker", zap.Error(err), zap.String("kind", cfg.Tracker.Kind))
	}

	categories := make([]models.Category, 0, len(cfg.Tracker.Categories))
	for _, name := range cfg.Tracker.Categories {
		category, err := models.ParseCategory(name)
		if err != nil {
			logger.Fatal("Invalid tracker category", zap.Error(err))
		}
		categories = append(categories, category)
	}

	// Initialize Telegram
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	sink, err := notifier.New(cfg.Notifier, api)
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err), zap.String("kind", cfg.Notifier.Kind))
	}

	seen := intake.NewSeenFilter(cfg.Intake.SeenCacheSize)
	rt := router.New(sink, ticketTracker, categories, logger)
	processor := bot.NewProcessor(seen, cfg.Telegram.GuildIDs, store, clf, rt, logger)
	b := bot.New(api, processor, usageTracker, cfg.Telegram.Workers, logger)

	if cfg.Status.Addr != "" {
		srv := status.NewServer(usageTracker, seen, logger)
		go func() {
			if err := srv.Run(ctx, cfg.Status.Addr); err != nil {
				logger.Error("Status server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("Support monitor started",
		zap.String("tracker", string(ticketTracker.Kind())),
		zap.String("notifier", cfg.Notifier.Kind),
		zap.Strings("guild_ids", cfg.Telegram.GuildIDs))

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Error("Bot error", zap.Error(err))
	}

	usageTracker.LogSummary()
	logger.Info("Support monitor stopped")
}
