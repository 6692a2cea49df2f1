// Command eval scores the configured classifier against the built-in
// labelled messages and prints a per-case report.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xaenox/support-monitor/internal/classifier"
	"github.com/xaenox/support-monitor/internal/eval"
	"github.com/xaenox/support-monitor/internal/telemetry"
	"github.com/xaenox/support-monitor/internal/usage"
	"github.com/xaenox/support-monitor/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	provider := flag.String("provider", "", "override classifier.provider (openai or keyword)")
	minCategory := flag.Float64("min-category", 0, "exit non-zero when the category_match average is below this")
	flag.Parse()

	logger, _ := zap.NewDevelopment(zap.IncreaseLevel(zapcore.InfoLevel))
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if *provider != "" {
		cfg.Classifier.Provider = *provider
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.OTelEnabled,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName + "-eval",
		TraceHTTP:    cfg.Telemetry.TraceHTTP,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	predictor, err := classifier.NewPredictor(cfg, tel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize predictor", zap.Error(err))
	}
	usageTracker := usage.NewTracker(cfg.OpenAI.Model, nil, logger)
	clf := classifier.New(predictor, usageTracker, classifier.ConfigFrom(cfg.Classifier), logger)

	report := eval.Run(ctx, clf, eval.Dataset(), eval.DefaultEvaluators(), logger)
	if err := report.Write(os.Stdout); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}
	usageTracker.LogSummary()

	if avg := report.Averages[eval.CategoryMatch{}.Name()]; avg < *minCategory {
		logger.Error("Category accuracy below threshold",
			zap.Float64("average", avg),
			zap.Float64("min", *minCategory))
		os.Exit(1)
	}
}
