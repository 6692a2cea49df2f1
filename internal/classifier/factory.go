package classifier

import (
	"fmt"

	"github.com/xaenox/support-monitor/internal/telemetry"
	"github.com/xaenox/support-monitor/pkg/config"
	"go.uber.org/zap"
)

// NewPredictor builds the predictor named by the classifier config. Model
// calls are traced through tel, which is a no-op when tracing is off.
func NewPredictor(cfg *config.Config, tel *telemetry.Provider, logger *zap.Logger) (Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Classifier.Provider {
	case "keyword":
		logger.Info("Using keyword predictor")
		return NewKeywordPredictor(), nil
	case "openai", "":
		logger.Info("Using OpenAI-compatible predictor",
			zap.String("base_url", cfg.OpenAI.BaseURL),
			zap.String("model", cfg.OpenAI.Model))
		predictor := NewOpenAIPredictor(OpenAIConfig{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			HTTPClient:  tel.HTTPClient(),
		}, logger)
		return NewTracingPredictor(predictor, cfg.OpenAI.Model, tel.TracerProvider()), nil
	}
	return nil, fmt.Errorf("unknown classifier provider %q", cfg.Classifier.Provider)
}

// ConfigFrom maps the classifier section of the app config.
func ConfigFrom(cfg config.ClassifierConfig) Config {
	return Config{
		MinConfidence:  cfg.MinConfidence,
		RequestRetries: cfg.RequestRetries,
		OutputRetries:  cfg.OutputRetries,
		AttemptTimeout: cfg.AttemptTimeout,
		ContextTools:   cfg.ContextTools,
	}
}
