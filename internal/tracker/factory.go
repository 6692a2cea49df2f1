package tracker

import (
	"fmt"

	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/pkg/config"
	"go.uber.org/zap"
)

// New builds the tracker selected in cfg. Missing credentials for the
// selected tracker are a configuration error, never a silent no-op.
func New(cfg config.TrackerConfig, logger *zap.Logger) (Tracker, error) {
	engineCfg := EngineConfig{
		DedupWindow:  cfg.DedupWindow,
		CreateLabels: cfg.CreateLabels,
		CallTimeout:  cfg.CallTimeout,
	}

	switch models.TrackerKind(cfg.Kind) {
	case models.TrackerNone, "":
		return NewNoOp(logger), nil

	case models.TrackerGitHub:
		if cfg.GitHub.Token == "" || cfg.GitHub.Repo == "" {
			return nil, fmt.Errorf("%w: github token and repo are required for github issue tracking", ErrConfiguration)
		}
		backend, err := NewGitHubBackend(cfg.GitHub.Token, cfg.GitHub.Repo, nil)
		if err != nil {
			return nil, err
		}
		return NewEngine(models.TrackerGitHub, backend, engineCfg, logger), nil

	case models.TrackerLinear:
		if cfg.Linear.APIKey == "" || cfg.Linear.TeamID == "" {
			return nil, fmt.Errorf("%w: linear api key and team id are required for linear issue tracking", ErrConfiguration)
		}
		return nil, fmt.Errorf("%w: linear issue tracking", ErrNotImplemented)
	}

	return nil, fmt.Errorf("%w: unknown tracker type %q", ErrConfiguration, cfg.Kind)
}
