package tracker

import (
	"context"

	"github.com/xaenox/support-monitor/internal/models"
	"go.uber.org/zap"
)

// NoOp is used when ticket tracking is disabled.
type NoOp struct {
	logger *zap.Logger
}

func NewNoOp(logger *zap.Logger) *NoOp {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoOp{logger: logger}
}

func (n *NoOp) Kind() models.TrackerKind { return models.TrackerNone }

func (n *NoOp) CreateOrFind(_ context.Context, mc models.MessageContext) (models.TicketInfo, error) {
	n.logger.Debug("Ticket tracking disabled, skipping ticket creation")
	return models.TicketInfo{Tracker: models.TrackerNone, Title: BuildTitle(mc)}, nil
}
