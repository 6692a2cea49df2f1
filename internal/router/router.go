// Package router decides what happens to a message once it is classified.
package router

import (
	"context"
	"fmt"

	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/internal/notifier"
	"github.com/xaenox/support-monitor/internal/tracker"
	"go.uber.org/zap"
)

const maxNotificationLength = 200

// Outcome reports which side effects ran for a message.
type Outcome struct {
	Notified      bool
	TicketSkipped bool
	Ticket        *models.TicketInfo
	NotifyErr     error
	TicketErr     error
}

type Router struct {
	notifier   notifier.Notifier
	tracker    tracker.Tracker
	categories map[models.Category]struct{}
	logger     *zap.Logger
}

// New builds a router. An empty categories list files tickets for every
// message that requires attention.
func New(n notifier.Notifier, t tracker.Tracker, categories []models.Category, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[models.Category]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}
	return &Router{notifier: n, tracker: t, categories: allowed, logger: logger}
}

// Route notifies and files a ticket for results that require attention.
// The two side effects are independent: a failure in one never stops the
// other and no error escapes.
func (r *Router) Route(ctx context.Context, msg models.InboundMessage, result models.ClassificationResult) Outcome {
	var out Outcome
	if !result.RequiresAttention {
		return out
	}

	out.NotifyErr = r.notify(ctx, msg, result)
	out.Notified = out.NotifyErr == nil
	if out.NotifyErr != nil {
		r.logger.Error("Failed to send notification",
			zap.String("message_id", msg.ID),
			zap.Error(out.NotifyErr))
	}

	if !r.ticketEligible(result.Category) {
		out.TicketSkipped = true
		return out
	}

	info, err := r.createTicket(ctx, models.MessageContext{Message: msg, Classification: result})
	if err != nil {
		out.TicketErr = err
		r.logger.Error("Failed to create ticket",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return out
	}
	out.Ticket = &info
	r.logger.Info("Ticket ready",
		zap.String("message_id", msg.ID),
		zap.String("ticket_id", info.ID),
		zap.String("ticket_url", info.URL))
	return out
}

// NotificationFor renders the notification for a message.
func NotificationFor(msg models.InboundMessage, result models.ClassificationResult) notifier.Notification {
	content := []rune(msg.Content)
	body := msg.Content
	if len(content) > maxNotificationLength {
		body = string(content[:maxNotificationLength-3]) + "..."
	}
	return notifier.Notification{
		Title:    "🔔 " + result.Category.Title(),
		Subtitle: fmt.Sprintf("#%s in %s", msg.ChannelName(), msg.GuildName()),
		Body:     fmt.Sprintf("%s: %s", msg.Author.Name, body),
	}
}

func (r *Router) notify(ctx context.Context, msg models.InboundMessage, result models.ClassificationResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panicked: %v", p)
		}
	}()

	n := NotificationFor(msg, result)
	r.logger.Info("Sending notification",
		zap.String("title", n.Title),
		zap.String("subtitle", n.Subtitle))
	return r.notifier.Notify(ctx, n)
}

func (r *Router) ticketEligible(category models.Category) bool {
	if r.tracker == nil || r.tracker.Kind() == models.TrackerNone {
		return false
	}
	if len(r.categories) == 0 {
		return true
	}
	if _, ok := r.categories[category]; !ok {
		r.logger.Debug("Skipping ticket creation for category",
			zap.String("category", string(category)))
		return false
	}
	return true
}

func (r *Router) createTicket(ctx context.Context, mc models.MessageContext) (info models.TicketInfo, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tracker panicked: %v", p)
		}
	}()
	return r.tracker.CreateOrFind(ctx, mc)
}
