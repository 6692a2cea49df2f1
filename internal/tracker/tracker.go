// Package tracker files tickets for messages that need attention and makes
// sure the same message content is never filed twice.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/support-monitor/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultDedupWindow = 50
	DefaultCallTimeout = 30 * time.Second

	titleMaxLength = 50
	defaultColor   = "ededed"
)

var (
	ErrConfiguration  = errors.New("tracker configuration error")
	ErrNotImplemented = errors.New("tracker not implemented")
)

// Tracker is what the router talks to.
type Tracker interface {
	Kind() models.TrackerKind
	CreateOrFind(ctx context.Context, mc models.MessageContext) (models.TicketInfo, error)
}

// Ticket is an existing ticket as returned by a backend.
type Ticket struct {
	ID    string
	URL   string
	Title string
	Body  string
}

// Backend is the transport to a concrete ticket system.
type Backend interface {
	// ListOpenTickets returns up to limit open tickets, newest first.
	ListOpenTickets(ctx context.Context, limit int) ([]Ticket, error)
	ListLabels(ctx context.Context) ([]string, error)
	CreateLabel(ctx context.Context, name, color string) error
	CreateTicket(ctx context.Context, title, body string, labels []string) (Ticket, error)
}

var labelMap = map[models.Category][]string{
	models.CategorySupportRequest: {"support", "needs-response"},
	models.CategoryComplaint:      {"complaint", "needs-response"},
	models.CategoryBugReport:      {"bug", "needs-triage"},
	models.CategoryGeneralChat:    {},
	models.CategoryOther:          {"needs-triage"},
}

var labelColors = map[string]string{
	"support":        "0366d6",
	"complaint":      "d93f0b",
	"bug":            "d73a4a",
	"needs-response": "fbca04",
	"needs-triage":   "7057ff",
}

// Labels returns the label set for a category.
func Labels(c models.Category) []string {
	return append([]string(nil), labelMap[c]...)
}

// LabelColor returns the hex color used when creating a label.
func LabelColor(name string) string {
	if color, ok := labelColors[name]; ok {
		return color
	}
	return defaultColor
}

// BuildTitle renders "[Category] first 50 chars...".
func BuildTitle(mc models.MessageContext) string {
	content := []rune(mc.Message.Content)
	preview := string(content)
	if len(content) > titleMaxLength {
		preview = string(content[:titleMaxLength]) + "..."
	}
	return fmt.Sprintf("[%s] %s", mc.Classification.Category.Title(), preview)
}

const (
	contentHeading        = "## Message Content\n\n"
	classificationHeading = "\n\n## Classification\n\n"
)

// QuotedContent is the exact block BuildBody writes for the message text.
func QuotedContent(content string) string {
	return "> " + content
}

// quotedSection extracts the message block from a body written by BuildBody.
func quotedSection(body string) (string, bool) {
	start := strings.Index(body, contentHeading)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(contentHeading):]
	end := strings.LastIndex(rest, classificationHeading)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// sameContent reports whether body quotes exactly content. A ticket for
// "help with password reset" does not match "help".
func sameContent(body, content string) bool {
	section, ok := quotedSection(strings.ReplaceAll(body, "\r\n", "\n"))
	return ok && section == strings.TrimSpace(QuotedContent(content))
}

func BuildBody(mc models.MessageContext) string {
	msg := mc.Message
	c := mc.Classification
	return fmt.Sprintf(`## Chat Message

**Author:** %s
**Channel:** #%s
**Server:** %s
**Link:** %s

`+contentHeading+`%s`+classificationHeading+`- **Category:** %s
- **Confidence:** %.0f%%
- **Reason:** %s

---
<!-- message_id:%s -->
`, msg.Author.Name, msg.ChannelName(), msg.GuildName(), msg.Permalink,
		QuotedContent(msg.Content),
		c.Category, c.Confidence*100, c.Reason,
		msg.ID)
}

type EngineConfig struct {
	DedupWindow  int
	CreateLabels bool
	CallTimeout  time.Duration
}

// Engine implements Tracker on top of a Backend: it searches recent open
// tickets for the same quoted content before creating a new one.
type Engine struct {
	kind    models.TrackerKind
	backend Backend
	cfg     EngineConfig
	locks   *keyedMutex
	logger  *zap.Logger
}

func NewEngine(kind models.TrackerKind, backend Backend, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		kind:    kind,
		backend: backend,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
}

func (e *Engine) Kind() models.TrackerKind { return e.kind }

func (e *Engine) CreateOrFind(ctx context.Context, mc models.MessageContext) (models.TicketInfo, error) {
	unlock := e.locks.Lock(mc.Message.Content)
	defer unlock()

	if existing, ok := e.findExisting(ctx, mc.Message.Content); ok {
		e.logger.Info("Duplicate ticket found for content",
			zap.String("ticket_id", existing.ID),
			zap.String("message_id", mc.Message.ID))
		return existing, nil
	}

	title := BuildTitle(mc)
	labels := Labels(mc.Classification.Category)
	if e.cfg.CreateLabels && len(labels) > 0 {
		e.ensureLabels(ctx, labels)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	ticket, err := e.backend.CreateTicket(callCtx, title, BuildBody(mc), labels)
	if err != nil {
		return models.TicketInfo{}, fmt.Errorf("create ticket: %w", err)
	}

	e.logger.Info("Created ticket",
		zap.String("tracker", string(e.kind)),
		zap.String("ticket_id", ticket.ID),
		zap.String("title", title))
	return models.TicketInfo{Tracker: e.kind, ID: ticket.ID, URL: ticket.URL, Title: title}, nil
}

// findExisting reports a match in the dedup window. Search errors are
// logged and treated as no match.
func (e *Engine) findExisting(ctx context.Context, content string) (models.TicketInfo, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	tickets, err := e.backend.ListOpenTickets(callCtx, e.cfg.DedupWindow)
	if err != nil {
		e.logger.Warn("Failed to search for existing tickets, proceeding with creation", zap.Error(err))
		return models.TicketInfo{}, false
	}
	if len(tickets) > e.cfg.DedupWindow {
		tickets = tickets[:e.cfg.DedupWindow]
	}

	for _, t := range tickets {
		if sameContent(t.Body, content) {
			return models.TicketInfo{Tracker: e.kind, ID: t.ID, URL: t.URL, Title: t.Title}, true
		}
	}
	return models.TicketInfo{}, false
}

func (e *Engine) ensureLabels(ctx context.Context, labels []string) {
	listCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	existing, err := e.backend.ListLabels(listCtx)
	cancel()
	if err != nil {
		e.logger.Warn("Failed to list labels", zap.Error(err))
		return
	}
	have := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		have[name] = struct{}{}
	}

	for _, label := range labels {
		if _, ok := have[label]; ok {
			continue
		}
		if err := e.createLabel(ctx, label); err != nil {
			e.logger.Debug("Label may already exist", zap.String("label", label), zap.Error(err))
			continue
		}
		e.logger.Info("Created label", zap.String("label", label))
	}
}

func (e *Engine) createLabel(ctx context.Context, label string) error {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.backend.CreateLabel(callCtx, label, LabelColor(label))
}

// keyedMutex serialises work per key and drops idle keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
