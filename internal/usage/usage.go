package usage

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pricing is the cost in USD per million tokens.
type Pricing struct {
	Input  float64
	Output float64
}

// DefaultPricing covers locally hosted models, which cost nothing.
var DefaultPricing = map[string]Pricing{
	"default": {Input: 0, Output: 0},
}

// Stats is a point-in-time copy of the aggregated counters.
type Stats struct {
	TotalInputTokens  int64      `json:"total_input_tokens"`
	TotalOutputTokens int64      `json:"total_output_tokens"`
	TotalRequests     int64      `json:"total_requests"`
	FirstRequestAt    *time.Time `json:"first_request_at,omitempty"`
	LastRequestAt     *time.Time `json:"last_request_at,omitempty"`
}

func (s Stats) TotalTokens() int64 {
	return s.TotalInputTokens + s.TotalOutputTokens
}

// Tracker aggregates token usage across concurrent classification calls.
type Tracker struct {
	mu      sync.Mutex
	model   string
	pricing map[string]Pricing
	stats   Stats
	now     func() time.Time
	logger  *zap.Logger
}

// NewTracker builds a tracker for model. A nil pricing table means DefaultPricing.
func NewTracker(model string, pricing map[string]Pricing, logger *zap.Logger) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		model:   model,
		pricing: pricing,
		now:     time.Now,
		logger:  logger,
	}
}

// Record adds one request worth of tokens.
func (t *Tracker) Record(inputTokens, outputTokens int64) {
	now := t.now().UTC()

	t.mu.Lock()
	t.stats.TotalInputTokens += inputTokens
	t.stats.TotalOutputTokens += outputTokens
	t.stats.TotalRequests++
	if t.stats.FirstRequestAt == nil {
		first := now
		t.stats.FirstRequestAt = &first
	}
	last := now
	t.stats.LastRequestAt = &last
	totalTokens := t.stats.TotalTokens()
	totalRequests := t.stats.TotalRequests
	t.mu.Unlock()

	t.logger.Debug("Usage recorded",
		zap.Int64("input_tokens", inputTokens),
		zap.Int64("output_tokens", outputTokens),
		zap.Int64("cumulative_tokens", totalTokens),
		zap.Int64("cumulative_requests", totalRequests))
}

// Snapshot returns a copy that is safe to keep and read.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	if s.FirstRequestAt != nil {
		first := *s.FirstRequestAt
		s.FirstRequestAt = &first
	}
	if s.LastRequestAt != nil {
		last := *s.LastRequestAt
		s.LastRequestAt = &last
	}
	return s
}

// EstimateCost prices the current totals with the model's pricing entry,
// falling back to the "default" entry.
func (t *Tracker) EstimateCost() float64 {
	p, ok := t.pricing[t.model]
	if !ok {
		p = t.pricing["default"]
	}
	s := t.Snapshot()
	return float64(s.TotalInputTokens)/1_000_000*p.Input +
		float64(s.TotalOutputTokens)/1_000_000*p.Output
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = Stats{}
}

func (t *Tracker) Model() string {
	return t.model
}

// LogSummary writes the totals and estimated cost at info level.
func (t *Tracker) LogSummary() {
	s := t.Snapshot()
	t.logger.Info("Usage summary",
		zap.String("model", t.model),
		zap.Int64("requests", s.TotalRequests),
		zap.Int64("input_tokens", s.TotalInputTokens),
		zap.Int64("output_tokens", s.TotalOutputTokens),
		zap.Float64("estimated_cost_usd", t.EstimateCost()))
}
