package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/internal/usage"
	"go.uber.org/zap"
)

const SystemPrompt = `You are a message classifier for a community support server.

Your job is to analyze messages and determine if they require attention from support staff.

Messages that require attention include:
- Support requests: Users asking for help with a product, service, or technical issue
- Complaints: Users expressing frustration or dissatisfaction
- Bug reports: Users reporting problems, errors, or unexpected behavior

Messages that do NOT require attention include:
- General chat: Casual conversation, greetings, jokes
- Off-topic discussion
- Messages that are unclear, clearly resolved or just acknowledgments

Be conservative - only flag messages that genuinely need human attention.
Consider the context and tone of the message.`

const lowConfidenceInstruction = "Low confidence classification that requires attention. " +
	"Please re-analyze the message more carefully."

// ErrClassificationFailed is matched by every error Classify returns.
var ErrClassificationFailed = errors.New("classification failed")

// ClassificationError explains why Classify gave up.
type ClassificationError struct {
	Reason   string
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed after %d attempts: %s: %v", e.Attempts, e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed after %d attempts: %s", e.Attempts, e.Reason)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

func (e *ClassificationError) Is(target error) bool { return target == ErrClassificationFailed }

type Config struct {
	MinConfidence  float64
	RequestRetries int
	OutputRetries  int
	AttemptTimeout time.Duration
	ContextTools   bool
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:  0.3,
		RequestRetries: 2,
		OutputRetries:  3,
		AttemptTimeout: 60 * time.Second,
		ContextTools:   true,
	}
}

// Output is an accepted classification with the usage of every attempt.
type Output struct {
	Result   models.ClassificationResult
	Usage    Usage
	Attempts int
}

// Classifier drives a Predictor: it validates each candidate, repairs the
// attention flag, retries within budget and records usage once per call.
type Classifier struct {
	predictor Predictor
	usage     *usage.Tracker
	cfg       Config
	logger    *zap.Logger
}

func New(predictor Predictor, tracker *usage.Tracker, cfg Config, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		predictor: predictor,
		usage:     tracker,
		cfg:       cfg,
		logger:    logger,
	}
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeRejected
	outcomeFailed
)

type attemptResult struct {
	outcome    outcome
	result     models.ClassificationResult
	usage      Usage
	correction Correction
	err        error
}

// BuildPrompt renders the per-message instruction.
func BuildPrompt(content string, author AuthorContext, channel ChannelContext) string {
	return fmt.Sprintf(`Classify this message:

Channel: #%s
Author: %s
Message: %s

Determine the category and whether it requires support staff attention.`, channel.Name, author.Name, content)
}

// Classify returns an accepted result or an error matching ErrClassificationFailed.
func (c *Classifier) Classify(ctx context.Context, content string, author AuthorContext, channel ChannelContext) (Output, error) {
	req := Request{
		System: SystemPrompt,
		Prompt: BuildPrompt(content, author, channel),
	}
	if c.cfg.ContextTools {
		req.Tools = ContextTools(author, channel)
	}

	var (
		total           Usage
		requestFailures int
		rejections      int
	)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Output{}, &ClassificationError{Reason: "cancelled", Attempts: attempt - 1, Err: err}
		}

		res := c.attempt(ctx, req)
		total.Add(res.usage)

		switch res.outcome {
		case outcomeAccepted:
			if c.usage != nil {
				c.usage.Record(total.InputTokens, total.OutputTokens)
			}
			c.logger.Debug("Classified message",
				zap.String("author", author.Name),
				zap.String("category", string(res.result.Category)),
				zap.Float64("confidence", res.result.Confidence),
				zap.Bool("requires_attention", res.result.RequiresAttention),
				zap.Int64("tokens", total.TotalTokens()),
				zap.Int("attempts", attempt))
			return Output{Result: res.result, Usage: total, Attempts: attempt}, nil

		case outcomeRejected:
			rejections++
			if rejections > c.cfg.OutputRetries {
				c.logger.Error("Output retries exhausted",
					zap.String("author", author.Name),
					zap.Int("attempts", attempt),
					zap.Error(res.err))
				return Output{}, &ClassificationError{Reason: "output validation retries exhausted", Attempts: attempt, Err: res.err}
			}
			c.logger.Warn("Rejected classification, retrying",
				zap.String("author", author.Name),
				zap.Int("rejections", rejections),
				zap.String("instruction", res.correction.Instruction))
			req.Corrections = append(req.Corrections, res.correction)

		case outcomeFailed:
			requestFailures++
			if requestFailures > c.cfg.RequestRetries {
				c.logger.Error("Failed to classify message",
					zap.String("author", author.Name),
					zap.Int("attempts", attempt),
					zap.Error(res.err))
				return Output{}, &ClassificationError{Reason: "predictor request retries exhausted", Attempts: attempt, Err: res.err}
			}
			c.logger.Warn("Predictor request failed, retrying",
				zap.String("author", author.Name),
				zap.Int("failures", requestFailures),
				zap.Error(res.err))
		}
	}
}

func (c *Classifier) attempt(ctx context.Context, req Request) attemptResult {
	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}

	pred, err := c.predictor.Predict(ctx, req)
	if err != nil {
		var outErr *OutputError
		if errors.As(err, &outErr) {
			return attemptResult{
				outcome: outcomeRejected,
				usage:   pred.Usage,
				err:     err,
				correction: Correction{
					Answer:      outErr.Raw,
					Instruction: fmt.Sprintf("Your answer could not be used: %s. Reply with a single valid JSON object.", outErr.Reason),
				},
			}
		}
		return attemptResult{outcome: outcomeFailed, usage: pred.Usage, err: err}
	}

	result, rejection := c.validate(pred.Result)
	if rejection != "" {
		return attemptResult{
			outcome:    outcomeRejected,
			usage:      pred.Usage,
			err:        errors.New(rejection),
			correction: Correction{Answer: pred.Raw, Instruction: rejection},
		}
	}
	return attemptResult{outcome: outcomeAccepted, result: result, usage: pred.Usage}
}

// validate repairs the attention flag and returns a non-empty instruction
// when the candidate must be retried.
func (c *Classifier) validate(result models.ClassificationResult) (models.ClassificationResult, string) {
	expected := result.Category.RequiresAttention()
	if result.RequiresAttention != expected {
		c.logger.Warn("Classification inconsistency, correcting requires_attention",
			zap.String("category", string(result.Category)),
			zap.Bool("requires_attention", result.RequiresAttention),
			zap.Bool("corrected", expected))
		result.RequiresAttention = expected
	}

	if result.Confidence < c.cfg.MinConfidence && result.RequiresAttention {
		return result, lowConfidenceInstruction
	}
	return result, ""
}
