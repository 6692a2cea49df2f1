package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/support-monitor/internal/classifier"
	"github.com/xaenox/support-monitor/internal/intake"
	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/internal/router"
	"github.com/xaenox/support-monitor/internal/storage"
	"go.uber.org/zap"
)

const recentMessagesLimit = 5

// Skip reasons reported in Result.Skipped.
const (
	SkipBot       = "bot author"
	SkipNoGuild   = "no server context"
	SkipGuild     = "guild not monitored"
	SkipDuplicate = "already processed"
	SkipEmpty     = "empty content"
)

// Result describes what happened to one inbound message.
type Result struct {
	RunID          string
	Skipped        string
	Classification *models.ClassificationResult
	Routed         router.Outcome
	Err            error
}

// Processor runs one message through intake, classification and routing.
type Processor struct {
	seen       *intake.SeenFilter
	guilds     map[string]struct{}
	history    storage.HistoryStore
	classifier *classifier.Classifier
	router     *router.Router
	logger     *zap.Logger
}

// NewProcessor wires the pipeline. An empty guildIDs list monitors every
// group. history may be nil, in which case author and channel context come
// only from the message itself.
func NewProcessor(seen *intake.SeenFilter, guildIDs []string, history storage.HistoryStore,
	clf *classifier.Classifier, rt *router.Router, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	guilds := make(map[string]struct{}, len(guildIDs))
	for _, id := range guildIDs {
		guilds[id] = struct{}{}
	}
	return &Processor{
		seen:       seen,
		guilds:     guilds,
		history:    history,
		classifier: clf,
		router:     rt,
		logger:     logger,
	}
}

// Process never panics and never returns an error to the caller; the
// Result carries whatever went wrong.
func (p *Processor) Process(ctx context.Context, msg models.InboundMessage) (res Result) {
	if reason := p.filter(msg); reason != "" {
		res.Skipped = reason
		return res
	}

	res.RunID = uuid.New().String()
	logger := p.logger.With(
		zap.String("run_id", res.RunID),
		zap.String("message_id", msg.ID))

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic while processing message: %v", r)
			logger.Error("Recovered from panic", zap.Any("panic", r))
		}
	}()

	author, channel := p.enrich(ctx, msg, logger)

	logger.Debug("Classifying message",
		zap.String("author", msg.Author.Name),
		zap.String("channel", msg.ChannelName()),
		zap.String("guild", msg.GuildName()))

	out, err := p.classifier.Classify(ctx, msg.Content, author, channel)
	if err != nil {
		res.Err = err
		logger.Error("Failed to classify message", zap.Error(err))
		return res
	}
	result := out.Result
	res.Classification = &result

	logger.Info("Message classified",
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("requires_attention", result.RequiresAttention),
		zap.Int("attempts", out.Attempts))

	res.Routed = p.router.Route(ctx, msg, result)
	return res
}

func (p *Processor) filter(msg models.InboundMessage) string {
	if msg.Author.IsBot {
		return SkipBot
	}
	if msg.Guild == nil {
		return SkipNoGuild
	}
	if len(p.guilds) > 0 {
		if _, ok := p.guilds[msg.Guild.ID]; !ok {
			return SkipGuild
		}
	}
	if !p.seen.ShouldProcess(msg.ID) {
		return SkipDuplicate
	}
	if strings.TrimSpace(msg.Content) == "" {
		return SkipEmpty
	}
	return ""
}

// enrich fills in author and channel context. History lookups happen
// before the message is recorded so it never appears in its own context.
func (p *Processor) enrich(ctx context.Context, msg models.InboundMessage, logger *zap.Logger) (classifier.AuthorContext, classifier.ChannelContext) {
	author := classifier.AuthorContext{
		ID:           msg.Author.ID,
		Name:         msg.Author.Name,
		JoinedAt:     msg.Author.JoinedAt,
		MessageCount: msg.Author.MessageCount,
	}
	channel := classifier.ChannelContext{
		Name:           msg.ChannelName(),
		GuildName:      msg.GuildName(),
		RecentMessages: msg.RecentChannelMessages,
	}
	if p.history == nil {
		return author, channel
	}

	if author.MessageCount == nil {
		count, err := p.history.AuthorMessageCount(ctx, msg.Guild.ID, msg.Author.ID)
		if err != nil {
			logger.Warn("Failed to load author activity", zap.Error(err))
		} else {
			author.MessageCount = &count
		}
	}
	if author.JoinedAt == nil {
		joinedAt, err := p.history.AuthorJoinedAt(ctx, msg.Guild.ID, msg.Author.ID)
		if err != nil {
			logger.Warn("Failed to load author join time", zap.Error(err))
		} else {
			author.JoinedAt = joinedAt
		}
	}
	if len(channel.RecentMessages) == 0 {
		recent, err := p.history.RecentChannelMessages(ctx, msg.Channel.ID, recentMessagesLimit)
		if err != nil {
			logger.Warn("Failed to load channel history", zap.Error(err))
		} else {
			channel.RecentMessages = recent
		}
	}

	if err := p.history.RecordMessage(ctx, msg); err != nil {
		logger.Warn("Failed to record message", zap.Error(err))
	}
	return author, channel
}

// RecordJoin stores when an author joined a guild so later messages can be
// placed in a membership tier. Bots are ignored.
func (p *Processor) RecordJoin(ctx context.Context, guild models.Guild, author models.Author, at time.Time) {
	if p.history == nil || author.IsBot {
		return
	}
	if err := p.history.RecordJoin(ctx, guild.ID, author.ID, at); err != nil {
		p.logger.Warn("Failed to record member join",
			zap.String("guild_id", guild.ID),
			zap.String("author_id", author.ID),
			zap.Error(err))
		return
	}
	p.logger.Debug("Recorded member join",
		zap.String("guild_id", guild.ID),
		zap.String("author_id", author.ID))
}
