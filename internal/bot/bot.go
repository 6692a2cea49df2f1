package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sourcegraph/conc/pool"
	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/internal/notifier"
	"github.com/xaenox/support-monitor/internal/usage"
	"go.uber.org/zap"
)

const DefaultWorkers = 8

// API is the subset of tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api       API
	processor *Processor
	usage     *usage.Tracker
	workers   int
	logger    *zap.Logger
}

func New(api API, processor *Processor, tracker *usage.Tracker, workers int, logger *zap.Logger) *Bot {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:       api,
		processor: processor,
		usage:     tracker,
		workers:   workers,
		logger:    logger,
	}
}

// Start consumes updates until ctx is cancelled, then waits for in-flight
// messages to finish.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	p := pool.New().WithMaxGoroutines(b.workers)
	defer p.Wait()

	b.logger.Info("Listening for messages", zap.Int("workers", b.workers))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			message := update.Message
			if message == nil {
				continue
			}
			p.Go(func() {
				b.handleMessage(ctx, message)
			})
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.Int64("chat_id", message.Chat.ID))
		}
	}()

	if len(message.NewChatMembers) > 0 {
		b.handleJoin(ctx, message)
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	b.processor.Process(ctx, toInbound(message))
}

func (b *Bot) handleJoin(ctx context.Context, message *tgbotapi.Message) {
	inbound := toInbound(message)
	if inbound.Guild == nil {
		return
	}
	for i := range message.NewChatMembers {
		user := &message.NewChatMembers[i]
		b.processor.RecordJoin(ctx, *inbound.Guild, models.Author{
			ID:    strconv.FormatInt(user.ID, 10),
			Name:  displayName(user),
			IsBot: user.IsBot,
		}, inbound.CreatedAt)
	}
}

// toInbound maps a Telegram message onto the source-independent model.
// Group and supergroup chats act as both server and channel.
func toInbound(message *tgbotapi.Message) models.InboundMessage {
	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}

	msg := models.InboundMessage{
		ID:        fmt.Sprintf("%d:%d", message.Chat.ID, message.MessageID),
		Content:   content,
		Permalink: permalink(message.Chat, message.MessageID),
		CreatedAt: message.Time(),
	}

	if message.From != nil {
		msg.Author = models.Author{
			ID:    strconv.FormatInt(message.From.ID, 10),
			Name:  displayName(message.From),
			IsBot: message.From.IsBot,
		}
	} else {
		// Channel posts and anonymous senders have no user behind them.
		msg.Author = models.Author{IsBot: true}
	}

	if message.Chat != nil {
		chatID := strconv.FormatInt(message.Chat.ID, 10)
		msg.Channel = models.Channel{ID: chatID, Name: message.Chat.Title}
		if message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
			msg.Guild = &models.Guild{ID: chatID, Name: message.Chat.Title}
		}
	}
	return msg
}

func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	return name
}

func permalink(chat *tgbotapi.Chat, messageID int) string {
	if chat == nil {
		return ""
	}
	if chat.UserName != "" {
		return fmt.Sprintf("https://t.me/%s/%d", chat.UserName, messageID)
	}
	if chat.IsSuperGroup() {
		id := strings.TrimPrefix(strconv.FormatInt(chat.ID, 10), "-100")
		return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
	}
	return ""
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "help", "start":
		b.handleHelp(message)
	case "usage":
		b.handleUsage(message)
	}
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `I watch this chat for messages that need a human: support requests, complaints and bug reports.

When one shows up, staff get a notification and a ticket is filed in the tracker.

Commands:
/help - Show this help message
/usage - Show model token usage`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleUsage(message *tgbotapi.Message) {
	if b.usage == nil {
		b.sendMessage(message.Chat.ID, "Usage tracking is disabled.")
		return
	}
	b.usage.LogSummary()

	s := b.usage.Snapshot()
	response := "*Model usage*\n"
	response += notifier.EscapeMarkdown(fmt.Sprintf("Model: %s", b.usage.Model())) + "\n"
	response += notifier.EscapeMarkdown(fmt.Sprintf("Requests: %d", s.TotalRequests)) + "\n"
	response += notifier.EscapeMarkdown(fmt.Sprintf("Tokens: %d in / %d out", s.TotalInputTokens, s.TotalOutputTokens)) + "\n"
	response += notifier.EscapeMarkdown(fmt.Sprintf("Estimated cost: $%.4f", b.usage.EstimateCost()))

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = "MarkdownV2"
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send usage message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
