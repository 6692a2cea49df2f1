package notifier

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-monitor/pkg/config"
)

type Notification struct {
	Title    string
	Subtitle string
	Body     string
}

// Notifier delivers a notification. Callers treat delivery as best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type runFunc func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Desktop shows a local OS notification: osascript on macOS, notify-send
// elsewhere.
type Desktop struct {
	goos    string
	sound   string
	timeout time.Duration
	run     runFunc
}

// DefaultDesktopTimeout bounds a single osascript or notify-send run.
const DefaultDesktopTimeout = 10 * time.Second

func NewDesktop(sound string) *Desktop {
	return &Desktop{goos: runtime.GOOS, sound: sound, timeout: DefaultDesktopTimeout, run: execRun}
}

func (d *Desktop) Notify(ctx context.Context, n Notification) error {
	timeout := d.timeout
	if timeout <= 0 {
		timeout = DefaultDesktopTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if d.goos == "darwin" {
		return d.run(ctx, "/usr/bin/osascript", "-e", appleScript(n, d.sound))
	}
	summary := n.Title
	if n.Subtitle != "" {
		summary += " · " + n.Subtitle
	}
	return d.run(ctx, "notify-send", "--app-name=support-monitor", summary, n.Body)
}

func appleScript(n Notification, sound string) string {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Body), escapeAppleScript(n.Title))
	if n.Subtitle != "" {
		script += fmt.Sprintf(` subtitle "%s"`, escapeAppleScript(n.Subtitle))
	}
	if sound != "" {
		script += fmt.Sprintf(` sound name "%s"`, escapeAppleScript(sound))
	}
	return script
}

func escapeAppleScript(text string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
}

// Sender is the part of tgbotapi.BotAPI the Telegram notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to an admin chat.
type Telegram struct {
	sender Sender
	chatID int64
}

func NewTelegram(sender Sender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chatID: chatID}
}

func (t *Telegram) Notify(_ context.Context, n Notification) error {
	text := fmt.Sprintf("*%s*\n_%s_\n\n%s", EscapeMarkdown(n.Title), EscapeMarkdown(n.Subtitle), EscapeMarkdown(n.Body))
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"
	msg.DisableWebPagePreview = true
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}
	return nil
}

// EscapeMarkdown escapes Telegram MarkdownV2 special characters.
func EscapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

type noop struct{}

func (noop) Notify(context.Context, Notification) error { return nil }

// New picks the sink named in cfg. sender is only used by the telegram sink.
func New(cfg config.NotifierConfig, sender Sender) (Notifier, error) {
	switch cfg.Kind {
	case "", "none":
		return noop{}, nil
	case "desktop":
		return NewDesktop(cfg.Sound), nil
	case "telegram":
		if sender == nil || cfg.AdminChatID == 0 {
			return nil, fmt.Errorf("telegram notifier needs a bot and notifier.admin_chat_id")
		}
		return NewTelegram(sender, cfg.AdminChatID), nil
	}
	return nil, fmt.Errorf("unknown notifier kind %q", cfg.Kind)
}
