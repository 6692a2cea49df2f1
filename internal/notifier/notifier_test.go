package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/support-monitor/pkg/config"
)

type recordedRun struct {
	name string
	args []string
}

func TestDesktopDarwin(t *testing.T) {
	var runs []recordedRun
	d := &Desktop{goos: "darwin", sound: "default", run: func(_ context.Context, name string, args ...string) error {
		runs = append(runs, recordedRun{name, args})
		return nil
	}}

	err := d.Notify(context.Background(), Notification{Title: "🔔 Bug Report", Subtitle: "#general in Acme", Body: `bob: it says "error"`})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(runs) != 1 || runs[0].name != "/usr/bin/osascript" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	script := runs[0].args[1]
	for _, want := range []string{`display notification "bob: it says \"error\""`, `with title "🔔 Bug Report"`, `subtitle "#general in Acme"`, `sound name "default"`} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q: %s", want, script)
		}
	}
}

func TestDesktopLinux(t *testing.T) {
	var runs []recordedRun
	d := &Desktop{goos: "linux", run: func(_ context.Context, name string, args ...string) error {
		runs = append(runs, recordedRun{name, args})
		return errors.New("no display")
	}}
	err := d.Notify(context.Background(), Notification{Title: "T", Subtitle: "S", Body: "B"})
	if err == nil {
		t.Fatal("run error should be returned")
	}
	if runs[0].name != "notify-send" || runs[0].args[1] != "T · S" || runs[0].args[2] != "B" {
		t.Fatalf("unexpected args %+v", runs[0])
	}
}

func TestDesktopHelperIsBounded(t *testing.T) {
	d := &Desktop{goos: "linux", timeout: 20 * time.Millisecond, run: func(ctx context.Context, _ string, _ ...string) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	start := time.Now()
	err := d.Notify(context.Background(), Notification{Title: "T", Body: "B"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("hung helper held the caller for %v", elapsed)
	}
}

func TestNewDesktopHasDeadline(t *testing.T) {
	var deadline time.Time
	d := NewDesktop("")
	d.run = func(ctx context.Context, _ string, _ ...string) error {
		deadline, _ = ctx.Deadline()
		return nil
	}
	if err := d.Notify(context.Background(), Notification{Title: "T"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > DefaultDesktopTimeout {
		t.Fatalf("expected a deadline within %v, got %v", DefaultDesktopTimeout, deadline)
	}
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	s := &fakeSender{}
	n := NewTelegram(s, -100123)
	if err := n.Notify(context.Background(), Notification{Title: "🔔 Complaint", Subtitle: "#general in Acme", Body: "worst. update. ever!"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", s.sent[0])
	}
	if msg.ChatID != -100123 || msg.ParseMode != "MarkdownV2" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.Text, `worst\. update\. ever\!`) || !strings.Contains(msg.Text, `\#general`) {
		t.Fatalf("text not escaped: %s", msg.Text)
	}

	s.err = errors.New("chat not found")
	if err := n.Notify(context.Background(), Notification{}); err == nil {
		t.Fatal("send error should be returned")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown(`a_b*c\d`); got != `a\_b\*c\\d` {
		t.Fatalf("unexpected escape %q", got)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.NotifierConfig{Kind: "none"}, nil); err != nil {
		t.Fatalf("none: %v", err)
	}
	if n, err := New(config.NotifierConfig{Kind: "desktop"}, nil); err != nil {
		t.Fatalf("desktop: %v", err)
	} else if _, ok := n.(*Desktop); !ok {
		t.Fatalf("expected desktop notifier, got %T", n)
	}
	if _, err := New(config.NotifierConfig{Kind: "telegram"}, &fakeSender{}); err == nil {
		t.Fatal("telegram without chat id should fail")
	}
	if _, err := New(config.NotifierConfig{Kind: "telegram", AdminChatID: 1}, &fakeSender{}); err != nil {
		t.Fatalf("telegram: %v", err)
	}
	if _, err := New(config.NotifierConfig{Kind: "pager"}, nil); err == nil {
		t.Fatal("unknown kind should fail")
	}
}
