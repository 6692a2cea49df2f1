package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	maxChannelMessages      = 5
	maxChannelMessageLength = 100
)

// AuthorContext is what the classifier knows about a message author.
type AuthorContext struct {
	ID           string
	Name         string
	JoinedAt     *time.Time
	MessageCount *int
	// Now is the reference time for membership age; zero means time.Now.
	Now time.Time
}

// ChannelContext is what the classifier knows about the channel.
type ChannelContext struct {
	Name           string
	GuildName      string
	RecentMessages []string
}

// MembershipTier buckets days since joining.
func MembershipTier(days int) string {
	switch {
	case days < 7:
		return "new"
	case days < 30:
		return "recent"
	default:
		return "established"
	}
}

// ActivityLevel buckets a message count.
func ActivityLevel(count int) string {
	switch {
	case count < 5:
		return "low"
	case count < 50:
		return "moderate"
	default:
		return "high"
	}
}

type authorTool struct {
	author AuthorContext
}

func (authorTool) Name() string { return "get_author_context" }

func (authorTool) Description() string {
	return "Returns how long the author has been a member and how active they are. " +
		"New members are more likely to need help."
}

func (t authorTool) Invoke(context.Context) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Author: %s\n", t.author.Name)

	if t.author.JoinedAt != nil {
		now := t.author.Now
		if now.IsZero() {
			now = time.Now()
		}
		days := int(now.Sub(*t.author.JoinedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		fmt.Fprintf(&b, "Membership: %s member (joined %d days ago)\n", MembershipTier(days), days)
	} else {
		b.WriteString("Membership: unknown\n")
	}

	if t.author.MessageCount != nil {
		fmt.Fprintf(&b, "Activity: %s (%d messages)\n", ActivityLevel(*t.author.MessageCount), *t.author.MessageCount)
	} else {
		b.WriteString("Activity: unknown\n")
	}
	return b.String(), nil
}

type channelTool struct {
	channel ChannelContext
}

func (channelTool) Name() string { return "get_channel_context" }

func (channelTool) Description() string {
	return "Returns the most recent messages posted in the channel before this one."
}

func (t channelTool) Invoke(context.Context) (string, error) {
	recent := t.channel.RecentMessages
	if len(recent) > maxChannelMessages {
		recent = recent[len(recent)-maxChannelMessages:]
	}
	if len(recent) == 0 {
		return fmt.Sprintf("No recent messages in #%s.", t.channel.Name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent messages in #%s:\n", t.channel.Name)
	for _, msg := range recent {
		fmt.Fprintf(&b, "- %s\n", truncateRunes(msg, maxChannelMessageLength))
	}
	return b.String(), nil
}

// ContextTools returns the author and channel lookups for one message.
func ContextTools(author AuthorContext, channel ChannelContext) []ContextTool {
	return []ContextTool{authorTool{author: author}, channelTool{channel: channel}}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
