package storage

import (
	"context"
	"time"

	"github.com/xaenox/support-monitor/internal/models"
)

// HistoryStore keeps what the classifier's context lookups need: how active
// an author is and what was said recently in a channel.
type HistoryStore interface {
	RecordMessage(ctx context.Context, msg models.InboundMessage) error
	AuthorMessageCount(ctx context.Context, guildID, authorID string) (int, error)
	// RecentChannelMessages returns up to limit contents, oldest first.
	RecentChannelMessages(ctx context.Context, channelID string, limit int) ([]string, error)
	// RecordJoin notes when an author joined a guild. RecordMessage also
	// counts as a sighting, so the earliest of the two wins.
	RecordJoin(ctx context.Context, guildID, authorID string, at time.Time) error
	// AuthorJoinedAt returns nil when the author has never been seen.
	AuthorJoinedAt(ctx context.Context, guildID, authorID string) (*time.Time, error)
	Close() error
}
