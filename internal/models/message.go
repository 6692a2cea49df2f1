package models

import "time"

// Author identifies who wrote a message.
type Author struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	IsBot        bool       `json:"is_bot"`
	JoinedAt     *time.Time `json:"joined_at,omitempty"`
	MessageCount *int       `json:"message_count,omitempty"`
}

// Channel is the conversation a message was posted in.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Guild is the community (server, group) a channel belongs to.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InboundMessage is a chat message as received from the event source.
// Guild is nil when the message arrived without a server context.
type InboundMessage struct {
	ID                    string    `json:"id"`
	Content               string    `json:"content"`
	Author                Author    `json:"author"`
	Channel               Channel   `json:"channel"`
	Guild                 *Guild    `json:"guild,omitempty"`
	Permalink             string    `json:"permalink"`
	CreatedAt             time.Time `json:"created_at"`
	RecentChannelMessages []string  `json:"recent_channel_messages,omitempty"`
}

// GuildName returns the guild name or "DM" when there is none.
func (m InboundMessage) GuildName() string {
	if m.Guild == nil {
		return "DM"
	}
	return m.Guild.Name
}

// ChannelName returns the channel name or "unknown".
func (m InboundMessage) ChannelName() string {
	if m.Channel.Name == "" {
		return "unknown"
	}
	return m.Channel.Name
}
