package models

type TrackerKind string

const (
	TrackerNone   TrackerKind = "none"
	TrackerGitHub TrackerKind = "github"
	TrackerLinear TrackerKind = "linear"
)

// TicketInfo describes a created or matched ticket.
type TicketInfo struct {
	Tracker TrackerKind `json:"tracker"`
	ID      string      `json:"id"`
	URL     string      `json:"url"`
	Title   string      `json:"title"`
}

// MessageContext is everything the tracker needs to file a ticket.
type MessageContext struct {
	Message        InboundMessage
	Classification ClassificationResult
}
