package domain

import "time"

// ProviderEventType enumerates the asynchronous callback kinds a provider may
// deliver about a previously submitted message.
type ProviderEventType string

const (
	EventSent       ProviderEventType = "sent"
	EventDelivered  ProviderEventType = "delivered"
	EventBounced    ProviderEventType = "bounced"
	EventComplained ProviderEventType = "complained"
	EventOpened     ProviderEventType = "opened"
	EventClicked    ProviderEventType = "clicked"
	EventDelayed    ProviderEventType = "delayed"
)

// ProviderEvent is one raw callback, persisted append-only so replays are
// always reconstructable. Unmatched events are stored too.
type ProviderEvent struct {
	ID                string
	EventType         string
	ProviderMessageID string
	Recipient         string
	Payload           []byte
	Matched           bool
	CreatedAt         time.Time
}
