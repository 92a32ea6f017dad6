package domain

import "time"

// LogStatus is the terminal outcome of a send attempt.
type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// DeliveryStatus tracks the post-send lifecycle reported by the provider.
type DeliveryStatus string

const (
	DeliverySent       DeliveryStatus = "sent"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryBounced    DeliveryStatus = "bounced"
	DeliveryComplained DeliveryStatus = "complained"
	DeliveryOpened     DeliveryStatus = "opened"
	DeliveryClicked    DeliveryStatus = "clicked"
	DeliveryDelayed    DeliveryStatus = "delayed"
)

// DeliveryLogEntry is the historical record of one actually-attempted message
// and its subsequent delivery/engagement lifecycle. Created once by the queue
// worker; mutated only by the provider event processor afterwards.
//
// Engagement is monotonic: open/click counters only grow, and the
// first-opened/first-clicked timestamps are set exactly once.
type DeliveryLogEntry struct {
	ID                string
	Category          MessageCategory
	Recipient         string
	SenderEmail       string
	Subject           string
	Status            LogStatus
	DeliveryStatus    *DeliveryStatus
	BounceDetail      *string
	OpenCount         int
	ClickCount        int
	DeliveredAt       *time.Time
	FirstOpenedAt     *time.Time
	FirstClickedAt    *time.Time
	ProviderMessageID *string
	RawPayload        []byte
	CorrelationID     *string
	ErrorMessage      *string
	CreatedAt         time.Time
}
