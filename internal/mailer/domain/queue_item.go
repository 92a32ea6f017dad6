package domain

import "time"

// QueueStatus is the lifecycle state of a queued outbound message.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// MessageCategory tags which kind of notification a queue item carries.
// At most one non-failed item may exist per (correlation id, category) pair.
type MessageCategory string

const (
	CategoryRecipientResult MessageCategory = "result-for-recipient"
	CategoryOperatorResult  MessageCategory = "result-for-operator"
	CategoryTestMessage     MessageCategory = "test-message"
)

// QueueItem is a durable record of intent to send one message. Items are
// never deleted; failed items stay behind as history.
type QueueItem struct {
	ID            string
	Recipient     string
	SenderEmail   string
	SenderName    string
	Subject       string
	Body          string
	Category      MessageCategory
	CorrelationID *string
	Language      string
	Status        QueueStatus
	Attempts      int
	ErrorMessage  *string
	CreatedAt     time.Time
	SentAt        *time.Time
}
