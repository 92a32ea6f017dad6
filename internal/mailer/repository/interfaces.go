package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quizgate/mailer/internal/mailer/domain"
)

var (
	ErrQueueItemNotFound     = errors.New("queue item not found")
	ErrQueueItemNotClaimable = errors.New("queue item not claimable")
	ErrLogEntryNotFound      = errors.New("delivery log entry not found")
)

// QueueRepository persists intent-to-send records.
type QueueRepository interface {
	Create(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error)
	GetByID(ctx context.Context, id string) (*domain.QueueItem, error)
	// ClaimPending transitions pending -> processing atomically; a worker that
	// loses the race gets ErrQueueItemNotClaimable.
	ClaimPending(ctx context.Context, id string) (*domain.QueueItem, error)
	ListPending(ctx context.Context, limit int) ([]*domain.QueueItem, error)
	MarkSent(ctx context.Context, id string, attempts int, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, errorMessage string) error
	// HasActive reports whether a non-failed item exists for the pair.
	HasActive(ctx context.Context, correlationID string, category domain.MessageCategory) (bool, error)
}

// DeliveryLogRepository persists send outcomes and their provider-driven
// lifecycle. All mutations are single-statement row-level updates so
// concurrent webhook deliveries cannot lose counts.
type DeliveryLogRepository interface {
	Create(ctx context.Context, entry *domain.DeliveryLogEntry) (*domain.DeliveryLogEntry, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryLogEntry, error)
	HasForCorrelation(ctx context.Context, correlationID string, category domain.MessageCategory) (bool, error)
	ConfirmSent(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkBounced(ctx context.Context, id string, detail string) error
	MarkComplained(ctx context.Context, id string, detail string) error
	MarkDelayed(ctx context.Context, id string) error
	RecordOpen(ctx context.Context, id string, at time.Time) error
	RecordClick(ctx context.Context, id string, at time.Time) error
}

// ProviderEventRepository is the append-only audit store for raw provider
// callbacks.
type ProviderEventRepository interface {
	Create(ctx context.Context, event *domain.ProviderEvent) error
}

// ResultRepository persists the triggering quiz-result records.
type ResultRepository interface {
	Create(ctx context.Context, rec *domain.ResultRecord) (*domain.ResultRecord, error)
}
