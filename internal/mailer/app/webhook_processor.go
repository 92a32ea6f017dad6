package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

// ProviderEventInput is one decoded provider callback plus its raw payload.
type ProviderEventInput struct {
	EventType         string
	ProviderMessageID string
	Recipient         string
	Detail            string
	Timestamp         time.Time
	RawPayload        []byte
}

// WebhookOutcome reports how an event was handled. Unmatched is a normal
// outcome, never an error: provider retries must not cascade into alerting.
type WebhookOutcome struct {
	Matched    bool
	LogEntryID string
}

// WebhookProcessor transitions delivery log entries on asynchronous provider
// events. Every event, matched or not, lands in the raw audit table first.
type WebhookProcessor struct {
	logRepo   repository.DeliveryLogRepository
	eventRepo repository.ProviderEventRepository
	logger    *slog.Logger
}

// NewWebhookProcessor creates a processor.
func NewWebhookProcessor(logRepo repository.DeliveryLogRepository, eventRepo repository.ProviderEventRepository, logger *slog.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		logRepo:   logRepo,
		eventRepo: eventRepo,
		logger:    logger.With("service", "webhook_processor"),
	}
}

// Process applies one provider event. The raw event is persisted before the
// structured update so replays are always reconstructable.
func (p *WebhookProcessor) Process(ctx context.Context, input ProviderEventInput) (*WebhookOutcome, error) {
	entry, lookupErr := p.logRepo.GetByProviderMessageID(ctx, input.ProviderMessageID)
	matched := lookupErr == nil

	audit := &domain.ProviderEvent{
		EventType:         input.EventType,
		ProviderMessageID: input.ProviderMessageID,
		Recipient:         input.Recipient,
		Payload:           input.RawPayload,
		Matched:           matched,
	}
	if err := p.eventRepo.Create(ctx, audit); err != nil {
		webhookEventsTotal.WithLabelValues(input.EventType, "error").Inc()
		return nil, fmt.Errorf("persist raw provider event: %w", err)
	}

	if lookupErr != nil {
		if errors.Is(lookupErr, repository.ErrLogEntryNotFound) {
			p.logger.InfoContext(ctx, "Provider event did not match any log entry",
				"event_type", input.EventType, "provider_message_id", input.ProviderMessageID)
			webhookEventsTotal.WithLabelValues(input.EventType, "unmatched").Inc()
			return &WebhookOutcome{Matched: false}, nil
		}
		webhookEventsTotal.WithLabelValues(input.EventType, "error").Inc()
		return nil, fmt.Errorf("look up log entry: %w", lookupErr)
	}

	at := input.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var err error
	switch domain.ProviderEventType(input.EventType) {
	case domain.EventDelivered:
		err = p.logRepo.MarkDelivered(ctx, entry.ID, at)
	case domain.EventBounced:
		err = p.logRepo.MarkBounced(ctx, entry.ID, input.Detail)
	case domain.EventComplained:
		err = p.logRepo.MarkComplained(ctx, entry.ID, input.Detail)
	case domain.EventOpened:
		err = p.logRepo.RecordOpen(ctx, entry.ID, at)
	case domain.EventClicked:
		err = p.logRepo.RecordClick(ctx, entry.ID, at)
	case domain.EventDelayed:
		err = p.logRepo.MarkDelayed(ctx, entry.ID)
	case domain.EventSent:
		err = p.logRepo.ConfirmSent(ctx, entry.ID)
	default:
		// Unknown types are audited above but change nothing.
		p.logger.WarnContext(ctx, "Unknown provider event type",
			"event_type", input.EventType, "provider_message_id", input.ProviderMessageID)
		webhookEventsTotal.WithLabelValues(input.EventType, "matched").Inc()
		return &WebhookOutcome{Matched: true, LogEntryID: entry.ID}, nil
	}
	if err != nil {
		webhookEventsTotal.WithLabelValues(input.EventType, "error").Inc()
		return nil, fmt.Errorf("apply %s event: %w", input.EventType, err)
	}

	webhookEventsTotal.WithLabelValues(input.EventType, "matched").Inc()
	p.logger.InfoContext(ctx, "Provider event applied",
		"event_type", input.EventType, "log_entry_id", entry.ID)
	return &WebhookOutcome{Matched: true, LogEntryID: entry.ID}, nil
}
