package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

// NatsSendJobSubject carries {queue_item_id} payloads to the queue worker.
const NatsSendJobSubject = "mail.jobs.send"

// JobPublisher hands a queued item off to the background workers.
type JobPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// SendJobPayload is the NATS message waking a worker for one queue item.
type SendJobPayload struct {
	QueueItemID string `json:"queue_item_id"`
}

// SubmissionRequest is the application-level submission of one quiz result.
type SubmissionRequest struct {
	Recipient     string
	Score         int
	Total         int
	Title         string
	Description   string
	Insights      []string
	Language      string
	CorrelationID string

	// Optional content overrides.
	SenderName  string
	SenderEmail string
	Subject     string
}

// SubmissionOutcome is returned to the caller before any delivery happens.
type SubmissionOutcome struct {
	RecordID string
	Enqueued int
}

// SubmissionService persists the triggering record synchronously, then
// enqueues the outbound notifications and hands them to the background
// workers. The caller never waits for delivery.
type SubmissionService struct {
	resultRepo repository.ResultRepository
	queueRepo  repository.QueueRepository
	logRepo    repository.DeliveryLogRepository
	publisher  JobPublisher
	settings   domain.MailSettings
	logger     *slog.Logger
}

// NewSubmissionService wires the submission pipeline.
func NewSubmissionService(
	resultRepo repository.ResultRepository,
	queueRepo repository.QueueRepository,
	logRepo repository.DeliveryLogRepository,
	publisher JobPublisher,
	settings domain.MailSettings,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		resultRepo: resultRepo,
		queueRepo:  queueRepo,
		logRepo:    logRepo,
		publisher:  publisher,
		settings:   settings,
		logger:     logger.With("service", "submission"),
	}
}

// Submit records the result, then enqueues the recipient and operator
// notifications unless sending is globally disabled. The record persist
// always happens before any enqueue; enqueue always happens before any send.
func (s *SubmissionService) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionOutcome, error) {
	rec, err := s.resultRepo.Create(ctx, &domain.ResultRecord{
		Recipient:   req.Recipient,
		Score:       req.Score,
		Total:       req.Total,
		Title:       req.Title,
		Description: req.Description,
		Insights:    req.Insights,
		Language:    req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("persist result record: %w", err)
	}

	if !s.settings.SendingEnabled {
		s.logger.InfoContext(ctx, "Sending disabled; record persisted without enqueue", "record_id", rec.ID)
		submissionsTotal.WithLabelValues("sending_disabled").Inc()
		return &SubmissionOutcome{RecordID: rec.ID}, nil
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = rec.ID
	}

	enqueued := 0
	for _, plan := range s.plan(rec, req) {
		ok, err := s.enqueueOne(ctx, correlationID, plan)
		if err != nil {
			// The record is already persisted and the response must still be a
			// success; a missed enqueue is operator-visible, not caller-visible.
			s.logger.ErrorContext(ctx, "Failed to enqueue notification",
				"error", err, "record_id", rec.ID, "category", plan.Category)
			continue
		}
		if ok {
			enqueued++
		}
	}

	submissionsTotal.WithLabelValues("accepted").Inc()
	s.logger.InfoContext(ctx, "Submission accepted", "record_id", rec.ID, "enqueued", enqueued, "language", rec.Language)
	return &SubmissionOutcome{RecordID: rec.ID, Enqueued: enqueued}, nil
}

// plan builds the queue items a submission produces: one for the quiz taker,
// one for the operator inbox.
func (s *SubmissionService) plan(rec *domain.ResultRecord, req SubmissionRequest) []*domain.QueueItem {
	senderName := s.settings.SenderName
	if req.SenderName != "" {
		senderName = req.SenderName
	}
	senderEmail := s.settings.SenderEmail
	if req.SenderEmail != "" {
		senderEmail = req.SenderEmail
	}

	items := make([]*domain.QueueItem, 0, 2)

	recipientSubject := req.Subject
	if recipientSubject == "" {
		recipientSubject = subjectFor(domain.CategoryRecipientResult, rec.Language, rec.Score, rec.Total)
	}
	items = append(items, &domain.QueueItem{
		Recipient:   rec.Recipient,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Subject:     recipientSubject,
		Body:        composeResultBody(rec, domain.CategoryRecipientResult),
		Category:    domain.CategoryRecipientResult,
		Language:    rec.Language,
	})

	if len(s.settings.AdminEmails) > 0 {
		items = append(items, &domain.QueueItem{
			Recipient:   s.settings.AdminEmails[0],
			SenderEmail: senderEmail,
			SenderName:  senderName,
			Subject:     subjectFor(domain.CategoryOperatorResult, rec.Language, rec.Score, rec.Total),
			Body:        composeResultBody(rec, domain.CategoryOperatorResult),
			Category:    domain.CategoryOperatorResult,
			Language:    rec.Language,
		})
	}
	return items
}

// enqueueOne runs the duplicate check against both the queue and the
// historical log before inserting. Check-then-insert is best effort, not a
// hard guarantee; the claim step in the worker closes the remaining race.
func (s *SubmissionService) enqueueOne(ctx context.Context, correlationID string, item *domain.QueueItem) (bool, error) {
	active, err := s.queueRepo.HasActive(ctx, correlationID, item.Category)
	if err != nil {
		return false, fmt.Errorf("queue duplicate check: %w", err)
	}
	if !active {
		sent, err := s.logRepo.HasForCorrelation(ctx, correlationID, item.Category)
		if err != nil {
			return false, fmt.Errorf("log duplicate check: %w", err)
		}
		active = sent
	}
	if active {
		queueItemsDuplicateTotal.WithLabelValues(string(item.Category)).Inc()
		s.logger.InfoContext(ctx, "Skipping duplicate enqueue",
			"correlation_id", correlationID, "category", item.Category)
		return false, nil
	}

	item.CorrelationID = &correlationID
	created, err := s.queueRepo.Create(ctx, item)
	if err != nil {
		return false, fmt.Errorf("create queue item: %w", err)
	}
	queueItemsEnqueuedTotal.WithLabelValues(string(item.Category)).Inc()

	payload, err := json.Marshal(SendJobPayload{QueueItemID: created.ID})
	if err != nil {
		return true, fmt.Errorf("marshal job payload: %w", err)
	}
	if err := s.publisher.Publish(ctx, NatsSendJobSubject, payload); err != nil {
		// The item is durable; the poller will pick it up even without the
		// wake-up signal.
		s.logger.WarnContext(ctx, "Failed to publish send job; poller will recover it",
			"error", err, "queue_item_id", created.ID)
	}
	return true, nil
}
