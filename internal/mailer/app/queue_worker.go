package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
	"github.com/quizgate/mailer/internal/mailer/smtp"
)

// NatsSendJobQueueGroup load-balances send jobs across worker instances.
const NatsSendJobQueueGroup = "mailer_workers"

// jobTimeout bounds one delivery including all retry attempts.
const jobTimeout = 120 * time.Second

// JobSubscriber is the consuming side of the job handoff.
type JobSubscriber interface {
	Subscribe(ctx context.Context, subject, queueGroup string, handler func(msg *nats.Msg)) (*nats.Subscription, error)
}

// QueueWorker consumes send jobs, claims queue items and drives delivery
// through the retrier. In-flight items always run to completion: Stop blocks
// until the WaitGroup drains, so a shutdown never abandons a claimed item.
type QueueWorker struct {
	queueRepo    repository.QueueRepository
	logRepo      repository.DeliveryLogRepository
	retrier      *DeliveryRetrier
	subscriber   JobSubscriber
	replyTo      string
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
	sub      *nats.Subscription
}

// NewQueueWorker creates a worker.
func NewQueueWorker(
	queueRepo repository.QueueRepository,
	logRepo repository.DeliveryLogRepository,
	retrier *DeliveryRetrier,
	subscriber JobSubscriber,
	replyTo string,
	pollInterval time.Duration,
	logger *slog.Logger,
) *QueueWorker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &QueueWorker{
		queueRepo:    queueRepo,
		logRepo:      logRepo,
		retrier:      retrier,
		subscriber:   subscriber,
		replyTo:      replyTo,
		pollInterval: pollInterval,
		logger:       logger.With("service", "queue_worker"),
	}
}

// begin registers one in-flight delivery. It refuses once Stop has started,
// so the WaitGroup counter can only grow before shutdown begins and Wait
// cannot pass while a claim is still underway.
func (w *QueueWorker) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopping {
		return false
	}
	w.wg.Add(1)
	return true
}

// StartConsuming subscribes to the send-job subject.
func (w *QueueWorker) StartConsuming(ctx context.Context) error {
	handler := func(msg *nats.Msg) {
		var job SendJobPayload
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			w.logger.Error("Failed to unmarshal send job payload", "error", err, "data", string(msg.Data))
			return
		}

		if !w.begin() {
			// The item stays pending; the next poller sweep picks it up.
			w.logger.Debug("Worker stopping, declining send job", "queue_item_id", job.QueueItemID)
			return
		}
		defer w.wg.Done()

		// Detached from the request context on purpose: once enqueued, a send
		// runs to exhaustion or success.
		jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		w.ProcessItem(jobCtx, job.QueueItemID)
	}

	sub, err := w.subscriber.Subscribe(ctx, NatsSendJobSubject, NatsSendJobQueueGroup, handler)
	if err != nil {
		return err
	}
	w.sub = sub
	return nil
}

// RunPoller periodically sweeps pending items whose wake-up signal was lost.
// Blocks until ctx is cancelled.
func (w *QueueWorker) RunPoller(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			items, err := w.queueRepo.ListPending(ctx, 20)
			if err != nil {
				w.logger.ErrorContext(ctx, "Failed to list pending queue items", "error", err)
				continue
			}
			for _, item := range items {
				if !w.begin() {
					return
				}
				jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
				w.ProcessItem(jobCtx, item.ID)
				cancel()
				w.wg.Done()
			}
		}
	}
}

// ProcessItem claims one queue item and drives it to sent or failed,
// recording the outcome in the delivery log either way.
func (w *QueueWorker) ProcessItem(ctx context.Context, id string) {
	item, err := w.queueRepo.ClaimPending(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrQueueItemNotClaimable) {
			// Another worker got there first, or the item already completed.
			w.logger.DebugContext(ctx, "Queue item not claimable", "queue_item_id", id)
			return
		}
		w.logger.ErrorContext(ctx, "Failed to claim queue item", "error", err, "queue_item_id", id)
		return
	}

	start := time.Now()
	msg := &smtp.Message{
		FromName:  item.SenderName,
		FromEmail: item.SenderEmail,
		To:        []string{item.Recipient},
		ReplyTo:   w.replyTo,
		Subject:   item.Subject,
		HTMLBody:  item.Body,
	}

	result, sendErr := w.retrier.Send(ctx, msg)
	sendDurationSeconds.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		w.logger.ErrorContext(ctx, "Delivery failed", "error", sendErr, "queue_item_id", item.ID, "recipient", item.Recipient)
		sendAttemptsTotal.WithLabelValues("failed").Inc()

		if err := w.queueRepo.MarkFailed(ctx, item.ID, result.Attempts, sendErr.Error()); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mark queue item failed", "error", err, "queue_item_id", item.ID)
		}
		w.createLogEntry(ctx, item, domain.LogStatusFailed, nil, sendErr.Error())
		return
	}

	now := time.Now().UTC()
	if err := w.queueRepo.MarkSent(ctx, item.ID, result.Attempts, now); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark queue item sent", "error", err, "queue_item_id", item.ID)
	}
	w.createLogEntry(ctx, item, domain.LogStatusSent, &result.ProviderMessageID, "")
	sendAttemptsTotal.WithLabelValues("sent").Inc()
	w.logger.InfoContext(ctx, "Message delivered to relay",
		"queue_item_id", item.ID, "recipient", item.Recipient, "attempts", result.Attempts,
		"provider_message_id", result.ProviderMessageID)
}

func (w *QueueWorker) createLogEntry(ctx context.Context, item *domain.QueueItem, status domain.LogStatus, providerMessageID *string, errorMessage string) {
	entry := &domain.DeliveryLogEntry{
		Category:          item.Category,
		Recipient:         item.Recipient,
		SenderEmail:       item.SenderEmail,
		Subject:           item.Subject,
		Status:            status,
		ProviderMessageID: providerMessageID,
		CorrelationID:     item.CorrelationID,
	}
	if status == domain.LogStatusSent {
		ds := domain.DeliverySent
		entry.DeliveryStatus = &ds
	}
	if errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}
	if _, err := w.logRepo.Create(ctx, entry); err != nil {
		w.logger.ErrorContext(ctx, "Failed to create delivery log entry", "error", err, "queue_item_id", item.ID)
	}
}

// Stop declines new work, unsubscribes and waits for in-flight deliveries to
// finish. The stopping flag is raised before the unsubscribe so a callback
// already dispatched by the subscription cannot claim an item after Wait
// has been allowed to return.
func (w *QueueWorker) Stop() {
	w.mu.Lock()
	w.stopping = true
	w.mu.Unlock()

	if w.sub != nil && w.sub.IsValid() {
		if err := w.sub.Unsubscribe(); err != nil {
			w.logger.Error("Failed to unsubscribe from send jobs", "error", err)
		}
	}
	w.wg.Wait()
}
