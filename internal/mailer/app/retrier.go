package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizgate/mailer/internal/mailer/smtp"
)

// TransportClient is the single-message submission contract the retrier wraps.
type TransportClient interface {
	Send(ctx context.Context, msg *smtp.Message) (string, error)
}

// SendResult reports a successful delivery: how many attempts it took and the
// identifier the relay accepted the message under.
type SendResult struct {
	Attempts          int
	ProviderMessageID string
}

// DeliveryRetrier wraps one send in bounded retries with exponential backoff.
// Every attempt opens its own connection; the transport client dials per call.
type DeliveryRetrier struct {
	client      TransportClient
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// NewDeliveryRetrier creates a retrier with 3 attempts and a doubling delay
// starting at baseDelay.
func NewDeliveryRetrier(client TransportClient, baseDelay time.Duration, logger *slog.Logger) *DeliveryRetrier {
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &DeliveryRetrier{
		client:      client,
		maxAttempts: 3,
		baseDelay:   baseDelay,
		logger:      logger.With("component", "delivery_retrier"),
	}
}

// Send attempts delivery up to maxAttempts times. The result always reports
// how many attempts ran; the final failure carries the last observed error,
// and intermediate failures are logged with their attempt number.
// Configuration errors are not retried: no number of attempts fixes a missing
// relay setting, and the operator should see it immediately.
func (r *DeliveryRetrier) Send(ctx context.Context, msg *smtp.Message) (*SendResult, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		providerID, err := r.client.Send(ctx, msg)
		if err == nil {
			return &SendResult{Attempts: attempt, ProviderMessageID: providerID}, nil
		}
		if errors.Is(err, smtp.ErrNotConfigured) {
			return &SendResult{Attempts: attempt}, fmt.Errorf("send not retried: %w", err)
		}
		lastErr = err
		r.logger.WarnContext(ctx, "Send attempt failed",
			"attempt", attempt, "max_attempts", r.maxAttempts, "error", err)

		if attempt < r.maxAttempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &SendResult{Attempts: attempt}, fmt.Errorf("send aborted after %d attempts: %w", attempt, ctx.Err())
			}
			delay *= 2
		}
	}
	return &SendResult{Attempts: r.maxAttempts}, fmt.Errorf("send failed after %d attempts: %w", r.maxAttempts, lastErr)
}
