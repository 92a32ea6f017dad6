package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

type pgDeliveryLogRepository struct {
	db PgxIface
}

// NewPgDeliveryLogRepository creates the Postgres-backed delivery log.
func NewPgDeliveryLogRepository(db PgxIface) repository.DeliveryLogRepository {
	return &pgDeliveryLogRepository{db: db}
}

const logColumns = `id, category, recipient, sender_email, subject, status, delivery_status,
	bounce_detail, open_count, click_count, delivered_at, first_opened_at, first_clicked_at,
	provider_message_id, raw_payload, correlation_id, error_message, created_at`

func (r *pgDeliveryLogRepository) Create(ctx context.Context, entry *domain.DeliveryLogEntry) (*domain.DeliveryLogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO email_log (
			id, category, recipient, sender_email, subject, status, delivery_status,
			bounce_detail, open_count, click_count, delivered_at, first_opened_at, first_clicked_at,
			provider_message_id, raw_payload, correlation_id, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.Category, entry.Recipient, entry.SenderEmail, entry.Subject, entry.Status, entry.DeliveryStatus,
		entry.BounceDetail, entry.OpenCount, entry.ClickCount, entry.DeliveredAt, entry.FirstOpenedAt, entry.FirstClickedAt,
		entry.ProviderMessageID, entry.RawPayload, entry.CorrelationID, entry.ErrorMessage, entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *pgDeliveryLogRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryLogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM email_log WHERE provider_message_id = $1`
	entry := &domain.DeliveryLogEntry{}
	err := r.db.QueryRow(ctx, query, providerMessageID).Scan(
		&entry.ID, &entry.Category, &entry.Recipient, &entry.SenderEmail, &entry.Subject, &entry.Status, &entry.DeliveryStatus,
		&entry.BounceDetail, &entry.OpenCount, &entry.ClickCount, &entry.DeliveredAt, &entry.FirstOpenedAt, &entry.FirstClickedAt,
		&entry.ProviderMessageID, &entry.RawPayload, &entry.CorrelationID, &entry.ErrorMessage, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrLogEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (r *pgDeliveryLogRepository) HasForCorrelation(ctx context.Context, correlationID string, category domain.MessageCategory) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM email_log
		WHERE correlation_id = $1 AND category = $2 AND status = $3
	)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, correlationID, category, domain.LogStatusSent).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *pgDeliveryLogRepository) ConfirmSent(ctx context.Context, id string) error {
	query := `UPDATE email_log SET delivery_status = COALESCE(delivery_status, $2) WHERE id = $1`
	return r.exec(ctx, query, id, domain.DeliverySent)
}

func (r *pgDeliveryLogRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE email_log SET delivery_status = $2, delivered_at = COALESCE(delivered_at, $3) WHERE id = $1`
	return r.exec(ctx, query, id, domain.DeliveryDelivered, at)
}

func (r *pgDeliveryLogRepository) MarkBounced(ctx context.Context, id string, detail string) error {
	query := `UPDATE email_log SET status = $2, delivery_status = $3, bounce_detail = $4 WHERE id = $1`
	return r.exec(ctx, query, id, domain.LogStatusFailed, domain.DeliveryBounced, detail)
}

func (r *pgDeliveryLogRepository) MarkComplained(ctx context.Context, id string, detail string) error {
	query := `UPDATE email_log SET delivery_status = $2, bounce_detail = COALESCE(NULLIF($3, ''), bounce_detail) WHERE id = $1`
	return r.exec(ctx, query, id, domain.DeliveryComplained, detail)
}

func (r *pgDeliveryLogRepository) MarkDelayed(ctx context.Context, id string) error {
	query := `UPDATE email_log SET delivery_status = $2 WHERE id = $1`
	return r.exec(ctx, query, id, domain.DeliveryDelayed)
}

// RecordOpen increments in the row itself and sets the first-opened timestamp
// only when unset, so racing webhook deliveries never lose an open. The
// terminal bounced and complained statuses are preserved: providers report
// opens for suppressed recipients too, and those must not look healthy again.
func (r *pgDeliveryLogRepository) RecordOpen(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE email_log
		SET open_count = open_count + 1,
		    first_opened_at = COALESCE(first_opened_at, $2),
		    delivery_status = CASE WHEN delivery_status IN ('bounced', 'complained') THEN delivery_status ELSE $3 END
		WHERE id = $1`
	return r.exec(ctx, query, id, at, domain.DeliveryOpened)
}

func (r *pgDeliveryLogRepository) RecordClick(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE email_log
		SET click_count = click_count + 1,
		    first_clicked_at = COALESCE(first_clicked_at, $2),
		    delivery_status = CASE WHEN delivery_status IN ('bounced', 'complained') THEN delivery_status ELSE $3 END
		WHERE id = $1`
	return r.exec(ctx, query, id, at, domain.DeliveryClicked)
}

func (r *pgDeliveryLogRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrLogEntryNotFound
	}
	return nil
}
