package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

// PgxIface is the subset of pgxpool.Pool the repositories use; pgxmock
// satisfies it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueueRepository struct {
	db PgxIface
}

// NewPgQueueRepository creates the Postgres-backed queue repository.
func NewPgQueueRepository(db PgxIface) repository.QueueRepository {
	return &pgQueueRepository{db: db}
}

const queueColumns = `id, recipient, sender_email, sender_name, subject, body, category,
	correlation_id, language, status, attempts, error_message, created_at, sent_at`

func (r *pgQueueRepository) Create(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = domain.QueueStatusPending
	}
	item.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO email_queue (
			id, recipient, sender_email, sender_name, subject, body, category,
			correlation_id, language, status, attempts, error_message, created_at, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		item.ID, item.Recipient, item.SenderEmail, item.SenderName, item.Subject, item.Body, item.Category,
		item.CorrelationID, item.Language, item.Status, item.Attempts, item.ErrorMessage, item.CreatedAt, item.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *pgQueueRepository) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM email_queue WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *pgQueueRepository) ClaimPending(ctx context.Context, id string) (*domain.QueueItem, error) {
	query := `
		UPDATE email_queue SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING ` + queueColumns
	item, err := r.scanOne(r.db.QueryRow(ctx, query, id, domain.QueueStatusProcessing, domain.QueueStatusPending))
	if err != nil {
		if errors.Is(err, repository.ErrQueueItemNotFound) {
			return nil, repository.ErrQueueItemNotClaimable
		}
		return nil, err
	}
	return item, nil
}

func (r *pgQueueRepository) ListPending(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM email_queue WHERE status = $1 ORDER BY created_at LIMIT $2`
	rows, err := r.db.Query(ctx, query, domain.QueueStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.QueueItem
	for rows.Next() {
		item, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgQueueRepository) MarkSent(ctx context.Context, id string, attempts int, sentAt time.Time) error {
	query := `UPDATE email_queue SET status = $2, attempts = $3, sent_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, domain.QueueStatusSent, attempts, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrQueueItemNotFound
	}
	return nil
}

func (r *pgQueueRepository) MarkFailed(ctx context.Context, id string, attempts int, errorMessage string) error {
	query := `UPDATE email_queue SET status = $2, attempts = $3, error_message = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, domain.QueueStatusFailed, attempts, errorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrQueueItemNotFound
	}
	return nil
}

func (r *pgQueueRepository) HasActive(ctx context.Context, correlationID string, category domain.MessageCategory) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM email_queue
		WHERE correlation_id = $1 AND category = $2 AND status <> $3
	)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, correlationID, category, domain.QueueStatusFailed).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *pgQueueRepository) scanOne(row pgx.Row) (*domain.QueueItem, error) {
	item := &domain.QueueItem{}
	err := row.Scan(
		&item.ID, &item.Recipient, &item.SenderEmail, &item.SenderName, &item.Subject, &item.Body, &item.Category,
		&item.CorrelationID, &item.Language, &item.Status, &item.Attempts, &item.ErrorMessage, &item.CreatedAt, &item.SentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrQueueItemNotFound
		}
		return nil, err
	}
	return item, nil
}
