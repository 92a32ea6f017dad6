package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

type pgProviderEventRepository struct {
	db PgxIface
}

// NewPgProviderEventRepository creates the append-only raw event audit store.
func NewPgProviderEventRepository(db PgxIface) repository.ProviderEventRepository {
	return &pgProviderEventRepository{db: db}
}

func (r *pgProviderEventRepository) Create(ctx context.Context, event *domain.ProviderEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO email_provider_events (id, event_type, provider_message_id, recipient, payload, matched, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		event.ID, event.EventType, event.ProviderMessageID, event.Recipient, event.Payload, event.Matched, event.CreatedAt,
	)
	return err
}
