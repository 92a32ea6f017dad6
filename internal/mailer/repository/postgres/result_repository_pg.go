package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

type pgResultRepository struct {
	db PgxIface
}

// NewPgResultRepository creates the Postgres-backed result record store.
func NewPgResultRepository(db PgxIface) repository.ResultRepository {
	return &pgResultRepository{db: db}
}

func (r *pgResultRepository) Create(ctx context.Context, rec *domain.ResultRecord) (*domain.ResultRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO quiz_results (id, recipient, score, total, title, description, insights, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.Recipient, rec.Score, rec.Total, rec.Title, rec.Description, rec.Insights, rec.Language, rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
