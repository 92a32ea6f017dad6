package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/repository"
)

func setupLogTest(t *testing.T) (repository.DeliveryLogRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPgDeliveryLogRepository(mockPool), mockPool
}

func TestPgDeliveryLogRepository_Create(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	ds := domain.DeliverySent
	providerID := "<msg-1@quizgate.example>"
	entry := &domain.DeliveryLogEntry{
		Category:          domain.CategoryRecipientResult,
		Recipient:         "taker@example.com",
		SenderEmail:       "noreply@quizgate.example",
		Subject:           "Your quiz result",
		Status:            domain.LogStatusSent,
		DeliveryStatus:    &ds,
		ProviderMessageID: &providerID,
	}

	mockPool.ExpectExec(`INSERT INTO email_log`).
		WithArgs(
			pgxmock.AnyArg(), entry.Category, entry.Recipient, entry.SenderEmail, entry.Subject, entry.Status, entry.DeliveryStatus,
			entry.BounceDetail, 0, 0, entry.DeliveredAt, entry.FirstOpenedAt, entry.FirstClickedAt,
			entry.ProviderMessageID, entry.RawPayload, entry.CorrelationID, entry.ErrorMessage, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := repo.Create(context.Background(), entry)

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgDeliveryLogRepository_GetByProviderMessageID_NotFound(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(`SELECT .+ FROM email_log WHERE provider_message_id = \$1`).
		WithArgs("<unknown@elsewhere>").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByProviderMessageID(context.Background(), "<unknown@elsewhere>")
	assert.ErrorIs(t, err, repository.ErrLogEntryNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgDeliveryLogRepository_RecordOpen(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	at := time.Now()

	t.Run("Incremented", func(t *testing.T) {
		mockPool.ExpectExec(`open_count = open_count \+ 1`).
			WithArgs("log-1", at, domain.DeliveryOpened).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.RecordOpen(context.Background(), "log-1", at))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	// An open on a bounced or complained row must not overwrite the terminal
	// status, so the statement itself carries the guard.
	t.Run("KeepsTerminalStatus", func(t *testing.T) {
		mockPool.ExpectExec(`delivery_status = CASE WHEN delivery_status IN \('bounced', 'complained'\) THEN delivery_status ELSE \$3 END`).
			WithArgs("log-1", at, domain.DeliveryOpened).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.RecordOpen(context.Background(), "log-1", at))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		mockPool.ExpectExec(`open_count = open_count \+ 1`).
			WithArgs("gone", at, domain.DeliveryOpened).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.RecordOpen(context.Background(), "gone", at)
		assert.ErrorIs(t, err, repository.ErrLogEntryNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgDeliveryLogRepository_RecordClick(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	at := time.Now()

	t.Run("Incremented", func(t *testing.T) {
		mockPool.ExpectExec(`click_count = click_count \+ 1`).
			WithArgs("log-1", at, domain.DeliveryClicked).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.RecordClick(context.Background(), "log-1", at))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("KeepsTerminalStatus", func(t *testing.T) {
		mockPool.ExpectExec(`delivery_status = CASE WHEN delivery_status IN \('bounced', 'complained'\) THEN delivery_status ELSE \$3 END`).
			WithArgs("log-1", at, domain.DeliveryClicked).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.RecordClick(context.Background(), "log-1", at))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgDeliveryLogRepository_MarkBounced(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	mockPool.ExpectExec(`UPDATE email_log SET status = \$2, delivery_status = \$3, bounce_detail = \$4`).
		WithArgs("log-1", domain.LogStatusFailed, domain.DeliveryBounced, "550 user unknown").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkBounced(context.Background(), "log-1", "550 user unknown"))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgDeliveryLogRepository_MarkDelivered(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	at := time.Now()
	mockPool.ExpectExec(`delivered_at = COALESCE\(delivered_at, \$3\)`).
		WithArgs("log-1", domain.DeliveryDelivered, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkDelivered(context.Background(), "log-1", at))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgDeliveryLogRepository_HasForCorrelation(t *testing.T) {
	repo, mockPool := setupLogTest(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(`SELECT EXISTS`).
		WithArgs("rec-1", domain.CategoryRecipientResult, domain.LogStatusSent).
		WillReturnRows(mockPool.NewRows([]string{"exists"}).AddRow(false))

	sent, err := repo.HasForCorrelation(context.Background(), "rec-1", domain.CategoryRecipientResult)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
