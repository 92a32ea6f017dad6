package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/smtp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Create(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueItem), args.Error(1)
}

func (m *MockQueueRepository) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueItem), args.Error(1)
}

func (m *MockQueueRepository) ClaimPending(ctx context.Context, id string) (*domain.QueueItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueItem), args.Error(1)
}

func (m *MockQueueRepository) ListPending(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QueueItem), args.Error(1)
}

func (m *MockQueueRepository) MarkSent(ctx context.Context, id string, attempts int, sentAt time.Time) error {
	args := m.Called(ctx, id, attempts, sentAt)
	return args.Error(0)
}

func (m *MockQueueRepository) MarkFailed(ctx context.Context, id string, attempts int, errorMessage string) error {
	args := m.Called(ctx, id, attempts, errorMessage)
	return args.Error(0)
}

func (m *MockQueueRepository) HasActive(ctx context.Context, correlationID string, category domain.MessageCategory) (bool, error) {
	args := m.Called(ctx, correlationID, category)
	return args.Bool(0), args.Error(1)
}

type MockDeliveryLogRepository struct {
	mock.Mock
}

func (m *MockDeliveryLogRepository) Create(ctx context.Context, entry *domain.DeliveryLogEntry) (*domain.DeliveryLogEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryLogEntry), args.Error(1)
}

func (m *MockDeliveryLogRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.DeliveryLogEntry, error) {
	args := m.Called(ctx, providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryLogEntry), args.Error(1)
}

func (m *MockDeliveryLogRepository) HasForCorrelation(ctx context.Context, correlationID string, category domain.MessageCategory) (bool, error) {
	args := m.Called(ctx, correlationID, category)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryLogRepository) ConfirmSent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) MarkBounced(ctx context.Context, id string, detail string) error {
	args := m.Called(ctx, id, detail)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) MarkComplained(ctx context.Context, id string, detail string) error {
	args := m.Called(ctx, id, detail)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) MarkDelayed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) RecordOpen(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockDeliveryLogRepository) RecordClick(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockProviderEventRepository struct {
	mock.Mock
}

func (m *MockProviderEventRepository) Create(ctx context.Context, event *domain.ProviderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Create(ctx context.Context, rec *domain.ResultRecord) (*domain.ResultRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResultRecord), args.Error(1)
}

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type MockTransportClient struct {
	mock.Mock
}

func (m *MockTransportClient) Send(ctx context.Context, msg *smtp.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}
