package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quizgate/mailer/internal/mailer/domain"
)

func testSettings() domain.MailSettings {
	return domain.MailSettings{
		SenderName:     "QuizGate",
		SenderEmail:    "noreply@quizgate.example",
		ReplyTo:        "support@quizgate.example",
		AdminEmails:    []string{"admin@quizgate.example"},
		SendingEnabled: true,
	}
}

func testSubmissionRequest() SubmissionRequest {
	return SubmissionRequest{
		Recipient: "taker@example.com",
		Score:     7,
		Total:     10,
		Title:     "Go Basics",
		Language:  "en",
	}
}

func newSubmissionFixture(settings domain.MailSettings) (*SubmissionService, *MockResultRepository, *MockQueueRepository, *MockDeliveryLogRepository, *MockJobPublisher) {
	resultRepo := new(MockResultRepository)
	queueRepo := new(MockQueueRepository)
	logRepo := new(MockDeliveryLogRepository)
	publisher := new(MockJobPublisher)
	svc := NewSubmissionService(resultRepo, queueRepo, logRepo, publisher, settings, testLogger())
	return svc, resultRepo, queueRepo, logRepo, publisher
}

func TestSubmitEnqueuesRecipientAndOperatorMail(t *testing.T) {
	svc, resultRepo, queueRepo, logRepo, publisher := newSubmissionFixture(testSettings())

	resultRepo.On("Create", mock.Anything, mock.Anything).
		Return(&domain.ResultRecord{ID: "rec-1", Recipient: "taker@example.com", Score: 7, Total: 10, Language: "en"}, nil).Once()

	queueRepo.On("HasActive", mock.Anything, "rec-1", mock.Anything).Return(false, nil).Twice()
	logRepo.On("HasForCorrelation", mock.Anything, "rec-1", mock.Anything).Return(false, nil).Twice()

	var enqueued []*domain.QueueItem
	queueRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			item := args.Get(1).(*domain.QueueItem)
			item.ID = "q-" + string(item.Category)
			enqueued = append(enqueued, item)
		}).
		Return(&domain.QueueItem{ID: "q"}, nil).Twice()
	publisher.On("Publish", mock.Anything, NatsSendJobSubject, mock.Anything).Return(nil).Twice()

	outcome, err := svc.Submit(context.Background(), testSubmissionRequest())

	require.NoError(t, err)
	assert.Equal(t, "rec-1", outcome.RecordID)
	assert.Equal(t, 2, outcome.Enqueued)

	require.Len(t, enqueued, 2)
	assert.Equal(t, domain.CategoryRecipientResult, enqueued[0].Category)
	assert.Equal(t, "taker@example.com", enqueued[0].Recipient)
	assert.Equal(t, domain.CategoryOperatorResult, enqueued[1].Category)
	assert.Equal(t, "admin@quizgate.example", enqueued[1].Recipient)
	for _, item := range enqueued {
		require.NotNil(t, item.CorrelationID)
		assert.Equal(t, "rec-1", *item.CorrelationID, "the record id is the default correlation")
	}

	resultRepo.AssertExpectations(t)
	queueRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSubmitSendingDisabledPersistsRecordOnly(t *testing.T) {
	settings := testSettings()
	settings.SendingEnabled = false
	svc, resultRepo, queueRepo, _, publisher := newSubmissionFixture(settings)

	resultRepo.On("Create", mock.Anything, mock.Anything).
		Return(&domain.ResultRecord{ID: "rec-2"}, nil).Once()

	outcome, err := svc.Submit(context.Background(), testSubmissionRequest())

	require.NoError(t, err)
	assert.Equal(t, "rec-2", outcome.RecordID)
	assert.Zero(t, outcome.Enqueued)
	queueRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitSkipsDuplicateCorrelation(t *testing.T) {
	svc, resultRepo, queueRepo, logRepo, publisher := newSubmissionFixture(testSettings())

	resultRepo.On("Create", mock.Anything, mock.Anything).
		Return(&domain.ResultRecord{ID: "rec-3"}, nil).Once()
	queueRepo.On("HasActive", mock.Anything, "attempt-99", domain.CategoryRecipientResult).Return(true, nil).Once()
	queueRepo.On("HasActive", mock.Anything, "attempt-99", domain.CategoryOperatorResult).Return(false, nil).Once()
	logRepo.On("HasForCorrelation", mock.Anything, "attempt-99", domain.CategoryOperatorResult).Return(true, nil).Once()

	req := testSubmissionRequest()
	req.CorrelationID = "attempt-99"
	outcome, err := svc.Submit(context.Background(), req)

	require.NoError(t, err)
	assert.Zero(t, outcome.Enqueued, "both notifications were already queued or sent for this correlation")
	queueRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitFailsWhenRecordCannotPersist(t *testing.T) {
	svc, resultRepo, queueRepo, _, _ := newSubmissionFixture(testSettings())

	resultRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	_, err := svc.Submit(context.Background(), testSubmissionRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist result record")
	queueRepo.AssertNotCalled(t, "HasActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPublishFailureStillCountsAsEnqueued(t *testing.T) {
	settings := testSettings()
	settings.AdminEmails = nil // recipient mail only
	svc, resultRepo, queueRepo, logRepo, publisher := newSubmissionFixture(settings)

	resultRepo.On("Create", mock.Anything, mock.Anything).
		Return(&domain.ResultRecord{ID: "rec-4", Recipient: "taker@example.com"}, nil).Once()
	queueRepo.On("HasActive", mock.Anything, "rec-4", domain.CategoryRecipientResult).Return(false, nil).Once()
	logRepo.On("HasForCorrelation", mock.Anything, "rec-4", domain.CategoryRecipientResult).Return(false, nil).Once()
	queueRepo.On("Create", mock.Anything, mock.Anything).Return(&domain.QueueItem{ID: "q-1"}, nil).Once()
	publisher.On("Publish", mock.Anything, NatsSendJobSubject, mock.Anything).Return(errors.New("nats down")).Once()

	outcome, err := svc.Submit(context.Background(), testSubmissionRequest())

	require.NoError(t, err, "a lost wake-up is recovered by the poller, not surfaced to the caller")
	assert.Equal(t, 1, outcome.Enqueued)
}
