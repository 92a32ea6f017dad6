package http

import "time"

// Submission endpoint actions. An empty action is a regular result submission;
// the rest are operator diagnostics sharing the endpoint.
const (
	ActionSubmit          = ""
	ActionCheckConnection = "check-connection"
	ActionCheckDNS        = "check-dns"
	ActionGenerateDKIM    = "generate-dkim"
	ActionTestSend        = "test-send"
)

// SubmissionRequest is the JSON body of POST /api/v1/mail/submissions.
type SubmissionRequest struct {
	Action string `json:"action,omitempty" validate:"omitempty,oneof=check-connection check-dns generate-dkim test-send"`

	Recipient     string   `json:"recipient,omitempty" validate:"omitempty,email"`
	Score         int      `json:"score,omitempty" validate:"gte=0"`
	Total         int      `json:"total,omitempty" validate:"gte=0"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Insights      []string `json:"insights,omitempty"`
	Language      string   `json:"language,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`

	// Optional content overrides.
	SenderName  string `json:"sender_name,omitempty"`
	SenderEmail string `json:"sender_email,omitempty" validate:"omitempty,email"`
	Subject     string `json:"subject,omitempty"`
}

// SubmissionResponse is returned before any delivery is attempted.
type SubmissionResponse struct {
	Success  bool   `json:"success"`
	RecordID string `json:"record_id,omitempty"`
}

// TestSendResponse reports a completed diagnostic send.
type TestSendResponse struct {
	Success           bool   `json:"success"`
	Attempts          int    `json:"attempts"`
	ProviderMessageID string `json:"provider_message_id"`
}

// RateLimitedResponse carries the window reset time on a 429.
type RateLimitedResponse struct {
	Error   string    `json:"error"`
	ResetAt time.Time `json:"reset_at"`
}

// ProviderEventRequest is the provider-shaped webhook payload.
type ProviderEventRequest struct {
	Event     string    `json:"event" validate:"required"`
	MessageID string    `json:"message_id" validate:"required"`
	Recipient string    `json:"recipient,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// WebhookResponse is always a 200-level acknowledgement for recognized
// payloads, matched or not.
type WebhookResponse struct {
	Success bool `json:"success"`
	Matched bool `json:"matched"`
}

// GenericErrorResponse is the error envelope.
type GenericErrorResponse struct {
	Error string `json:"error"`
}
