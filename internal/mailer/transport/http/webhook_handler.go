package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/quizgate/mailer/internal/mailer/app"
)

const maxWebhookBodySize = 1 << 20 // 1 MB

// EventProcessor applies provider events; the interface keeps the handler
// testable with a mock.
type EventProcessor interface {
	Process(ctx context.Context, input app.ProviderEventInput) (*app.WebhookOutcome, error)
}

// WebhookHandler receives asynchronous provider delivery events.
type WebhookHandler struct {
	processor EventProcessor
	logger    *slog.Logger
}

// NewWebhookHandler creates the handler.
func NewWebhookHandler(processor EventProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger.With("handler", "webhook"),
	}
}

// RegisterRoutes registers the provider event endpoint.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/mail/events", h.handleProviderEvent)
}

// handleProviderEvent acknowledges every recognized payload with 200, matched
// or not; 500 is reserved for genuine internal failure so provider retries do
// not turn unmatched events into alert noise.
func (h *WebhookHandler) handleProviderEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook body", "error", err)
		h.jsonError(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	var req ProviderEventRequest
	if err := json.Unmarshal(rawPayload, &req); err != nil {
		h.jsonError(w, "Invalid event payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Event == "" || req.MessageID == "" {
		h.jsonError(w, "Event and message_id are required", http.StatusBadRequest)
		return
	}

	outcome, err := h.processor.Process(ctx, app.ProviderEventInput{
		EventType:         req.Event,
		ProviderMessageID: req.MessageID,
		Recipient:         req.Recipient,
		Detail:            req.Detail,
		Timestamp:         req.Timestamp,
		RawPayload:        rawPayload,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to process provider event", "error", err, "event", req.Event)
		h.jsonError(w, "Internal error processing event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(WebhookResponse{Success: true, Matched: outcome.Matched})
}

func (h *WebhookHandler) jsonError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(GenericErrorResponse{Error: message})
}
