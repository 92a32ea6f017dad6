package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/quizgate/mailer/internal/mailer/app"
	"github.com/quizgate/mailer/internal/mailer/dnscheck"
	"github.com/quizgate/mailer/internal/mailer/ratelimit"
)

// Submitter is the submission pipeline contract the handler depends on.
type Submitter interface {
	Submit(ctx context.Context, req app.SubmissionRequest) (*app.SubmissionOutcome, error)
}

// Diagnostics is the operator action contract.
type Diagnostics interface {
	CheckConnection(ctx context.Context) *app.ConnectionReport
	CheckDNS(ctx context.Context) *dnscheck.ReputationReport
	GenerateDKIMKeys() (*dnscheck.DKIMKeyPair, error)
	TestSend(ctx context.Context, recipient string) (*app.SendResult, error)
}

// SubmissionHandler serves the action-discriminated submission endpoint.
type SubmissionHandler struct {
	submitter   Submitter
	diagnostics Diagnostics
	limiter     *ratelimit.Limiter
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewSubmissionHandler creates the handler.
func NewSubmissionHandler(submitter Submitter, diagnostics Diagnostics, limiter *ratelimit.Limiter, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submitter:   submitter,
		diagnostics: diagnostics,
		limiter:     limiter,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("handler", "submission"),
	}
}

// RegisterRoutes registers the submission endpoint.
func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/mail/submissions", h.handleSubmission)
}

func (h *SubmissionHandler) handleSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			h.jsonError(w, "Request body is empty", http.StatusBadRequest)
			return
		}
		h.jsonError(w, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.jsonError(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch req.Action {
	case ActionSubmit:
		h.handleSubmit(w, r, logger, req)
	case ActionCheckConnection:
		h.writeJSON(w, http.StatusOK, h.diagnostics.CheckConnection(ctx))
	case ActionCheckDNS:
		h.writeJSON(w, http.StatusOK, h.diagnostics.CheckDNS(ctx))
	case ActionGenerateDKIM:
		keys, err := h.diagnostics.GenerateDKIMKeys()
		if err != nil {
			logger.ErrorContext(ctx, "DKIM key generation failed", "error", err)
			h.jsonError(w, "Key generation failed", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, http.StatusOK, keys)
	case ActionTestSend:
		h.handleTestSend(w, r, logger, req)
	default:
		h.jsonError(w, "Unknown action: "+req.Action, http.StatusBadRequest)
	}
}

// handleSubmit admits through the rate limiter, persists the record and
// responds before any delivery work happens.
func (h *SubmissionHandler) handleSubmit(w http.ResponseWriter, r *http.Request, logger *slog.Logger, req SubmissionRequest) {
	ctx := r.Context()

	identity := ratelimit.ClientIdentity(r)
	if res := h.limiter.Allow(identity, time.Now()); !res.Allowed {
		rateLimitedTotal.Inc()
		logger.WarnContext(ctx, "Submission rate limited", "identity", identity, "reset_at", res.ResetAt)
		h.writeJSON(w, http.StatusTooManyRequests, RateLimitedResponse{
			Error:   "Too many submissions; try again later",
			ResetAt: res.ResetAt,
		})
		return
	}

	if req.Recipient == "" {
		h.jsonError(w, "Recipient is required", http.StatusBadRequest)
		return
	}

	outcome, err := h.submitter.Submit(ctx, app.SubmissionRequest{
		Recipient:     req.Recipient,
		Score:         req.Score,
		Total:         req.Total,
		Title:         req.Title,
		Description:   req.Description,
		Insights:      req.Insights,
		Language:      req.Language,
		CorrelationID: req.CorrelationID,
		SenderName:    req.SenderName,
		SenderEmail:   req.SenderEmail,
		Subject:       req.Subject,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Submission failed", "error", err)
		h.jsonError(w, "Failed to persist submission", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, SubmissionResponse{Success: true, RecordID: outcome.RecordID})
}

func (h *SubmissionHandler) handleTestSend(w http.ResponseWriter, r *http.Request, logger *slog.Logger, req SubmissionRequest) {
	ctx := r.Context()

	if req.Recipient == "" {
		h.jsonError(w, "Recipient is required for a test send", http.StatusBadRequest)
		return
	}

	result, err := h.diagnostics.TestSend(ctx, req.Recipient)
	if err != nil {
		if errors.Is(err, app.ErrRecipientNotAllowed) {
			h.jsonError(w, err.Error(), http.StatusForbidden)
			return
		}
		logger.ErrorContext(ctx, "Test send failed", "error", err, "recipient", req.Recipient)
		h.jsonError(w, "Test send failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, TestSendResponse{
		Success:           true,
		Attempts:          result.Attempts,
		ProviderMessageID: result.ProviderMessageID,
	})
}

func (h *SubmissionHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *SubmissionHandler) jsonError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(GenericErrorResponse{Error: message})
}
