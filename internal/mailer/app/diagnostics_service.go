package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/quizgate/mailer/internal/mailer/dnscheck"
	"github.com/quizgate/mailer/internal/mailer/domain"
	"github.com/quizgate/mailer/internal/mailer/smtp"
)

// ErrRecipientNotAllowed rejects test sends to addresses outside the
// operator allow-list.
var ErrRecipientNotAllowed = errors.New("test recipient not allowed: must be an administrator or the configured sender address")

// RelayPinger checks relay reachability without submitting a message.
type RelayPinger interface {
	Ping(ctx context.Context) error
}

// ConnectionReport combines relay reachability with the DNS posture.
type ConnectionReport struct {
	RelayReachable bool                       `json:"relay_reachable"`
	RelayError     string                     `json:"relay_error,omitempty"`
	CheckedAt      time.Time                  `json:"checked_at"`
	DNS            *dnscheck.ReputationReport `json:"dns"`
}

// DiagnosticsService backs the operator-facing actions: connection checks,
// DNS-only checks, DKIM key generation and restricted test sends.
type DiagnosticsService struct {
	validator *dnscheck.Validator
	pinger    RelayPinger
	retrier   *DeliveryRetrier
	settings  domain.MailSettings
	logger    *slog.Logger
}

// NewDiagnosticsService wires the diagnostics.
func NewDiagnosticsService(
	validator *dnscheck.Validator,
	pinger RelayPinger,
	retrier *DeliveryRetrier,
	settings domain.MailSettings,
	logger *slog.Logger,
) *DiagnosticsService {
	return &DiagnosticsService{
		validator: validator,
		pinger:    pinger,
		retrier:   retrier,
		settings:  settings,
		logger:    logger.With("service", "diagnostics"),
	}
}

// CheckConnection tests relay reachability and assembles the DNS report. A
// relay failure does not suppress the DNS half.
func (s *DiagnosticsService) CheckConnection(ctx context.Context) *ConnectionReport {
	report := &ConnectionReport{CheckedAt: time.Now().UTC()}

	if err := s.pinger.Ping(ctx); err != nil {
		report.RelayError = err.Error()
		s.logger.WarnContext(ctx, "Relay connection check failed", "error", err)
	} else {
		report.RelayReachable = true
	}

	report.DNS = s.CheckDNS(ctx)
	return report
}

// CheckDNS resolves the sender-domain SPF/DKIM/DMARC posture.
func (s *DiagnosticsService) CheckDNS(ctx context.Context) *dnscheck.ReputationReport {
	return s.validator.Check(ctx, s.senderDomain(), s.settings.DKIMSelector, s.settings.DKIMDomain)
}

// GenerateDKIMKeys creates a fresh signing key pair for the operator to
// publish and configure.
func (s *DiagnosticsService) GenerateDKIMKeys() (*dnscheck.DKIMKeyPair, error) {
	return dnscheck.GenerateDKIMKeyPair(2048)
}

// TestSend submits one test message through the full retrier/transport path.
// The allow-list check is mandatory: only operators and the configured sender
// address may receive test mail.
func (s *DiagnosticsService) TestSend(ctx context.Context, recipient string) (*SendResult, error) {
	if !s.settings.IsAllowedTestRecipient(recipient) {
		return nil, ErrRecipientNotAllowed
	}

	msg := &smtp.Message{
		FromName:  s.settings.SenderName,
		FromEmail: s.settings.SenderEmail,
		To:        []string{recipient},
		ReplyTo:   s.settings.ReplyTo,
		Subject:   "Mailer test message",
		HTMLBody:  "<html><body><p>This is a test message from the mail pipeline.</p></body></html>",
	}

	result, err := s.retrier.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Test message sent", "recipient", recipient, "attempts", result.Attempts)
	return result, nil
}

func (s *DiagnosticsService) senderDomain() string {
	if at := strings.LastIndex(s.settings.SenderEmail, "@"); at >= 0 && at < len(s.settings.SenderEmail)-1 {
		return s.settings.SenderEmail[at+1:]
	}
	return s.settings.SenderEmail
}
