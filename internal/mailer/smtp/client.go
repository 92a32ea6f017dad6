package smtp

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// ErrNotConfigured reports an operation attempted without relay settings.
// Callers should fail fast on it; retrying cannot help.
var ErrNotConfigured = errors.New("smtp: relay host not configured")

// RelayConfig describes the upstream submission relay.
type RelayConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// ImplicitTLS wraps the socket in TLS before the greeting (port 465
	// semantics). Otherwise STARTTLS is negotiated after EHLO when the
	// relay advertises it.
	ImplicitTLS bool
	Timeout     time.Duration
}

// ProtocolError is an unexpected relay status code, carrying the code and
// full reply text for diagnostics.
type ProtocolError struct {
	Command string
	Code    int
	Reply   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("smtp: unexpected reply to %s: %d %s", e.Command, e.Code, e.Reply)
}

// Client submits messages to a single configured relay. Each Send call opens
// its own connection and tears it down afterwards.
type Client struct {
	cfg    RelayConfig
	logger *slog.Logger
}

// NewClient creates a transport client for the given relay.
func NewClient(cfg RelayConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, logger: logger.With("component", "smtp_client")}
}

// Send connects, authenticates and submits exactly one message, returning the
// message identifier the relay will be queried about later.
func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	if c.cfg.Host == "" {
		return "", ErrNotConfigured
	}

	s, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	// Teardown always attempts a graceful QUIT and then releases the socket.
	defer s.close()

	if _, err := s.readReply(220); err != nil {
		return "", err
	}
	ehloReply, err := s.cmd("EHLO quizgate-mailer", 250)
	if err != nil {
		return "", err
	}

	if !c.cfg.ImplicitTLS && strings.Contains(strings.ToUpper(ehloReply), "STARTTLS") {
		if _, err := s.cmd("STARTTLS", 220); err != nil {
			return "", err
		}
		s.upgradeTLS(c.cfg.Host)
		if _, err := s.cmd("EHLO quizgate-mailer", 250); err != nil {
			return "", err
		}
	}

	if c.cfg.Username != "" {
		if err := s.authLogin(c.cfg.Username, c.cfg.Password); err != nil {
			return "", err
		}
	}

	if _, err := s.cmd(fmt.Sprintf("MAIL FROM:<%s>", msg.FromEmail), 250); err != nil {
		return "", err
	}
	for _, rcpt := range msg.To {
		if _, err := s.cmd(fmt.Sprintf("RCPT TO:<%s>", rcpt), 250, 251); err != nil {
			return "", err
		}
	}

	if _, err := s.cmd("DATA", 354); err != nil {
		return "", err
	}
	if err := s.write(msg.Encode()); err != nil {
		return "", err
	}
	// End-of-data marker.
	if _, err := s.cmd(".", 250); err != nil {
		return "", err
	}

	c.logger.DebugContext(ctx, "Message accepted by relay", "message_id", msg.MessageID, "recipients", len(msg.To))
	return msg.MessageID, nil
}

// Ping verifies the relay is reachable and speaks the protocol: connect,
// greet, EHLO, QUIT.
func (c *Client) Ping(ctx context.Context) error {
	if c.cfg.Host == "" {
		return ErrNotConfigured
	}
	s, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if _, err := s.readReply(220); err != nil {
		return err
	}
	if _, err := s.cmd("EHLO quizgate-mailer", 250); err != nil {
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: c.cfg.Timeout}

	var conn net.Conn
	var err error
	if c.cfg.ImplicitTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	return &session{conn: conn, reader: bufio.NewReader(conn), timeout: c.cfg.Timeout}, nil
}

// session is one open relay connection with a line-buffered reader.
type session struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	lastCmd string
}

// cmd writes one command line and waits for one of the expected status codes.
func (s *session) cmd(line string, expect ...int) (string, error) {
	s.lastCmd = strings.SplitN(line, " ", 2)[0]
	if err := s.write([]byte(line + crlf)); err != nil {
		return "", err
	}
	return s.readReply(expect...)
}

// readReply accumulates reply lines until the final one (no continuation
// marker), parses the three-digit code and checks it against expectations.
// A multi-line reply ("250-...") is treated as a single logical reply.
func (s *session) readReply(expect ...int) (string, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.timeout))

	var full strings.Builder
	var code int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("smtp: read reply: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if full.Len() > 0 {
			full.WriteString("\n")
		}
		full.WriteString(line)

		if len(line) < 3 {
			return "", fmt.Errorf("smtp: malformed reply line %q", line)
		}
		code, err = strconv.Atoi(line[:3])
		if err != nil {
			return "", fmt.Errorf("smtp: malformed status code in %q", line)
		}
		// "250-" marks continuation; "250 " (or bare "250") ends the reply.
		if len(line) == 3 || line[3] != '-' {
			break
		}
	}

	reply := full.String()
	for _, want := range expect {
		if code == want {
			return reply, nil
		}
	}
	return reply, &ProtocolError{Command: s.lastCmd, Code: code, Reply: reply}
}

// authLogin performs the LOGIN exchange; each credential is base64-encoded
// independently before transmission.
func (s *session) authLogin(username, password string) error {
	if _, err := s.cmd("AUTH LOGIN", 334); err != nil {
		return err
	}
	if _, err := s.cmd(base64.StdEncoding.EncodeToString([]byte(username)), 334); err != nil {
		return err
	}
	if _, err := s.cmd(base64.StdEncoding.EncodeToString([]byte(password)), 235); err != nil {
		return err
	}
	return nil
}

func (s *session) upgradeTLS(serverName string) {
	tlsConn := tls.Client(s.conn, &tls.Config{ServerName: serverName, MinVersion: tls.VersionTLS12})
	s.conn = tlsConn
	s.reader = bufio.NewReader(tlsConn)
}

func (s *session) write(p []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if _, err := s.conn.Write(p); err != nil {
		return fmt.Errorf("smtp: write: %w", err)
	}
	return nil
}

// close quits politely when possible and releases the socket regardless.
func (s *session) close() {
	_, _ = s.cmd("QUIT", 221)
	_ = s.conn.Close()
}
