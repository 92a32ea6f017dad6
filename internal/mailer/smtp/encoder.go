package smtp

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const crlf = "\r\n"

// base64LineWidth is the transfer-encoding line limit for the message body.
const base64LineWidth = 76

// Message is one outbound email ready for submission.
type Message struct {
	FromName  string
	FromEmail string
	To        []string
	ReplyTo   string
	Subject   string
	HTMLBody  string

	// MessageID is assigned by Encode when empty.
	MessageID string
}

// Encode renders the full RFC 5322 message: headers, then the HTML body
// base64-encoded and wrapped at 76 columns, CRLF line endings throughout.
// The trailing end-of-data marker is NOT included; the client appends it.
func (m *Message) Encode() []byte {
	if m.MessageID == "" {
		domain := "localhost"
		if at := strings.LastIndex(m.FromEmail, "@"); at >= 0 && at < len(m.FromEmail)-1 {
			domain = m.FromEmail[at+1:]
		}
		m.MessageID = fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
	}

	var b strings.Builder
	fromDisplay := encodeWord(m.FromName)
	if fromDisplay != "" {
		fmt.Fprintf(&b, "From: %s <%s>%s", fromDisplay, m.FromEmail, crlf)
	} else {
		fmt.Fprintf(&b, "From: <%s>%s", m.FromEmail, crlf)
	}
	fmt.Fprintf(&b, "To: %s%s", strings.Join(m.To, ", "), crlf)
	if m.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: <%s>%s", m.ReplyTo, crlf)
	}
	fmt.Fprintf(&b, "Subject: %s%s", encodeWord(m.Subject), crlf)
	fmt.Fprintf(&b, "Message-ID: %s%s", m.MessageID, crlf)
	fmt.Fprintf(&b, "Date: %s%s", time.Now().UTC().Format(time.RFC1123Z), crlf)
	b.WriteString("MIME-Version: 1.0" + crlf)
	b.WriteString(`Content-Type: text/html; charset="UTF-8"` + crlf)
	b.WriteString("Content-Transfer-Encoding: base64" + crlf)
	b.WriteString(crlf)
	b.WriteString(wrapBase64(m.HTMLBody))

	return []byte(b.String())
}

// encodeWord applies RFC 2047 B-encoding only when the input contains
// non-ASCII bytes; plain ASCII passes through untouched.
func encodeWord(s string) string {
	if isASCII(s) {
		return s
	}
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

// wrapBase64 base64-encodes the body and chunks the output at the
// transfer-encoding line width, each line CRLF-terminated.
func wrapBase64(body string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	var b strings.Builder
	for len(encoded) > base64LineWidth {
		b.WriteString(encoded[:base64LineWidth])
		b.WriteString(crlf)
		encoded = encoded[base64LineWidth:]
	}
	if len(encoded) > 0 {
		b.WriteString(encoded)
		b.WriteString(crlf)
	}
	return b.String()
}
