package smtp

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeaders(t *testing.T) {
	msg := &Message{
		FromName:  "QuizGate",
		FromEmail: "noreply@quizgate.example",
		To:        []string{"taker@example.com"},
		ReplyTo:   "support@quizgate.example",
		Subject:   "Your quiz result",
		HTMLBody:  "<p>hello</p>",
	}

	raw := string(msg.Encode())
	headers, _, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found, "encoded message must separate headers from body with a blank line")

	assert.Contains(t, headers, "From: QuizGate <noreply@quizgate.example>\r\n")
	assert.Contains(t, headers, "To: taker@example.com\r\n")
	assert.Contains(t, headers, "Reply-To: <support@quizgate.example>\r\n")
	assert.Contains(t, headers, "Subject: Your quiz result\r\n")
	assert.Contains(t, headers, "MIME-Version: 1.0\r\n")
	assert.Contains(t, headers, `Content-Type: text/html; charset="UTF-8"`)
	assert.Contains(t, headers, "Content-Transfer-Encoding: base64\r\n")
}

func TestEncodeAssignsMessageID(t *testing.T) {
	msg := &Message{
		FromEmail: "noreply@quizgate.example",
		To:        []string{"taker@example.com"},
		Subject:   "s",
		HTMLBody:  "b",
	}

	raw := string(msg.Encode())

	require.NotEmpty(t, msg.MessageID)
	assert.True(t, strings.HasPrefix(msg.MessageID, "<"), "message id should be angle-bracketed")
	assert.True(t, strings.HasSuffix(msg.MessageID, "@quizgate.example>"), "message id domain should come from the sender address")
	assert.Contains(t, raw, "Message-ID: "+msg.MessageID+"\r\n")
}

func TestEncodePreservesExplicitMessageID(t *testing.T) {
	msg := &Message{
		FromEmail: "noreply@quizgate.example",
		To:        []string{"taker@example.com"},
		MessageID: "<fixed@quizgate.example>",
		HTMLBody:  "b",
	}
	raw := string(msg.Encode())
	assert.Contains(t, raw, "Message-ID: <fixed@quizgate.example>\r\n")
}

func TestEncodeSubjectNonASCII(t *testing.T) {
	msg := &Message{
		FromEmail: "noreply@quizgate.example",
		To:        []string{"taker@example.com"},
		Subject:   "Sinu tulemus on käes",
		HTMLBody:  "b",
	}

	raw := string(msg.Encode())

	expected := "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte("Sinu tulemus on käes")) + "?="
	assert.Contains(t, raw, "Subject: "+expected+"\r\n")
	assert.NotContains(t, raw, "Subject: Sinu tulemus")
}

func TestEncodeBodyWrappedAt76(t *testing.T) {
	body := strings.Repeat("<p>A long paragraph of quiz feedback text.</p>", 20)
	msg := &Message{
		FromEmail: "noreply@quizgate.example",
		To:        []string{"taker@example.com"},
		Subject:   "s",
		HTMLBody:  body,
	}

	raw := string(msg.Encode())
	_, encodedBody, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)

	lines := strings.Split(strings.TrimSuffix(encodedBody, "\r\n"), "\r\n")
	require.Greater(t, len(lines), 1, "long body should span multiple lines")
	for i, line := range lines {
		assert.LessOrEqual(t, len(line), 76, "line %d exceeds the transfer-encoding width", i)
		if i < len(lines)-1 {
			assert.Len(t, line, 76, "all but the last line should be full width")
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encodedBody, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestEncodeFromWithoutDisplayName(t *testing.T) {
	msg := &Message{
		FromEmail: "noreply@quizgate.example",
		To:        []string{"taker@example.com"},
		HTMLBody:  "b",
	}
	raw := string(msg.Encode())
	assert.Contains(t, raw, "From: <noreply@quizgate.example>\r\n")
}
