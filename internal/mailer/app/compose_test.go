package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizgate/mailer/internal/mailer/domain"
)

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "Your quiz result: 7/10", subjectFor(domain.CategoryRecipientResult, "en", 7, 10))
	assert.Equal(t, "Sinu testi tulemus: 7/10", subjectFor(domain.CategoryRecipientResult, "et", 7, 10))
	assert.Equal(t, "New quiz submission: 3/5", subjectFor(domain.CategoryOperatorResult, "en", 3, 5))
	assert.Equal(t, "Your quiz result: 1/2", subjectFor(domain.CategoryRecipientResult, "fr", 1, 2),
		"unknown languages fall back to English")
}

func TestComposeResultBodyEscapesUserContent(t *testing.T) {
	rec := &domain.ResultRecord{
		Recipient:   "taker@example.com",
		Score:       7,
		Total:       10,
		Title:       "<script>alert(1)</script>",
		Description: "Solid grasp of the basics",
		Insights:    []string{"Review goroutines & channels"},
	}

	body := composeResultBody(rec, domain.CategoryRecipientResult)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "Score: <strong>7 / 10</strong>")
	assert.Contains(t, body, "<li>Review goroutines &amp; channels</li>")
	assert.NotContains(t, body, "Submission from", "the recipient variant does not lead with the address")
}

func TestComposeResultBodyOperatorVariant(t *testing.T) {
	rec := &domain.ResultRecord{Recipient: "taker@example.com", Score: 7, Total: 10, Title: "Go Basics"}

	body := composeResultBody(rec, domain.CategoryOperatorResult)

	assert.Contains(t, body, "Submission from <strong>taker@example.com</strong>")
}
