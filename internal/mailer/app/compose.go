package app

import (
	"fmt"
	"html"
	"strings"

	"github.com/quizgate/mailer/internal/mailer/domain"
)

// subjectTemplates holds the per-language subject lines; unknown languages
// fall back to English.
var subjectTemplates = map[string]map[domain.MessageCategory]string{
	"en": {
		domain.CategoryRecipientResult: "Your quiz result: %d/%d",
		domain.CategoryOperatorResult:  "New quiz submission: %d/%d",
	},
	"et": {
		domain.CategoryRecipientResult: "Sinu testi tulemus: %d/%d",
		domain.CategoryOperatorResult:  "Uus testi vastus: %d/%d",
	},
}

func subjectFor(category domain.MessageCategory, language string, score, total int) string {
	byCategory, ok := subjectTemplates[language]
	if !ok {
		byCategory = subjectTemplates["en"]
	}
	tmpl, ok := byCategory[category]
	if !ok {
		tmpl = subjectTemplates["en"][category]
	}
	return fmt.Sprintf(tmpl, score, total)
}

// composeResultBody renders the HTML body for a result notification. The
// operator variant leads with the recipient address so inbox scanning works.
func composeResultBody(rec *domain.ResultRecord, category domain.MessageCategory) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if category == domain.CategoryOperatorResult {
		fmt.Fprintf(&b, "<p>Submission from <strong>%s</strong></p>", html.EscapeString(rec.Recipient))
	}
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(rec.Title))
	fmt.Fprintf(&b, "<p>Score: <strong>%d / %d</strong></p>", rec.Score, rec.Total)
	if rec.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(rec.Description))
	}
	if len(rec.Insights) > 0 {
		b.WriteString("<ul>")
		for _, insight := range rec.Insights {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(insight))
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
