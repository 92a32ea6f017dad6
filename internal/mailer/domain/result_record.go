package domain

import "time"

// ResultRecord is the persisted trigger for a submission: a quiz result that
// produced outbound notifications. The wider quiz data model lives outside
// this service; only the fields the mail pipeline needs are kept here.
type ResultRecord struct {
	ID          string
	Recipient   string
	Score       int
	Total       int
	Title       string
	Description string
	Insights    []string
	Language    string
	CreatedAt   time.Time
}
