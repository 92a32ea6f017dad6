package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailer",
			Name:      "submissions_total",
			Help:      "Total number of accepted submission requests.",
		},
		[]string{"outcome"}, // "accepted", "sending_disabled"
	)

	queueItemsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailer",
			Name:      "queue_items_enqueued_total",
			Help:      "Total number of queue items created.",
		},
		[]string{"category"},
	)

	queueItemsDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailer",
			Name:      "queue_items_duplicate_total",
			Help:      "Total number of enqueues skipped by the duplicate check.",
		},
		[]string{"category"},
	)

	sendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailer",
			Name:      "send_attempts_total",
			Help:      "Total number of processed queue items by outcome.",
		},
		[]string{"outcome"}, // "sent", "failed"
	)

	sendDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mailer",
			Name:      "send_duration_seconds",
			Help:      "Duration of one queue item delivery, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailer",
			Name:      "webhook_events_total",
			Help:      "Total number of provider events processed.",
		},
		[]string{"event_type", "outcome"}, // outcome: "matched", "unmatched", "error"
	)
)
