package reply

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	replyOutcomesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textrelay",
			Name:      "reply_outcomes_total",
			Help:      "Webhook replies by outcome.",
		},
		[]string{"outcome"}, // "immediate", "fallback", "deferred"
	)

	deliveriesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textrelay",
			Name:      "deliveries_total",
			Help:      "Out-of-band reply deliveries.",
		},
		[]string{"status"}, // "sent", "failed", "skipped"
	)

	completionDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "textrelay",
			Name:      "completion_duration_seconds",
			Help:      "Duration of completion calls, including time past the reply deadline.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"result"}, // "success" or a llm.Classify failure kind
	)
)

const (
	outcomeLabelImmediate = "immediate"
	outcomeLabelFallback  = "fallback"
	outcomeLabelDeferred  = "deferred"

	deliveryLabelSent    = "sent"
	deliveryLabelFailed  = "failed"
	deliveryLabelSkipped = "skipped"
)
