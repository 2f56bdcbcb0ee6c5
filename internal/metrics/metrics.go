package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrelay_webhooks_received_total",
		Help: "Total number of webhook requests hitting the relay endpoint.",
	})

	WebhooksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrelay_webhooks_rejected_total",
		Help: "Total number of webhook requests failing signature verification.",
	})

	WebhooksIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrelay_webhooks_ignored_total",
		Help: "Total number of verified webhooks skipped by the event-type filter.",
	})

	WebhooksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrelay_webhooks_dispatched_total",
		Help: "Total number of accepted payment events fanned out to the enabled channels.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrelay_deliveries_total",
		Help: "Total number of notifier sends, labelled by channel and status.",
	}, []string{"channel", "status"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payrelay_dispatch_duration_ms",
		Help:    "End-to-end fan-out latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
)
