package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by route template and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "luna",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// WebhookEventsTotal counts billing webhook deliveries by event type and sync outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Billing webhook events by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// CheckoutSessionsTotal counts checkout session attempts by resolved plan and outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "billing",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session creation attempts by plan and outcome.",
	}, []string{"plan", "outcome"})

	// OrphanCustomersTotal counts billing customers discarded after losing the first-checkout race.
	OrphanCustomersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "billing",
		Name:      "orphan_customers_total",
		Help:      "Billing customers created concurrently and discarded.",
	})

	// ChatMessagesTotal counts chat attempts by outcome.
	ChatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Chat messages by outcome (replied, limit_reached, persona_locked, error).",
	}, []string{"outcome"})

	// ChatPersistFailuresTotal counts chat exchanges that were answered but not stored.
	ChatPersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "luna",
		Subsystem: "chat",
		Name:      "persist_failures_total",
		Help:      "Chat exchanges whose history write failed.",
	})
)

// Outcome labels shared by the counters above.
const (
	OutcomeApplied       = "applied"
	OutcomeIgnored       = "ignored"
	OutcomeNoMatch       = "no_match"
	OutcomeAmbiguous     = "ambiguous"
	OutcomeError         = "error"
	OutcomeInvalid       = "invalid_signature"
	OutcomeCreated       = "created"
	OutcomeReplied       = "replied"
	OutcomeLimitReached  = "limit_reached"
	OutcomePersonaLocked = "persona_locked"
)
