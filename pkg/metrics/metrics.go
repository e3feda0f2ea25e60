package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consume outcomes.
const (
	OutcomeAck          = "ack"
	OutcomeMalformed    = "malformed"
	OutcomeUnknown      = "unknown"
	OutcomeDropped      = "dropped"
	OutcomeDeadLettered = "dead-lettered"
)

var (
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobber_messages_consumed_total",
		Help: "Messages taken off a queue, by final outcome",
	}, []string{"queue", "outcome"})

	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobber_messages_published_total",
		Help: "Publish attempts by exchange and result",
	}, []string{"exchange", "result"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobber_handler_duration_seconds",
		Help:    "Time spent routing and handling one delivery",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})

	HandlerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobber_handler_retries_total",
		Help: "Handler re-attempts made by the retry failure policy",
	}, []string{"queue"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobber_emails_sent_total",
		Help: "Emails handed to the mail transport, by template and result",
	}, []string{"template", "result"})
)

// IncConsumed records the outcome of one delivery.
func IncConsumed(queue, outcome string) {
	if queue == "" {
		queue = "unknown"
	}
	MessagesConsumed.WithLabelValues(queue, outcome).Inc()
}

// IncEmailSent records one email send attempt.
func IncEmailSent(template string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EmailsSent.WithLabelValues(template, result).Inc()
}

// IncPublished records one publish attempt.
func IncPublished(exchange string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if exchange == "" {
		exchange = "default"
	}
	MessagesPublished.WithLabelValues(exchange, result).Inc()
}
