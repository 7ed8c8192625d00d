package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks checkout initiation and verification outcomes.
type PaymentMetrics struct {
	sessionsCreated *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	outboxPublished prometheus.Counter
	outboxFailed    prometheus.Counter
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	sessionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_created",
		Help: "Checkout sessions opened, by record type.",
	}, []string{"record_type"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications",
		Help: "Verification attempts, by record type and outcome.",
	}, []string{"record_type", "outcome"})
	outboxPublished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published",
		Help: "Outbox events delivered to the broker.",
	})
	outboxFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures",
		Help: "Outbox publish attempts that errored.",
	})
	reg.MustRegister(sessionsCreated, verifications, outboxPublished, outboxFailed)
	return &PaymentMetrics{
		sessionsCreated: sessionsCreated,
		verifications:   verifications,
		outboxPublished: outboxPublished,
		outboxFailed:    outboxFailed,
	}
}

// IncSessionCreated counts a newly opened checkout session.
func (p *PaymentMetrics) IncSessionCreated(recordType string) {
	if p == nil || p.sessionsCreated == nil {
		return
	}
	p.sessionsCreated.WithLabelValues(normalizeLabel(recordType)).Inc()
}

// IncVerification counts a verification attempt with its outcome
// (completed, already_completed, failed, dependency_error).
func (p *PaymentMetrics) IncVerification(recordType, outcome string) {
	if p == nil || p.verifications == nil {
		return
	}
	p.verifications.WithLabelValues(normalizeLabel(recordType), normalizeLabel(outcome)).Inc()
}

// IncOutboxPublished counts an event handed to the broker.
func (p *PaymentMetrics) IncOutboxPublished() {
	if p == nil || p.outboxPublished == nil {
		return
	}
	p.outboxPublished.Inc()
}

// IncOutboxFailed counts a publish attempt that errored.
func (p *PaymentMetrics) IncOutboxFailed() {
	if p == nil || p.outboxFailed == nil {
		return
	}
	p.outboxFailed.Inc()
}
