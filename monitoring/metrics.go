// Package monitoring exposes the engine's Prometheus collectors.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxoffice_tickets_allocated_total",
		Help: "Tickets claimed by committed purchases, by section.",
	}, []string{"section"})

	PurchasesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxoffice_purchases_rejected_total",
		Help: "Purchases rejected before commit, by reason.",
	}, []string{"reason"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxoffice_payment_transitions_total",
		Help: "Payment state machine transitions, by target state.",
	}, []string{"status"})

	TicketsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxoffice_tickets_redeemed_total",
		Help: "Ticket allocations redeemed at the gate.",
	})

	PurchasesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxoffice_purchases_expired_total",
		Help: "Pending purchases cancelled by the expiry sweep.",
	})

	PurchaseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boxoffice_purchase_duration_seconds",
		Help:    "Wall time of the purchase transaction, lock wait included.",
		Buckets: prometheus.DefBuckets,
	})
)
