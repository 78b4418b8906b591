package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PayoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"}, // completed|failed|idempotent
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payout_breaker_state",
			Help: "Processor circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"breaker"}, // accounts|transfers|balances
	)

	BreakerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_breaker_rejections_total",
			Help: "Calls rejected by an open breaker without reaching the processor",
		},
		[]string{"breaker"},
	)

	BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_batch_items_total",
			Help: "Pending-payout sweep items by result",
		},
		[]string{"result"}, // succeeded|failed
	)

	PaymentsConsumerLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payout_payments_consumer_lag",
			Help: "Messages behind the head of the payments.completed topic",
		},
	)

	DeadLetterDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payout_dead_letter_depth",
			Help: "Failure records waiting in the dead letter queue",
		},
	)

	FailureRecordsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payout_failure_records_dropped_total",
			Help: "Failed-payout rows that could be neither inserted nor dead-lettered",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		PayoutsTotal,
		BreakerState,
		BreakerRejections,
		BatchItemsTotal,
		PaymentsConsumerLag,
		DeadLetterDepth,
		FailureRecordsDropped,
	)
}
