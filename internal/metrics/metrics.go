package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtbook"

var (
	once sync.Once

	reservationSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_submitted_total",
			Help:      "Count of reservation submissions by outcome.",
		},
		[]string{"outcome"},
	)

	reservationCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_cancelled_total",
			Help:      "Count of cancellation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	storeReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reload_total",
			Help:      "Count of reservation store reloads by result.",
		},
		[]string{"result"},
	)

	joinGaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_join_gaps",
			Help:      "Reservations whose requester was missing from the last user list.",
		},
	)

	upcoming = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_upcoming_reservations",
			Help:      "Reservations starting at or after the last reload.",
		},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_login_total",
			Help:      "Count of logins against the identity provider by result.",
		},
		[]string{"result"},
	)

	remoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of booking service calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Outcomes of a reservation submission.
const (
	OutcomeConfirmed   = "confirmed"
	OutcomeConflict    = "conflict"
	OutcomeRemoteError = "remote_error"
	OutcomeInvalid     = "invalid"
	OutcomeNotFound    = "not_found"
	OutcomeNotOwner    = "not_owner"
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationSubmitted, reservationCancelled, storeReloads, joinGaps, upcoming, logins, remoteLatency)
	})
}

func IncReservationSubmitted(outcome string) {
	reservationSubmitted.WithLabelValues(outcome).Inc()
}

func IncReservationCancelled(outcome string) {
	reservationCancelled.WithLabelValues(outcome).Inc()
}

// IncStoreReload records a reload; result is "ok" or "partial".
func IncStoreReload(result string) {
	storeReloads.WithLabelValues(result).Inc()
}

func SetJoinGaps(n int) {
	joinGaps.Set(float64(n))
}

func SetUpcoming(n int) {
	upcoming.Set(float64(n))
}

func IncLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

func ObserveRemote(op string, seconds float64) {
	remoteLatency.WithLabelValues(op).Observe(seconds)
}
