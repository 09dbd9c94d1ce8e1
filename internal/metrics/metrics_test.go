package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(reservationSubmitted.WithLabelValues(OutcomeConflict))
	IncReservationSubmitted(OutcomeConflict)
	assert.Equal(t, before+1, testutil.ToFloat64(reservationSubmitted.WithLabelValues(OutcomeConflict)))

	before = testutil.ToFloat64(reservationCancelled.WithLabelValues(OutcomeNotOwner))
	IncReservationCancelled(OutcomeNotOwner)
	assert.Equal(t, before+1, testutil.ToFloat64(reservationCancelled.WithLabelValues(OutcomeNotOwner)))

	before = testutil.ToFloat64(logins.WithLabelValues("ok"))
	IncLogin("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(logins.WithLabelValues("ok")))

	SetJoinGaps(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(joinGaps))

	SetUpcoming(5)
	assert.Equal(t, float64(5), testutil.ToFloat64(upcoming))

	ObserveRemote("list users", 0.2)
	assert.Equal(t, 1, testutil.CollectAndCount(remoteLatency))
}
