package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDelivery(t *testing.T) {
	ok := testutil.ToFloat64(Deliveries.WithLabelValues("edit", ResultSuccess))
	bad := testutil.ToFloat64(Deliveries.WithLabelValues("edit", ResultFailure))

	ObserveDelivery("edit", nil)
	ObserveDelivery("edit", errors.New("unknown webhook"))
	ObserveDelivery("edit", nil)

	assert.Equal(t, ok+2, testutil.ToFloat64(Deliveries.WithLabelValues("edit", ResultSuccess)))
	assert.Equal(t, bad+1, testutil.ToFloat64(Deliveries.WithLabelValues("edit", ResultFailure)))
}
