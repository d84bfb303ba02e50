package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCertify(t *testing.T) {
	ObserveCertify("m1", nil, time.Millisecond)
	ObserveCertify("m1", errors.New("boom"), time.Millisecond)
	ObserveCertify("m1", nil, time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(certifyTotal.WithLabelValues("m1", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(certifyTotal.WithLabelValues("m1", "error")))
}

func TestObserveStatus(t *testing.T) {
	ObserveStatus("m2", "IN_MEMPOOL")
	ObserveStatusError("m2")
	require.Equal(t, 1.0, testutil.ToFloat64(statusTotal.WithLabelValues("m2", "IN_MEMPOOL")))
	require.Equal(t, 1.0, testutil.ToFloat64(statusErrors.WithLabelValues("m2")))

	SetWatching(3)
	require.Equal(t, 3.0, testutil.ToFloat64(watching))
}
