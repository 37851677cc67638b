package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func freshRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	return reg
}

func TestObserveLLMCallIncrementsCounter(t *testing.T) {
	freshRegistry(t)
	LLMCallsTotal.Reset()

	ObserveLLMCall("split_query", 0.5, nil)
	ObserveLLMCall("split_query", 0.2, errors.New("boom"))

	require.Equal(t, float64(1), testutil.ToFloat64(LLMCallsTotal.WithLabelValues("split_query", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(LLMCallsTotal.WithLabelValues("split_query", "error")))
}

func TestObserveRetryIncrementsCounter(t *testing.T) {
	freshRegistry(t)
	RetriesTotal.Reset()

	ObserveRetry("generate_sql")
	ObserveRetry("generate_sql")

	require.Equal(t, float64(2), testutil.ToFloat64(RetriesTotal.WithLabelValues("generate_sql")))
}
