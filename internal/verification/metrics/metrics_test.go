package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAttemptStarted("captcha")
		m.IncOutcome("approved")
		m.IncDuplicate("polling")
		m.ObserveProvider("status", errors.New("boom"), time.Second)
		m.AttemptOpened()
	})
}

func TestCountersRegisterOnProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncOutcome("approved")
	m.IncOutcome("approved")
	m.IncCacheLookup("memory", "hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("memory", "hit")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
