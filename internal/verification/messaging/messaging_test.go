package messaging

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/verification/metrics"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	n := bus.Publish(Message{Origin: "https://app.example", Data: []byte("hi")})
	assert.Equal(t, 2, n)
	assert.Equal(t, "hi", string((<-a).Data))
	assert.Equal(t, "hi", string((<-b).Data))
}

func TestBusCancel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers())
	assert.Equal(t, 0, bus.Publish(Message{Origin: "https://app.example"}))
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	bus := NewBus(WithMetrics(m), WithBuffer(2))
	_, cancel := bus.Subscribe()
	defer cancel()

	for range 2 {
		require.Equal(t, 1, bus.Publish(Message{}))
	}
	assert.Equal(t, 0, bus.Publish(Message{}))
	assert.Equal(t, 0, bus.Publish(Message{}))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DroppedSignals.WithLabelValues("message", "buffer_full")))
}

func TestBusWithoutMetricsStillDrops(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	for range DefaultBuffer {
		bus.Publish(Message{})
	}
	assert.Equal(t, 0, bus.Publish(Message{}))
}

func TestOriginOf(t *testing.T) {
	o, err := OriginOf("https://Verify.Provider.example:8443/session/abc?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://verify.provider.example:8443", o)

	_, err = OriginOf("/relative/path")
	assert.Error(t, err)
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://app.example", "https://verify.provider.example/session/1"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example", true},
		{"https://verify.provider.example", true},
		{"https://APP.example/", true},
		{"http://app.example", false},
		{"https://app.example.evil.test", false},
		{"https://evil.test", false},
		{"", false},
		{"null", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginAllowed(tt.origin, allowed...))
		})
	}
}
