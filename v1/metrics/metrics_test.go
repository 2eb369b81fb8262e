package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsDefaults(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "gravityd"})
	assert.Equal(t, DefaultAddress, m.Server.Addr)
	require.NotNil(t, m.Registry)
}

func TestObserveOperation(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "gravityd"})

	m.ObserveOperation(observability.OperationContext{Component: "redis", Operation: "get", Duration: time.Millisecond})
	m.ObserveOperation(observability.OperationContext{Component: "redis", Operation: "get", Error: errors.New("x")})
	m.ObserveOperation(observability.OperationContext{Component: "redis", Operation: "get"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("redis", "get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("redis", "get", "error")))
}

func TestCreateCounterCarriesServiceLabel(t *testing.T) {
	m := NewMetrics(Config{ServiceName: "gravityd"})
	c := m.CreateCounter("links_total", "links", []string{"direction"})
	c.WithLabelValues("forward").Add(3)

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "links_total" {
			continue
		}
		found = true
		labels := f.GetMetric()[0].GetLabel()
		names := make(map[string]string)
		for _, l := range labels {
			names[l.GetName()] = l.GetValue()
		}
		assert.Equal(t, "gravityd", names["service"])
		assert.Equal(t, "forward", names["direction"])
	}
	assert.True(t, found)
}
