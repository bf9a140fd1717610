package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestThrottleDecisionHook(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	hook, err := ThrottleDecisionHook()
	require.NoError(t, err)

	hook("general", true)
	hook("general", true)
	hook("general", false)
	hook("login", false)

	families, err := registry.Gather()
	require.NoError(t, err)

	family := findFamily(families, "throttle_decisions_total")
	require.NotNil(t, family, "expected throttle_decisions_total to be exported")

	counts := make(map[string]float64)
	for _, m := range family.GetMetric() {
		key := labelValue(m, "policy") + "/" + labelValue(m, "outcome")
		counts[key] = m.GetCounter().GetValue()
	}

	assert.Equal(t, 2.0, counts["general/allowed"])
	assert.Equal(t, 1.0, counts["general/rejected"])
	assert.Equal(t, 1.0, counts["login/rejected"])
}
