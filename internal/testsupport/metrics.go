package testsupport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

// GetMetricValue reads the current value of a metric from the default
// Prometheus gatherer. Counters and gauges return their value;
// histograms return their sample count. Missing metrics read as 0, so
// delta assertions work before the first observation.
func GetMetricValue(t *testing.T, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != metricName {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labelFilter) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

// AssertMetricDelta asserts that running fn moves the metric by exactly
// expectedDelta.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, expectedDelta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertHistogramRecorded asserts that a histogram has at least one
// sample.
func AssertHistogramRecorded(t *testing.T, metricName string, labels map[string]string) {
	t.Helper()

	count := GetMetricValue(t, metricName, labels)
	assert.Greater(t, count, 0.0, "histogram %s%v should have recorded samples", metricName, labels)
}

// labelsMatch reports whether the metric carries every label pair in
// the filter. An empty filter matches anything.
func labelsMatch(m *dto.Metric, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}

	have := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		have[pair.GetName()] = pair.GetValue()
	}

	for name, want := range filter {
		if have[name] != want {
			return false
		}
	}
	return true
}
