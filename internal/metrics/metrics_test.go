package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", StatusClass(200))
	require.Equal(t, "4xx", StatusClass(404))
	require.Equal(t, "5xx", StatusClass(504))
	require.Equal(t, "other", StatusClass(999))
}

func TestObserveResponseIncrementsCounter(t *testing.T) {
	s := New()
	s.ObserveResponse(200)
	s.ObserveResponse(404)
	s.ObserveResponse(404)

	require.InDelta(t, 1, testCounterValue(t, s, "2xx"), 0)
	require.InDelta(t, 2, testCounterValue(t, s, "4xx"), 0)
}

func testCounterValue(t *testing.T, s *Set, class string) float64 {
	t.Helper()
	metricFamilies, err := s.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != "localserver_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status_class" && l.GetValue() == class {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
