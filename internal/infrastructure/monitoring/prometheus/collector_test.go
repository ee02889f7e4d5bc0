package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "medcheck"}, nil)
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetricsCollector_RequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	require.Error(t, err)
}

func TestRegisterCounter_ExposedOnScrape(t *testing.T) {
	c := newTestCollector(t)
	counter := c.RegisterCounter("things_total", "Things seen.", "kind")
	counter.WithLabelValues("widget").Inc()
	counter.WithLabelValues("widget").Add(2)

	body := scrape(t, c)
	assert.Contains(t, body, `medcheck_things_total{kind="widget"} 3`)
}

func TestRegisterCounter_DuplicateNameReturnsSameVec(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("dupes_total", "Dupes.")
	second := c.RegisterCounter("dupes_total", "Dupes.")

	first.WithLabelValues().Inc()
	second.WithLabelValues().Inc()

	assert.Contains(t, scrape(t, c), "medcheck_dupes_total 2")
}

func TestRegisterGauge_SetAndScrape(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("queue_depth", "Depth.")
	g.WithLabelValues().Set(7)

	assert.Contains(t, scrape(t, c), "medcheck_queue_depth 7")
}

func TestRegisterHistogram_ObservationsCounted(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("latency_seconds", "Latency.", []float64{0.1, 1})
	h.WithLabelValues().Observe(0.05)
	h.WithLabelValues().Observe(0.5)

	body := scrape(t, c)
	assert.Contains(t, body, "medcheck_latency_seconds_count 2")
}

func TestSubsystemPrefixed(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "medcheck", Subsystem: "engine"}, nil)
	require.NoError(t, err)
	c.RegisterCounter("runs_total", "Runs.").WithLabelValues().Inc()

	assert.Contains(t, scrape(t, c), "medcheck_engine_runs_total 1")
}
