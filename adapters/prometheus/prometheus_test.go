package prometheus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewESMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewESMetrics(reg)
	require.NotNil(t, m)

	timer := m.PushDuration("entities")
	assert.NotNil(t, timer)
	timer.ObserveDuration()
	m.EventPushed("entities", true)
	m.EventPushed("entities", false)

	timer = m.ApplyDuration("entities")
	assert.NotNil(t, timer)
	timer.ObserveDuration()
	m.EventApplied("entities", true, true)
	m.EventApplied("entities", false, false)

	m.PendingWrites("entities", 3)
	m.CacheEntries("entities", 42)

	m.EventEmitted("entities")
	m.EventEmitted("entities")
	m.SubscriberBacklog("entities", 7)
	m.SubscriberError("entities")

	es := m.(*esMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(es.eventsPushed.WithLabelValues("entities", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(es.eventsApplied.WithLabelValues("entities", "false", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(es.pendingWrites.WithLabelValues("entities")))
	assert.Equal(t, 42.0, testutil.ToFloat64(es.cacheEntries.WithLabelValues("entities")))
	assert.Equal(t, 2.0, testutil.ToFloat64(es.eventsEmitted.WithLabelValues("entities")))
	assert.Equal(t, 7.0, testutil.ToFloat64(es.subscriberBacklog.WithLabelValues("entities")))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP entstore_es_subscriber_errors_total Total number of events a subscriber failed to process
# TYPE entstore_es_subscriber_errors_total counter
entstore_es_subscriber_errors_total{event_type="entities"} 1
`), "entstore_es_subscriber_errors_total"))

	count, err := testutil.GatherAndCount(reg, "entstore_es_push_duration_seconds", "entstore_es_apply_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.RequestDuration("/entities/*", "GET").ObserveDuration()
	m.RequestCompleted("/entities/*", "GET", 200)
	m.RequestCompleted("/entities/*", "GET", 404)
	m.RequestCompleted("/entities/*", "GET", 404)

	h := m.(*httpMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.requests.WithLabelValues("/entities/*", "GET", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(h.requestDuration))
}

func TestNewAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAllMetrics(reg)
	require.NotNil(t, m.ES)
	require.NotNil(t, m.HTTP)

	m.ES.EventEmitted("defaults")
	m.HTTP.RequestCompleted("/health", "GET", 200)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestBoolToStr(t *testing.T) {
	assert.Equal(t, "true", boolToStr(true))
	assert.Equal(t, "false", boolToStr(false))
}
