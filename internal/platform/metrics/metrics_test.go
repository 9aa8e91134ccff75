package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRunLifecycleMetrics(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveRunStarted("Create Random Users", "commit")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsStarted.WithLabelValues("Create Random Users", "commit")))

	m.ObserveRunFinished("Create Random Users", "commit", "committed", time.Now().Add(-time.Second))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("Create Random Users", "commit", "committed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncrementLogLines("Information")
	m.IncrementLogLines("Information")
	m.IncrementFinalizationFaults()
	m.AddUsersCreated(3)
	m.AddUsersDeleted(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LogLinesStreamed.WithLabelValues("Information")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FinalizationFaults))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UsersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsersDeleted))
}

func TestNewWithRegistererIsolated(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
