package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LockAcquired(5 * time.Millisecond)
	m.LockConflict()
	m.LockConflict()
	m.TurnsAccrued(7, 2)
	m.Transition("abandoned")
	m.PassFinished("turns", "ok", time.Second)
	m.EmpireFailed()
	m.Login("ok")

	assert.Equal(t, 2.0, counterValue(t, reg, "promisance_lock_conflicts_total"))
	assert.Equal(t, 7.0, counterValue(t, reg, "promisance_turns_granted_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "promisance_turns_discarded_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "promisance_lifecycle_transitions_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "promisance_scheduler_passes_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "promisance_scheduler_empire_failures_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "promisance_logins_total"))
}

func TestHandler_ServesText(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).LockConflict()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "promisance_lock_conflicts_total 1")
}
