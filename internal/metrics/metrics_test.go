package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/route"
)

func TestObserverCounts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Finished(dispatch.Result{Op: dispatch.OpPush, Duration: 10 * time.Millisecond})
	m.Finished(dispatch.Result{Op: dispatch.OpPush, Err: route.ErrPushFailed, Code: route.CodePushFailed})
	m.Dropped(dispatch.OpPop, "busy")
	m.Stale(dispatch.OpPush, 3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("push", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("push", "push failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DroppedCommands.WithLabelValues("pop", "busy")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults.WithLabelValues("push")))
	require.Equal(t, 1, testutil.CollectAndCount(m.CommandDuration))
}

func TestHooks(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.Hooks()

	h.StackDepth(3)
	h.Drained(2, 2)
	h.Drained(1, 0)
	h.OptionsUpdate(true)
	h.OptionsUpdate(false)
	h.OptionsUpdate(false)

	require.Equal(t, 3.0, testutil.ToFloat64(m.StackDepth))
	require.Equal(t, 2.0, testutil.ToFloat64(m.DrainBatches))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Drained))
	require.Equal(t, 1.0, testutil.ToFloat64(m.OptionsUpdates.WithLabelValues("sent")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.OptionsUpdates.WithLabelValues("skipped")))
}

func TestSeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
