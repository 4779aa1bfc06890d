package chat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestTypingSetExpiry(t *testing.T) {
	ts := NewTypingSet(50*time.Millisecond, nil)
	defer ts.Stop()

	ts.Add("Ada")
	require.Equal(t, []string{"Ada"}, ts.Names())

	waitFor(t, time.Second, func() bool { return len(ts.Names()) == 0 })
}

func TestTypingSetRepeatEventsRestartWindow(t *testing.T) {
	ts := NewTypingSet(80*time.Millisecond, nil)
	defer ts.Stop()

	ts.Add("Ada")
	time.Sleep(50 * time.Millisecond)
	ts.Add("Ada")
	time.Sleep(50 * time.Millisecond)

	// 100ms after the first event but only 50ms after the second.
	require.Equal(t, []string{"Ada"}, ts.Names())

	waitFor(t, time.Second, func() bool { return len(ts.Names()) == 0 })
}

func TestTypingSetOrdersNames(t *testing.T) {
	ts := NewTypingSet(time.Second, nil)
	defer ts.Stop()

	ts.Add("Cy")
	ts.Add("Ada")
	ts.Add("Bo")
	require.Equal(t, []string{"Ada", "Bo", "Cy"}, ts.Names())
}

func TestTypingSetNotifiesOnChange(t *testing.T) {
	var changes atomic.Int32
	ts := NewTypingSet(30*time.Millisecond, func() { changes.Add(1) })
	defer ts.Stop()

	ts.Add("Ada")
	require.Equal(t, int32(1), changes.Load())

	// Refreshing an existing entry is not a membership change.
	ts.Add("Ada")
	require.Equal(t, int32(1), changes.Load())

	waitFor(t, time.Second, func() bool { return changes.Load() == 2 })
}

func TestTypingSetStopCancelsTimers(t *testing.T) {
	var changes atomic.Int32
	ts := NewTypingSet(20*time.Millisecond, func() { changes.Add(1) })

	ts.Add("Ada")
	ts.Stop()
	require.Empty(t, ts.Names())

	before := changes.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, before, changes.Load())
}
