package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWakerWakeSchedulesTask(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.andNotState(taskNotified) // idle, as after a Pending poll
	cx := &Context{task: th}

	w := cx.Waker()
	require.Equal(t, int64(2), th.refs.Load())

	// Wake releases the waker's ref but hands one to the run queue.
	w.Wake()
	require.True(t, sched.scheduled)
	require.Equal(t, int64(2), th.refs.Load())
}

func TestWakerWakeByRefDoesNotReleaseRef(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.andNotState(taskNotified) // idle, as after a Pending poll
	cx := &Context{task: th}

	// base ref + waker ref + the ref handed to the run queue
	w := cx.Waker()
	w.WakeByRef()
	require.True(t, sched.scheduled)
	require.Equal(t, int64(3), th.refs.Load())

	w.Drop()
	require.Equal(t, int64(2), th.refs.Load())
}

func TestWakerWillWake(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	cx := &Context{task: th}

	a := cx.Waker()
	b := cx.Waker()
	require.True(t, a.WillWake(b))
	require.False(t, a.WillWake(nil))
	a.Drop()
	b.Drop()
}

func TestWakerCloneIndependentRef(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	cx := &Context{task: th}

	w := cx.Waker()
	clone := w.Clone()
	require.Equal(t, int64(3), th.refs.Load())

	w.Drop()
	require.Equal(t, int64(2), th.refs.Load())
	clone.Drop()
	require.Equal(t, int64(1), th.refs.Load())
}

type fakeScheduler struct {
	scheduled bool
	yielded   bool
}

func (f *fakeScheduler) schedule(*taskHeader) { f.scheduled = true }
func (f *fakeScheduler) yieldNow(*taskHeader) { f.yielded = true }
