package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskHeaderNotifyHandsOneRefToScheduler(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.andNotState(taskNotified)

	th.notify()
	require.True(t, sched.scheduled)
	require.Equal(t, int64(2), th.refs.Load())

	// A second notify before the first poll clears NOTIFIED must not
	// hand off another reference.
	sched.scheduled = false
	th.notify()
	require.False(t, sched.scheduled)
	require.Equal(t, int64(2), th.refs.Load())
}

func TestTaskHeaderNotifyAfterCompleteIsNoop(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.pollOnce = func(*Context) bool { return true }
	th.poll()
	require.True(t, th.loadState().has(taskComplete))

	sched.scheduled = false
	th.notify()
	require.False(t, sched.scheduled)
}

func TestTaskHeaderPollPendingReenqueuesOnSelfNotify(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)

	first := true
	th.pollOnce = func(cx *Context) bool {
		if first {
			first = false
			th.notify() // simulate a waker firing synchronously during poll
		}
		return false
	}
	th.orState(taskNotified)
	th.poll()

	require.True(t, sched.scheduled)
	require.False(t, th.loadState().has(taskRunning))
}

func TestTaskHeaderPollRecoversPanic(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.pollOnce = func(*Context) bool { panic(errors.New("boom")) }
	th.orState(taskNotified)

	th.poll()
	require.True(t, th.loadState().has(taskComplete))
	require.Error(t, th.panicVal.(error))
}

func TestTaskHeaderShutdownCancelsIdleTask(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.andNotState(taskNotified)

	th.shutdown()
	require.True(t, th.loadState().has(taskCancelled))
	require.True(t, sched.scheduled)

	th.poll()
	require.True(t, th.loadState().has(taskComplete))
}

func TestTaskHeaderFinishWakesJoinWaker(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.orState(taskJoinInterest)

	joinSched := &fakeScheduler{}
	joinTask := newTaskHeader(joinSched)
	joinTask.refs.Store(1)
	joinTask.andNotState(taskNotified)
	th.joinWaker.store(newWaker(joinTask))

	th.pollOnce = func(*Context) bool { return true }
	th.orState(taskNotified)
	th.poll()

	require.True(t, joinSched.scheduled)
}
