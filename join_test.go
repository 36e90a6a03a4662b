package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinHandlePollPendingThenReady(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.orState(taskJoinInterest)
	jh := &JoinHandle[int]{header: th}

	watcherSched := &fakeScheduler{}
	watcher := newTaskHeader(watcherSched)
	watcher.refs.Store(1)
	watcher.andNotState(taskNotified)

	out, ready, err := jh.Poll(&Context{task: watcher})
	require.False(t, ready)
	require.NoError(t, err)
	require.Zero(t, out)

	th.pollOnce = func(*Context) bool { return true }
	th.output = 42
	th.orState(taskNotified)
	th.poll()

	require.True(t, watcherSched.scheduled)

	out, ready, err = jh.Poll(&Context{task: watcher})
	require.True(t, ready)
	require.NoError(t, err)
	require.Equal(t, 42, out)
}

func TestJoinHandlePollObservesCancellation(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	jh := &JoinHandle[int]{header: th}

	jh.Abort()
	th.poll()

	_, ready, err := jh.Poll(&Context{task: th})
	require.True(t, ready)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestJoinHandlePollObservesPanic(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.orState(taskNotified)
	jh := &JoinHandle[int]{header: th}

	th.pollOnce = func(*Context) bool { panic(errors.New("kaboom")) }
	th.poll()

	_, ready, err := jh.Poll(&Context{task: th})
	require.True(t, ready)
	var je *JoinError
	require.ErrorAs(t, err, &je)
	require.EqualError(t, je.Cause, "kaboom")
}

func TestJoinHandleDropReleasesRef(t *testing.T) {
	sched := &fakeScheduler{}
	th := newTaskHeader(sched)
	th.refs.Store(1)
	th.orState(taskJoinInterest)
	jh := &JoinHandle[int]{header: th}

	jh.Drop()
	require.Equal(t, int64(0), th.refs.Load())
	require.False(t, th.loadState().has(taskJoinInterest))
}
