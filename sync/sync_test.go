package sync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopcraft/reactor"
	rsync "github.com/loopcraft/reactor/sync"
)

func TestOneshotSendBeforeRecv(t *testing.T) {
	rx, _, err := reactor.New()
	require.NoError(t, err)

	o := rsync.NewOneshot[int]()
	require.True(t, o.Send(42))

	out, err := reactor.Run[rsync.OneshotResult[int]](rx, reactor.FutureFunc[rsync.OneshotResult[int]](o.Recv().Poll))
	require.NoError(t, err)
	require.Equal(t, 42, out.Value)
	require.NoError(t, out.Err)
}

func TestOneshotCloseWakesRecv(t *testing.T) {
	rx, h, err := reactor.New()
	require.NoError(t, err)

	o := rsync.NewOneshot[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		h.RunOnLoop(o.Close)
	}()

	out, err := reactor.Run[rsync.OneshotResult[int]](rx, reactor.FutureFunc[rsync.OneshotResult[int]](o.Recv().Poll))
	require.NoError(t, err)
	require.ErrorIs(t, out.Err, rsync.ErrClosed)
}

func TestMPSCSendRecv(t *testing.T) {
	rx, h, err := reactor.New()
	require.NoError(t, err)

	ch := rsync.NewMPSC[int](1)
	go func() {
		for i := 0; i < 3; i++ {
			h.RunOnLoop(func() {
				v := i
				reactor.Spawn[error](h, ch.Send(v))
			})
			time.Sleep(5 * time.Millisecond)
		}
		h.RunOnLoop(ch.Close)
	}()

	var got []int
	root := reactor.FutureFunc[struct{}](func(cx *reactor.Context) (struct{}, bool) {
		for {
			res, ready := ch.Recv().Poll(cx)
			if !ready {
				return struct{}{}, false
			}
			if !res.Ok {
				return struct{}{}, true
			}
			got = append(got, res.Value)
		}
	})
	_, err = reactor.Run[struct{}](rx, root)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, got)
}

func TestSemaphoreAcquireRelease(t *testing.T) {
	rx, _, err := reactor.New()
	require.NoError(t, err)

	sem := rsync.NewSemaphore(1)
	root := reactor.FutureFunc[int](func(cx *reactor.Context) (int, bool) {
		if _, ready := sem.Acquire().Poll(cx); !ready {
			return 0, false
		}
		sem.Release()
		if _, ready := sem.Acquire().Poll(cx); !ready {
			return 0, false
		}
		return 1, true
	})
	out, err := reactor.Run[int](rx, root)
	require.NoError(t, err)
	require.Equal(t, 1, out)
}

func TestWatchChanged(t *testing.T) {
	rx, h, err := reactor.New()
	require.NoError(t, err)

	w := rsync.NewWatch(0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		h.RunOnLoop(func() { w.Send(7) })
	}()

	_, initialVersion := w.Get()
	out, err := reactor.Run[rsync.WatchResult[int]](rx, reactor.FutureFunc[rsync.WatchResult[int]](w.Changed(initialVersion).Poll))
	require.NoError(t, err)
	require.Equal(t, 7, out.Value)
}

func TestBiLockMutualExclusion(t *testing.T) {
	rx, _, err := reactor.New()
	require.NoError(t, err)

	a, b := rsync.NewBiLock(0)
	root := reactor.FutureFunc[int](func(cx *reactor.Context) (int, bool) {
		ga, ready := a.Lock().Poll(cx)
		if !ready {
			return 0, false
		}
		ga.Set(ga.Value() + 1)
		ga.Unlock()

		gb, ready := b.Lock().Poll(cx)
		if !ready {
			return 0, false
		}
		v := gb.Value()
		gb.Unlock()
		return v, true
	})
	out, err := reactor.Run[int](rx, root)
	require.NoError(t, err)
	require.Equal(t, 1, out)
}
