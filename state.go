package reactor

import "sync/atomic"

// runState represents the lifecycle of the reactor's Run call.
//
// State machine:
//
//	stateAwake (0)   → stateRunning (1) [Run()]
//	stateRunning (1) → stateClosed (3)  [root task completes]
//
// stateSleeping (2) is defined but Run never enters it: the reactor
// stays in stateRunning while it blocks in the OS poller.
//
// Use TryTransition (CAS) to leave stateAwake; use Store only for the
// terminal stateClosed.
type runState uint32

const (
	stateAwake runState = iota
	stateRunning
	stateSleeping
	stateClosed
)

func (s runState) String() string {
	switch s {
	case stateAwake:
		return "Awake"
	case stateRunning:
		return "Running"
	case stateSleeping:
		return "Sleeping"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine: pure atomic CAS, no mutex, no
// transition validation beyond what the caller enforces.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) Load() runState { return runState(s.v.Load()) }

func (s *fastState) Store(state runState) { s.v.Store(uint32(state)) }

func (s *fastState) TryTransition(from, to runState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// Task state bits (spec.md §3 "Task" / §4.4): a single atomic word,
// CAS-modified, shared across the task header's lifetime.
type taskState uint32

const (
	// taskRunning: a goroutine (the reactor's, or an Await caller's) is
	// currently polling the future.
	taskRunning taskState = 1 << iota
	// taskComplete: the future has returned Ready; output is stored in
	// the core cell. A completed task never transitions back.
	taskComplete
	// taskNotified: a wakeup occurred; the task is already in, or
	// entering, the run queue.
	taskNotified
	// taskCancelled: shutdown was requested; the next poll drops the
	// future in place without invoking it.
	taskCancelled
	// taskJoinInterest: a JoinHandle still exists for this task.
	taskJoinInterest
)

func (s taskState) has(bit taskState) bool { return s&bit != 0 }
