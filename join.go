package reactor

// JoinHandle observes the completion of a spawned task (spec.md §4.4
// "Join handle"). Its Poll method has the Future shape plus an error
// result, so one task can await another's result from inside a poll;
// because of that extra result it does not satisfy Future[T] itself.
type JoinHandle[T any] struct {
	header *taskHeader
	taken  bool
}

// Poll returns (output, true) once the task has completed; the output
// is taken exactly once. err is a non-nil *JoinError if the task was
// cancelled or panicked instead of returning normally.
func (j *JoinHandle[T]) Poll(cx *Context) (out T, ready bool, err error) {
	state := j.header.loadState()
	if !state.has(taskComplete) {
		if old := j.header.joinWaker.store(cx.Waker()); old != nil {
			old.Wake()
		}
		return out, false, nil
	}

	switch {
	case state.has(taskCancelled):
		err = ErrCancelled
	case j.header.panicVal != nil:
		err = &JoinError{Panic: j.header.panicVal, Cause: panicCause(j.header.panicVal)}
	default:
		if !j.taken {
			if v, ok := j.header.output.(T); ok {
				out = v
			}
			j.taken = true
		}
	}
	return out, true, err
}

// Abort marks the underlying task CANCELLED; the next poll drops its
// future without invoking it (spec.md §4.4 "shutdown()").
func (j *JoinHandle[T]) Abort() {
	j.header.shutdown()
}

// Drop releases this handle's interest in the task's join waker,
// allowing the task to discard its output without storing it once it
// completes (spec.md §4.4 "Join handle").
func (j *JoinHandle[T]) Drop() {
	j.header.andNotState(taskJoinInterest)
	j.header.decRef()
}

func panicCause(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}
