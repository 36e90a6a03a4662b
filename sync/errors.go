// Package sync provides Future-returning synchronization primitives —
// Oneshot, MPSC, Semaphore, Watch, and BiLock — built only on the
// exported Waker/Context/Future contract, with no access to reactor
// internals (spec.md §1's framing of these as pure waker-contract
// collaborators). Grounded on tokio-sync's channel/semaphore/watch
// family and futures::sync::BiLock (referenced by original_source's
// udp_frame.rs).
package sync

import "errors"

// ErrClosed is returned by a Recv/Changed future when its peer closed
// the channel before (or without) sending a value.
var ErrClosed = errors.New("sync: channel closed")

// ErrFull is returned by TrySend when a bounded MPSC channel has no
// free capacity.
var ErrFull = errors.New("sync: channel full")
