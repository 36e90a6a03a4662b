package reactor

import "fmt"

// sourceSlot is one entry in the registry: a registered OS handle and
// its readiness word (spec.md §3 "Source Record").
type sourceSlot struct {
	fd        int
	readiness Readiness
	active    bool
}

// registry is the slab-like Token -> sourceSlot mapping (spec.md §4.2).
// Touched only by the reactor goroutine. Grounded on the teacher's
// registry.go ring-buffer scavenging idea, adapted from "track live
// promises for eventual GC" to "track live source slots with
// one-turn-deferred reuse": pendingFree records slots freed this turn;
// reclaim (called once per turn, phase 1) is the literal mechanism for
// "reuse is deferred by one full turn" (spec.md §4.2).
type registry struct {
	// slots holds pointers, never values: register hands out
	// &slots[idx].readiness to callers that keep it for the source's
	// whole life (net.Conn, Listener, UDPSocket, dialFuture). A
	// []sourceSlot (by value) would let a later append reallocate the
	// backing array out from under every previously issued pointer,
	// while the reactor's own dispatch path (readinessFor) recomputes
	// the address fresh each time — the two would silently diverge and
	// wakeups would go missing. Indirecting through a pointer keeps
	// each slot's address stable across growth.
	slots       []*sourceSlot
	freeList    []uint32
	pendingFree []uint32
	poller      poller
}

func newRegistry(p poller) *registry {
	return &registry{poller: p}
}

// register installs fd with the poller and allocates a Token for it.
// Reactor-goroutine only (spec.md §4.2 "driven by the reactor thread
// only").
func (r *registry) register(fd int, interest Interest) (Token, *Readiness, error) {
	var idx uint32
	if n := len(r.freeList); n > 0 {
		idx = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		*r.slots[idx] = sourceSlot{fd: fd, active: true}
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, &sourceSlot{fd: fd, active: true})
	}

	if err := r.poller.add(fd, Token(idx), interest); err != nil {
		r.slots[idx].active = false
		r.freeList = append(r.freeList, idx)
		return tokenNone, nil, &RegistrationError{Op: "poller.add", Err: err}
	}
	return Token(idx), &r.slots[idx].readiness, nil
}

// deregister removes tok's source from the poller, wakes any parked
// wakers so the adapter observes closure, and marks the slot for
// reclamation one turn from now.
func (r *registry) deregister(tok Token) error {
	idx := int(tok)
	if idx < 0 || idx >= len(r.slots) || !r.slots[idx].active {
		return ErrTokenNotFound
	}
	slot := r.slots[idx]
	err := r.poller.remove(slot.fd)
	slot.readiness.dropWakers()
	slot.active = false
	r.pendingFree = append(r.pendingFree, uint32(idx))
	if err != nil {
		return &RegistrationError{Op: "poller.remove", Err: err}
	}
	return nil
}

// readinessFor returns the slot's Readiness word for event dispatch.
func (r *registry) readinessFor(tok Token) (*Readiness, bool) {
	idx := int(tok)
	if idx < 0 || idx >= len(r.slots) || !r.slots[idx].active {
		return nil, false
	}
	return &r.slots[idx].readiness, true
}

// reclaim moves slots deregistered during the previous turn onto the
// free list, completing the one-turn deferral.
func (r *registry) reclaim() {
	if len(r.pendingFree) == 0 {
		return
	}
	r.freeList = append(r.freeList, r.pendingFree...)
	r.pendingFree = r.pendingFree[:0]
}

// shutdown deregisters every remaining active slot, used when the root
// task completes and the reactor tears down (spec.md §4.1
// "Termination").
func (r *registry) shutdown() {
	for i := range r.slots {
		if r.slots[i].active {
			_ = r.poller.remove(r.slots[i].fd)
			r.slots[i].readiness.dropWakers()
			r.slots[i].active = false
		}
	}
}

func (r *registry) String() string {
	return fmt.Sprintf("registry{slots=%d free=%d pending=%d}", len(r.slots), len(r.freeList), len(r.pendingFree))
}
