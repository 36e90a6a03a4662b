package reactor

// Token is the dense, process-unique identity of one source registered
// with a Reactor (spec.md §3 "I/O Token"). It stays stable until the
// owning adapter deregisters it; the slot backing a Token is never
// reused while any waker still references it (see registry.go).
type Token uint32

// tokenNone is the Token returned alongside a registration error. It is
// not reserved: the registry hands out index 0 to the first slot it
// allocates, so a zero Token does not by itself mean "unset".
const tokenNone Token = 0
