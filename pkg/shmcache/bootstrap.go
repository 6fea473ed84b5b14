package shmcache

// Bootstrap is the contract the engine consumes from the external
// attach/detach collaborator (spec §6). It hands the engine an
// already-mapped byte region of known size plus a lifecycle handle; the
// engine never opens, grows, or remaps anything itself.
//
// Byte reads and writes against Bytes are assumed non-blocking (mmap or
// equivalent) per spec §5 — Bootstrap implementations must not block on
// I/O inside Bytes() after the initial attach.
//
// See [shmcache/shmfs] for a file-backed reference implementation, or
// substitute an in-memory []byte-backed Bootstrap (as engine_test.go
// does) for unit tests that don't need a real file.
type Bootstrap interface {
	// Bytes returns the mapped region. The returned slice's length never
	// changes for the lifetime of the handle (no resizing after attach,
	// per spec's Non-goals).
	Bytes() []byte

	// Name returns the deterministic, host-wide segment name (spec §6
	// "Segment naming"). Implementations backed by the same underlying
	// segment must return the same name. The engine itself does not use
	// it: lock identities come from [RangeLockSource] when implemented.
	Name() string

	// Detach releases this handle's resources (e.g. munmap) without
	// affecting other attached handles or the segment's lifetime.
	Detach() error

	// Destroy ends the segment's lifetime: after Destroy, no handle
	// (including ones already attached) may use the segment again.
	Destroy() error
}
