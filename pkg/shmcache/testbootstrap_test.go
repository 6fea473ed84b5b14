package shmcache_test

// memBootstrap is an in-memory [shmcache.Bootstrap] used by tests that
// don't need a real file: it hands out a plain []byte segment and never
// implements [shmcache.RangeLockSource], so tests run with in-process
// locking only (matching a single-process test binary).
type memBootstrap struct {
	buf  []byte
	name string
}

func newMemBootstrap(size int64) *memBootstrap {
	return &memBootstrap{
		buf:  make([]byte, size),
		name: "mem-test-segment",
	}
}

func (m *memBootstrap) Bytes() []byte { return m.buf }
func (m *memBootstrap) Name() string  { return m.name }
func (m *memBootstrap) Detach() error { return nil }
func (m *memBootstrap) Destroy() error {
	m.buf = nil

	return nil
}
