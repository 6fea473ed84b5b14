// Package shmcache implements the storage engine of a process-external,
// multi-process-safe key/value cache backed by one shared byte region
// ("segment").
//
// shmcache does not attach shared memory itself — see [pkg/shmcache/shmfs]
// for a file-backed reference implementation of the [Bootstrap] contract.
// Independent processes that attach the same segment share zone-allocated
// chunks through an open-chained hash index, coordinated by the named
// lock hierarchy described in the package-level docs of locks.go.
//
// shmcache is a throwaway cache: it does not survive a host reboot or an
// explicit [Engine.Destroy], has no TTL/LRU, and evicts whole zones in
// insertion order once the segment fills up.
//
// # Basic usage
//
//	h, isNew, err := shmfs.Open("/dev/shm/myapp.cache", shmcache.DefaultSegmentSize)
//	if err != nil { ... }
//	defer h.Detach()
//
//	eng, err := shmcache.Attach(h, isNew)
//	if err != nil { ... }
//
//	err = eng.Set([]byte("greeting"), []byte("hello"), 0)
//	val, flags, err := eng.Get([]byte("greeting"))
//
// # Concurrency
//
// Get/Set/Add/Replace/Delete/Exists/Increment/Flush/Stats are all safe for
// concurrent use, both within a process and across processes attached to
// the same segment. See locks.go for the lock hierarchy and the one
// documented exception used during zone eviction.
package shmcache
