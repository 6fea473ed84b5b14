package shmcache

import (
	"sync"
	"time"

	"github.com/calvinalkan/shmcache/internal/fs"
)

// Locking architecture (spec §5).
//
// Every named lock has two layers:
//
//  1. An in-process sync.RWMutex, owned by each Engine handle's
//     lockManager, because goroutines sharing one handle also share its
//     lock file descriptor, and record locks taken through one open file
//     description never conflict with each other (mirrors the teacher's
//     fileRegistryEntry.mu pattern: flock alone can't arbitrate between
//     goroutines of the same process).
//  2. A cross-process byte-range record lock (internal/fs.RangeLocker)
//     on one shared lock file, one fixed byte range per named lock. This
//     generalizes the teacher's whole-file flock locker to the many
//     named locks spec §5 requires sharing a single segment.
//
// Named locks, and their fixed byte ranges in the lock file:
//
//	SEGMENT         range [0, 1)
//	STATS           range [1, 2)
//	RING            range [2, 3)
//	BUCKET[b]       range [3+b, 3+b+1)                 for b in [0, BucketCount)
//	ZONE[z]         range [3+BucketCount+z, +1)         for z in [0, ZoneCount)
//
// Canonical lock order (spec §5): BUCKET[b] → RING → ZONE[z]. The one
// documented exception is eviction acquiring additional BUCKET locks
// while already holding RING and ZONE — those acquisitions MUST use
// try-exclusive (see tryLockBucketExclusive below and evictOldestZone in
// evict.go) and back off on
// contention rather than block, which is what keeps the exception
// deadlock-free.
const (
	rangeSegment = 0
	rangeStats   = 1
	rangeRing    = 2
	rangeBucket0 = 3
)

func rangeForBucket(b int64) int64 { return rangeBucket0 + b }
func rangeForZone(bucketCount, z int64) int64 { return rangeBucket0 + bucketCount + z }

// heldLock is a scoped guard over one acquired lock (in-process and,
// unless disabled, cross-process). Release is idempotent and safe to
// defer immediately after acquisition, per spec §9's "scoped resource
// release" guidance — no lock is ever held across a return to the caller.
type heldLock struct {
	release func()
}

func (h heldLock) Release() {
	if h.release != nil {
		h.release()
	}
}

// lockManager owns every named lock for one attached segment.
type lockManager struct {
	cross   *fs.RangeLocker // nil when cross-process locking is disabled
	noCross bool

	segmentMu sync.RWMutex
	statsMu   sync.RWMutex
	ringMu    sync.RWMutex
	bucketMu  []sync.RWMutex
	zoneMu    []sync.RWMutex

	bucketCount int64
}

func newLockManager(cross *fs.RangeLocker, bucketCount, zoneCount int64, disableCrossProcess bool) *lockManager {
	return &lockManager{
		cross:       cross,
		noCross:     disableCrossProcess,
		bucketMu:    make([]sync.RWMutex, bucketCount),
		zoneMu:      make([]sync.RWMutex, zoneCount),
		bucketCount: bucketCount,
	}
}

func (m *lockManager) crossLock(start int64, shared bool) error {
	if m.noCross || m.cross == nil {
		return nil
	}

	if shared {
		return m.cross.RLock(start, 1)
	}

	return m.cross.Lock(start, 1)
}

func (m *lockManager) crossTryLock(start int64) (bool, error) {
	if m.noCross || m.cross == nil {
		return true, nil
	}

	err := m.cross.TryLock(start, 1)
	if err != nil {
		if isWouldBlock(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (m *lockManager) crossUnlock(start int64) {
	if m.noCross || m.cross == nil {
		return
	}

	_ = m.cross.Unlock(start, 1)
}

func isWouldBlock(err error) bool {
	return err == fs.ErrWouldBlock
}

// --- SEGMENT ---

func (m *lockManager) lockSegmentShared() (heldLock, error) {
	m.segmentMu.RLock()

	if err := m.crossLock(rangeSegment, true); err != nil {
		m.segmentMu.RUnlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeSegment)
		m.segmentMu.RUnlock()
	}}, nil
}

func (m *lockManager) lockSegmentExclusive() (heldLock, error) {
	m.segmentMu.Lock()

	if err := m.crossLock(rangeSegment, false); err != nil {
		m.segmentMu.Unlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeSegment)
		m.segmentMu.Unlock()
	}}, nil
}

// --- STATS ---

func (m *lockManager) lockStatsShared() (heldLock, error) {
	m.statsMu.RLock()

	if err := m.crossLock(rangeStats, true); err != nil {
		m.statsMu.RUnlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeStats)
		m.statsMu.RUnlock()
	}}, nil
}

func (m *lockManager) lockStatsExclusive() (heldLock, error) {
	m.statsMu.Lock()

	if err := m.crossLock(rangeStats, false); err != nil {
		m.statsMu.Unlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeStats)
		m.statsMu.Unlock()
	}}, nil
}

// --- RING ---

func (m *lockManager) lockRingShared() (heldLock, error) {
	m.ringMu.RLock()

	if err := m.crossLock(rangeRing, true); err != nil {
		m.ringMu.RUnlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeRing)
		m.ringMu.RUnlock()
	}}, nil
}

func (m *lockManager) lockRingExclusive() (heldLock, error) {
	m.ringMu.Lock()

	if err := m.crossLock(rangeRing, false); err != nil {
		m.ringMu.Unlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeRing)
		m.ringMu.Unlock()
	}}, nil
}

// tryLockRingExclusive is the non-blocking counterpart used by the
// allocation path: callers that already hold a BUCKET lock must never
// block waiting for RING, since an in-flight eviction may itself be
// waiting (via try-exclusive) on that very bucket. Non-blocking
// acquisition on both sides turns a potential deadlock into bounded
// backoff-and-retry.
func (m *lockManager) tryLockRingExclusive() (heldLock, bool, error) {
	if !m.ringMu.TryLock() {
		return heldLock{}, false, nil
	}

	ok, err := m.crossTryLock(rangeRing)
	if err != nil {
		m.ringMu.Unlock()

		return heldLock{}, false, err
	}

	if !ok {
		m.ringMu.Unlock()

		return heldLock{}, false, nil
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeRing)
		m.ringMu.Unlock()
	}}, true, nil
}

// --- BUCKET[b] ---

func (m *lockManager) lockBucketShared(b int64) (heldLock, error) {
	m.bucketMu[b].RLock()

	if err := m.crossLock(rangeForBucket(b), true); err != nil {
		m.bucketMu[b].RUnlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeForBucket(b))
		m.bucketMu[b].RUnlock()
	}}, nil
}

func (m *lockManager) lockBucketExclusive(b int64) (heldLock, error) {
	m.bucketMu[b].Lock()

	if err := m.crossLock(rangeForBucket(b), false); err != nil {
		m.bucketMu[b].Unlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeForBucket(b))
		m.bucketMu[b].Unlock()
	}}, nil
}

// tryLockBucketExclusive is the try-exclusive primitive used only by the
// eviction exception of spec §5. ok is false (with a nil, no-op heldLock)
// on contention rather than blocking.
func (m *lockManager) tryLockBucketExclusive(b int64) (heldLock, bool, error) {
	if !m.bucketMu[b].TryLock() {
		return heldLock{}, false, nil
	}

	ok, err := m.crossTryLock(rangeForBucket(b))
	if err != nil {
		m.bucketMu[b].Unlock()

		return heldLock{}, false, err
	}

	if !ok {
		m.bucketMu[b].Unlock()

		return heldLock{}, false, nil
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeForBucket(b))
		m.bucketMu[b].Unlock()
	}}, true, nil
}

// --- ZONE[z] ---

func (m *lockManager) lockZoneShared(z int64) (heldLock, error) {
	m.zoneMu[z].RLock()

	if err := m.crossLock(rangeForZone(m.bucketCount, z), true); err != nil {
		m.zoneMu[z].RUnlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeForZone(m.bucketCount, z))
		m.zoneMu[z].RUnlock()
	}}, nil
}

func (m *lockManager) lockZoneExclusive(z int64) (heldLock, error) {
	m.zoneMu[z].Lock()

	if err := m.crossLock(rangeForZone(m.bucketCount, z), false); err != nil {
		m.zoneMu[z].Unlock()

		return heldLock{}, err
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeForZone(m.bucketCount, z))
		m.zoneMu[z].Unlock()
	}}, nil
}

// tryLockZoneExclusive is the non-blocking counterpart to
// lockZoneExclusive, used for the same reason as tryLockRingExclusive.
func (m *lockManager) tryLockZoneExclusive(z int64) (heldLock, bool, error) {
	if !m.zoneMu[z].TryLock() {
		return heldLock{}, false, nil
	}

	ok, err := m.crossTryLock(rangeForZone(m.bucketCount, z))
	if err != nil {
		m.zoneMu[z].Unlock()

		return heldLock{}, false, err
	}

	if !ok {
		m.zoneMu[z].Unlock()

		return heldLock{}, false, nil
	}

	return heldLock{release: func() {
		m.crossUnlock(rangeForZone(m.bucketCount, z))
		m.zoneMu[z].Unlock()
	}}, true, nil
}

// evictionYield is the backoff used whenever a try-exclusive acquisition
// in the allocation/eviction path fails and the caller must drop what it
// holds and restart (spec §5's documented exception).
func evictionYield() {
	time.Sleep(time.Microsecond * 50)
}
