package shmcache

import "strconv"

func validateKey(key []byte) error {
	if len(key) == 0 || len(key) > MaxKeyLen {
		return ErrInvalidKey
	}

	return nil
}

func validateValue(value []byte) error {
	if int64(len(value)) > MaxChunkPayload {
		return ErrOversize
	}

	return nil
}

// decideFunc computes the value/flags to store for a key given whatever
// is currently there (found reports whether a live entry exists).
// Returning a non-nil error aborts the upsert without mutating anything.
type decideFunc func(found bool, existingValue []byte, existingFlags byte) (newValue []byte, newFlags byte, err error)

// upsert is the single write path behind Set/Add/Replace/Increment (spec
// §4.5). It holds BUCKET[b] exclusive for the decide step and for any
// mutation that fits in place, so decide always sees a linearized view
// and never races against another writer of the same key.
//
// When the new value needs a fresh chunk, BUCKET[b] is released before
// calling allocateChunk: allocation may have to evict the oldest zone,
// which unlinks chunks from arbitrary buckets under try-exclusive
// acquisition (spec §5) — including, possibly, bucket b itself. Holding
// BUCKET[b] across that call would make eviction try-lock a bucket this
// same goroutine already holds, which can never succeed and would spin
// forever instead of backing off. Once the chunk is carved, BUCKET[b] is
// reacquired and the key's state is rechecked: if another writer (or an
// eviction) changed it in the meantime, the newly-carved chunk is freed
// again and the whole decision restarts against current state.
func (e *Engine) upsert(key []byte, decide decideFunc) ([]byte, byte, error) {
	if err := e.checkOpen(); err != nil {
		return nil, 0, err
	}

	if err := validateKey(key); err != nil {
		return nil, 0, err
	}

	seg, err := e.locks.lockSegmentShared()
	if err != nil {
		return nil, 0, err
	}
	defer seg.Release()

	b := bucketIndex(key)

	bucketLock, err := e.locks.lockBucketExclusive(b)
	if err != nil {
		return nil, 0, err
	}

	for {
		cur, found := e.codec.lookup(e.layout, b, key)

		var existingValue []byte

		var existingFlags byte

		if found {
			existingValue = cur.value()
			existingFlags = cur.flags()
		}

		newValue, newFlags, err := decide(found, existingValue, existingFlags)
		if err != nil {
			bucketLock.Release()

			return nil, 0, err
		}

		// A failed write still invalidates any prior entry for the key
		// (spec §7: "a failed set always additionally removes any prior
		// entry"), so an oversize replacement unlinks and frees whatever
		// was there rather than leaving it reachable.
		if verr := validateValue(newValue); verr != nil {
			if found {
				e.codec.unlink(e.layout, b, cur)

				zIdx := e.layout.zoneIndexOf(cur.off)
				bucketLock.Release()
				e.freeChunkInZone(cur, zIdx)
			} else {
				bucketLock.Release()
			}

			return nil, 0, verr
		}

		need := allocUnit(int64(len(newValue)))

		if found && cur.valAllocSize() >= need {
			cur.setValue(newValue)
			cur.setValSize(int64(len(newValue)))
			cur.setFlags(newFlags)
			bucketLock.Release()

			return newValue, newFlags, nil
		}

		bucketLock.Release()

		ch, zIdx, err := e.allocateChunk(need)
		if err != nil {
			return nil, 0, err
		}

		bucketLock, err = e.locks.lockBucketExclusive(b)
		if err != nil {
			e.freeChunkInZone(ch, zIdx)

			return nil, 0, err
		}

		cur2, found2 := e.codec.lookup(e.layout, b, key)

		unchanged := found == found2 && (!found2 || cur2.off == cur.off)
		if !unchanged {
			// The key's state moved while BUCKET[b] was released — free
			// the chunk we just carved (it was sized for a decision that
			// no longer applies) and redo decide against current state.
			e.freeChunkInZone(ch, zIdx)

			continue
		}

		if found2 {
			e.codec.unlink(e.layout, b, cur2)
			e.freeChunkInZone(cur2, e.layout.zoneIndexOf(cur2.off))
		}

		ch.setKey(key)
		ch.setValue(newValue)
		ch.setValSize(int64(len(newValue)))
		ch.setFlags(newFlags)
		e.codec.link(e.layout, b, ch)
		bucketLock.Release()

		return newValue, newFlags, nil
	}
}

// Set stores value under key unconditionally, overwriting any existing
// entry (spec §4.5 Set).
func (e *Engine) Set(key, value []byte, flags byte) error {
	_, _, err := e.upsert(key, func(bool, []byte, byte) ([]byte, byte, error) {
		return value, flags, nil
	})

	return err
}

// Add stores value under key only if no live entry exists, returning
// [ErrExists] otherwise (spec §4.5 Add).
func (e *Engine) Add(key, value []byte, flags byte) error {
	_, _, err := e.upsert(key, func(found bool, _ []byte, _ byte) ([]byte, byte, error) {
		if found {
			return nil, 0, ErrExists
		}

		return value, flags, nil
	})

	return err
}

// Replace stores value under key only if a live entry already exists,
// returning [ErrNotFound] otherwise (spec §4.5 Replace).
func (e *Engine) Replace(key, value []byte, flags byte) error {
	_, _, err := e.upsert(key, func(found bool, _ []byte, _ byte) ([]byte, byte, error) {
		if !found {
			return nil, 0, ErrNotFound
		}

		return value, flags, nil
	})

	return err
}

// Increment parses the existing value as a base-10 signed integer, adds
// delta, clamps the result to a minimum of 0, and stores it back as
// decimal ASCII, returning the new value (spec §4.5 Increment, §8
// property 9). If no entry exists, the stored (and returned) value is
// max(0, initialValue+delta) — this engine's resolution of the spec's
// open question on increment-on-miss semantics. An existing value that
// does not parse as an integer yields [ErrNonNumeric].
func (e *Engine) Increment(key []byte, delta, initialValue int64) (int64, error) {
	var result int64

	_, _, err := e.upsert(key, func(found bool, existing []byte, existingFlags byte) ([]byte, byte, error) {
		if !found {
			result = clampNonNegative(initialValue + delta)

			return []byte(strconv.FormatInt(result, 10)), 0, nil
		}

		n, perr := strconv.ParseInt(string(existing), 10, 64)
		if perr != nil {
			return nil, 0, ErrNonNumeric
		}

		result = clampNonNegative(n + delta)

		return []byte(strconv.FormatInt(result, 10)), existingFlags, nil
	})
	if err != nil {
		return 0, err
	}

	return result, nil
}

func clampNonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}

	return n
}

// Get returns the value and flags stored under key, or [ErrMiss] if no
// live entry exists (spec §4.5 Get).
func (e *Engine) Get(key []byte) ([]byte, byte, error) {
	if err := e.checkOpen(); err != nil {
		return nil, 0, err
	}

	if err := validateKey(key); err != nil {
		return nil, 0, err
	}

	seg, err := e.locks.lockSegmentShared()
	if err != nil {
		return nil, 0, err
	}
	defer seg.Release()

	b := bucketIndex(key)

	bucketLock, err := e.locks.lockBucketShared(b)
	if err != nil {
		return nil, 0, err
	}

	cur, found := e.codec.lookup(e.layout, b, key)

	var value []byte

	var flags byte

	if found {
		value = cur.value()
		flags = cur.flags()
	}

	bucketLock.Release()

	e.bumpStat(found)

	if !found {
		return nil, 0, ErrMiss
	}

	return value, flags, nil
}

func (e *Engine) bumpStat(hit bool) {
	lock, err := e.locks.lockStatsExclusive()
	if err != nil {
		return
	}
	defer lock.Release()

	if hit {
		e.codec.incGetHits(e.layout)
	} else {
		e.codec.incGetMisses(e.layout)
	}
}

// Exists reports whether key has a live entry, without affecting hit/miss
// counters (spec §4.5 Exists).
func (e *Engine) Exists(key []byte) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}

	if err := validateKey(key); err != nil {
		return false, err
	}

	seg, err := e.locks.lockSegmentShared()
	if err != nil {
		return false, err
	}
	defer seg.Release()

	b := bucketIndex(key)

	bucketLock, err := e.locks.lockBucketShared(b)
	if err != nil {
		return false, err
	}
	defer bucketLock.Release()

	_, found := e.codec.lookup(e.layout, b, key)

	return found, nil
}

// Delete removes key's live entry, returning [ErrMiss] if none exists
// (spec §4.5 Delete).
func (e *Engine) Delete(key []byte) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	if err := validateKey(key); err != nil {
		return err
	}

	seg, err := e.locks.lockSegmentShared()
	if err != nil {
		return err
	}
	defer seg.Release()

	b := bucketIndex(key)

	bucketLock, err := e.locks.lockBucketExclusive(b)
	if err != nil {
		return err
	}

	cur, found := e.codec.lookup(e.layout, b, key)
	if !found {
		bucketLock.Release()

		return ErrMiss
	}

	e.codec.unlink(e.layout, b, cur)
	zIdx := e.layout.zoneIndexOf(cur.off)
	bucketLock.Release()

	e.freeChunkInZone(cur, zIdx)

	return nil
}

// Flush clears every entry in the segment, resetting bucket heads, zones
// and oldestZoneIndex to the state of a freshly initialized segment
// (spec §4.5 Flush); unlike initSegment, it leaves the hit/miss counters
// unchanged. It
// acquires SEGMENT exclusive, which by protocol excludes every other
// operation (they all take SEGMENT shared first), so no finer-grained
// locking is needed.
func (e *Engine) Flush() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	lock, err := e.locks.lockSegmentExclusive()
	if err != nil {
		return err
	}
	defer lock.Release()

	return e.resetSegmentLocked()
}

func (e *Engine) resetSegmentLocked() error {
	e.codec.zero(e.layout.bucketOffset, int64(BucketCount)*wordSize)
	e.codec.setOldestZoneIndex(e.layout, e.layout.zoneCount-1)

	for z := int64(0); z < e.layout.zoneCount; z++ {
		e.codec.zoneAt(e.layout, z).resetToSingleFreeChunk()
	}

	return nil
}

// Stats returns a point-in-time snapshot of the segment's occupancy and
// hit/miss counters (spec §4.5 Stats). It acquires SEGMENT shared, not
// exclusive: per-bucket and per-zone shared locks around each individual
// read keep the walk race-free against concurrent writers without
// serializing the whole segment behind one reader.
func (e *Engine) Stats() (Stats, error) {
	if err := e.checkOpen(); err != nil {
		return Stats{}, err
	}

	seg, err := e.locks.lockSegmentShared()
	if err != nil {
		return Stats{}, err
	}
	defer seg.Release()

	var stats Stats

	for b := int64(0); b < BucketCount; b++ {
		bl, err := e.locks.lockBucketShared(b)
		if err != nil {
			return Stats{}, err
		}

		if e.codec.bucketHead(e.layout, b) != 0 {
			stats.BucketsUsed++
		}

		bl.Release()
	}

	for z := int64(0); z < e.layout.zoneCount; z++ {
		zl, err := e.locks.lockZoneShared(z)
		if err != nil {
			return Stats{}, err
		}

		stats.Items += int64(len(e.codec.zoneAt(e.layout, z).liveChunks()))

		zl.Release()
	}

	statsLock, err := e.locks.lockStatsShared()
	if err != nil {
		return Stats{}, err
	}
	defer statsLock.Release()

	stats.GetHits = e.codec.getHits(e.layout)
	stats.GetMisses = e.codec.getMisses(e.layout)

	return stats, nil
}
