package shmcache

// allocateChunk finds room for a chunk of capacity need somewhere in the
// segment, evicting the oldest zone as many times as necessary (spec
// §4.2). It acquires RING and ZONE locks with try-exclusive, never
// blocking. Its one caller, upsert (ops.go), releases BUCKET[b] before
// calling it; freeChunkInZone, by contrast, takes ZONE while a BUCKET
// lock may be held, and a BUCKET lock must never block behind RING/ZONE
// while an in-flight eviction is (legitimately) blocked try-acquiring
// that very bucket. Non-blocking acquisition on both sides turns the
// conflict into bounded backoff instead of deadlock.
//
// The returned chunk is already marked live (valSize = need) but not yet
// linked into any bucket, so no other allocation can reuse it before
// upsert links or frees it.
func (e *Engine) allocateChunk(need int64) (chunk, int64, error) {
	for {
		ringLock, ok, err := e.locks.tryLockRingExclusive()
		if err != nil {
			return chunk{}, 0, err
		}

		if !ok {
			evictionYield()

			continue
		}

		zIdx := e.codec.newestZoneIndex(e.layout)

		zLock, ok, err := e.locks.tryLockZoneExclusive(zIdx)
		if err != nil {
			ringLock.Release()

			return chunk{}, 0, err
		}

		if !ok {
			ringLock.Release()
			evictionYield()

			continue
		}

		z := e.codec.zoneAt(e.layout, zIdx)

		if ch, ok := z.allocate(need); ok {
			ch.setValSize(need)
			zLock.Release()
			ringLock.Release()

			return ch, zIdx, nil
		}

		zLock.Release()
		ringLock.Release()

		evicted, err := e.evictOldestZone()
		if err != nil {
			return chunk{}, 0, err
		}

		if !evicted {
			evictionYield()
		}
	}
}

// evictOldestZone clears the segment's oldest zone and advances the
// ring, per spec §4.2 EvictZone and the canonical-order exception of §5:
// every chunk in the zone is unlinked from its bucket before the zone's
// space is reclaimed, and every bucket touched is acquired
// try-exclusive while RING and the target ZONE are already held.
//
// Returns evicted=false, with nothing left locked, if any lock along the
// way is contended — the caller is expected to back off and retry.
//
// Known limitation: if a live chunk in the oldest zone hashes to the
// same bucket a different, concurrent caller already holds exclusively
// for its own insert, that bucket's try-exclusive acquisition here keeps
// failing until the other caller's operation completes and releases it.
// This is accepted as a bounded, self-resolving backoff rather than
// additional protocol complexity to pre-detect the conflict. It can
// never be the calling goroutine's own bucket: upsert (ops.go) always
// releases BUCKET[b] before reaching allocateChunk, so this call never
// contends against a lock its own caller is holding.
func (e *Engine) evictOldestZone() (bool, error) {
	ringLock, ok, err := e.locks.tryLockRingExclusive()
	if err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}

	defer ringLock.Release()

	oldest := e.codec.oldestZoneIndex(e.layout)

	zLock, ok, err := e.locks.tryLockZoneExclusive(oldest)
	if err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}

	defer zLock.Release()

	z := e.codec.zoneAt(e.layout, oldest)
	live := z.liveChunks()

	held := make(map[int64]heldLock, len(live))
	defer func() {
		for _, hl := range held {
			hl.Release()
		}
	}()

	for _, ch := range live {
		b := bucketIndex(ch.key())
		if _, already := held[b]; already {
			continue
		}

		bl, ok, err := e.locks.tryLockBucketExclusive(b)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}

		held[b] = bl
	}

	for _, ch := range live {
		b := bucketIndex(ch.key())
		e.codec.unlink(e.layout, b, ch)
	}

	z.resetToSingleFreeChunk()
	e.codec.setOldestZoneIndex(e.layout, (oldest+1)%e.layout.zoneCount)

	return true, nil
}

// freeChunkInZone marks ch free and coalesces it with its right-hand
// neighbor, acquiring its zone lock try-exclusive so it is safe to call
// while the caller still holds a BUCKET lock (see allocateChunk's
// comment for why RING/ZONE are never blocked on here).
func (e *Engine) freeChunkInZone(ch chunk, zIdx int64) {
	for {
		zLock, ok, err := e.locks.tryLockZoneExclusive(zIdx)
		if err != nil {
			return
		}

		if ok {
			z := e.codec.zoneAt(e.layout, zIdx)
			ch.free(z)
			zLock.Release()

			return
		}

		evictionYield()
	}
}
