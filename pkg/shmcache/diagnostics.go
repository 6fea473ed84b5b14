package shmcache

import "fmt"

// knownFlagBits are the only flag bits this engine ever sets or
// interprets (spec §3: only FlagSerialized is defined).
const knownFlagBits = FlagSerialized

// CheckInvariants walks the whole segment looking for violations of the
// properties spec §8 requires always hold, returning the first one found
// wrapped in [ErrCorrupt]. It is not part of normal operation — callers
// run it offline or from a diagnostics tool, since it takes SEGMENT
// exclusive for its entire (potentially slow) walk.
func (e *Engine) CheckInvariants() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	lock, err := e.locks.lockSegmentExclusive()
	if err != nil {
		return err
	}
	defer lock.Release()

	oldest := e.codec.oldestZoneIndex(e.layout)
	if oldest < 0 || oldest >= e.layout.zoneCount {
		return fmt.Errorf("%w: oldestZoneIndex %d out of range [0,%d)", ErrCorrupt, oldest, e.layout.zoneCount)
	}

	liveByOffset := make(map[int64]int64, 1024)

	for z := int64(0); z < e.layout.zoneCount; z++ {
		zn := e.codec.zoneAt(e.layout, z)

		if zn.usedSpace() < 0 || zn.usedSpace() > ZoneSize-wordSize {
			return fmt.Errorf("%w: zone %d usedSpace %d out of range", ErrCorrupt, z, zn.usedSpace())
		}

		var walkErr error

		walked := zn.walk(func(ch chunk) bool {
			if ch.valAllocSize() < MinValueAlloc || ch.valAllocSize() > MaxChunkPayload {
				walkErr = fmt.Errorf("%w: chunk at %d has valAllocSize %d out of range", ErrCorrupt, ch.off, ch.valAllocSize())

				return true
			}

			if ch.valSize() > ch.valAllocSize() {
				walkErr = fmt.Errorf("%w: chunk at %d has valSize %d exceeding valAllocSize %d", ErrCorrupt, ch.off, ch.valSize(), ch.valAllocSize())

				return true
			}

			if !ch.isFree() && ch.flags()&^knownFlagBits != 0 {
				walkErr = fmt.Errorf("%w: chunk at %d has unknown flag bits set: %#x", ErrCorrupt, ch.off, ch.flags())

				return true
			}

			if !ch.isFree() {
				liveByOffset[ch.off] = z
			}

			return false
		})

		if walkErr != nil {
			return walkErr
		}

		if walked != zn.usedSpace() {
			return fmt.Errorf("%w: zone %d walk consumed %d bytes, usedSpace says %d", ErrCorrupt, z, walked, zn.usedSpace())
		}
	}

	seenFromBuckets := make(map[int64]bool, len(liveByOffset))

	for b := int64(0); b < BucketCount; b++ {
		off := e.codec.bucketHead(e.layout, b)
		steps := int64(0)

		for off != 0 {
			steps++
			if steps > e.layout.zoneCount*int64(e.layout.zoneCount) {
				return fmt.Errorf("%w: bucket %d chain exceeds sane bound (cycle?)", ErrCorrupt, b)
			}

			if _, isLive := liveByOffset[off]; !isLive {
				return fmt.Errorf("%w: bucket %d chain references non-live or unknown offset %d", ErrCorrupt, b, off)
			}

			if seenFromBuckets[off] {
				return fmt.Errorf("%w: offset %d linked from more than one bucket chain", ErrCorrupt, off)
			}

			seenFromBuckets[off] = true

			ch := e.codec.chunkAt(off)
			if bucketIndex(ch.key()) != b {
				return fmt.Errorf("%w: chunk at %d stored in bucket %d but hashes to a different bucket", ErrCorrupt, off, b)
			}

			off = ch.hashNext()
		}
	}

	if len(seenFromBuckets) != len(liveByOffset) {
		return fmt.Errorf("%w: %d live chunks found by zone walk but only %d reachable from buckets", ErrCorrupt, len(liveByOffset), len(seenFromBuckets))
	}

	return nil
}
