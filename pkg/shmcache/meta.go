package shmcache

// meta area accessors (spec §3 "Segment header"). oldestZoneIndex is
// only read/written while holding either the RING lock (allocation and
// eviction, evict.go) or SEGMENT exclusive (initSegment, Flush,
// CheckInvariants), which excludes every other operation (spec §9
// "Known source issues": the original's ring reads were unlocked).
func (c codec) oldestZoneIndex(layout areaLayout) int64 {
	return c.readWord(layout.metaOffset)
}

func (c codec) setOldestZoneIndex(layout areaLayout, v int64) {
	c.writeWord(layout.metaOffset, v)
}

// newestZoneIndex is (oldestZoneIndex - 1) mod ZoneCount (spec §4.2).
// "Newer" means inserted later; after ZoneCount evictions the ring wraps.
// This fixes the source bug (spec §9) where the newest-zone formula
// returned ZoneCount (out of range) when oldestZoneIndex == 0.
func (c codec) newestZoneIndex(layout areaLayout) int64 {
	oldest := c.oldestZoneIndex(layout)

	return (oldest - 1 + layout.zoneCount) % layout.zoneCount
}
