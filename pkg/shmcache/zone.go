package shmcache

// zone is a typed accessor for one zone header (spec §3, §4.2). Like
// chunk, it is a plain (codec, zone index) pair recomputed on every
// access — the zone's absolute start offset depends only on the
// segment's layout and the zone index.
type zone struct {
	c      codec
	layout areaLayout
	index  int64
}

func (c codec) zoneAt(layout areaLayout, index int64) zone {
	return zone{c: c, layout: layout, index: index}
}

// start is the absolute offset of this zone's header (usedSpace word).
func (z zone) start() int64 {
	return z.layout.zoneStart(z.index)
}

// chunkAreaStart is the absolute offset the zone's chunk stack begins at,
// immediately after the usedSpace header word.
func (z zone) chunkAreaStart() int64 {
	return z.start() + wordSize
}

func (z zone) usedSpace() int64 {
	return z.c.readWord(z.start())
}

func (z zone) setUsedSpace(v int64) {
	z.c.writeWord(z.start(), v)
}

// freeSpace is the space remaining in the zone's chunk stack, per spec
// §4.2 step 3: (ZONE_SIZE - W) - usedSpace.
func (z zone) freeSpace() int64 {
	return (ZoneSize - wordSize) - z.usedSpace()
}

// firstChunk returns an accessor for the chunk at the bottom of this
// zone's stack (offset chunkAreaStart).
func (z zone) firstChunk() chunk {
	return z.c.chunkAt(z.chunkAreaStart())
}

// resetToSingleFreeChunk rewrites the zone as empty: usedSpace = 0 and a
// single free chunk spanning the whole usable payload area, matching
// spec §4.2 EvictZone's layout after a wholesale clear.
func (z zone) resetToSingleFreeChunk() {
	z.firstChunk().resetAsFreeTail(MaxChunkPayload)
	z.setUsedSpace(0)
}

// walk invokes fn for every chunk in this zone's stack, left to right,
// stopping once usedSpace bytes have been consumed. It returns the number
// of bytes walked so callers can verify the zone-accounting invariant
// (spec invariant 2 / testable property 7).
func (z zone) walk(fn func(ch chunk) (stop bool)) int64 {
	used := z.usedSpace()

	var walked int64

	off := z.chunkAreaStart()
	for walked < used {
		ch := z.c.chunkAt(off)
		if fn(ch) {
			break
		}

		sz := ch.totalSize()
		walked += sz
		off += sz
	}

	return walked
}
