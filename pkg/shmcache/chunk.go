package shmcache

// chunk is a typed accessor bound to the absolute offset of one chunk
// header (spec §4.1). It carries no state of its own beyond (codec,
// offset) — offsets are plain integers, never owning references, per the
// "cyclic offset references" guidance in spec §9: hashNext chains live
// entirely in the byte layout, and a chunk value here is just an
// (offset, codec) pair computed fresh on every access.
type chunk struct {
	c   codec
	off int64
}

func (c codec) chunkAt(off int64) chunk {
	return chunk{c: c, off: off}
}

func (ch chunk) key() []byte {
	return ch.c.readKey(ch.off + chunkOffKey)
}

func (ch chunk) setKey(key []byte) {
	ch.c.writeKey(ch.off+chunkOffKey, key)
}

func (ch chunk) keyEquals(key []byte) bool {
	return ch.c.keyEquals(ch.off+chunkOffKey, key)
}

func (ch chunk) hashNext() int64 {
	return ch.c.readWord(ch.off + chunkOffHashNext)
}

func (ch chunk) setHashNext(v int64) {
	ch.c.writeWord(ch.off+chunkOffHashNext, v)
}

func (ch chunk) valAllocSize() int64 {
	return ch.c.readWord(ch.off + chunkOffValAllocSize)
}

func (ch chunk) setValAllocSize(v int64) {
	ch.c.writeWord(ch.off+chunkOffValAllocSize, v)
}

func (ch chunk) valSize() int64 {
	return ch.c.readWord(ch.off + chunkOffValSize)
}

func (ch chunk) setValSize(v int64) {
	ch.c.writeWord(ch.off+chunkOffValSize, v)
}

func (ch chunk) flags() byte {
	return ch.c.readByte(ch.off + chunkOffFlags)
}

func (ch chunk) setFlags(v byte) {
	ch.c.writeByte(ch.off+chunkOffFlags, v)
}

// isFree reports whether this chunk is currently unreachable from any
// bucket (spec invariant 6: valSize == 0 implies not linked).
func (ch chunk) isFree() bool {
	return ch.valSize() == 0
}

// value returns a copy of the first valSize bytes of the payload.
func (ch chunk) value() []byte {
	return ch.c.readBytes(ch.off+chunkOffValue, ch.valSize())
}

// setValue writes n bytes at the payload start. Caller must ensure
// n <= valAllocSize.
func (ch chunk) setValue(p []byte) {
	ch.c.writeBytes(ch.off+chunkOffValue, p)
}

// totalSize is CHUNK_META_SIZE + valAllocSize (spec §4.1).
func (ch chunk) totalSize() int64 {
	return ChunkMetaSize + ch.valAllocSize()
}

// endHeaderOffset is the absolute offset the value payload starts at.
func (ch chunk) endHeaderOffset() int64 {
	return ch.off + chunkOffValue
}

// endOffset is the absolute offset immediately after this chunk
// (endHeaderOffset + valAllocSize), i.e. where the next chunk begins.
func (ch chunk) endOffset() int64 {
	return ch.off + ch.totalSize()
}

// resetAsFreeTail rewrites this chunk in place as a zeroed free chunk
// spanning allocSize bytes of payload (spec §4.2 EvictZone / §4.4 Split).
func (ch chunk) resetAsFreeTail(allocSize int64) {
	ch.setKey(nil)
	ch.setHashNext(0)
	ch.setValAllocSize(allocSize)
	ch.setValSize(0)
	ch.setFlags(0)
}
