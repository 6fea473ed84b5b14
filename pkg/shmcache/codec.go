package shmcache

import "encoding/binary"

// codec owns the only direct access to the mapped bytes (spec §4.1). It is
// a pure byte-struct accessor: no locking, no interpretation beyond
// fixed-width little-endian integers and space-padded fixed-length keys.
//
// All other files in this package go through codec rather than indexing
// buf directly, so the on-segment layout stays centralized here.
type codec struct {
	buf []byte
}

func newCodec(buf []byte) codec {
	return codec{buf: buf}
}

func (c codec) readWord(off int64) int64 {
	return int64(binary.LittleEndian.Uint64(c.buf[off : off+wordSize]))
}

func (c codec) writeWord(off int64, v int64) {
	binary.LittleEndian.PutUint64(c.buf[off:off+wordSize], uint64(v))
}

func (c codec) readByte(off int64) byte {
	return c.buf[off]
}

func (c codec) writeByte(off int64, v byte) {
	c.buf[off] = v
}

// readKey returns the trimmed (non-padded) key stored at off, spanning
// MaxKeyLen bytes.
func (c codec) readKey(off int64) []byte {
	raw := c.buf[off : off+MaxKeyLen]

	end := len(raw)
	for end > 0 && raw[end-1] == ' ' {
		end--
	}

	out := make([]byte, end)
	copy(out, raw[:end])

	return out
}

// writeKey space-pads key to MaxKeyLen and writes it at off.
// Caller must ensure len(key) <= MaxKeyLen.
func (c codec) writeKey(off int64, key []byte) {
	dst := c.buf[off : off+MaxKeyLen]
	n := copy(dst, key)

	for i := n; i < MaxKeyLen; i++ {
		dst[i] = ' '
	}
}

// keyEquals compares the stored, padded key field at off against key
// without allocating (spec §4.3: "comparison is on trimmed content").
func (c codec) keyEquals(off int64, key []byte) bool {
	if len(key) > MaxKeyLen {
		return false
	}

	raw := c.buf[off : off+MaxKeyLen]

	for i, b := range key {
		if raw[i] != b {
			return false
		}
	}

	for i := len(key); i < MaxKeyLen; i++ {
		if raw[i] != ' ' {
			return false
		}
	}

	return true
}

func (c codec) readBytes(off int64, n int64) []byte {
	out := make([]byte, n)
	copy(out, c.buf[off:off+n])

	return out
}

func (c codec) writeBytes(off int64, p []byte) {
	copy(c.buf[off:off+int64(len(p))], p)
}

func (c codec) zero(off, n int64) {
	clear(c.buf[off : off+n])
}
