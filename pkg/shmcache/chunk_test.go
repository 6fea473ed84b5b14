package shmcache

import "testing"

func Test_Chunk_Header_Fields_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, ChunkMetaSize+256))
	ch := c.chunkAt(0)

	ch.setKey([]byte("my-key"))
	ch.setHashNext(42)
	ch.setValAllocSize(200)
	ch.setValSize(5)
	ch.setFlags(FlagSerialized)
	ch.setValue([]byte("hello"))

	if !ch.keyEquals([]byte("my-key")) {
		t.Fatalf("keyEquals: want true")
	}

	if got := ch.hashNext(); got != 42 {
		t.Fatalf("hashNext: got %d, want 42", got)
	}

	if got := ch.valAllocSize(); got != 200 {
		t.Fatalf("valAllocSize: got %d, want 200", got)
	}

	if got := ch.valSize(); got != 5 {
		t.Fatalf("valSize: got %d, want 5", got)
	}

	if got := ch.flags(); got != FlagSerialized {
		t.Fatalf("flags: got %#x, want %#x", got, FlagSerialized)
	}

	if got := string(ch.value()); got != "hello" {
		t.Fatalf("value: got %q, want %q", got, "hello")
	}

	if got, want := ch.totalSize(), ChunkMetaSize+int64(200); got != want {
		t.Fatalf("totalSize: got %d, want %d", got, want)
	}
}

func Test_Chunk_IsFree_Reflects_ValSize(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, ChunkMetaSize+256))
	ch := c.chunkAt(0)
	ch.resetAsFreeTail(128)

	if !ch.isFree() {
		t.Fatalf("isFree: want true right after resetAsFreeTail")
	}

	ch.setValSize(1)

	if ch.isFree() {
		t.Fatalf("isFree: want false once valSize > 0")
	}
}

func Test_Chunk_ResetAsFreeTail_Clears_Key_And_HashNext(t *testing.T) {
	t.Parallel()

	c := newCodec(make([]byte, ChunkMetaSize+256))
	ch := c.chunkAt(0)

	ch.setKey([]byte("stale"))
	ch.setHashNext(99)
	ch.setFlags(FlagSerialized)

	ch.resetAsFreeTail(100)

	if got := len(ch.key()); got != 0 {
		t.Fatalf("key: got %q, want empty after reset", ch.key())
	}

	if got := ch.hashNext(); got != 0 {
		t.Fatalf("hashNext: got %d, want 0 after reset", got)
	}

	if got := ch.flags(); got != 0 {
		t.Fatalf("flags: got %#x, want 0 after reset", got)
	}

	if got := ch.valAllocSize(); got != 100 {
		t.Fatalf("valAllocSize: got %d, want 100", got)
	}
}
