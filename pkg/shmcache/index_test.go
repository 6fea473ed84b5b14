package shmcache

import "testing"

func Test_BucketIndex_Is_Deterministic_And_In_Range(t *testing.T) {
	t.Parallel()

	keys := [][]byte{[]byte("a"), []byte("b"), []byte("some-longer-key"), []byte("")}

	for _, k := range keys {
		b1 := bucketIndex(k)
		b2 := bucketIndex(k)

		if b1 != b2 {
			t.Fatalf("bucketIndex(%q) not deterministic: %d vs %d", k, b1, b2)
		}

		if b1 < 0 || b1 >= BucketCount {
			t.Fatalf("bucketIndex(%q) = %d out of range [0,%d)", k, b1, BucketCount)
		}
	}
}

func Test_BucketIndex_Distributes_Sequential_Keys(t *testing.T) {
	t.Parallel()

	seen := make(map[int64]int)

	for i := range 2000 {
		b := bucketIndex([]byte{byte(i), byte(i >> 8)})
		seen[b]++
	}

	if len(seen) < BucketCount/4 {
		t.Fatalf("bucketIndex only hit %d distinct buckets out of %d for 2000 keys, want better spread", len(seen), BucketCount)
	}
}

func newTestCodecAndLayout(t *testing.T) (codec, areaLayout) {
	t.Helper()

	layout, err := computeLayout(MinSegmentSize)
	if err != nil {
		t.Fatalf("computeLayout: %v", err)
	}

	c := newCodec(make([]byte, MinSegmentSize))

	return c, layout
}

func makeLiveChunk(c codec, layout areaLayout, zoneIdx int64, key []byte, value []byte) chunk {
	z := c.zoneAt(layout, zoneIdx)

	ch, ok := z.allocate(int64(len(value)))
	if !ok {
		panic("makeLiveChunk: allocate failed")
	}

	ch.setKey(key)
	ch.setValue(value)
	ch.setValSize(int64(len(value)))
	ch.setHashNext(0)

	return ch
}

func Test_Index_Lookup_Miss_On_Empty_Bucket(t *testing.T) {
	t.Parallel()

	c, layout := newTestCodecAndLayout(t)

	_, ok := c.lookup(layout, 7, []byte("missing"))
	if ok {
		t.Fatalf("lookup: want miss on empty bucket")
	}
}

func Test_Index_Link_Then_Lookup_Finds_Single_Entry(t *testing.T) {
	t.Parallel()

	c, layout := newTestCodecAndLayout(t)
	z := c.zoneAt(layout, 0)
	z.resetToSingleFreeChunk()

	ch := makeLiveChunk(c, layout, 0, []byte("k1"), []byte("v1"))
	c.link(layout, 3, ch)

	got, ok := c.lookup(layout, 3, []byte("k1"))
	if !ok {
		t.Fatalf("lookup: want hit")
	}

	if got.off != ch.off {
		t.Fatalf("lookup: got chunk at %d, want %d", got.off, ch.off)
	}
}

func Test_Index_Link_Appends_To_Tail_In_Insertion_Order(t *testing.T) {
	t.Parallel()

	c, layout := newTestCodecAndLayout(t)
	z := c.zoneAt(layout, 0)
	z.resetToSingleFreeChunk()

	ch1 := makeLiveChunk(c, layout, 0, []byte("k1"), []byte("v1"))
	ch1.setHashNext(0)
	c.link(layout, 9, ch1)

	ch2 := makeLiveChunk(c, layout, 0, []byte("k2"), []byte("v2"))
	ch2.setHashNext(0)
	c.link(layout, 9, ch2)

	head := c.bucketHead(layout, 9)
	if head != ch1.off {
		t.Fatalf("bucketHead: got %d, want %d (first inserted)", head, ch1.off)
	}

	if got := c.chunkAt(head).hashNext(); got != ch2.off {
		t.Fatalf("hashNext of head: got %d, want %d", got, ch2.off)
	}
}

func Test_Index_Unlink_Head_Of_Chain(t *testing.T) {
	t.Parallel()

	c, layout := newTestCodecAndLayout(t)
	z := c.zoneAt(layout, 0)
	z.resetToSingleFreeChunk()

	ch1 := makeLiveChunk(c, layout, 0, []byte("k1"), []byte("v1"))
	ch1.setHashNext(0)
	c.link(layout, 4, ch1)

	ch2 := makeLiveChunk(c, layout, 0, []byte("k2"), []byte("v2"))
	ch2.setHashNext(0)
	c.link(layout, 4, ch2)

	if ok := c.unlink(layout, 4, ch1); !ok {
		t.Fatalf("unlink: want found")
	}

	if got := c.bucketHead(layout, 4); got != ch2.off {
		t.Fatalf("bucketHead after unlink: got %d, want %d", got, ch2.off)
	}

	if got := ch1.hashNext(); got != 0 {
		t.Fatalf("unlinked chunk hashNext: got %d, want 0", got)
	}

	if _, ok := c.lookup(layout, 4, []byte("k1")); ok {
		t.Fatalf("lookup: want miss after unlink")
	}
}

func Test_Index_Unlink_Mid_Chain_Splices_Around(t *testing.T) {
	t.Parallel()

	c, layout := newTestCodecAndLayout(t)
	z := c.zoneAt(layout, 0)
	z.resetToSingleFreeChunk()

	ch1 := makeLiveChunk(c, layout, 0, []byte("k1"), []byte("v1"))
	ch1.setHashNext(0)
	c.link(layout, 11, ch1)

	ch2 := makeLiveChunk(c, layout, 0, []byte("k2"), []byte("v2"))
	ch2.setHashNext(0)
	c.link(layout, 11, ch2)

	ch3 := makeLiveChunk(c, layout, 0, []byte("k3"), []byte("v3"))
	ch3.setHashNext(0)
	c.link(layout, 11, ch3)

	if ok := c.unlink(layout, 11, ch2); !ok {
		t.Fatalf("unlink: want found")
	}

	if got := ch1.hashNext(); got != ch3.off {
		t.Fatalf("ch1.hashNext after splicing out ch2: got %d, want %d", got, ch3.off)
	}

	if _, ok := c.lookup(layout, 11, []byte("k2")); ok {
		t.Fatalf("lookup: want miss for unlinked key")
	}

	if got, ok := c.lookup(layout, 11, []byte("k3")); !ok || got.off != ch3.off {
		t.Fatalf("lookup k3: got %v, %v, want %d, true", got.off, ok, ch3.off)
	}
}

func Test_Index_Unlink_Not_Found_Returns_False(t *testing.T) {
	t.Parallel()

	c, layout := newTestCodecAndLayout(t)
	z := c.zoneAt(layout, 0)
	z.resetToSingleFreeChunk()

	ch1 := makeLiveChunk(c, layout, 0, []byte("k1"), []byte("v1"))
	ch1.setHashNext(0)
	c.link(layout, 2, ch1)

	foreign := makeLiveChunk(c, layout, 0, []byte("other"), []byte("v"))

	if ok := c.unlink(layout, 2, foreign); ok {
		t.Fatalf("unlink: want false for a chunk never linked in bucket 2")
	}
}
