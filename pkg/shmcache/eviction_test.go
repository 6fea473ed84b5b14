package shmcache_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmcache/pkg/shmcache"
)

// Test_Eviction_Reclaims_Oldest_Zone_First fills a fresh, minimum-sized
// segment with values large enough that each one consumes almost an
// entire zone, forcing the ring to wrap past every zone at least once.
// The earliest keys inserted should be evicted first (FIFO by zone, spec
// §4.2), while the most recently inserted keys must still be readable.
func Test_Eviction_Reclaims_Oldest_Zone_First(t *testing.T) {
	t.Parallel()

	bs := newMemBootstrap(shmcache.MinSegmentSize)

	eng, err := shmcache.Attach(bs, true)
	require.NoError(t, err)

	t.Cleanup(func() { _ = eng.Detach() })

	// Leave enough room in each zone for its chunk header plus guard
	// space so exactly one value-chunk fits per zone.
	valueSize := shmcache.ZoneSize - 4096
	value := make([]byte, valueSize)

	const rounds = 40

	keys := make([][]byte, rounds)

	for i := range rounds {
		key := fmt.Appendf(nil, "zone-filler-%04d", i)
		keys[i] = key

		require.NoError(t, eng.Set(key, value, 0))
	}

	_, _, err = eng.Get(keys[0])
	require.ErrorIs(t, err, shmcache.ErrMiss, "oldest key should have been evicted")

	last := keys[rounds-1]

	got, _, err := eng.Get(last)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

// Test_Eviction_Survives_Own_Bucket_Collision guards against a livelock
// where allocating a chunk for a new key triggers eviction of a zone
// containing a live chunk that hashes to the very bucket the inserting
// call is working in. With small values, a 16 MiB segment's first zone
// holds thousands of chunks spread over only 512 buckets, so every
// eviction-triggering insert is all but certain to collide with its own
// bucket somewhere in the zone being cleared. If upsert ever held that
// bucket exclusive across the allocate/evict call again, this test would
// hang rather than complete.
func Test_Eviction_Survives_Own_Bucket_Collision(t *testing.T) {
	t.Parallel()

	bs := newMemBootstrap(shmcache.MinSegmentSize)

	eng, err := shmcache.Attach(bs, true)
	require.NoError(t, err)

	t.Cleanup(func() { _ = eng.Detach() })

	value := make([]byte, 16)

	// 15 zones hold about 44,550 such 353-byte chunks; the rest of the
	// rounds evict populated zones.
	const rounds = 60000

	for i := range rounds {
		key := fmt.Appendf(nil, "small-%06d", i)
		require.NoError(t, eng.Set(key, value, 0))
	}

	require.NoError(t, eng.CheckInvariants())
}

func Test_Eviction_Preserves_Segment_Invariants(t *testing.T) {
	t.Parallel()

	bs := newMemBootstrap(shmcache.MinSegmentSize)

	eng, err := shmcache.Attach(bs, true)
	require.NoError(t, err)

	t.Cleanup(func() { _ = eng.Detach() })

	valueSize := shmcache.ZoneSize / 4
	value := make([]byte, valueSize)

	for i := range 80 {
		key := fmt.Appendf(nil, "k-%04d", i)
		require.NoError(t, eng.Set(key, value, 0))
	}

	require.NoError(t, eng.CheckInvariants())
}
