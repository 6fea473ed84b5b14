package shmcache

import "fmt"

// ValidateSegmentSize reports whether size is usable as a segment size:
// at least MinSegmentSize and large enough to hold BucketCount bucket
// slots plus at least one zone after the guard gaps (spec §3, §6).
// Bootstrap implementations that create new segments (e.g. shmfs.Open)
// call this before allocating the backing storage, so a misconfigured
// size fails before anything is written to disk.
func ValidateSegmentSize(size int64) error {
	if size < MinSegmentSize {
		return fmt.Errorf("shmcache: segment size %d below minimum %d", size, MinSegmentSize)
	}

	if _, err := computeLayout(size); err != nil {
		return fmt.Errorf("shmcache: %w", err)
	}

	return nil
}
