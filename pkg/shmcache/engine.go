package shmcache

import (
	"fmt"
	"sync/atomic"

	"github.com/calvinalkan/shmcache/internal/fs"
)

// RangeLockSource is an optional capability a [Bootstrap] implementation
// may provide to supply cross-process byte-range locking (spec §5). When
// a Bootstrap does not implement this interface, [Attach] falls back to
// in-process-only locking: safe for multiple goroutines sharing one
// handle, but not for multiple processes attaching the same segment.
type RangeLockSource interface {
	OpenRangeLocker() (*fs.RangeLocker, error)
}

// Engine is one attached handle onto a shared segment. It is safe for
// concurrent use from multiple goroutines; see locks.go for the full
// concurrency model.
type Engine struct {
	bs     Bootstrap
	codec  codec
	layout areaLayout
	locks  *lockManager
	closed atomic.Bool
}

// Attach binds an Engine to an already-mapped segment obtained through
// bs. fresh must be true exactly when the caller knows the segment has
// never been initialized (e.g. the backing file was just created) — a
// fresh segment is zeroed out into a valid empty layout; a non-fresh
// segment is trusted as-is (spec §6: "attach never re-initializes an
// existing segment").
func Attach(bs Bootstrap, fresh bool) (*Engine, error) {
	buf := bs.Bytes()

	layout, err := computeLayout(int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("shmcache: %w", err)
	}

	var cross *fs.RangeLocker

	if src, ok := bs.(RangeLockSource); ok {
		cross, err = src.OpenRangeLocker()
		if err != nil {
			return nil, fmt.Errorf("shmcache: open range locker: %w", err)
		}
	}

	locks := newLockManager(cross, BucketCount, layout.zoneCount, cross == nil)

	eng := &Engine{
		bs:     bs,
		codec:  newCodec(buf),
		layout: layout,
		locks:  locks,
	}

	if fresh {
		if err := eng.initSegment(); err != nil {
			return nil, fmt.Errorf("shmcache: init segment: %w", err)
		}
	}

	return eng, nil
}

// initSegment lays out a brand-new segment: every bucket head cleared,
// every zone reset to one free chunk spanning its payload, stats zeroed,
// and oldestZoneIndex set to zoneCount-1 (spec §4.5 Flush's reset value,
// applied here too so a fresh segment and a just-flushed one match).
func (e *Engine) initSegment() error {
	lock, err := e.locks.lockSegmentExclusive()
	if err != nil {
		return err
	}
	defer lock.Release()

	e.codec.zero(e.layout.metaOffset, metaAreaSize)
	e.codec.zero(e.layout.statsOffset, statsAreaSize)
	e.codec.zero(e.layout.bucketOffset, int64(BucketCount)*wordSize)

	e.codec.setOldestZoneIndex(e.layout, e.layout.zoneCount-1)

	for z := int64(0); z < e.layout.zoneCount; z++ {
		e.codec.zoneAt(e.layout, z).resetToSingleFreeChunk()
	}

	return nil
}

// Detach releases this handle's resources without affecting the segment
// itself or any other attached handle.
func (e *Engine) Detach() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	if e.locks.cross != nil {
		_ = e.locks.cross.Close()
	}

	return e.bs.Detach()
}

// Destroy ends the segment's lifetime. After Destroy returns, this and
// every other handle attached to the segment must not be used again.
func (e *Engine) Destroy() error {
	lock, err := e.locks.lockSegmentExclusive()
	if err != nil {
		return err
	}
	defer lock.Release()

	return e.bs.Destroy()
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return ErrClosed
	}

	return nil
}
