// Package shmfs is a file-backed reference implementation of
// [shmcache.Bootstrap]: it mmaps a regular file (conventionally one
// under /dev/shm) as the shared segment and derives the segment's
// lifecycle and locking from that file.
package shmfs

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/shmcache/internal/fs"
	"github.com/calvinalkan/shmcache/pkg/shmcache"
)

// Handle is the [shmcache.Bootstrap] and [shmcache.RangeLockSource]
// implementation returned by [Open].
type Handle struct {
	path     string
	lockPath string
	file     fs.File
	buf      []byte
	name     string
	fsys     fs.FS
}

// Open attaches the segment backed by the file at path, creating it with
// the given size if it does not already exist. It is equivalent to
// [OpenWithFS] against [fs.NewReal].
func Open(path string, size int64) (h *Handle, isNew bool, err error) {
	return OpenWithFS(fs.NewReal(), path, size)
}

// OpenWithFS is [Open] parameterized over the filesystem used for every
// on-disk operation (directory creation, file open/truncate/stat, and
// the open-lock). Production callers use [Open]; tests pass a
// fault-injecting [fs.Chaos] (optionally wrapped in [fs.StrictTestFS]) to
// exercise the segment's real I/O path against injected failures. isNew
// reports whether this call created the file (and so the caller must
// treat the segment as uninitialized, per [shmcache.Attach]'s fresh
// parameter).
//
// The companion lock file used for [Handle.OpenRangeLocker] is path with
// a ".lock" suffix, mirroring the teacher's convention of a stable,
// never-replaced lock file path distinct from the data file itself.
//
// The create-or-attach decision and the subsequent truncate/stat are
// themselves racy across processes (one process can see the file
// mid-truncate), so OpenWithFS serializes them with a whole-file
// exclusive lock on a second companion file, path+".open.lock", taken
// through [fs.Locker] — the same whole-file locking primitive the
// teacher uses elsewhere, here guarding segment creation rather than a
// single entry.
func OpenWithFS(fsys fs.FS, path string, size int64) (h *Handle, isNew bool, err error) {
	if err := shmcache.ValidateSegmentSize(size); err != nil {
		return nil, false, err
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("shmfs: creating parent directory: %w", err)
	}

	openLock, err := fs.NewLocker(fsys).Lock(path + ".open.lock")
	if err != nil {
		return nil, false, fmt.Errorf("shmfs: locking segment for open: %w", err)
	}
	defer openLock.Close() //nolint:errcheck

	file, err := fsys.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)

	switch {
	case err == nil:
		isNew = true

		if terr := fsys.Truncate(path, size); terr != nil {
			file.Close()

			return nil, false, fmt.Errorf("shmfs: truncating new segment: %w", terr)
		}
	case os.IsExist(err):
		file, err = fsys.OpenFile(path, os.O_RDWR, 0o600)
		if err != nil {
			return nil, false, fmt.Errorf("shmfs: opening existing segment: %w", err)
		}

		info, serr := file.Stat()
		if serr != nil {
			file.Close()

			return nil, false, fmt.Errorf("shmfs: stat existing segment: %w", serr)
		}

		if info.Size() != size {
			file.Close()

			return nil, false, fmt.Errorf("shmfs: existing segment %q has size %d, want %d", path, info.Size(), size)
		}
	default:
		return nil, false, fmt.Errorf("shmfs: opening segment: %w", err)
	}

	buf, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()

		return nil, false, fmt.Errorf("shmfs: mmap: %w", err)
	}

	name, err := deriveName(file)
	if err != nil {
		_ = unix.Munmap(buf)
		file.Close()

		return nil, false, fmt.Errorf("shmfs: deriving segment name: %w", err)
	}

	h = &Handle{
		path:     path,
		lockPath: path + ".lock",
		file:     file,
		buf:      buf,
		name:     name,
		fsys:     fsys,
	}

	return h, isNew, nil
}

// deriveName returns a stable, host-wide identifier for the segment's
// backing inode (spec §6 "Segment naming"), mirroring the (dev, ino) pair
// the teacher's Locker uses to detect a replaced lock file.
func deriveName(file fs.File) (string, error) {
	info, err := file.Stat()
	if err != nil {
		return "", err
	}

	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok || sys == nil {
		return "", fmt.Errorf("file.Stat Sys=%T, want *syscall.Stat_t", info.Sys())
	}

	return fmt.Sprintf("shmfs-dev%d-ino%d", sys.Dev, sys.Ino), nil
}

// Bytes implements [shmcache.Bootstrap].
func (h *Handle) Bytes() []byte { return h.buf }

// Name implements [shmcache.Bootstrap].
func (h *Handle) Name() string { return h.name }

// Detach implements [shmcache.Bootstrap]: it unmaps the segment and
// closes the file descriptor without removing anything from disk.
func (h *Handle) Detach() error {
	var firstErr error

	if err := unix.Munmap(h.buf); err != nil {
		firstErr = fmt.Errorf("shmfs: munmap: %w", err)
	}

	if err := h.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shmfs: closing segment file: %w", err)
	}

	return firstErr
}

// Destroy implements [shmcache.Bootstrap]: it detaches, then removes the
// segment file and its companion lock file from disk. After Destroy no
// handle attached to this path may be used again.
func (h *Handle) Destroy() error {
	if err := h.Detach(); err != nil {
		return err
	}

	if err := h.fsys.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shmfs: removing segment file: %w", err)
	}

	if err := h.fsys.Remove(h.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shmfs: removing lock file: %w", err)
	}

	if err := h.fsys.Remove(h.path + ".open.lock"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shmfs: removing open-lock file: %w", err)
	}

	return nil
}

// OpenRangeLocker implements [shmcache.RangeLockSource], giving the
// engine a byte-range locker over this segment's companion lock file.
func (h *Handle) OpenRangeLocker() (*fs.RangeLocker, error) {
	return fs.OpenRangeLocker(h.fsys, h.lockPath)
}
