package fs

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ofdOpenFlags are the flags used to open (or create) the shared range
// lock file: read-write, creating it if absent.
const ofdOpenFlags = os.O_CREATE | os.O_RDWR

// RangeLocker provides byte-range advisory record locking on one shared
// file using open-file-description (OFD) locks (fcntl F_OFD_SETLK/
// F_OFD_SETLKW).
//
// This generalizes [Locker]'s whole-file flock(2) locking: flock only
// ever locks an entire inode, so coordinating shmcache's many named locks
// (SEGMENT, STATS, one per bucket, one per zone, RING) would otherwise
// require one lock file per name. OFD locks let many independent,
// non-overlapping byte ranges on a single shared file be locked and
// unlocked independently, even from the same process and the same file
// descriptor — unlike traditional whole-process fcntl(2) locks, closing
// one range never releases another.
//
// A RangeLocker holds exactly one open file descriptor for its lifetime;
// Lock/RLock/TryLock/Unlock operate on [start, start+length) within it.
type RangeLocker struct {
	mu   sync.Mutex
	file File
}

// OpenRangeLocker opens (creating if necessary) the file at path and
// returns a RangeLocker backed by it. The file is never deleted by the
// locker; callers that want the lock file to disappear with the segment
// must remove it themselves (mirrors [Locker]'s "lock file persists").
func OpenRangeLocker(fsys FS, path string) (*RangeLocker, error) {
	f, err := fsys.OpenFile(path, ofdOpenFlags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open range lock file: %w", err)
	}

	return &RangeLocker{file: f}, nil
}

// Close releases the underlying file descriptor. Any locks held via this
// RangeLocker are released by the kernel when the descriptor closes.
func (r *RangeLocker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}

	err := r.file.Close()
	r.file = nil

	return err
}

// Lock blocks until it acquires an exclusive lock on [start, start+length).
func (r *RangeLocker) Lock(start, length int64) error {
	return r.acquire(unix.F_WRLCK, start, length, true)
}

// RLock blocks until it acquires a shared lock on [start, start+length).
func (r *RangeLocker) RLock(start, length int64) error {
	return r.acquire(unix.F_RDLCK, start, length, true)
}

// TryLock attempts to acquire an exclusive lock on [start, start+length)
// without blocking. Returns [ErrWouldBlock] if the range is already
// locked by another open file description.
func (r *RangeLocker) TryLock(start, length int64) error {
	return r.acquire(unix.F_WRLCK, start, length, false)
}

// TryRLock attempts to acquire a shared lock on [start, start+length)
// without blocking. Returns [ErrWouldBlock] on contention.
func (r *RangeLocker) TryRLock(start, length int64) error {
	return r.acquire(unix.F_RDLCK, start, length, false)
}

// Unlock releases any lock held on [start, start+length).
func (r *RangeLocker) Unlock(start, length int64) error {
	r.mu.Lock()
	file := r.file
	r.mu.Unlock()

	if file == nil {
		return errors.New("range locker is closed")
	}

	lk := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0,
		Start:  start,
		Len:    length,
	}

	return unix.FcntlFlock(file.Fd(), unix.F_OFD_SETLK, &lk)
}

func (r *RangeLocker) acquire(lockType int16, start, length int64, blocking bool) error {
	r.mu.Lock()
	file := r.file
	r.mu.Unlock()

	if file == nil {
		return errors.New("range locker is closed")
	}

	lk := unix.Flock_t{
		Type:   lockType,
		Whence: int16(0),
		Start:  start,
		Len:    length,
	}

	cmd := unix.F_OFD_SETLK
	if blocking {
		cmd = unix.F_OFD_SETLKW
	}

	err := unix.FcntlFlock(file.Fd(), cmd, &lk)
	if err != nil {
		if !blocking && (errors.Is(err, unix.EACCES) || errors.Is(err, unix.EAGAIN)) {
			return ErrWouldBlock
		}

		return fmt.Errorf("fcntl OFD lock: %w", err)
	}

	return nil
}
