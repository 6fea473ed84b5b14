package shmcache

import "errors"

// Error classification codes returned by engine operations.
//
// Implementations MAY wrap these errors with additional context via
// fmt.Errorf("...: %w", ...). Callers MUST classify errors using
// errors.Is, never by comparing error strings.
var (
	// ErrMiss indicates the key has no live entry (Get).
	ErrMiss = errors.New("shmcache: miss")

	// ErrExists indicates Add failed because a live entry already exists.
	ErrExists = errors.New("shmcache: exists")

	// ErrNotFound indicates Replace failed because no live entry exists.
	ErrNotFound = errors.New("shmcache: not found")

	// ErrOversize indicates a value exceeds MaxChunkPayload.
	ErrOversize = errors.New("shmcache: oversize")

	// ErrNonNumeric indicates Increment found a value that doesn't parse
	// as a signed integer.
	ErrNonNumeric = errors.New("shmcache: non-numeric value")

	// ErrBusy indicates a lock could not be acquired (timeout or, for
	// try-exclusive acquisitions, contention).
	ErrBusy = errors.New("shmcache: busy")

	// ErrInvalidKey indicates an empty key or a key longer than
	// MaxKeyLen bytes (keys are never truncated).
	ErrInvalidKey = errors.New("shmcache: invalid key")

	// ErrCorrupt indicates an invariant violation was detected in the
	// segment (chain walk exceeded ZoneCount² steps, zone walk exceeded zone
	// size, reserved bits set, etc). The segment should be treated as
	// unusable by the caller.
	ErrCorrupt = errors.New("shmcache: corrupt")

	// ErrIOError indicates a failure reading or writing the mapped byte
	// region via the Bootstrap contract.
	ErrIOError = errors.New("shmcache: io error")

	// ErrClosed indicates the engine handle was already detached.
	ErrClosed = errors.New("shmcache: closed")

	// ErrDestroyed indicates the segment was destroyed by this or another
	// handle and can no longer be used.
	ErrDestroyed = errors.New("shmcache: destroyed")
)
