package offlinecache

import (
	"errors"

	"github.com/tartil-app/offlinecache/internal/cachestats"
	"github.com/tartil-app/offlinecache/internal/store"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound indicates the record is not cached. Corrupt records are
	// reported as ErrNotFound wrapping ErrCorrupt.
	ErrNotFound = store.ErrNotFound

	// ErrStorageFull indicates a write was rejected for lack of space.
	// The cache is left exactly as it was.
	ErrStorageFull = store.ErrStorageFull

	// ErrCorrupt indicates a stored record failed its integrity check.
	ErrCorrupt = store.ErrCorrupt

	// ErrDrift indicates running totals disagree with a full recount.
	ErrDrift = cachestats.ErrDrift

	// ErrInvalidArgument indicates a malformed key, record or size.
	ErrInvalidArgument = errors.New("offlinecache: invalid argument")

	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("offlinecache: manager closed")

	// ErrNoStore indicates no store was provided.
	ErrNoStore = errors.New("offlinecache: no store provided")

	// ErrOffline indicates an operation that needs the network was refused
	// because the manager believes it is offline.
	ErrOffline = errors.New("offlinecache: offline")
)

// DriftError carries the running and recounted totals of a failed Verify.
type DriftError = cachestats.DriftError
