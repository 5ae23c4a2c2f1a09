// Package sqlitestore implements a SQLite storage backend.
//
// Payloads and a per-kind totals table are updated in the same transaction,
// so the running size survives restarts without a rescan.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tartil-app/offlinecache/internal/store"
)

// Compile-time checks.
var (
	_ store.Store   = (*Store)(nil)
	_ store.Locator = (*Store)(nil)
)

// keysPageSize is the number of keys fetched per query while iterating.
const keysPageSize = 256

const schemaQuery = `
CREATE TABLE IF NOT EXISTS entries (
	kind       INTEGER NOT NULL,
	surah      INTEGER NOT NULL,
	ayah       INTEGER NOT NULL,
	variant    TEXT    NOT NULL,
	data       BLOB    NOT NULL,
	size       INTEGER NOT NULL,
	checksum   INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, surah, ayah, variant)
);
CREATE TABLE IF NOT EXISTS totals (
	kind    INTEGER PRIMARY KEY,
	entries INTEGER NOT NULL,
	bytes   INTEGER NOT NULL
);
INSERT OR IGNORE INTO totals (kind, entries, bytes) VALUES (1, 0, 0), (2, 0, 0);
`

// Store is a SQLite storage backend.
type Store struct {
	db       *sql.DB
	path     string
	capacity int64

	writeMu sync.Mutex

	mu     sync.RWMutex
	counts map[store.Kind]int
	bytes  map[store.Kind]int64
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity limits the total payload size in bytes. Zero means unlimited.
func WithCapacity(bytes int64) Option {
	return func(s *Store) { s.capacity = bytes }
}

// New opens (or creates) the database at path.
// Use ":memory:" for a throwaway database.
func New(path string, opts ...Option) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite store at %q: %w", path, err)
	}
	// One connection avoids "database is locked" between our own writers and
	// keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite store: %w", err)
	}
	if _, err := db.Exec(schemaQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		counts: make(map[store.Kind]int),
		bytes:  make(map[store.Kind]int64),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadTotals(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadTotals() error {
	rows, err := s.db.Query(`SELECT kind, entries, bytes FROM totals`)
	if err != nil {
		return fmt.Errorf("loading totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, entries int
		var bytes int64
		if err := rows.Scan(&kind, &entries, &bytes); err != nil {
			return fmt.Errorf("scanning totals: %w", err)
		}
		s.counts[store.Kind(kind)] = entries
		s.bytes[store.Kind(kind)] = bytes
	}
	return rows.Err()
}

// Put upserts the payload and the kind's totals in one transaction.
func (s *Store) Put(ctx context.Context, key store.Key, data []byte) (store.Delta, error) {
	if err := key.Validate(); err != nil {
		return store.Delta{}, err
	}
	size := int64(len(data))
	sum := store.Checksum(data)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Delta{}, fmt.Errorf("beginning transaction: %w", mapErr(err))
	}
	defer func() { _ = tx.Rollback() }()

	var oldSize, oldSum int64
	err = tx.QueryRowContext(ctx,
		`SELECT size, checksum FROM entries WHERE kind = ? AND surah = ? AND ayah = ? AND variant = ?`,
		int(key.Kind), key.Surah, key.Ayah, key.Variant,
	).Scan(&oldSize, &oldSum)

	delta := store.Delta{Entries: 1, Bytes: size}
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return store.Delta{}, fmt.Errorf("reading entry: %w", mapErr(err))
	case oldSize == size && uint64(oldSum) == sum:
		return store.Delta{}, nil
	default:
		delta = store.Delta{Entries: 0, Bytes: size - oldSize}
	}

	if s.capacity > 0 && s.TotalSize()+delta.Bytes > s.capacity {
		return store.Delta{}, store.ErrStorageFull
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (kind, surah, ayah, variant, data, size, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, surah, ayah, variant) DO UPDATE SET
			data = excluded.data, size = excluded.size,
			checksum = excluded.checksum, updated_at = excluded.updated_at`,
		int(key.Kind), key.Surah, key.Ayah, key.Variant, data, size, int64(sum), time.Now().Unix(),
	)
	if err != nil {
		return store.Delta{}, fmt.Errorf("writing entry: %w", mapErr(err))
	}
	if err := s.applyTotals(ctx, tx, key.Kind, delta); err != nil {
		return store.Delta{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Delta{}, fmt.Errorf("committing entry: %w", mapErr(err))
	}

	s.recordDelta(key.Kind, delta)
	return delta, nil
}

// Get reads and verifies the payload stored under key.
func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, error) {
	var data []byte
	var size, sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, size, checksum FROM entries WHERE kind = ? AND surah = ? AND ayah = ? AND variant = ?`,
		int(key.Kind), key.Surah, key.Ayah, key.Variant,
	).Scan(&data, &size, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	if int64(len(data)) != size || store.Checksum(data) != uint64(sum) {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", store.ErrCorrupt, key)
	}
	return data, nil
}

// Stat returns entry metadata without reading the payload.
func (s *Store) Stat(ctx context.Context, key store.Key) (store.Info, error) {
	var size, sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT size, checksum FROM entries WHERE kind = ? AND surah = ? AND ayah = ? AND variant = ?`,
		int(key.Kind), key.Surah, key.Ayah, key.Variant,
	).Scan(&size, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Info{}, store.ErrNotFound
	}
	if err != nil {
		return store.Info{}, fmt.Errorf("reading entry: %w", err)
	}
	return store.Info{Key: key, Size: size, Checksum: uint64(sum)}, nil
}

// Delete removes key and updates totals in one transaction.
func (s *Store) Delete(ctx context.Context, key store.Key) (store.Delta, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Delta{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var size int64
	err = tx.QueryRowContext(ctx,
		`DELETE FROM entries WHERE kind = ? AND surah = ? AND ayah = ? AND variant = ? RETURNING size`,
		int(key.Kind), key.Surah, key.Ayah, key.Variant,
	).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Delta{}, nil
	}
	if err != nil {
		return store.Delta{}, fmt.Errorf("deleting entry: %w", err)
	}

	delta := store.Delta{Entries: -1, Bytes: -size}
	if err := s.applyTotals(ctx, tx, key.Kind, delta); err != nil {
		return store.Delta{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Delta{}, fmt.Errorf("committing delete: %w", err)
	}

	s.recordDelta(key.Kind, delta)
	return delta, nil
}

// Keys pages through the keys of kind in primary-key order.
// No connection is held while the caller's loop body runs.
func (s *Store) Keys(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		after := store.Key{Kind: kind}
		for {
			page, err := s.keysPage(ctx, after)
			if err != nil {
				yield(store.Key{}, err)
				return
			}
			for _, k := range page {
				if !yield(k, nil) {
					return
				}
			}
			if len(page) < keysPageSize {
				return
			}
			after = page[len(page)-1]
		}
	}
}

func (s *Store) keysPage(ctx context.Context, after store.Key) ([]store.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT surah, ayah, variant FROM entries
		WHERE kind = ? AND (surah, ayah, variant) > (?, ?, ?)
		ORDER BY surah, ayah, variant
		LIMIT ?`,
		int(after.Kind), after.Surah, after.Ayah, after.Variant, keysPageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	page := make([]store.Key, 0, keysPageSize)
	for rows.Next() {
		k := store.Key{Kind: after.Kind}
		if err := rows.Scan(&k.Surah, &k.Ayah, &k.Variant); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		page = append(page, k)
	}
	return page, rows.Err()
}

// Len returns the number of entries of the given kind.
func (s *Store) Len(kind store.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[kind]
}

// TotalSize returns the running payload total.
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, b := range s.bytes {
		total += b
	}
	return total
}

// Clear removes every entry and zeroes the totals.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE totals SET entries = 0, bytes = 0`); err != nil {
		return fmt.Errorf("clearing totals: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}

	s.mu.Lock()
	s.counts = make(map[store.Kind]int)
	s.bytes = make(map[store.Kind]int64)
	s.mu.Unlock()
	return nil
}

// Location returns a pseudo-URL naming the database row for key.
func (s *Store) Location(key store.Key) string {
	return "sqlite://" + s.path + "#" + key.String()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) applyTotals(ctx context.Context, tx *sql.Tx, kind store.Kind, delta store.Delta) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE totals SET entries = entries + ?, bytes = bytes + ? WHERE kind = ?`,
		delta.Entries, delta.Bytes, int(kind),
	)
	if err != nil {
		return fmt.Errorf("updating totals: %w", mapErr(err))
	}
	return nil
}

func (s *Store) recordDelta(kind store.Kind, delta store.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[kind] += delta.Entries
	s.bytes[kind] += delta.Bytes
}

// mapErr converts SQLITE_FULL to store.ErrStorageFull.
func mapErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%w: %v", store.ErrStorageFull, err)
	}
	return err
}
