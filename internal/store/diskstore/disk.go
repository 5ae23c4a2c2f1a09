// Package diskstore implements a disk-based filesystem storage backend.
//
// Payloads live under <root>/<kind>/<shard>/ in files whose names embed the
// key and payload checksum, so an overwrite never rewrites a file in place.
// An index.json file at the root records sizes and checksums and is replaced
// atomically after every mutation.
package diskstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tartil-app/offlinecache/internal/codec"
	"github.com/tartil-app/offlinecache/internal/shard"
	"github.com/tartil-app/offlinecache/internal/shard/surahshard"
	"github.com/tartil-app/offlinecache/internal/store"
)

// Compile-time checks.
var (
	_ store.Store    = (*Store)(nil)
	_ store.Locator  = (*Store)(nil)
	_ store.Scrubber = (*Store)(nil)
)

// DefaultTotalShards gives every surah its own directory under surah sharding.
const DefaultTotalShards = 128

const (
	trashPrefix = ".trash-"

	// maxReadAttempts bounds retries when an overwrite races a read.
	maxReadAttempts = 8
)

// Store is a disk-based filesystem storage backend.
type Store struct {
	root        string
	codec       codec.Codec
	strategy    shard.Strategy
	totalShards int
	capacity    int64

	// writeMu serializes mutations including their file I/O.
	writeMu sync.Mutex

	// mu guards idx and is only held for in-memory updates.
	mu  sync.RWMutex
	idx *index
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity limits the total payload size in bytes. Zero means unlimited.
func WithCapacity(bytes int64) Option {
	return func(s *Store) { s.capacity = bytes }
}

// WithShardStrategy sets the directory sharding strategy.
// If not set, surah-based sharding is used.
func WithShardStrategy(st shard.Strategy) Option {
	return func(s *Store) { s.strategy = st }
}

// WithTotalShards sets the number of shard directories per kind.
func WithTotalShards(n int) Option {
	return func(s *Store) { s.totalShards = n }
}

// New opens a disk store rooted at the given directory, creating it if needed.
// The codec handles compression/decompression. If no index exists, one is
// rebuilt by scanning the payload files.
func New(root string, c codec.Codec, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	s := &Store{
		root:        root,
		codec:       c,
		strategy:    surahshard.New(),
		totalShards: DefaultTotalShards,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.totalShards <= 0 {
		return nil, fmt.Errorf("total shards must be positive, got %d", s.totalShards)
	}

	s.removeTrash()

	ix, err := s.loadIndex()
	switch {
	case err == nil:
		s.idx = ix
	case errors.Is(err, fs.ErrNotExist):
		if s.idx, err = s.rebuildIndex(context.Background()); err != nil {
			return nil, fmt.Errorf("rebuilding index: %w", err)
		}
		if err := s.persist(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("loading index: %w", err)
	}

	return s, nil
}

// Put compresses data and stores it under key.
func (s *Store) Put(ctx context.Context, key store.Key, data []byte) (store.Delta, error) {
	if err := key.Validate(); err != nil {
		return store.Delta{}, err
	}
	info := store.Info{Key: key, Size: int64(len(data)), Checksum: store.Checksum(data)}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	prev, had := s.idx.entries[key]
	total := s.idx.total
	s.mu.RUnlock()

	if had && prev.Checksum == info.Checksum && prev.Size == info.Size {
		return store.Delta{}, nil
	}

	growth := info.Size
	if had {
		growth -= prev.Size
	}
	if s.capacity > 0 && total+growth > s.capacity {
		return store.Delta{}, store.ErrStorageFull
	}

	path := s.payloadPath(key, info.Checksum)
	if err := s.writePayload(path, data); err != nil {
		return store.Delta{}, err
	}

	s.mu.Lock()
	delta := s.idx.apply(info)
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		s.mu.Lock()
		s.idx.restore(key, prev, had)
		s.mu.Unlock()
		if !had || prev.Checksum != info.Checksum {
			_ = os.Remove(path)
		}
		return store.Delta{}, fmt.Errorf("recording entry: %w", err)
	}

	if had && prev.Checksum != info.Checksum {
		_ = os.Remove(s.payloadPath(key, prev.Checksum))
	}
	return delta, nil
}

// Get reads, decompresses and verifies the payload stored under key.
func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, error) {
	// A concurrent overwrite may remove the file named by the index entry we
	// looked up; retry against the fresh entry.
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		s.mu.RLock()
		info, ok := s.idx.entries[key]
		s.mu.RUnlock()
		if !ok {
			return nil, store.ErrNotFound
		}

		data, err := s.readPayload(s.payloadPath(key, info.Checksum))
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.RLock()
			current, still := s.idx.entries[key]
			s.mu.RUnlock()
			if still && current == info {
				return nil, fmt.Errorf("%w: payload file missing", store.ErrCorrupt)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != info.Size || store.Checksum(data) != info.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch for %s", store.ErrCorrupt, key)
		}
		return data, nil
	}
	return nil, store.ErrNotFound
}

// Stat returns entry metadata from the index.
func (s *Store) Stat(ctx context.Context, key store.Key) (store.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.idx.entries[key]
	if !ok {
		return store.Info{}, store.ErrNotFound
	}
	return info, nil
}

// Delete removes key from the index and then its payload file.
func (s *Store) Delete(ctx context.Context, key store.Key) (store.Delta, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	prev, delta, ok := s.idx.remove(key)
	s.mu.Unlock()
	if !ok {
		return store.Delta{}, nil
	}

	if err := s.persist(); err != nil {
		s.mu.Lock()
		s.idx.apply(prev)
		s.mu.Unlock()
		return store.Delta{}, fmt.Errorf("recording delete: %w", err)
	}

	// A leftover file is only an orphan; Scrub reports it.
	_ = os.Remove(s.payloadPath(key, prev.Checksum))
	return delta, nil
}

// Keys returns a sorted snapshot of the keys of the given kind.
func (s *Store) Keys(ctx context.Context, kind store.Kind) iter.Seq2[store.Key, error] {
	return func(yield func(store.Key, error) bool) {
		s.mu.RLock()
		keys := make([]store.Key, 0, s.idx.counts[kind])
		for k := range s.idx.entries {
			if k.Kind == kind {
				keys = append(keys, k)
			}
		}
		s.mu.RUnlock()

		slices.SortFunc(keys, store.Key.Compare)
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(store.Key{}, err)
				return
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Len returns the number of entries of the given kind.
func (s *Store) Len(kind store.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.counts[kind]
}

// TotalSize returns the running payload total.
func (s *Store) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.total
}

// Clear moves every payload directory aside, records an empty index and then
// deletes the moved directories. If the index cannot be written the
// directories are moved back.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	trash := filepath.Join(s.root, trashPrefix+strconv.FormatInt(time.Now().UnixNano(), 10))
	if err := os.Mkdir(trash, 0o755); err != nil {
		return fmt.Errorf("creating trash directory: %w", err)
	}

	var moved []store.Kind
	restore := func() {
		for _, kind := range moved {
			_ = os.Rename(filepath.Join(trash, kind.String()), s.kindDir(kind))
		}
		_ = os.RemoveAll(trash)
	}

	for _, kind := range store.Kinds {
		err := os.Rename(s.kindDir(kind), filepath.Join(trash, kind.String()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			restore()
			return fmt.Errorf("moving %s payloads: %w", kind, err)
		}
		moved = append(moved, kind)
	}

	s.mu.Lock()
	old := s.idx
	s.idx = newIndex()
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		s.mu.Lock()
		s.idx = old
		s.mu.Unlock()
		restore()
		return fmt.Errorf("recording clear: %w", err)
	}

	if err := os.RemoveAll(trash); err != nil {
		return fmt.Errorf("removing cleared payloads: %w", err)
	}
	return nil
}

// Location returns the payload file path for key, or "" if absent.
func (s *Store) Location(key store.Key) string {
	s.mu.RLock()
	info, ok := s.idx.entries[key]
	s.mu.RUnlock()
	if !ok {
		return ""
	}
	return s.payloadPath(key, info.Checksum)
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) kindDir(kind store.Kind) string {
	return filepath.Join(s.root, kind.String())
}

// payloadPath returns the filesystem path for a payload.
func (s *Store) payloadPath(key store.Key, checksum uint64) string {
	shardDir := fmt.Sprintf("%03d", s.strategy.ShardID(key, s.totalShards))
	return filepath.Join(s.kindDir(key.Kind), shardDir, s.payloadName(key, checksum))
}

// payloadName returns the filename for a payload, e.g. 002-255-en.sahih-<checksum>.zst.
func (s *Store) payloadName(key store.Key, checksum uint64) string {
	name := fmt.Sprintf("%03d-%03d-%s-%016x", key.Surah, key.Ayah, key.Variant, checksum)
	if ext := s.codec.Extension(); ext != "" {
		name += "." + ext
	}
	return name
}

// parsePayloadName is the inverse of payloadName.
func (s *Store) parsePayloadName(kind store.Kind, name string) (store.Key, uint64, bool) {
	if ext := s.codec.Extension(); ext != "" {
		var ok bool
		if name, ok = strings.CutSuffix(name, "."+ext); !ok {
			return store.Key{}, 0, false
		}
	}
	if len(name) < 8+1+16 || name[3] != '-' || name[7] != '-' {
		return store.Key{}, 0, false
	}
	surah, err1 := strconv.Atoi(name[:3])
	ayah, err2 := strconv.Atoi(name[4:7])
	rest := name[8:]
	i := strings.LastIndexByte(rest, '-')
	if err1 != nil || err2 != nil || i < 0 {
		return store.Key{}, 0, false
	}
	checksum, err := strconv.ParseUint(rest[i+1:], 16, 64)
	if err != nil {
		return store.Key{}, 0, false
	}

	key := store.Key{Kind: kind, Surah: surah, Ayah: ayah, Variant: rest[:i]}
	if key.Validate() != nil {
		return store.Key{}, 0, false
	}
	return key, checksum, true
}

// writePayload compresses data into a temp file and renames it into place.
func (s *Store) writePayload(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", mapWriteErr(err))
	}

	compressed, err := codec.Encode(s.codec, data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", mapWriteErr(err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing payload: %w", mapWriteErr(err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing payload: %w", mapWriteErr(err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing payload: %w", mapWriteErr(err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming payload: %w", err)
	}
	return nil
}

// readPayload reads and decompresses a payload file.
// Decompression failures are reported as corruption.
func (s *Store) readPayload(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := codec.Decode(s.codec, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}
	return data, nil
}

// removeTrash deletes directories left behind by an interrupted Clear.
func (s *Store) removeTrash() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), trashPrefix) {
			_ = os.RemoveAll(filepath.Join(s.root, e.Name()))
		}
	}
}

// mapWriteErr converts out-of-space errors to store.ErrStorageFull.
func mapWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", store.ErrStorageFull, err)
	}
	return err
}
