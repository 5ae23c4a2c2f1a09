package diskstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tartil-app/offlinecache/internal/store"
)

const (
	indexFilename = "index.json"
	indexVersion  = 1
)

// indexFile is the persisted form of the store's accounting.
// It lets a reopened store report sizes without rescanning payloads.
type indexFile struct {
	Version     int          `json:"version"`
	Codec       string       `json:"codec"`
	Strategy    string       `json:"strategy"`
	TotalShards int          `json:"total_shards"`
	Verses      int          `json:"verses"`
	Audio       int          `json:"audio"`
	TotalSize   int64        `json:"total_size"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Entries     []indexEntry `json:"entries"`
}

type indexEntry struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Checksum uint64 `json:"checksum"`
}

// index is the in-memory accounting guarded by Store.mu.
type index struct {
	entries map[store.Key]store.Info
	counts  map[store.Kind]int
	total   int64
}

func newIndex() *index {
	return &index{
		entries: make(map[store.Key]store.Info),
		counts:  make(map[store.Kind]int),
	}
}

// apply records info under its key and returns the resulting delta.
func (ix *index) apply(info store.Info) store.Delta {
	delta := store.Delta{Bytes: info.Size}
	if old, ok := ix.entries[info.Key]; ok {
		delta.Bytes -= old.Size
	} else {
		delta.Entries = 1
	}
	ix.entries[info.Key] = info
	ix.counts[info.Key.Kind] += delta.Entries
	ix.total += delta.Bytes
	return delta
}

// remove drops key and returns the resulting delta.
func (ix *index) remove(key store.Key) (store.Info, store.Delta, bool) {
	old, ok := ix.entries[key]
	if !ok {
		return store.Info{}, store.Delta{}, false
	}
	delete(ix.entries, key)
	ix.counts[key.Kind]--
	ix.total -= old.Size
	return old, store.Delta{Entries: -1, Bytes: -old.Size}, true
}

// restore undoes a mutation of key, putting prev back (or removing the key
// when had is false).
func (ix *index) restore(key store.Key, prev store.Info, had bool) {
	ix.remove(key)
	if had {
		ix.apply(prev)
	}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, indexFilename)
}

// snapshotIndex renders the in-memory index. Caller holds s.mu.
func (s *Store) snapshotIndex() indexFile {
	f := indexFile{
		Version:     indexVersion,
		Codec:       s.codec.Name(),
		Strategy:    s.strategy.Name(),
		TotalShards: s.totalShards,
		Verses:      s.idx.counts[store.KindVerse],
		Audio:       s.idx.counts[store.KindAudio],
		TotalSize:   s.idx.total,
		UpdatedAt:   time.Now().UTC(),
		Entries:     make([]indexEntry, 0, len(s.idx.entries)),
	}
	for k, info := range s.idx.entries {
		f.Entries = append(f.Entries, indexEntry{Key: k.String(), Size: info.Size, Checksum: info.Checksum})
	}
	return f
}

// writeIndex persists f atomically (temp file, then rename).
func (s *Store) writeIndex(f indexFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing index: %w", mapWriteErr(err))
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// persist snapshots and writes the index.
// Caller holds s.writeMu so snapshots are written in mutation order.
func (s *Store) persist() error {
	s.mu.RLock()
	f := s.snapshotIndex()
	s.mu.RUnlock()
	return s.writeIndex(f)
}

// loadIndex reads index.json. It returns os.ErrNotExist if there is none.
func (s *Store) loadIndex() (*index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, err
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	if f.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", f.Version)
	}
	if f.Codec != s.codec.Name() {
		return nil, fmt.Errorf("index codec %q does not match store codec %q", f.Codec, s.codec.Name())
	}
	if f.Strategy != s.strategy.Name() || f.TotalShards != s.totalShards {
		return nil, fmt.Errorf("index layout %s/%d does not match store layout %s/%d",
			f.Strategy, f.TotalShards, s.strategy.Name(), s.totalShards)
	}

	ix := newIndex()
	for _, e := range f.Entries {
		key, err := store.ParseKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("index entry %q: %w", e.Key, err)
		}
		ix.apply(store.Info{Key: key, Size: e.Size, Checksum: e.Checksum})
	}
	if ix.total != f.TotalSize || ix.counts[store.KindVerse] != f.Verses || ix.counts[store.KindAudio] != f.Audio {
		return nil, errors.New("index totals do not match its entries")
	}
	return ix, nil
}
