package diskstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tartil-app/offlinecache/internal/store"
)

type payloadFile struct {
	path     string
	key      store.Key
	checksum uint64
}

// walkPayloads lists every well-named payload file. Names that do not parse
// are counted but not returned. Temp files are skipped, and removed when
// cleanTemp is set (only safe while no write can be in flight).
func (s *Store) walkPayloads(ctx context.Context, cleanTemp bool) ([]payloadFile, int, error) {
	var files []payloadFile
	var unparsed int

	for _, kind := range store.Kinds {
		err := filepath.WalkDir(s.kindDir(kind), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".tmp-") {
				if cleanTemp {
					_ = os.Remove(path)
				}
				return nil
			}
			key, checksum, ok := s.parsePayloadName(kind, d.Name())
			if !ok {
				unparsed++
				return nil
			}
			files = append(files, payloadFile{path: path, key: key, checksum: checksum})
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
	}
	return files, unparsed, nil
}

// rebuildIndex reconstructs accounting by reading every payload file.
// Files whose content does not match the checksum in their name are left
// out of the index.
func (s *Store) rebuildIndex(ctx context.Context) (*index, error) {
	files, _, err := s.walkPayloads(ctx, true)
	if err != nil {
		return nil, err
	}

	ix := newIndex()
	for _, f := range files {
		if _, dup := ix.entries[f.key]; dup {
			continue
		}
		data, err := s.readPayload(f.path)
		if err != nil {
			if errors.Is(err, store.ErrCorrupt) {
				continue
			}
			return nil, err
		}
		if store.Checksum(data) != f.checksum {
			continue
		}
		ix.apply(store.Info{Key: f.key, Size: int64(len(data)), Checksum: f.checksum})
	}
	return ix, nil
}

// Scrub reads every indexed payload and verifies it, and counts payload
// files that the index does not reference. Mutations wait until it finishes.
func (s *Store) Scrub(ctx context.Context) (store.ScrubReport, error) {
	var report store.ScrubReport

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	infos := make([]store.Info, 0, len(s.idx.entries))
	for _, info := range s.idx.entries {
		infos = append(infos, info)
	}
	s.mu.RUnlock()

	referenced := make(map[string]bool, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		path := s.payloadPath(info.Key, info.Checksum)
		referenced[path] = true
		report.Checked++

		data, err := s.readPayload(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			report.Missing = append(report.Missing, info.Key)
		case errors.Is(err, store.ErrCorrupt):
			report.Corrupt = append(report.Corrupt, info.Key)
		case err != nil:
			return report, err
		case int64(len(data)) != info.Size || store.Checksum(data) != info.Checksum:
			report.Corrupt = append(report.Corrupt, info.Key)
		}
	}

	files, unparsed, err := s.walkPayloads(ctx, false)
	if err != nil {
		return report, err
	}
	report.Orphans = unparsed
	for _, f := range files {
		if !referenced[f.path] {
			report.Orphans++
		}
	}
	return report, nil
}
