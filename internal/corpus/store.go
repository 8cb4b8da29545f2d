package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Store loads reference documents from the direct entries of a root directory.
type Store struct {
	root    string
	readers []FileReader
}

// NewStore creates a store for root. Without readers it uses DefaultReaders.
func NewStore(root string, readers ...FileReader) *Store {
	if len(readers) == 0 {
		readers = DefaultReaders()
	}
	return &Store{
		root:    root,
		readers: readers,
	}
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Init creates the root directory if it does not exist. Safe to call repeatedly.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create corpus root %s: %w: %w", s.root, ErrStorageUnavailable, err)
	}

	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("failed to stat corpus root %s: %w: %w", s.root, ErrStorageUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus root %s is not a directory: %w", s.root, ErrStorageUnavailable)
	}

	log.Debug().Str("root", s.root).Msg("Corpus root ready")
	return nil
}

// Load reads every regular file under the root into a Corpus. Files that
// cannot be read are skipped; only an unusable root is reported as an error.
func (s *Store) Load(ctx context.Context) (Corpus, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus root %s: %w: %w", s.root, ErrStorageUnavailable, err)
	}

	docs := make(Corpus, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.root, entry.Name())
		if !isRegular(path, entry) {
			continue
		}

		text, err := s.readFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable corpus file")
			continue
		}

		docs = append(docs, Document{
			ID:   entry.Name(),
			Text: text,
		})
	}

	log.Debug().
		Str("root", s.root).
		Int("documents", len(docs)).
		Msg("Corpus loaded")
	log.Trace().Strs("ids", docs.IDs()).Msg("Corpus entries")

	return docs, nil
}

func (s *Store) readFile(path string) (string, error) {
	for _, r := range s.readers {
		if r.CanRead(path) {
			return r.ReadText(path)
		}
	}
	return "", fmt.Errorf("no reader for %s", filepath.Base(path))
}

// isRegular reports whether entry is a regular file, following symlinks.
func isRegular(path string, entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
