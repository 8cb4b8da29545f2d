package corpus

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// changeToken summarises the state of the storage root. Any write, rename,
// add or removal of a direct entry changes at least one field.
type changeToken struct {
	rootModTime int64
	entries     int
	totalSize   int64
	latestMod   int64
}

// Cache keeps the last loaded corpus and reloads it only when the storage
// root changed. The returned Corpus is shared and must not be modified.
type Cache struct {
	store *Store

	mu     sync.Mutex
	corpus Corpus
	token  changeToken
	valid  bool
}

// NewCache wraps store with a change-token cache.
func NewCache(store *Store) *Cache {
	return &Cache{store: store}
}

// Load returns the cached corpus, reloading it from the store when stale.
func (c *Cache) Load(ctx context.Context) (Corpus, error) {
	token, err := c.currentToken()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.token == token {
		return c.corpus, nil
	}

	docs, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	c.corpus = docs
	c.token = token
	c.valid = true

	log.Debug().
		Str("root", c.store.Root()).
		Int("documents", len(docs)).
		Msg("Corpus cache refreshed")

	return docs, nil
}

// Invalidate forces the next Load to read from storage.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Watch invalidates the cache on filesystem events under the root until ctx is done.
func (c *Cache) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.store.Root()); err != nil {
		return fmt.Errorf("failed to watch corpus root %s: %w", c.store.Root(), err)
	}

	log.Info().Str("root", c.store.Root()).Msg("Watching corpus root for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			log.Trace().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Corpus change detected")
			c.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Corpus watcher error")
			c.Invalidate()
		}
	}
}

func (c *Cache) currentToken() (changeToken, error) {
	root := c.store.Root()

	rootInfo, err := os.Stat(root)
	if err != nil {
		return changeToken{}, fmt.Errorf("failed to stat corpus root %s: %w: %w", root, ErrStorageUnavailable, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return changeToken{}, fmt.Errorf("failed to read corpus root %s: %w: %w", root, ErrStorageUnavailable, err)
	}

	token := changeToken{
		rootModTime: rootInfo.ModTime().UnixNano(),
		entries:     len(entries),
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		token.totalSize += info.Size()
		if mod := info.ModTime().UnixNano(); mod > token.latestMod {
			token.latestMod = mod
		}
	}

	return token, nil
}
