package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Cache_ReusesUntilChanged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("alpha"))

	c := NewCache(NewStore(dir))
	ctx := context.Background()

	first, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, &first[0], &second[0])

	writeFile(t, dir, "b.txt", []byte("beta"))

	third, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, third.IDs())
}

func Test_Cache_Invalidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("alpha"))

	c := NewCache(NewStore(dir))
	ctx := context.Background()

	first, err := c.Load(ctx)
	require.NoError(t, err)

	c.Invalidate()

	second, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotSame(t, &first[0], &second[0])
}

func Test_Cache_MissingRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "corpus")
	require.NoError(t, os.Mkdir(root, 0o755))

	c := NewCache(NewStore(root))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(root))

	_, err = c.Load(context.Background())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func Test_Cache_Watch_Invalidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, dir, "a.txt", []byte("alpha"))

	fileInfo, err := os.Stat(path)
	require.NoError(t, err)
	rootInfo, err := os.Stat(dir)
	require.NoError(t, err)

	// same size rewrite with both mtimes put back leaves the change token as it was
	rewrite := func() error {
		if err := os.WriteFile(path, []byte("omega"), 0o644); err != nil {
			return err
		}
		if err := os.Chtimes(path, fileInfo.ModTime(), fileInfo.ModTime()); err != nil {
			return err
		}
		return os.Chtimes(dir, rootInfo.ModTime(), rootInfo.ModTime())
	}

	c := NewCache(NewStore(dir))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := c.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "alpha", first[0].Text)

	require.NoError(t, rewrite())
	stale, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", stale[0].Text)

	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx)
	}()

	assert.Eventually(t, func() bool {
		if err := rewrite(); err != nil {
			return false
		}
		docs, err := c.Load(ctx)
		return err == nil && len(docs) == 1 && docs[0].Text == "omega"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func Test_Cache_Watch_MissingRoot(t *testing.T) {
	c := NewCache(NewStore(filepath.Join(t.TempDir(), "missing")))
	assert.Error(t, c.Watch(context.Background()))
}
