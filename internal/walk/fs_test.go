package walk_test

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/CZERTAINLY/Opener/internal/walk"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a.txt":          {Data: []byte("a")},
		"music/b.flac":   {Data: []byte("fLaC")},
		"proc/1/status":  {Data: []byte("skipped")},
		"deep/x/y/z.pdf": {Data: []byte("%PDF-")},
		"link":           {Data: []byte("a.txt"), Mode: os.ModeSymlink},
	}

	var paths []string
	for entry, err := range walk.FS(t.Context(), fsys, "/root", "/root/proc") {
		require.NoError(t, err)
		paths = append(paths, entry.Path())
	}
	slices.Sort(paths)
	require.Equal(t, []string{
		"/root/a.txt",
		"/root/deep/x/y/z.pdf",
		"/root/music/b.flac",
	}, paths)
}

func TestFS_Break(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"a": {Data: []byte("a")},
		"b": {Data: []byte("b")},
		"c": {Data: []byte("c")},
	}
	var n int
	for range walk.FS(t.Context(), fsys, "x") {
		n++
		break
	}
	require.Equal(t, 1, n)
}

func TestPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "skip", "me"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip", "me", "x.txt"), []byte("x"), 0o644))

	missing := filepath.Join(dir, "missing")
	var paths []string
	var errs int
	for entry, err := range walk.Paths(t.Context(), []string{filepath.Join(dir, "skip")}, dir, missing) {
		if err != nil {
			require.Equal(t, missing, entry.Path())
			errs++
			continue
		}
		paths = append(paths, entry.Path())

		info, err := entry.Stat()
		require.NoError(t, err)
		require.Equal(t, int64(5), info.Size())

		f, err := entry.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		require.Equal(t, "hello", string(b))
	}
	require.Equal(t, []string{filepath.Join(dir, "hello.txt")}, paths)
	require.Equal(t, 1, errs)
}
