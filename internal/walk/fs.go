package walk

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Entry is a regular file found by a walk.
type Entry interface {
	Path() string
	Open() (io.ReadCloser, error)
	Stat() (fs.FileInfo, error)
}

// Paths opens every path as an os.Root and walks them in order. Paths which
// can't be opened are yielded as an error. See FS for details.
func Paths(ctx context.Context, skip []string, paths ...string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, path := range paths {
			root, err := os.OpenRoot(path)
			if err != nil {
				if !yield(fsEntry{abspath: path, infoErr: err}, err) {
					return
				}
				continue
			}
			for entry, err := range Roots(ctx, skip, root) {
				if !yield(entry, err) {
					_ = root.Close()
					return
				}
			}
			_ = root.Close()
		}
	}
}

// Roots is a convenience wrapper around FS for os.Root. See FS for details.
func Roots(ctx context.Context, skip []string, roots ...*os.Root) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, root := range roots {
			for entry, err := range FS(ctx, root.FS(), root.Name(), skip...) {
				if !yield(entry, err) {
					return
				}
			}
		}
	}
}

// FS recursively walks the filesystem rooted at root and return a handle for every regular file found.
// Or an error if file information retrieval fails.
// Each Entry's Path() is prefixed with name of a filesystem. In most cases it'll be an absolute
// path to the file. It does not follow symlinks.
// Directories whose prefixed path is in skip or below it are not entered.
func FS(ctx context.Context, root fs.FS, name string, skip ...string) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(Entry, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			var entry = fsEntry{
				root:    root,
				abspath: filepath.Join(name, path),
				path:    path,
			}
			if err == nil && d.IsDir() {
				if path != "." && skipped(entry.abspath, skip) {
					slog.DebugContext(ctx, "skipping directory", "path", entry.abspath)
					return fs.SkipDir
				}
				return nil
			}

			var yieldErr error
			if err != nil {
				yieldErr = err
				entry.infoErr = err
			} else {
				info, err := d.Info()
				if err != nil {
					entry.infoErr = err
					yieldErr = err
				} else {
					if !info.Mode().IsRegular() {
						return nil
					}
					entry.info = info
				}
			}

			if !yield(entry, yieldErr) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

func skipped(path string, skip []string) bool {
	for _, s := range skip {
		s = filepath.Clean(s)
		if path == s || strings.HasPrefix(path, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// fsEntry implements Entry for a filesystem
// it uses root.Open to open the file
type fsEntry struct {
	root    fs.FS
	abspath string
	path    string
	info    fs.FileInfo
	infoErr error
}

// returns the absolute path to the file
func (e fsEntry) Path() string {
	return e.abspath
}

func (e fsEntry) Open() (io.ReadCloser, error) {
	if e.infoErr != nil {
		return nil, e.infoErr
	}
	return e.root.Open(e.path)
}

func (e fsEntry) Stat() (fs.FileInfo, error) {
	return e.info, e.infoErr
}
