// Package assoc maps mime types to the command templates used to open them.
//
// The associations are stored in a TOML document with a single table:
//
//	[associations]
//	"audio/flac" = "mpv {file}"
//	"^audio/" = "xdg-open {file}"
//
// A key is either an exact mime type or a regular expression. Lookup tries
// the exact key first, then every key as a pattern anchored at the start of
// the mime type, in the order they are declared in the document.
package assoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/CZERTAINLY/Opener/internal/model"
	"golang.org/x/sync/singleflight"
)

const tableName = "associations"

// Entry is one association as declared in the document.
type Entry struct {
	Key     string
	Command string
}

// Match is the result of a file lookup.
type Match struct {
	Path    string
	Mime    string
	Key     string // key of the entry which matched
	Command string
}

// Resolver returns the mime type of a file, see detect.Chain.
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

type CacheInfo struct {
	Hits   int64
	Misses int64
	Size   int
}

type pattern struct {
	re    *regexp.Regexp
	entry Entry
}

// Table is immutable after creation and safe for concurrent use.
type Table struct {
	entries  []Entry
	exact    map[string]Entry
	patterns []pattern

	cache  cache
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize bounds the lookup cache to n mime types using LRU eviction.
// Zero, the default, keeps every result for the lifetime of the Table.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// New builds a Table from entries in declaration order.
func New(ctx context.Context, entries []Entry, opts ...Option) (*Table, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c, err := newCache(o.cacheSize)
	if err != nil {
		return nil, err
	}

	t := &Table{
		entries:  make([]Entry, 0, len(entries)),
		exact:    make(map[string]Entry, len(entries)),
		patterns: make([]pattern, 0, len(entries)),
		cache:    c,
	}
	for _, e := range entries {
		if e.Key == "" {
			return nil, errors.New("association with an empty key")
		}
		if e.Command == "" {
			return nil, fmt.Errorf("association %q: empty command", e.Key)
		}
		if _, ok := t.exact[e.Key]; ok {
			return nil, fmt.Errorf("association %q: duplicate key", e.Key)
		}
		t.entries = append(t.entries, e)
		t.exact[e.Key] = e

		re, err := regexp.Compile("^(?:" + e.Key + ")")
		if err != nil {
			slog.DebugContext(ctx, "association key is not a valid pattern: exact match only", "key", e.Key, "error", err)
			continue
		}
		t.patterns = append(t.patterns, pattern{re: re, entry: e})
	}
	return t, nil
}

// Load parses the TOML document from r. It fails on any syntax error, a missing
// associations table, or a value which is not a non-empty string.
func Load(ctx context.Context, r io.Reader, opts ...Option) (*Table, error) {
	var doc struct {
		Associations map[string]string `toml:"associations"`
	}
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("parsing associations: %w", err)
	}
	if !md.IsDefined(tableName) {
		return nil, fmt.Errorf("parsing associations: table [%s] not found", tableName)
	}
	for _, key := range md.Undecoded() {
		slog.WarnContext(ctx, "unknown key in associations file: ignoring", "key", key.String())
	}

	// map iteration is random, metadata keeps the declaration order
	entries := make([]Entry, 0, len(doc.Associations))
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != tableName {
			continue
		}
		entries = append(entries, Entry{Key: key[1], Command: doc.Associations[key[1]]})
	}
	return New(ctx, entries, opts...)
}

func LoadFile(ctx context.Context, path string, opts ...Option) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening associations: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	t, err := Load(ctx, f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Entries returns the associations in declaration order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the command template for mime, or an error wrapping
// model.ErrNoAssociation. Results are cached per mime type.
func (t *Table) Lookup(mime string) (string, error) {
	e, err := t.Match(mime)
	return e.Command, err
}

// Match is Lookup returning the whole matching entry.
func (t *Table) Match(mime string) (Entry, error) {
	if r, ok := t.cache.Get(mime); ok {
		t.hits.Add(1)
		return r.entry, r.err
	}

	// concurrent misses of the same mime type compute it once
	var computed bool
	v, _, _ := t.group.Do(mime, func() (any, error) {
		if r, ok := t.cache.Get(mime); ok {
			return r, nil
		}
		computed = true
		t.misses.Add(1)
		r := t.match(mime)
		t.cache.Add(mime, r)
		return r, nil
	})
	if !computed {
		t.hits.Add(1)
	}
	r := v.(result)
	return r.entry, r.err
}

func (t *Table) match(mime string) result {
	if e, ok := t.exact[mime]; ok {
		return result{entry: e}
	}
	for _, p := range t.patterns {
		if p.re.MatchString(mime) {
			return result{entry: p.entry}
		}
	}
	return result{err: fmt.Errorf("%w: %s", model.ErrNoAssociation, mime)}
}

// LookupFile resolves the mime type of path and looks it up. Unlike Lookup
// the result is not cached per file.
func (t *Table) LookupFile(ctx context.Context, resolver Resolver, path string) (Match, error) {
	mime, err := resolver.Resolve(ctx, path)
	if err != nil {
		return Match{Path: path}, err
	}
	e, err := t.Match(mime)
	m := Match{
		Path:    path,
		Mime:    mime,
		Key:     e.Key,
		Command: e.Command,
	}
	return m, err
}

func (t *Table) CacheInfo() CacheInfo {
	return CacheInfo{
		Hits:   t.hits.Load(),
		Misses: t.misses.Load(),
		Size:   t.cache.Len(),
	}
}
