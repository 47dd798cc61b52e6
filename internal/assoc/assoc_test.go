package assoc_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/CZERTAINLY/Opener/internal/assoc"
	"github.com/CZERTAINLY/Opener/internal/model"
	"github.com/stretchr/testify/require"
)

const flacTOML = `
[associations]
"audio/flac" = "mpv {file}"
"^audio/" = "xdg-open {file}"
`

type staticResolver struct {
	mime string
	err  error
}

func (r staticResolver) Resolve(_ context.Context, _ string) (string, error) {
	return r.mime, r.err
}

func load(t *testing.T, doc string, opts ...assoc.Option) *assoc.Table {
	t.Helper()
	table, err := assoc.Load(t.Context(), strings.NewReader(doc), opts...)
	require.NoError(t, err)
	return table
}

func TestLookup(t *testing.T) {
	t.Parallel()
	table := load(t, flacTOML)

	var testCases = []struct {
		scenario string
		given    string
		then     string
		err      error
	}{
		{"pattern", "audio/wav", "xdg-open {file}", nil},
		{"exact wins over pattern", "audio/flac", "mpv {file}", nil},
		{"pattern is anchored", "myaudio/flac", "", model.ErrNoAssociation},
		{"no association", "x/y", "", model.ErrNoAssociation},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			cmd, err := table.Lookup(tt.given)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				require.Empty(t, cmd)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.then, cmd)
		})
	}
}

func TestLookup_PrefixNotFullMatch(t *testing.T) {
	t.Parallel()
	table := load(t, `
[associations]
"audio" = "mpv {file}"
`)
	cmd, err := table.Lookup("audio/ogg")
	require.NoError(t, err)
	require.Equal(t, "mpv {file}", cmd)
}

func TestLookup_DeclarationOrder(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		doc  string
		then string
	}{
		{"[associations]\n\"^video/\" = \"first {file}\"\n\"^video/mp\" = \"second {file}\"\n", "first {file}"},
		{"[associations]\n\"^video/mp\" = \"second {file}\"\n\"^video/\" = \"first {file}\"\n", "second {file}"},
	} {
		table := load(t, tt.doc)
		cmd, err := table.Lookup("video/mp4")
		require.NoError(t, err)
		require.Equal(t, tt.then, cmd)
	}
}

func TestLookup_Idempotent(t *testing.T) {
	t.Parallel()
	table := load(t, flacTOML)

	for _, mime := range []string{"audio/wav", "audio/flac", "x/y"} {
		cmd1, err1 := table.Lookup(mime)
		cmd2, err2 := table.Lookup(mime)
		require.Equal(t, cmd1, cmd2)
		require.Equal(t, err1, err2)
	}
	info := table.CacheInfo()
	require.Equal(t, int64(3), info.Misses)
	require.Equal(t, int64(3), info.Hits)
	require.Equal(t, 3, info.Size)
}

func TestLookup_InvalidPatternIsExactOnly(t *testing.T) {
	t.Parallel()
	table := load(t, `
[associations]
"text/x-c++src" = "vim {file}"
"^text/" = "less {file}"
`)
	cmd, err := table.Lookup("text/x-c++src")
	require.NoError(t, err)
	require.Equal(t, "vim {file}", cmd)

	cmd, err = table.Lookup("text/x-c")
	require.NoError(t, err)
	require.Equal(t, "less {file}", cmd)
}

func TestLookup_Concurrent(t *testing.T) {
	t.Parallel()
	table := load(t, flacTOML)

	const n = 64
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Go(func() {
			results[i], errs[i] = table.Lookup("audio/ogg")
		})
	}
	wg.Wait()
	for i := range n {
		require.NoError(t, errs[i])
		require.Equal(t, "xdg-open {file}", results[i])
	}
	info := table.CacheInfo()
	require.Equal(t, int64(1), info.Misses)
	require.Equal(t, int64(n-1), info.Hits)
}

func TestLookup_BoundedCache(t *testing.T) {
	t.Parallel()
	table := load(t, flacTOML, assoc.WithCacheSize(2))

	for i := range 10 {
		cmd, err := table.Lookup(fmt.Sprintf("audio/x-%d", i))
		require.NoError(t, err)
		require.Equal(t, "xdg-open {file}", cmd)
	}
	require.Equal(t, 2, table.CacheInfo().Size)

	cmd, err := table.Lookup("audio/flac")
	require.NoError(t, err)
	require.Equal(t, "mpv {file}", cmd)
}

func TestLoad_Fail(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		doc      string
	}{
		{"syntax", "[associations\n"},
		{"no table", "[other]\nkey = \"value\"\n"},
		{"empty document", ""},
		{"not a string", "[associations]\n\"audio/flac\" = 42\n"},
		{"nested table", "[associations.audio]\nflac = \"mpv {file}\"\n"},
		{"empty command", "[associations]\n\"audio/flac\" = \"\"\n"},
		{"empty key", "[associations]\n\"\" = \"mpv {file}\"\n"},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := assoc.Load(t.Context(), strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}

	_, err := assoc.Load(t.Context(), strings.NewReader(flacTOML), assoc.WithCacheSize(-1))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "assoc.toml")
	require.NoError(t, os.WriteFile(path, []byte(flacTOML), 0o644))

	table, err := assoc.LoadFile(t.Context(), path)
	require.NoError(t, err)
	require.Equal(t, []assoc.Entry{
		{Key: "audio/flac", Command: "mpv {file}"},
		{Key: "^audio/", Command: "xdg-open {file}"},
	}, table.Entries())

	_, err = assoc.LoadFile(t.Context(), filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLookupFile(t *testing.T) {
	t.Parallel()
	table := load(t, flacTOML)

	m, err := table.LookupFile(t.Context(), staticResolver{mime: "audio/flac"}, "/music/a.flac")
	require.NoError(t, err)
	require.Equal(t, assoc.Match{
		Path:    "/music/a.flac",
		Mime:    "audio/flac",
		Key:     "audio/flac",
		Command: "mpv {file}",
	}, m)

	m, err = table.LookupFile(t.Context(), staticResolver{mime: model.MimeOctetStream}, "/bin/blob")
	require.ErrorIs(t, err, model.ErrNoAssociation)
	require.Equal(t, model.MimeOctetStream, m.Mime)

	_, err = table.LookupFile(t.Context(), staticResolver{err: model.ErrUnreadable}, "/root/secret")
	require.ErrorIs(t, err, model.ErrUnreadable)
}

func TestEncode(t *testing.T) {
	t.Parallel()
	entries := append(assoc.Default(), assoc.Entry{Key: `text/"quoted"`, Command: `sh -c 'echo "{file}"'`})

	var buf bytes.Buffer
	require.NoError(t, assoc.Encode(&buf, entries))

	table := load(t, buf.String())
	require.Equal(t, entries, table.Entries())
}

func TestDefault(t *testing.T) {
	t.Parallel()
	table, err := assoc.New(t.Context(), assoc.Default())
	require.NoError(t, err)

	for mime, then := range map[string]string{
		"audio/flac":                   "mpv {file}",
		"audio/mpeg":                   "mpv {file}",
		"video/mp4":                    "mpv {file}",
		"text/plain":                   "xdg-open {file}",
		"application/x-executable":     "{file}",
		"application/x-pie-executable": "{file}",
	} {
		cmd, err := table.Lookup(mime)
		require.NoError(t, err, mime)
		require.Equal(t, then, cmd, mime)
	}

	for _, mime := range []string{model.MimeOctetStream, "inode/x-empty"} {
		_, err := table.Lookup(mime)
		require.ErrorIs(t, err, model.ErrNoAssociation, mime)
	}
}

func TestRandom(t *testing.T) {
	t.Parallel()
	entries := assoc.Random(100)
	table, err := assoc.New(t.Context(), entries)
	require.NoError(t, err)
	require.Equal(t, 100, table.Len())

	cmd, err := table.Lookup(entries[42].Key)
	require.NoError(t, err)
	require.Equal(t, entries[42].Command, cmd)
	require.Contains(t, cmd, "{file}")
}

func BenchmarkLookup(b *testing.B) {
	table, err := assoc.New(b.Context(), assoc.Random(1000))
	require.NoError(b, err)
	for b.Loop() {
		_, _ = table.Lookup("audio/flac")
	}
}
