package assoc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Default returns the associations written on the first run.
func Default() []Entry {
	return []Entry{
		{Key: "audio/flac", Command: "mpv {file}"},
		{Key: "^audio/", Command: "mpv {file}"},
		{Key: "^video/", Command: "mpv {file}"},
		{Key: "^image/", Command: "xdg-open {file}"},
		{Key: "application/pdf", Command: "xdg-open {file}"},
		{Key: "^text/", Command: "xdg-open {file}"},
		{Key: "application/x-(pie-)?executable", Command: "{file}"},
	}
}

// Random returns n associations with random keys and commands, useful
// for measuring lookups over big tables.
func Random(n int) []Entry {
	hex := func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	ret := make([]Entry, n)
	for i := range ret {
		ret[i] = Entry{Key: hex(), Command: hex() + " {file}"}
	}
	return ret
}

// Encode writes entries as a TOML associations document keeping their order.
func Encode(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "[%s]\n", tableName); err != nil {
		return err
	}
	enc := toml.NewEncoder(bw)
	for _, e := range entries {
		// one key at a time, the encoder sorts map keys
		if err := enc.Encode(map[string]string{e.Key: e.Command}); err != nil {
			return fmt.Errorf("encoding association %q: %w", e.Key, err)
		}
	}
	return bw.Flush()
}
