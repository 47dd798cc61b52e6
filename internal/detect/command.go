package detect

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/CZERTAINLY/Opener/internal/model"
)

// Command asks an external libmagic style program, `file --brief --mime-type`
// by default. The file path is appended as the last argument and the first
// line of stdout is the answer.
type Command struct {
	binary  string
	args    []string
	timeout time.Duration

	once    sync.Once
	path    string
	lookErr error
}

func NewCommand(binary string, timeout time.Duration, args ...string) *Command {
	return &Command{
		binary:  binary,
		args:    slices.Clone(args),
		timeout: timeout,
	}
}

func (c *Command) TryDetect(ctx context.Context, path string) (string, error) {
	c.once.Do(func() {
		c.path, c.lookErr = exec.LookPath(c.binary)
		if c.lookErr != nil {
			slog.WarnContext(ctx, "command detector disabled", "binary", c.binary, "error", c.lookErr)
		}
	})
	if c.lookErr != nil {
		return "", model.ErrNoMatch
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// a path starting with - is not an option
	args := append(slices.Clone(c.args), "--", path)
	out, err := exec.CommandContext(ctx, c.path, args...).Output()
	if err != nil {
		return "", fmt.Errorf("running %s: %w", c.binary, err)
	}

	line, _, _ := strings.Cut(string(out), "\n")
	mime := essence(line)
	if mime == "" || mime == model.MimeOctetStream || !strings.Contains(mime, "/") {
		return "", model.ErrNoMatch
	}
	return mime, nil
}

func (c *Command) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("detector", model.DetectorCommand),
		slog.String("binary", c.binary),
	}
}
