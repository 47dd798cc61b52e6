package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/CZERTAINLY/Opener/internal/model"
)

const placeholder = "{file}"

// LaunchError is returned when a command could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{model.ErrLaunch, e.Err}
}

// Launcher runs command templates through a shell.
type Launcher struct {
	shell  string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	mx    sync.RWMutex
	paths map[string]string
}

type Option func(*Launcher)

// WithStdio sets the standard streams of foreground commands.
// os.Stdin, os.Stdout and os.Stderr are used by default.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.stdin, l.stdout, l.stderr = stdin, stdout, stderr
	}
}

func New(shell string, opts ...Option) *Launcher {
	l := &Launcher{
		shell:  shell,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		paths:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run substitutes file into template and executes the result with the shell.
// A foreground command blocks until it exits, its exit code is not reported
// unless the shell could not execute the program (126, 127). A background
// command is detached from the caller and Run returns once it started.
func (l *Launcher) Run(ctx context.Context, template, file string, foreground bool) error {
	line := Format(template, file)
	if !strings.Contains(template, placeholder) {
		slog.DebugContext(ctx, "command template has no placeholder", "template", template)
	}

	if err := l.checkProgram(template, file); err != nil {
		return &LaunchError{Command: line, Err: err}
	}

	slog.InfoContext(ctx, "launching", "file", file, "command", line, "foreground", foreground)
	if foreground {
		return l.runForeground(ctx, line)
	}
	return l.runBackground(ctx, line)
}

func (l *Launcher) runForeground(ctx context.Context, line string) error {
	cmd := exec.CommandContext(ctx, l.shell, "-c", line)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &LaunchError{Command: line, Err: err}
	}
	switch code := exitErr.ExitCode(); code {
	case 126, 127:
		return &LaunchError{Command: line, Err: fmt.Errorf("shell exit code %d: %w", code, err)}
	default:
		slog.DebugContext(ctx, "command finished", "command", line, "exit_code", code)
		return nil
	}
}

func (l *Launcher) runBackground(ctx context.Context, line string) error {
	// not bound to ctx, the child outlives the caller
	cmd := exec.Command(l.shell, "-c", line)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return &LaunchError{Command: line, Err: err}
	}
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		slog.DebugContext(ctx, "background command finished", "pid", pid, "error", err)
	}()
	return nil
}

// checkProgram makes sure the program the template starts with exists, so
// a typo in the associations file is reported before the shell swallows it.
// Templates starting with shell syntax are left to the shell.
func (l *Launcher) checkProgram(template, file string) error {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return errors.New("empty command")
	}
	prog := fields[0]
	switch {
	case prog == placeholder:
		prog = file
	case strings.ContainsAny(prog, "{}$=\"'`;|&<>()\\"):
		return nil
	}

	l.mx.RLock()
	_, ok := l.paths[prog]
	l.mx.RUnlock()
	if ok {
		return nil
	}

	path, err := exec.LookPath(prog)
	if err != nil {
		return err
	}
	// the file itself is not cached, it may change between runs
	if prog != file {
		l.mx.Lock()
		l.paths[prog] = path
		l.mx.Unlock()
	}
	return nil
}

// Format replaces every {file} in template with the file path. A bare
// placeholder gets the shell quoted path. Inside '...' or "..." the path is
// inserted so that it stays one word of that quoted string.
// {{ and }} stand for literal braces.
func Format(template, file string) string {
	var sb strings.Builder
	sb.Grow(len(template) + len(file))
	var quote byte // 0, '\'' or '"'
	for i := 0; i < len(template); {
		rest := template[i:]
		switch {
		case strings.HasPrefix(rest, "{{"):
			sb.WriteByte('{')
			i += 2
		case strings.HasPrefix(rest, "}}"):
			sb.WriteByte('}')
			i += 2
		case strings.HasPrefix(rest, placeholder):
			sb.WriteString(quoteIn(quote, file))
			i += len(placeholder)
		default:
			c := template[i]
			sb.WriteByte(c)
			i++
			switch {
			case c == '\\' && quote != '\'' && i < len(template):
				// escaped character, never a quote boundary
				sb.WriteByte(template[i])
				i++
			case quote == 0 && (c == '\'' || c == '"'):
				quote = c
			case quote == c:
				quote = 0
			}
		}
	}
	return sb.String()
}

func quoteIn(quote byte, s string) string {
	switch quote {
	case '\'':
		return strings.ReplaceAll(s, "'", `'\''`)
	case '"':
		return doubleQuoteEscaper.Replace(s)
	default:
		return ShellQuote(s)
	}
}

var doubleQuoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`$`, `\$`,
	"`", "\\`",
)

// ShellQuote quotes s for a POSIX shell. Strings made only of safe
// characters are returned unchanged.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("/._-+,:@%=", r)
}
