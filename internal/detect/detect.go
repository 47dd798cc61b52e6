// Package detect resolves a file to its mime type using an ordered chain of
// detectors. The first detector giving an answer wins, a detector declines
// with model.ErrNoMatch.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"strings"

	"github.com/CZERTAINLY/Opener/internal/log"
	"github.com/CZERTAINLY/Opener/internal/model"
)

type Detector interface {
	TryDetect(ctx context.Context, path string) (string, error)
}

// Chain tries its detectors in order.
type Chain struct {
	detectors []Detector
}

func NewChain(detectors ...Detector) Chain {
	return Chain{detectors: detectors}
}

// FromConfig builds the chain named by cfg.Detectors.
func FromConfig(cfg model.Config) (Chain, error) {
	detectors := make([]Detector, 0, len(cfg.Detectors))
	for _, name := range cfg.Detectors {
		switch name {
		case model.DetectorSignature:
			detectors = append(detectors, Signature{})
		case model.DetectorExtension:
			detectors = append(detectors, Extension{})
		case model.DetectorCommand:
			detectors = append(detectors, NewCommand(cfg.Magic.Binary, cfg.Magic.Timeout, cfg.Magic.Args...))
		default:
			return Chain{}, fmt.Errorf("unknown detector %q", name)
		}
	}
	return NewChain(detectors...), nil
}

// Resolve returns the mime type of the file at path. It never fails for a
// readable file: if no detector matches, model.MimeOctetStream is returned.
// A file which can't be opened returns an error wrapping model.ErrUnreadable.
func (c Chain) Resolve(ctx context.Context, path string) (string, error) {
	ctx = log.ContextAttrs(ctx, slog.String("path", path))
	if err := readable(path); err != nil {
		return "", err
	}

	for _, detector := range c.detectors {
		dctx := ctx
		if ld, ok := detector.(interface{ LogAttrs() []slog.Attr }); ok {
			dctx = log.ContextAttrs(ctx, ld.LogAttrs()...)
		}
		mime, err := detector.TryDetect(dctx, path)
		switch {
		case err == nil:
			slog.DebugContext(dctx, "detected", "mime", mime)
			return mime, nil
		case errors.Is(err, model.ErrNoMatch):
			// try next one
		default:
			slog.DebugContext(dctx, "detector failed: ignoring", "error", err)
		}
	}

	slog.DebugContext(ctx, "no detector matched", "mime", model.MimeOctetStream)
	return model.MimeOctetStream, nil
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrUnreadable, err)
	}
	defer func() {
		_ = f.Close()
	}()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrUnreadable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", model.ErrUnreadable, path)
	}
	return nil
}

// essence strips media type parameters and normalizes the case:
// "Text/Plain; charset=utf-8" becomes "text/plain".
func essence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	base, _, _ := strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
