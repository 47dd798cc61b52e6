package scan

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/CZERTAINLY/Opener/internal/jobs"
	"github.com/CZERTAINLY/Opener/internal/log"
	"github.com/CZERTAINLY/Opener/internal/model"
	"github.com/CZERTAINLY/Opener/internal/walk"
)

// Associations returns the command template for a mime type, see assoc.Table.
type Associations interface {
	Lookup(mime string) (string, error)
}

type Scan struct {
	workers  int
	maxSize  int64
	resolver jobs.Resolver
	table    Associations

	found         atomic.Int32
	associated    atomic.Int32
	noAssociation atomic.Int32
	failed        atomic.Int32
}

type Stats struct {
	Found         int
	Associated    int
	NoAssociation int
	Failed        int
}

// New returns a Scan classifying files on workers goroutines. Files bigger
// than maxSize are not classified, zero means no limit.
func New(workers int, maxSize int64, resolver jobs.Resolver, table Associations) *Scan {
	return &Scan{
		workers:  workers,
		maxSize:  maxSize,
		resolver: resolver,
		table:    table,
	}
}

// Do classifies every entry of seq on a jobs.Pool and returns an iterator with
// one finding per entry, in completion order.
//  1. Entries with a walk or stat error get ErrUnreadable
//  2. Entries bigger than the max size get ErrTooBig
//  3. Otherwise the mime type is resolved and looked up in the associations,
//     files without one get ErrNoAssociation
//
// None of those stop the scan. Breaking out of the loop cancels the remaining jobs.
func (s *Scan) Do(parentCtx context.Context, seq iter.Seq2[walk.Entry, error]) iter.Seq[model.Finding] {
	return func(yield func(model.Finding) bool) {
		ctx, cancel := context.WithCancel(parentCtx)
		defer cancel()

		findings := make(chan model.Finding, s.workers)
		send := func(f model.Finding) {
			select {
			case findings <- f:
			case <-ctx.Done():
			}
		}

		pool := jobs.NewPool(ctx, s.workers)
		go func() {
			defer close(findings)
			defer pool.Wait()
			defer pool.Close()

			for entry, err := range seq {
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					send(model.Finding{Path: entry.Path(), Err: fmt.Errorf("%w: %w", model.ErrUnreadable, err)})
					continue
				}
				job := jobs.New(func(ctx context.Context) (any, error) {
					return s.classify(ctx, entry), nil
				}, func(_ *jobs.Job, ev jobs.Event) {
					switch ev := ev.(type) {
					case jobs.Result:
						send(ev.Value.(model.Finding))
					case jobs.Exception:
						send(model.Finding{Path: entry.Path(), Err: ev})
					}
				})
				if err := pool.Add(job); err != nil {
					slog.ErrorContext(ctx, "can't add a job", "path", entry.Path(), "error", err)
					return
				}
			}
		}()

		for f := range findings {
			// only findings handed to the caller are counted
			s.count(f)
			if !yield(f) {
				cancel()
				for range findings {
				}
				return
			}
		}
	}
}

func (s *Scan) classify(ctx context.Context, entry walk.Entry) model.Finding {
	ctx = log.ContextAttrs(ctx, slog.String("path", entry.Path()))
	finding := model.Finding{Path: entry.Path()}
	if ctx.Err() != nil {
		finding.Err = ctx.Err()
		return finding
	}

	info, err := entry.Stat()
	if err != nil {
		finding.Err = fmt.Errorf("%w: %w", model.ErrUnreadable, err)
		return finding
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		slog.DebugContext(ctx, "classification skipped, too big file", "size", info.Size())
		finding.Err = fmt.Errorf("entry too big (%d bytes): %w", info.Size(), model.ErrTooBig)
		return finding
	}

	mime, err := s.resolver.Resolve(ctx, entry.Path())
	if err != nil {
		finding.Err = err
		return finding
	}
	finding.Mime = mime

	command, err := s.table.Lookup(mime)
	if err != nil {
		slog.DebugContext(ctx, "no association", "mime", mime)
		finding.Err = err
		return finding
	}
	finding.Command = command
	return finding
}

func (s *Scan) count(f model.Finding) {
	s.found.Add(1)
	switch {
	case f.Err == nil:
		s.associated.Add(1)
	case errors.Is(f.Err, model.ErrNoAssociation):
		s.noAssociation.Add(1)
	default:
		s.failed.Add(1)
	}
}

func (s *Scan) Stats() Stats {
	return Stats{
		Found:         int(s.found.Load()),
		Associated:    int(s.associated.Load()),
		NoAssociation: int(s.noAssociation.Load()),
		Failed:        int(s.failed.Load()),
	}
}
