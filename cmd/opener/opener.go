package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/CZERTAINLY/Opener/internal/assoc"
	"github.com/CZERTAINLY/Opener/internal/bom"
	"github.com/CZERTAINLY/Opener/internal/cdxprops"
	"github.com/CZERTAINLY/Opener/internal/detect"
	"github.com/CZERTAINLY/Opener/internal/jobs"
	"github.com/CZERTAINLY/Opener/internal/launch"
	"github.com/CZERTAINLY/Opener/internal/log"
	"github.com/CZERTAINLY/Opener/internal/model"
	"github.com/CZERTAINLY/Opener/internal/scan"
	"github.com/CZERTAINLY/Opener/internal/walk"

	"golang.org/x/sync/errgroup"
)

// Opener is a component, which encapsulates the open, lookup and scan functionality.
type Opener struct {
	config   model.Config
	chain    detect.Chain
	table    *assoc.Table
	launcher *launch.Launcher
}

// NewDetector returns an Opener without associations, only Mime can be used.
func NewDetector(config model.Config) (*Opener, error) {
	chain, err := detect.FromConfig(config)
	if err != nil {
		return nil, err
	}
	return &Opener{
		config: config,
		chain:  chain,
	}, nil
}

func NewOpener(ctx context.Context, config model.Config, opts ...launch.Option) (*Opener, error) {
	o, err := NewDetector(config)
	if err != nil {
		return nil, err
	}

	path, err := config.AssociationsPath()
	if err != nil {
		return nil, err
	}
	o.table, err = assoc.LoadFile(ctx, path, assoc.WithCacheSize(config.Cache.Size))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: run opener assoc init first", err)
		}
		return nil, err
	}
	o.launcher = launch.New(config.Launch.Shell, opts...)
	return o, nil
}

// Open submits a detection job per file, the job callback looks up the
// association and launches the command. With wait the commands run in the
// foreground one after another.
func (o *Opener) Open(ctx context.Context, files []string, wait bool) error {
	pool := jobs.NewPool(ctx, o.config.Workers)

	var mx sync.Mutex
	var errs []error
	fail := func(path string, err error) {
		slog.ErrorContext(ctx, "can't open file", "path", path, "error", err)
		mx.Lock()
		defer mx.Unlock()
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
	}
	// only one foreground program may own the terminal
	var fg sync.Mutex

	for _, file := range files {
		job := jobs.NewMimeJob(o.chain, file, func(j *jobs.Job, ev jobs.Event) {
			ctx := log.ContextAttrs(ctx, slog.String("job_id", j.ID()), slog.String("path", file))
			switch ev := ev.(type) {
			case jobs.Exception:
				fail(file, ev)
			case jobs.Result:
				mr := ev.Value.(jobs.MimeResult)
				command, err := o.table.Lookup(mr.Mime)
				if err != nil {
					fail(file, err)
					return
				}
				slog.DebugContext(ctx, "launching", "mime", mr.Mime, "command", command)
				if wait {
					fg.Lock()
					defer fg.Unlock()
				}
				if err := o.launcher.Run(ctx, command, mr.Path, wait); err != nil {
					fail(file, err)
				}
			}
		})
		if err := pool.Add(job); err != nil {
			fail(file, err)
		}
	}
	pool.Close()
	pool.Wait()

	return errors.Join(errs...)
}

// Mime prints the mime type of every file in the order of files.
func (o *Opener) Mime(ctx context.Context, files []string, w io.Writer) error {
	pool := jobs.NewPool(ctx, o.config.Workers)
	submitted := make([]*jobs.Job, len(files))
	for i, file := range files {
		submitted[i] = jobs.NewMimeJob(o.chain, file, nil)
		if err := pool.Add(submitted[i]); err != nil {
			return err
		}
	}
	pool.Close()
	pool.Wait()

	var errs []error
	for i, job := range submitted {
		switch ev := job.Event().(type) {
		case jobs.Result:
			mr := ev.Value.(jobs.MimeResult)
			if _, err := fmt.Fprintf(w, "%s: %s\n", mr.Path, mr.Mime); err != nil {
				return err
			}
		case jobs.Exception:
			errs = append(errs, fmt.Errorf("%s: %w", files[i], ev))
		}
	}
	return errors.Join(errs...)
}

// Lookup prints the command template associated with every mime type.
func (o *Opener) Lookup(mimes []string, w io.Writer) error {
	var errs []error
	for _, mime := range mimes {
		command, err := o.table.Lookup(mime)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", mime, command); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// Scan classifies all files found in paths and writes a CycloneDX BOM to out.
// Files without an association are part of the BOM, unreadable or too big
// files are only logged.
func (o *Opener) Scan(ctx context.Context, paths []string, out io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)

	b := bom.NewBuilder()
	findings := make(chan model.Finding)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for f := range findings { // will be closed after g.Wait()
			compos, deps := cdxprops.FindingToComponents(f)
			b.AppendComponents(compos...)
			b.AppendDependencies(deps...)
		}
	}()

	scanner := scan.New(o.config.Workers, o.config.Scan.MaxSize, o.chain, o.table)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			slog.WarnContext(ctx, "can't get absolute path, skipping", "path", path, "error", err)
			continue
		}
		g.Go(func() error {
			seq := walk.Paths(ctx, o.config.Scan.Skip, abs)
			for f := range scanner.Do(ctx, seq) {
				if f.Err != nil && !errors.Is(f.Err, model.ErrNoAssociation) {
					slog.DebugContext(ctx, "file skipped", "path", f.Path, "error", f.Err)
					continue
				}
				findings <- f
			}
			return nil
		})
	}

	_ = g.Wait()
	close(findings)
	<-collected

	stats := scanner.Stats()
	slog.InfoContext(ctx, "scan finished",
		"found", stats.Found,
		"associated", stats.Associated,
		"no_association", stats.NoAssociation,
		"failed", stats.Failed,
	)
	cache := o.table.CacheInfo()
	slog.DebugContext(ctx, "association cache", "hits", cache.Hits, "misses", cache.Misses, "size", cache.Size)

	err := b.AsJSON(out)
	if err != nil {
		return fmt.Errorf("formatting BOM as JSON: %w", err)
	}
	return nil
}

// AssocInit writes the default associations to path.
func AssocInit(ctx context.Context, path string, force bool) error {
	if !force && exists(path) {
		return fmt.Errorf("association file %s exists, use --force to overwrite it", path)
	}
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	if err := assoc.Encode(f, assoc.Default()); err != nil {
		return fmt.Errorf("storing associations: %w", err)
	}
	slog.DebugContext(ctx, "associations stored", "path", path)
	return f.Sync()
}

// AssocGen writes n random associations to w.
func AssocGen(w io.Writer, n int) error {
	if n < 0 {
		return fmt.Errorf("count must not be negative, got %d", n)
	}
	return assoc.Encode(w, assoc.Random(n))
}
