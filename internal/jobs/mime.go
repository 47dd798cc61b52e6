package jobs

import "context"

// Resolver returns the mime type of a file, see detect.Chain.
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// MimeResult is the Result value of a job created by NewMimeJob.
type MimeResult struct {
	Path string
	Mime string
}

// NewMimeJob returns a job resolving the mime type of path.
func NewMimeJob(r Resolver, path string, cb Callback) *Job {
	return New(func(ctx context.Context) (any, error) {
		mime, err := r.Resolve(ctx, path)
		if err != nil {
			return nil, err
		}
		return MimeResult{Path: path, Mime: mime}, nil
	}, cb)
}
