package detect

import (
	"context"
	"log/slog"

	"github.com/CZERTAINLY/Opener/internal/model"
	"github.com/gabriel-vasile/mimetype"
)

// Signature sniffs the file header for a known magic signature.
type Signature struct{}

func (Signature) TryDetect(_ context.Context, path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	if mtype.Is(model.MimeOctetStream) {
		return "", model.ErrNoMatch
	}
	return essence(mtype.String()), nil
}

func (Signature) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("detector", model.DetectorSignature),
	}
}
