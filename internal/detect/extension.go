package detect

import (
	"context"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/Opener/internal/model"
)

// extensions takes precedence over the platform mime database, which
// differs between systems and lacks most audio formats.
var extensions = map[string]string{
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".mkv":  "video/x-matroska",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".go":   "text/x-go",
	".sh":   "application/x-shellscript",
	".json": "application/json",
	".toml": "application/toml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".html": "text/html",
}

// Extension guesses the mime type from the file name only.
type Extension struct{}

func (Extension) TryDetect(_ context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", model.ErrNoMatch
	}
	if m, ok := extensions[ext]; ok {
		return m, nil
	}
	if m := essence(mime.TypeByExtension(ext)); m != "" {
		return m, nil
	}
	return "", model.ErrNoMatch
}

func (Extension) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("detector", model.DetectorExtension),
	}
}
