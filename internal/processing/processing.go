package processing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"framefeed/internal/logging"
)

// Processor performs post-import work on one downloaded media file.
// Implementations must be safe for concurrent use.
type Processor interface {
	Process(ctx context.Context, localPath string) error
}

// Func adapts a plain function to the Processor interface.
type Func func(ctx context.Context, localPath string) error

func (f Func) Process(ctx context.Context, localPath string) error {
	return f(ctx, localPath)
}

// Noop returns a Processor that accepts every file unchanged.
func Noop() Processor {
	return Func(func(context.Context, string) error { return nil })
}

// Sniffer validates that a downloaded file's content matches its extension
// by checking magic bytes. It catches truncated downloads and error pages
// saved under a media filename.
type Sniffer struct {
	logger *slog.Logger
}

// NewSniffer builds a content-verification processor.
func NewSniffer(logger *slog.Logger) *Sniffer {
	return &Sniffer{logger: logging.NewComponentLogger(logger, "processing")}
}

func (s *Sniffer) Process(ctx context.Context, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	header := make([]byte, 16)
	read, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("read header of %s: %w", localPath, err)
	}
	header = header[:read]

	kind := detectKind(header)
	if kind == "" {
		return fmt.Errorf("%s: unrecognized content", filepath.Base(localPath))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(localPath), "."))
	if !kindMatchesExt(kind, ext) {
		return fmt.Errorf("%s: content is %s but extension is .%s", filepath.Base(localPath), kind, ext)
	}

	s.logger.Debug("content verified",
		logging.String("path", localPath),
		logging.String("kind", kind),
	)
	return nil
}

func detectKind(header []byte) string {
	switch {
	case len(header) >= 3 && bytes.Equal(header[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case len(header) >= 8 && bytes.Equal(header[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(header) >= 6 && (bytes.Equal(header[:6], []byte("GIF87a")) || bytes.Equal(header[:6], []byte("GIF89a"))):
		return "gif"
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return "webp"
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return "video"
	default:
		return ""
	}
}

func kindMatchesExt(kind, ext string) bool {
	switch kind {
	case "jpeg":
		return ext == "jpg" || ext == "jpeg"
	case "png":
		return ext == "png"
	case "gif":
		return ext == "gif"
	case "webp":
		return ext == "webp"
	case "video":
		return ext == "mp4" || ext == "mov" || ext == "m4v"
	default:
		return false
	}
}
