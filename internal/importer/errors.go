package importer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig marks invalid throttling or source configuration detected
	// before any network or catalog work starts.
	ErrConfig = errors.New("configuration error")
	// ErrSource marks failures talking to the remote source (login,
	// playlist or media listing).
	ErrSource = errors.New("source error")
	// ErrDownload marks a failed fetch of one media item.
	ErrDownload = errors.New("download error")
	// ErrPersist marks a catalog write that failed after exhausting
	// contention retries.
	ErrPersist = errors.New("persist error")
	// ErrProcessing marks a post-import task failure for one item.
	ErrProcessing = errors.New("processing error")
	// ErrStoreUnavailable marks a catalog that cannot be opened at all.
	// Unlike the per-item errors above, it aborts the whole session.
	ErrStoreUnavailable = errors.New("catalog unavailable")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrDownload
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an item error should abort the session rather than
// be contained to the item it belongs to.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrStoreUnavailable)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "import failure"
	}
	return strings.Join(parts, ": ")
}
