package lyricdoc

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes of the acquisition pipeline. Only the fatal ones ever reach
// a client; the rest are logged where they happen.
var (
	ErrSourceUnavailable   = errors.New("lyrics source unavailable")
	ErrAllSourcesExhausted = errors.New("all lyrics sources exhausted")
	ErrAlignmentDegraded   = errors.New("alignment degraded")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrAssetUnavailable    = errors.New("audio asset unavailable")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrTransport           = errors.New("transport error")
)

// Wrap tags err with one of the markers above and the failing operation.
func Wrap(marker error, operation string, err error) error {
	operation = strings.TrimSpace(operation)
	switch {
	case err == nil && operation == "":
		return marker
	case err == nil:
		return fmt.Errorf("%w: %s", marker, operation)
	case operation == "":
		return fmt.Errorf("%w: %w", marker, err)
	default:
		return fmt.Errorf("%w: %s: %w", marker, operation, err)
	}
}
