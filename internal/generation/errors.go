package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
)

// Sentinel errors for each step of a run. Wrapped errors keep the transport
// cause in the chain, so errors.Is(err, pixai.ErrTransport) also holds where
// the network was at fault.
var (
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrPollingFailed      = errors.New("polling failed")
	ErrOperationCancelled = errors.New("operation cancelled")
	ErrTimedOut           = errors.New("polling timed out")
	ErrResolveFailed      = errors.New("artifact resolution failed")
	ErrMissingOutput      = errors.New("task has no media output")
	ErrNoDownloadURL      = errors.New("media has no download url")
	ErrDownloadFailed     = errors.New("download failed")
	ErrWriteFailed        = errors.New("write failed")
	ErrMirrorFailed       = errors.New("mirror upload failed")
	ErrMalformedResponse  = errors.New("malformed response")
)

// wrapCall attributes a transport failure to step. Decode failures become
// ErrMalformedResponse and cancellation becomes ErrOperationCancelled.
func wrapCall(step error, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrOperationCancelled, err)
	case errors.Is(err, pixai.ErrMalformed):
		return fmt.Errorf("%w: %w: %w", step, ErrMalformedResponse, err)
	default:
		return fmt.Errorf("%w: %w", step, err)
	}
}
