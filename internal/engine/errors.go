package engine

import (
	"errors"
	"fmt"
)

// ErrUnsupportedEngine rejects unknown engine tags before any I/O.
type ErrUnsupportedEngine struct {
	error
}

func NewErrUnsupportedEngine(name string) *ErrUnsupportedEngine {
	return &ErrUnsupportedEngine{fmt.Errorf("unsupported transcription engine: %q", name)}
}

// ErrMalformedResponse marks a backend response the adapter could not decode.
// Retrying cannot fix a permanent format mismatch, so this error is fatal and
// the queue must not redeliver the job.
type ErrMalformedResponse struct {
	error
}

func NewErrMalformedResponse(engine Name, cause error) *ErrMalformedResponse {
	return &ErrMalformedResponse{fmt.Errorf("%s returned a malformed response: %w", engine, cause)}
}

// ErrBackendUnavailable marks timeouts and transport failures. These are
// transient and eligible for queue-level redelivery.
type ErrBackendUnavailable struct {
	error
}

func NewErrBackendUnavailable(engine Name, cause error) *ErrBackendUnavailable {
	return &ErrBackendUnavailable{fmt.Errorf("%s backend unavailable: %w", engine, cause)}
}

// IsFatal reports whether the error must not be retried.
func IsFatal(err error) bool {
	var malformed *ErrMalformedResponse
	var unsupported *ErrUnsupportedEngine
	return errors.As(err, &malformed) || errors.As(err, &unsupported)
}
