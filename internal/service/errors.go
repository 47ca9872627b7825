package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrInvalidEngine struct {
	error
}

func NewErrInvalidEngine(engine string) *ErrInvalidEngine {
	return &ErrInvalidEngine{fmt.Errorf("unsupported engine %q", engine)}
}

type ErrInvalidUpload struct {
	error
}

func NewErrEmptyUpload() *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("bad request: audio content is empty")}
}

func NewErrMissingFilename() *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("bad request: filename is required")}
}

func NewErrUploadTooLarge(size int64, limit int64) *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("bad request: audio content is %d bytes, limit is %d", size, limit)}
}

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(jobID string) *ErrResourceNotFound {
	return NewErrResourceNotFound(jobID, "job")
}

func NewErrTranscriptNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "transcript")
}

func NewErrContextNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id.String(), "context")
}

func NewErrMissingContextName() *ErrInvalidUpload {
	return &ErrInvalidUpload{fmt.Errorf("bad request: context name is required")}
}

// ErrStillProcessing signals the result is not ready yet. It is not a
// failure: callers map it to a retry-later response.
type ErrStillProcessing struct {
	error
}

func NewErrStillProcessing(jobID string) *ErrStillProcessing {
	return &ErrStillProcessing{fmt.Errorf("job %s is still processing", jobID)}
}

type ErrJobFailed struct {
	error
	Reason string
}

func NewErrJobFailed(jobID string, reason string) *ErrJobFailed {
	return &ErrJobFailed{
		error:  fmt.Errorf("job %s failed: %s", jobID, reason),
		Reason: reason,
	}
}
