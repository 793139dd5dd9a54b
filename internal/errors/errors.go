package errors

import (
	"encoding/json"
	"fmt"
)

// APIError represents a standardized API error response. The job store,
// stage adapters, and orchestrator return these typed failures so the HTTP boundary
// can map them to status codes without re-deriving intent from a string
// message.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
	Status  int       `json:"-"`
	Cause   error     `json:"-"`
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s (stage: %s)", e.Code, e.Message, e.Stage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// MarshalJSON customizes JSON encoding.
func (e *APIError) MarshalJSON() ([]byte, error) {
	type Alias APIError
	return json.Marshal(&struct{ *Alias }{Alias: (*Alias)(e)})
}

// NotFound — unknown or malformed job id.
func NotFound(id string) *APIError {
	return &APIError{Code: ErrNotFound, Message: fmt.Sprintf("task not found: %s", id), Status: ErrNotFound.StatusCode()}
}

// AlreadyFinal — write attempt on a completed/failed job.
func AlreadyFinal(id string) *APIError {
	return &APIError{Code: ErrAlreadyFinal, Message: fmt.Sprintf("task %s is already finalized", id), Status: ErrAlreadyFinal.StatusCode()}
}

// NotCompleted — read attempt on artifacts for a non-completed job.
func NotCompleted(id string) *APIError {
	return &APIError{Code: ErrNotCompleted, Message: fmt.Sprintf("task %s has not completed", id), Status: ErrNotCompleted.StatusCode()}
}

// ArtifactUnavailable — file_kind not bound to this job.
func ArtifactUnavailable(id, fileKind string) *APIError {
	return &APIError{Code: ErrArtifactUnavailable, Message: fmt.Sprintf("task %s has no %s artifact", id, fileKind), Status: ErrArtifactUnavailable.StatusCode()}
}

// FileMissing — bound path no longer exists on disk.
func FileMissing(path string) *APIError {
	return &APIError{Code: ErrFileMissing, Message: fmt.Sprintf("file missing: %s", path), Status: ErrFileMissing.StatusCode()}
}

// OutOfRange — progress outside [0,1], or similar numeric precondition.
func OutOfRange(message string) *APIError {
	return &APIError{Code: ErrOutOfRange, Message: message, Status: ErrOutOfRange.StatusCode()}
}

// InvalidInput — malformed upload, missing filename, empty body, unknown file_kind.
func InvalidInput(message string) *APIError {
	return &APIError{Code: ErrInvalidInput, Message: message, Status: ErrInvalidInput.StatusCode()}
}

// UploadTooLarge — byte ceiling exceeded mid-stream.
func UploadTooLarge(maxMB int) *APIError {
	return &APIError{Code: ErrUploadTooLarge, Message: fmt.Sprintf("upload exceeds %d MB limit", maxMB), Status: ErrUploadTooLarge.StatusCode()}
}

// StageFailed — external adapter error, carrying the stage and a human-readable message.
func StageFailed(stage, message string, cause error) *APIError {
	return &APIError{Code: ErrStageFailed, Message: message, Stage: stage, Status: ErrStageFailed.StatusCode(), Cause: cause}
}

// Internal — unexpected failure with no stack details exposed to the client.
func Internal(message string, cause error) *APIError {
	return &APIError{Code: ErrInternal, Message: message, Status: ErrInternal.StatusCode(), Cause: cause}
}

// WithTraceID attaches a trace id for correlation in the response body.
func (e *APIError) WithTraceID(traceID string) *APIError {
	e.TraceID = traceID
	return e
}

// As reports whether err is an *APIError and returns it.
func As(err error) (*APIError, bool) {
	apiErr, ok := err.(*APIError)
	return apiErr, ok
}
