package chunker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// ErrUnavailable is reported when storage fails or a request is interrupted
const ErrUnavailable = httpresponse.Err(http.StatusServiceUnavailable)

var (
	// ErrPersistence marks a chunk which could not be stored or removed.
	// Sending the same chunk again may succeed.
	ErrPersistence = errors.New("persistence failure")

	// ErrReassembly marks an upload which cannot be assembled from its chunks
	ErrReassembly = errors.New("reassembly failure")
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// PersistenceError wraps a storage error. The result matches both
// ErrPersistence and ErrUnavailable, and keeps err as its cause.
func PersistenceError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s: %w", ErrUnavailable, ErrPersistence, fmt.Sprintf(format, args...), err)
}

// ReassemblyError returns an error which matches both ErrReassembly and
// httpresponse.ErrInternalError.
func ReassemblyError(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", httpresponse.ErrInternalError, ErrReassembly, fmt.Sprintf(format, args...))
}

// ResultOf classifies an error returned from a coordinator operation. A
// persistence failure or an interrupted request can be retried by
// redelivering the same chunk; anything else cannot.
func ResultOf(err error) schema.Result {
	switch {
	case err == nil:
		return schema.ResultOk
	case errors.Is(err, ErrReassembly):
		return schema.ResultFatal
	case errors.Is(err, ErrPersistence), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return schema.ResultRetryable
	default:
		return schema.ResultFatal
	}
}
