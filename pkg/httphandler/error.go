package httphandler

import (
	"context"
	"errors"
	"net/http"

	// Packages
	chunker "github.com/mutablelogic/go-chunker"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// httpErr returns err unchanged when it carries an HTTP status. An
// interrupted request is unavailable; anything else is an internal error.
func httpErr(err error) error {
	var code httpresponse.Err
	switch {
	case errors.As(err, &code):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return chunker.ErrUnavailable.With(err.Error())
	default:
		return httpresponse.ErrInternalError.With(err.Error())
	}
}

// httpStatus returns the HTTP status code an error is reported with
func httpStatus(err error) int {
	var code httpresponse.Err
	if errors.As(httpErr(err), &code) {
		return int(code)
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	_ = httpresponse.Error(w, httpErr(err))
}
