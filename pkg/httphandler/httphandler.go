package httphandler

import (
	"errors"
	"net/http"

	// Packages
	chunker "github.com/mutablelogic/go-chunker"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Router is the interface required to register HTTP handlers.
type Router interface {
	RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers registers all upload HTTP handlers on the provided router.
func RegisterHandlers(coordinator chunker.Coordinator, router Router) error {
	var result error
	register := func(path string, handler http.HandlerFunc, spec *openapi.PathItem) {
		result = errors.Join(result, router.RegisterFunc(path, handler, true, spec))
	}
	register(UploadHandler(coordinator))
	register(SessionHandler(coordinator))
	return result
}
