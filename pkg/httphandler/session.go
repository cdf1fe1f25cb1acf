package httphandler

import (
	"net/http"

	// Packages
	chunker "github.com/mutablelogic/go-chunker"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /upload/{chunkId}
// GET returns the state of an upload. DELETE cancels it.
func SessionHandler(coordinator chunker.Coordinator) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/upload/{chunkId}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				sessionGet(w, r, coordinator)
			case http.MethodDelete:
				uploadCancel(w, r, coordinator)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Get the state of an upload",
			},
			Delete: &openapi.Operation{
				Description: "Cancel an upload and delete its chunks",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func sessionGet(w http.ResponseWriter, r *http.Request, coordinator chunker.Coordinator) {
	response, err := coordinator.GetSession(r.Context(), r.PathValue("chunkId"))
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}

func uploadCancel(w http.ResponseWriter, r *http.Request, coordinator chunker.Coordinator) {
	response, err := coordinator.CancelUpload(r.Context(), r.PathValue("chunkId"))
	if err != nil {
		_ = httpresponse.JSON(w, httpStatus(err), httprequest.Indent(r), schema.CancelResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}
