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

// Path: /upload
// GET lists uploads in progress. POST receives one chunk as multipart/form-data.
func UploadHandler(coordinator chunker.Coordinator) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/upload", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				sessionList(w, r, coordinator)
			case http.MethodPost:
				chunkUpload(w, r, coordinator)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List uploads in progress and failed uploads",
			},
			Post: &openapi.Operation{
				Description: "Upload one chunk of a file using multipart/form-data (fields: fileName, fileSize, chunkIndex, totalChunks, chunkId, referenceId, folderId; file part: \"chunk\")",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func sessionList(w http.ResponseWriter, r *http.Request, coordinator chunker.Coordinator) {
	response, err := coordinator.ListSessions(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}

func chunkUpload(w http.ResponseWriter, r *http.Request, coordinator chunker.Coordinator) {
	// Read the chunk metadata and the chunk data from the form
	var form struct {
		schema.ChunkMeta
		Chunk types.File `json:"chunk"`
	}
	if err := httprequest.Read(r, &form); err != nil {
		chunkErr(w, r, form.ChunkId, httpresponse.ErrBadRequest.With(err.Error()))
		return
	} else if form.Chunk.Body == nil {
		chunkErr(w, r, form.ChunkId, httpresponse.ErrBadRequest.Withf("missing %q file part", schema.FieldChunk))
		return
	}
	defer form.Chunk.Body.Close()

	// Receive the chunk
	response, err := coordinator.ReceiveChunk(r.Context(), schema.ChunkRequest{
		ChunkMeta: form.ChunkMeta,
		Body:      form.Chunk.Body,
	})
	if err != nil {
		chunkErr(w, r, form.ChunkId, err)
		return
	}

	// Return success
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}

// chunkErr reports a failed chunk delivery, telling the uploader whether
// the same chunk can be sent again
func chunkErr(w http.ResponseWriter, r *http.Request, id string, err error) {
	_ = httpresponse.JSON(w, httpStatus(err), httprequest.Indent(r), schema.ChunkResponse{
		Success: false,
		Result:  chunker.ResultOf(err),
		Message: err.Error(),
		ChunkId: id,
	})
}
