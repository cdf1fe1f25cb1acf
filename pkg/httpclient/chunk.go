package httpclient

import (
	"context"
	"io"
	"strconv"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// chunkForm is the multipart form of a chunk upload. Every field is sent as
// a string form value apart from the chunk data, which is a file part.
type chunkForm struct {
	FileName    string       `json:"fileName"`
	FileSize    string       `json:"fileSize"`
	ChunkIndex  string       `json:"chunkIndex"`
	TotalChunks string       `json:"totalChunks"`
	ChunkId     string       `json:"chunkId"`
	ReferenceId string       `json:"referenceId,omitempty"`
	FolderId    string       `json:"folderId,omitempty"`
	Chunk       []types.File `json:"chunk"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ReceiveChunk sends one chunk of an upload. When the chunk completes the
// upload, the response carries the identifier and path of the new file.
func (c *Client) ReceiveChunk(ctx context.Context, req schema.ChunkRequest) (*schema.ChunkResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := req.Body
	if body == nil {
		body = eofReader{}
	}
	form := chunkForm{
		FileName:    req.FileName,
		FileSize:    strconv.FormatInt(req.FileSize, 10),
		ChunkIndex:  strconv.Itoa(req.ChunkIndex),
		TotalChunks: strconv.Itoa(req.TotalChunks),
		ChunkId:     req.ChunkId,
		ReferenceId: req.ReferenceId,
		FolderId:    req.FolderId,
		Chunk: []types.File{{
			Path:        schema.ChunkKeyPrefix + strconv.Itoa(req.ChunkIndex),
			Body:        io.NopCloser(body),
			ContentType: types.ContentTypeBinary,
		}},
	}
	payload, err := client.NewStreamingMultipartRequest(&form, types.ContentTypeJSON)
	if err != nil {
		return nil, err
	}

	var response schema.ChunkResponse
	if err := c.DoWithContext(ctx, payload, &response,
		client.OptPath("upload"),
		client.OptNoTimeout(),
	); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
