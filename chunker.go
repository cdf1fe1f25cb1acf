package chunker

import (
	"context"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Coordinator is the interface a transport calls into. It tracks uploads
// delivered as independent chunks and reassembles each one exactly once.
type Coordinator interface {
	// Receive a single chunk. When the chunk completes the upload, the artifact
	// is assembled before returning.
	ReceiveChunk(context.Context, schema.ChunkRequest) (*schema.ChunkResponse, error)

	// Cancel an in-flight upload and purge its temporary chunks
	CancelUpload(context.Context, string) (*schema.CancelResponse, error)

	// Return the state of a live or failed upload
	GetSession(context.Context, string) (*schema.Session, error)

	// Return all live and failed uploads
	ListSessions(context.Context) (*schema.SessionList, error)
}
