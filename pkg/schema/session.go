package schema

import (
	"time"

	// Packages
	"github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Status string

// Session is a point-in-time view of an upload
type Session struct {
	ChunkId        string    `json:"chunkId"`
	FileName       string    `json:"fileName"`
	FileSize       int64     `json:"fileSize"`
	TotalChunks    int       `json:"totalChunks"`
	ReferenceId    string    `json:"referenceId,omitempty"`
	FolderId       string    `json:"folderId,omitempty"`
	ChunksReceived int       `json:"chunksReceived"`
	Missing        []int     `json:"missing,omitempty"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	ModifiedAt     time.Time `json:"modifiedAt"`
}

type SessionList struct {
	Count int       `json:"count"`
	Body  []Session `json:"body,omitempty"`
}

// Artifact is the file produced by reassembling all chunks of an upload
type Artifact struct {
	FileId      string    `json:"fileId"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"type,omitempty"`
	ChunkId     string    `json:"chunkId"`
	FileName    string    `json:"fileName"`
	ReferenceId string    `json:"referenceId,omitempty"`
	FolderId    string    `json:"folderId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	StatusUploading  Status = "uploading"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (s Session) String() string {
	return types.Stringify(s)
}

func (s SessionList) String() string {
	return types.Stringify(s)
}

func (a Artifact) String() string {
	return types.Stringify(a)
}
