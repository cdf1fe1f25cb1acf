package schema

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode"

	// Packages
	"github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Result tags the outcome of a chunk delivery so a caller can tell partial
// progress apart from a failure worth retrying and one that is not.
type Result string

// ChunkMeta is the metadata sent with every chunk of an upload. Only the
// metadata of the chunk which creates the session is retained.
type ChunkMeta struct {
	ChunkId     string `json:"chunkId"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	ReferenceId string `json:"referenceId,omitempty"`
	FolderId    string `json:"folderId,omitempty"`
}

type ChunkRequest struct {
	ChunkMeta
	Body io.Reader `json:"-"`
}

type ChunkResponse struct {
	Success        bool   `json:"success"`
	Result         Result `json:"result"`
	Message        string `json:"message,omitempty"`
	ChunkId        string `json:"chunkId,omitempty"`
	ChunksReceived int    `json:"chunksReceived"`
	TotalChunks    int    `json:"totalChunks"`
	IsComplete     bool   `json:"isComplete"`
	FileId         string `json:"fileId,omitempty"`
	FilePath       string `json:"filePath,omitempty"`
}

type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	ResultOk        Result = "ok"
	ResultRetryable Result = "retryable"
	ResultFatal     Result = "fatal"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate checks the metadata of a single chunk in isolation
func (m ChunkMeta) Validate() error {
	if err := ValidateChunkId(m.ChunkId); err != nil {
		return err
	}
	if m.TotalChunks <= 0 {
		return fmt.Errorf("%s must be positive, got %d", FieldTotalChunks, m.TotalChunks)
	}
	if m.ChunkIndex < 0 || m.ChunkIndex >= m.TotalChunks {
		return fmt.Errorf("%s %d out of range [0, %d)", FieldChunkIndex, m.ChunkIndex, m.TotalChunks)
	}
	if m.FileSize < 0 {
		return fmt.Errorf("%s must not be negative", FieldFileSize)
	}
	for _, segment := range []string{m.ReferenceId, m.FolderId} {
		if segment != "" && !isPathSegment(segment) {
			return fmt.Errorf("invalid path segment %q", segment)
		}
	}
	return nil
}

// Ext returns the extension of the original file name, including the dot
func (m ChunkMeta) Ext() string {
	return path.Ext(path.Base(strings.ReplaceAll(m.FileName, "\\", "/")))
}

// ValidateChunkId checks that an upload identifier can be used as a single
// storage path segment.
func ValidateChunkId(id string) error {
	if id == "" {
		return errors.New("missing " + FieldChunkId)
	}
	if len(id) > MaxChunkIdLength {
		return fmt.Errorf("%s exceeds %d characters", FieldChunkId, MaxChunkIdLength)
	}
	if !isPathSegment(id) {
		return fmt.Errorf("invalid %s %q", FieldChunkId, id)
	}
	return nil
}

// ChunkKey returns the storage key of a chunk relative to the chunk store root
func ChunkKey(id string, index int) string {
	return path.Join("/", id, ChunkKeyPrefix+strconv.Itoa(index))
}

// ChunkIndex parses the index out of a chunk key, returning false if the key
// does not name a chunk
func ChunkIndex(key string) (int, bool) {
	name, found := strings.CutPrefix(path.Base(key), ChunkKeyPrefix)
	if !found {
		return 0, false
	}
	index, err := strconv.Atoi(name)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (m ChunkMeta) String() string {
	return types.Stringify(m)
}

func (r ChunkResponse) String() string {
	return types.Stringify(r)
}

func (r CancelResponse) String() string {
	return types.Stringify(r)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func isPathSegment(s string) bool {
	if s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		if r == '/' || r == '\\' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
