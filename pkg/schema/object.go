package schema

import (
	"io"
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ObjectRequest names a single stored object by its path
type ObjectRequest struct {
	Path string
}

// PrefixRequest names the objects under a path. Without Recursive only the
// immediate children are included.
type PrefixRequest struct {
	Path      string
	Recursive bool
}

// CreateObjectRequest writes Body to Path. ModTime and Meta are stored as
// object metadata.
type CreateObjectRequest struct {
	Path        string
	Body        io.Reader
	ContentType string
	ModTime     time.Time
	Meta        ObjectMeta
}

// ObjectMeta is user-defined object metadata. S3 lowercases keys.
type ObjectMeta map[string]string

type Object struct {
	Name        string     `json:"name,omitempty"`
	Path        string     `json:"path"`
	Size        int64      `json:"size"`
	ModTime     time.Time  `json:"modtime,omitzero"`
	ContentType string     `json:"type,omitempty"`
	Meta        ObjectMeta `json:"meta,omitempty"`
}

type ObjectList struct {
	Count int      `json:"count"`
	Body  []Object `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (o Object) String() string {
	return types.Stringify(o)
}

func (l ObjectList) String() string {
	return types.Stringify(l)
}
