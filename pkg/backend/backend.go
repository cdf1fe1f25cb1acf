package backend

import (
	"context"
	"errors"
	"io"
	"net/url"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Backend is the interface for a storage backend. Chunks and assembled
// artifacts are both stored through it.
type Backend interface {
	io.Closer

	// Name returns the name of the backend
	Name() string

	// URL returns the backend destination URL. The scheme, host (name),
	// and path (prefix/directory) identify the storage location.
	URL() *url.URL

	// Create object in the backend. The object only becomes visible once
	// the body has been fully written.
	CreateObject(context.Context, schema.CreateObjectRequest) (*schema.Object, error)

	// Get object metadata from the backend
	GetObject(context.Context, schema.ObjectRequest) (*schema.Object, error)

	// Read object content from the backend. Caller must close the returned reader.
	ReadObject(context.Context, schema.ObjectRequest) (io.ReadCloser, *schema.Object, error)

	// List objects in the backend
	ListObjects(context.Context, schema.PrefixRequest) (*schema.ObjectList, error)

	// Delete a single object from the backend
	DeleteObject(context.Context, schema.ObjectRequest) (*schema.Object, error)

	// Delete objects under a prefix
	DeleteObjects(context.Context, schema.PrefixRequest) (*schema.ObjectList, error)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// IsNotFound reports whether an error returned by a Backend means the object
// does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, httpresponse.ErrNotFound)
}
