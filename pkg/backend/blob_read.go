package backend

import (
	"context"
	"io"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ReadObject reads object content
func (b *blobbackend) ReadObject(ctx context.Context, req schema.ObjectRequest) (io.ReadCloser, *schema.Object, error) {
	sk := b.storageKey(req.Path)
	objPath := cleanPath(req.Path)

	attrs, err := b.bucket.Attributes(ctx, sk)
	if err != nil {
		return nil, nil, blobErr(err, b.Name()+":"+objPath)
	}
	r, err := b.bucket.NewReader(ctx, sk, nil)
	if err != nil {
		return nil, nil, blobErr(err, b.Name()+":"+objPath)
	}
	return r, b.attrsToObject(objPath, attrs), nil
}
