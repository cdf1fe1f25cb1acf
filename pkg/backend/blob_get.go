package backend

import (
	"context"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// GetObject gets object metadata
func (b *blobbackend) GetObject(ctx context.Context, req schema.ObjectRequest) (*schema.Object, error) {
	objPath := cleanPath(req.Path)
	if attrs, err := b.bucket.Attributes(ctx, b.storageKey(objPath)); err != nil {
		return nil, blobErr(err, b.Name()+":"+objPath)
	} else {
		return b.attrsToObject(objPath, attrs), nil
	}
}
