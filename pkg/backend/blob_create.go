package backend

import (
	"context"
	"io"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// CreateObject creates or replaces an object in the backend. The writer only
// commits on a successful Close, so a failed copy never leaves a partial
// object behind: the write context is cancelled before closing.
func (b *blobbackend) CreateObject(ctx context.Context, req schema.CreateObjectRequest) (*schema.Object, error) {
	sk := b.storageKey(req.Path)
	objPath := cleanPath(req.Path)

	// Clone metadata to avoid mutating the caller's map
	var meta schema.ObjectMeta
	if req.Meta != nil || !req.ModTime.IsZero() {
		meta = make(schema.ObjectMeta, len(req.Meta)+1)
		for k, v := range req.Meta {
			meta[k] = v
		}
	}
	if !req.ModTime.IsZero() {
		meta[schema.AttrLastModified] = req.ModTime.Format(time.RFC3339)
	}

	// Write the object
	wctx, abort := context.WithCancel(ctx)
	defer abort()
	w, err := b.bucket.NewWriter(wctx, sk, &blob.WriterOptions{
		ContentType: req.ContentType,
		Metadata:    meta,
	})
	if err != nil {
		return nil, blobErr(err, b.Name()+":"+objPath)
	}
	written, err := io.Copy(w, req.Body)
	if err != nil {
		// Closing a cancelled writer discards the partial object
		abort()
		w.Close()
		return nil, blobErr(err, b.Name()+":"+objPath)
	}
	if err := w.Close(); err != nil {
		return nil, blobErr(err, b.Name()+":"+objPath)
	}

	// Get attributes to return
	attrs, err := b.bucket.Attributes(ctx, sk)
	if err != nil {
		// The write succeeded but we couldn't fetch the final metadata.
		// Return a partial object rather than an error to avoid spurious retries.
		return &schema.Object{
			Name:        b.Name(),
			Path:        objPath,
			Size:        written,
			ContentType: req.ContentType,
		}, nil
	}

	// Return success
	return b.attrsToObject(objPath, attrs), nil
}
