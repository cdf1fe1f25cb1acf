package backend

import (
	"context"
	"io"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// DeleteObject deletes an object
func (b *blobbackend) DeleteObject(ctx context.Context, req schema.ObjectRequest) (*schema.Object, error) {
	sk := b.storageKey(req.Path)
	objPath := cleanPath(req.Path)

	// Attributes may not exist, continue with delete
	attrs, err := b.bucket.Attributes(ctx, sk)
	if err != nil {
		attrs = nil
	}

	// Perform delete
	if err := b.bucket.Delete(ctx, sk); err != nil {
		return nil, blobErr(err, b.Name()+":"+objPath)
	}

	if attrs != nil {
		return b.attrsToObject(objPath, attrs), nil
	}
	return &schema.Object{Name: b.Name(), Path: objPath}, nil
}

// DeleteObjects deletes all objects under a path prefix. Objects which vanish
// between listing and deletion are skipped, so concurrent deletes of the
// same prefix both succeed. Deleting the backend root is refused.
func (b *blobbackend) DeleteObjects(ctx context.Context, req schema.PrefixRequest) (*schema.ObjectList, error) {
	var response schema.ObjectList

	prefix := b.prefixKey(req.Path)
	if cleanPath(req.Path) == "/" {
		return nil, httpresponse.ErrBadRequest.Withf("refusing to delete the root of backend %q", b.Name())
	}

	var delim string
	if !req.Recursive {
		delim = "/"
	}

	// Keep listing and deleting until no more objects match
	for {
		iter := b.bucket.List(&blob.ListOptions{
			Prefix:    prefix,
			Delimiter: delim,
		})

		deletedInPass := 0
		for {
			obj, err := iter.Next(ctx)
			if err == io.EOF {
				break
			} else if err != nil {
				return &response, blobErr(err, b.Name()+":"+req.Path)
			}

			// Skip the prefix itself and directories (when non-recursive)
			if obj.Key == prefix || obj.IsDir {
				continue
			}

			objPath := b.pathFromStorageKey(obj.Key)
			if err := b.bucket.Delete(ctx, obj.Key); isBlobNotFound(err) {
				continue
			} else if err != nil {
				return &response, blobErr(err, b.Name()+":"+objPath)
			}

			response.Body = append(response.Body, b.listItem(obj))
			deletedInPass++
		}

		// If no objects were deleted in this pass, we're done
		if deletedInPass == 0 {
			break
		}
	}

	response.Count = len(response.Body)
	return &response, nil
}
