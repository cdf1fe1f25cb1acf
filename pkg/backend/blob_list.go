package backend

import (
	"context"
	"io"
	"strings"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListObjects lists objects under a path prefix.
// Use Recursive=true to list nested objects, or Recursive=false for immediate children only.
func (b *blobbackend) ListObjects(ctx context.Context, req schema.PrefixRequest) (*schema.ObjectList, error) {
	var response schema.ObjectList

	// List objects with prefix
	prefix := b.prefixKey(req.Path)
	var delim string
	if !req.Recursive {
		delim = "/"
	}
	iter := b.bucket.List(&blob.ListOptions{
		Prefix:    prefix,
		Delimiter: delim,
	})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, blobErr(err, b.Name()+":"+req.Path)
		}

		// Skip the prefix itself and directories
		if obj.Key == prefix || obj.IsDir {
			continue
		}

		response.Body = append(response.Body, b.listItem(obj))
	}

	// Return success
	response.Count = len(response.Body)
	return &response, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *blobbackend) listItem(obj *blob.ListObject) schema.Object {
	return schema.Object{
		Name:    b.Name(),
		Path:    b.pathFromStorageKey(obj.Key),
		Size:    obj.Size,
		ModTime: obj.ModTime,
	}
}

// prefixKey returns the storage key prefix for listing under a path, with a
// trailing slash so "/abc" does not match "/abcd".
func (b *blobbackend) prefixKey(p string) string {
	prefix := strings.TrimSuffix(b.storageKey(p), "/")
	if prefix != "" {
		prefix = prefix + "/"
	}
	return prefix
}
