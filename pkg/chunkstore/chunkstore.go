package chunkstore

import (
	"context"
	"errors"
	"io"
	"path"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	chunker "github.com/mutablelogic/go-chunker"
	backend "github.com/mutablelogic/go-chunker/pkg/backend"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Store holds the chunks of in-flight uploads, one object per chunk under
// {chunkId}/chunk_{index}.
type Store struct {
	opts
	backend backend.Backend
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a chunk store on top of a backend. The backend is not closed
// by the store.
func New(b backend.Backend, opts ...Opt) (*Store, error) {
	self := new(Store)
	if b == nil {
		return nil, httpresponse.ErrBadRequest.With("missing backend")
	}
	self.backend = b

	// Apply options
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Put writes the bytes of one chunk, replacing any earlier delivery of the
// same index. Returns the number of bytes written.
func (store *Store) Put(ctx context.Context, id string, index int, r io.Reader) (n int64, result error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return 0, httpresponse.ErrBadRequest.With(err)
	} else if index < 0 {
		return 0, httpresponse.ErrBadRequest.Withf("invalid chunk index %d", index)
	}

	child, endFunc := otel.StartSpan(store.tracer, ctx, spanStoreName("Put"))
	defer func() { endFunc(result) }()

	key := schema.ChunkKey(id, index)
	obj, err := store.backend.CreateObject(child, schema.CreateObjectRequest{
		Path: key,
		Body: r,
	})
	if err != nil {
		store.log.Debug().Err(err).Str("key", key).Msg("chunk write failed")
		return 0, persistenceErr(err, "write chunk %d of %q", index, id)
	}

	store.log.Trace().Str("key", key).Int64("size", obj.Size).Msg("chunk written")
	return obj.Size, nil
}

// Open returns a single stream of chunks 0..total-1 in ascending order. Each
// chunk is opened when the previous one has been read to the end. A chunk
// which does not exist results in a reassembly error from Read.
func (store *Store) Open(ctx context.Context, id string, total int) (io.ReadCloser, error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return nil, httpresponse.ErrBadRequest.With(err)
	}
	if total <= 0 {
		return nil, httpresponse.ErrBadRequest.Withf("invalid chunk count %d", total)
	}
	return &reader{ctx: ctx, store: store, id: id, total: total}, nil
}

// Missing returns the indices in 0..total-1 which have no stored chunk
func (store *Store) Missing(ctx context.Context, id string, total int) (_ []int, result error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return nil, httpresponse.ErrBadRequest.With(err)
	}

	child, endFunc := otel.StartSpan(store.tracer, ctx, spanStoreName("Missing"))
	defer func() { endFunc(result) }()

	list, err := store.backend.ListObjects(child, schema.PrefixRequest{
		Path: path.Join("/", id),
	})
	if err != nil {
		return nil, persistenceErr(err, "list chunks of %q", id)
	}

	present := make(map[int]bool, list.Count)
	for _, obj := range list.Body {
		if index, ok := schema.ChunkIndex(obj.Path); ok {
			present[index] = true
		}
	}

	missing := make([]int, 0, total)
	for i := 0; i < total; i++ {
		if !present[i] {
			missing = append(missing, i)
		}
	}
	return missing, nil
}

// DeleteAll removes every chunk of an upload. Deleting an upload which has
// no chunks is not an error.
func (store *Store) DeleteAll(ctx context.Context, id string) (result error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return httpresponse.ErrBadRequest.With(err)
	}

	child, endFunc := otel.StartSpan(store.tracer, ctx, spanStoreName("DeleteAll"))
	defer func() { endFunc(result) }()

	resp, err := store.backend.DeleteObjects(child, schema.PrefixRequest{
		Path:      path.Join("/", id),
		Recursive: true,
	})
	if err != nil {
		return persistenceErr(err, "delete chunks of %q", id)
	}

	store.log.Debug().Str("chunkId", id).Int("deleted", len(resp.Body)).Msg("chunks deleted")
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanStoreName(op string) string {
	return schema.SchemaName + ".chunkstore." + op
}

// persistenceErr wraps a backend error. Context errors are returned as-is.
func persistenceErr(err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return chunker.PersistenceError(err, format, args...)
}
