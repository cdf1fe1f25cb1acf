package chunkstore

import (
	"context"
	"errors"
	"io"

	// Packages
	chunker "github.com/mutablelogic/go-chunker"
	backend "github.com/mutablelogic/go-chunker/pkg/backend"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// reader concatenates the chunks of one upload
type reader struct {
	ctx   context.Context
	store *Store
	id    string
	total int
	next  int
	cur   io.ReadCloser
	err   error
}

var _ io.ReadCloser = (*reader)(nil)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (r *reader) Read(p []byte) (int, error) {
	for r.err == nil {
		if r.cur == nil {
			if r.next >= r.total {
				r.err = io.EOF
				break
			}
			if err := r.open(r.next); err != nil {
				r.err = err
				break
			}
		}

		n, err := r.cur.Read(p)
		if errors.Is(err, io.EOF) {
			err = r.cur.Close()
			r.cur = nil
			r.next++
			if err != nil {
				r.err = persistenceErr(err, "close chunk %d of %q", r.next-1, r.id)
			}
		} else if err != nil {
			r.err = persistenceErr(err, "read chunk %d of %q", r.next, r.id)
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, r.err
}

func (r *reader) Close() error {
	var result error
	if r.cur != nil {
		result = r.cur.Close()
		r.cur = nil
	}
	if r.err == nil {
		r.err = errors.New("reader closed")
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (r *reader) open(index int) error {
	key := schema.ChunkKey(r.id, index)
	rc, _, err := r.store.backend.ReadObject(r.ctx, schema.ObjectRequest{Path: key})
	if backend.IsNotFound(err) {
		return chunker.ReassemblyError("chunk %d of %q is missing", index, r.id)
	} else if err != nil {
		return persistenceErr(err, "open chunk %d of %q", index, r.id)
	}
	r.store.log.Trace().Str("key", key).Msg("chunk opened")
	r.cur = rc
	return nil
}
