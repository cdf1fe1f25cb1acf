package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	chunker "github.com/mutablelogic/go-chunker"
	assembler "github.com/mutablelogic/go-chunker/pkg/assembler"
	chunkstore "github.com/mutablelogic/go-chunker/pkg/chunkstore"
	registry "github.com/mutablelogic/go-chunker/pkg/registry"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Coordinator receives the chunks of many concurrent uploads and assembles
// each upload exactly once when its last chunk arrives.
type Coordinator struct {
	opts
	sessions  *registry.Registry
	chunks    *chunkstore.Store
	assembler *assembler.Assembler
	metrics   *metrics

	// Sessions whose reassembly failed, kept for inspection
	mu     sync.Mutex
	failed map[string]*registry.Session
}

var _ chunker.Coordinator = (*Coordinator)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a coordinator which stores chunks in chunks and writes
// artifacts with assembler.
func New(chunks *chunkstore.Store, assembler *assembler.Assembler, opts ...Opt) (*Coordinator, error) {
	self := new(Coordinator)
	if chunks == nil || assembler == nil {
		return nil, httpresponse.ErrBadRequest.With("missing chunk store or assembler")
	}
	self.chunks = chunks
	self.assembler = assembler
	self.sessions = registry.New()
	self.failed = make(map[string]*registry.Session)

	// Apply options
	if opt, err := applyOpts(opts); err != nil {
		return nil, err
	} else {
		self.opts = opt
	}

	// Instruments
	if metrics, err := newMetrics(self.meter, self.sessions); err != nil {
		return nil, err
	} else {
		self.metrics = metrics
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ReceiveChunk stores one chunk of an upload. The metadata of the first chunk
// of an upload creates its session; the metadata of later chunks is ignored
// apart from the chunk index. When the chunk completes the upload, the
// artifact is assembled before returning.
func (c *Coordinator) ReceiveChunk(ctx context.Context, req schema.ChunkRequest) (_ *schema.ChunkResponse, result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanCoordinatorName("ReceiveChunk"))
	defer func() { endFunc(result) }()

	// Check the request in isolation
	if err := req.Validate(); err != nil {
		return nil, httpresponse.ErrBadRequest.With(err)
	} else if req.Body == nil {
		return nil, httpresponse.ErrBadRequest.With("missing chunk data")
	}

	// Join the session as a writer
	session, err := c.join(child, req.ChunkMeta)
	if err != nil {
		return nil, err
	}

	// Store the chunk
	received, err := c.write(child, session, req)
	c.metrics.chunk(child, chunker.ResultOf(err))
	if err != nil {
		c.log.Warn().Err(err).
			Str("chunkId", req.ChunkId).
			Int("chunkIndex", req.ChunkIndex).
			Msg("chunk rejected")
		return nil, err
	}

	response := &schema.ChunkResponse{
		Success:        true,
		Result:         schema.ResultOk,
		Message:        fmt.Sprintf("chunk %d received", req.ChunkIndex),
		ChunkId:        session.Id(),
		ChunksReceived: received,
		TotalChunks:    session.TotalChunks(),
		IsComplete:     received == session.TotalChunks(),
	}

	// Assemble when this chunk completes the upload
	if response.IsComplete {
		artifact, err := c.complete(child, session)
		if err != nil {
			return nil, err
		}
		response.Message = fmt.Sprintf("upload %q complete", session.Id())
		response.FileId = artifact.FileId
		response.FilePath = artifact.Path
	}

	// Return success
	return response, nil
}

// CancelUpload abandons an upload and deletes its chunks. A failed upload
// can also be cancelled to clear its record.
func (c *Coordinator) CancelUpload(ctx context.Context, id string) (_ *schema.CancelResponse, result error) {
	child, endFunc := otel.StartSpan(c.tracer, ctx, spanCoordinatorName("CancelUpload"))
	defer func() { endFunc(result) }()

	if err := schema.ValidateChunkId(id); err != nil {
		return nil, httpresponse.ErrBadRequest.With(err)
	}

	session, exists := c.sessions.Remove(id)
	if !exists {
		if c.takeFailed(id) != nil {
			return &schema.CancelResponse{
				Success: true,
				Message: fmt.Sprintf("failed upload %q cleared", id),
			}, nil
		}
		return nil, httpresponse.ErrNotFound.Withf("upload %q", id)
	}

	if err := c.teardown(child, session, schema.StatusCancelled); err != nil {
		return nil, err
	}

	c.log.Info().Str("chunkId", id).Msg("upload cancelled")
	return &schema.CancelResponse{
		Success: true,
		Message: fmt.Sprintf("upload %q cancelled", id),
	}, nil
}

// GetSession returns the state of an upload in progress, or of an upload
// whose reassembly failed
func (c *Coordinator) GetSession(_ context.Context, id string) (*schema.Session, error) {
	if err := schema.ValidateChunkId(id); err != nil {
		return nil, httpresponse.ErrBadRequest.With(err)
	}
	if session, exists := c.sessions.Get(id); exists {
		snapshot := session.Snapshot()
		return &snapshot, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if session, exists := c.failed[id]; exists {
		snapshot := session.Snapshot()
		return &snapshot, nil
	}
	return nil, httpresponse.ErrNotFound.Withf("upload %q", id)
}

// ListSessions returns uploads in progress and failed uploads, oldest first
func (c *Coordinator) ListSessions(_ context.Context) (*schema.SessionList, error) {
	response := new(schema.SessionList)
	for _, session := range c.sessions.List() {
		response.Body = append(response.Body, session.Snapshot())
	}
	c.mu.Lock()
	for _, session := range c.failed {
		response.Body = append(response.Body, session.Snapshot())
	}
	c.mu.Unlock()

	sort.SliceStable(response.Body, func(i, j int) bool {
		return response.Body[i].CreatedAt.Before(response.Body[j].CreatedAt)
	})
	response.Count = len(response.Body)
	return response, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanCoordinatorName(op string) string {
	return schema.SchemaName + ".coordinator." + op
}

// join returns the session for an upload with the caller registered as a
// writer. A session closed by completion or cancellation is never joined:
// the caller waits for it to be released and starts a new one.
func (c *Coordinator) join(ctx context.Context, meta schema.ChunkMeta) (*registry.Session, error) {
	for {
		session, created, err := c.sessions.GetOrCreate(ctx, meta.ChunkId, func() *registry.Session {
			return registry.NewSession(meta)
		})
		if err != nil {
			return nil, err
		}
		if created {
			c.takeFailed(meta.ChunkId)
			c.log.Info().
				Str("chunkId", meta.ChunkId).
				Str("fileName", meta.FileName).
				Int("totalChunks", meta.TotalChunks).
				Msg("upload started")
		}
		if session.Begin() {
			return session, nil
		}
	}
}

// write stores a chunk for a joined session and releases the writer.
// Returns the number of distinct chunks received.
func (c *Coordinator) write(ctx context.Context, session *registry.Session, req schema.ChunkRequest) (int, error) {
	defer session.End()

	// The index must fit the session, which may predate this request
	if req.ChunkIndex >= session.TotalChunks() {
		return 0, httpresponse.ErrBadRequest.Withf("%s %d out of range [0, %d) for upload %q", schema.FieldChunkIndex, req.ChunkIndex, session.TotalChunks(), session.Id())
	}

	n, err := c.chunks.Put(ctx, session.Id(), req.ChunkIndex, req.Body)
	if err != nil {
		return 0, err
	}
	c.metrics.stored(ctx, n)

	received, err := session.Mark(req.ChunkIndex)
	if err != nil {
		return 0, httpresponse.ErrBadRequest.With(err)
	}

	c.log.Debug().
		Str("chunkId", session.Id()).
		Int("chunkIndex", req.ChunkIndex).
		Int64("size", n).
		Msgf("chunk received %d/%d", received, session.TotalChunks())
	return received, nil
}

func (c *Coordinator) setFailed(session *registry.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[session.Id()] = session
}

func (c *Coordinator) takeFailed(id string) *registry.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, exists := c.failed[id]
	if !exists {
		return nil
	}
	delete(c.failed, id)
	return session
}
