package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	// Packages
	chunker "github.com/mutablelogic/go-chunker"
	assembler "github.com/mutablelogic/go-chunker/pkg/assembler"
	backend "github.com/mutablelogic/go-chunker/pkg/backend"
	chunkstore "github.com/mutablelogic/go-chunker/pkg/chunkstore"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

////////////////////////////////////////////////////////////////////////////////
// HELPERS

type fixture struct {
	*Coordinator
	tmp       backend.Backend
	artifacts backend.Backend
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func newFixture(t *testing.T, opts ...Opt) *fixture {
	t.Helper()
	ctx := context.Background()

	tmp, err := backend.NewBlobBackend(ctx, "mem://tmp")
	require.NoError(t, err)
	artifacts, err := backend.NewBlobBackend(ctx, "mem://files")
	require.NoError(t, err)
	return fixtureWith(t, tmp, artifacts, opts...)
}

// newFileFixture stores chunks and artifacts in temporary directories
func newFileFixture(t *testing.T, opts ...Opt) *fixture {
	t.Helper()
	ctx := context.Background()

	tmp, err := backend.NewFileBackend(ctx, "tmp", filepath.Join(t.TempDir(), "tmp"), backend.WithCreateDir())
	require.NoError(t, err)
	artifacts, err := backend.NewFileBackend(ctx, "files", filepath.Join(t.TempDir(), "files"), backend.WithCreateDir())
	require.NoError(t, err)
	return fixtureWith(t, tmp, artifacts, opts...)
}

func fixtureWith(t *testing.T, tmp, artifacts backend.Backend, opts ...Opt) *fixture {
	t.Helper()
	t.Cleanup(func() { tmp.Close() })
	t.Cleanup(func() { artifacts.Close() })

	chunks, err := chunkstore.New(tmp)
	require.NoError(t, err)
	asm, err := assembler.New(chunks, artifacts)
	require.NoError(t, err)
	c, err := New(chunks, asm, opts...)
	require.NoError(t, err)

	return &fixture{Coordinator: c, tmp: tmp, artifacts: artifacts}
}

func chunk(id string, index, total int, data string) schema.ChunkRequest {
	return schema.ChunkRequest{
		ChunkMeta: schema.ChunkMeta{
			ChunkId:     id,
			FileName:    "report.pdf",
			FileSize:    9,
			ChunkIndex:  index,
			TotalChunks: total,
			ReferenceId: "R",
			FolderId:    "F",
		},
		Body: strings.NewReader(data),
	}
}

func (f *fixture) send(t *testing.T, req schema.ChunkRequest) *schema.ChunkResponse {
	t.Helper()
	resp, err := f.ReceiveChunk(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	r, _, err := f.artifacts.ReadObject(context.Background(), schema.ObjectRequest{Path: path})
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) tmpCount(t *testing.T) int {
	t.Helper()
	list, err := f.tmp.ListObjects(context.Background(), schema.PrefixRequest{Path: "/", Recursive: true})
	require.NoError(t, err)
	return list.Count
}

func (f *fixture) artifactCount(t *testing.T) int {
	t.Helper()
	list, err := f.artifacts.ListObjects(context.Background(), schema.PrefixRequest{Path: "/", Recursive: true})
	require.NoError(t, err)
	return list.Count
}

////////////////////////////////////////////////////////////////////////////////
// TESTS

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, httpresponse.ErrBadRequest)
}

func TestReceiveChunk_Upload(t *testing.T) {
	f := newFixture(t, withIdFunc(func() string { return "0001" }))

	resp := f.send(t, chunk("abc", 0, 3, "AAA"))
	assert.True(t, resp.Success)
	assert.Equal(t, schema.ResultOk, resp.Result)
	assert.Equal(t, 1, resp.ChunksReceived)
	assert.Equal(t, 3, resp.TotalChunks)
	assert.False(t, resp.IsComplete)

	resp = f.send(t, chunk("abc", 1, 3, "BBB"))
	assert.Equal(t, 2, resp.ChunksReceived)
	assert.False(t, resp.IsComplete)

	session, err := f.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusUploading, session.Status)
	assert.Equal(t, []int{2}, session.Missing)

	resp = f.send(t, chunk("abc", 2, 3, "CCC"))
	assert.Equal(t, 3, resp.ChunksReceived)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "0001", resp.FileId)
	assert.Equal(t, "/F/R/Attachment_0001.pdf", resp.FilePath)

	assert.Equal(t, "AAABBBCCC", f.read(t, resp.FilePath))
	assert.Zero(t, f.tmpCount(t))

	_, err = f.GetSession(context.Background(), "abc")
	assert.ErrorIs(t, err, httpresponse.ErrNotFound)
}

func TestReceiveChunk_OutOfOrderWithRedelivery(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, 1, f.send(t, chunk("abc", 2, 3, "CCC")).ChunksReceived)
	assert.Equal(t, 1, f.send(t, chunk("abc", 2, 3, "CCC")).ChunksReceived)
	assert.Equal(t, 2, f.send(t, chunk("abc", 0, 3, "AAA")).ChunksReceived)

	resp := f.send(t, chunk("abc", 1, 3, "BBB"))
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "AAABBBCCC", f.read(t, resp.FilePath))
	assert.Equal(t, 1, f.artifactCount(t))
}

func TestReceiveChunk_SingleChunk(t *testing.T) {
	f := newFixture(t)
	resp := f.send(t, chunk("one", 0, 1, "only"))
	assert.True(t, resp.IsComplete)
	assert.Equal(t, 1, resp.ChunksReceived)
	assert.Equal(t, "only", f.read(t, resp.FilePath))
}

func TestReceiveChunk_FirstMetadataWins(t *testing.T) {
	f := newFixture(t)
	f.send(t, chunk("abc", 0, 2, "AA"))

	// A later chunk claiming a different total is counted against the first
	req := chunk("abc", 1, 5, "BB")
	req.FileName = "other.txt"
	resp := f.send(t, req)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, 2, resp.TotalChunks)
	assert.True(t, strings.HasSuffix(resp.FilePath, ".pdf"))
}

func TestReceiveChunk_BadParameter(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  schema.ChunkRequest
	}{
		{"empty id", chunk("", 0, 3, "A")},
		{"index out of range", chunk("abc", 3, 3, "A")},
		{"negative index", chunk("abc", -1, 3, "A")},
		{"zero total", chunk("abc", 0, 0, "A")},
		{"missing body", schema.ChunkRequest{ChunkMeta: chunk("abc", 0, 3, "").ChunkMeta}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ReceiveChunk(context.Background(), tt.req)
			assert.ErrorIs(t, err, httpresponse.ErrBadRequest)
			assert.Equal(t, schema.ResultFatal, chunker.ResultOf(err))
		})
	}
	list, err := f.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, list.Count)
}

func TestReceiveChunk_OutOfRangeForSession(t *testing.T) {
	f := newFixture(t)
	f.send(t, chunk("abc", 0, 3, "A"))

	_, err := f.ReceiveChunk(context.Background(), chunk("abc", 5, 10, "X"))
	assert.ErrorIs(t, err, httpresponse.ErrBadRequest)

	session, err := f.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, session.ChunksReceived)
	assert.Equal(t, 1, f.tmpCount(t))
}

func TestReceiveChunk_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	req := chunk("abc", 0, 2, "")
	req.Body = brokenReader{}

	_, err := f.ReceiveChunk(context.Background(), req)
	assert.ErrorIs(t, err, chunker.ErrPersistence)
	assert.Equal(t, schema.ResultRetryable, chunker.ResultOf(err))

	// Redelivery succeeds
	resp := f.send(t, chunk("abc", 0, 2, "AA"))
	assert.Equal(t, 1, resp.ChunksReceived)
}

func TestReceiveChunk_MissingChunkAtReassembly(t *testing.T) {
	f := newFixture(t)
	f.send(t, chunk("abc", 0, 3, "AAA"))
	f.send(t, chunk("abc", 1, 3, "BBB"))

	// Lose a stored chunk behind the coordinator's back
	_, err := f.tmp.DeleteObject(context.Background(), schema.ObjectRequest{Path: schema.ChunkKey("abc", 0)})
	require.NoError(t, err)

	_, err = f.ReceiveChunk(context.Background(), chunk("abc", 2, 3, "CCC"))
	assert.ErrorIs(t, err, chunker.ErrReassembly)
	assert.Equal(t, schema.ResultFatal, chunker.ResultOf(err))

	// Nothing published, chunks purged, failure inspectable
	assert.Zero(t, f.artifactCount(t))
	assert.Zero(t, f.tmpCount(t))
	session, err := f.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusFailed, session.Status)
	assert.NotEmpty(t, session.Error)

	// Cancel clears the failed record
	resp, err := f.CancelUpload(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	_, err = f.GetSession(context.Background(), "abc")
	assert.ErrorIs(t, err, httpresponse.ErrNotFound)
}

func TestReceiveChunk_NewSessionReplacesFailed(t *testing.T) {
	f := newFixture(t)
	f.send(t, chunk("abc", 0, 2, "AA"))
	_, err := f.tmp.DeleteObject(context.Background(), schema.ObjectRequest{Path: schema.ChunkKey("abc", 0)})
	require.NoError(t, err)
	_, err = f.ReceiveChunk(context.Background(), chunk("abc", 1, 2, "BB"))
	require.ErrorIs(t, err, chunker.ErrReassembly)

	// A retry of the whole upload starts from scratch
	assert.Equal(t, 1, f.send(t, chunk("abc", 0, 2, "AA")).ChunksReceived)
	session, err := f.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusUploading, session.Status)

	resp := f.send(t, chunk("abc", 1, 2, "BB"))
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "AABB", f.read(t, resp.FilePath))
}

func TestCancelUpload(t *testing.T) {
	f := newFixture(t)
	f.send(t, chunk("abc", 0, 3, "AAA"))
	f.send(t, chunk("abc", 1, 3, "BBB"))

	resp, err := f.CancelUpload(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "abc")
	assert.Zero(t, f.tmpCount(t))

	// Second cancel finds nothing
	_, err = f.CancelUpload(context.Background(), "abc")
	assert.ErrorIs(t, err, httpresponse.ErrNotFound)

	// A later chunk starts a fresh session
	r := f.send(t, chunk("abc", 2, 3, "CCC"))
	assert.Equal(t, 1, r.ChunksReceived)
	assert.False(t, r.IsComplete)
}

func TestCancelUpload_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.CancelUpload(context.Background(), "nothing")
	assert.ErrorIs(t, err, httpresponse.ErrNotFound)
	_, err = f.CancelUpload(context.Background(), "../x")
	assert.ErrorIs(t, err, httpresponse.ErrBadRequest)
}

func TestListSessions(t *testing.T) {
	f := newFixture(t)
	f.send(t, chunk("a", 0, 2, "A"))
	f.send(t, chunk("b", 0, 2, "B"))
	f.send(t, chunk("c", 0, 1, "C"))

	list, err := f.ListSessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, list.Count)
	ids := []string{list.Body[0].ChunkId, list.Body[1].ChunkId}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestOnComplete(t *testing.T) {
	var artifacts []schema.Artifact
	f := newFixture(t, WithOnComplete(func(_ context.Context, a schema.Artifact) error {
		artifacts = append(artifacts, a)
		return nil
	}))
	f.send(t, chunk("abc", 0, 2, "AA"))
	resp := f.send(t, chunk("abc", 1, 2, "BB"))

	require.Len(t, artifacts, 1)
	assert.Equal(t, resp.FileId, artifacts[0].FileId)
	assert.Equal(t, "abc", artifacts[0].ChunkId)
	assert.Equal(t, "R", artifacts[0].ReferenceId)
	assert.Equal(t, "F", artifacts[0].FolderId)
	assert.Equal(t, int64(4), artifacts[0].Size)
}

func TestOnComplete_Error(t *testing.T) {
	f := newFixture(t, WithOnComplete(func(context.Context, schema.Artifact) error {
		return errors.New("database unavailable")
	}))
	_, err := f.ReceiveChunk(context.Background(), chunk("abc", 0, 1, "A"))
	assert.ErrorIs(t, err, httpresponse.ErrInternalError)

	// The artifact is kept and the chunks are gone
	assert.Equal(t, 1, f.artifactCount(t))
	assert.Zero(t, f.tmpCount(t))
}

////////////////////////////////////////////////////////////////////////////////
// CONCURRENCY

func TestConcurrentUploads(t *testing.T) {
	var completed atomic.Int32
	f := newFixture(t, WithOnComplete(func(context.Context, schema.Artifact) error {
		completed.Add(1)
		return nil
	}))

	const uploads, chunks = 10, 8
	paths := make([]string, uploads)
	var wg sync.WaitGroup
	for u := 0; u < uploads; u++ {
		for i := 0; i < chunks; i++ {
			wg.Add(1)
			go func(u, i int) {
				defer wg.Done()
				id := fmt.Sprintf("upload-%d", u)
				resp, err := f.ReceiveChunk(context.Background(), chunk(id, i, chunks, fmt.Sprintf("%d:%d;", u, i)))
				if !assert.NoError(t, err) {
					return
				}
				if resp.FilePath != "" {
					paths[u] = resp.FilePath
				}
			}(u, i)
		}
	}
	wg.Wait()

	assert.Equal(t, int32(uploads), completed.Load())
	assert.Equal(t, uploads, f.artifactCount(t))
	assert.Zero(t, f.tmpCount(t))
	for u, path := range paths {
		var want strings.Builder
		for i := 0; i < chunks; i++ {
			fmt.Fprintf(&want, "%d:%d;", u, i)
		}
		assert.Equal(t, want.String(), f.read(t, path))
	}
}

func TestConcurrentFinalDeliveries(t *testing.T) {
	var completed atomic.Int32
	f := newFixture(t, WithOnComplete(func(context.Context, schema.Artifact) error {
		completed.Add(1)
		return nil
	}))
	f.send(t, chunk("abc", 0, 2, "AA"))

	const n = 20
	responses := make([]*schema.ChunkResponse, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.ReceiveChunk(context.Background(), chunk("abc", 1, 2, "BB"))
			if assert.NoError(t, err) {
				responses[i] = resp
			}
		}(i)
	}
	wg.Wait()

	// Duplicates which arrive after completion start a new session
	assert.Equal(t, int32(1), completed.Load())
	fileIds := map[string]bool{}
	for _, resp := range responses {
		require.NotNil(t, resp)
		if resp.IsComplete {
			fileIds[resp.FileId] = true
		}
	}
	assert.Len(t, fileIds, 1)
	assert.Equal(t, 1, f.artifactCount(t))
	for id := range fileIds {
		assert.NotEmpty(t, id)
	}
}

func TestConcurrentLastTwoChunks(t *testing.T) {
	for i := 0; i < 20; i++ {
		var completed atomic.Int32
		f := newFileFixture(t, WithOnComplete(func(context.Context, schema.Artifact) error {
			completed.Add(1)
			return nil
		}))
		f.send(t, chunk("abc", 1, 3, "BBB"))

		// Deliver the two missing chunks at the same time
		var wg sync.WaitGroup
		responses := make([]*schema.ChunkResponse, 3)
		for _, index := range []int{0, 2} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := f.ReceiveChunk(context.Background(), chunk("abc", index, 3, strings.Repeat(string(rune('A'+index)), 3)))
				if assert.NoError(t, err) {
					responses[index] = resp
				}
			}()
		}
		wg.Wait()

		var complete []*schema.ChunkResponse
		for _, index := range []int{0, 2} {
			require.NotNil(t, responses[index])
			if responses[index].IsComplete {
				complete = append(complete, responses[index])
			}
		}
		require.Len(t, complete, 1)
		assert.Equal(t, int32(1), completed.Load())
		assert.Equal(t, "/F/R", path.Dir(complete[0].FilePath))
		assert.True(t, strings.HasPrefix(path.Base(complete[0].FilePath), "Attachment_"))
		assert.Equal(t, ".pdf", path.Ext(complete[0].FilePath))
		assert.Equal(t, "AAABBBCCC", f.read(t, complete[0].FilePath))
		assert.Equal(t, 1, f.artifactCount(t))
		assert.Zero(t, f.tmpCount(t))
		assert.Zero(t, f.sessions.Len())
	}
}

func TestConcurrentCancelAndComplete(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		f.send(t, chunk("abc", 0, 2, "AA"))

		var wg sync.WaitGroup
		var cancelErr, chunkErr error
		var chunkResp *schema.ChunkResponse
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = f.CancelUpload(context.Background(), "abc")
		}()
		go func() {
			defer wg.Done()
			chunkResp, chunkErr = f.ReceiveChunk(context.Background(), chunk("abc", 1, 2, "BB"))
		}()
		wg.Wait()

		switch {
		case cancelErr == nil && chunkErr == nil:
			// Cancel first, chunk started a fresh session
			assert.False(t, chunkResp.IsComplete)
			assert.Zero(t, f.artifactCount(t))
		case cancelErr == nil:
			// Cancel won while the chunk was in flight
			assert.ErrorIs(t, chunkErr, httpresponse.ErrNotFound)
			assert.Zero(t, f.artifactCount(t))
			assert.Zero(t, f.tmpCount(t))
		default:
			// Completion won
			assert.ErrorIs(t, cancelErr, httpresponse.ErrNotFound)
			require.NoError(t, chunkErr)
			assert.True(t, chunkResp.IsComplete)
			assert.Equal(t, "AABB", f.read(t, chunkResp.FilePath))
		}
	}
}
