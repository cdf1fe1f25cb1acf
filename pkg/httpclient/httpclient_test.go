package httpclient_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	// Packages
	assembler "github.com/mutablelogic/go-chunker/pkg/assembler"
	backend "github.com/mutablelogic/go-chunker/pkg/backend"
	chunkstore "github.com/mutablelogic/go-chunker/pkg/chunkstore"
	coordinator "github.com/mutablelogic/go-chunker/pkg/coordinator"
	httpclient "github.com/mutablelogic/go-chunker/pkg/httpclient"
	httphandler "github.com/mutablelogic/go-chunker/pkg/httphandler"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

///////////////////////////////////////////////////////////////////////////////
// HELPERS

type muxRouter struct {
	*http.ServeMux
}

func (m muxRouter) RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error {
	m.HandleFunc(path, handler)
	return nil
}

type fixture struct {
	client *httpclient.Client
	files  backend.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	tmp, err := backend.NewBlobBackend(ctx, "mem://tmp")
	require.NoError(t, err)
	t.Cleanup(func() { tmp.Close() })
	files, err := backend.NewBlobBackend(ctx, "mem://files")
	require.NoError(t, err)
	t.Cleanup(func() { files.Close() })

	chunks, err := chunkstore.New(tmp)
	require.NoError(t, err)
	asm, err := assembler.New(chunks, files)
	require.NoError(t, err)
	c, err := coordinator.New(chunks, asm)
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, httphandler.RegisterHandlers(c, muxRouter{mux}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := httpclient.New(srv.URL)
	require.NoError(t, err)
	return &fixture{client: client, files: files}
}

func (f *fixture) read(t *testing.T, path string) []byte {
	t.Helper()
	r, _, err := f.files.ReadObject(context.Background(), schema.ObjectRequest{Path: path})
	require.NoError(t, err)
	defer r.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.Bytes()
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func TestReceiveChunk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	send := func(index int, data string) *schema.ChunkResponse {
		response, err := f.client.ReceiveChunk(ctx, schema.ChunkRequest{
			ChunkMeta: schema.ChunkMeta{
				ChunkId:     "abc",
				FileName:    "report.pdf",
				FileSize:    6,
				ChunkIndex:  index,
				TotalChunks: 2,
				ReferenceId: "R",
				FolderId:    "F",
			},
			Body: bytes.NewReader([]byte(data)),
		})
		require.NoError(t, err)
		return response
	}

	first := send(1, "def")
	assert.True(t, first.Success)
	assert.False(t, first.IsComplete)
	assert.Equal(t, 1, first.ChunksReceived)

	session, err := f.client.GetSession(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, session.Missing)

	last := send(0, "abc")
	assert.True(t, last.IsComplete)
	require.NotEmpty(t, last.FileId)
	assert.Equal(t, "/F/R/Attachment_"+last.FileId+".pdf", last.FilePath)
	assert.Equal(t, []byte("abcdef"), f.read(t, last.FilePath))
}

func TestReceiveChunk_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.ReceiveChunk(context.Background(), schema.ChunkRequest{
		ChunkMeta: schema.ChunkMeta{ChunkId: "abc", ChunkIndex: 2, TotalChunks: 2},
	})
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.ReceiveChunk(ctx, schema.ChunkRequest{
		ChunkMeta: schema.ChunkMeta{ChunkId: "xyz", FileName: "a.txt", TotalChunks: 3},
		Body:      bytes.NewReader([]byte("a")),
	})
	require.NoError(t, err)

	list, err := f.client.ListSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "xyz", list.Body[0].ChunkId)
	assert.Equal(t, schema.StatusUploading, list.Body[0].Status)

	response, err := f.client.CancelUpload(ctx, "xyz")
	require.NoError(t, err)
	assert.True(t, response.Success)

	_, err = f.client.GetSession(ctx, "xyz")
	assert.Error(t, err)
	_, err = f.client.CancelUpload(ctx, "xyz")
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	data := bytes.Repeat([]byte("0123456789"), 100)

	var mu sync.Mutex
	var calls int
	response, err := f.client.Upload(context.Background(), "numbers.txt", bytes.NewReader(data), int64(len(data)),
		httpclient.WithChunkId("numbers"),
		httpclient.WithChunkSize(64),
		httpclient.WithConcurrency(3),
		httpclient.WithReference("F", "R"),
		httpclient.WithProgress(func(chunks, total int, written, size int64) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			assert.Equal(t, 16, total)
			assert.Equal(t, int64(len(data)), size)
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, 16, calls)
	assert.True(t, response.IsComplete)
	assert.Equal(t, "numbers", response.ChunkId)
	require.NotEmpty(t, response.FileId)
	assert.Equal(t, data, f.read(t, response.FilePath))

	list, err := f.client.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, list.Count)
}

func TestUpload_Empty(t *testing.T) {
	f := newFixture(t)
	response, err := f.client.Upload(context.Background(), "empty.txt", bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.True(t, response.IsComplete)
	assert.Equal(t, 1, response.TotalChunks)
	assert.Empty(t, f.read(t, response.FilePath))
}

func TestUploadFile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	data := bytes.Repeat([]byte("pdf"), 50)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	response, err := f.client.UploadFile(context.Background(), path, httpclient.WithChunkSize(32))
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(response.FilePath))
	assert.Equal(t, data, f.read(t, response.FilePath))

	_, err = f.client.UploadFile(context.Background(), dir)
	assert.Error(t, err)
	_, err = f.client.UploadFile(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestUploadOpts(t *testing.T) {
	f := newFixture(t)
	r := bytes.NewReader([]byte("x"))
	tests := []httpclient.UploadOpt{
		httpclient.WithChunkSize(0),
		httpclient.WithConcurrency(0),
		httpclient.WithChunkId(""),
		httpclient.WithChunkId("a/b"),
		httpclient.WithRetry(-1, 0),
	}
	for _, opt := range tests {
		_, err := f.client.Upload(context.Background(), "x.txt", r, 1, opt)
		assert.Error(t, err)
	}
}
