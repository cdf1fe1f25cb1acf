package httpclient

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadOpt is a functional option for Upload and UploadFile.
type UploadOpt func(*uploadOpts) error

type uploadOpts struct {
	chunkId     string
	chunkSize   int64
	concurrency int
	retries     int
	retryDelay  time.Duration
	referenceId string
	folderId    string
	progress    func(chunks, total int, written, size int64)
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	DefaultChunkSize   = 5 << 20
	DefaultConcurrency = 4
	defaultRetryDelay  = 500 * time.Millisecond
)

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithChunkId sets the upload identifier. The default is a random UUID.
func WithChunkId(id string) UploadOpt {
	return func(o *uploadOpts) error {
		if err := schema.ValidateChunkId(id); err != nil {
			return err
		}
		o.chunkId = id
		return nil
	}
}

// WithChunkSize sets the maximum size of each chunk in bytes.
func WithChunkSize(size int64) UploadOpt {
	return func(o *uploadOpts) error {
		if size <= 0 {
			return errors.New("chunk size must be positive")
		}
		o.chunkSize = size
		return nil
	}
}

// WithConcurrency sets how many chunks are sent at the same time.
func WithConcurrency(n int) UploadOpt {
	return func(o *uploadOpts) error {
		if n <= 0 {
			return errors.New("concurrency must be positive")
		}
		o.concurrency = n
		return nil
	}
}

// WithRetry sends a chunk up to n more times when its delivery fails,
// waiting delay between attempts.
func WithRetry(n int, delay time.Duration) UploadOpt {
	return func(o *uploadOpts) error {
		if n < 0 || delay < 0 {
			return errors.New("invalid retry")
		}
		o.retries = n
		o.retryDelay = delay
		return nil
	}
}

// WithReference sets the folder and reference the assembled file is stored
// under.
func WithReference(folderId, referenceId string) UploadOpt {
	return func(o *uploadOpts) error {
		o.folderId = folderId
		o.referenceId = referenceId
		return nil
	}
}

// WithProgress sets a callback invoked after each chunk is delivered, with
// the number of chunks and bytes delivered so far.
func WithProgress(fn func(chunks, total int, written, size int64)) UploadOpt {
	return func(o *uploadOpts) error {
		o.progress = fn
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// UploadFile uploads a local file in chunks, returning the response to the
// chunk which completed the upload.
func (c *Client) UploadFile(ctx context.Context, path string, opts ...UploadOpt) (*schema.ChunkResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	} else if info.IsDir() {
		return nil, errors.New("cannot upload a directory: " + path)
	}
	return c.Upload(ctx, filepath.Base(path), f, info.Size(), opts...)
}

// Upload splits size bytes of r into chunks and sends them concurrently,
// returning the response to the chunk which completed the upload. If any
// chunk cannot be delivered the remaining chunks are abandoned and the
// upload is cancelled.
func (c *Client) Upload(ctx context.Context, name string, r io.ReaderAt, size int64, opts ...UploadOpt) (*schema.ChunkResponse, error) {
	o, err := applyUploadOpts(opts)
	if err != nil {
		return nil, err
	}

	// An empty file is a single empty chunk
	total := int((size + o.chunkSize - 1) / o.chunkSize)
	if total == 0 {
		total = 1
	}

	var (
		mu       sync.Mutex
		final    *schema.ChunkResponse
		chunks   atomic.Int64
		written  atomic.Int64
		g, gctx  = errgroup.WithContext(ctx)
		progress = o.progress
	)
	g.SetLimit(o.concurrency)
	for index := 0; index < total; index++ {
		offset := int64(index) * o.chunkSize
		length := min(o.chunkSize, size-offset)
		g.Go(func() error {
			response, err := c.send(gctx, o, schema.ChunkMeta{
				ChunkId:     o.chunkId,
				FileName:    name,
				FileSize:    size,
				ChunkIndex:  index,
				TotalChunks: total,
				ReferenceId: o.referenceId,
				FolderId:    o.folderId,
			}, io.NewSectionReader(r, offset, length))
			if err != nil {
				return err
			}
			if response.IsComplete {
				mu.Lock()
				if final == nil || response.FileId != "" {
					final = response
				}
				mu.Unlock()
			}
			n, w := chunks.Add(1), written.Add(length)
			if progress != nil {
				mu.Lock()
				progress(int(n), total, w, size)
				mu.Unlock()
			}
			return nil
		})
	}

	// Abandon the upload on failure
	if err := g.Wait(); err != nil {
		if _, cancelErr := c.CancelUpload(context.WithoutCancel(ctx), o.chunkId); cancelErr != nil {
			err = errors.Join(err, cancelErr)
		}
		return nil, err
	}
	if final == nil {
		return nil, errors.New("upload " + o.chunkId + " did not complete")
	}
	return final, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// send delivers one chunk, retrying as configured
func (c *Client) send(ctx context.Context, o *uploadOpts, meta schema.ChunkMeta, r *io.SectionReader) (*schema.ChunkResponse, error) {
	var result error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(result, ctx.Err())
			case <-time.After(o.retryDelay):
			}
			if _, err := r.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
		}
		response, err := c.ReceiveChunk(ctx, schema.ChunkRequest{ChunkMeta: meta, Body: r})
		if err == nil {
			return response, nil
		}
		result = err
	}
	return nil, result
}

func applyUploadOpts(opts []UploadOpt) (*uploadOpts, error) {
	o := &uploadOpts{
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.chunkId == "" {
		o.chunkId = uuid.NewString()
	}
	return o, nil
}
