package registry

import (
	"fmt"
	"sync"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Session is the state of one in-flight upload. The metadata is fixed when
// the session is created; the set of received indices grows in place.
type Session struct {
	meta      schema.ChunkMeta
	createdAt time.Time

	mu       sync.Mutex
	received map[int]struct{}
	modified time.Time
	status   schema.Status
	err      error
	artifact *schema.Artifact
	closed   bool
	writers  sync.WaitGroup
	done     chan struct{}
	once     sync.Once
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewSession returns a session with the metadata of the chunk which created
// it. The chunk index is not part of the session.
func NewSession(meta schema.ChunkMeta) *Session {
	now := time.Now()
	meta.ChunkIndex = 0
	return &Session{
		meta:      meta,
		createdAt: now,
		modified:  now,
		received:  make(map[int]struct{}, meta.TotalChunks),
		status:    schema.StatusUploading,
		done:      make(chan struct{}),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (s *Session) Id() string {
	return s.meta.ChunkId
}

func (s *Session) Meta() schema.ChunkMeta {
	return s.meta
}

func (s *Session) TotalChunks() int {
	return s.meta.TotalChunks
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Begin registers an in-flight chunk writer. It returns false once the
// session has been closed, in which case the writer must not touch the
// session's storage.
func (s *Session) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.writers.Add(1)
	return true
}

// End releases a writer registered with Begin
func (s *Session) End() {
	s.writers.Done()
}

// Close stops new writers and waits for those in flight to call End.
// Calling Close more than once is safe.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.writers.Wait()
}

// Mark records a chunk index as received and returns the number of distinct
// indices received so far. Marking an index twice has no further effect.
func (s *Session) Mark(index int) (int, error) {
	if index < 0 || index >= s.meta.TotalChunks {
		return 0, fmt.Errorf("chunk index %d out of range [0, %d)", index, s.meta.TotalChunks)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received[index] = struct{}{}
	s.modified = time.Now()
	return len(s.received), nil
}

// Received returns the number of distinct indices received
func (s *Session) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

// Missing returns the indices not yet received, in ascending order
func (s *Session) Missing() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missing()
}

// Modified returns the time of the last accepted chunk
func (s *Session) Modified() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

func (s *Session) Status() schema.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error recorded with a failed status
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetStatus changes the status, recording err alongside it
func (s *Session) SetStatus(status schema.Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.err = err
	s.modified = time.Now()
}

// SetArtifact records the artifact assembled from the session and marks
// it completed
func (s *Session) SetArtifact(artifact *schema.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifact = artifact
	s.status = schema.StatusCompleted
	s.err = nil
	s.modified = time.Now()
}

// Artifact returns the assembled artifact, or nil if the session has not
// completed
func (s *Session) Artifact() *schema.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Done is closed when the session has been released after completion or
// cancellation
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns a point-in-time copy of the session
func (s *Session) Snapshot() schema.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := schema.Session{
		ChunkId:        s.meta.ChunkId,
		FileName:       s.meta.FileName,
		FileSize:       s.meta.FileSize,
		TotalChunks:    s.meta.TotalChunks,
		ReferenceId:    s.meta.ReferenceId,
		FolderId:       s.meta.FolderId,
		ChunksReceived: len(s.received),
		Missing:        s.missing(),
		Status:         s.status,
		CreatedAt:      s.createdAt,
		ModifiedAt:     s.modified,
	}
	if s.err != nil {
		snapshot.Error = s.err.Error()
	}
	return snapshot
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *Session) missing() []int {
	result := make([]int, 0, s.meta.TotalChunks-len(s.received))
	for i := 0; i < s.meta.TotalChunks; i++ {
		if _, ok := s.received[i]; !ok {
			result = append(result, i)
		}
	}
	return result
}

func (s *Session) release() {
	s.once.Do(func() {
		close(s.done)
	})
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (s *Session) String() string {
	return s.Snapshot().String()
}
