package assembler

import (
	"errors"
	"io"
)

// errReader remembers the first error returned by the chunk stream, which
// the backend would otherwise flatten into its own error
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && e.err == nil {
		e.err = err
	}
	return n, err
}
