package recording

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/flightrec/flr/chunk"
	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
)

// Reader streams chunks from a bare recording one at a time, so a large
// file never has to be resident as a whole. The stream only needs forward
// reads; each chunk is materialized into a fresh buffer before it is
// handed out.
//
// Input must be uncompressed. For possibly-compressed input use ReadAll,
// which sniffs and unwraps first.
type Reader struct {
	r     io.Reader
	index int
	err   error
}

// NewReader creates a Reader positioned at the start of a recording.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next reads the next chunk, header and body, into a fresh buffer.
//
// Returns:
//   - []byte: complete chunk buffer, owned by the caller
//   - error: io.EOF after the last chunk; errs.ErrTruncatedHeader when the
//     stream ends inside a chunk. Errors are sticky: once Next fails, every
//     later call returns the same error.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	var header [format.HeaderSize]byte

	n, err := io.ReadFull(r.r, header[:])
	switch {
	case errors.Is(err, io.EOF):
		r.err = io.EOF
		return nil, r.err
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.err = fmt.Errorf("%w: chunk %d header cut short after %d bytes", errs.ErrTruncatedHeader, r.index, n)
		return nil, r.err
	case err != nil:
		r.err = fmt.Errorf("read chunk %d header: %w", r.index, err)
		return nil, r.err
	}

	if !bytes.Equal(header[:len(format.Magic)], format.Magic[:]) {
		r.err = fmt.Errorf("%w: chunk %d", errs.ErrBadMagic, r.index)
		return nil, r.err
	}

	// The size field sits right after the magic and version words. The
	// full header is validated once the whole chunk is in memory.
	size := int64(binary.BigEndian.Uint64(header[8:16]))
	if size < format.HeaderSize {
		r.err = fmt.Errorf("%w: chunk %d declares size %d", errs.ErrTruncatedHeader, r.index, size)
		return nil, r.err
	}

	buf := make([]byte, size)
	copy(buf, header[:])

	if _, err := io.ReadFull(r.r, buf[format.HeaderSize:]); err != nil {
		r.err = fmt.Errorf("%w: chunk %d body cut short of declared size %d", errs.ErrTruncatedHeader, r.index, size)
		return nil, r.err
	}

	if _, err := chunk.ParseHeader(buf); err != nil {
		r.err = fmt.Errorf("chunk %d: %w", r.index, err)
		return nil, r.err
	}

	r.index++

	return buf, nil
}

// All returns an iterator over the remaining chunks. A clean end of stream
// simply ends the sequence; any other failure is yielded once as the final
// element.
func (r *Reader) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			data, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(data, nil) {
				return
			}
		}
	}
}
