// Package recording handles whole recording files, which hold one or more
// chunks back to back and may be stored compressed.
//
// Split and Decompress work on in-memory buffers; Reader and ReadAll work
// on streams. Each chunk that comes out is a complete, self-contained
// buffer the chunk package can open independently.
package recording

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/flightrec/flr/chunk"
	"github.com/flightrec/flr/compress"
	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/internal/pool"
)

// sniffLen is how many leading bytes Detect needs to classify a buffer;
// the longest supported magic is the ten-byte S2 stream identifier.
const sniffLen = 10

// Split slices a bare recording buffer into its chunks.
//
// Each returned slice aliases data, covers exactly one chunk from header
// to declared size, and is validated only as far as its header; record
// contents are not touched.
//
// Parameters:
//   - data: complete uncompressed recording buffer
//
// Returns:
//   - [][]byte: one sub-slice per chunk, in file order
//   - error: errs.ErrTruncatedHeader for an empty buffer, otherwise the
//     header error of the first damaged chunk
func Split(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty recording", errs.ErrTruncatedHeader)
	}

	var chunks [][]byte
	for off := 0; off < len(data); {
		hdr, err := chunk.ParseHeader(data[off:])
		if err != nil {
			return nil, fmt.Errorf("chunk %d at offset %d: %w", len(chunks), off, err)
		}

		chunks = append(chunks, data[off:off+int(hdr.Size)])
		off += int(hdr.Size)
	}

	return chunks, nil
}

// Decompress unwraps a compressed recording buffer. A bare recording is
// returned as-is, without copying; compressed input yields a fresh buffer.
//
// Returns:
//   - []byte: the uncompressed recording
//   - error: errs.ErrBadMagic when the buffer is neither a recording nor
//     a recognized compression stream
func Decompress(data []byte) ([]byte, error) {
	cType, ok := compress.Detect(data)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized recording prefix", errs.ErrBadMagic)
	}

	if cType == format.CompressionNone {
		return data, nil
	}

	codec, err := compress.GetCodec(cType)
	if err != nil {
		return nil, err
	}

	decompressed, err := codec.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s recording: %w", cType, err)
	}

	return decompressed, nil
}

// ReadAll reads a whole recording from r, transparently decompressing it,
// and returns its chunks.
//
// Bare recordings are streamed one chunk at a time; compressed recordings
// are buffered through a pooled scratch buffer, decompressed, and split.
//
// Parameters:
//   - r: stream positioned at the start of a recording file
//
// Returns:
//   - [][]byte: one buffer per chunk, in file order
//   - error: read errors, errs.ErrBadMagic for unrecognized input, or the
//     first chunk-level error
func ReadAll(r io.Reader) ([][]byte, error) {
	prefix := make([]byte, sniffLen)

	n, err := io.ReadFull(r, prefix)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty recording", errs.ErrTruncatedHeader)
	}
	prefix = prefix[:n]

	cType, ok := compress.Detect(prefix)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized recording prefix", errs.ErrBadMagic)
	}

	body := io.MultiReader(bytes.NewReader(prefix), r)

	if cType == format.CompressionNone {
		return readChunks(body)
	}

	buf := pool.GetScratchBuffer()
	defer pool.PutScratchBuffer(buf)

	if _, err := io.Copy(buf, body); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	codec, err := compress.GetCodec(cType)
	if err != nil {
		return nil, err
	}

	data, err := codec.Decompress(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decompress %s recording: %w", cType, err)
	}

	return Split(data)
}

func readChunks(r io.Reader) ([][]byte, error) {
	var chunks [][]byte
	for data, err := range NewReader(r).All() {
		if err != nil {
			return nil, err
		}

		chunks = append(chunks, data)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: empty recording", errs.ErrTruncatedHeader)
	}

	return chunks, nil
}
