package chunk

import (
	"fmt"
	"iter"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/varint"
)

// Chunk is one parsed chunk: its header plus the borrowed byte range it
// occupies. The caller keeps ownership of the bytes and must keep them
// alive for the chunk's lifetime.
type Chunk struct {
	header Header
	data   []byte
}

// RawRecord is one unparsed record occurrence inside a chunk. The scanner
// produces these without touching payload bytes, so records of unknown
// types cost nothing to step over.
type RawRecord struct {
	// Offset is the chunk offset of the record's leading size varint.
	Offset int64
	// Size is the declared total record size, its own varint header included.
	Size int64
	// TypeID identifies the record's class, or one of the reserved ids
	// (format.EventTypeMetadata, format.EventTypeCheckpoint).
	TypeID int64
	// Payload is the record body after the size and type id varints. It
	// aliases the chunk buffer.
	Payload []byte
}

// New parses the header at the start of data and binds a Chunk to the
// declared byte range. Bytes past the declared chunk size are ignored, so
// data may hold a whole multi-chunk recording.
func New(data []byte) (*Chunk, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	return &Chunk{header: h, data: data[:h.Size]}, nil
}

// Header returns the parsed chunk header.
func (c *Chunk) Header() Header {
	return c.header
}

// Data returns the chunk's byte range, header included.
func (c *Chunk) Data() []byte {
	return c.data
}

// Records returns a lazy, restartable scan of every record in the chunk,
// metadata and checkpoint records included, in stream order.
//
// The scan reads only each record's size and type id varints and advances
// by the declared size: O(1) memory, payloads untouched. A structural
// error (malformed varint, record overrunning the chunk) is yielded once
// and ends the sequence. Ranging over the result again restarts from the
// first record.
func (c *Chunk) Records() iter.Seq2[RawRecord, error] {
	return func(yield func(RawRecord, error) bool) {
		offset := int64(HeaderSize)
		for offset < c.header.Size {
			rec, err := c.recordAt(offset)
			if err != nil {
				yield(RawRecord{}, err)
				return
			}

			if !yield(rec, nil) {
				return
			}

			offset += rec.Size
		}
	}
}

// RecordAt parses the single record at an absolute chunk offset. Used for
// the sections the header addresses directly: the metadata record and the
// checkpoint delta chain.
func (c *Chunk) RecordAt(offset int64) (RawRecord, error) {
	if offset < HeaderSize || offset >= c.header.Size {
		return RawRecord{}, fmt.Errorf("%w: record offset %d outside [%d, %d)", errs.ErrTruncatedRecord, offset, HeaderSize, c.header.Size)
	}

	return c.recordAt(offset)
}

func (c *Chunk) recordAt(offset int64) (RawRecord, error) {
	buf := c.data[offset:]

	size, n, err := varint.Int64(buf)
	if err != nil {
		return RawRecord{}, fmt.Errorf("record size at offset %d: %w", offset, err)
	}

	typeID, m, err := varint.Int64(buf[n:])
	if err != nil {
		return RawRecord{}, fmt.Errorf("record type id at offset %d: %w", offset, err)
	}

	headerLen := int64(n + m)
	if size < headerLen {
		return RawRecord{}, fmt.Errorf("%w: declared size %d smaller than the %d-byte record header at offset %d", errs.ErrTruncatedRecord, size, headerLen, offset)
	}
	if offset+size > c.header.Size {
		return RawRecord{}, fmt.Errorf("%w: record at offset %d runs %d bytes past chunk end", errs.ErrTruncatedRecord, offset, offset+size-c.header.Size)
	}

	return RawRecord{
		Offset:  offset,
		Size:    size,
		TypeID:  typeID,
		Payload: c.data[offset+headerLen : offset+size],
	}, nil
}
