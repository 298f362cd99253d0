// Package chunk parses chunk headers and scans the record stream inside a
// chunk.
//
// A chunk is one self-contained segment of a recording: a fixed big-endian
// header followed by back-to-back records, each carrying its own size, so
// the scanner can enumerate records it cannot interpret. The chunk borrows
// the caller's byte slice and never copies it.
package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
)

// HeaderSize is the fixed byte size of a chunk header.
const HeaderSize = format.HeaderSize

// Header is the fixed-size header at the start of every chunk.
type Header struct {
	// Major and Minor are the chunk format version.
	Major uint16 // byte offset 4-5
	Minor uint16 // byte offset 6-7
	// Size is the total chunk byte size, header included.
	Size int64 // byte offset 8-15
	// ConstantPoolOffset is the chunk offset of the newest checkpoint
	// record, or 0 when the chunk carries no checkpoints. Older checkpoints
	// are found by following each checkpoint's delta field.
	ConstantPoolOffset int64 // byte offset 16-23
	// MetadataOffset is the chunk offset of the metadata record.
	MetadataOffset int64 // byte offset 24-31
	// StartNanos is the recording start of this chunk, in nanoseconds since
	// the Unix epoch.
	StartNanos int64 // byte offset 32-39
	// DurationNanos is the wall-clock span the chunk covers.
	DurationNanos int64 // byte offset 40-47
	// StartTicks is the tick counter value at StartNanos; event timestamps
	// are expressed in ticks relative to it.
	StartTicks int64 // byte offset 48-55
	// TicksPerSecond is the tick frequency of the producing JVM.
	TicksPerSecond int64 // byte offset 56-63
	// Features is the feature-flags word (format.FeatureNanoTimestamps etc.).
	Features uint32 // byte offset 64-67
}

// ParseHeader parses and validates a chunk header from the start of data.
//
// Parameters:
//   - data: buffer holding at least one whole chunk
//
// Returns:
//   - Header: the parsed header
//   - error: errs.ErrBadMagic, errs.ErrUnsupportedVersion, or
//     errs.ErrTruncatedHeader when the declared size or the section offsets
//     do not fit the buffer
func ParseHeader(data []byte) (Header, error) {
	if len(data) < len(format.Magic) {
		return Header{}, fmt.Errorf("%w: %d bytes", errs.ErrTruncatedHeader, len(data))
	}
	if !bytes.Equal(data[:4], format.Magic[:]) {
		return Header{}, fmt.Errorf("%w: % x", errs.ErrBadMagic, data[:4])
	}
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d of %d header bytes", errs.ErrTruncatedHeader, len(data), HeaderSize)
	}

	h := Header{
		Major:              binary.BigEndian.Uint16(data[4:6]),
		Minor:              binary.BigEndian.Uint16(data[6:8]),
		Size:               int64(binary.BigEndian.Uint64(data[8:16])),
		ConstantPoolOffset: int64(binary.BigEndian.Uint64(data[16:24])),
		MetadataOffset:     int64(binary.BigEndian.Uint64(data[24:32])),
		StartNanos:         int64(binary.BigEndian.Uint64(data[32:40])),
		DurationNanos:      int64(binary.BigEndian.Uint64(data[40:48])),
		StartTicks:         int64(binary.BigEndian.Uint64(data[48:56])),
		TicksPerSecond:     int64(binary.BigEndian.Uint64(data[56:64])),
		Features:           binary.BigEndian.Uint32(data[64:68]),
	}

	if h.Major > format.MaxMajorVersion {
		return Header{}, fmt.Errorf("%w: %d.%d", errs.ErrUnsupportedVersion, h.Major, h.Minor)
	}
	if h.Size < HeaderSize {
		return Header{}, fmt.Errorf("%w: chunk size %d smaller than header", errs.ErrTruncatedHeader, h.Size)
	}
	if h.Size > int64(len(data)) {
		return Header{}, fmt.Errorf("%w: chunk size %d exceeds %d-byte buffer", errs.ErrTruncatedHeader, h.Size, len(data))
	}
	if h.MetadataOffset < HeaderSize || h.MetadataOffset >= h.Size {
		return Header{}, fmt.Errorf("%w: metadata offset %d outside [%d, %d)", errs.ErrTruncatedHeader, h.MetadataOffset, HeaderSize, h.Size)
	}
	// Offset 0 means the chunk carries no checkpoints; the delta chain is
	// empty.
	if h.ConstantPoolOffset != 0 && (h.ConstantPoolOffset < HeaderSize || h.ConstantPoolOffset >= h.Size) {
		return Header{}, fmt.Errorf("%w: constant pool offset %d outside [%d, %d)", errs.ErrTruncatedHeader, h.ConstantPoolOffset, HeaderSize, h.Size)
	}

	return h, nil
}

// Bytes serializes the header into a fresh 68-byte slice.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)

	copy(b[0:4], format.Magic[:])
	binary.BigEndian.PutUint16(b[4:6], h.Major)
	binary.BigEndian.PutUint16(b[6:8], h.Minor)
	binary.BigEndian.PutUint64(b[8:16], uint64(h.Size))
	binary.BigEndian.PutUint64(b[16:24], uint64(h.ConstantPoolOffset))
	binary.BigEndian.PutUint64(b[24:32], uint64(h.MetadataOffset))
	binary.BigEndian.PutUint64(b[32:40], uint64(h.StartNanos))
	binary.BigEndian.PutUint64(b[40:48], uint64(h.DurationNanos))
	binary.BigEndian.PutUint64(b[48:56], uint64(h.StartTicks))
	binary.BigEndian.PutUint64(b[56:64], uint64(h.TicksPerSecond))
	binary.BigEndian.PutUint32(b[64:68], h.Features)

	return b
}

// HasConstantPools reports whether the chunk carries any checkpoint records.
func (h Header) HasConstantPools() bool {
	return h.ConstantPoolOffset != 0
}

// HasNanoTimestamps reports whether event timestamps are in nanoseconds
// rather than ticks.
func (h Header) HasNanoTimestamps() bool {
	return h.Features&format.FeatureNanoTimestamps != 0
}

// StartTimeAsTime returns the chunk start as wall-clock time.
func (h Header) StartTimeAsTime() time.Time {
	return time.Unix(0, h.StartNanos)
}

// Duration returns the wall-clock span the chunk covers.
func (h Header) Duration() time.Duration {
	return time.Duration(h.DurationNanos)
}

// EndTimeAsTime returns the chunk end as wall-clock time.
func (h Header) EndTimeAsTime() time.Time {
	return time.Unix(0, h.StartNanos+h.DurationNanos)
}

// TimeAtTicks converts an event tick counter value to wall-clock time using
// the chunk's start ticks and tick frequency.
//
// Returns:
//   - time.Time: StartTimeAsTime() offset by the tick delta; the start time
//     unchanged when the header declares no tick frequency
func (h Header) TimeAtTicks(ticks int64) time.Time {
	return h.StartTimeAsTime().Add(h.TicksDuration(ticks - h.StartTicks))
}

// TicksDuration converts a tick count to a wall-clock duration.
func (h Header) TicksDuration(ticks int64) time.Duration {
	if h.TicksPerSecond <= 0 {
		return 0
	}

	nanosPerTick := float64(time.Second) / float64(h.TicksPerSecond)

	return time.Duration(float64(ticks) * nanosPerTick)
}
