// Package testutil assembles synthetic chunks and recordings for package
// tests: framed records, metadata payloads with string tables and element
// trees, checkpoint payloads with delta chains, and whole chunk buffers.
package testutil

import (
	"time"

	"github.com/flightrec/flr/chunk"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/internal/pool"
	"github.com/flightrec/flr/varint"
)

// Record frames one record: the self-inclusive total-size varint, the type
// id varint, then the payload.
func Record(typeID int64, payload []byte) []byte {
	body := varint.Len(uint64(typeID)) + len(payload)

	// The size field counts itself, so its own encoded length feeds back
	// into the value; iterate to the fixpoint.
	total := body + 1
	for {
		need := body + varint.Len(uint64(total))
		if need == total {
			break
		}
		total = need
	}

	buf := varint.AppendUvarint(nil, uint64(total))
	buf = varint.AppendUvarint(buf, uint64(typeID))

	return append(buf, payload...)
}

// ChunkBuilder assembles one synthetic chunk: header fields may be adjusted
// through Header before Bytes is called.
type ChunkBuilder struct {
	// Header seeds the emitted chunk header. Size is always computed;
	// MetadataOffset and ConstantPoolOffset are computed unless set.
	Header chunk.Header

	records        [][]byte
	metadataOffset int64
	lastCheckpoint int64
}

// NewChunkBuilder returns a builder with a plausible header: version 2.1,
// nanosecond timestamps, a 1GHz tick clock.
func NewChunkBuilder() *ChunkBuilder {
	return &ChunkBuilder{
		Header: chunk.Header{
			Major:          2,
			Minor:          1,
			StartNanos:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).UnixNano(),
			DurationNanos:  int64(2 * time.Second),
			StartTicks:     1_000_000,
			TicksPerSecond: 1_000_000_000,
			Features:       format.FeatureNanoTimestamps,
		},
	}
}

func (b *ChunkBuilder) nextOffset() int64 {
	off := int64(chunk.HeaderSize)
	for _, r := range b.records {
		off += int64(len(r))
	}

	return off
}

// AddRecord appends a pre-framed record and returns its chunk offset.
func (b *ChunkBuilder) AddRecord(raw []byte) int64 {
	off := b.nextOffset()
	b.records = append(b.records, raw)

	return off
}

// AddEvent frames and appends an event record.
func (b *ChunkBuilder) AddEvent(typeID int64, payload []byte) int64 {
	return b.AddRecord(Record(typeID, payload))
}

// AddMetadata frames and appends the metadata record; the emitted header's
// metadata offset points at it.
func (b *ChunkBuilder) AddMetadata(classes ...ClassSpec) int64 {
	off := b.AddRecord(MetadataRecord(classes...))
	b.metadataOffset = off

	return off
}

// AddCheckpoint frames and appends a checkpoint record whose delta field
// links back to the previously added checkpoint (0 for the first), exactly
// as the JVM threads its chain. The emitted header's constant-pool offset
// points at the newest checkpoint.
func (b *ChunkBuilder) AddCheckpoint(mask format.CheckpointType, pools ...PoolSpec) int64 {
	off := b.nextOffset()

	var delta int64
	if b.lastCheckpoint != 0 {
		delta = b.lastCheckpoint - off
	}

	b.AddRecord(CheckpointRecord(delta, mask, pools...))
	b.lastCheckpoint = off

	return off
}

// Bytes assembles the chunk: header with computed size and section offsets,
// then every record in insertion order.
func (b *ChunkBuilder) Bytes() []byte {
	hdr := b.Header
	hdr.Size = b.nextOffset()

	if hdr.MetadataOffset == 0 {
		hdr.MetadataOffset = b.metadataOffset
		if hdr.MetadataOffset == 0 {
			hdr.MetadataOffset = chunk.HeaderSize
		}
	}
	if hdr.ConstantPoolOffset == 0 {
		hdr.ConstantPoolOffset = b.lastCheckpoint
	}

	buf := pool.GetScratchBuffer()
	defer pool.PutScratchBuffer(buf)

	buf.MustWrite(hdr.Bytes())
	for _, r := range b.records {
		buf.MustWrite(r)
	}

	return buf.CopyBytes()
}
