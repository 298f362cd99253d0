// Package format defines the wire constants of the flight-recording chunk
// format: the magic tag, reserved event type ids, string encoding tags,
// checkpoint mask bits, header feature flags, and the compression types a
// recording may be stored with at rest.
package format

type (
	StringEncoding  uint8
	CheckpointType  uint8
	CompressionType uint8
)

// Magic is the four-byte tag every chunk starts with.
var Magic = [4]byte{'F', 'L', 'R', 0}

const (
	// HeaderSize is the fixed byte size of a chunk header, magic included.
	HeaderSize = 68

	// MaxMajorVersion is the newest chunk major version this package decodes.
	MaxMajorVersion = 2
)

// Reserved event type ids. Every chunk carries exactly one metadata event
// and zero or more checkpoint events under these ids; all other ids are
// defined by the chunk's own metadata.
const (
	EventTypeMetadata   int64 = 0
	EventTypeCheckpoint int64 = 1
)

// String record encoding tags. A string record starts with one tag byte
// selecting the payload shape that follows.
const (
	StringNull         StringEncoding = 0 // no payload, the null string
	StringEmpty        StringEncoding = 1 // no payload, the empty string
	StringConstantPool StringEncoding = 2 // varint constant pool key
	StringUTF8         StringEncoding = 3 // varint byte length + UTF-8 bytes
	StringCharArray    StringEncoding = 4 // varint count + varint code points
	StringLatin1       StringEncoding = 5 // varint byte length + Latin-1 bytes
)

// Checkpoint mask bits, stored in the one-byte mask of a checkpoint record.
const (
	CheckpointFlush       CheckpointType = 1 << 0 // incremental flush of pool deltas
	CheckpointChunkHeader CheckpointType = 1 << 1 // carries the chunk header snapshot
	CheckpointStatics     CheckpointType = 1 << 2 // full snapshot of static pools
	CheckpointThreads     CheckpointType = 1 << 3 // thread-local pool contents
)

// Chunk header feature flag bits.
const (
	// FeatureNanoTimestamps marks chunks whose event timestamps are in
	// nanoseconds rather than ticks.
	FeatureNanoTimestamps uint32 = 1 << 0
)

// Compression types for recordings stored compressed at rest. The chunk
// format itself is uncompressed; these identify the wrapper around a whole
// recording file.
const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionGzip CompressionType = 0x2 // CompressionGzip represents gzip compression.
	CompressionZstd CompressionType = 0x3 // CompressionZstd represents Zstandard compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 frame compression.
	CompressionS2   CompressionType = 0x5 // CompressionS2 represents S2 framed compression.
)

// Has reports whether every bit of mask is set in c.
func (c CheckpointType) Has(mask CheckpointType) bool {
	return c&mask == mask
}

func (s StringEncoding) String() string {
	switch s {
	case StringNull:
		return "Null"
	case StringEmpty:
		return "Empty"
	case StringConstantPool:
		return "ConstantPool"
	case StringUTF8:
		return "UTF8"
	case StringCharArray:
		return "CharArray"
	case StringLatin1:
		return "Latin1"
	default:
		return "Unknown"
	}
}

func (c CheckpointType) String() string {
	switch c {
	case CheckpointFlush:
		return "Flush"
	case CheckpointChunkHeader:
		return "ChunkHeader"
	case CheckpointStatics:
		return "Statics"
	case CheckpointThreads:
		return "Threads"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionGzip:
		return "Gzip"
	case CompressionZstd:
		return "Zstd"
	case CompressionLZ4:
		return "LZ4"
	case CompressionS2:
		return "S2"
	default:
		return "Unknown"
	}
}
