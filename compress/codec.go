package compress

import (
	"bytes"
	"fmt"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
)

// Compressor compresses whole recording buffers.
type Compressor interface {
	// Compress compresses data into a freshly allocated slice. The input is
	// not modified; internal encoder state may be reused across calls.
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses whole recording buffers.
type Decompressor interface {
	// Decompress decompresses data into a freshly allocated slice. The
	// input must be a complete stream of the codec's format; corrupted or
	// foreign input returns an error.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions for implementations that share state.
type Codec interface {
	Compressor
	Decompressor
}

// Stream magic prefixes of the supported codecs. The recording format's
// own magic contains a NUL, so none of these collide with a bare chunk.
// S2 appears under two stream identifiers: its native one and the snappy
// one for archives written in snappy compatibility mode; the S2 reader
// accepts both.
var (
	gzipMagic   = []byte{0x1f, 0x8b}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic    = []byte{0x04, 0x22, 0x4d, 0x18}
	s2Magic     = []byte{0xff, 0x06, 0x00, 0x00, 0x53, 0x32, 0x73, 0x54, 0x77, 0x4f}
	snappyMagic = []byte{0xff, 0x06, 0x00, 0x00, 0x73, 0x4e, 0x61, 0x50, 0x70, 0x59}
)

// Detect sniffs the compression wrapper around a recording buffer.
//
// Parameters:
//   - data: the start of a recording file, at least a few bytes
//
// Returns:
//   - format.CompressionType: CompressionNone when data starts with the
//     bare recording magic, otherwise the detected wrapper
//   - bool: false when data matches neither a recording nor a known codec
func Detect(data []byte) (format.CompressionType, bool) {
	switch {
	case len(data) >= len(format.Magic) && bytes.Equal(data[:len(format.Magic)], format.Magic[:]):
		return format.CompressionNone, true
	case bytes.HasPrefix(data, gzipMagic):
		return format.CompressionGzip, true
	case bytes.HasPrefix(data, zstdMagic):
		return format.CompressionZstd, true
	case bytes.HasPrefix(data, lz4Magic):
		return format.CompressionLZ4, true
	case bytes.HasPrefix(data, s2Magic), bytes.HasPrefix(data, snappyMagic):
		return format.CompressionS2, true
	default:
		return 0, false
	}
}

// CreateCodec creates a fresh Codec for the specified compression type.
//
// Parameters:
//   - compressionType: one of the format.Compression* constants
//   - target: description of the usage, for error messages
//
// Returns:
//   - Codec: codec instance for the specified type
//   - error: errs.ErrUnsupportedCompression for unknown types
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionGzip:
		return NewGzipCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	default:
		return nil, fmt.Errorf("%w: %s for %s", errs.ErrUnsupportedCompression, compressionType, target)
	}
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionGzip: NewGzipCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
	format.CompressionS2:   NewS2Compressor(),
}

// GetCodec retrieves the shared built-in Codec for the specified
// compression type. All built-in codecs are stateless values; sharing them
// is safe.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCompression, compressionType)
}

// CompressionStats describes one compression outcome, for reporting.
type CompressionStats struct {
	// Algorithm identifies the codec used.
	Algorithm format.CompressionType
	// OriginalSize is the byte size before compression.
	OriginalSize int64
	// CompressedSize is the byte size after compression.
	CompressedSize int64
}

// CompressionRatio returns compressed size over original size; values
// below 1.0 indicate the codec saved space.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the saved space as a percentage of the original.
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}
