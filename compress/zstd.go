package compress

// ZstdCompressor implements the Zstandard wrapper. Zstd gives the best
// ratio of the supported codecs, which makes it the usual choice for cold
// storage of large recordings.
//
// Two implementations exist, selected at build time: a cgo binding to
// libzstd when cgo is available, and a pure Go implementation otherwise.
// Both produce standard zstd frames and decompress each other's output.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
//
// Returns:
//   - ZstdCompressor: New Zstd compressor instance
//
// Example:
//
//	codec := NewZstdCompressor()
//	compressed, err := codec.Compress(recording)
//	if err != nil {
//		return err
//	}
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
