// Package compress provides the codecs a recording file may be wrapped in
// at rest.
//
// The chunk format itself is uncompressed; tooling routinely stores whole
// recording files gzipped or wrapped in another framed codec to cut
// archival cost. This package implements those wrappers and detects them
// by their magic bytes, so a reader can accept either a bare recording or
// a compressed one without being told which it has.
//
// # Supported algorithms
//
//   - None (format.CompressionNone): the file is a bare recording.
//   - Gzip (format.CompressionGzip): the common ".jfr.gz" archive form.
//   - Zstd (format.CompressionZstd): best ratio for cold storage.
//   - LZ4 (format.CompressionLZ4): frame format, fastest decompression.
//   - S2 (format.CompressionS2): framed, balanced speed and ratio.
//
// All compressed forms are self-framing streams with a magic prefix,
// which is what Detect sniffs. Zstd has two implementations selected at
// build time: a cgo binding when cgo is available and a pure Go fallback.
//
// # Interfaces
//
// Compressor and Decompressor are split so asymmetric use (an archiver
// that only writes, a reader that only reads) depends on exactly one
// operation; Codec combines them. Implementations are safe for concurrent
// use and pool their internal encoder and decoder state.
package compress
