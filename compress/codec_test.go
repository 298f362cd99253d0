package compress

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/klauspost/compress/s2"
	"github.com/stretchr/testify/require"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
)

// getAllCodecs returns all built-in codec implementations for testing.
func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"NoOp": NewNoOpCompressor(),
		"Gzip": NewGzipCompressor(),
		"LZ4":  NewLZ4Compressor(),
		"S2":   NewS2Compressor(),
		"Zstd": NewZstdCompressor(),
	}
}

// realCodecs returns the codecs that actually transform their input.
func realCodecs() map[string]Codec {
	codecs := getAllCodecs()
	delete(codecs, "NoOp")

	return codecs
}

func TestCompressionType_String(t *testing.T) {
	tests := []struct {
		name     string
		cType    format.CompressionType
		expected string
	}{
		{
			name:     "none compression",
			cType:    format.CompressionNone,
			expected: "None",
		},
		{
			name:     "gzip compression",
			cType:    format.CompressionGzip,
			expected: "Gzip",
		},
		{
			name:     "zstd compression",
			cType:    format.CompressionZstd,
			expected: "Zstd",
		},
		{
			name:     "lz4 compression",
			cType:    format.CompressionLZ4,
			expected: "LZ4",
		},
		{
			name:     "s2 compression",
			cType:    format.CompressionS2,
			expected: "S2",
		},
		{
			name:     "unknown compression",
			cType:    format.CompressionType(0xFF),
			expected: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.cType.String())
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected format.CompressionType
		ok       bool
	}{
		{
			name:     "bare recording",
			data:     append(format.Magic[:], 0x00, 0x02, 0x00, 0x01),
			expected: format.CompressionNone,
			ok:       true,
		},
		{
			name:     "gzip stream",
			data:     []byte{0x1f, 0x8b, 0x08, 0x00},
			expected: format.CompressionGzip,
			ok:       true,
		},
		{
			name:     "zstd frame",
			data:     []byte{0x28, 0xb5, 0x2f, 0xfd, 0x04, 0x58},
			expected: format.CompressionZstd,
			ok:       true,
		},
		{
			name:     "lz4 frame",
			data:     []byte{0x04, 0x22, 0x4d, 0x18, 0x64, 0x40},
			expected: format.CompressionLZ4,
			ok:       true,
		},
		{
			name:     "s2 stream",
			data:     []byte{0xff, 0x06, 0x00, 0x00, 'S', '2', 's', 'T', 'w', 'O'},
			expected: format.CompressionS2,
			ok:       true,
		},
		{
			name:     "snappy stream",
			data:     []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'},
			expected: format.CompressionS2,
			ok:       true,
		},
		{
			name: "unknown prefix",
			data: []byte{0xde, 0xad, 0xbe, 0xef},
			ok:   false,
		},
		{
			name: "truncated recording magic",
			data: format.Magic[:3],
			ok:   false,
		},
		{
			name: "empty input",
			data: nil,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, ok := Detect(tt.data)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.expected, detected)
			}
		})
	}
}

// TestDetect_CompressedOutput pins the magic constants against what the
// codecs actually emit.
func TestDetect_CompressedOutput(t *testing.T) {
	payload := bytes.Repeat([]byte("recorded event stream "), 64)

	tests := []struct {
		name     string
		codec    Codec
		expected format.CompressionType
	}{
		{name: "gzip", codec: NewGzipCompressor(), expected: format.CompressionGzip},
		{name: "zstd", codec: NewZstdCompressor(), expected: format.CompressionZstd},
		{name: "lz4", codec: NewLZ4Compressor(), expected: format.CompressionLZ4},
		{name: "s2", codec: NewS2Compressor(), expected: format.CompressionS2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := tt.codec.Compress(payload)
			require.NoError(t, err)

			detected, ok := Detect(compressed)
			require.True(t, ok)
			require.Equal(t, tt.expected, detected)
		})
	}

	t.Run("snappy compatibility mode", func(t *testing.T) {
		var buf bytes.Buffer
		zw := s2.NewWriter(&buf, s2.WriterSnappyCompat())
		_, err := zw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		detected, ok := Detect(buf.Bytes())
		require.True(t, ok)
		require.Equal(t, format.CompressionS2, detected)

		decompressed, err := NewS2Compressor().Decompress(buf.Bytes())
		require.NoError(t, err)
		require.Equal(t, payload, decompressed)
	})
}

func TestGetCodec(t *testing.T) {
	for _, cType := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionGzip,
		format.CompressionZstd,
		format.CompressionLZ4,
		format.CompressionS2,
	} {
		t.Run(cType.String(), func(t *testing.T) {
			codec, err := GetCodec(cType)
			require.NoError(t, err)
			require.NotNil(t, codec)
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := GetCodec(format.CompressionType(0xAA))
		require.ErrorIs(t, err, errs.ErrUnsupportedCompression)
	})
}

func TestCreateCodec(t *testing.T) {
	t.Run("creates fresh codec", func(t *testing.T) {
		codec, err := CreateCodec(format.CompressionGzip, "recording reader")
		require.NoError(t, err)

		data := []byte("chunked recording bytes")
		compressed, err := codec.Compress(data)
		require.NoError(t, err)

		decompressed, err := codec.Decompress(compressed)
		require.NoError(t, err)
		require.Equal(t, data, decompressed)
	})

	t.Run("unsupported type names target", func(t *testing.T) {
		_, err := CreateCodec(format.CompressionType(0xAA), "recording reader")
		require.ErrorIs(t, err, errs.ErrUnsupportedCompression)
		require.ErrorContains(t, err, "recording reader")
	})
}

// TestAllCodecs_EmptyData tests that all codecs handle empty data correctly.
func TestAllCodecs_EmptyData(t *testing.T) {
	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(nil)
			require.NoError(t, err)
			require.Empty(t, compressed)

			decompressed, err := codec.Decompress(nil)
			require.NoError(t, err)
			require.Empty(t, decompressed)

			compressed, err = codec.Compress([]byte{})
			require.NoError(t, err)

			decompressed, err = codec.Decompress(compressed)
			require.NoError(t, err)
			require.Empty(t, decompressed)
		})
	}
}

// TestAllCodecs_RoundTrip tests compression and decompression round-trip
// for all codecs.
func TestAllCodecs_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{
			name: "small_text",
			data: []byte("Hello, World!"),
		},
		{
			name: "single_byte",
			data: []byte{0x42},
		},
		{
			name: "binary_data",
			data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD, 0xFC},
		},
		{
			name: "repeated_pattern",
			data: bytes.Repeat([]byte("FLR0"), 100),
		},
		{
			name: "medium_payload",
			data: bytes.Repeat([]byte("jdk.ExecutionSample with startTime and sampledThread fields "), 256),
		},
		{
			name: "large_payload",
			data: bytes.Repeat([]byte("jdk.ExecutionSample with startTime and sampledThread fields "), 1024),
		},
		{
			name: "pseudo_random",
			data: func() []byte {
				data := make([]byte, 4096)
				for i := range data {
					if i%100 < 50 {
						data[i] = byte(i % 256)
					} else {
						data[i] = byte((i*7 + i*i) % 256)
					}
				}

				return data
			}(),
		},
		{
			name: "highly_compressible",
			data: make([]byte, 1024*1024),
		},
	}

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := codec.Compress(tc.data)
					require.NoError(t, err)
					require.NotNil(t, compressed)

					ratio := float64(len(compressed)) / float64(len(tc.data)) * 100
					t.Logf("Original: %d bytes, Compressed: %d bytes, Ratio: %.2f%%",
						len(tc.data), len(compressed), ratio)

					decompressed, err := codec.Decompress(compressed)
					require.NoError(t, err)
					require.Equal(t, tc.data, decompressed)
				})
			}
		})
	}
}

// TestAllCodecs_InvalidData tests that the real codecs reject data that is
// not theirs.
func TestAllCodecs_InvalidData(t *testing.T) {
	invalidInputs := []struct {
		name string
		data []byte
	}{
		{
			name: "random_bytes",
			data: []byte{0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name: "text_as_compressed",
			data: []byte("this is not compressed data"),
		},
		{
			name: "bare_recording_as_compressed",
			data: append(format.Magic[:], make([]byte, 64)...),
		},
	}

	for codecName, codec := range realCodecs() {
		t.Run(codecName, func(t *testing.T) {
			for _, input := range invalidInputs {
				t.Run(input.name, func(t *testing.T) {
					_, err := codec.Decompress(input.data)
					require.Error(t, err)
				})
			}
		})
	}
}

// TestAllCodecs_ConcurrentUsage exercises the pooled encoder and decoder
// state under concurrent calls.
func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	const numGoroutines = 20

	testData := bytes.Repeat([]byte("concurrent recording compression "), 32)

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(testData)
			require.NoError(t, err)

			done := make(chan error, numGoroutines*2)

			for range numGoroutines {
				go func() {
					_, err := codec.Compress(testData)
					done <- err
				}()

				go func() {
					decompressed, err := codec.Decompress(compressed)
					if err != nil {
						done <- err
						return
					}
					if !bytes.Equal(testData, decompressed) {
						done <- fmt.Errorf("decompressed data mismatch")
						return
					}
					done <- nil
				}()
			}

			for range numGoroutines * 2 {
				require.NoError(t, <-done)
			}
		})
	}
}

// TestAllCodecs_ResultIsIndependent verifies decompressed output does not
// alias pooled scratch memory.
func TestAllCodecs_ResultIsIndependent(t *testing.T) {
	original := bytes.Repeat([]byte("pooled buffer aliasing check "), 64)

	for codecName, codec := range realCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(original)
			require.NoError(t, err)

			first, err := codec.Decompress(compressed)
			require.NoError(t, err)

			// A second pass reuses the pooled scratch buffer; the first
			// result must survive it untouched.
			second, err := codec.Decompress(compressed)
			require.NoError(t, err)

			require.Equal(t, original, first)
			require.Equal(t, original, second)
		})
	}
}

func TestNoOpCompressor_RoundTrip(t *testing.T) {
	compressor := NewNoOpCompressor()
	data := []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}

	compressed, err := compressor.Compress(data)
	require.NoError(t, err)
	require.Same(t, &data[0], &compressed[0])

	decompressed, err := compressor.Decompress(compressed)
	require.NoError(t, err)
	require.Same(t, &data[0], &decompressed[0])
}

func TestCompressionStats_Calculations(t *testing.T) {
	tests := []struct {
		name            string
		stats           CompressionStats
		expectedRatio   float64
		expectedSavings float64
	}{
		{
			name: "good compression",
			stats: CompressionStats{
				Algorithm:      format.CompressionZstd,
				OriginalSize:   1000,
				CompressedSize: 300,
			},
			expectedRatio:   0.3,
			expectedSavings: 70.0,
		},
		{
			name: "no compression benefit",
			stats: CompressionStats{
				Algorithm:      format.CompressionNone,
				OriginalSize:   500,
				CompressedSize: 500,
			},
			expectedRatio:   1.0,
			expectedSavings: 0.0,
		},
		{
			name: "compression overhead",
			stats: CompressionStats{
				Algorithm:      format.CompressionS2,
				OriginalSize:   100,
				CompressedSize: 120,
			},
			expectedRatio:   1.2,
			expectedSavings: -20.0,
		},
		{
			name: "zero original size",
			stats: CompressionStats{
				Algorithm:      format.CompressionLZ4,
				OriginalSize:   0,
				CompressedSize: 100,
			},
			expectedRatio:   0.0,
			expectedSavings: 100.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.expectedRatio, tt.stats.CompressionRatio(), 0.001)
			require.InDelta(t, tt.expectedSavings, tt.stats.SpaceSavings(), 0.001)
		})
	}
}
