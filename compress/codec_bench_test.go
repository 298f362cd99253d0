package compress

import (
	"fmt"
	"testing"
)

// generateBenchmarkData creates synthetic recording bytes with the mixed
// texture of real chunks: varint-heavy event payloads interleaved with
// repetitive string table text.
func generateBenchmarkData(size int) []byte {
	data := make([]byte, size)
	pattern := []byte("jdk.ExecutionSample\x00java.lang.Thread\x00startTime\x80\x95\xf7\x03")
	for i := range data {
		if i%3 == 0 {
			data[i] = byte((i*7 + i*i) % 128)
		} else {
			data[i] = pattern[i%len(pattern)]
		}
	}

	return data
}

func BenchmarkAllCodecs_Compress(b *testing.B) {
	benchSizes := []int{4096, 65536, 1048576}

	for name, codec := range getAllCodecs() {
		for _, size := range benchSizes {
			data := generateBenchmarkData(size)

			b.Run(fmt.Sprintf("%s_%dKB", name, size/1024), func(b *testing.B) {
				b.SetBytes(int64(size))
				b.ResetTimer()

				for b.Loop() {
					if _, err := codec.Compress(data); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkAllCodecs_Decompress(b *testing.B) {
	benchSizes := []int{4096, 65536, 1048576}

	for name, codec := range getAllCodecs() {
		for _, size := range benchSizes {
			data := generateBenchmarkData(size)
			compressed, err := codec.Compress(data)
			if err != nil {
				b.Fatal(err)
			}

			b.Run(fmt.Sprintf("%s_%dKB", name, size/1024), func(b *testing.B) {
				b.SetBytes(int64(size))
				b.ResetTimer()

				for b.Loop() {
					if _, err := codec.Decompress(compressed); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkAllCodecs_Parallel(b *testing.B) {
	const size = 65536

	for name, codec := range getAllCodecs() {
		data := generateBenchmarkData(size)
		compressed, err := codec.Compress(data)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := codec.Decompress(compressed); err != nil {
						b.Fatal(err)
					}
				}
			})
		})
	}
}

func BenchmarkDetect(b *testing.B) {
	codec := NewZstdCompressor()
	compressed, err := codec.Compress(generateBenchmarkData(4096))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()

	for b.Loop() {
		if _, ok := Detect(compressed); !ok {
			b.Fatal("detection failed")
		}
	}
}
