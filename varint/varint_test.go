package varint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flightrec/flr/errs"
)

func TestUvarintRoundTrip(t *testing.T) {
	boundaries := []uint64{
		0, 1, 0x7f, 0x80, 300,
		0x3fff, 0x4000,
		0x1fffff, 0x200000,
		0xfffffff, 0x10000000,
		1<<35 - 1, 1 << 35,
		1<<42 - 1, 1 << 42,
		1<<49 - 1, 1 << 49,
		1<<56 - 1, 1 << 56,
		1 << 63,
		math.MaxUint64,
	}

	t.Run("Boundaries", func(t *testing.T) {
		for _, want := range boundaries {
			buf := AppendUvarint(nil, want)
			require.LessOrEqual(t, len(buf), MaxLen)
			require.Equal(t, Len(want), len(buf))

			got, n, err := Uvarint(buf)
			require.NoError(t, err)
			require.Equal(t, len(buf), n)
			require.Equal(t, want, got)
		}
	})

	t.Run("RandomSweep", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for range 10000 {
			want := rng.Uint64() >> uint(rng.Intn(64))
			buf := AppendUvarint(nil, want)

			got, n, err := Uvarint(buf)
			require.NoError(t, err)
			require.Equal(t, len(buf), n)
			require.Equal(t, want, got)
		}
	})

	t.Run("TrailingBytesIgnored", func(t *testing.T) {
		buf := AppendUvarint(nil, 300)
		buf = append(buf, 0xde, 0xad)

		got, n, err := Uvarint(buf)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Equal(t, uint64(300), got)
	})
}

func TestUvarintNinthByte(t *testing.T) {
	t.Run("AllBitsSet", func(t *testing.T) {
		buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

		got, n, err := Uvarint(buf)
		require.NoError(t, err)
		require.Equal(t, MaxLen, n)
		require.Equal(t, uint64(math.MaxUint64), got)
	})

	t.Run("HighBitIsData", func(t *testing.T) {
		// 1<<63 needs bit 63, which lives in the ninth byte's high bit.
		buf := AppendUvarint(nil, 1<<63)
		require.Len(t, buf, MaxLen)
		require.Equal(t, byte(0x80), buf[MaxLen-1])

		got, n, err := Uvarint(buf)
		require.NoError(t, err)
		require.Equal(t, MaxLen, n)
		require.Equal(t, uint64(1)<<63, got)
	})
}

func TestUvarintMalformed(t *testing.T) {
	t.Run("EmptyBuffer", func(t *testing.T) {
		_, _, err := Uvarint(nil)
		require.ErrorIs(t, err, errs.ErrMalformedVarint)
	})

	t.Run("TruncatedPrefixes", func(t *testing.T) {
		for _, v := range []uint64{0x80, 0x4000, 1 << 56, math.MaxUint64} {
			full := AppendUvarint(nil, v)
			for cut := 1; cut < len(full); cut++ {
				_, _, err := Uvarint(full[:cut])
				require.ErrorIs(t, err, errs.ErrMalformedVarint, "value %#x cut to %d bytes", v, cut)
			}
		}
	})

	t.Run("AllContinuationBytes", func(t *testing.T) {
		for n := 1; n < MaxLen; n++ {
			buf := make([]byte, n)
			for i := range buf {
				buf[i] = 0x80
			}

			_, _, err := Uvarint(buf)
			require.ErrorIs(t, err, errs.ErrMalformedVarint)
		}
	})
}

func TestSignedWidths(t *testing.T) {
	t.Run("Int64", func(t *testing.T) {
		for _, want := range []int64{0, 1, -1, 63, -64, math.MaxInt64, math.MinInt64} {
			buf := AppendVarint(nil, want)

			got, n, err := Int64(buf)
			require.NoError(t, err)
			require.Equal(t, len(buf), n)
			require.Equal(t, want, got)
		}
	})

	t.Run("NegativeLongUsesNineBytes", func(t *testing.T) {
		buf := AppendVarint(nil, -1)
		require.Len(t, buf, MaxLen)
		require.Equal(t, byte(0xff), buf[MaxLen-1])
	})

	t.Run("Int32", func(t *testing.T) {
		for _, want := range []int32{0, 42, -42, math.MaxInt32, math.MinInt32} {
			buf := AppendUvarint(nil, uint64(uint32(want)))

			got, _, err := Int32(buf)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	})

	t.Run("Int32TruncatesHighBits", func(t *testing.T) {
		// A sign-extended encoding carries 64 bits; the 32-bit view keeps
		// only the low word.
		buf := AppendVarint(nil, -1)

		got, _, err := Int32(buf)
		require.NoError(t, err)
		require.Equal(t, int32(-1), got)
	})

	t.Run("Int16", func(t *testing.T) {
		for _, want := range []int16{0, 1, -1, math.MaxInt16, math.MinInt16} {
			buf := AppendUvarint(nil, uint64(uint16(want)))

			got, _, err := Int16(buf)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	})

	t.Run("Int8", func(t *testing.T) {
		for _, want := range []int8{0, 1, -1, math.MaxInt8, math.MinInt8} {
			buf := AppendUvarint(nil, uint64(uint8(want)))

			got, _, err := Int8(buf)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	})
}

func TestLen(t *testing.T) {
	require.Equal(t, 1, Len(0))
	require.Equal(t, 1, Len(0x7f))
	require.Equal(t, 2, Len(0x80))
	require.Equal(t, 8, Len(1<<55))
	require.Equal(t, 9, Len(1<<56))
	require.Equal(t, 9, Len(math.MaxUint64))
}
