// Package varint implements the variable-length integer encoding used
// throughout flight-recording chunks.
//
// Each byte contributes 7 bits, least significant group first, with the
// high bit as a continuation flag. A value occupies at most 9 bytes; the
// ninth byte contributes all 8 of its bits (bits 56-63) and is never a
// continuation, so the full unsigned 64-bit space round-trips. There is no
// zig-zag step: signed fields reassemble the unsigned bit pattern, truncate
// it to the field's declared width, and reinterpret it as two's complement.
package varint

import (
	"fmt"

	"github.com/flightrec/flr/errs"
)

// MaxLen is the maximum byte length of an encoded value.
const MaxLen = 9

// Uvarint decodes an unsigned value from the start of buf.
//
// Parameters:
//   - buf: byte slice positioned at the first byte of the encoded value
//
// Returns:
//   - uint64: the decoded value
//   - int: the number of bytes consumed (1 to MaxLen)
//   - error: errs.ErrMalformedVarint if buf ends while a continuation bit
//     is still pending
func Uvarint(buf []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(buf) && i < MaxLen; i++ {
		b := buf[i]
		if i == MaxLen-1 {
			// The ninth byte carries bits 56-63 whole; its high bit is data.
			return v | uint64(b)<<56, MaxLen, nil
		}

		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: unterminated after %d bytes", errs.ErrMalformedVarint, len(buf))
}

// Int64 decodes a signed 64-bit value: the unsigned bit pattern
// reinterpreted as two's complement.
func Int64(buf []byte) (int64, int, error) {
	u, n, err := Uvarint(buf)
	return int64(u), n, err
}

// Int32 decodes a signed 32-bit value: the unsigned bit pattern truncated
// to 32 bits and reinterpreted as two's complement.
func Int32(buf []byte) (int32, int, error) {
	u, n, err := Uvarint(buf)
	return int32(uint32(u)), n, err
}

// Int16 decodes a signed 16-bit value.
func Int16(buf []byte) (int16, int, error) {
	u, n, err := Uvarint(buf)
	return int16(uint16(u)), n, err
}

// Int8 decodes a signed 8-bit value.
func Int8(buf []byte) (int8, int, error) {
	u, n, err := Uvarint(buf)
	return int8(uint8(u)), n, err
}

// AppendUvarint appends the encoding of v to dst and returns the extended
// slice. The output matches the JVM writer bit for bit, including the
// whole-byte ninth group for values that need more than 56 bits.
//
// Example:
//
//	buf := varint.AppendUvarint(nil, 300)
//	// buf == []byte{0xAC, 0x02}
func AppendUvarint(dst []byte, v uint64) []byte {
	for range MaxLen - 1 {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}

		dst = append(dst, b|0x80)
	}

	// 56 bits written; the remainder fits in one whole byte.
	return append(dst, byte(v))
}

// AppendVarint appends the encoding of a signed value: its two's complement
// bit pattern encoded unsigned. Negative values always occupy MaxLen bytes.
func AppendVarint(dst []byte, v int64) []byte {
	return AppendUvarint(dst, uint64(v))
}

// Len returns the encoded byte length of v without encoding it.
func Len(v uint64) int {
	n := 1
	for v >= 0x80 && n < MaxLen {
		v >>= 7
		n++
	}

	return n
}
