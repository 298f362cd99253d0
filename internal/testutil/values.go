package testutil

import (
	"encoding/binary"
	"math"

	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/varint"
)

// AppendUtf8 appends an inline UTF-8 string record: tag, length, bytes.
func AppendUtf8(dst []byte, s string) []byte {
	dst = append(dst, byte(format.StringUTF8))
	dst = varint.AppendUvarint(dst, uint64(len(s)))

	return append(dst, s...)
}

// Utf8Value encodes an inline UTF-8 string field value.
func Utf8Value(s string) []byte {
	return AppendUtf8(nil, s)
}

// NullStringValue encodes the null string record.
func NullStringValue() []byte {
	return []byte{byte(format.StringNull)}
}

// EmptyStringValue encodes the empty string record.
func EmptyStringValue() []byte {
	return []byte{byte(format.StringEmpty)}
}

// StringRefValue encodes a string record deferring to the constant pool.
func StringRefValue(key int64) []byte {
	return varint.AppendVarint([]byte{byte(format.StringConstantPool)}, key)
}

// RefValue encodes the bare pool key a constantPool-flagged field carries.
func RefValue(key int64) []byte {
	return varint.AppendVarint(nil, key)
}

// BoolValue encodes a boolean field value.
func BoolValue(v bool) []byte {
	if v {
		return []byte{1}
	}

	return []byte{0}
}

// ByteValue encodes a byte field value: one raw byte.
func ByteValue(v int8) []byte {
	return []byte{byte(v)}
}

// ShortValue encodes a short field value the way the JVM writer does,
// as a varint over the zero-extended 16-bit pattern.
func ShortValue(v int16) []byte {
	return varint.AppendUvarint(nil, uint64(uint16(v)))
}

// IntValue encodes an int field value as a varint over the zero-extended
// 32-bit pattern.
func IntValue(v int32) []byte {
	return varint.AppendUvarint(nil, uint64(uint32(v)))
}

// LongValue encodes a long field value as a varint over the full 64-bit
// pattern.
func LongValue(v int64) []byte {
	return varint.AppendVarint(nil, v)
}

// CharValue encodes a char field value as a varint code point.
func CharValue(r rune) []byte {
	return varint.AppendUvarint(nil, uint64(r))
}

// FloatValue encodes a float field value as 4 big-endian IEEE 754 bytes.
func FloatValue(f float32) []byte {
	return binary.BigEndian.AppendUint32(nil, math.Float32bits(f))
}

// DoubleValue encodes a double field value as 8 big-endian IEEE 754 bytes.
func DoubleValue(f float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(f))
}

// ArrayValue encodes a dimensioned field value: element count then each
// element's encoding.
func ArrayValue(elems ...[]byte) []byte {
	dst := varint.AppendUvarint(nil, uint64(len(elems)))
	for _, e := range elems {
		dst = append(dst, e...)
	}

	return dst
}

// Concat joins encoded field values into one struct payload.
func Concat(values ...[]byte) []byte {
	var dst []byte
	for _, v := range values {
		dst = append(dst, v...)
	}

	return dst
}

// EntrySpec declares one constant-pool entry: its key and the encoded
// value bytes.
type EntrySpec struct {
	Key   int64
	Value []byte
}

// PoolSpec declares one per-type pool inside a checkpoint.
type PoolSpec struct {
	TypeID  int64
	Entries []EntrySpec
}

// CheckpointRecord frames a checkpoint record. delta is the backward offset
// to the previous checkpoint, 0 for the oldest.
func CheckpointRecord(delta int64, mask format.CheckpointType, pools ...PoolSpec) []byte {
	// Start ticks, duration ticks, then the backward delta.
	payload := varint.AppendVarint(nil, 0)
	payload = varint.AppendVarint(payload, 0)
	payload = varint.AppendVarint(payload, delta)
	payload = append(payload, byte(mask))
	payload = varint.AppendUvarint(payload, uint64(len(pools)))

	for _, p := range pools {
		payload = varint.AppendVarint(payload, p.TypeID)
		payload = varint.AppendUvarint(payload, uint64(len(p.Entries)))
		for _, e := range p.Entries {
			payload = varint.AppendVarint(payload, e.Key)
			payload = append(payload, e.Value...)
		}
	}

	return Record(format.EventTypeCheckpoint, payload)
}
