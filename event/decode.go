package event

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/metadata"
	"github.com/flightrec/flr/value"
	"github.com/flightrec/flr/varint"
)

// walkClass decodes or measures one value of class c at the start of buf.
// With build false it computes the extent only and allocates nothing; the
// returned value is nil.
func (d *Decoder) walkClass(buf []byte, c *metadata.Class, res Resolver, depth int, build bool) (value.Value, int, error) {
	if depth > d.maxDepth {
		return nil, 0, fmt.Errorf("%w: value nesting deeper than %d", errs.ErrDepthLimitExceeded, d.maxDepth)
	}

	switch c.Primitive() {
	case metadata.PrimBoolean:
		if len(buf) < 1 {
			return nil, 0, fmt.Errorf("%w: boolean needs one byte", errs.ErrTruncatedRecord)
		}
		if !build {
			return nil, 1, nil
		}

		return value.Bool(buf[0] != 0), 1, nil

	case metadata.PrimByte:
		if len(buf) < 1 {
			return nil, 0, fmt.Errorf("%w: byte needs one byte", errs.ErrTruncatedRecord)
		}
		if !build {
			return nil, 1, nil
		}

		return value.Int{Bits: 8, Signed: true, V: int64(int8(buf[0]))}, 1, nil

	case metadata.PrimShort:
		v, n, err := varint.Int16(buf)
		if err != nil {
			return nil, 0, err
		}
		if !build {
			return nil, n, nil
		}

		return value.Int{Bits: 16, Signed: true, V: int64(v)}, n, nil

	case metadata.PrimInt:
		v, n, err := varint.Int32(buf)
		if err != nil {
			return nil, 0, err
		}
		if !build {
			return nil, n, nil
		}

		return value.Int{Bits: 32, Signed: true, V: int64(v)}, n, nil

	case metadata.PrimLong:
		v, n, err := varint.Int64(buf)
		if err != nil {
			return nil, 0, err
		}
		if !build {
			return nil, n, nil
		}

		return value.Int{Bits: 64, Signed: true, V: v}, n, nil

	case metadata.PrimChar:
		cp, n, err := varint.Uvarint(buf)
		if err != nil {
			return nil, 0, err
		}
		if !build {
			return nil, n, nil
		}

		return value.Char(rune(cp)), n, nil

	case metadata.PrimFloat:
		if len(buf) < 4 {
			return nil, 0, fmt.Errorf("%w: float needs 4 bytes, %d remain", errs.ErrTruncatedRecord, len(buf))
		}
		if !build {
			return nil, 4, nil
		}

		return value.Float{Bits: 32, V: float64(math.Float32frombits(binary.BigEndian.Uint32(buf)))}, 4, nil

	case metadata.PrimDouble:
		if len(buf) < 8 {
			return nil, 0, fmt.Errorf("%w: double needs 8 bytes, %d remain", errs.ErrTruncatedRecord, len(buf))
		}
		if !build {
			return nil, 8, nil
		}

		return value.Float{Bits: 64, V: math.Float64frombits(binary.BigEndian.Uint64(buf))}, 8, nil

	case metadata.PrimString:
		if !build {
			n, err := value.SkipString(buf)

			return nil, n, err
		}

		v, n, err := value.DecodeString(buf, d.reg.StringTypeID(), d.policy.Interner)
		if err != nil {
			return nil, 0, err
		}
		if ref, ok := v.(value.ConstantRef); ok {
			return d.maybeResolve(ref, res, n)
		}

		return v, n, nil
	}

	// Composite: fields decode back to back in declared order.
	pos := 0

	var fields []value.Field
	if build {
		fields = make([]value.Field, 0, len(c.Fields))
	}

	for i := range c.Fields {
		f := &c.Fields[i]

		v, n, err := d.walkField(buf[pos:], f, res, depth, build)
		if err != nil {
			return nil, 0, fmt.Errorf("field %s.%s: %w", c.Name, f.Name, err)
		}
		pos += n

		if build {
			fields = append(fields, value.Field{Name: f.Name, Value: v})
		}
	}

	if !build {
		return nil, pos, nil
	}

	return value.Struct{TypeID: c.ID, Fields: fields}, pos, nil
}

func (d *Decoder) walkField(buf []byte, f *metadata.Field, res Resolver, depth int, build bool) (value.Value, int, error) {
	if !f.IsArray() {
		return d.fieldElement(buf, f, res, depth, build)
	}

	count, n, err := varint.Int32(buf)
	if err != nil {
		return nil, 0, err
	}
	// Each element takes at least one byte on the wire.
	if count < 0 || int64(count) > int64(len(buf)-n) {
		return nil, 0, fmt.Errorf("%w: array declares %d elements, %d bytes remain", errs.ErrTruncatedRecord, count, len(buf)-n)
	}

	pos := n

	var elems value.Array
	if build {
		elems = make(value.Array, 0, count)
	}

	for range count {
		v, m, err := d.fieldElement(buf[pos:], f, res, depth, build)
		if err != nil {
			return nil, 0, err
		}
		pos += m

		if build {
			elems = append(elems, v)
		}
	}

	if !build {
		return nil, pos, nil
	}

	return elems, pos, nil
}

// fieldElement decodes one scalar occurrence of a field: a pool key for
// constantPool fields, an inline value otherwise.
func (d *Decoder) fieldElement(buf []byte, f *metadata.Field, res Resolver, depth int, build bool) (value.Value, int, error) {
	if f.ConstantPool {
		key, n, err := varint.Int64(buf)
		if err != nil {
			return nil, 0, err
		}
		if !build {
			return nil, n, nil
		}

		return d.maybeResolve(value.ConstantRef{TypeID: f.TypeID, Key: key}, res, n)
	}

	c, ok := d.reg.Class(f.TypeID)
	if !ok {
		return nil, 0, fmt.Errorf("%w: type id %d", errs.ErrUnknownTypeReference, f.TypeID)
	}

	v, n, err := d.walkClass(buf, c, res, depth+1, build)
	if err != nil {
		return nil, 0, err
	}

	if build && f.Unsigned() {
		if iv, ok := v.(value.Int); ok {
			iv.Signed = false
			v = iv
		}
	}

	return v, n, nil
}

// maybeResolve expands a pool reference through res when the policy asks
// for eager resolution; otherwise the reference itself is the value.
func (d *Decoder) maybeResolve(ref value.ConstantRef, res Resolver, n int) (value.Value, int, error) {
	if !d.policy.ResolveRefs || res == nil {
		return ref, n, nil
	}

	v, err := res.Resolve(ref.TypeID, ref.Key)
	if err != nil {
		return nil, 0, err
	}

	return v, n, nil
}
