package value

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/varint"
)

// DecodeString decodes one string record from the start of buf.
//
// A string record is a tag byte followed by a tag-specific payload
// (format.StringEncoding). The result is Null for the null tag, String for
// inline text, or ConstantRef carrying stringTypeID for the constant-pool
// tag; the key's pool type is implied by the field, not the record, so the
// caller supplies it.
//
// Parameters:
//   - buf: byte slice positioned at the tag byte
//   - stringTypeID: the chunk's type id for string, used for pool references
//   - in: optional interner for deduplicating decoded text; may be nil
//
// Returns:
//   - Value: Null, String, or ConstantRef
//   - int: bytes consumed
//   - error: errs.ErrTruncatedRecord, errs.ErrMalformedVarint, or
//     errs.ErrInvalidStringEncoding
func DecodeString(buf []byte, stringTypeID int64, in Interner) (Value, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("%w: missing string encoding tag", errs.ErrTruncatedRecord)
	}

	tag := format.StringEncoding(buf[0])
	rest := buf[1:]

	switch tag {
	case format.StringNull:
		return Null{}, 1, nil

	case format.StringEmpty:
		return String(""), 1, nil

	case format.StringConstantPool:
		key, n, err := varint.Int64(rest)
		if err != nil {
			return nil, 0, err
		}

		return ConstantRef{TypeID: stringTypeID, Key: key}, 1 + n, nil

	case format.StringUTF8, format.StringLatin1:
		length, n, err := varint.Int32(rest)
		if err != nil {
			return nil, 0, err
		}
		if length < 0 {
			return nil, 0, fmt.Errorf("%w: negative string length %d", errs.ErrInvalidStringEncoding, length)
		}
		if len(rest) < n+int(length) {
			return nil, 0, fmt.Errorf("%w: string needs %d bytes, %d remain", errs.ErrTruncatedRecord, length, len(rest)-n)
		}

		raw := rest[n : n+int(length)]
		if tag == format.StringLatin1 {
			return String(latin1ToUTF8(raw, in)), 1 + n + int(length), nil
		}

		return String(internBytes(raw, in)), 1 + n + int(length), nil

	case format.StringCharArray:
		count, n, err := varint.Int32(rest)
		if err != nil {
			return nil, 0, err
		}
		if count < 0 {
			return nil, 0, fmt.Errorf("%w: negative char count %d", errs.ErrInvalidStringEncoding, count)
		}

		var sb strings.Builder
		pos := n
		for range count {
			cp, m, err := varint.Int32(rest[pos:])
			if err != nil {
				return nil, 0, err
			}

			sb.WriteRune(rune(cp))
			pos += m
		}

		return String(sb.String()), 1 + pos, nil

	default:
		return nil, 0, fmt.Errorf("%w: tag %d", errs.ErrInvalidStringEncoding, buf[0])
	}
}

// SkipString returns the byte extent of the string record at the start of
// buf without materializing its text.
func SkipString(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: missing string encoding tag", errs.ErrTruncatedRecord)
	}

	tag := format.StringEncoding(buf[0])
	rest := buf[1:]

	switch tag {
	case format.StringNull, format.StringEmpty:
		return 1, nil

	case format.StringConstantPool:
		_, n, err := varint.Int64(rest)
		if err != nil {
			return 0, err
		}

		return 1 + n, nil

	case format.StringUTF8, format.StringLatin1:
		length, n, err := varint.Int32(rest)
		if err != nil {
			return 0, err
		}
		if length < 0 {
			return 0, fmt.Errorf("%w: negative string length %d", errs.ErrInvalidStringEncoding, length)
		}
		if len(rest) < n+int(length) {
			return 0, fmt.Errorf("%w: string needs %d bytes, %d remain", errs.ErrTruncatedRecord, length, len(rest)-n)
		}

		return 1 + n + int(length), nil

	case format.StringCharArray:
		count, n, err := varint.Int32(rest)
		if err != nil {
			return 0, err
		}
		if count < 0 {
			return 0, fmt.Errorf("%w: negative char count %d", errs.ErrInvalidStringEncoding, count)
		}

		pos := n
		for range count {
			_, m, err := varint.Int32(rest[pos:])
			if err != nil {
				return 0, err
			}

			pos += m
		}

		return 1 + pos, nil

	default:
		return 0, fmt.Errorf("%w: tag %d", errs.ErrInvalidStringEncoding, buf[0])
	}
}

func internBytes(b []byte, in Interner) string {
	if in != nil {
		return in.Intern(b)
	}

	return string(b)
}

// latin1ToUTF8 maps each Latin-1 byte to its identical code point. Pure
// ASCII payloads convert without transcoding.
func latin1ToUTF8(b []byte, in Interner) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}

	if ascii {
		return internBytes(b, in)
	}

	var sb strings.Builder
	sb.Grow(len(b) + len(b)/2)
	for _, c := range b {
		sb.WriteRune(rune(c))
	}

	return sb.String()
}
