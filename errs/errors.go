// Package errs defines the sentinel errors returned by the flr decoding
// engine.
//
// Every error that crosses a package boundary wraps one of these sentinels
// with fmt.Errorf("%w: ...") so callers can classify failures with
// errors.Is while still seeing the offending offset, type id, or value in
// the message.
package errs

import "errors"

// Structural errors. These indicate the byte source itself is damaged or
// not a flight recording; decoding of the current chunk aborts.
var (
	// ErrBadMagic indicates the buffer does not start with the "FLR\x00" tag.
	ErrBadMagic = errors.New("bad magic")

	// ErrUnsupportedVersion indicates the chunk's major version is newer than
	// this implementation understands.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrTruncatedHeader indicates the buffer is shorter than the fixed chunk
	// header, or the header declares sizes/offsets outside the buffer.
	ErrTruncatedHeader = errors.New("truncated header")

	// ErrTruncatedRecord indicates a record's declared size runs past the end
	// of the chunk, or a payload ended mid-field.
	ErrTruncatedRecord = errors.New("truncated record")

	// ErrMalformedVarint indicates a variable-length integer did not
	// terminate before the buffer ended.
	ErrMalformedVarint = errors.New("malformed varint")

	// ErrInvalidStringEncoding indicates a string record carries an encoding
	// tag outside the defined set.
	ErrInvalidStringEncoding = errors.New("invalid string encoding")
)

// Metadata errors.
var (
	// ErrInvalidMetadata indicates the metadata event payload is structurally
	// damaged: a string table index out of range, an element in the wrong
	// position, or a required attribute missing.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrUnknownTypeReference indicates a field references a type id that is
	// not defined in the same metadata payload.
	ErrUnknownTypeReference = errors.New("unknown type reference")

	// ErrDuplicateTypeID indicates two classes in one metadata payload declare
	// the same type id.
	ErrDuplicateTypeID = errors.New("duplicate type id")
)

// Constant pool errors.
var (
	// ErrInvalidCheckpoint indicates a checkpoint record is structurally
	// damaged: the delta chain points at a non-checkpoint record, loops, or
	// leaves the chunk.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")

	// ErrUnknownConstant indicates a resolve request for a (type id, key)
	// pair no checkpoint in the chunk defined.
	ErrUnknownConstant = errors.New("unknown constant")

	// ErrCyclicConstantReference indicates constant resolution re-entered an
	// entry that is already being resolved.
	ErrCyclicConstantReference = errors.New("cyclic constant reference")
)

// Decoding errors.
var (
	// ErrNotReady indicates an operation that needs the chunk's registry or
	// pools ran before they were loaded, or after the chunk was closed.
	ErrNotReady = errors.New("chunk not ready")

	// ErrUnknownEventType indicates a record's type id has no class in the
	// registry; returned only under the strict decoding policy.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrDepthLimitExceeded indicates nested decoding or resolution passed
	// the configured depth bound.
	ErrDepthLimitExceeded = errors.New("depth limit exceeded")
)

// Recording errors.
var (
	// ErrUnsupportedCompression indicates a recording is compressed with an
	// algorithm this package has no codec for.
	ErrUnsupportedCompression = errors.New("unsupported compression")
)
