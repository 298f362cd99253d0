// Package event decodes event records against a chunk's type registry.
//
// The decoder walks a class's declared fields in wire order and produces
// the value model of package value. Constant-pool indirections decode to
// value.ConstantRef by default; with eager resolution enabled and a
// Resolver supplied they are expanded in place. The same walk, run without
// building values, measures the byte extent of a value, which is how the
// constant-pool layer indexes pool entries it has not decoded yet.
package event

import (
	"fmt"

	"github.com/flightrec/flr/chunk"
	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/metadata"
	"github.com/flightrec/flr/value"
)

// DefaultMaxDepth bounds value nesting when Policy.MaxDepth is unset. Real
// schemas are a handful of levels deep; the bound exists for corrupt chunks
// whose classes nest into an inline cycle.
const DefaultMaxDepth = 64

// Resolver looks up a decoded constant-pool entry by pool type and key.
// The constant-pool layer implements it.
type Resolver interface {
	Resolve(typeID, key int64) (value.Value, error)
}

// Policy controls how records are decoded.
type Policy struct {
	// Strict rejects records whose type id has no class in the registry
	// instead of wrapping their payload in a value.Opaque.
	Strict bool
	// ResolveRefs expands constant-pool references into their decoded
	// values while decoding, when a Resolver is supplied.
	ResolveRefs bool
	// Interner deduplicates decoded strings; nil disables deduplication.
	Interner value.Interner
	// MaxDepth bounds value nesting; 0 means DefaultMaxDepth.
	MaxDepth int
}

// Event is one decoded event record.
type Event struct {
	// TypeID is the record's type id.
	TypeID int64
	// Class is the registry class the payload was decoded with, nil when
	// the payload is opaque.
	Class *metadata.Class
	// Value is the decoded payload: a value.Struct for registered classes,
	// a value.Opaque otherwise.
	Value value.Value
}

// Name returns the event's class name, empty for opaque events.
func (e Event) Name() string {
	if e.Class == nil {
		return ""
	}

	return e.Class.Name
}

// Decoder decodes record payloads against one chunk's registry. A Decoder
// is cheap to construct and safe for concurrent use.
type Decoder struct {
	reg      *metadata.Registry
	policy   Policy
	maxDepth int
}

// NewDecoder returns a decoder over the given registry.
//
// Parameters:
//   - reg: the chunk's type registry
//   - policy: decoding policy; the zero value is lenient and lazy
//
// Returns:
//   - *Decoder: the decoder
func NewDecoder(reg *metadata.Registry, policy Policy) *Decoder {
	depth := policy.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}

	return &Decoder{reg: reg, policy: policy, maxDepth: depth}
}

// DecodeRecord decodes one scanned record into an Event.
//
// Metadata and checkpoint records are never events and always error.
// Records whose type id has no class decode to a value.Opaque payload, or
// error under Policy.Strict. Payload bytes past the decoded value are
// ignored; producers may pad records.
//
// Parameters:
//   - rec: a record from the chunk scanner
//   - res: pool resolver for eager reference expansion; may be nil
//
// Returns:
//   - Event: the decoded event
//   - error: errs.ErrUnknownEventType, errs.ErrTruncatedRecord,
//     errs.ErrDepthLimitExceeded, or a resolution error from res
func (d *Decoder) DecodeRecord(rec chunk.RawRecord, res Resolver) (Event, error) {
	if rec.TypeID == format.EventTypeMetadata || rec.TypeID == format.EventTypeCheckpoint {
		return Event{}, fmt.Errorf("%w: reserved type id %d", errs.ErrUnknownEventType, rec.TypeID)
	}

	c, ok := d.reg.Class(rec.TypeID)
	if !ok {
		if d.policy.Strict {
			return Event{}, fmt.Errorf("%w: type id %d at offset %d", errs.ErrUnknownEventType, rec.TypeID, rec.Offset)
		}

		return Event{
			TypeID: rec.TypeID,
			Value:  value.Opaque{TypeID: rec.TypeID, Data: rec.Payload},
		}, nil
	}

	v, _, err := d.walkClass(rec.Payload, c, res, 0, true)
	if err != nil {
		return Event{}, fmt.Errorf("event %s at offset %d: %w", c.Name, rec.Offset, err)
	}

	return Event{TypeID: rec.TypeID, Class: c, Value: v}, nil
}

// DecodeValue decodes one value of the given type from the start of data.
// Constant-pool references stay value.ConstantRef regardless of policy;
// the constant-pool layer expands them itself to keep cycle tracking in
// one place.
//
// Returns:
//   - value.Value: the decoded value
//   - int: bytes consumed
//   - error: errs.ErrUnknownTypeReference when no class carries typeID, or
//     a decoding error
func (d *Decoder) DecodeValue(data []byte, typeID int64) (value.Value, int, error) {
	c, ok := d.reg.Class(typeID)
	if !ok {
		return nil, 0, fmt.Errorf("%w: type id %d", errs.ErrUnknownTypeReference, typeID)
	}

	return d.walkClass(data, c, nil, 0, true)
}

// Measure returns the byte extent of one value of the given type without
// building it.
func (d *Decoder) Measure(data []byte, typeID int64) (int, error) {
	c, ok := d.reg.Class(typeID)
	if !ok {
		return 0, fmt.Errorf("%w: type id %d", errs.ErrUnknownTypeReference, typeID)
	}

	_, n, err := d.walkClass(data, c, nil, 0, false)

	return n, err
}
