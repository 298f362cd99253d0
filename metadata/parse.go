package metadata

import (
	"fmt"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/value"
	"github.com/flightrec/flr/varint"
)

// maxElementDepth bounds element nesting while parsing. Well-formed trees
// are four levels deep; anything past this is a corrupt or hostile payload.
const maxElementDepth = 64

// Parse decodes a metadata record payload into a Registry.
//
// The payload layout is three header varints (start time, duration,
// metadata id), the string table, then the element tree. Table entries are
// decoded lazily: an entry's text is only materialized the first time an
// element references its index.
//
// Parameters:
//   - payload: the metadata record body, after the record size and type id
//   - in: optional interner for class and field names; may be nil
//
// Returns:
//   - *Registry: the chunk's type system
//   - error: errs.ErrInvalidMetadata for semantic violations,
//     errs.ErrDuplicateTypeID, errs.ErrUnknownTypeReference, or a
//     structural decoding error
func Parse(payload []byte, in value.Interner) (*Registry, error) {
	p := &parser{buf: payload, in: in}

	startTime, err := p.uvarint("start time")
	if err != nil {
		return nil, err
	}
	duration, err := p.uvarint("duration")
	if err != nil {
		return nil, err
	}
	metadataID, err := p.uvarint("metadata id")
	if err != nil {
		return nil, err
	}

	if err := p.readStringTable(); err != nil {
		return nil, err
	}

	root, err := p.element(0)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		classes:    make(map[int64]*Class),
		names:      make(map[string]*Class),
		startTime:  int64(startTime),
		duration:   int64(duration),
		metadataID: int64(metadataID),
	}

	if err := reg.build(root); err != nil {
		return nil, err
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}

	return reg, nil
}

type parser struct {
	buf   []byte
	pos   int
	in    value.Interner
	table []tableEntry
}

// tableEntry is one lazily decoded string table slot.
type tableEntry struct {
	off     int
	decoded bool
	text    string
}

func (p *parser) uvarint(what string) (uint64, error) {
	v, n, err := varint.Uvarint(p.buf[p.pos:])
	if err != nil {
		return 0, fmt.Errorf("metadata %s at offset %d: %w", what, p.pos, err)
	}
	p.pos += n

	return v, nil
}

// readStringTable measures the extent of every table entry without decoding
// text. Constant-pool tags are illegal here: the table must be resolvable
// before any pool exists.
func (p *parser) readStringTable() error {
	count, err := p.uvarint("string count")
	if err != nil {
		return err
	}
	if count > uint64(len(p.buf)-p.pos) {
		return fmt.Errorf("%w: string table declares %d entries, %d bytes remain", errs.ErrInvalidMetadata, count, len(p.buf)-p.pos)
	}

	p.table = make([]tableEntry, count)
	for i := range p.table {
		if p.pos < len(p.buf) && format.StringEncoding(p.buf[p.pos]) == format.StringConstantPool {
			return fmt.Errorf("%w: string table entry %d is a constant pool reference", errs.ErrInvalidMetadata, i)
		}

		n, err := value.SkipString(p.buf[p.pos:])
		if err != nil {
			return fmt.Errorf("metadata string table entry %d: %w", i, err)
		}

		p.table[i] = tableEntry{off: p.pos}
		p.pos += n
	}

	return nil
}

// str resolves a table index, decoding and memoizing the entry on first
// use. Null entries resolve to the empty string.
func (p *parser) str(idx uint64) (string, error) {
	if idx >= uint64(len(p.table)) {
		return "", fmt.Errorf("%w: string table index %d, table holds %d", errs.ErrInvalidMetadata, idx, len(p.table))
	}

	e := &p.table[idx]
	if e.decoded {
		return e.text, nil
	}

	v, _, err := value.DecodeString(p.buf[e.off:], 0, p.in)
	if err != nil {
		return "", fmt.Errorf("metadata string table entry %d: %w", idx, err)
	}
	if s, ok := v.(value.String); ok {
		e.text = string(s)
	}
	e.decoded = true

	return e.text, nil
}

// element is one parsed tree node. Names and attributes are plain strings
// already resolved through the table.
type element struct {
	name     string
	attrs    []attribute
	children []element
}

type attribute struct {
	key   string
	value string
}

func (e element) attr(key string) (string, bool) {
	for _, a := range e.attrs {
		if a.key == key {
			return a.value, true
		}
	}

	return "", false
}

func (p *parser) element(depth int) (element, error) {
	if depth > maxElementDepth {
		return element{}, fmt.Errorf("%w: element nesting deeper than %d", errs.ErrInvalidMetadata, maxElementDepth)
	}

	nameIdx, err := p.uvarint("element name")
	if err != nil {
		return element{}, err
	}
	name, err := p.str(nameIdx)
	if err != nil {
		return element{}, err
	}

	el := element{name: name}

	attrCount, err := p.uvarint("attribute count")
	if err != nil {
		return element{}, err
	}
	// Each attribute takes at least two bytes on the wire.
	if attrCount > uint64(len(p.buf)-p.pos)/2 {
		return element{}, fmt.Errorf("%w: element %q declares %d attributes, %d bytes remain", errs.ErrInvalidMetadata, name, attrCount, len(p.buf)-p.pos)
	}

	el.attrs = make([]attribute, 0, attrCount)
	for range attrCount {
		kIdx, err := p.uvarint("attribute key")
		if err != nil {
			return element{}, err
		}
		vIdx, err := p.uvarint("attribute value")
		if err != nil {
			return element{}, err
		}

		k, err := p.str(kIdx)
		if err != nil {
			return element{}, err
		}
		v, err := p.str(vIdx)
		if err != nil {
			return element{}, err
		}

		el.attrs = append(el.attrs, attribute{key: k, value: v})
	}

	childCount, err := p.uvarint("child count")
	if err != nil {
		return element{}, err
	}
	// A child element takes at least three bytes on the wire.
	if childCount > uint64(len(p.buf)-p.pos)/3 {
		return element{}, fmt.Errorf("%w: element %q declares %d children, %d bytes remain", errs.ErrInvalidMetadata, name, childCount, len(p.buf)-p.pos)
	}

	el.children = make([]element, 0, childCount)
	for range childCount {
		child, err := p.element(depth + 1)
		if err != nil {
			return element{}, err
		}

		el.children = append(el.children, child)
	}

	return el, nil
}
