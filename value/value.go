// Package value defines the tagged-union representation of decoded
// flight-recording data.
//
// Every decoded datum is a Value: a primitive, a string, an array, a
// struct of named fields, a deferred constant-pool reference, or an opaque
// byte payload for record types the decoder has no schema for. ConstantRef
// is an ordinary, inspectable value; a caller that never resolves it pays
// nothing for the constant it points at.
package value

// Kind discriminates the concrete type behind a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindChar
	KindString
	KindArray
	KindStruct
	KindConstantRef
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindChar:
		return "Char"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindStruct:
		return "Struct"
	case KindConstantRef:
		return "ConstantRef"
	case KindOpaque:
		return "Opaque"
	default:
		return "Unknown"
	}
}

// Value is one decoded datum. None of the concrete types retain the chunk
// buffer except Opaque, which aliases it.
type Value interface {
	Kind() Kind
}

// Null is the absent value: a null string, a constant key 0, or a null
// object reference.
type Null struct{}

func (Null) Kind() Kind { return KindNull }

// Bool is a boolean field value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }

// Int is an integer field value together with its declared width and
// signedness. V holds the sign-extended two's complement value for signed
// fields and the zero-extended bit pattern for unsigned ones.
type Int struct {
	Bits   uint8 // 8, 16, 32, or 64
	Signed bool
	V      int64
}

func (Int) Kind() Kind { return KindInt }

// Int64 returns the value as a signed integer.
func (i Int) Int64() int64 { return i.V }

// Uint64 returns the value's bit pattern truncated to its declared width.
func (i Int) Uint64() uint64 {
	if i.Bits >= 64 {
		return uint64(i.V)
	}

	return uint64(i.V) & (uint64(1)<<i.Bits - 1)
}

// Float is a floating-point field value with its declared width.
type Float struct {
	Bits uint8 // 32 or 64
	V    float64
}

func (Float) Kind() Kind { return KindFloat }

// Char is a single UTF-16 code unit field value.
type Char rune

func (Char) Kind() Kind { return KindChar }

// String is a decoded text value. Char arrays and Latin-1 payloads are
// transcoded to UTF-8 on decode.
type String string

func (String) Kind() Kind { return KindString }

// Array is a decoded array field: element values in payload order.
type Array []Value

func (Array) Kind() Kind { return KindArray }

// Field is one named member of a decoded Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is a decoded composite value: the class's type id and its field
// values in declared order.
type Struct struct {
	TypeID int64
	Fields []Field
}

func (Struct) Kind() Kind { return KindStruct }

// Get returns the named field's value. Field counts are small, so lookup
// scans the declared order.
func (s Struct) Get(name string) (Value, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// ConstantRef is a deferred reference into a constant pool: the pool's
// type id and the entry key. Resolution is the caller's explicit choice.
type ConstantRef struct {
	TypeID int64
	Key    int64
}

func (ConstantRef) Kind() Kind { return KindConstantRef }

// Opaque wraps the raw payload of a record whose type id has no class in
// the registry. Data aliases the chunk buffer and is valid for the chunk's
// lifetime.
type Opaque struct {
	TypeID int64
	Data   []byte
}

func (Opaque) Kind() Kind { return KindOpaque }

// Interner deduplicates decoded strings. The intern table in use is
// per chunk; passing a nil Interner disables deduplication.
type Interner interface {
	Intern(b []byte) string
}

var (
	_ Value = Null{}
	_ Value = Bool(false)
	_ Value = Int{}
	_ Value = Float{}
	_ Value = Char(0)
	_ Value = String("")
	_ Value = Array(nil)
	_ Value = Struct{}
	_ Value = ConstantRef{}
	_ Value = Opaque{}
)
