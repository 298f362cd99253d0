// Package metadata parses the per-chunk metadata record into a type
// registry.
//
// Every chunk carries exactly one metadata record describing the classes its
// events and constant pools are encoded with: field layouts, constant-pool
// indirections, annotations, and settings. Nothing else in the chunk can be
// decoded without it. The payload is self-contained, a deduplicated string
// table followed by an element tree whose nodes reference table entries by
// index.
package metadata

// Primitive classifies the classes the decoder reads natively rather than
// field by field. Classification is by class name; ids are assigned per
// chunk and carry no fixed meaning.
type Primitive uint8

const (
	PrimNone Primitive = iota
	PrimBoolean
	PrimByte
	PrimShort
	PrimInt
	PrimLong
	PrimChar
	PrimFloat
	PrimDouble
	PrimString
)

func (p Primitive) String() string {
	switch p {
	case PrimBoolean:
		return "boolean"
	case PrimByte:
		return "byte"
	case PrimShort:
		return "short"
	case PrimInt:
		return "int"
	case PrimLong:
		return "long"
	case PrimChar:
		return "char"
	case PrimFloat:
		return "float"
	case PrimDouble:
		return "double"
	case PrimString:
		return "java.lang.String"
	default:
		return "none"
	}
}

// primitiveForName maps a class name to its native decoding, PrimNone for
// composite classes.
func primitiveForName(name string) Primitive {
	switch name {
	case "boolean":
		return PrimBoolean
	case "byte":
		return PrimByte
	case "short":
		return PrimShort
	case "int":
		return PrimInt
	case "long":
		return PrimLong
	case "char":
		return PrimChar
	case "float":
		return PrimFloat
	case "double":
		return PrimDouble
	case "java.lang.String":
		return PrimString
	default:
		return PrimNone
	}
}

// Well-known annotation class names. Annotations reference classes by id,
// so identifying one means resolving its class name through the registry.
const (
	AnnotationLabel         = "jdk.jfr.Label"
	AnnotationDescription   = "jdk.jfr.Description"
	AnnotationTimestamp     = "jdk.jfr.Timestamp"
	AnnotationTimespan      = "jdk.jfr.Timespan"
	AnnotationUnsigned      = "jdk.jfr.Unsigned"
	AnnotationMemoryAddress = "jdk.jfr.MemoryAddress"
	AnnotationPercentage    = "jdk.jfr.Percentage"
	AnnotationDataAmount    = "jdk.jfr.DataAmount"
	AnnotationFrequency     = "jdk.jfr.Frequency"
	AnnotationCategory      = "jdk.jfr.Category"
	AnnotationExperimental  = "jdk.jfr.Experimental"
)

// Class describes one type of the chunk: an event type, a constant-pool
// entry type, or a primitive.
type Class struct {
	// ID is the chunk-local type id events and pools reference.
	ID int64
	// Name is the fully qualified class name.
	Name string
	// SuperType is the fully qualified super class name, empty at the root
	// of a hierarchy.
	SuperType string
	// SimpleType marks single-field wrapper classes.
	SimpleType bool
	// Fields are the class fields in declaration order, which is also their
	// wire order.
	Fields []Field
	// Annotations are the annotations on the class itself.
	Annotations []Annotation
	// Settings are the recording settings of an event class.
	Settings []Setting

	primitive Primitive
}

// Primitive returns the native decoding for this class, PrimNone when its
// values are decoded field by field.
func (c *Class) Primitive() Primitive {
	return c.primitive
}

// Field returns the named field and whether it exists.
func (c *Class) Field(name string) (*Field, bool) {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i], true
		}
	}

	return nil, false
}

// Field describes one field of a class.
type Field struct {
	// Name is the field name.
	Name string
	// TypeID is the id of the field's class.
	TypeID int64
	// Dimension is 0 for a scalar field, 1 for an array field.
	Dimension int32
	// ConstantPool marks fields encoded as a pool key instead of an inline
	// value.
	ConstantPool bool
	// Annotations are the annotations on the field.
	Annotations []Annotation

	unsigned bool
}

// IsArray reports whether the field value is a counted array.
func (f *Field) IsArray() bool {
	return f.Dimension > 0
}

// Unsigned reports whether the field carries jdk.jfr.Unsigned and its
// integral value should be widened without sign extension.
func (f *Field) Unsigned() bool {
	return f.unsigned
}

// Annotation is one annotation occurrence. Values holds the annotation's
// members as attribute key/value pairs, for example "value" for the
// single-member form.
type Annotation struct {
	// TypeID is the id of the annotation class.
	TypeID int64
	// Values are the annotation members, keyed by member name.
	Values map[string]string
}

// Value returns the single-member "value" entry, or the empty string.
func (a Annotation) Value() string {
	return a.Values["value"]
}

// Setting is one recording setting declared on an event class, such as its
// enabled state or threshold.
type Setting struct {
	Name         string
	TypeID       int64
	DefaultValue string
}

// Region is the locale element of the metadata record.
type Region struct {
	Locale    string
	GMTOffset int64
}
