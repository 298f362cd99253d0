package testutil

import (
	"sort"
	"strconv"

	"github.com/flightrec/flr/format"
	"github.com/flightrec/flr/varint"
)

// ClassSpec declares one class element of a synthetic metadata record.
type ClassSpec struct {
	ID          int64
	Name        string
	SuperType   string
	SimpleType  bool
	Fields      []FieldSpec
	Annotations []AnnotationSpec
	Settings    []SettingSpec
}

// FieldSpec declares one field element of a class.
type FieldSpec struct {
	Name         string
	TypeID       int64
	Dimension    int32
	ConstantPool bool
	Annotations  []AnnotationSpec
}

// AnnotationSpec declares one annotation element. Values are emitted in
// sorted key order so payloads are reproducible.
type AnnotationSpec struct {
	TypeID int64
	Values map[string]string
}

// SettingSpec declares one setting element of a class.
type SettingSpec struct {
	Name         string
	TypeID       int64
	DefaultValue string
}

// RegionSpec declares the optional region element.
type RegionSpec struct {
	Locale    string
	GMTOffset int64
}

// Well-known type ids shared by the synthetic schemas in package tests.
// PrimitiveClasses registers them under these ids.
const (
	TypeBoolean = int64(4)
	TypeChar    = int64(5)
	TypeFloat   = int64(6)
	TypeDouble  = int64(7)
	TypeByte    = int64(8)
	TypeShort   = int64(9)
	TypeInt     = int64(10)
	TypeLong    = int64(11)
	TypeString  = int64(20)
)

// PrimitiveClasses returns class specs for the JVM primitive types and
// java.lang.String under the well-known ids above.
func PrimitiveClasses() []ClassSpec {
	return []ClassSpec{
		{ID: TypeBoolean, Name: "boolean", SimpleType: true},
		{ID: TypeChar, Name: "char", SimpleType: true},
		{ID: TypeFloat, Name: "float", SimpleType: true},
		{ID: TypeDouble, Name: "double", SimpleType: true},
		{ID: TypeByte, Name: "byte", SimpleType: true},
		{ID: TypeShort, Name: "short", SimpleType: true},
		{ID: TypeInt, Name: "int", SimpleType: true},
		{ID: TypeLong, Name: "long", SimpleType: true},
		{ID: TypeString, Name: "java.lang.String", SuperType: "java.lang.Object"},
	}
}

// MetadataRecord frames a metadata record declaring the given classes.
func MetadataRecord(classes ...ClassSpec) []byte {
	return Record(format.EventTypeMetadata, MetadataPayload(classes...))
}

// MetadataPayload builds an unframed metadata payload declaring the given
// classes.
func MetadataPayload(classes ...ClassSpec) []byte {
	return MetadataPayloadWithRegion(RegionSpec{}, classes...)
}

// MetadataPayloadWithRegion builds an unframed metadata payload declaring
// the given classes plus a region element when region.Locale is set.
func MetadataPayloadWithRegion(region RegionSpec, classes ...ClassSpec) []byte {
	st := newStringTable()

	root := &element{name: st.idx("root")}
	meta := &element{name: st.idx("metadata")}
	root.children = append(root.children, meta)

	for _, c := range classes {
		meta.children = append(meta.children, classElement(st, c))
	}

	if region.Locale != "" {
		reg := &element{name: st.idx("region")}
		reg.attr(st, "locale", region.Locale)
		reg.attr(st, "gmtOffset", strconv.FormatInt(region.GMTOffset, 10))
		root.children = append(root.children, reg)
	}

	// The element tree is built first so the string table is complete;
	// the payload then carries the table before the tree.
	payload := varint.AppendUvarint(nil, 0)    // start time
	payload = varint.AppendUvarint(payload, 0) // duration
	payload = varint.AppendUvarint(payload, 1) // metadata id
	payload = varint.AppendUvarint(payload, uint64(len(st.entries)))
	for _, s := range st.entries {
		payload = AppendUtf8(payload, s)
	}

	return root.encode(payload)
}

func classElement(st *stringTable, c ClassSpec) *element {
	el := &element{name: st.idx("class")}
	el.attr(st, "id", strconv.FormatInt(c.ID, 10))
	el.attr(st, "name", c.Name)
	if c.SuperType != "" {
		el.attr(st, "superType", c.SuperType)
	}
	if c.SimpleType {
		el.attr(st, "simpleType", "true")
	}

	for _, f := range c.Fields {
		el.children = append(el.children, fieldElement(st, f))
	}
	for _, a := range c.Annotations {
		el.children = append(el.children, annotationElement(st, a))
	}
	for _, s := range c.Settings {
		set := &element{name: st.idx("setting")}
		set.attr(st, "name", s.Name)
		set.attr(st, "class", strconv.FormatInt(s.TypeID, 10))
		set.attr(st, "defaultValue", s.DefaultValue)
		el.children = append(el.children, set)
	}

	return el
}

func fieldElement(st *stringTable, f FieldSpec) *element {
	el := &element{name: st.idx("field")}
	el.attr(st, "name", f.Name)
	el.attr(st, "class", strconv.FormatInt(f.TypeID, 10))
	if f.Dimension > 0 {
		el.attr(st, "dimension", strconv.FormatInt(int64(f.Dimension), 10))
	}
	if f.ConstantPool {
		el.attr(st, "constantPool", "true")
	}

	for _, a := range f.Annotations {
		el.children = append(el.children, annotationElement(st, a))
	}

	return el
}

func annotationElement(st *stringTable, a AnnotationSpec) *element {
	el := &element{name: st.idx("annotation")}
	el.attr(st, "class", strconv.FormatInt(a.TypeID, 10))

	keys := make([]string, 0, len(a.Values))
	for k := range a.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.attr(st, k, a.Values[k])
	}

	return el
}

// stringTable deduplicates strings into an insertion-ordered table, the
// layout the metadata payload carries ahead of the element tree.
type stringTable struct {
	index   map[string]int
	entries []string
}

func newStringTable() *stringTable {
	return &stringTable{index: make(map[string]int)}
}

func (st *stringTable) idx(s string) uint64 {
	if i, ok := st.index[s]; ok {
		return uint64(i)
	}

	i := len(st.entries)
	st.index[s] = i
	st.entries = append(st.entries, s)

	return uint64(i)
}

// element is one node of the metadata tree: a table index for the name,
// ordered attribute index pairs, then children.
type element struct {
	name     uint64
	attrs    [][2]uint64
	children []*element
}

func (e *element) attr(st *stringTable, k, v string) {
	e.attrs = append(e.attrs, [2]uint64{st.idx(k), st.idx(v)})
}

func (e *element) encode(dst []byte) []byte {
	dst = varint.AppendUvarint(dst, e.name)
	dst = varint.AppendUvarint(dst, uint64(len(e.attrs)))
	for _, kv := range e.attrs {
		dst = varint.AppendUvarint(dst, kv[0])
		dst = varint.AppendUvarint(dst, kv[1])
	}
	dst = varint.AppendUvarint(dst, uint64(len(e.children)))
	for _, c := range e.children {
		dst = c.encode(dst)
	}

	return dst
}
