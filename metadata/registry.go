package metadata

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/flightrec/flr/errs"
)

// Registry is the decoded type system of one chunk. Ids are chunk-local:
// the same class may carry different ids in consecutive chunks of one
// recording, so each chunk gets its own registry.
type Registry struct {
	classes map[int64]*Class
	names   map[string]*Class
	order   []int64

	region       Region
	startTime    int64
	duration     int64
	metadataID   int64
	stringTypeID int64
}

// Class returns the class registered under id and whether it exists.
func (r *Registry) Class(id int64) (*Class, bool) {
	c, ok := r.classes[id]

	return c, ok
}

// Lookup returns the class with the given fully qualified name. When a
// corrupt chunk declares a name twice the earliest declaration wins.
func (r *Registry) Lookup(name string) (*Class, bool) {
	c, ok := r.names[name]

	return c, ok
}

// Classes iterates the registered classes in declaration order.
func (r *Registry) Classes() iter.Seq[*Class] {
	return func(yield func(*Class) bool) {
		for _, id := range r.order {
			if !yield(r.classes[id]) {
				return
			}
		}
	}
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	return len(r.order)
}

// StringTypeID returns the chunk's type id for java.lang.String, or 0 when
// the chunk declares none. String records that defer to the constant pool
// resolve against this id.
func (r *Registry) StringTypeID() int64 {
	return r.stringTypeID
}

// MetadataID returns the producer's id for this metadata generation.
func (r *Registry) MetadataID() int64 {
	return r.metadataID
}

// StartTime returns the raw start timestamp of the metadata record.
func (r *Registry) StartTime() int64 {
	return r.startTime
}

// Duration returns the raw duration of the metadata record.
func (r *Registry) Duration() int64 {
	return r.duration
}

// Region returns the producer's locale element.
func (r *Registry) Region() Region {
	return r.region
}

// AnnotationNamed resolves each annotation's class through the registry and
// returns the first one matching the given class name.
func (r *Registry) AnnotationNamed(annos []Annotation, name string) (Annotation, bool) {
	for _, a := range annos {
		if c, ok := r.classes[a.TypeID]; ok && c.Name == name {
			return a, true
		}
	}

	return Annotation{}, false
}

// build converts the parsed element tree into class entries. Unknown
// element names are skipped so newer producers stay readable.
func (r *Registry) build(root element) error {
	if root.name != "root" {
		return fmt.Errorf("%w: top element is %q, want root", errs.ErrInvalidMetadata, root.name)
	}

	for _, el := range root.children {
		switch el.name {
		case "metadata":
			for _, ch := range el.children {
				if ch.name != "class" {
					continue
				}

				c, err := parseClass(ch)
				if err != nil {
					return err
				}
				if _, dup := r.classes[c.ID]; dup {
					return fmt.Errorf("%w: %d declared twice", errs.ErrDuplicateTypeID, c.ID)
				}

				r.classes[c.ID] = c
				r.order = append(r.order, c.ID)
				if _, taken := r.names[c.Name]; !taken {
					r.names[c.Name] = c
				}
			}

		case "region":
			r.region.Locale, _ = el.attr("locale")
			if v, ok := el.attr("gmtOffset"); ok {
				off, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return fmt.Errorf("%w: region gmtOffset %q", errs.ErrInvalidMetadata, v)
				}
				r.region.GMTOffset = off
			}
		}
	}

	return nil
}

// validate runs after every class is registered: field type references must
// resolve, and annotation-derived field traits are computed here because
// annotations name their class by id.
func (r *Registry) validate() error {
	if c, ok := r.names["java.lang.String"]; ok {
		r.stringTypeID = c.ID
	}

	for _, id := range r.order {
		c := r.classes[id]
		for i := range c.Fields {
			f := &c.Fields[i]
			if _, ok := r.classes[f.TypeID]; !ok {
				return fmt.Errorf("%w: field %s.%s references type %d", errs.ErrUnknownTypeReference, c.Name, f.Name, f.TypeID)
			}

			_, f.unsigned = r.AnnotationNamed(f.Annotations, AnnotationUnsigned)
		}
	}

	return nil
}

func parseClass(el element) (*Class, error) {
	idStr, ok := el.attr("id")
	if !ok {
		return nil, fmt.Errorf("%w: class without id", errs.ErrInvalidMetadata)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: class id %q", errs.ErrInvalidMetadata, idStr)
	}

	name, ok := el.attr("name")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: class %d without name", errs.ErrInvalidMetadata, id)
	}

	c := &Class{
		ID:        id,
		Name:      name,
		primitive: primitiveForName(name),
	}
	c.SuperType, _ = el.attr("superType")
	if v, _ := el.attr("simpleType"); v == "true" {
		c.SimpleType = true
	}

	for _, ch := range el.children {
		switch ch.name {
		case "field":
			f, err := parseField(ch)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", name, err)
			}
			c.Fields = append(c.Fields, f)

		case "annotation":
			a, err := parseAnnotation(ch)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", name, err)
			}
			c.Annotations = append(c.Annotations, a)

		case "setting":
			s, err := parseSetting(ch)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", name, err)
			}
			c.Settings = append(c.Settings, s)
		}
	}

	return c, nil
}

func parseField(el element) (Field, error) {
	var f Field

	name, ok := el.attr("name")
	if !ok || name == "" {
		return Field{}, fmt.Errorf("%w: field without name", errs.ErrInvalidMetadata)
	}
	f.Name = name

	classStr, ok := el.attr("class")
	if !ok {
		return Field{}, fmt.Errorf("%w: field %s without class", errs.ErrInvalidMetadata, name)
	}
	typeID, err := strconv.ParseInt(classStr, 10, 64)
	if err != nil {
		return Field{}, fmt.Errorf("%w: field %s class %q", errs.ErrInvalidMetadata, name, classStr)
	}
	f.TypeID = typeID

	if v, ok := el.attr("dimension"); ok {
		dim, err := strconv.ParseInt(v, 10, 32)
		if err != nil || dim < 0 {
			return Field{}, fmt.Errorf("%w: field %s dimension %q", errs.ErrInvalidMetadata, name, v)
		}
		f.Dimension = int32(dim)
	}
	if v, _ := el.attr("constantPool"); v == "true" {
		f.ConstantPool = true
	}

	for _, ch := range el.children {
		if ch.name != "annotation" {
			continue
		}

		a, err := parseAnnotation(ch)
		if err != nil {
			return Field{}, fmt.Errorf("field %s: %w", name, err)
		}
		f.Annotations = append(f.Annotations, a)
	}

	return f, nil
}

func parseAnnotation(el element) (Annotation, error) {
	a := Annotation{Values: make(map[string]string)}

	seen := false
	for _, at := range el.attrs {
		if at.key == "class" {
			id, err := strconv.ParseInt(at.value, 10, 64)
			if err != nil {
				return Annotation{}, fmt.Errorf("%w: annotation class %q", errs.ErrInvalidMetadata, at.value)
			}
			a.TypeID = id
			seen = true

			continue
		}

		a.Values[at.key] = at.value
	}

	if !seen {
		return Annotation{}, fmt.Errorf("%w: annotation without class", errs.ErrInvalidMetadata)
	}

	return a, nil
}

func parseSetting(el element) (Setting, error) {
	var s Setting

	name, ok := el.attr("name")
	if !ok || name == "" {
		return Setting{}, fmt.Errorf("%w: setting without name", errs.ErrInvalidMetadata)
	}
	s.Name = name

	if v, ok := el.attr("class"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Setting{}, fmt.Errorf("%w: setting %s class %q", errs.ErrInvalidMetadata, name, v)
		}
		s.TypeID = id
	}
	s.DefaultValue, _ = el.attr("defaultValue")

	return s, nil
}
