package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flightrec/flr/errs"
	"github.com/flightrec/flr/internal/intern"
	"github.com/flightrec/flr/internal/testutil"
	"github.com/flightrec/flr/varint"
)

const (
	sampleTypeID    = int64(100)
	threadTypeID    = int64(30)
	timestampAnnoID = int64(40)
	unsignedAnnoID  = int64(41)
	labelAnnoID     = int64(42)
)

// sampleSchema declares the primitives plus a thread pool type and one
// event type referencing it.
func sampleSchema() []testutil.ClassSpec {
	classes := testutil.PrimitiveClasses()

	classes = append(classes,
		testutil.ClassSpec{ID: timestampAnnoID, Name: AnnotationTimestamp, SuperType: "java.lang.annotation.Annotation"},
		testutil.ClassSpec{ID: unsignedAnnoID, Name: AnnotationUnsigned, SuperType: "java.lang.annotation.Annotation"},
		testutil.ClassSpec{ID: labelAnnoID, Name: AnnotationLabel, SuperType: "java.lang.annotation.Annotation"},
		testutil.ClassSpec{
			ID:   threadTypeID,
			Name: "java.lang.Thread",
			Fields: []testutil.FieldSpec{
				{Name: "osName", TypeID: testutil.TypeString},
				{Name: "osThreadId", TypeID: testutil.TypeLong, Annotations: []testutil.AnnotationSpec{{TypeID: unsignedAnnoID}}},
			},
		},
		testutil.ClassSpec{
			ID:        sampleTypeID,
			Name:      "jdk.ExecutionSample",
			SuperType: "jdk.jfr.Event",
			Annotations: []testutil.AnnotationSpec{
				{TypeID: labelAnnoID, Values: map[string]string{"value": "Method Profiling Sample"}},
			},
			Settings: []testutil.SettingSpec{
				{Name: "enabled", TypeID: testutil.TypeBoolean, DefaultValue: "true"},
			},
			Fields: []testutil.FieldSpec{
				{Name: "startTime", TypeID: testutil.TypeLong, Annotations: []testutil.AnnotationSpec{{TypeID: timestampAnnoID, Values: map[string]string{"value": "TICKS"}}}},
				{Name: "sampledThread", TypeID: threadTypeID, ConstantPool: true},
				{Name: "stackDepth", TypeID: testutil.TypeInt},
				{Name: "frames", TypeID: testutil.TypeString, Dimension: 1},
			},
		},
	)

	return classes
}

func TestParseRegistersClasses(t *testing.T) {
	reg, err := Parse(testutil.MetadataPayload(sampleSchema()...), nil)
	require.NoError(t, err)
	require.Equal(t, len(sampleSchema()), reg.Len())

	t.Run("EventClass", func(t *testing.T) {
		c, ok := reg.Class(sampleTypeID)
		require.True(t, ok)
		require.Equal(t, "jdk.ExecutionSample", c.Name)
		require.Equal(t, "jdk.jfr.Event", c.SuperType)
		require.False(t, c.SimpleType)
		require.Equal(t, PrimNone, c.Primitive())

		require.Len(t, c.Fields, 4)
		require.Equal(t, "startTime", c.Fields[0].Name)
		require.Equal(t, testutil.TypeLong, c.Fields[0].TypeID)
		require.True(t, c.Fields[1].ConstantPool)
		require.Equal(t, threadTypeID, c.Fields[1].TypeID)
		require.False(t, c.Fields[2].IsArray())
		require.True(t, c.Fields[3].IsArray())
	})

	t.Run("LookupByName", func(t *testing.T) {
		byID, _ := reg.Class(sampleTypeID)
		byName, ok := reg.Lookup("jdk.ExecutionSample")
		require.True(t, ok)
		require.Same(t, byID, byName)

		_, ok = reg.Lookup("jdk.NoSuchEvent")
		require.False(t, ok)
	})

	t.Run("Primitives", func(t *testing.T) {
		want := map[int64]Primitive{
			testutil.TypeBoolean: PrimBoolean,
			testutil.TypeChar:    PrimChar,
			testutil.TypeFloat:   PrimFloat,
			testutil.TypeDouble:  PrimDouble,
			testutil.TypeByte:    PrimByte,
			testutil.TypeShort:   PrimShort,
			testutil.TypeInt:     PrimInt,
			testutil.TypeLong:    PrimLong,
			testutil.TypeString:  PrimString,
		}
		for id, prim := range want {
			c, ok := reg.Class(id)
			require.True(t, ok)
			require.Equal(t, prim, c.Primitive())
			require.Equal(t, prim.String(), c.Name)
		}
	})

	t.Run("StringTypeID", func(t *testing.T) {
		require.Equal(t, testutil.TypeString, reg.StringTypeID())
	})

	t.Run("MetadataHeader", func(t *testing.T) {
		require.Equal(t, int64(1), reg.MetadataID())
		require.Equal(t, int64(0), reg.StartTime())
		require.Equal(t, int64(0), reg.Duration())
	})
}

func TestParseAnnotations(t *testing.T) {
	reg, err := Parse(testutil.MetadataPayload(sampleSchema()...), nil)
	require.NoError(t, err)

	t.Run("UnsignedField", func(t *testing.T) {
		thread, ok := reg.Class(threadTypeID)
		require.True(t, ok)

		tid, ok := thread.Field("osThreadId")
		require.True(t, ok)
		require.True(t, tid.Unsigned())

		name, ok := thread.Field("osName")
		require.True(t, ok)
		require.False(t, name.Unsigned())
	})

	t.Run("ClassLabel", func(t *testing.T) {
		c, _ := reg.Class(sampleTypeID)
		label, ok := reg.AnnotationNamed(c.Annotations, AnnotationLabel)
		require.True(t, ok)
		require.Equal(t, "Method Profiling Sample", label.Value())
	})

	t.Run("FieldTimestamp", func(t *testing.T) {
		c, _ := reg.Class(sampleTypeID)
		ts, ok := reg.AnnotationNamed(c.Fields[0].Annotations, AnnotationTimestamp)
		require.True(t, ok)
		require.Equal(t, "TICKS", ts.Value())

		_, ok = reg.AnnotationNamed(c.Fields[0].Annotations, AnnotationUnsigned)
		require.False(t, ok)
	})
}

func TestParseSettings(t *testing.T) {
	reg, err := Parse(testutil.MetadataPayload(sampleSchema()...), nil)
	require.NoError(t, err)

	c, _ := reg.Class(sampleTypeID)
	require.Len(t, c.Settings, 1)
	require.Equal(t, "enabled", c.Settings[0].Name)
	require.Equal(t, testutil.TypeBoolean, c.Settings[0].TypeID)
	require.Equal(t, "true", c.Settings[0].DefaultValue)
}

func TestParseRegion(t *testing.T) {
	payload := testutil.MetadataPayloadWithRegion(
		testutil.RegionSpec{Locale: "en_US", GMTOffset: -18000},
		testutil.PrimitiveClasses()...,
	)

	reg, err := Parse(payload, nil)
	require.NoError(t, err)
	require.Equal(t, "en_US", reg.Region().Locale)
	require.Equal(t, int64(-18000), reg.Region().GMTOffset)
}

func TestClassesIterateInDeclarationOrder(t *testing.T) {
	schema := sampleSchema()
	reg, err := Parse(testutil.MetadataPayload(schema...), nil)
	require.NoError(t, err)

	var ids []int64
	for c := range reg.Classes() {
		ids = append(ids, c.ID)
	}

	require.Len(t, ids, len(schema))
	for i, spec := range schema {
		require.Equal(t, spec.ID, ids[i])
	}

	n := 0
	for range reg.Classes() {
		n++
		break
	}
	require.Equal(t, 1, n)
}

// rawPayload hand-builds a payload: the three header varints, a UTF-8
// string table, then the element tree as a flat varint list.
func rawPayload(table []string, tree []uint64) []byte {
	p := varint.AppendUvarint(nil, 0)
	p = varint.AppendUvarint(p, 0)
	p = varint.AppendUvarint(p, 1)
	p = varint.AppendUvarint(p, uint64(len(table)))
	for _, s := range table {
		p = testutil.AppendUtf8(p, s)
	}
	for _, v := range tree {
		p = varint.AppendUvarint(p, v)
	}

	return p
}

func TestParseErrors(t *testing.T) {
	t.Run("DuplicateTypeID", func(t *testing.T) {
		payload := testutil.MetadataPayload(
			testutil.ClassSpec{ID: 10, Name: "int", SimpleType: true},
			testutil.ClassSpec{ID: 10, Name: "long", SimpleType: true},
		)
		_, err := Parse(payload, nil)
		require.ErrorIs(t, err, errs.ErrDuplicateTypeID)
	})

	t.Run("UnknownFieldType", func(t *testing.T) {
		classes := append(testutil.PrimitiveClasses(), testutil.ClassSpec{
			ID:     sampleTypeID,
			Name:   "jdk.Broken",
			Fields: []testutil.FieldSpec{{Name: "value", TypeID: 999}},
		})
		_, err := Parse(testutil.MetadataPayload(classes...), nil)
		require.ErrorIs(t, err, errs.ErrUnknownTypeReference)
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		payload := testutil.MetadataPayload(sampleSchema()...)
		for _, cut := range []int{0, 2, len(payload) / 2, len(payload) - 1} {
			_, err := Parse(payload[:cut], nil)
			require.Error(t, err, "cut at %d", cut)
		}
	})

	t.Run("RootElementMisnamed", func(t *testing.T) {
		_, err := Parse(rawPayload([]string{"notroot"}, []uint64{0, 0, 0}), nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})

	t.Run("StringTableIndexOutOfRange", func(t *testing.T) {
		_, err := Parse(rawPayload([]string{"root"}, []uint64{5, 0, 0}), nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})

	t.Run("ConstantPoolReferenceInTable", func(t *testing.T) {
		p := varint.AppendUvarint(nil, 0)
		p = varint.AppendUvarint(p, 0)
		p = varint.AppendUvarint(p, 1)
		p = varint.AppendUvarint(p, 1)
		p = append(p, testutil.StringRefValue(7)...)
		p = append(p, 0, 0, 0)

		_, err := Parse(p, nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})

	t.Run("StringCountOverflowsPayload", func(t *testing.T) {
		p := varint.AppendUvarint(nil, 0)
		p = varint.AppendUvarint(p, 0)
		p = varint.AppendUvarint(p, 1)
		p = varint.AppendUvarint(p, 1<<40)

		_, err := Parse(p, nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})

	t.Run("ClassWithoutID", func(t *testing.T) {
		table := []string{"root", "metadata", "class", "name", "jdk.X"}
		tree := []uint64{
			0, 0, 1, // root
			1, 0, 1, // metadata
			2, 1, 3, 4, 0, // class name=jdk.X, no id
		}
		_, err := Parse(rawPayload(table, tree), nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})

	t.Run("RegionGMTOffsetNotNumeric", func(t *testing.T) {
		table := []string{"root", "region", "locale", "sv_SE", "gmtOffset", "abc"}
		tree := []uint64{
			0, 0, 1, // root
			1, 2, 2, 3, 4, 5, 0, // region locale=sv_SE gmtOffset=abc
		}
		_, err := Parse(rawPayload(table, tree), nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})

	t.Run("NestingTooDeep", func(t *testing.T) {
		tree := []uint64{0, 0, 1}
		for range maxElementDepth + 2 {
			tree = append(tree, 1, 0, 1)
		}
		tree = append(tree, 1, 0, 0)

		_, err := Parse(rawPayload([]string{"root", "a"}, tree), nil)
		require.ErrorIs(t, err, errs.ErrInvalidMetadata)
	})
}

func TestParseInternsStrings(t *testing.T) {
	tab := intern.NewTable()

	reg, err := Parse(testutil.MetadataPayload(sampleSchema()...), tab)
	require.NoError(t, err)
	require.Positive(t, tab.Len())

	// A second chunk with the same schema reuses the table instead of
	// growing it.
	before := tab.Len()
	_, err = Parse(testutil.MetadataPayload(sampleSchema()...), tab)
	require.NoError(t, err)
	require.Equal(t, before, tab.Len())

	c, _ := reg.Class(sampleTypeID)
	require.Equal(t, "jdk.ExecutionSample", c.Name)
}
