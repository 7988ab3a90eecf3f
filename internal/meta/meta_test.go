package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	i := Int(42)
	iv, ok := i.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(42), iv)
	_, ok = i.Float()
	assert.False(t, ok)

	f := Float(1.5)
	fv, ok := f.Float()
	assert.True(t, ok)
	assert.Equal(t, 1.5, fv)

	s := Str("hello")
	assert.Equal(t, "hello", s.String())
}

func TestObjectFieldsPreserveOrder(t *testing.T) {
	obj := NewObject([]string{"a", "b", "c"}, []Value{Int(1), Int(2), Int(3)})

	assert.Equal(t, []string{"a", "b", "c"}, obj.Keys())
	v, ok := obj.Field("b")
	require.True(t, ok)
	iv, _ := v.Int()
	assert.Equal(t, int64(2), iv)

	_, ok = obj.Field("missing")
	assert.False(t, ok)
}

func TestVariant(t *testing.T) {
	v := Variant("rect", Int(7))

	tag, inner, ok := v.VariantTag()
	require.True(t, ok)
	assert.Equal(t, "rect", tag)
	iv, _ := inner.Int()
	assert.Equal(t, int64(7), iv)

	_, _, ok = Int(1).VariantTag()
	assert.False(t, ok, "a non-variant value has no variant tag")
}

type sampleHeader struct {
	NumObjects uint16 `meta:"num_objects"`
	Unknown    uint32 `meta:"unknown"`
	StageName  string `meta:"stage_name,optional"`
	BGMNames   []string `meta:"bgm_names,optional"`
}

func TestToMetaFromMetaRoundTrip(t *testing.T) {
	h := sampleHeader{NumObjects: 3, Unknown: 0xdead, StageName: "stage01", BGMNames: []string{"a", "b"}}

	v, err := ToMeta(h)
	require.NoError(t, err)

	var out sampleHeader
	require.NoError(t, FromMeta(v, &out))
	assert.Equal(t, h, out)
}

func TestFromMetaMissingRequiredFieldErrors(t *testing.T) {
	obj := NewObject([]string{"unknown"}, []Value{Int(1)})

	var out sampleHeader
	err := FromMeta(obj, &out)
	assert.Error(t, err, "num_objects is required and absent, so conversion must fail")
}

func TestFromMetaOptionalFieldDefaultsToZeroValue(t *testing.T) {
	obj := NewObject([]string{"num_objects", "unknown"}, []Value{Int(1), Int(2)})

	var out sampleHeader
	require.NoError(t, FromMeta(obj, &out))
	assert.Equal(t, "", out.StageName)
	assert.Nil(t, out.BGMNames)
}
