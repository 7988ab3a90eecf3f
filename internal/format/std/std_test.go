package std_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/format"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/meta"
)

func emptyHeader() meta.Value {
	return meta.NewObject(
		[]string{"num_objects", "num_quads", "instances_offset", "script_offset", "unknown", "objects", "instances"},
		[]meta.Value{
			meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0),
			meta.Array(nil), meta.Array(nil),
		},
	)
}

func TestStdEncodeDecodeRoundTripsEmptyFileWithOneInstruction(t *testing.T) {
	adapter := std.Adapter{}
	in := &format.File{
		Header: emptyHeader(),
		Subs: []format.Sub{{Instrs: []instr.Instr{
			{Time: 5, Opcode: 7, Args: []instr.RawArg{instr.FromFloat(2.5)}},
		}}},
	}

	data, err := adapter.Encode("10", in)
	require.NoError(t, err)

	out, err := adapter.Decode("10", data)
	require.NoError(t, err)

	objects, ok := out.Header.Field("objects")
	require.True(t, ok)
	arr, ok := objects.Array()
	require.True(t, ok)
	assert.Empty(t, arr)

	instances, ok := out.Header.Field("instances")
	require.True(t, ok)
	arr, ok = instances.Array()
	require.True(t, ok)
	assert.Empty(t, arr)

	require.Len(t, out.Subs, 1)
	require.Len(t, out.Subs[0].Instrs, 1)
	got := out.Subs[0].Instrs[0]
	assert.Equal(t, int32(5), got.Time)
	assert.Equal(t, 7, got.Opcode)
	require.Len(t, got.Args, 1)
	assert.Equal(t, float32(2.5), got.Args[0].AsFloat())
	assert.Equal(t, 0, got.Offset, "the first instruction in the stream starts at offset 0")
}

func TestStdEncodeDecodeRoundTripsObjectWithQuad(t *testing.T) {
	adapter := std.Adapter{}
	objectHeader := meta.NewObject(
		[]string{"num_objects", "num_quads", "instances_offset", "script_offset", "unknown", "objects", "instances"},
		[]meta.Value{
			meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0),
			meta.Array([]meta.Value{
				meta.NewObject(
					[]string{"id", "layer", "position", "size", "quads"},
					[]meta.Value{
						meta.Int(1), meta.Int(2),
						meta.Array([]meta.Value{meta.Float(1), meta.Float(2), meta.Float(3)}),
						meta.Array([]meta.Value{meta.Float(4), meta.Float(5), meta.Float(6)}),
						meta.Array([]meta.Value{
							meta.NewObject(
								[]string{"kind", "anm_script", "payload"},
								[]meta.Value{
									meta.Int(0), meta.Int(9),
									meta.Variant("rect", meta.Array([]meta.Value{
										meta.Array([]meta.Value{meta.Float(0), meta.Float(0), meta.Float(0)}),
										meta.Array([]meta.Value{meta.Float(16), meta.Float(16)}),
									})),
								},
							),
						}),
					},
				),
			}),
			meta.Array(nil),
		},
	)
	in := &format.File{Header: objectHeader, Subs: []format.Sub{{}}}

	data, err := adapter.Encode("10", in)
	require.NoError(t, err)

	out, err := adapter.Decode("10", data)
	require.NoError(t, err)

	objects, ok := out.Header.Field("objects")
	require.True(t, ok)
	arr, ok := objects.Array()
	require.True(t, ok)
	require.Len(t, arr, 1)

	idVal, ok := arr[0].Field("id")
	require.True(t, ok)
	id, _ := idVal.Int()
	assert.Equal(t, int64(1), id)

	quadsVal, ok := arr[0].Field("quads")
	require.True(t, ok)
	quads, ok := quadsVal.Array()
	require.True(t, ok)
	require.Len(t, quads, 1)

	anmVal, ok := quads[0].Field("anm_script")
	require.True(t, ok)
	anm, _ := anmVal.Int()
	assert.Equal(t, int64(9), anm)

	payloadVal, ok := quads[0].Field("payload")
	require.True(t, ok)
	tag, _, ok := payloadVal.VariantTag()
	require.True(t, ok)
	assert.Equal(t, "rect", tag)
}

func TestStdDecodeRejectsStripQuadOutsideTh08Th09(t *testing.T) {
	adapter := std.Adapter{}
	header := meta.NewObject(
		[]string{"num_objects", "num_quads", "instances_offset", "script_offset", "unknown", "objects", "instances"},
		[]meta.Value{
			meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0),
			meta.Array([]meta.Value{
				meta.NewObject(
					[]string{"id", "layer", "position", "size", "quads"},
					[]meta.Value{
						meta.Int(1), meta.Int(0),
						meta.Array([]meta.Value{meta.Float(0), meta.Float(0), meta.Float(0)}),
						meta.Array([]meta.Value{meta.Float(0), meta.Float(0), meta.Float(0)}),
						meta.Array([]meta.Value{
							meta.NewObject(
								[]string{"kind", "anm_script", "payload"},
								[]meta.Value{
									meta.Int(1), meta.Int(0),
									meta.Variant("strip", meta.Array([]meta.Value{
										meta.Array([]meta.Value{meta.Float(0), meta.Float(0), meta.Float(0)}),
										meta.Array([]meta.Value{meta.Float(0), meta.Float(0), meta.Float(0)}),
										meta.Float(0),
									})),
								},
							),
						}),
					},
				),
			}),
			meta.Array(nil),
		},
	)
	in := &format.File{Header: header, Subs: []format.Sub{{}}}

	data, err := adapter.Encode("10", in)
	require.NoError(t, err, "encode doesn't validate strip legality, only decode does")

	_, err = adapter.Decode("10", data)
	assert.Error(t, err, "TH10 is newer than TH08/09, strip quads must be rejected")
}

func TestStdBuiltinMapfileDeclaresCoreStdOpcodes(t *testing.T) {
	adapter := std.Adapter{}
	mf, err := adapter.BuiltinMapfile("10")
	require.NoError(t, err)

	sig, ok := mf.InsSignatures[2]
	require.True(t, ok)
	require.Len(t, sig, 3)
	assert.Equal(t, mapfile.EncFloat, sig[0].Char)

	assert.Equal(t, "easy", mf.DifficultyFlags['E'])
}
