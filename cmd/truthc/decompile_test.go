package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/meta"
)

func TestHeaderToMetaItemDropsTableFieldsKeepsScalars(t *testing.T) {
	h := meta.NewObject(
		[]string{"num_objects", "num_quads", "instances_offset", "script_offset", "unknown", "anm_path", "objects", "instances"},
		[]meta.Value{
			meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(0), meta.Int(7),
			meta.Str("bg.anm"), meta.Array(nil), meta.Array(nil),
		},
	)

	item := headerToMetaItem(h)
	require.NotNil(t, item)

	byName := map[string]ast.Expr{}
	for _, f := range item.Fields {
		byName[f.Name] = f.Value
	}

	_, hasObjects := byName["objects"]
	_, hasNumObjects := byName["num_objects"]
	assert.False(t, hasObjects, "nested tables have no meta-block source syntax to round-trip through")
	assert.False(t, hasNumObjects, "derived/recomputed fields must not be echoed back as source")

	unk, ok := byName["unknown"]
	require.True(t, ok)
	assert.Equal(t, int32(7), unk.(*ast.LitInt).Value)

	anmPath, ok := byName["anm_path"]
	require.True(t, ok)
	assert.Equal(t, "bg.anm", string(anmPath.(*ast.LitString).Value))
}

func TestHeaderToMetaItemReturnsNilWhenNoFieldsSurvive(t *testing.T) {
	h := meta.NewObject(
		[]string{"num_objects", "objects", "instances"},
		[]meta.Value{meta.Int(0), meta.Array(nil), meta.Array(nil)},
	)
	assert.Nil(t, headerToMetaItem(h))
}

func TestHeaderToMetaItemReturnsNilForEmptyHeader(t *testing.T) {
	assert.Nil(t, headerToMetaItem(meta.Value{}))
}
