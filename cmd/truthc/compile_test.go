package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/pos"
)

func compileFlagsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "compile"}
	cmd.Flags().StringArray("mapfile", nil, "")
	cmd.Flags().Bool("no-builtin-mapfiles", false, "")
	return cmd
}

func TestLoadMapfilesDefaultsToBuiltin(t *testing.T) {
	cmd := compileFlagsCmd()
	mf, err := loadMapfiles(std.Adapter{}, "10", cmd)
	require.NoError(t, err)
	_, ok := mf.InsSignatures[2]
	assert.True(t, ok, "set_pos (opcode 2) must come from STD's builtin mapfile")
}

func TestLoadMapfilesNoBuiltinStartsEmpty(t *testing.T) {
	cmd := compileFlagsCmd()
	require.NoError(t, cmd.Flags().Set("no-builtin-mapfiles", "true"))
	mf, err := loadMapfiles(std.Adapter{}, "10", cmd)
	require.NoError(t, err)
	assert.Empty(t, mf.InsSignatures)
}

func TestLoadMapfilesMergesUserMapfileOverBuiltin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.map")
	require.NoError(t, os.WriteFile(path, []byte("!stdmap\n\n!ins_names\n2 renamed_set_pos\n"), 0o644))

	cmd := compileFlagsCmd()
	require.NoError(t, cmd.Flags().Set("mapfile", path))
	mf, err := loadMapfiles(std.Adapter{}, "10", cmd)
	require.NoError(t, err)
	assert.Equal(t, "renamed_set_pos", mf.InsNames[2], "a later-supplied mapfile's names must win over the builtin")
}

func TestBuildHeaderMetaCarriesFlatMetaFields(t *testing.T) {
	file := &ast.ScriptFile{Items: []ast.Item{
		&ast.MetaItem{Keyword: "meta", Fields: []ast.MetaField{
			{Name: "unknown", Value: ast.NewLitInt(pos.NullSpan, 7, ast.RadixDecimal)},
			{Name: "anm_path", Value: ast.NewLitString(pos.NullSpan, []byte("bg.anm"))},
		}},
	}}

	hm := buildHeaderMeta(file)

	unk, ok := hm.Field("unknown")
	require.True(t, ok)
	i, _ := unk.Int()
	assert.Equal(t, int64(7), i)

	anmPath, ok := hm.Field("anm_path")
	require.True(t, ok)
	assert.Equal(t, "bg.anm", anmPath.String())

	numObjects, ok := hm.Field("num_objects")
	require.True(t, ok)
	n, _ := numObjects.Int()
	assert.Zero(t, n, "object/instance tables aren't addressable from a meta block, so they default to empty")
}

func TestBuildHeaderMetaDefaultsUnknownToZeroWhenAbsent(t *testing.T) {
	file := &ast.ScriptFile{}
	hm := buildHeaderMeta(file)
	unk, ok := hm.Field("unknown")
	require.True(t, ok)
	i, _ := unk.Int()
	assert.Zero(t, i)
}
