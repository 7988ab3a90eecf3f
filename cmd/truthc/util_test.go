package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/format/std"
)

func TestFormatsRegistryContainsStd(t *testing.T) {
	_, ok := formats["std"]
	assert.True(t, ok, "std is the only currently implemented format adapter")
}

func TestAdapterForKnownFormatReturnsTheRegisteredAdapter(t *testing.T) {
	a := adapterFor("std")
	_, ok := a.(std.Adapter)
	assert.True(t, ok)
}

func testCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("flag", false, "")
	cmd.Flags().String("str", "", "")
	cmd.Flags().StringArray("arr", nil, "")
	return cmd
}

func TestGetFlagReadsRegisteredBoolFlag(t *testing.T) {
	cmd := testCmd()
	require.NoError(t, cmd.Flags().Set("flag", "true"))
	assert.True(t, GetFlag(cmd, "flag"))
}

func TestGetStringReadsRegisteredStringFlag(t *testing.T) {
	cmd := testCmd()
	require.NoError(t, cmd.Flags().Set("str", "hello"))
	assert.Equal(t, "hello", GetString(cmd, "str"))
}

func TestGetStringArrayReadsRegisteredArrayFlag(t *testing.T) {
	cmd := testCmd()
	require.NoError(t, cmd.Flags().Set("arr", "a"))
	require.NoError(t, cmd.Flags().Set("arr", "b"))
	assert.Equal(t, []string{"a", "b"}, GetStringArray(cmd, "arr"))
}

func TestMmapFileReadsFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	want := []byte("some binary payload")
	require.NoError(t, os.WriteFile(path, want, 0o644))

	data, closeFn, err := mmapFile(path)
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, want, data[:len(want)])
}

func TestMmapFileMissingFileReturnsError(t *testing.T) {
	_, _, err := mmapFile(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	assert.Error(t, err)
}
