package mapfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/pos"
)

func parse(t *testing.T, src string) (*Mapfile, *diag.RootEmitter) {
	t.Helper()
	files := pos.NewFiles()
	id := files.Add("<test>", []byte(src))
	root := diag.NewRootEmitter()
	mf, err := Parse(files.Get(id), id, root)
	require.NoError(t, err, "Parse returns an error only when its ErrorFlag recorded one")
	return mf, root
}

func TestParseBasicSections(t *testing.T) {
	mf, root := parse(t, `!stdmap

!ins_signatures
0 _
1 SSfff

!ins_names
0 delete
1 create

!gvar_names
10 posx

!gvar_types
10 float
`)
	require.Equal(t, 0, root.ErrorCount)
	assert.Equal(t, "stdmap", mf.Magic)

	sig, ok := mf.InsSignatures[1]
	require.True(t, ok)
	assert.Len(t, sig, 5)
	assert.Equal(t, EncInt32, sig[0].Char)
	assert.Equal(t, EncFloat, sig[2].Char)

	assert.Equal(t, "delete", mf.InsNames[0])
	assert.Equal(t, "posx", mf.GvarNames[10])
	assert.Equal(t, ast.Float, mf.GvarTypes[10])
}

func TestParseIgnoresComments(t *testing.T) {
	mf, root := parse(t, `!stdmap
# a leading comment

!ins_names
0 foo # trailing comment
`)
	require.Equal(t, 0, root.ErrorCount)
	assert.Equal(t, "foo", mf.InsNames[0])
}

func TestParseInvalidSignatureEmitsDiagnostic(t *testing.T) {
	files := pos.NewFiles()
	id := files.Add("<test>", []byte(`!stdmap

!ins_signatures
0 q
`))
	root := diag.NewRootEmitter()
	_, err := Parse(files.Get(id), id, root)
	assert.Error(t, err, "Parse reports the error it emitted")
	assert.Greater(t, root.ErrorCount, 0, "an unrecognized encoding character must be reported")
}

func TestMergeLaterWins(t *testing.T) {
	base, _ := parse(t, `!stdmap

!ins_names
0 original
`)
	override, _ := parse(t, `!stdmap

!ins_names
0 renamed
`)
	root := diag.NewRootEmitter()
	base.Merge(override, root)

	assert.Equal(t, "renamed", base.InsNames[0], "merging a later mapfile must override an earlier binding")
}

func TestParseSignatureRejectsVarStringNotLast(t *testing.T) {
	_, err := ParseSignature("m(bs=4)S")
	assert.Error(t, err, "a masked string encoding must be the final argument")
}

func TestParseSignatureFixedString(t *testing.T) {
	sig, err := ParseSignature("SSz(bs=40)")
	require.NoError(t, err)
	require.Len(t, sig, 3)
	assert.Equal(t, EncFixedString, sig[2].Char)
	assert.Equal(t, 40, sig[2].BlockSize)
}
