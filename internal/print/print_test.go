package print_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/parse"
	"github.com/zero318/truth/internal/passes"
	"github.com/zero318/truth/internal/pos"
	"github.com/zero318/truth/internal/print"
)

// TestPrintRoundTripsCompiledSource exercises parse -> name resolution ->
// type checking -> const folding -> printing together, using STD's builtin mapfile the
// way `truthc std compile` does.
func TestPrintRoundTripsCompiledSource(t *testing.T) {
	const src = `meta {
	unknown: 0;
}

script main {
	set_pos(1.0, 2.0, 3.0);
	delay(2.0 + 3.0);
}
`
	adapter := std.Adapter{}
	lang := adapter.Language("10")

	root := context.NewRoot()
	fileID := root.Files.Add("<test>", []byte(src))
	ctx := context.NewContext(root)

	mf, err := adapter.BuiltinMapfile("10")
	require.NoError(t, err)
	ctx.LoadMapfile(mf, lang)

	file, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	require.NoError(t, err)
	require.Equal(t, 0, root.Emitter.ErrorCount)

	require.NoError(t, passes.CompileFile(ctx, lang, file, root.Emitter))
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)

	p := print.New(ctx.Interner)
	p.PrintFile(file)
	out := p.String()

	assert.Contains(t, out, "meta {")
	assert.Contains(t, out, "script main")
	assert.Contains(t, out, "set_pos(")
	// ConstSimplify should have folded 2 + 3 down to a single literal.
	assert.Contains(t, out, "delay(5)")
}

func TestPrintMetaItem(t *testing.T) {
	in := &ast.ScriptFile{
		Items: []ast.Item{
			&ast.MetaItem{
				Keyword: "meta",
				Fields: []ast.MetaField{
					{Name: "unknown", Value: ast.NewLitInt(pos.NullSpan, 7, ast.RadixDecimal)},
				},
			},
		},
	}
	p := print.New(nil)
	p.PrintFile(in)
	assert.Contains(t, p.String(), "unknown: 7;")
}
