package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/lower"
	"github.com/zero318/truth/internal/parse"
	"github.com/zero318/truth/internal/passes"
)

// compileToInstrs runs the same parse -> typecheck -> const-fold -> lower
// -> assemble sequence cmd/truthc's compile subcommand runs for one
// format/game pair, and returns the assembled instructions for "main".
func compileToInstrs(t *testing.T, src string) []instrResult {
	t.Helper()
	adapter := std.Adapter{}
	game := "10"
	lang := adapter.Language(game)

	root := context.NewRoot()
	fileID := root.Files.Add("<test>", []byte(src))
	ctx := context.NewContext(root)

	mf, err := adapter.BuiltinMapfile(game)
	require.NoError(t, err)
	ctx.LoadMapfile(mf, lang)

	file, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	require.NoError(t, err)
	require.Equal(t, 0, root.Emitter.ErrorCount)

	require.NoError(t, passes.CompileFile(ctx, lang, file, root.Emitter))
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)

	table := intrinsic.BuildTable(mf, root.Emitter)
	require.Equal(t, 0, root.Emitter.ErrorCount)

	var results []instrResult
	for _, item := range file.Items {
		scriptItem, ok := item.(*ast.ScriptItem)
		if !ok {
			continue
		}
		lowerer := lower.NewLowerer(ctx, lang, table, root.Emitter, nil)
		require.NoError(t, lowerer.LowerBlock(scriptItem.Body))

		assembler := lower.NewAssembler(adapter.ScratchPool(game), adapter.Sizer(mf), root.Emitter)
		instrs, err := assembler.Assemble(lowerer.Out())
		require.NoError(t, err)
		for _, in := range instrs {
			results = append(results, instrResult{opcode: in.Opcode, time: in.Time, args: in.Args})
		}
	}
	return results
}

type instrResult struct {
	opcode int
	time   int32
	args   []instr.RawArg
}

func TestLowerAndAssembleRawCalls(t *testing.T) {
	results := compileToInstrs(t, `script main {
	set_pos(1.0, 2.0, 3.0);
	delay(2.0 + 3.0);
}
`)
	require.Len(t, results, 2)

	assert.Equal(t, 2, results[0].opcode, "set_pos is opcode 2 in STD's builtin mapfile")
	require.Len(t, results[0].args, 3)
	assert.Equal(t, float32(1.0), results[0].args[0].AsFloat())
	assert.Equal(t, float32(2.0), results[0].args[1].AsFloat())
	assert.Equal(t, float32(3.0), results[0].args[2].AsFloat())

	assert.Equal(t, 7, results[1].opcode, "delay is opcode 7 in STD's builtin mapfile")
	require.Len(t, results[1].args, 1)
	assert.Equal(t, float32(5.0), results[1].args[0].AsFloat(), "const-simplify must fold 2.0 + 3.0 before lowering")
}

func TestLowerRejectsTooManyArguments(t *testing.T) {
	adapter := std.Adapter{}
	lang := adapter.Language("10")
	root := context.NewRoot()
	const src = `script main {
	ins_7(1.0, 2.0);
}
`
	fileID := root.Files.Add("<test>", []byte(src))
	ctx := context.NewContext(root)
	mf, err := adapter.BuiltinMapfile("10")
	require.NoError(t, err)
	ctx.LoadMapfile(mf, lang)

	file, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	require.NoError(t, err)

	// Skip type checking here: it would itself reject the argument-count
	// mismatch before lowering ever sees it. This test targets lowering's
	// own arity guard directly.
	table := intrinsic.BuildTable(mf, root.Emitter)
	scriptItem := file.Items[0].(*ast.ScriptItem)
	lowerer := lower.NewLowerer(ctx, lang, table, root.Emitter, nil)
	err = lowerer.LowerBlock(scriptItem.Body)
	assert.Error(t, err)
}
