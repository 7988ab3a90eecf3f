package consteval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/parse"
	"github.com/zero318/truth/internal/pos"
	"github.com/zero318/truth/internal/resolve"
)

func newTestEvaluator() *Evaluator {
	root := diag.NewRootEmitter()
	return NewEvaluator(nil, root)
}

func TestFoldIntArithmeticWrapsSilently(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldBinOp(ast.Add,
		context.ConstValue{Type: ast.Int, Int: math.MaxInt32},
		context.ConstValue{Type: ast.Int, Int: 1},
		pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, int32(math.MinInt32), v.Int)
}

func TestFoldIntDivisionByZeroReturnsZero(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldBinOp(ast.Div,
		context.ConstValue{Type: ast.Int, Int: 5},
		context.ConstValue{Type: ast.Int, Int: 0},
		pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, int32(0), v.Int)
}

func TestFoldFloatArithmetic(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldBinOp(ast.Mul,
		context.ConstValue{Type: ast.Float, Float: 2.5},
		context.ConstValue{Type: ast.Float, Float: 2.0},
		pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, float32(5.0), v.Float)
}

func TestFoldComparisonAlwaysYieldsInt(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldBinOp(ast.Lt,
		context.ConstValue{Type: ast.Float, Float: 1.0},
		context.ConstValue{Type: ast.Float, Float: 2.0},
		pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, ast.Int, v.Type)
	assert.Equal(t, int32(1), v.Int)
}

func TestFoldShiftOperators(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldBinOp(ast.UShr,
		context.ConstValue{Type: ast.Int, Int: -1},
		context.ConstValue{Type: ast.Int, Int: 28},
		pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, int32(0xF), v.Int, "unsigned shift of -1 must not sign-extend")
}

func TestFoldBinOpRejectsMixedTypes(t *testing.T) {
	ev := newTestEvaluator()
	_, ok := ev.foldBinOp(ast.Add,
		context.ConstValue{Type: ast.Int, Int: 1},
		context.ConstValue{Type: ast.Float, Float: 1.0},
		pos.NullSpan)
	assert.False(t, ok)
	assert.True(t, ev.emit.Errored(), "mismatched operand types must report an error")
}

func TestFoldUnOpNeg(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldUnOp(ast.Neg, context.ConstValue{Type: ast.Int, Int: 5}, pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, int32(-5), v.Int)
}

func TestFoldUnOpSqrtRequiresFloat(t *testing.T) {
	ev := newTestEvaluator()
	_, ok := ev.foldUnOp(ast.Sqrt, context.ConstValue{Type: ast.Int, Int: 4}, pos.NullSpan)
	assert.False(t, ok)
}

func TestFoldUnOpSqrt(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldUnOp(ast.Sqrt, context.ConstValue{Type: ast.Float, Float: 9.0}, pos.NullSpan)
	require.True(t, ok)
	assert.InDelta(t, 3.0, float64(v.Float), 1e-6)
}

func TestFoldUnOpCastIntTruncatesFloat(t *testing.T) {
	ev := newTestEvaluator()
	v, ok := ev.foldUnOp(ast.CastInt, context.ConstValue{Type: ast.Float, Float: 3.9}, pos.NullSpan)
	require.True(t, ok)
	assert.Equal(t, int32(3), v.Int)
}

// evaluateSrc parses, resolves, and evaluates every top-level const in
// src, mirroring passes.CompileFile's "evaluate const vars" stage.
func evaluateSrc(t *testing.T, src string) *diag.RootEmitter {
	t.Helper()
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

	require.NoError(t, resolve.NewResolver(ctx, lang, root.Emitter).ResolveFile(file))
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)

	_ = NewEvaluator(ctx, root.Emitter).EvaluateFile(file)
	return root.Emitter
}

func TestEvaluateFileDetectsCircularConst(t *testing.T) {
	emitter := evaluateSrc(t, `const int a = b;
const int b = a;

script main {
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
	require.Contains(t, emitter.Diagnostics[len(emitter.Diagnostics)-1].Message, "circular")
}

func TestEvaluateFileFoldsChainedConsts(t *testing.T) {
	root := context.NewRoot()
	adapter := std.Adapter{}
	lang := adapter.Language("10")
	const src = `const int a = 2;
const int b = a + 3;

script main {
}
`
	fileID := root.Files.Add("<test>", []byte(src))
	ctx := context.NewContext(root)
	mf, err := adapter.BuiltinMapfile("10")
	require.NoError(t, err)
	ctx.LoadMapfile(mf, lang)

	file, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	require.NoError(t, err)
	require.NoError(t, resolve.NewResolver(ctx, lang, root.Emitter).ResolveFile(file))
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)

	require.NoError(t, NewEvaluator(ctx, root.Emitter).EvaluateFile(file))

	var bItem *ast.ConstItem
	for _, item := range file.Items {
		if c, ok := item.(*ast.ConstItem); ok && c.Name.Name != 0 && ctx.Interner.Text(c.Name.Name) == "b" {
			bItem = c
		}
	}
	require.NotNil(t, bItem)
	defID, ok := ctx.Resolution(bItem.Name.Res)
	require.True(t, ok)
	v, ok := ctx.Consts[defID]
	require.True(t, ok)
	assert.Equal(t, int32(5), v.Int)
}
