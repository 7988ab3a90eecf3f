package passes_test

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
)

// compileFile runs src through the full fixed-order pass pipeline and
// returns the resulting script body, mirroring internal/lower's own
// pipeline test helper.
func compileFile(t *testing.T, src string) (*context.Context, *ast.Block) {
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

	require.NoError(t, passes.CompileFile(ctx, lang, file, root.Emitter))
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)

	return ctx, file.Items[0].(*ast.ScriptItem).Body
}

// countKinds walks a fully desugared block (no nested constructs remain,
// so a single flat pass over Stmts suffices) and tallies each statement
// kind by Go type.
func countKinds(block *ast.Block) map[string]int {
	counts := map[string]int{}
	for _, stmt := range block.Stmts {
		switch stmt.Kind.(type) {
		case *ast.JumpStmt:
			counts["JumpStmt"]++
		case *ast.CondJumpStmt:
			counts["CondJumpStmt"]++
		case *ast.PlainLabelStmt:
			counts["PlainLabelStmt"]++
		case *ast.LoopStmt:
			counts["LoopStmt"]++
		case *ast.WhileStmt:
			counts["WhileStmt"]++
		case *ast.TimesStmt:
			counts["TimesStmt"]++
		case *ast.CondChainStmt:
			counts["CondChainStmt"]++
		case *ast.DeclarationStmt:
			counts["DeclarationStmt"]++
		case *ast.AssignStmt:
			counts["AssignStmt"]++
		}
	}
	return counts
}

func TestDesugarBlocksLoopLeavesOnlyLabelsAndJumps(t *testing.T) {
	_, body := compileFile(t, `script main {
	loop {
		delay(1.0);
	}
}
`)
	counts := countKinds(body)
	assert.Zero(t, counts["LoopStmt"], "DesugarBlocks must remove every LoopStmt")
	assert.Equal(t, 1, counts["JumpStmt"], "an unconditional loop desugars to start: body; goto start;")
	assert.GreaterOrEqual(t, counts["PlainLabelStmt"], 1)
}

func TestDesugarBlocksWhileIsCheckFirst(t *testing.T) {
	_, body := compileFile(t, `script main {
	int x = 0;
	while (x) {
		delay(1.0);
	}
}
`)
	counts := countKinds(body)
	assert.Zero(t, counts["WhileStmt"])
	// check-first while: an initial goto to the test, then one conditional
	// jump back into the body from the test.
	assert.Equal(t, 1, counts["JumpStmt"])
	assert.Equal(t, 1, counts["CondJumpStmt"])
}

func TestDesugarBlocksDoWhileIsCheckLast(t *testing.T) {
	_, body := compileFile(t, `script main {
	int x = 0;
	do {
		delay(1.0);
	} while (x);
}
`)
	counts := countKinds(body)
	assert.Zero(t, counts["WhileStmt"])
	// check-last do-while never needs the leading unconditional jump a
	// check-first while does.
	assert.Zero(t, counts["JumpStmt"])
	assert.Equal(t, 1, counts["CondJumpStmt"])
}

func TestDesugarBlocksTimesInsertsCounterAndDecrement(t *testing.T) {
	_, body := compileFile(t, `script main {
	times(3) {
		delay(1.0);
	}
}
`)
	counts := countKinds(body)
	assert.Zero(t, counts["TimesStmt"])
	assert.Equal(t, 1, counts["DeclarationStmt"], "times without an explicit clobber declares a hidden counter")
	assert.Equal(t, 1, counts["CondJumpStmt"])
}

func TestDesugarBlocksCondChainFallsThrough(t *testing.T) {
	_, body := compileFile(t, `script main {
	int x = 0;
	if (x) {
		delay(1.0);
	} elif (x) {
		delay(2.0);
	} else {
		delay(3.0);
	}
}
`)
	counts := countKinds(body)
	assert.Zero(t, counts["CondChainStmt"])
	// two arms before the else each contribute one "unless" test.
	assert.Equal(t, 2, counts["CondJumpStmt"])
	// each arm's body ends in a goto past the rest of the chain, so the
	// elif arm does not fall into the else.
	assert.Equal(t, 2, counts["JumpStmt"])
}

func TestDeadLabelEliminationDropsUnreferencedLabels(t *testing.T) {
	root := context.NewRoot()
	ctx := context.NewContext(root)
	used := ctx.Gensym.Fresh("used")
	unused := ctx.Gensym.Fresh("unused")

	block := &ast.Block{Stmts: []*ast.Stmt{
		{Kind: &ast.PlainLabelStmt{Name: unused}},
		{Kind: &ast.PlainLabelStmt{Name: used}},
		{Kind: &ast.JumpStmt{Destination: used}},
	}}

	passes.DeadLabelElimination(block)

	require.Len(t, block.Stmts, 2, "the unused label must be dropped, the used label and its jump kept")
	lbl, ok := block.Stmts[0].Kind.(*ast.PlainLabelStmt)
	require.True(t, ok)
	assert.Equal(t, used, lbl.Name)
}

func TestDeadLabelEliminationRecursesIntoNestedBlocks(t *testing.T) {
	root := context.NewRoot()
	ctx := context.NewContext(root)
	target := ctx.Gensym.Fresh("inner_target")
	stray := ctx.Gensym.Fresh("inner_stray")

	inner := &ast.Block{Stmts: []*ast.Stmt{
		{Kind: &ast.PlainLabelStmt{Name: stray}},
		{Kind: &ast.PlainLabelStmt{Name: target}},
	}}
	outer := &ast.Block{Stmts: []*ast.Stmt{
		{Kind: &ast.LoopStmt{Body: inner}},
		{Kind: &ast.JumpStmt{Destination: target}},
	}}

	passes.DeadLabelElimination(outer)

	require.Len(t, inner.Stmts, 1, "the label a jump outside this nested block targets must survive")
	lbl := inner.Stmts[0].Kind.(*ast.PlainLabelStmt)
	assert.Equal(t, target, lbl.Name)
}

func TestValidateDifficultyAcceptsDeclaredFlags(t *testing.T) {
	_, root, ctx, file, lang := parseOnly(t, `script main {
	{EN}: delay(1.0);
}
`)
	passes.AssignLanguages(file, lang)
	require.NoError(t, passes.ValidateDifficulty(ctx, lang, file, root.Emitter))
	assert.Equal(t, 0, root.Emitter.ErrorCount)
}

func TestValidateDifficultyRejectsUnknownFlag(t *testing.T) {
	_, root, ctx, file, lang := parseOnly(t, `script main {
	{Q}: delay(1.0);
}
`)
	passes.AssignLanguages(file, lang)
	err := passes.ValidateDifficulty(ctx, lang, file, root.Emitter)
	assert.Error(t, err, "Q is not one of STD's builtin E/N/H/L/X difficulty flags")
}

func TestRefreshNodeIDsMintsFreshIDs(t *testing.T) {
	root := context.NewRoot()
	ctx := context.NewContext(root)

	body := &ast.Block{Stmts: []*ast.Stmt{
		{ID: 0, Kind: &ast.NoInstruction{}},
		{ID: 0, Kind: &ast.NoInstruction{}},
	}}
	file := &ast.ScriptFile{Items: []ast.Item{&ast.ScriptItem{Body: body}}}

	passes.RefreshNodeIDs(ctx, file)

	assert.NotEqual(t, ast.NodeID(0), body.Stmts[0].ID)
	assert.NotEqual(t, ast.NodeID(0), body.Stmts[1].ID)
	assert.NotEqual(t, body.Stmts[0].ID, body.Stmts[1].ID)
}

func TestMakeIdentsUniqueRenamesOnlyTheColliderDeclaration(t *testing.T) {
	root := context.NewRoot()
	ctx := context.NewContext(root)

	text := ctx.Interner.Intern("x")
	firstDef := ctx.DefineLocal(ast.VarInt, pos.NullSpan)
	secondDef := ctx.DefineLocal(ast.VarInt, pos.NullSpan)

	firstName := ctx.NewResIdent(text)
	ctx.Resolve(firstName.Res, firstDef)
	secondName := ctx.NewResIdent(text)
	ctx.Resolve(secondName.Res, secondDef)
	secondUse := ctx.NewResIdent(text)
	ctx.Resolve(secondUse.Res, secondDef)

	body := &ast.Block{Stmts: []*ast.Stmt{
		{Kind: &ast.DeclarationStmt{Type: ast.VarInt, Entries: []ast.DeclEntry{{Name: firstName}}}},
		{Kind: &ast.DeclarationStmt{Type: ast.VarInt, Entries: []ast.DeclEntry{{Name: secondName}}}},
		{Kind: &ast.AssignStmt{Var: &ast.Var{Name: &ast.NormalVarName{Res: secondUse}}, Op: ast.Assign}},
	}}
	file := &ast.ScriptFile{Items: []ast.Item{&ast.ScriptItem{Body: body}}}

	passes.MakeIdentsUnique(ctx, file)

	firstDecl := body.Stmts[0].Kind.(*ast.DeclarationStmt)
	secondDecl := body.Stmts[1].Kind.(*ast.DeclarationStmt)
	use := body.Stmts[2].Kind.(*ast.AssignStmt).Var.Name.(*ast.NormalVarName)

	assert.Equal(t, text, firstDecl.Entries[0].Name.Name, "the first declaration to claim a name keeps it")
	assert.NotEqual(t, text, secondDecl.Entries[0].Name.Name, "the second, colliding declaration must be renamed")
	assert.Equal(t, secondDecl.Entries[0].Name.Name, use.Res.Name, "every later reference to the renamed local must track the new name")
}

// parseOnly parses src and returns it unresolved, for passes (like
// ValidateDifficulty) that only need AssignLanguages to have run first.
func parseOnly(t *testing.T, src string) (*std.Adapter, *context.Root, *context.Context, *ast.ScriptFile, ast.Language) {
	t.Helper()
	adapter := &std.Adapter{}
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

	return adapter, root, ctx, file, lang
}
