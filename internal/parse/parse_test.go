package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/parse"
)

func lexAll(t *testing.T, src string) []parse.Token {
	t.Helper()
	root := context.NewRoot()
	fileID := root.Files.Add("<test>", []byte(src))
	lex := parse.NewLexer(root.Files.Get(fileID), fileID, root.Emitter)
	var toks []parse.Token
	for {
		tok := lex.Next()
		toks = append(toks, tok)
		if tok.Kind == parse.TEOF {
			return toks
		}
	}
}

func TestLexerScansDecimalHexAndBinaryIntegers(t *testing.T) {
	toks := lexAll(t, "10 0x1F 0b101")
	require.Len(t, toks, 4) // three literals plus EOF
	assert.Equal(t, int32(10), toks[0].IntVal)
	assert.Equal(t, ast.RadixDecimal, toks[0].Radix)
	assert.Equal(t, int32(0x1F), toks[1].IntVal)
	assert.Equal(t, ast.RadixHex, toks[1].Radix)
	assert.Equal(t, int32(0b101), toks[2].IntVal)
	assert.Equal(t, ast.RadixBinary, toks[2].Radix)
}

func TestLexerScansFloatWithExponent(t *testing.T) {
	toks := lexAll(t, "1.5e2")
	require.Len(t, toks, 2)
	assert.Equal(t, parse.TFloat, toks[0].Kind)
	assert.Equal(t, float32(150), toks[0].FloatVal)
}

func TestLexerScansStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\x41"`)
	require.Len(t, toks, 2)
	assert.Equal(t, []byte("a\nbA"), toks[0].StrVal)
}

func TestLexerSkipsLineAndBlockComments(t *testing.T) {
	toks := lexAll(t, "1 // line\n2 /* block */ 3")
	require.Len(t, toks, 4)
	assert.Equal(t, int32(1), toks[0].IntVal)
	assert.Equal(t, int32(2), toks[1].IntVal)
	assert.Equal(t, int32(3), toks[2].IntVal)
}

func TestLexerLongestMatchOnMultiByteOperators(t *testing.T) {
	toks := lexAll(t, ">>> >>= <<=")
	require.Len(t, toks, 4)
	assert.Equal(t, parse.TUShr, toks[0].Kind)
	assert.Equal(t, parse.TShrEq, toks[1].Kind)
	assert.Equal(t, parse.TShlEq, toks[2].Kind)
}

func parseSource(t *testing.T, src string) (*ast.ScriptFile, *context.Root) {
	t.Helper()
	root := context.NewRoot()
	ctx := context.NewContext(root)
	fileID := root.Files.Add("<test>", []byte(src))
	file, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	require.NoError(t, err)
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)
	return file, root
}

func scriptBody(t *testing.T, file *ast.ScriptFile) *ast.Block {
	t.Helper()
	item, ok := file.Items[0].(*ast.ScriptItem)
	require.True(t, ok)
	return item.Body
}

func TestParserRespectsMultiplicativeOverAdditivePrecedence(t *testing.T) {
	file, _ := parseSource(t, `script main {
	int x = 1 + 2 * 3;
}
`)
	decl := scriptBody(t, file).Stmts[0].Kind.(*ast.DeclarationStmt)
	add, ok := decl.Entries[0].Init.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, ast.Add, add.Op)

	_, ok = add.A.(*ast.LitInt)
	require.True(t, ok, "the left operand of + must be the bare literal 1, not absorbed into the multiplication")

	mul, ok := add.B.(*ast.BinOp)
	require.True(t, ok, "2 * 3 must bind tighter than the surrounding +")
	assert.Equal(t, ast.Mul, mul.Op)
}

func TestParserParsesAssignmentWithCompoundOperator(t *testing.T) {
	file, _ := parseSource(t, `script main {
	int x = 0;
	x += 1;
}
`)
	stmt := scriptBody(t, file).Stmts[1].Kind.(*ast.AssignStmt)
	assert.Equal(t, ast.AssignAdd, stmt.Op)
	lit, ok := stmt.Value.(*ast.LitInt)
	require.True(t, ok)
	assert.Equal(t, int32(1), lit.Value)
}

func TestParserParsesInstructionCallAsExprStmt(t *testing.T) {
	file, _ := parseSource(t, `script main {
	delay(1.0);
}
`)
	stmt := scriptBody(t, file).Stmts[0].Kind.(*ast.ExprStmt)
	call, ok := stmt.Expr.(*ast.Call)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
	arg, ok := call.Args[0].(*ast.LitFloat)
	require.True(t, ok)
	assert.Equal(t, float32(1.0), arg.Value)
	_, ok = call.Callable.(*ast.NormalCallableName)
	assert.True(t, ok, "an unqualified name like delay resolves to its instruction mapping later, in passes, not at parse time")
}

func TestParserParsesRawInsOpcodeCall(t *testing.T) {
	file, _ := parseSource(t, `script main {
	ins_7(1.0);
}
`)
	stmt := scriptBody(t, file).Stmts[0].Kind.(*ast.ExprStmt)
	call := stmt.Expr.(*ast.Call)
	ins, ok := call.Callable.(*ast.InsCallableName)
	require.True(t, ok)
	assert.Equal(t, 7, ins.Opcode)
}

func TestParserParsesPlainLabelAndGoto(t *testing.T) {
	file, _ := parseSource(t, `script main {
	top:
	goto top;
}
`)
	body := scriptBody(t, file)
	label, ok := body.Stmts[0].Kind.(*ast.PlainLabelStmt)
	require.True(t, ok)
	jump, ok := body.Stmts[1].Kind.(*ast.JumpStmt)
	require.True(t, ok)
	assert.Equal(t, label.Name, jump.Destination)
}

func TestParserEmitsDiagnosticOnUnterminatedString(t *testing.T) {
	root := context.NewRoot()
	ctx := context.NewContext(root)
	fileID := root.Files.Add("<test>", []byte(`script main { string s = "oops; }`))
	_, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	_ = err
	assert.Greater(t, root.Emitter.ErrorCount, 0, "an unterminated string literal must be reported, not silently truncated")
}

func TestLexerSpanCoversWholeLiteral(t *testing.T) {
	toks := lexAll(t, "  42")
	assert.Equal(t, uint32(2), toks[0].Span.Start)
	assert.Equal(t, uint32(4), toks[0].Span.End)
}
