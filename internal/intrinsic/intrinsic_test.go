package intrinsic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

func sig(t *testing.T, s string) mapfile.Signature {
	t.Helper()
	parsed, err := mapfile.ParseSignature(s)
	require.NoError(t, err)
	return parsed
}

func TestFromBindingKinds(t *testing.T) {
	tests := []struct {
		name string
		b    mapfile.IntrinsicBinding
		want Kind
	}{
		{"Jmp", mapfile.IntrinsicBinding{Name: "Jmp"}, Jmp{}},
		{"InterruptLabel", mapfile.IntrinsicBinding{Name: "InterruptLabel"}, InterruptLabel{}},
		{"CountJmp", mapfile.IntrinsicBinding{Name: "CountJmp"}, CountJmp{}},
		{
			"AssignOp", mapfile.IntrinsicBinding{Name: "AssignOp", Attrs: map[string]string{"op": "+=", "ty": "int"}},
			AssignOp{Op: ast.AssignAdd, Ty: ast.Int},
		},
		{
			"BinOp", mapfile.IntrinsicBinding{Name: "BinOp", Attrs: map[string]string{"op": "+", "ty": "float"}},
			BinOp{Op: ast.Add, Ty: ast.Float},
		},
		{
			"UnOp", mapfile.IntrinsicBinding{Name: "UnOp", Attrs: map[string]string{"op": "-", "ty": "int"}},
			UnOp{Op: ast.Neg, Ty: ast.Int},
		},
		{
			"CondJmp", mapfile.IntrinsicBinding{Name: "CondJmp", Attrs: map[string]string{"op": "==", "ty": "int"}},
			CondJmp{Op: ast.Eq, Ty: ast.Int},
		},
		{
			"CondJmp2A", mapfile.IntrinsicBinding{Name: "CondJmp2A", Attrs: map[string]string{"ty": "float"}},
			CondJmp2A{Ty: ast.Float},
		},
		{
			"CondJmp2B", mapfile.IntrinsicBinding{Name: "CondJmp2B", Attrs: map[string]string{"op": "<"}},
			CondJmp2B{Op: ast.Lt},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromBinding(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromBindingRejectsUnknownName(t *testing.T) {
	_, err := FromBinding(mapfile.IntrinsicBinding{Name: "Bogus"})
	assert.Error(t, err)
}

func TestFromBindingRejectsUnknownAttrs(t *testing.T) {
	_, err := FromBinding(mapfile.IntrinsicBinding{Name: "BinOp", Attrs: map[string]string{"op": "nope", "ty": "int"}})
	assert.Error(t, err)

	_, err = FromBinding(mapfile.IntrinsicBinding{Name: "BinOp", Attrs: map[string]string{"op": "+", "ty": "nope"}})
	assert.Error(t, err)
}

func TestOutTypeFromBinOp(t *testing.T) {
	assert.Equal(t, ast.Int, OutTypeFromBinOp(ast.Eq, ast.Float), "comparison always yields int")
	assert.Equal(t, ast.Float, OutTypeFromBinOp(ast.Add, ast.Float), "arithmetic preserves the operand type")
}

func TestFromABIBinOp(t *testing.T) {
	props, err := FromABI(BinOp{Op: ast.Add, Ty: ast.Int}, sig(t, "SSS"), pos.NullSpan)
	require.NoError(t, err)
	assert.Equal(t, 3, props.NumInstrArgs)

	bo, ok := props.Kind.(BinOpProps)
	require.True(t, ok)
	assert.Equal(t, OutOperandType{Index: 0, Kind: OutNatural}, bo.Dest)
	assert.Equal(t, [2]InputOperandType{{Index: 1}, {Index: 2}}, bo.Args)
}

func TestFromABIBinOpFloatAsIntOutput(t *testing.T) {
	// EoSD-ECL style: a float result stored through an 'S' (int) slot is
	// only legal for the output operand, never an input.
	props, err := FromABI(BinOp{Op: ast.Add, Ty: ast.Float}, sig(t, "Sff"), pos.NullSpan)
	require.NoError(t, err)
	bo := props.Kind.(BinOpProps)
	assert.Equal(t, OutFloatAsInt, bo.Dest.Kind)
}

func TestFromABIJmpWithAdjacentOffsetThenTime(t *testing.T) {
	props, err := FromABI(Jmp{}, sig(t, "ot"), pos.NullSpan)
	require.NoError(t, err)
	jp := props.Kind.(JmpProps)
	assert.Equal(t, JumpArgOrder{Index: 0, Kind: JumpLocTime}, jp.Jump)
}

func TestFromABIJmpWithAdjacentTimeThenOffset(t *testing.T) {
	props, err := FromABI(Jmp{}, sig(t, "to"), pos.NullSpan)
	require.NoError(t, err)
	jp := props.Kind.(JmpProps)
	assert.Equal(t, JumpArgOrder{Index: 0, Kind: JumpTimeLoc}, jp.Jump)
}

func TestFromABIJmpOffsetOnly(t *testing.T) {
	props, err := FromABI(Jmp{}, sig(t, "o"), pos.NullSpan)
	require.NoError(t, err)
	jp := props.Kind.(JmpProps)
	assert.Equal(t, JumpArgOrder{Index: 0, Kind: JumpLoc}, jp.Jump)
}

func TestFromABIJmpStripsTrailingPadding(t *testing.T) {
	props, err := FromABI(Jmp{}, sig(t, "o__"), pos.NullSpan)
	require.NoError(t, err)
	jp := props.Kind.(JmpProps)
	assert.Equal(t, UnrepresentablePadding{Index: 1, Count: 2}, jp.Padding)
}

func TestFromABIJmpMissingOffsetErrors(t *testing.T) {
	_, err := FromABI(Jmp{}, sig(t, "t"), pos.NullSpan)
	assert.Error(t, err)
}

func TestFromABIJmpNonAdjacentOffsetAndTimeErrors(t *testing.T) {
	_, err := FromABI(Jmp{}, sig(t, "oSt"), pos.NullSpan)
	assert.Error(t, err)
}

func TestFromABIRejectsLeftoverArgs(t *testing.T) {
	_, err := FromABI(UnOp{Op: ast.Neg, Ty: ast.Int}, sig(t, "SSS"), pos.NullSpan)
	assert.Error(t, err, "UnOp only consumes 2 of the 3 args; the leftover must be rejected")
}

func TestFromABIRejectsWrongEncoding(t *testing.T) {
	_, err := FromABI(UnOp{Op: ast.Neg, Ty: ast.Int}, sig(t, "Sf"), pos.NullSpan)
	assert.Error(t, err, "an int UnOp's input must be 'S', not 'f'")
}

func TestFromABICondJmp2ASplitAcrossTwoOpcodes(t *testing.T) {
	props, err := FromABI(CondJmp2A{Ty: ast.Int}, sig(t, "SS"), pos.NullSpan)
	require.NoError(t, err)
	a := props.Kind.(CondJmp2AProps)
	assert.Equal(t, [2]InputOperandType{{Index: 0}, {Index: 1}}, a.Args)

	props, err = FromABI(CondJmp2B{Op: ast.Lt}, sig(t, "o"), pos.NullSpan)
	require.NoError(t, err)
	b := props.Kind.(CondJmp2BProps)
	assert.Equal(t, JumpArgOrder{Index: 0, Kind: JumpLoc}, b.Jump)
}

func TestBuildTableSkipsBadBindingsButKeepsGoodOnes(t *testing.T) {
	mf := &mapfile.Mapfile{
		InsSignatures: map[int]mapfile.Signature{
			1: sig(t, "SSS"),
			2: sig(t, "SS"), // no matching binding below -> unused
			3: sig(t, "SSS"),
		},
		InsIntrinsics: map[int]mapfile.IntrinsicBinding{
			1: {Name: "BinOp", Attrs: map[string]string{"op": "+", "ty": "int"}},
			3: {Name: "UnOp", Attrs: map[string]string{"op": "-", "ty": "int"}}, // ABI mismatch: UnOp needs 2 args, sig has 3
		},
	}
	root := diag.NewRootEmitter()
	table := BuildTable(mf, root)

	op, props, ok := table.Opcode(BinOp{Op: ast.Add, Ty: ast.Int})
	require.True(t, ok)
	assert.Equal(t, 1, op)
	assert.NotNil(t, props)

	_, _, ok = table.Opcode(UnOp{Op: ast.Neg, Ty: ast.Int})
	assert.False(t, ok, "the mismatched binding for opcode 3 must not make it into the table")

	assert.Greater(t, root.ErrorCount, 0, "the ABI mismatch on opcode 3 must be reported")

	kind, _, ok := table.Kind(1)
	assert.True(t, ok)
	assert.Equal(t, BinOp{Op: ast.Add, Ty: ast.Int}, kind)

	_, _, ok = table.Kind(2)
	assert.False(t, ok, "opcode 2 has a signature but no intrinsic binding")
}

func TestBuildTableReportsMissingSignature(t *testing.T) {
	mf := &mapfile.Mapfile{
		InsIntrinsics: map[int]mapfile.IntrinsicBinding{
			5: {Name: "Jmp"},
		},
	}
	root := diag.NewRootEmitter()
	table := BuildTable(mf, root)

	_, _, ok := table.Opcode(Jmp{})
	assert.False(t, ok)
	assert.Greater(t, root.ErrorCount, 0)
}
