package intrinsic

import (
	"fmt"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

// parseScalarTyAttr decodes a "ty" attribute value ("int"/"float"/"string").
func parseScalarTyAttr(s string) (ast.ScalarType, error) {
	switch s {
	case "int":
		return ast.Int, nil
	case "float":
		return ast.Float, nil
	case "string":
		return ast.String, nil
	default:
		return 0, fmt.Errorf("intrinsic: unrecognised ty=%q", s)
	}
}

func parseBinOpAttr(s string) (ast.BinOpKind, error) {
	for _, op := range []ast.BinOpKind{
		ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Rem,
		ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge,
		ast.BitAnd, ast.BitOr, ast.BitXor, ast.Shl, ast.Shr, ast.UShr,
		ast.LogAnd, ast.LogOr,
	} {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("intrinsic: unrecognised op=%q", s)
}

func parseUnOpAttr(s string) (ast.UnOpKind, error) {
	for _, op := range []ast.UnOpKind{ast.Neg, ast.Not, ast.BitNot, ast.Sin, ast.Cos, ast.Sqrt} {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("intrinsic: unrecognised op=%q", s)
}

func parseAssignOpAttr(s string) (ast.AssignOpKind, error) {
	for _, op := range []ast.AssignOpKind{
		ast.Assign, ast.AssignAdd, ast.AssignSub, ast.AssignMul, ast.AssignDiv, ast.AssignRem,
		ast.AssignBitAnd, ast.AssignBitOr, ast.AssignBitXor, ast.AssignShl, ast.AssignShr,
	} {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("intrinsic: unrecognised op=%q", s)
}

// FromBinding interprets one parsed `ins_intrinsics` row (the
// "Name(attr=val;...)" grammar) as an abstract Kind. The Name vocabulary
// mirrors the Rust original's IntrinsicInstrKind variant names one-to-one
// (Jmp, InterruptLabel, AssignOp, BinOp, UnOp, CountJmp, CondJmp,
// CondJmp2A, CondJmp2B).
func FromBinding(b mapfile.IntrinsicBinding) (Kind, error) {
	attr := func(k string) string { return b.Attrs[k] }

	switch b.Name {
	case "Jmp":
		return Jmp{}, nil
	case "InterruptLabel":
		return InterruptLabel{}, nil
	case "AssignOp":
		op, err := parseAssignOpAttr(attr("op"))
		if err != nil {
			return nil, err
		}
		ty, err := parseScalarTyAttr(attr("ty"))
		if err != nil {
			return nil, err
		}
		return AssignOp{Op: op, Ty: ty}, nil
	case "BinOp":
		op, err := parseBinOpAttr(attr("op"))
		if err != nil {
			return nil, err
		}
		ty, err := parseScalarTyAttr(attr("ty"))
		if err != nil {
			return nil, err
		}
		return BinOp{Op: op, Ty: ty}, nil
	case "UnOp":
		op, err := parseUnOpAttr(attr("op"))
		if err != nil {
			return nil, err
		}
		ty, err := parseScalarTyAttr(attr("ty"))
		if err != nil {
			return nil, err
		}
		return UnOp{Op: op, Ty: ty}, nil
	case "CountJmp":
		return CountJmp{}, nil
	case "CondJmp":
		op, err := parseBinOpAttr(attr("op"))
		if err != nil {
			return nil, err
		}
		ty, err := parseScalarTyAttr(attr("ty"))
		if err != nil {
			return nil, err
		}
		return CondJmp{Op: op, Ty: ty}, nil
	case "CondJmp2A":
		ty, err := parseScalarTyAttr(attr("ty"))
		if err != nil {
			return nil, err
		}
		return CondJmp2A{Ty: ty}, nil
	case "CondJmp2B":
		op, err := parseBinOpAttr(attr("op"))
		if err != nil {
			return nil, err
		}
		return CondJmp2B{Op: op}, nil
	default:
		return nil, fmt.Errorf("intrinsic: unrecognised intrinsic name %q", b.Name)
	}
}

// Table is the per-language two-way mapping between abstract Kinds and
// concrete opcodes, plus the validated AbiProps for each, built once per
// compile/decompile invocation.
type Table struct {
	opcodeOf map[kindKey]int
	kindOf   map[int]Kind
	abiOf    map[kindKey]*AbiProps
}

// kindKey makes Kind comparable as a map key (Kind values are always
// plain structs of comparable fields, so this is a safe conversion).
type kindKey struct{ v any }

func keyOf(k Kind) kindKey { return kindKey{v: k} }

// BuildTable constructs a Table from mf's `ins_intrinsics`/`ins_signatures`
// sections, validating every bound intrinsic's ABI against its opcode's
// signature via FromABI. A malformed binding or an ABI mismatch is
// reported through emitter and that one opcode is skipped (the rest of
// the table is still usable), matching the lowerer's/raiser's general
// accumulate-and-continue discipline.
func BuildTable(mf *mapfile.Mapfile, emitter diag.Emitter) *Table {
	t := &Table{
		opcodeOf: map[kindKey]int{},
		kindOf:   map[int]Kind{},
		abiOf:    map[kindKey]*AbiProps{},
	}
	for opcode, binding := range mf.InsIntrinsics {
		kind, err := FromBinding(binding)
		if err != nil {
			emitter.Emit(diag.New(diag.Error, diag.CategoryLower, "bad intrinsic binding for opcode %d: %s", opcode, err))
			continue
		}
		sig, ok := mf.InsSignatures[opcode]
		if !ok {
			emitter.Emit(diag.New(diag.Error, diag.CategoryLower, "opcode %d bound to intrinsic %q has no signature", opcode, binding.Name))
			continue
		}
		props, err := FromABI(kind, sig, pos.NullSpan)
		if err != nil {
			emitter.Emit(err.(*diag.Diagnostic))
			continue
		}
		k := keyOf(kind)
		t.opcodeOf[k] = opcode
		t.kindOf[opcode] = kind
		t.abiOf[k] = props
	}
	return t
}

// Opcode returns the opcode bound to kind in this language, if any.
func (t *Table) Opcode(kind Kind) (int, *AbiProps, bool) {
	op, ok := t.opcodeOf[keyOf(kind)]
	if !ok {
		return 0, nil, false
	}
	return op, t.abiOf[keyOf(kind)], true
}

// Kind returns the abstract Kind bound to opcode, plus its AbiProps, if any
// (used by the raiser's opcode -> AST pattern match).
func (t *Table) Kind(opcode int) (Kind, *AbiProps, bool) {
	k, ok := t.kindOf[opcode]
	if !ok {
		return nil, nil, false
	}
	return k, t.abiOf[keyOf(k)], true
}
