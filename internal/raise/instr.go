package raise

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

// raiseIntrinsic reconstructs the AST statement(s) for one instruction that
// matched kind in the intrinsic table.
func (r *Raiser) raiseIntrinsic(in instr.Instr, kind intrinsic.Kind, props *intrinsic.AbiProps, indexByOffset map[int]int, labelName func(int) ident.Ident) []ast.StmtKind {
	switch k := props.Kind.(type) {
	case intrinsic.JmpProps:
		dest, t := r.resolveJumpArgs(in, k.Jump, indexByOffset, labelName)
		return []ast.StmtKind{&ast.JumpStmt{Destination: dest, Time: t}}

	case intrinsic.InterruptLabelProps:
		n := in.Args[k.Label.Index].AsInt()
		return []ast.StmtKind{&ast.InterruptLabelStmt{N: int(n)}}

	case intrinsic.AssignOpProps:
		op := kind.(intrinsic.AssignOp)
		dest := r.regExpr(in.Args[k.Dest.Index], op.Ty)
		rhs := r.scalarExpr(in.Args[k.Rhs.Index], op.Ty)
		return []ast.StmtKind{&ast.AssignStmt{Var: dest, Op: op.Op, Value: rhs}}

	case intrinsic.BinOpProps:
		op := kind.(intrinsic.BinOp)
		dest := r.regExpr(in.Args[k.Dest.Index], op.Ty)
		a := r.scalarExpr(in.Args[k.Args[0].Index], op.Ty)
		b := r.scalarExpr(in.Args[k.Args[1].Index], op.Ty)
		return []ast.StmtKind{&ast.AssignStmt{Var: dest, Op: ast.Assign, Value: ast.NewBinOp(a.Span(), op.Op, a, b)}}

	case intrinsic.UnOpProps:
		op := kind.(intrinsic.UnOp)
		dest := r.regExpr(in.Args[k.Dest.Index], op.Ty)
		arg := r.scalarExpr(in.Args[k.Arg.Index], op.Ty)
		return []ast.StmtKind{&ast.AssignStmt{Var: dest, Op: ast.Assign, Value: ast.NewUnOp(arg.Span(), op.Op, arg)}}

	case intrinsic.CountJmpProps:
		dest, t := r.resolveJumpArgs(in, k.Jump, indexByOffset, labelName)
		v := r.regExpr(in.Args[k.Arg.Index], ast.Int)
		xc := ast.NewXcrement(v.Span(), ast.Decrement, true, v)
		return []ast.StmtKind{&ast.CondJumpStmt{Unless: false, Cond: xc, Destination: dest, Time: t}}

	case intrinsic.CondJmpProps:
		op := kind.(intrinsic.CondJmp)
		a := r.scalarExpr(in.Args[k.Args[0].Index], op.Ty)
		b := r.scalarExpr(in.Args[k.Args[1].Index], op.Ty)
		dest, t := r.resolveJumpArgs(in, k.Jump, indexByOffset, labelName)
		cond := ast.NewBinOp(a.Span(), op.Op, a, b)
		return []ast.StmtKind{&ast.CondJumpStmt{Unless: false, Cond: cond, Destination: dest, Time: t}}

	case intrinsic.CondJmp2AProps, intrinsic.CondJmp2BProps:
		// These two-instruction patterns (an operand-loading half followed
		// by a separate jump half) are rendered as their raw calls; merging
		// them back into a single CondJmp AST node is a later, optional
		// structural pass, not yet implemented.
		return []ast.StmtKind{r.raiseRawCall(in)}

	default:
		return []ast.StmtKind{r.raiseRawCall(in)}
	}
}

func (r *Raiser) regExpr(a instr.RawArg, ty ast.ScalarType) *ast.Var {
	reg := ast.RegID(a.AsInt())
	if ty == ast.Float {
		reg = ast.RegID(int32(a.AsFloat()))
	}
	return &ast.Var{Name: &ast.RegVarName{Reg: reg, Language: &r.Lang}}
}

func (r *Raiser) scalarExpr(a instr.RawArg, ty ast.ScalarType) ast.Expr {
	if ty == ast.Float {
		return ast.NewLitFloat(pos.NullSpan, a.AsFloat())
	}
	return ast.NewLitInt(pos.NullSpan, a.AsInt(), ast.RadixDecimal)
}

// raiseRawCall renders one unmatched (or intrinsic-matching-disabled)
// instruction as `ins_OPCODE(a0, a1, ...)`, typed from its mapfile
// signature when known, or as a `@blob=` byte dump otherwise.
func (r *Raiser) raiseRawCall(in instr.Instr) ast.StmtKind {
	sig, hasSig := (mapfile.Signature)(nil), false
	if r.Mapfile != nil {
		sig, hasSig = r.Mapfile.InsSignatures[in.Opcode]
	}
	callable := &ast.InsCallableName{Opcode: in.Opcode, Language: &r.Lang}

	if !hasSig || signatureHasString(sig) || r.Opts.NoArguments {
		r.Emit.Emit(diag.New(diag.Warning, diag.CategoryRaise,
			"opcode %d has no usable signature; emitting a raw @blob", in.Opcode))
		blob := blobBytes(in.Args)
		call := ast.NewCall(pos.NullSpan, callable, []ast.PseudoArg{{Kind: ast.PseudoBlob, Value: ast.NewLitString(pos.NullSpan, blob)}}, nil)
		return &ast.ExprStmt{Expr: call}
	}

	args := make([]ast.Expr, 0, len(sig))
	for i, enc := range sig {
		if i >= len(in.Args) {
			break
		}
		ty, ok := enc.Char.ScalarType()
		if !ok {
			continue
		}
		args = append(args, r.scalarExpr(in.Args[i], ty))
	}
	call := ast.NewCall(pos.NullSpan, callable, nil, args)
	return &ast.ExprStmt{Expr: call}
}

func signatureHasString(sig mapfile.Signature) bool {
	for _, enc := range sig {
		if enc.Char == mapfile.EncFixedString || enc.Char == mapfile.EncVarString {
			return true
		}
	}
	return false
}

// blobBytes packs each argument's raw 32 bits, little-endian, into the
// byte sequence an unrecognized instruction's @blob= pseudo-arg carries.
func blobBytes(args []instr.RawArg) []byte {
	out := make([]byte, 0, len(args)*4)
	for _, a := range args {
		out = append(out, byte(a.Bits), byte(a.Bits>>8), byte(a.Bits>>16), byte(a.Bits>>24))
	}
	return out
}
