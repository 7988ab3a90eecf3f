package lower

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/pos"
)

// exprClass is the result of classifyExpr: either the expression can be
// used directly as an instruction argument (simpleExpr), or it must first
// be evaluated into a temporary (temporaryExpr), grounded on
// stackless.rs's ExprClass.
type exprClass interface{ exprClassNode() }

type simpleExpr struct {
	arg LowArg
	ty  ast.ScalarType
}

func (simpleExpr) exprClassNode() {}

// temporaryExpr names the part of the expression that must be stored to a
// temporary (tmpExpr, of type tmpTy), and the type it should be read back
// as (readTy, which differs from tmpTy only for a _S(...)/_f(...) cast:
// the temporary holds the pre-cast type, and the cast sigil is applied at
// the read site instead of requiring a second temporary).
type temporaryExpr struct {
	tmpExpr ast.Expr
	tmpTy   ast.ScalarType
	readTy  ast.ScalarType
}

func (temporaryExpr) exprClassNode() {}

func (l *Lowerer) classifyExpr(e ast.Expr) exprClass {
	switch ex := e.(type) {
	case *ast.LitInt:
		return simpleExpr{arg: ArgRawInt{Value: ex.Value}, ty: ast.Int}
	case *ast.LitFloat:
		return simpleExpr{arg: ArgRawFloat{Value: ex.Value}, ty: ast.Float}
	case *ast.LitString:
		return simpleExpr{arg: ArgRawString{Value: ex.Value}, ty: ast.String}
	case *ast.VarExpr:
		arg, ty := l.varToArg(ex.Var)
		return simpleExpr{arg: arg, ty: ty}
	case *ast.UnOp:
		if ex.Op == ast.CastInt || ex.Op == ast.CastFloat {
			tmpTy, readTy := ast.Float, ast.Int
			if ex.Op == ast.CastFloat {
				tmpTy, readTy = ast.Int, ast.Float
			}
			return temporaryExpr{tmpExpr: ex.A, tmpTy: tmpTy, readTy: readTy}
		}
	}
	ty := e.Type().Scalar()
	return temporaryExpr{tmpExpr: e, tmpTy: ty, readTy: ty}
}

// varToArg computes the LowArg and read ScalarType for a variable use,
// mirroring lower_var_to_arg in stackless.rs but consulting the resolved
// context.Definition instead of an embedded VarId.
func (l *Lowerer) varToArg(v *ast.Var) (LowArg, ast.ScalarType) {
	readTy := l.varReadType(v)
	switch n := v.Name.(type) {
	case *ast.RegVarName:
		return ArgReg{Reg: n.Reg, ReadTy: readTy}, readTy
	case *ast.NormalVarName:
		def, ok := l.Ctx.Resolution(n.Res.Res)
		if !ok {
			l.errorf(v.Span(), "internal error: unresolved variable reached the lowerer")
			return ArgRawInt{}, readTy
		}
		switch d := l.Ctx.Defs.Get(def).(type) {
		case *context.LocalDef:
			return ArgLocal{Def: def, ReadTy: readTy}, readTy
		case *context.RegisterAliasDef:
			return ArgReg{Reg: d.Reg, ReadTy: readTy}, readTy
		case *context.UserConstDef:
			cv, ok := l.Ctx.Consts[def]
			if !ok {
				l.errorf(v.Span(), "internal error: const variable used before evaluate_const_vars ran")
				return ArgRawInt{}, readTy
			}
			return constToArg(cv), readTy
		default:
			l.errorf(v.Span(), "internal error: variable resolved to a non-variable definition")
			return ArgRawInt{}, readTy
		}
	default:
		l.errorf(v.Span(), "internal error: unsupported variable name kind")
		return ArgRawInt{}, readTy
	}
}

func constToArg(cv context.ConstValue) LowArg {
	switch cv.Type {
	case ast.Float:
		return ArgRawFloat{Value: cv.Float}
	case ast.String:
		return ArgRawString{Value: cv.Str}
	default:
		return ArgRawInt{Value: cv.Int}
	}
}

func (l *Lowerer) varReadType(v *ast.Var) ast.ScalarType {
	if v.HasSig {
		switch v.Sigil {
		case ast.ReadInt:
			return ast.Int
		case ast.ReadFloat:
			return ast.Float
		}
	}
	switch n := v.Name.(type) {
	case *ast.RegVarName:
		lang := l.Lang
		if n.Language != nil {
			lang = *n.Language
		}
		if mf := l.Ctx.Mapfiles[lang]; mf != nil {
			if st, ok := mf.GvarTypes[int(n.Reg)]; ok {
				return st
			}
		}
		return ast.Int
	case *ast.NormalVarName:
		def, ok := l.Ctx.Resolution(n.Res.Res)
		if !ok {
			return ast.Int
		}
		switch d := l.Ctx.Defs.Get(def).(type) {
		case *context.LocalDef:
			return d.Type.Scalar()
		case *context.RegisterAliasDef:
			return d.Type
		case *context.UserConstDef:
			if cv, ok := l.Ctx.Consts[def]; ok {
				return cv.Type
			}
			return d.Type.Type
		}
	}
	return ast.Int
}

func exprToArg(e ast.Expr, readTy ast.ScalarType) LowArg {
	v := e.(*ast.VarExpr).Var
	switch n := v.Name.(type) {
	case *ast.RegVarName:
		return ArgReg{Reg: n.Reg, ReadTy: readTy}
	case *ast.NormalVarName:
		return ArgLocal{Def: 0, ReadTy: readTy} // overwritten by caller; see defineTemporary
	}
	return ArgRawInt{}
}

// defineTemporary allocates a fresh local DefID of type data.tmpTy,
// evaluates data.tmpExpr into it, and returns the DefID plus a VarExpr for
// reading it back at data.readTy.
func (l *Lowerer) defineTemporary(data temporaryExpr) (ast.DefID, ast.Expr) {
	span := data.tmpExpr.Span()
	def := l.Ctx.DefineLocal(ast.FromScalar(data.tmpTy), span)
	l.push(StmtRegAlloc{Def: def, Ty: data.tmpTy, Cause: span})

	res := l.Ctx.NewResIdent(l.Ctx.Gensym.Fresh("tmp"))
	l.Ctx.Resolve(res.Res, def)
	v := &ast.Var{VarSpan: span, Name: &ast.NormalVarName{Res: res}}
	if data.readTy != data.tmpTy {
		v.HasSig = true
		v.Sigil = sigilFor(data.readTy)
	}

	l.lowerAssignOp(span, v, ast.Assign, data.tmpExpr)

	readExpr := ast.NewVarExpr(v)
	return def, readExpr
}

func sigilFor(ty ast.ScalarType) ast.UnOpKind {
	if ty == ast.Float {
		return ast.ReadFloat
	}
	return ast.ReadInt
}

func (l *Lowerer) undefineTemporary(def ast.DefID) {
	l.push(StmtRegFree{Def: def})
}

// lowerDeclaration lowers `TY a, b = init, ...;` — each entry gets a
// RegAlloc, then (if initialized) an assignment.
func (l *Lowerer) lowerDeclaration(span pos.Span, decl *ast.DeclarationStmt) {
	for _, entry := range decl.Entries {
		def, ok := l.Ctx.Resolution(entry.Name.Res)
		if !ok {
			continue
		}
		ld, ok := l.Ctx.Defs.Get(def).(*context.LocalDef)
		if !ok {
			continue
		}
		l.push(StmtRegAlloc{Def: def, Ty: ld.Type.Scalar(), Cause: ld.DeclSpan})
		if entry.Init == nil {
			continue
		}
		v := &ast.Var{VarSpan: span, Name: &ast.NormalVarName{Res: entry.Name}}
		l.lowerAssignOp(span, v, ast.Assign, entry.Init)
	}
}

// lowerAssignOp lowers `v = rhs` / `v op= rhs`.
func (l *Lowerer) lowerAssignOp(span pos.Span, v *ast.Var, op ast.AssignOpKind, rhs ast.Expr) {
	varArg, varTy := l.varToArg(v)

	switch rc := l.classifyExpr(rhs).(type) {
	case simpleExpr:
		opcode, props, ok := l.Table.Opcode(intrinsic.AssignOp{Op: op, Ty: varTy})
		if !ok {
			l.errorf(span, "assignment %s is not supported by this format for %s", op, varTy)
			return
		}
		l.push(StmtInstr{Instr: LowInstr{Opcode: opcode, Args: []LowArg{varArg, rc.arg}, PadCount: padCountOf(props)}})
		return

	case temporaryExpr:
		if rc.readTy != rc.tmpTy {
			def, asExpr := l.defineTemporary(rc)
			l.lowerAssignOp(span, v, op, asExpr)
			l.undefineTemporary(def)
			return
		}

		switch full := rc.tmpExpr.(type) {
		case *ast.BinOp:
			if op == ast.Assign {
				l.lowerAssignDirectBinOp(span, v, full.A, full.Op, full.B)
				return
			}
		case *ast.UnOp:
			if op == ast.Assign {
				l.lowerAssignDirectUnOp(span, v, full.Op, full.A)
				return
			}
		}

		if op == ast.Assign {
			l.errorf(span, "this expression is too complex to assign directly")
			return
		}
		def, asExpr := l.defineTemporary(rc)
		l.lowerAssignOp(span, v, op, asExpr)
		l.undefineTemporary(def)
	}
}

func exprUsesVar(e ast.Expr, v *ast.Var) bool {
	found := false
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if e == nil || found {
			return
		}
		if ve, ok := e.(*ast.VarExpr); ok {
			if sameVarName(ve.Var.Name, v.Name) {
				found = true
			}
		}
		switch ex := e.(type) {
		case *ast.Ternary:
			walk(ex.Cond)
			walk(ex.Then)
			walk(ex.Else)
		case *ast.BinOp:
			walk(ex.A)
			walk(ex.B)
		case *ast.UnOp:
			walk(ex.A)
		case *ast.Call:
			for _, a := range ex.Args {
				walk(a)
			}
		case *ast.DiffSwitch:
			for _, o := range ex.Options {
				walk(o)
			}
		}
	}
	walk(e)
	return found
}

func sameVarName(a, b ast.VarName) bool {
	switch x := a.(type) {
	case *ast.NormalVarName:
		y, ok := b.(*ast.NormalVarName)
		return ok && x.Res.Res == y.Res.Res
	case *ast.RegVarName:
		y, ok := b.(*ast.RegVarName)
		return ok && x.Reg == y.Reg
	}
	return false
}

// lowerAssignDirectBinOp lowers `v = a ⊕ b;`.
func (l *Lowerer) lowerAssignDirectBinOp(span pos.Span, v *ast.Var, a ast.Expr, op ast.BinOpKind, b ast.Expr) {
	ca := l.classifyExpr(a)
	if tc, ok := ca.(temporaryExpr); ok {
		if tc.readTy == tc.tmpTy && !exprUsesVar(b, v) {
			asExpr := l.computeTemporaryInto(span, v, tc)
			l.lowerAssignDirectBinOp(span, v, asExpr, op, b)
		} else {
			def, asExpr := l.defineTemporary(tc)
			l.lowerAssignDirectBinOp(span, v, asExpr, op, b)
			l.undefineTemporary(def)
		}
		return
	}

	cb := l.classifyExpr(b)
	if tc, ok := cb.(temporaryExpr); ok {
		if tc.readTy == tc.tmpTy && !exprUsesVar(a, v) {
			asExpr := l.computeTemporaryInto(span, v, tc)
			l.lowerAssignDirectBinOp(span, v, a, op, asExpr)
		} else {
			def, asExpr := l.defineTemporary(tc)
			l.lowerAssignDirectBinOp(span, v, a, op, asExpr)
			l.undefineTemporary(def)
		}
		return
	}

	simpleA := ca.(simpleExpr)
	simpleB := cb.(simpleExpr)
	if simpleA.ty != simpleB.ty {
		l.errorf(span, "both operands of %s must have the same type", op)
		return
	}
	varArg, varTy := l.varToArg(v)
	outTy := intrinsic.OutTypeFromBinOp(op, simpleA.ty)
	if outTy != varTy {
		l.errorf(span, "cannot assign %s result to %s variable", outTy, varTy)
		return
	}
	opcode, props, ok := l.Table.Opcode(intrinsic.BinOp{Op: op, Ty: simpleA.ty})
	if !ok {
		l.errorf(span, "binary operator %s is not supported by this format for %s", op, simpleA.ty)
		return
	}
	l.push(StmtInstr{Instr: LowInstr{Opcode: opcode, Args: []LowArg{varArg, simpleA.arg, simpleB.arg}, PadCount: padCountOf(props)}})
}

// lowerAssignDirectUnOp lowers `v = -b;`, `v = sin(b);`, etc.
func (l *Lowerer) lowerAssignDirectUnOp(span pos.Span, v *ast.Var, op ast.UnOpKind, b ast.Expr) {
	if op == ast.Neg {
		ty := b.Type().Scalar()
		zero := zeroLit(span, ty)
		l.lowerAssignDirectBinOp(span, v, zero, ast.Sub, b)
		return
	}

	cb := l.classifyExpr(b)
	if tc, ok := cb.(temporaryExpr); ok {
		if tc.readTy == tc.tmpTy {
			asExpr := l.computeTemporaryInto(span, v, tc)
			l.lowerAssignDirectUnOp(span, v, op, asExpr)
		} else {
			def, asExpr := l.defineTemporary(tc)
			l.lowerAssignDirectUnOp(span, v, op, asExpr)
			l.undefineTemporary(def)
		}
		return
	}

	simpleB := cb.(simpleExpr)
	if op == ast.Not {
		l.errorf(span, "logical not operator is not supported in raw instruction lowering")
		return
	}
	varArg, varTy := l.varToArg(v)
	if varTy != simpleB.ty {
		l.errorf(span, "cannot assign %s result to %s variable", simpleB.ty, varTy)
		return
	}
	opcode, props, ok := l.Table.Opcode(intrinsic.UnOp{Op: op, Ty: simpleB.ty})
	if !ok {
		l.errorf(span, "unary operator %s is not supported by this format for %s", op, simpleB.ty)
		return
	}
	l.push(StmtInstr{Instr: LowInstr{Opcode: opcode, Args: []LowArg{varArg, simpleB.arg}, PadCount: padCountOf(props)}})
}

func zeroLit(span pos.Span, ty ast.ScalarType) ast.Expr {
	if ty == ast.Float {
		return ast.NewLitFloat(span, 0)
	}
	return ast.NewLitInt(span, 0, ast.RadixDecimal)
}

// computeTemporaryInto evaluates data into v directly (reusing v's storage
// instead of allocating a fresh temporary) and returns a read-back
// expression at data.readTy.
func (l *Lowerer) computeTemporaryInto(span pos.Span, v *ast.Var, data temporaryExpr) ast.Expr {
	l.lowerAssignOp(span, v, ast.Assign, data.tmpExpr)
	read := *v
	if data.readTy != data.tmpTy {
		read.HasSig = true
		read.Sigil = sigilFor(data.readTy)
	}
	return ast.NewVarExpr(&read)
}
