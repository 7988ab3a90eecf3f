package lower

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/pos"
)

// lowerGotoArgs computes the label/time argument pair shared by every jump
// family. A jump's time, once const_simplify/
// desugar_blocks have run, is always either absent (implicit `timeof`) or a
// literal; anything else reaching the lowerer is an internal-logic bug.
func (l *Lowerer) lowerGotoArgs(span pos.Span, destination ident.Ident, time ast.Expr) (LowArg, LowArg) {
	labelArg := ArgLabel{Label: destination}
	if time == nil {
		return labelArg, ArgTimeOf{Label: destination}
	}
	lit, ok := time.(*ast.LitInt)
	if !ok {
		l.errorf(span, "internal error: jump time was not reduced to a constant before lowering")
		return labelArg, ArgRawInt{}
	}
	return labelArg, ArgRawInt{Value: lit.Value}
}

// lowerUncondJump lowers `goto label @ time;`.
func (l *Lowerer) lowerUncondJump(span pos.Span, k *ast.JumpStmt) {
	labelArg, timeArg := l.lowerGotoArgs(span, k.Destination, k.Time)
	opcode, props, ok := l.Table.Opcode(intrinsic.Jmp{})
	if !ok {
		l.errorf(span, "'goto' is not supported by this format")
		return
	}
	l.push(StmtInstr{Instr: LowInstr{Opcode: opcode, Args: []LowArg{labelArg, timeArg}, PadCount: padCountOf(props)}})
}

// lowerCondJumpStmt lowers `if/unless (<cond>) goto label @ time;`
//, dispatching between the predecrement
// shorthand and the general expression family.
func (l *Lowerer) lowerCondJumpStmt(span pos.Span, k *ast.CondJumpStmt) {
	if v, ok := preDecrementVar(k.Cond); ok {
		l.lowerCondJumpPredecrement(span, k.Unless, v, k.Destination, k.Time)
		return
	}
	l.lowerCondJumpExpr(span, k.Unless, k.Cond, k.Destination, k.Time)
}

func preDecrementVar(e ast.Expr) (*ast.Var, bool) {
	if xc, ok := e.(*ast.Xcrement); ok && xc.Pre && xc.Op == ast.Decrement {
		return xc.Var, true
	}
	return nil, false
}

// lowerCondJumpPredecrement lowers `if (--var) goto label;`. The `unless`
// form has no direct intrinsic, so it is compiled to an inverted `if` that
// jumps over an unconditional goto.
func (l *Lowerer) lowerCondJumpPredecrement(span pos.Span, unless bool, v *ast.Var, destination ident.Ident, time ast.Expr) {
	if !unless {
		varArg, varTy := l.varToArg(v)
		if varTy != ast.Int {
			l.errorf(v.Span(), "expected an int, got %s", varTy)
			return
		}
		labelArg, timeArg := l.lowerGotoArgs(span, destination, time)
		opcode, props, ok := l.Table.Opcode(intrinsic.CountJmp{})
		if !ok {
			l.errorf(span, "decrement-jump is not supported by this format")
			return
		}
		l.push(StmtInstr{Instr: LowInstr{Opcode: opcode, Args: []LowArg{varArg, labelArg, timeArg}, PadCount: padCountOf(props)}})
		return
	}

	// 'unless (--var) goto label' compiles to:
	//        if (--var) goto skip;
	//        goto label;
	//     skip:
	skip := l.Ctx.Gensym.Fresh("unless_predec_skip")
	l.lowerCondJumpPredecrement(span, false, v, skip, nil)
	l.lowerUncondJump(span, &ast.JumpStmt{Destination: destination, Time: time})
	l.push(StmtLabel{Time: 0, Label: skip})
}

// lowerCondJumpExpr dispatches on the cond expression's shape: a
// comparison, a `&&`/`||`, a `!` negation (folded into the keyword), or
// (as a fallback) an arbitrary expression compared against zero.
func (l *Lowerer) lowerCondJumpExpr(span pos.Span, unless bool, expr ast.Expr, destination ident.Ident, time ast.Expr) {
	switch ex := expr.(type) {
	case *ast.BinOp:
		if ex.Op.IsComparison() {
			l.lowerCondJumpComparison(span, unless, ex.A, ex.Op, ex.B, destination, time)
			return
		}
		if ex.Op == ast.LogAnd || ex.Op == ast.LogOr {
			l.lowerCondJumpLogicBinop(span, unless, ex.A, ex.Op, ex.B, destination, time)
			return
		}
	case *ast.UnOp:
		if ex.Op == ast.Not {
			l.lowerCondJumpExpr(span, !unless, ex.A, destination, time)
			return
		}
	}

	ty := expr.Type().Scalar()
	zero := zeroLit(expr.Span(), ty)
	l.lowerCondJumpComparison(span, unless, expr, ast.Ne, zero, destination, time)
}

// lowerCondJumpComparison lowers `if (<A> != <B>) goto label;` and similar,
// spilling either side to a temporary first if it is not directly
// encodable.
func (l *Lowerer) lowerCondJumpComparison(span pos.Span, unless bool, a ast.Expr, op ast.BinOpKind, b ast.Expr, destination ident.Ident, time ast.Expr) {
	switch ca := l.classifyExpr(a).(type) {
	case temporaryExpr:
		def, asExpr := l.defineTemporary(ca)
		l.lowerCondJumpComparison(span, unless, asExpr, op, b, destination, time)
		l.undefineTemporary(def)
		return
	case simpleExpr:
		switch cb := l.classifyExpr(b).(type) {
		case temporaryExpr:
			def, asExpr := l.defineTemporary(cb)
			l.lowerCondJumpComparison(span, unless, a, op, asExpr, destination, time)
			l.undefineTemporary(def)
			return
		case simpleExpr:
			finalOp := op
			if unless {
				negated, ok := ast.NegateComparison(op)
				if !ok {
					l.errorf(span, "internal error: lowerCondJumpComparison called with a non-comparison operator")
					return
				}
				finalOp = negated
			}
			if ca.ty != cb.ty {
				l.errorf(span, "both sides of a comparison must have the same type")
				return
			}
			labelArg, timeArg := l.lowerGotoArgs(span, destination, time)
			opcode, props, ok := l.Table.Opcode(intrinsic.CondJmp{Op: finalOp, Ty: ca.ty})
			if !ok {
				l.errorf(span, "comparison %s is not supported by this format for %s", finalOp, ca.ty)
				return
			}
			l.push(StmtInstr{Instr: LowInstr{
				Opcode:   opcode,
				Args:     []LowArg{ca.arg, cb.arg, labelArg, timeArg},
				PadCount: padCountOf(props),
			}})
		}
	}
}

// lowerCondJumpLogicBinop lowers `if (<A> || <B>) goto label;` and similar
// short-circuit shapes.
// 'if (a||b)' and 'unless (a&&b)' split directly into two conditional
// jumps to the same destination; the other combination needs an inverted
// pair guarding an unconditional goto.
func (l *Lowerer) lowerCondJumpLogicBinop(span pos.Span, unless bool, a ast.Expr, op ast.BinOpKind, b ast.Expr, destination ident.Ident, time ast.Expr) {
	isEasyCase := (!unless && op == ast.LogOr) || (unless && op == ast.LogAnd)
	if isEasyCase {
		l.lowerCondJumpExpr(span, unless, a, destination, time)
		l.lowerCondJumpExpr(span, unless, b, destination, time)
		return
	}

	// 'if (a && b) goto label' compiles to:
	//        unless (a) goto skip;
	//        unless (b) goto skip;
	//        goto label;
	//     skip:
	negated := !unless
	skip := l.Ctx.Gensym.Fresh("unless_predec_skip")
	l.lowerCondJumpExpr(span, negated, a, skip, nil)
	l.lowerCondJumpExpr(span, negated, b, skip, nil)
	l.lowerUncondJump(span, &ast.JumpStmt{Destination: destination, Time: time})
	l.push(StmtLabel{Time: 0, Label: skip})
}
