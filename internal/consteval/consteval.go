// Package consteval implements the "evaluate const vars" pass and the
// const-simplify folding pass: topologically evaluate every top-level
// `const` into a Context.ConstValue (detecting reference cycles), and
// fold any constant subexpression found anywhere else in the tree down
// to a literal.
//
// Grounded on original_source/src/passes/const_simplify.rs's per-operator
// const_eval tables (faithfully reproduced, including wrapping int
// arithmetic and the int/float split per operator) and on
// Consensys-go-corset/pkg/corset/compiler.go's constant-propagation pass
// shape (a small worklist/recursion over DefIDs with a "currently
// evaluating" set standing in for Rust's cycle-detection).
package consteval

import (
	"math"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/pos"
)

// Evaluator evaluates every top-level const definition in a Context,
// folding each one's initializer to a literal value and caching the
// result in Context.Consts.
type Evaluator struct {
	ctx  *context.Context
	emit *diag.ErrorFlag

	// evaluating tracks the DefIDs currently being evaluated, to turn a
	// reference cycle into a diagnostic instead of infinite recursion.
	evaluating map[ast.DefID]bool
}

// NewEvaluator constructs an Evaluator reporting through emitter.
func NewEvaluator(ctx *context.Context, emitter diag.Emitter) *Evaluator {
	return &Evaluator{ctx: ctx, emit: diag.NewErrorFlag(emitter), evaluating: map[ast.DefID]bool{}}
}

// EvaluateFile evaluates every ConstItem (including ones nested in blocks
// via ItemDefStmt) reachable from file, returning diag.ErrReported if any
// diagnostic was emitted.
func (ev *Evaluator) EvaluateFile(file *ast.ScriptFile) error {
	for _, item := range file.Items {
		ev.evalItemTree(item)
	}
	return ev.emit.AsResult()
}

// evalItemTree evaluates item if it is a ConstItem, and recurses into any
// nested blocks looking for more (FuncItem bodies, ScriptItem bodies).
func (ev *Evaluator) evalItemTree(item ast.Item) {
	switch it := item.(type) {
	case *ast.ConstItem:
		ev.evalConstItem(it)
	case *ast.FuncItem:
		if it.Body != nil {
			ev.evalBlockConsts(it.Body)
		}
	case *ast.ScriptItem:
		if it.Body != nil {
			ev.evalBlockConsts(it.Body)
		}
	}
}

func (ev *Evaluator) evalBlockConsts(b *ast.Block) {
	for _, s := range b.Stmts {
		switch k := s.Kind.(type) {
		case *ast.ItemDefStmt:
			ev.evalItemTree(k.Item)
		case *ast.CondChainStmt:
			for _, arm := range k.Arms {
				ev.evalBlockConsts(arm.Body)
			}
			if k.Else != nil {
				ev.evalBlockConsts(k.Else)
			}
		case *ast.LoopStmt:
			ev.evalBlockConsts(k.Body)
		case *ast.WhileStmt:
			ev.evalBlockConsts(k.Body)
		case *ast.TimesStmt:
			ev.evalBlockConsts(k.Body)
		case *ast.BlockStmt:
			ev.evalBlockConsts(k.Body)
		}
	}
}

// evalConstItem evaluates one ConstItem's Value, caching the result under
// its DefID in Context.Consts. Looking up the DefID requires the item's
// Name to already be resolved (internal/resolve must run first).
func (ev *Evaluator) evalConstItem(it *ast.ConstItem) {
	defID, ok := ev.ctx.Resolution(it.Name.Res)
	if !ok {
		return // unresolved; already reported by name resolution
	}
	ev.constValue(defID, it.Value, it.Value.Span())
}

// constValue returns the folded ConstValue for the const definition
// identified by defID, whose initializer is expr. Idempotent: a const
// already cached in Context.Consts is returned without re-evaluating.
func (ev *Evaluator) constValue(defID ast.DefID, expr ast.Expr, span pos.Span) (context.ConstValue, bool) {
	if v, ok := ev.ctx.Consts[defID]; ok {
		return v, true
	}
	if ev.evaluating[defID] {
		ev.errorf(span, "const definition is circular")
		return context.ConstValue{}, false
	}
	ev.evaluating[defID] = true
	v, ok := ev.fold(expr)
	delete(ev.evaluating, defID)
	if !ok {
		return context.ConstValue{}, false
	}
	ev.ctx.Consts[defID] = v
	return v, true
}

// fold attempts to reduce expr to a literal ConstValue, recursing through
// whatever DefIDs it references.
// Returns ok=false for anything that is not (transitively) constant —
// e.g. a read of a register or a call to a non-const function — which is
// not itself an error: const-simplify leaves such expressions as-is.
func (ev *Evaluator) fold(expr ast.Expr) (context.ConstValue, bool) {
	switch e := expr.(type) {
	case *ast.LitInt:
		return context.ConstValue{Type: ast.Int, Int: e.Value}, true
	case *ast.LitFloat:
		return context.ConstValue{Type: ast.Float, Float: e.Value}, true
	case *ast.LitString:
		return context.ConstValue{Type: ast.String, Str: e.Value}, true
	case *ast.VarExpr:
		return ev.foldVar(e)
	case *ast.UnOp:
		a, ok := ev.fold(e.A)
		if !ok {
			return context.ConstValue{}, false
		}
		return ev.foldUnOp(e.Op, a, e.Span())
	case *ast.BinOp:
		a, ok := ev.fold(e.A)
		if !ok {
			return context.ConstValue{}, false
		}
		b, ok := ev.fold(e.B)
		if !ok {
			return context.ConstValue{}, false
		}
		return ev.foldBinOp(e.Op, a, b, e.Span())
	case *ast.Ternary:
		cond, ok := ev.fold(e.Cond)
		if !ok {
			return context.ConstValue{}, false
		}
		if cond.Type != ast.Int {
			ev.errorf(e.Cond.Span(), "ternary condition must be an integer")
			return context.ConstValue{}, false
		}
		if cond.Int != 0 {
			return ev.fold(e.Then)
		}
		return ev.fold(e.Else)
	case *ast.EnumConst:
		defID, ok := ev.ctx.Resolution(e.Res.Res)
		if !ok {
			return context.ConstValue{}, false
		}
		def, ok := ev.ctx.Defs.Get(defID).(*context.EnumConstantDef)
		if !ok {
			return context.ConstValue{}, false
		}
		return context.ConstValue{Type: ast.Int, Int: int32(def.Value)}, true
	default:
		return context.ConstValue{}, false
	}
}

// foldVar resolves a VarExpr to a const value when it names a user const
// (recursively folding that const if not already cached); any other kind
// of variable (local, register) is not constant.
func (ev *Evaluator) foldVar(e *ast.VarExpr) (context.ConstValue, bool) {
	name, ok := e.Var.Name.(*ast.NormalVarName)
	if !ok {
		return context.ConstValue{}, false // RegVarName is never constant
	}
	defID, ok := ev.ctx.Resolution(name.Res.Res)
	if !ok {
		return context.ConstValue{}, false
	}
	def, ok := ev.ctx.Defs.Get(defID).(*context.UserConstDef)
	if !ok {
		return context.ConstValue{}, false // local or register alias: never constant
	}
	v, ok := ev.constValue(defID, def.Expr, e.Span())
	if !ok {
		return context.ConstValue{}, false
	}
	if e.Var.HasSig {
		return ev.applySigil(e.Var.Sigil, v, e.Span())
	}
	return v, true
}

func (ev *Evaluator) applySigil(sigil ast.UnOpKind, v context.ConstValue, span pos.Span) (context.ConstValue, bool) {
	switch sigil {
	case ast.ReadInt:
		if v.Type == ast.String {
			ev.errorf(span, "cannot use a sigil on a string variable")
			return context.ConstValue{}, false
		}
		if v.Type == ast.Float {
			return context.ConstValue{Type: ast.Int, Int: int32(math.Float32bits(v.Float))}, true
		}
		return v, true
	case ast.ReadFloat:
		if v.Type == ast.String {
			ev.errorf(span, "cannot use a sigil on a string variable")
			return context.ConstValue{}, false
		}
		if v.Type == ast.Int {
			return context.ConstValue{Type: ast.Float, Float: math.Float32frombits(uint32(v.Int))}, true
		}
		return v, true
	default:
		return v, true
	}
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// foldUnOp evaluates op applied to a.
func (ev *Evaluator) foldUnOp(op ast.UnOpKind, a context.ConstValue, span pos.Span) (context.ConstValue, bool) {
	switch op {
	case ast.Neg:
		switch a.Type {
		case ast.Int:
			return context.ConstValue{Type: ast.Int, Int: -a.Int}, true // Go int32 arithmetic wraps silently
		case ast.Float:
			return context.ConstValue{Type: ast.Float, Float: -a.Float}, true
		}
	case ast.Not:
		if a.Type != ast.Int {
			ev.errorf(span, "'!' requires an int operand")
			return context.ConstValue{}, false
		}
		return context.ConstValue{Type: ast.Int, Int: boolInt(a.Int == 0)}, true
	case ast.BitNot:
		if a.Type != ast.Int {
			ev.errorf(span, "'~' requires an int operand")
			return context.ConstValue{}, false
		}
		return context.ConstValue{Type: ast.Int, Int: ^a.Int}, true
	case ast.Sin, ast.Cos, ast.Sqrt:
		if a.Type != ast.Float {
			ev.errorf(span, "%s requires a float operand", op)
			return context.ConstValue{}, false
		}
		var r float64
		switch op {
		case ast.Sin:
			r = math.Sin(float64(a.Float))
		case ast.Cos:
			r = math.Cos(float64(a.Float))
		case ast.Sqrt:
			r = math.Sqrt(float64(a.Float))
		}
		return context.ConstValue{Type: ast.Float, Float: float32(r)}, true
	case ast.CastInt:
		if a.Type != ast.Float {
			ev.errorf(span, "int(...) requires a float operand")
			return context.ConstValue{}, false
		}
		return context.ConstValue{Type: ast.Int, Int: int32(a.Float)}, true
	case ast.CastFloat:
		if a.Type != ast.Int {
			ev.errorf(span, "float(...) requires an int operand")
			return context.ConstValue{}, false
		}
		return context.ConstValue{Type: ast.Float, Float: float32(a.Int)}, true
	case ast.ReadInt, ast.ReadFloat:
		return ev.applySigil(op, a, span)
	}
	ev.errorf(span, "cannot constant-fold this operator")
	return context.ConstValue{}, false
}

// foldBinOp evaluates a op b.
func (ev *Evaluator) foldBinOp(op ast.BinOpKind, a, b context.ConstValue, span pos.Span) (context.ConstValue, bool) {
	if op.IsBitwiseOrShift() || op.IsLogical() {
		if a.Type != ast.Int || b.Type != ast.Int {
			ev.errorf(span, "%s requires int operands", op)
			return context.ConstValue{}, false
		}
		return context.ConstValue{Type: ast.Int, Int: foldIntOnly(op, a.Int, b.Int)}, true
	}
	if a.Type != b.Type || (a.Type != ast.Int && a.Type != ast.Float) {
		ev.errorf(span, "%s requires two operands of the same numeric type", op)
		return context.ConstValue{}, false
	}
	if a.Type == ast.Int {
		return context.ConstValue{Type: ast.Int, Int: foldInt(op, a.Int, b.Int)}, true
	}
	return foldFloat(op, a.Float, b.Float)
}

func foldIntOnly(op ast.BinOpKind, a, b int32) int32 {
	switch op {
	case ast.BitAnd:
		return a & b
	case ast.BitOr:
		return a | b
	case ast.BitXor:
		return a ^ b
	case ast.Shl:
		return a << (b & 31)
	case ast.Shr:
		return a >> (b & 31) // arithmetic: a is signed
	case ast.UShr:
		return int32(uint32(a) >> (b & 31))
	case ast.LogAnd:
		if a == 0 {
			return 0
		}
		return b
	case ast.LogOr:
		if a == 0 {
			return b
		}
		return a
	default:
		return 0
	}
}

func foldInt(op ast.BinOpKind, a, b int32) int32 {
	switch op {
	case ast.Add:
		return a + b // Go int32 arithmetic wraps silently
	case ast.Sub:
		return a - b
	case ast.Mul:
		return a * b
	case ast.Div:
		if b == 0 {
			return 0
		}
		return a / b
	case ast.Rem:
		if b == 0 {
			return 0
		}
		return a % b
	case ast.Eq:
		return boolInt(a == b)
	case ast.Ne:
		return boolInt(a != b)
	case ast.Lt:
		return boolInt(a < b)
	case ast.Le:
		return boolInt(a <= b)
	case ast.Gt:
		return boolInt(a > b)
	case ast.Ge:
		return boolInt(a >= b)
	default:
		return foldIntOnly(op, a, b)
	}
}

func foldFloat(op ast.BinOpKind, a, b float32) (context.ConstValue, bool) {
	switch op {
	case ast.Add:
		return context.ConstValue{Type: ast.Float, Float: a + b}, true
	case ast.Sub:
		return context.ConstValue{Type: ast.Float, Float: a - b}, true
	case ast.Mul:
		return context.ConstValue{Type: ast.Float, Float: a * b}, true
	case ast.Div:
		return context.ConstValue{Type: ast.Float, Float: a / b}, true
	case ast.Rem:
		return context.ConstValue{Type: ast.Float, Float: float32(math.Mod(float64(a), float64(b)))}, true
	case ast.Eq:
		return context.ConstValue{Type: ast.Int, Int: boolInt(a == b)}, true
	case ast.Ne:
		return context.ConstValue{Type: ast.Int, Int: boolInt(a != b)}, true
	case ast.Lt:
		return context.ConstValue{Type: ast.Int, Int: boolInt(a < b)}, true
	case ast.Le:
		return context.ConstValue{Type: ast.Int, Int: boolInt(a <= b)}, true
	case ast.Gt:
		return context.ConstValue{Type: ast.Int, Int: boolInt(a > b)}, true
	case ast.Ge:
		return context.ConstValue{Type: ast.Int, Int: boolInt(a >= b)}, true
	default:
		return context.ConstValue{}, false
	}
}

func (ev *Evaluator) errorf(span pos.Span, format string, args ...any) {
	d := diag.New(diag.Error, diag.CategoryType, format, args...)
	if !span.IsNull() {
		d.WithPrimary(span, "here")
	}
	ev.emit.Emit(d)
}
