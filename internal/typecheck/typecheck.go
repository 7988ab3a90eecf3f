// Package typecheck implements a bottom-up scalar type checker: literal
// types are given; every other expression's type is derived from its
// operands, cached on the node via Expr.SetType, and checked against
// whatever the surrounding construct (assignment, declaration, call,
// return) expects.
//
// Grounded on original_source/src/ast/lower/type_check.rs's bottom-up
// walk (one function per expression/statement shape, each assuming its
// children have already been checked) and on the driver idiom of
// internal/resolve (a Checker struct paired 1:1 with a Context, reporting
// through a diag.ErrorFlag) — itself grounded on Consensys-go-corset's
// pkg/corset/ typechecking passes.
package typecheck

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/pos"
)

// Checker drives type checking for one ScriptFile against one Context,
// under one expected Language (a raw `ins_N(...)` call's argument types
// come from that language's mapfile signature).
type Checker struct {
	ctx  *context.Context
	lang ast.Language
	emit *diag.ErrorFlag
}

// NewChecker constructs a Checker reporting through emitter.
func NewChecker(ctx *context.Context, lang ast.Language, emitter diag.Emitter) *Checker {
	return &Checker{ctx: ctx, lang: lang, emit: diag.NewErrorFlag(emitter)}
}

// CheckFile type-checks every item in file, returning diag.ErrReported if
// any diagnostic was emitted.
func (c *Checker) CheckFile(file *ast.ScriptFile) error {
	for _, item := range file.Items {
		c.checkItem(item)
	}
	return c.emit.AsResult()
}

func (c *Checker) checkItem(item ast.Item) {
	switch it := item.(type) {
	case *ast.ConstItem:
		gotTy := c.checkExpr(it.Value)
		wantTy := ast.FromScalarExpr(it.Type)
		if gotTy != ast.ExprVoid && gotTy != wantTy {
			c.errorf(it.Value.Span(), "const declared as %s but initializer has type %s", it.Type, gotTy)
		}
	case *ast.FuncItem:
		c.checkFunc(it)
	case *ast.ScriptItem:
		if it.Body != nil {
			c.checkBlock(it.Body, ast.ExprVoid)
		}
	case *ast.MetaItem:
		for _, f := range it.Fields {
			c.checkExpr(f.Value)
		}
	}
}

func (c *Checker) checkFunc(it *ast.FuncItem) {
	if it.Body == nil {
		return
	}
	c.checkBlock(it.Body, it.Return)
	if it.Return != ast.ExprVoid && !c.blockHasValueReturn(it.Body) {
		c.emit.Emit(diag.New(diag.Warning, diag.CategoryType,
			"function never returns a value on any path").
			WithPrimary(it.ItemSpan, "declared to return "+it.Return.String()+" here"))
	}
}

// blockHasValueReturn reports whether a ReturnStmt with a non-nil Value
// appears anywhere within b, including inside nested control-flow
// statements but not inside a nested function/const definition (which
// has its own independent return check).
func (c *Checker) blockHasValueReturn(b *ast.Block) bool {
	if b == nil {
		return false
	}
	for _, s := range b.Stmts {
		switch k := s.Kind.(type) {
		case *ast.ReturnStmt:
			if k.Value != nil {
				return true
			}
		case *ast.CondChainStmt:
			for _, arm := range k.Arms {
				if c.blockHasValueReturn(arm.Body) {
					return true
				}
			}
			if c.blockHasValueReturn(k.Else) {
				return true
			}
		case *ast.LoopStmt:
			if c.blockHasValueReturn(k.Body) {
				return true
			}
		case *ast.WhileStmt:
			if c.blockHasValueReturn(k.Body) {
				return true
			}
		case *ast.TimesStmt:
			if c.blockHasValueReturn(k.Body) {
				return true
			}
		case *ast.BlockStmt:
			if c.blockHasValueReturn(k.Body) {
				return true
			}
		}
	}
	return false
}

// checkBlock type-checks every statement in b. returnTy is the enclosing
// function's declared return type (ast.ExprVoid for a script/timeline
// body, which may not `return value;`).
func (c *Checker) checkBlock(b *ast.Block, returnTy ast.ExprType) {
	for _, s := range b.Stmts {
		c.checkStmt(s, returnTy)
	}
}

func (c *Checker) checkStmt(s *ast.Stmt, returnTy ast.ExprType) {
	switch k := s.Kind.(type) {
	case *ast.ItemDefStmt:
		c.checkItem(k.Item)

	case *ast.JumpStmt:
		if k.Time != nil {
			c.checkTypedExpr(k.Time, ast.ExprInt, "goto time")
		}

	case *ast.CondJumpStmt:
		c.checkTypedExpr(k.Cond, ast.ExprInt, "if condition")
		if k.Time != nil {
			c.checkTypedExpr(k.Time, ast.ExprInt, "goto time")
		}

	case *ast.ReturnStmt:
		if k.Value == nil {
			if returnTy != ast.ExprVoid {
				c.errorf(s.StmtSpan, "missing return value: function returns %s", returnTy)
			}
			return
		}
		gotTy := c.checkExpr(k.Value)
		if returnTy == ast.ExprVoid {
			c.errorf(k.Value.Span(), "this function/script does not return a value")
		} else if gotTy != ast.ExprVoid && gotTy != returnTy {
			c.errorf(k.Value.Span(), "return value has type %s, expected %s", gotTy, returnTy)
		}

	case *ast.CondChainStmt:
		for _, arm := range k.Arms {
			c.checkTypedExpr(arm.Cond, ast.ExprInt, "if condition")
			c.checkBlock(arm.Body, returnTy)
		}
		if k.Else != nil {
			c.checkBlock(k.Else, returnTy)
		}

	case *ast.LoopStmt:
		c.checkBlock(k.Body, returnTy)

	case *ast.WhileStmt:
		c.checkTypedExpr(k.Cond, ast.ExprInt, "while condition")
		c.checkBlock(k.Body, returnTy)

	case *ast.TimesStmt:
		c.checkTypedExpr(k.Count, ast.ExprInt, "times() count")
		if k.Clobber != nil {
			c.checkVarTyped(k.Clobber, ast.ExprInt, "times() clobber variable")
		}
		c.checkBlock(k.Body, returnTy)

	case *ast.ExprStmt:
		c.checkExpr(k.Expr)

	case *ast.BlockStmt:
		c.checkBlock(k.Body, returnTy)

	case *ast.AssignStmt:
		c.checkAssign(k)

	case *ast.DeclarationStmt:
		c.checkDeclaration(k)

	case *ast.CallSubStmt:
		for _, a := range k.Args {
			c.checkExpr(a)
		}

	case *ast.BreakStmt, *ast.ContinueStmt, *ast.InterruptLabelStmt,
		*ast.TimeLabelStmt, *ast.PlainLabelStmt, *ast.ScopeEndStmt, *ast.NoInstruction:
		// no expression to check
	}
}

func (c *Checker) checkAssign(k *ast.AssignStmt) {
	varTy := c.varType(k.Var)
	valTy := c.checkExpr(k.Value)
	if varTy == ast.ExprVoid {
		return // already reported (unresolved var, or unknown register type)
	}
	if k.Op == ast.Assign {
		if valTy != ast.ExprVoid && valTy != varTy {
			c.errorf(k.Value.Span(), "cannot assign %s value to %s variable", valTy, varTy)
		}
		return
	}
	binOp, _ := k.Op.BinOp()
	if varTy != ast.ExprInt && varTy != ast.ExprFloat {
		c.errorf(k.Var.VarSpan, "compound assignment %s requires a numeric variable, found %s", k.Op, varTy)
		return
	}
	if valTy != ast.ExprVoid && valTy != varTy {
		c.errorf(k.Value.Span(), "compound assignment %s requires a %s right-hand side, found %s", k.Op, varTy, valTy)
	}
	_ = binOp // the result type is always varTy itself for every compound op
}

func (c *Checker) checkDeclaration(k *ast.DeclarationStmt) {
	for _, e := range k.Entries {
		var initTy ast.ExprType
		if e.Init != nil {
			initTy = c.checkExpr(e.Init)
		}
		defID, ok := c.ctx.Resolution(e.Name.Res)
		if !ok {
			continue // unresolved; already reported by name resolution
		}
		ld, ok := c.ctx.Defs.Get(defID).(*context.LocalDef)
		if !ok {
			continue
		}
		if ld.Type == ast.VarUntyped {
			if e.Init == nil {
				c.errorf(ld.DeclSpan, "variable declared with 'var' needs an initializer to infer its type")
				continue
			}
			if initTy == ast.ExprVoid {
				continue // initializer already errored
			}
			ld.Type = ast.FromScalar(initTy.Scalar())
			continue
		}
		if e.Init == nil {
			continue
		}
		want := ast.FromScalarExpr(ld.Type.Scalar())
		if initTy != ast.ExprVoid && initTy != want {
			c.errorf(e.Init.Span(), "variable declared %s but initializer has type %s", ld.Type, initTy)
		}
	}
}

// checkExpr type-checks e bottom-up, caches the result via e.SetType, and
// returns it.
func (c *Checker) checkExpr(e ast.Expr) ast.ExprType {
	var ty ast.ExprType
	switch ex := e.(type) {
	case *ast.LitInt:
		ty = ast.ExprInt
	case *ast.LitFloat:
		ty = ast.ExprFloat
	case *ast.LitString:
		ty = ast.ExprString
	case *ast.VarExpr:
		ty = c.varType(ex.Var)
	case *ast.Ternary:
		c.checkTypedExpr(ex.Cond, ast.ExprInt, "ternary condition")
		thenTy := c.checkExpr(ex.Then)
		elseTy := c.checkExpr(ex.Else)
		if thenTy == ast.ExprVoid || elseTy == ast.ExprVoid {
			ty = ast.ExprVoid
		} else if thenTy != elseTy {
			c.errorf(e.Span(), "ternary arms have different types: %s vs %s", thenTy, elseTy)
			ty = thenTy
		} else {
			ty = thenTy
		}
	case *ast.BinOp:
		ty = c.checkBinOp(ex)
	case *ast.UnOp:
		ty = c.checkUnOp(ex)
	case *ast.Xcrement:
		varTy := c.varType(ex.Var)
		if varTy != ast.ExprVoid && varTy != ast.ExprInt && varTy != ast.ExprFloat {
			c.errorf(ex.Var.VarSpan, "%s requires a numeric variable, found %s", xcrementSymbol(ex.Op), varTy)
		}
		ty = varTy
	case *ast.Call:
		ty = c.checkCall(ex)
	case *ast.DiffSwitch:
		ty = c.checkDiffSwitch(ex)
	case *ast.LabelProperty:
		ty = ast.ExprInt
	case *ast.EnumConst:
		ty = ast.ExprInt
	default:
		ty = ast.ExprVoid
	}
	e.SetType(ty)
	return ty
}

func xcrementSymbol(k ast.XcrementKind) string {
	if k == ast.Increment {
		return "++"
	}
	return "--"
}

// checkTypedExpr type-checks e and, unless its type is ExprVoid (already
// reported elsewhere), verifies it matches want.
func (c *Checker) checkTypedExpr(e ast.Expr, want ast.ExprType, what string) ast.ExprType {
	got := c.checkExpr(e)
	if got != ast.ExprVoid && got != want {
		c.errorf(e.Span(), "%s must have type %s, found %s", what, want, got)
	}
	return got
}

func (c *Checker) checkVarTyped(v *ast.Var, want ast.ExprType, what string) {
	got := c.varType(v)
	if got != ast.ExprVoid && got != want {
		c.errorf(v.VarSpan, "%s must have type %s, found %s", what, want, got)
	}
}

func (c *Checker) checkBinOp(ex *ast.BinOp) ast.ExprType {
	aTy := c.checkExpr(ex.A)
	bTy := c.checkExpr(ex.B)
	if aTy == ast.ExprVoid || bTy == ast.ExprVoid {
		return ast.ExprVoid
	}
	switch {
	case ex.Op.IsComparison():
		if aTy != bTy || (aTy != ast.ExprInt && aTy != ast.ExprFloat) {
			c.errorf(ex.Span(), "%s requires two operands of the same numeric type, found %s and %s", ex.Op, aTy, bTy)
		}
		return ast.ExprInt
	case ex.Op.IsArithmetic():
		if aTy != bTy || (aTy != ast.ExprInt && aTy != ast.ExprFloat) {
			c.errorf(ex.Span(), "%s requires two operands of the same numeric type, found %s and %s", ex.Op, aTy, bTy)
			return ast.ExprVoid
		}
		return aTy
	case ex.Op.IsBitwiseOrShift(), ex.Op.IsLogical():
		if aTy != ast.ExprInt {
			c.errorf(ex.A.Span(), "%s requires an int operand, found %s", ex.Op, aTy)
		}
		if bTy != ast.ExprInt {
			c.errorf(ex.B.Span(), "%s requires an int operand, found %s", ex.Op, bTy)
		}
		return ast.ExprInt
	default:
		return ast.ExprVoid
	}
}

func (c *Checker) checkUnOp(ex *ast.UnOp) ast.ExprType {
	aTy := c.checkExpr(ex.A)
	if aTy == ast.ExprVoid {
		return ast.ExprVoid
	}
	switch ex.Op {
	case ast.Neg:
		if aTy != ast.ExprInt && aTy != ast.ExprFloat {
			c.errorf(ex.Span(), "unary '-' requires a numeric operand, found %s", aTy)
			return ast.ExprVoid
		}
		return aTy
	case ast.Not, ast.BitNot:
		if aTy != ast.ExprInt {
			c.errorf(ex.Span(), "%s requires an int operand, found %s", ex.Op, aTy)
			return ast.ExprInt
		}
		return ast.ExprInt
	case ast.Sin, ast.Cos, ast.Sqrt:
		if aTy != ast.ExprFloat {
			c.errorf(ex.Span(), "%s requires a float operand, found %s", ex.Op, aTy)
		}
		return ast.ExprFloat
	case ast.CastInt:
		if aTy != ast.ExprFloat {
			c.errorf(ex.Span(), "int(...) requires a float operand, found %s", aTy)
		}
		return ast.ExprInt
	case ast.CastFloat:
		if aTy != ast.ExprInt {
			c.errorf(ex.Span(), "float(...) requires an int operand, found %s", aTy)
		}
		return ast.ExprFloat
	case ast.ReadInt:
		if aTy != ast.ExprInt && aTy != ast.ExprFloat {
			c.errorf(ex.Span(), "'$' requires a numeric operand, found %s", aTy)
		}
		return ast.ExprInt
	case ast.ReadFloat:
		if aTy != ast.ExprInt && aTy != ast.ExprFloat {
			c.errorf(ex.Span(), "'%%' requires a numeric operand, found %s", aTy)
		}
		return ast.ExprFloat
	default:
		return ast.ExprVoid
	}
}

func (c *Checker) checkDiffSwitch(ex *ast.DiffSwitch) ast.ExprType {
	ty := ast.ExprVoid
	for _, opt := range ex.Options {
		if opt == nil {
			continue
		}
		optTy := c.checkExpr(opt)
		if optTy == ast.ExprVoid {
			continue
		}
		if ty == ast.ExprVoid {
			ty = optTy
		} else if optTy != ty {
			c.errorf(opt.Span(), "difficulty-switch option has type %s, expected %s", optTy, ty)
		}
	}
	return ty
}

// hasBlob reports whether call carries a `@blob=` pseudo-arg, which
// suppresses normal positional-argument checking.
func hasBlob(call *ast.Call) bool {
	for _, pa := range call.PseudoArgs {
		if pa.Kind == ast.PseudoBlob {
			return true
		}
	}
	return false
}

func (c *Checker) checkCall(ex *ast.Call) ast.ExprType {
	for _, pa := range ex.PseudoArgs {
		c.checkExpr(pa.Value)
	}
	retTy, argTys, ok := c.calleeSignature(ex.Callable, ex.Span())
	if !ok {
		for _, a := range ex.Args {
			c.checkExpr(a)
		}
		return ast.ExprVoid
	}
	if hasBlob(ex) {
		for _, a := range ex.Args {
			c.checkExpr(a)
		}
		return retTy
	}
	if len(ex.Args) != len(argTys) {
		c.errorf(ex.Span(), "expected %d argument(s), found %d", len(argTys), len(ex.Args))
		for _, a := range ex.Args {
			c.checkExpr(a)
		}
		return retTy
	}
	for i, a := range ex.Args {
		gotTy := c.checkExpr(a)
		if gotTy != ast.ExprVoid && gotTy != argTys[i] {
			c.errorf(a.Span(), "argument %d has type %s, expected %s", i+1, gotTy, argTys[i])
		}
	}
	return retTy
}

// calleeSignature resolves c's return type and positional-argument types,
// whether c is a user function, a mapfile-named instruction alias, or a
// raw `ins_N(...)` reference.
func (c *Checker) calleeSignature(callable ast.CallableName, span pos.Span) (ret ast.ExprType, args []ast.ExprType, ok bool) {
	switch cc := callable.(type) {
	case *ast.NormalCallableName:
		defID, found := c.ctx.Resolution(cc.Res.Res)
		if !found {
			return ast.ExprVoid, nil, false
		}
		switch d := c.ctx.Defs.Get(defID).(type) {
		case *context.UserFuncDef:
			return c.userFuncSignature(d.Item)
		case *context.InstructionAliasDef:
			return c.insSignature(d.Language, d.Opcode, span)
		default:
			return ast.ExprVoid, nil, false
		}
	case *ast.InsCallableName:
		lang := c.lang
		if cc.Language != nil {
			lang = *cc.Language
		}
		return c.insSignature(lang, cc.Opcode, span)
	default:
		return ast.ExprVoid, nil, false
	}
}

func (c *Checker) userFuncSignature(item *ast.FuncItem) (ast.ExprType, []ast.ExprType, bool) {
	params := make([]ast.ExprType, len(item.Params))
	for i, p := range item.Params {
		if p.Type == ast.VarUntyped {
			c.emit.Emit(diag.New(diag.Bug, diag.CategoryType, "function parameter missing a declared type").
				WithPrimary(p.ParamSpan, "here"))
			params[i] = ast.ExprVoid
			continue
		}
		params[i] = ast.FromScalarExpr(p.Type.Scalar())
	}
	return item.Return, params, true
}

func (c *Checker) insSignature(lang ast.Language, opcode int, span pos.Span) (ast.ExprType, []ast.ExprType, bool) {
	mf := c.ctx.Mapfiles[lang]
	if mf == nil {
		c.errorf(span, "no mapfile loaded for %s, cannot type-check ins_%d(...)", lang, opcode)
		return ast.ExprVoid, nil, false
	}
	sig, found := mf.InsSignatures[opcode]
	if !found {
		c.errorf(span, "opcode %d has no signature in the %s mapfile", opcode, lang)
		return ast.ExprVoid, nil, false
	}
	stripped, _ := sig.TrailingPadding()
	args := make([]ast.ExprType, 0, len(stripped))
	for _, enc := range stripped {
		st, ok := enc.Char.ScalarType()
		if !ok {
			continue
		}
		args = append(args, ast.FromScalarExpr(st))
	}
	return ast.ExprVoid, args, true
}

// varType derives the read type of a variable reference, applying the
// sigil override/coercion rule: a sigil always wins, using a sigil on a
// String variable is an error, and a sigil that
// disagrees with the declared type is a coercion the lowerer implements
// with a cast read (not flagged here as an error).
func (c *Checker) varType(v *ast.Var) ast.ExprType {
	declared := c.declaredVarType(v.Name, v.VarSpan)
	if !v.HasSig {
		return declared
	}
	if declared == ast.ExprString {
		c.errorf(v.VarSpan, "cannot use a sigil on a string variable")
		return ast.ExprVoid
	}
	switch v.Sigil {
	case ast.ReadInt:
		return ast.ExprInt
	case ast.ReadFloat:
		return ast.ExprFloat
	default:
		return declared
	}
}

func (c *Checker) declaredVarType(name ast.VarName, span pos.Span) ast.ExprType {
	switch n := name.(type) {
	case *ast.RegVarName:
		lang := c.lang
		if n.Language != nil {
			lang = *n.Language
		}
		if mf := c.ctx.Mapfiles[lang]; mf != nil {
			if st, ok := mf.GvarTypes[int(n.Reg)]; ok {
				return ast.FromScalarExpr(st)
			}
		}
		return ast.ExprInt
	case *ast.NormalVarName:
		defID, ok := c.ctx.Resolution(n.Res.Res)
		if !ok {
			return ast.ExprVoid
		}
		switch d := c.ctx.Defs.Get(defID).(type) {
		case *context.LocalDef:
			if d.Type == ast.VarUntyped {
				// A `var` local whose own DeclarationStmt hasn't been
				// checked yet (should not happen: declarations are
				// checked before any use, per name resolution's
				// statement-order binding). Report as void rather than
				// panicking on VarType.Scalar().
				return ast.ExprVoid
			}
			return ast.FromScalarExpr(d.Type.Scalar())
		case *context.RegisterAliasDef:
			return ast.FromScalarExpr(d.Type)
		case *context.UserConstDef:
			if d.Type.Untyped {
				return ast.ExprVoid
			}
			return ast.FromScalarExpr(d.Type.Type)
		default:
			return ast.ExprVoid
		}
	default:
		return ast.ExprVoid
	}
}

func (c *Checker) errorf(span pos.Span, format string, args ...any) {
	d := diag.New(diag.Error, diag.CategoryType, format, args...)
	if !span.IsNull() {
		d.WithPrimary(span, "here")
	}
	c.emit.Emit(d)
}
