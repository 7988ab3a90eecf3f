// Package resolve implements name resolution: the
// two-pass block algorithm (items forward-visible, locals bound in
// statement order), the LocalBarrier rule that rejects a local/param
// reaching across a function or const boundary, Mapfile-rib language
// filtering, and enum-constant resolution (qualified bypass plus
// unqualified ambiguity detection).
//
// Grounded on original_source/src/resolve/mod.rs's scope-stack walk and
// on Consensys-go-corset/pkg/corset/scope.go + environment.go for the Go
// idiom of a driver that walks an AST pushing/popping scope objects owned
// by a separate mutable context, rather than building its own parallel
// tree.
package resolve

import (
	"fmt"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/pos"
)

// Resolver drives name resolution for one ScriptFile against one
// Context, under one expected Language.
type Resolver struct {
	ctx  *context.Context
	lang ast.Language
	emit *diag.ErrorFlag
}

// NewResolver constructs a Resolver reporting through emitter.
func NewResolver(ctx *context.Context, lang ast.Language, emitter diag.Emitter) *Resolver {
	return &Resolver{ctx: ctx, lang: lang, emit: diag.NewErrorFlag(emitter)}
}

// ResolveFile resolves every identifier in file, returning diag.ErrReported
// if any diagnostic was emitted.
func (r *Resolver) ResolveFile(file *ast.ScriptFile) error {
	r.bindItemsPass(file.Items)
	for _, item := range file.Items {
		r.resolveItem(item)
	}
	r.ctx.Funcs.Pop()
	r.ctx.Vars.Pop()
	return r.emit.AsResult()
}

// bindItemsPass binds every ConstItem/FuncItem in items into a single
// Items rib on the current top of Vars/Funcs, without yet resolving
// their bodies, making every top-level name forward-visible to every
// other.
func (r *Resolver) bindItemsPass(items []ast.Item) {
	varsRib := &context.Rib{Kind: context.Items}
	funcsRib := &context.Rib{Kind: context.Items}
	r.ctx.Vars.Push(varsRib)
	r.ctx.Funcs.Push(funcsRib)
	r.bindItems(items, varsRib, funcsRib)
}

func (r *Resolver) bindItems(items []ast.Item, varsRib, funcsRib *context.Rib) {
	for _, item := range items {
		r.bindOneItem(item, varsRib, funcsRib)
	}
}

func (r *Resolver) bindOneItem(item ast.Item, varsRib, funcsRib *context.Rib) {
	switch it := item.(type) {
	case *ast.ConstItem:
		def := r.ctx.DefineUserConst(context.ScalarTypeOrUntyped{Type: it.Type}, it.Value)
		r.bindName(varsRib, it.Name, def, "const", it.ItemSpan)
	case *ast.FuncItem:
		def := r.ctx.DefineUserFunc(it)
		r.bindName(funcsRib, it.Name, def, "function", it.ItemSpan)
	case *ast.ScriptItem, *ast.MetaItem:
		// Neither introduces a resolvable name.
	}
}

func (r *Resolver) bindName(rib *context.Rib, res ident.ResIdent, def ast.DefID, kind string, span pos.Span) {
	if !rib.Bind(res.Name, def) {
		r.emit.Emit(diag.New(diag.Error, diag.CategoryResolve,
			"duplicate %s %q in this scope", kind, r.ctx.Interner.Text(res.Name)).
			WithPrimary(span, "redeclared here"))
		return
	}
	r.ctx.Resolve(res.Res, def)
}

func (r *Resolver) resolveItem(item ast.Item) {
	switch it := item.(type) {
	case *ast.ConstItem:
		r.withBarrier("const "+r.ctx.Interner.Text(it.Name.Name), func() {
			r.resolveExpr(it.Value)
		})
	case *ast.FuncItem:
		r.resolveFunc(it)
	case *ast.ScriptItem:
		if it.Body != nil {
			r.resolveBlock(it.Body)
		}
	case *ast.MetaItem:
		for _, f := range it.Fields {
			r.resolveExpr(f.Value)
		}
	}
}

func (r *Resolver) resolveFunc(it *ast.FuncItem) {
	label := "function " + r.ctx.Interner.Text(it.Name.Name)
	r.withBarrier(label, func() {
		paramsRib := &context.Rib{Kind: context.Params}
		r.ctx.Vars.Push(paramsRib)
		for i := range it.Params {
			p := &it.Params[i]
			def := r.ctx.DefineLocal(p.Type, p.ParamSpan)
			r.bindName(paramsRib, p.Name, def, "parameter", p.ParamSpan)
		}
		if it.Body != nil {
			r.resolveBlock(it.Body)
		}
		r.ctx.Vars.Pop()
	})
}

// withBarrier pushes a LocalBarrier onto both namespaces around fn,
// implementing the function/const scoping boundary.
func (r *Resolver) withBarrier(ofWhat string, fn func()) {
	varsBarrier := &context.Rib{Kind: context.LocalBarrier, OfWhat: ofWhat}
	funcsBarrier := &context.Rib{Kind: context.LocalBarrier, OfWhat: ofWhat}
	r.ctx.Vars.Push(varsBarrier)
	r.ctx.Funcs.Push(funcsBarrier)
	fn()
	r.ctx.Funcs.Pop()
	r.ctx.Vars.Pop()
}

// resolveBlock implements the two-pass block algorithm: bind every
// nested const/func forward-visibly first, then walk statements in
// order, growing a Locals rib incrementally as declarations are
// encountered.
func (r *Resolver) resolveBlock(b *ast.Block) {
	itemsVarsRib := &context.Rib{Kind: context.Items}
	itemsFuncsRib := &context.Rib{Kind: context.Items}
	r.ctx.Vars.Push(itemsVarsRib)
	r.ctx.Funcs.Push(itemsFuncsRib)

	for _, stmt := range b.Stmts {
		if def, ok := stmt.Kind.(*ast.ItemDefStmt); ok {
			r.bindOneItem(def.Item, itemsVarsRib, itemsFuncsRib)
		}
	}

	localsRib := &context.Rib{Kind: context.Locals}
	r.ctx.Vars.Push(localsRib)

	for _, stmt := range b.Stmts {
		r.resolveStmt(stmt, localsRib)
	}

	r.ctx.Vars.Pop() // localsRib
	r.ctx.Funcs.Pop()
	r.ctx.Vars.Pop() // itemsVarsRib
}

func (r *Resolver) resolveStmt(s *ast.Stmt, localsRib *context.Rib) {
	switch k := s.Kind.(type) {
	case *ast.ItemDefStmt:
		r.resolveItem(k.Item)
	case *ast.JumpStmt:
		if k.Time != nil {
			r.resolveExpr(k.Time)
		}
	case *ast.BreakStmt, *ast.ContinueStmt, *ast.InterruptLabelStmt, *ast.TimeLabelStmt,
		*ast.PlainLabelStmt, *ast.ScopeEndStmt, *ast.NoInstruction:
		// No identifiers to resolve.
	case *ast.CondJumpStmt:
		r.resolveExpr(k.Cond)
		if k.Time != nil {
			r.resolveExpr(k.Time)
		}
	case *ast.ReturnStmt:
		if k.Value != nil {
			r.resolveExpr(k.Value)
		}
	case *ast.CondChainStmt:
		for _, arm := range k.Arms {
			r.resolveExpr(arm.Cond)
			r.resolveBlock(arm.Body)
		}
		if k.Else != nil {
			r.resolveBlock(k.Else)
		}
	case *ast.LoopStmt:
		r.resolveBlock(k.Body)
	case *ast.WhileStmt:
		if k.Do {
			r.resolveBlock(k.Body)
			r.resolveExpr(k.Cond)
		} else {
			r.resolveExpr(k.Cond)
			r.resolveBlock(k.Body)
		}
	case *ast.TimesStmt:
		r.resolveExpr(k.Count)
		if k.Clobber != nil {
			r.resolveVar(k.Clobber)
		}
		r.resolveBlock(k.Body)
	case *ast.ExprStmt:
		r.resolveExpr(k.Expr)
	case *ast.BlockStmt:
		r.resolveBlock(k.Body)
	case *ast.AssignStmt:
		r.resolveVar(k.Var)
		r.resolveExpr(k.Value)
	case *ast.DeclarationStmt:
		for i := range k.Entries {
			e := &k.Entries[i]
			if e.Init != nil {
				r.resolveExpr(e.Init)
			}
			def := r.ctx.DefineLocal(k.Type, s.StmtSpan)
			r.bindName(localsRib, e.Name, def, "local variable", s.StmtSpan)
		}
	case *ast.CallSubStmt:
		r.resolveCallableName(k.Func, s.Span())
		for _, a := range k.Args {
			r.resolveExpr(a)
		}
	}
}

func (r *Resolver) resolveExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.LitInt, *ast.LitFloat, *ast.LitString:
		// No identifiers.
	case *ast.VarExpr:
		r.resolveVar(ex.Var)
	case *ast.Ternary:
		r.resolveExpr(ex.Cond)
		r.resolveExpr(ex.Then)
		r.resolveExpr(ex.Else)
	case *ast.BinOp:
		r.resolveExpr(ex.A)
		r.resolveExpr(ex.B)
	case *ast.UnOp:
		r.resolveExpr(ex.A)
	case *ast.Xcrement:
		r.resolveVar(ex.Var)
	case *ast.Call:
		r.resolveCallableName(ex.Callable, ex.Span())
		for _, pa := range ex.PseudoArgs {
			r.resolveExpr(pa.Value)
		}
		for _, a := range ex.Args {
			r.resolveExpr(a)
		}
	case *ast.DiffSwitch:
		for _, opt := range ex.Options {
			if opt != nil {
				r.resolveExpr(opt)
			}
		}
	case *ast.LabelProperty:
		// Labels are resolved against the flat label table of the
		// enclosing script/function body, not through the rib stack;
		// left for internal/lower and internal/raise to validate.
	case *ast.EnumConst:
		r.resolveEnumConst(ex)
	}
}

func (r *Resolver) resolveEnumConst(ec *ast.EnumConst) {
	if ec.EnumName != "" {
		members := r.ctx.EnumByName[ec.EnumName]
		if members == nil {
			r.emit.Emit(diag.New(diag.Error, diag.CategoryResolve, "unknown enum %q", ec.EnumName).
				WithPrimary(ec.Span(), "no such enum"))
			return
		}
		def, ok := members[ec.Res.Name]
		if !ok {
			r.emit.Emit(diag.New(diag.Error, diag.CategoryResolve, "enum %q has no member %q",
				ec.EnumName, r.ctx.Interner.Text(ec.Res.Name)).WithPrimary(ec.Span(), "unknown member"))
			return
		}
		r.ctx.Resolve(ec.Res.Res, def)
		return
	}

	candidates := r.ctx.EnumMembers[ec.Res.Name]
	switch len(candidates) {
	case 0:
		r.emit.Emit(diag.New(diag.Error, diag.CategoryResolve, "undefined identifier %q",
			r.ctx.Interner.Text(ec.Res.Name)).WithPrimary(ec.Span(), "not found"))
	case 1:
		r.ctx.Resolve(ec.Res.Res, candidates[0])
	default:
		names := make([]string, 0, len(candidates))
		for _, id := range candidates {
			if def, ok := r.ctx.Defs.Get(id).(*context.EnumConstantDef); ok {
				names = append(names, def.Enum)
			}
		}
		r.emit.Emit(diag.New(diag.Error, diag.CategoryResolve,
			"%q is ambiguous between enums %v; qualify it as EnumName.%s",
			r.ctx.Interner.Text(ec.Res.Name), names, r.ctx.Interner.Text(ec.Res.Name)).
			WithPrimary(ec.Span(), "ambiguous enum constant"))
	}
}

func (r *Resolver) resolveVar(v *ast.Var) {
	switch name := v.Name.(type) {
	case *ast.RegVarName:
		// Direct register reference; nothing to resolve.
	case *ast.NormalVarName:
		def, ok, reason := r.lookup(r.ctx.Vars, name.Res.Name)
		if !ok {
			r.emitUnresolved(v.Span(), name.Res.Name, reason)
			return
		}
		r.ctx.Resolve(name.Res.Res, def)
	}
}

func (r *Resolver) resolveCallableName(c ast.CallableName, span pos.Span) {
	switch name := c.(type) {
	case *ast.InsCallableName:
		// Direct opcode reference; nothing to resolve.
	case *ast.NormalCallableName:
		def, ok, reason := r.lookup(r.ctx.Funcs, name.Res.Name)
		if !ok {
			r.emitUnresolved(span, name.Res.Name, reason)
			return
		}
		r.ctx.Resolve(name.Res.Res, def)
	}
}

// lookup applies the barrier-crossing and mapfile-language rules on top
// of Namespace.Resolve's raw, unfiltered results.
func (r *Resolver) lookup(ns *context.Namespace, name ident.Ident) (ast.DefID, bool, string) {
	results := ns.Resolve(name)
	invalidReason := ""
	for _, res := range results {
		if res.Rib.Kind == context.Mapfile && res.Rib.Language != r.lang {
			if invalidReason == "" {
				invalidReason = fmt.Sprintf("is defined for language %s, not %s", res.Rib.Language, r.lang)
			}
			continue
		}
		if res.CrossedBarriers > 0 && (res.Rib.Kind == context.Locals || res.Rib.Kind == context.Params) {
			if invalidReason == "" {
				invalidReason = "is a local variable or parameter of an enclosing function or const, and cannot be used here"
			}
			continue
		}
		return res.Def, true, ""
	}
	return 0, false, invalidReason
}

func (r *Resolver) emitUnresolved(span pos.Span, name ident.Ident, reason string) {
	text := r.ctx.Interner.Text(name)
	msg := fmt.Sprintf("undefined identifier %q", text)
	if reason != "" {
		msg = fmt.Sprintf("%q %s", text, reason)
	}
	d := diag.New(diag.Error, diag.CategoryResolve, "%s", msg)
	if !span.IsNull() {
		d = d.WithPrimary(span, "here")
	}
	r.emit.Emit(d)
}
