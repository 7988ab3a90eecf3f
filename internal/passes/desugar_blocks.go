package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/ident"
)

// loopLabels is the continue/break target pair recorded for one LoopID's
// enclosing DesugarBlocks invocation, consulted when a BreakStmt/
// ContinueStmt naming that LoopID is reached.
type loopLabels struct {
	continueTo ident.Ident
	breakTo    ident.Ident
}

// desugarer carries the context + gensym source threaded through one
// DesugarBlocks walk, plus the stack of enclosing loops' labels.
type desugarer struct {
	ctx   *context.Context
	loops map[ast.LoopID]loopLabels
}

// DesugarBlocks converts every `loop`, `while`, `do-while`, `times` and
// `if`/`elif`/`else` statement in file into labels and (un)conditional
// gotos, and resolves every `break`/
// `continue` against its enclosing loop's labels in the same walk. Must run after const_simplify and before lower
//; idempotent on its own output, since a
// desugared block contains none of the statement kinds it rewrites.
func DesugarBlocks(ctx *context.Context, file *ast.ScriptFile) error {
	d := &desugarer{ctx: ctx, loops: map[ast.LoopID]loopLabels{}}
	for _, item := range file.Items {
		d.desugarItem(item)
	}
	return nil
}

func (d *desugarer) desugarItem(item ast.Item) {
	switch it := item.(type) {
	case *ast.FuncItem:
		if it.Body != nil {
			it.Body.Stmts = d.desugarStmts(it.Body.Stmts)
		}
	case *ast.ScriptItem:
		if it.Body != nil {
			it.Body.Stmts = d.desugarStmts(it.Body.Stmts)
		}
	}
}

func (d *desugarer) newLabel(tag string) ident.Ident { return d.ctx.Gensym.Fresh(tag) }

func (d *desugarer) wrap(k ast.StmtKind) *ast.Stmt {
	return &ast.Stmt{ID: d.ctx.NewNodeID(), Kind: k}
}

// desugarStmts rewrites one block's statement list, recursing into nested
// blocks depth-first (matching original_source/src/passes/compile_loop.rs's
// "traverse depth-first" ordering) before flattening the outer list.
func (d *desugarer) desugarStmts(stmts []*ast.Stmt) []*ast.Stmt {
	out := make([]*ast.Stmt, 0, len(stmts))
	for _, stmt := range stmts {
		out = append(out, d.desugarStmt(stmt)...)
	}
	return out
}

func (d *desugarer) desugarStmt(stmt *ast.Stmt) []*ast.Stmt {
	switch k := stmt.Kind.(type) {
	case *ast.ItemDefStmt:
		d.desugarItem(k.Item)
		return []*ast.Stmt{stmt}

	case *ast.BlockStmt:
		k.Body.Stmts = d.desugarStmts(k.Body.Stmts)
		return []*ast.Stmt{stmt}

	case *ast.CondChainStmt:
		return d.desugarCondChain(stmt, k)

	case *ast.LoopStmt:
		return d.desugarLoop(stmt, k)

	case *ast.WhileStmt:
		return d.desugarWhile(stmt, k)

	case *ast.TimesStmt:
		return d.desugarTimes(stmt, k)

	case *ast.BreakStmt:
		lbl := d.loops[k.Loop]
		return []*ast.Stmt{d.wrap(&ast.JumpStmt{Destination: lbl.breakTo})}

	case *ast.ContinueStmt:
		lbl := d.loops[k.Loop]
		return []*ast.Stmt{d.wrap(&ast.JumpStmt{Destination: lbl.continueTo})}

	default:
		return []*ast.Stmt{stmt}
	}
}

// desugarCondChain rewrites an if/elif/else chain into a fallthrough chain
// of `unless (cond) goto next;` tests, each arm's body followed by `goto
// end;`, with the else arm (if any) falling straight into `end:`.
func (d *desugarer) desugarCondChain(stmt *ast.Stmt, k *ast.CondChainStmt) []*ast.Stmt {
	end := d.newLabel("@cond_end#")
	var out []*ast.Stmt
	for i, arm := range k.Arms {
		arm.Body.Stmts = d.desugarStmts(arm.Body.Stmts)
		last := i == len(k.Arms)-1 && k.Else == nil
		var next ident.Ident
		if !last {
			next = d.newLabel("@cond_next#")
		}
		out = append(out, d.wrap(&ast.CondJumpStmt{Unless: true, Cond: arm.Cond, Destination: orEnd(next, end, last)}))
		out = append(out, arm.Body.Stmts...)
		if i != len(k.Arms)-1 || k.Else != nil {
			out = append(out, d.wrap(&ast.JumpStmt{Destination: end}))
		}
		if !last {
			out = append(out, d.wrap(&ast.PlainLabelStmt{Name: next}))
		}
	}
	if k.Else != nil {
		k.Else.Stmts = d.desugarStmts(k.Else.Stmts)
		out = append(out, k.Else.Stmts...)
	}
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: end}))
	return out
}

func orEnd(next, end ident.Ident, last bool) ident.Ident {
	if last {
		return end
	}
	return next
}

// desugarLoop rewrites `loop { body }` to `start: body; goto start;`,
// matching original_source/src/passes/compile_loop.rs's Unconditional case.
func (d *desugarer) desugarLoop(stmt *ast.Stmt, k *ast.LoopStmt) []*ast.Stmt {
	start := d.newLabel("@loop#")
	end := d.newLabel("@loop_end#")
	d.loops[k.Loop] = loopLabels{continueTo: start, breakTo: end}
	body := d.desugarStmts(k.Body.Stmts)

	var out []*ast.Stmt
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: start}))
	out = append(out, body...)
	out = append(out, d.wrap(&ast.JumpStmt{Destination: start}))
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: end}))
	return out
}

// desugarWhile rewrites `while (cond) { body }` to a check-first loop and
// `do { body } while (cond);` to a check-last loop, the latter matching
// original_source/src/passes/compile_loop.rs's do-while Conditional case
// exactly (label before the body, a single trailing conditional jump).
func (d *desugarer) desugarWhile(stmt *ast.Stmt, k *ast.WhileStmt) []*ast.Stmt {
	end := d.newLabel("@while_end#")

	if k.Do {
		start := d.newLabel("@while#")
		d.loops[k.Loop] = loopLabels{continueTo: start, breakTo: end}
		body := d.desugarStmts(k.Body.Stmts)

		var out []*ast.Stmt
		out = append(out, d.wrap(&ast.PlainLabelStmt{Name: start}))
		out = append(out, body...)
		out = append(out, d.wrap(&ast.CondJumpStmt{Unless: false, Cond: k.Cond, Destination: start}))
		out = append(out, d.wrap(&ast.PlainLabelStmt{Name: end}))
		return out
	}

	test := d.newLabel("@while_test#")
	body := d.newLabel("@while_body#")
	d.loops[k.Loop] = loopLabels{continueTo: test, breakTo: end}
	bodyStmts := d.desugarStmts(k.Body.Stmts)

	var out []*ast.Stmt
	out = append(out, d.wrap(&ast.JumpStmt{Destination: test}))
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: body}))
	out = append(out, bodyStmts...)
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: test}))
	out = append(out, d.wrap(&ast.CondJumpStmt{Unless: false, Cond: k.Cond, Destination: body}))
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: end}))
	return out
}

// desugarTimes rewrites `times(n) { body }` to `tmp = n; L: body; if
// (--tmp) goto L;`, using Clobber in place of a hidden temporary when the
// user named one explicitly.
func (d *desugarer) desugarTimes(stmt *ast.Stmt, k *ast.TimesStmt) []*ast.Stmt {
	counter := k.Clobber
	var decl *ast.Stmt
	if counter == nil {
		def := d.ctx.DefineLocal(ast.VarInt, stmt.Span())
		name := d.ctx.NewResIdent(d.newLabel("times_counter"))
		d.ctx.Resolve(name.Res, def)
		counter = &ast.Var{Name: &ast.NormalVarName{Res: name}}
		decl = d.wrap(&ast.DeclarationStmt{Type: ast.VarInt, Entries: []ast.DeclEntry{{Name: name, Init: k.Count}}})
	} else {
		decl = d.wrap(&ast.AssignStmt{Var: counter, Op: ast.Assign, Value: k.Count})
	}

	start := d.newLabel("@times#")
	end := d.newLabel("@times_end#")
	d.loops[k.Loop] = loopLabels{continueTo: start, breakTo: end}
	body := d.desugarStmts(k.Body.Stmts)

	xc := ast.NewXcrement(counter.Span(), ast.Decrement, true, counter)

	var out []*ast.Stmt
	out = append(out, decl)
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: start}))
	out = append(out, body...)
	out = append(out, d.wrap(&ast.CondJumpStmt{Unless: false, Cond: xc, Destination: start}))
	out = append(out, d.wrap(&ast.PlainLabelStmt{Name: end}))
	return out
}
