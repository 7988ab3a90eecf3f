package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/ident"
)

// MakeIdentsUnique renames any local whose declared text collides with an
// earlier local already declared in the same function/script body, so a
// decompiled or otherwise synthesized body never pretty-prints two
// distinct locals under the same name. Collisions are rare for ordinary
// parsed input (name resolution already rejects redeclaration within one
// scope) but can arise once separately built bodies, or a built body and
// hand-edited source, are merged into one file.
func MakeIdentsUnique(ctx *context.Context, file *ast.ScriptFile) {
	for _, item := range file.Items {
		var body *ast.Block
		switch it := item.(type) {
		case *ast.FuncItem:
			body = it.Body
		case *ast.ScriptItem:
			body = it.Body
		default:
			continue
		}
		if body == nil {
			continue
		}
		makeBlockIdentsUnique(ctx, body)
	}
}

func makeBlockIdentsUnique(ctx *context.Context, body *ast.Block) {
	seenText := map[ident.Ident]bool{}
	rename := map[ast.DefID]ident.Ident{}

	collect := &declCollector{ctx: ctx, seenText: seenText, rename: rename}
	ast.WalkBlock(body, collect)

	if len(rename) == 0 {
		return
	}
	rewrite := &identRewriter{ctx: ctx, rename: rename}
	ast.WalkBlock(body, rewrite)
}

// declCollector finds every local declaration in a body, in order, and
// decides which ones need a fresh display name to avoid colliding with an
// earlier declaration's text.
type declCollector struct {
	ast.BaseVisitor
	ctx      *context.Context
	seenText map[ident.Ident]bool
	rename   map[ast.DefID]ident.Ident
}

func (c *declCollector) VisitResIdent(ri *ident.ResIdent) {
	def, ok := c.ctx.Resolution(ri.Res)
	if !ok {
		return
	}
	if _, isLocal := c.ctx.Defs.Get(def).(*context.LocalDef); !isLocal {
		return
	}
	if !c.seenText[ri.Name] {
		c.seenText[ri.Name] = true
		return
	}
	if _, already := c.rename[def]; already {
		return
	}
	c.rename[def] = c.ctx.Gensym.Fresh(c.ctx.Interner.Text(ri.Name))
}

// identRewriter substitutes every reference to a renamed DefID's display
// text, at both its declaration site and every later use.
type identRewriter struct {
	ast.BaseVisitor
	ctx    *context.Context
	rename map[ast.DefID]ident.Ident
}

func (r *identRewriter) VisitResIdent(ri *ident.ResIdent) {
	def, ok := r.ctx.Resolution(ri.Res)
	if !ok {
		return
	}
	if newName, ok := r.rename[def]; ok {
		ri.Name = newName
	}
}

func (r *identRewriter) VisitVar(v *ast.Var) {
	n, ok := v.Name.(*ast.NormalVarName)
	if !ok {
		return
	}
	def, ok := r.ctx.Resolution(n.Res.Res)
	if !ok {
		return
	}
	if newName, ok := r.rename[def]; ok {
		n.Res.Name = newName
	}
}
