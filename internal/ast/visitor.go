package ast

import "github.com/zero318/truth/internal/ident"

// Visitor is the read-only traversal protocol. All visit
// methods have a default no-op embedding (BaseVisitor) so a pass only
// overrides the hooks it cares about.
//
// Traversal order, guaranteed by Walk:
//   - Items in declaration order.
//   - Within an item body, its outer block; a nested item definition
//     (ItemDefStmt) is walked in place, its own body included.
//   - Within a block, statements in order.
//   - Within a statement, loop ids are announced via LoopBegin/LoopEnd
//     around the loop's body.
//   - Within an expression, operands left-to-right, except `while ... do`
//     where the body is visited before the condition (execution order).
type Visitor interface {
	VisitItem(Item)
	VisitStmt(*Stmt)
	VisitExpr(Expr)
	VisitCond(Expr)
	VisitCallableName(CallableName)
	VisitVar(*Var)
	VisitResIdent(*ident.ResIdent)
	VisitNodeID(NodeID)
	LoopBegin(LoopID)
	LoopEnd(LoopID)
}

// BaseVisitor is a Visitor whose every method is a no-op; embed it and
// override only the hooks a pass needs.
type BaseVisitor struct{}

func (BaseVisitor) VisitItem(Item)                       {}
func (BaseVisitor) VisitStmt(*Stmt)                       {}
func (BaseVisitor) VisitExpr(Expr)                        {}
func (BaseVisitor) VisitCond(Expr)                        {}
func (BaseVisitor) VisitCallableName(CallableName)        {}
func (BaseVisitor) VisitVar(*Var)                         {}
func (BaseVisitor) VisitResIdent(*ident.ResIdent)         {}
func (BaseVisitor) VisitNodeID(NodeID)                    {}
func (BaseVisitor) LoopBegin(LoopID)                       {}
func (BaseVisitor) LoopEnd(LoopID)                        {}

// Walk traverses file's items in declaration order, invoking v's hooks.
func Walk(file *ScriptFile, v Visitor) {
	for _, item := range file.Items {
		WalkItem(item, v)
	}
}

// WalkItem dispatches on item's concrete kind and walks its (outer) body.
func WalkItem(item Item, v Visitor) {
	v.VisitItem(item)
	switch it := item.(type) {
	case *FuncItem:
		v.VisitResIdent(&it.Name.Res)
		for i := range it.Params {
			v.VisitResIdent(&it.Params[i].Name)
		}
		if it.Body != nil {
			WalkBlock(it.Body, v)
		}
	case *ScriptItem:
		if it.Body != nil {
			WalkBlock(it.Body, v)
		}
	case *MetaItem:
		for i := range it.Fields {
			WalkExpr(it.Fields[i].Value, v)
		}
	case *ConstItem:
		v.VisitResIdent(&it.Name.Res)
		WalkExpr(it.Value, v)
	}
}

// WalkBlock walks every statement of b in order.
func WalkBlock(b *Block, v Visitor) {
	for _, stmt := range b.Stmts {
		WalkStmt(stmt, v)
	}
}

// WalkStmt dispatches on stmt's kind.
func WalkStmt(stmt *Stmt, v Visitor) {
	v.VisitNodeID(stmt.ID)
	v.VisitStmt(stmt)
	switch k := stmt.Kind.(type) {
	case *ItemDefStmt:
		WalkItem(k.Item, v)
	case *JumpStmt:
		if k.Time != nil {
			WalkExpr(k.Time, v)
		}
	case *CondJumpStmt:
		v.VisitCond(k.Cond)
		WalkExpr(k.Cond, v)
		if k.Time != nil {
			WalkExpr(k.Time, v)
		}
	case *ReturnStmt:
		if k.Value != nil {
			WalkExpr(k.Value, v)
		}
	case *CondChainStmt:
		for _, arm := range k.Arms {
			v.VisitCond(arm.Cond)
			WalkExpr(arm.Cond, v)
			WalkBlock(arm.Body, v)
		}
		if k.Else != nil {
			WalkBlock(k.Else, v)
		}
	case *LoopStmt:
		v.LoopBegin(k.Loop)
		WalkBlock(k.Body, v)
		v.LoopEnd(k.Loop)
	case *WhileStmt:
		v.LoopBegin(k.Loop)
		if k.Do {
			WalkBlock(k.Body, v)
			v.VisitCond(k.Cond)
			WalkExpr(k.Cond, v)
		} else {
			v.VisitCond(k.Cond)
			WalkExpr(k.Cond, v)
			WalkBlock(k.Body, v)
		}
		v.LoopEnd(k.Loop)
	case *TimesStmt:
		WalkExpr(k.Count, v)
		if k.Clobber != nil {
			v.VisitVar(k.Clobber)
		}
		v.LoopBegin(k.Loop)
		WalkBlock(k.Body, v)
		v.LoopEnd(k.Loop)
	case *ExprStmt:
		WalkExpr(k.Expr, v)
	case *BlockStmt:
		WalkBlock(k.Body, v)
	case *AssignStmt:
		WalkExpr(k.Value, v)
		v.VisitVar(k.Var)
	case *DeclarationStmt:
		for i := range k.Entries {
			if k.Entries[i].Init != nil {
				WalkExpr(k.Entries[i].Init, v)
			}
			v.VisitResIdent(&k.Entries[i].Name)
		}
	case *CallSubStmt:
		v.VisitCallableName(k.Func)
		for _, a := range k.Args {
			WalkExpr(a, v)
		}
	}
}

// MutVisitor is the mutating counterpart of Visitor, used
// by passes that rewrite expressions in place, such as const-simplify
// folding `3+4` down to the literal `7`. WalkExprMut recurses bottom-up
// (children are visited, and may already have been replaced, before
// VisitExprMut runs on the parent), threading the replacement back into
// whatever struct field or slice slot held the original node via a
// pointer to the Expr interface value itself.
type MutVisitor interface {
	VisitExprMut(e *Expr)
}

// WalkMut is the mutating counterpart of Walk.
func WalkMut(file *ScriptFile, v MutVisitor) {
	for _, item := range file.Items {
		WalkItemMut(item, v)
	}
}

// WalkItemMut is the mutating counterpart of WalkItem.
func WalkItemMut(item Item, v MutVisitor) {
	switch it := item.(type) {
	case *FuncItem:
		if it.Body != nil {
			WalkBlockMut(it.Body, v)
		}
	case *ScriptItem:
		if it.Body != nil {
			WalkBlockMut(it.Body, v)
		}
	case *MetaItem:
		for i := range it.Fields {
			WalkExprMut(&it.Fields[i].Value, v)
		}
	case *ConstItem:
		WalkExprMut(&it.Value, v)
	}
}

// WalkBlockMut is the mutating counterpart of WalkBlock.
func WalkBlockMut(b *Block, v MutVisitor) {
	for _, stmt := range b.Stmts {
		WalkStmtMut(stmt, v)
	}
}

// WalkStmtMut is the mutating counterpart of WalkStmt.
func WalkStmtMut(stmt *Stmt, v MutVisitor) {
	switch k := stmt.Kind.(type) {
	case *ItemDefStmt:
		WalkItemMut(k.Item, v)
	case *JumpStmt:
		if k.Time != nil {
			WalkExprMut(&k.Time, v)
		}
	case *CondJumpStmt:
		WalkExprMut(&k.Cond, v)
		if k.Time != nil {
			WalkExprMut(&k.Time, v)
		}
	case *ReturnStmt:
		if k.Value != nil {
			WalkExprMut(&k.Value, v)
		}
	case *CondChainStmt:
		for i := range k.Arms {
			WalkExprMut(&k.Arms[i].Cond, v)
			WalkBlockMut(k.Arms[i].Body, v)
		}
		if k.Else != nil {
			WalkBlockMut(k.Else, v)
		}
	case *LoopStmt:
		WalkBlockMut(k.Body, v)
	case *WhileStmt:
		WalkExprMut(&k.Cond, v)
		WalkBlockMut(k.Body, v)
	case *TimesStmt:
		WalkExprMut(&k.Count, v)
		WalkBlockMut(k.Body, v)
	case *ExprStmt:
		WalkExprMut(&k.Expr, v)
	case *BlockStmt:
		WalkBlockMut(k.Body, v)
	case *AssignStmt:
		WalkExprMut(&k.Value, v)
	case *DeclarationStmt:
		for i := range k.Entries {
			if k.Entries[i].Init != nil {
				WalkExprMut(&k.Entries[i].Init, v)
			}
		}
	case *CallSubStmt:
		for i := range k.Args {
			WalkExprMut(&k.Args[i], v)
		}
	}
}

// WalkExprMut recurses into e's sub-expressions (if any), then calls
// v.VisitExprMut(e), which may replace *e with a new node.
func WalkExprMut(e *Expr, v MutVisitor) {
	switch ex := (*e).(type) {
	case *Ternary:
		WalkExprMut(&ex.Cond, v)
		WalkExprMut(&ex.Then, v)
		WalkExprMut(&ex.Else, v)
	case *BinOp:
		WalkExprMut(&ex.A, v)
		WalkExprMut(&ex.B, v)
	case *UnOp:
		WalkExprMut(&ex.A, v)
	case *Call:
		for i := range ex.PseudoArgs {
			WalkExprMut(&ex.PseudoArgs[i].Value, v)
		}
		for i := range ex.Args {
			WalkExprMut(&ex.Args[i], v)
		}
	case *DiffSwitch:
		for i := range ex.Options {
			if ex.Options[i] != nil {
				WalkExprMut(&ex.Options[i], v)
			}
		}
	}
	v.VisitExprMut(e)
}

// WalkExpr dispatches on expr's kind, visiting sub-expressions left to
// right.
func WalkExpr(expr Expr, v Visitor) {
	v.VisitExpr(expr)
	switch e := expr.(type) {
	case *VarExpr:
		v.VisitVar(e.Var)
	case *Ternary:
		WalkExpr(e.Cond, v)
		WalkExpr(e.Then, v)
		WalkExpr(e.Else, v)
	case *BinOp:
		WalkExpr(e.A, v)
		WalkExpr(e.B, v)
	case *UnOp:
		WalkExpr(e.A, v)
	case *Xcrement:
		v.VisitVar(e.Var)
	case *Call:
		v.VisitCallableName(e.Callable)
		for _, pa := range e.PseudoArgs {
			WalkExpr(pa.Value, v)
		}
		for _, a := range e.Args {
			WalkExpr(a, v)
		}
	case *DiffSwitch:
		for _, opt := range e.Options {
			if opt != nil {
				WalkExpr(opt, v)
			}
		}
	case *EnumConst:
		v.VisitResIdent(&e.Res)
	}
}
