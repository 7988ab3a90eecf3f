package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
)

// RefreshNodeIDs re-mints every Stmt's NodeID against ctx, needed whenever
// a subtree produced against one Context (e.g. a raised sub, built with
// its own throwaway Context during batch decompilation) is spliced into
// another file's tree and must not collide with that file's own ids.
func RefreshNodeIDs(ctx *context.Context, file *ast.ScriptFile) {
	for _, item := range file.Items {
		refreshItem(ctx, item)
	}
}

func refreshItem(ctx *context.Context, item ast.Item) {
	switch it := item.(type) {
	case *ast.FuncItem:
		if it.Body != nil {
			refreshBlock(ctx, it.Body)
		}
	case *ast.ScriptItem:
		if it.Body != nil {
			refreshBlock(ctx, it.Body)
		}
	}
}

func refreshBlock(ctx *context.Context, b *ast.Block) {
	for _, stmt := range b.Stmts {
		stmt.ID = ctx.NewNodeID()
		switch k := stmt.Kind.(type) {
		case *ast.ItemDefStmt:
			refreshItem(ctx, k.Item)
		case *ast.BlockStmt:
			refreshBlock(ctx, k.Body)
		case *ast.LoopStmt:
			refreshBlock(ctx, k.Body)
		case *ast.WhileStmt:
			refreshBlock(ctx, k.Body)
		case *ast.TimesStmt:
			refreshBlock(ctx, k.Body)
		case *ast.CondChainStmt:
			for _, arm := range k.Arms {
				refreshBlock(ctx, arm.Body)
			}
			if k.Else != nil {
				refreshBlock(ctx, k.Else)
			}
		}
	}
}
