package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/ident"
)

// DeadLabelElimination drops every PlainLabelStmt in block that no
// JumpStmt/CondJumpStmt targets, a decompile-only cleanup. Grounded on
// original_source/src/passes/unused_labels.rs's two-sweep shape: first
// collect every jump destination actually referenced, then filter.
func DeadLabelElimination(block *ast.Block) {
	used := map[ident.Ident]bool{}
	collectUsedLabels(block, used)

	out := make([]*ast.Stmt, 0, len(block.Stmts))
	for _, stmt := range block.Stmts {
		if lbl, ok := stmt.Kind.(*ast.PlainLabelStmt); ok && !used[lbl.Name] {
			continue
		}
		out = append(out, stmt)
	}
	block.Stmts = out
}

func collectUsedLabels(block *ast.Block, used map[ident.Ident]bool) {
	for _, stmt := range block.Stmts {
		switch k := stmt.Kind.(type) {
		case *ast.JumpStmt:
			used[k.Destination] = true
		case *ast.CondJumpStmt:
			used[k.Destination] = true
		case *ast.BlockStmt:
			collectUsedLabels(k.Body, used)
		case *ast.LoopStmt:
			collectUsedLabels(k.Body, used)
		case *ast.WhileStmt:
			collectUsedLabels(k.Body, used)
		case *ast.TimesStmt:
			collectUsedLabels(k.Body, used)
		case *ast.CondChainStmt:
			for _, arm := range k.Arms {
				collectUsedLabels(arm.Body, used)
			}
			if k.Else != nil {
				collectUsedLabels(k.Else, used)
			}
		}
	}
}
