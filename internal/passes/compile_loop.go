package passes

// Compile loop's break/continue resolution is implemented directly inside DesugarBlocks (desugar_blocks.go):
// the same depth-first walk that turns a loop statement into its start/end
// labels is the only place those labels exist, so resolving a BreakStmt/
// ContinueStmt against its LoopID has to happen in that walk rather than as
// a separate pass over an intermediate form. See desugarer.loops and
// desugarStmt's BreakStmt/ContinueStmt cases.
