package consteval

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/pos"
)

// Simplifier folds every constant subexpression found anywhere in a
// ScriptFile down to a literal.
// Expressions that are not constant — a register read, a call to a
// non-const function — are left untouched, matching
// original_source/src/passes/const_simplify.rs's "leave as-is" behavior.
type Simplifier struct {
	ev *Evaluator
}

// NewSimplifier constructs a Simplifier sharing ev's Context and const
// cache, so a const already evaluated by EvaluateFile is not re-folded.
func NewSimplifier(ev *Evaluator) *Simplifier {
	return &Simplifier{ev: ev}
}

// SimplifyFile folds every foldable expression in file in place, bottom-up.
func (s *Simplifier) SimplifyFile(file *ast.ScriptFile) error {
	ast.WalkMut(file, s)
	return s.ev.emit.AsResult()
}

// VisitExprMut implements ast.MutVisitor: children of *e have already
// been folded (if foldable) by the time this runs, so s.ev.fold(*e) only
// ever needs to look one level deep to decide whether *e itself reduces.
func (s *Simplifier) VisitExprMut(e *ast.Expr) {
	switch (*e).(type) {
	case *ast.LitInt, *ast.LitFloat, *ast.LitString:
		return // already a literal
	}
	v, ok := s.ev.fold(*e)
	if !ok {
		return
	}
	*e = valueToExpr(v, (*e).Span())
}

func valueToExpr(v context.ConstValue, span pos.Span) ast.Expr {
	switch v.Type {
	case ast.Int:
		return ast.NewLitInt(span, v.Int, ast.RadixDecimal)
	case ast.Float:
		return ast.NewLitFloat(span, v.Float)
	case ast.String:
		return ast.NewLitString(span, v.Str)
	default:
		return nil
	}
}
