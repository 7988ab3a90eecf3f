// Package passes implements the small, independently testable AST-rewrite
// stages of the compile pipeline, run in a fixed order: assign_languages
// -> resolve_names -> type_check -> validate_difficulty ->
// evaluate_const_vars -> const_simplify -> desugar_blocks -> lower.
//
// Grounded on Consensys-go-corset's pkg/corset/preprocessor.go for the overall
// shape (a driver function per concern, each a straightforward recursive
// walk over the same tree, run one after another by a fixed top-level
// caller) rather than on its content, since go-corset's preprocessor
// inlines everything into one struct dispatching by declaration kind; this
// module instead keeps one file and one exported entry point per pass.
// Per-pass algorithmic detail for the control-flow passes is grounded on
// original_source/src/passes/compile_loop.rs, const_simplify.rs,
// resolve_vars.rs, type_check.rs and unused_labels.rs.
package passes

import (
	"github.com/zero318/truth/internal/ast"
)

// AssignLanguages stamps lang onto every direct register reference
// (RegVarName) and every resolvable name that might turn out to name a
// register or instruction alias (NormalVarName.LanguageIfReg,
// NormalCallableName.LanguageIfIns), before name resolution runs.
//
// truthc is one executable per format, so exactly one Language is active for an
// entire compile/decompile invocation; this pass's only job is making that
// Language available on every AST node that later needs to know which
// mapfile's register bank or instruction table a bare numeric reference
// belongs to, rather than threading it as a side parameter through every
// later pass.
func AssignLanguages(file *ast.ScriptFile, lang ast.Language) {
	v := &languageVisitor{lang: lang}
	ast.Walk(file, v)
}

type languageVisitor struct {
	ast.BaseVisitor
	lang ast.Language
}

func (v *languageVisitor) VisitVar(vr *ast.Var) {
	switch n := vr.Name.(type) {
	case *ast.RegVarName:
		n.Language = &v.lang
	case *ast.NormalVarName:
		n.LanguageIfReg = &v.lang
	}
}

func (v *languageVisitor) VisitCallableName(c ast.CallableName) {
	switch n := c.(type) {
	case *ast.InsCallableName:
		n.Language = &v.lang
	case *ast.NormalCallableName:
		n.LanguageIfIns = &v.lang
	}
}
