package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/consteval"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/resolve"
	"github.com/zero318/truth/internal/typecheck"
)

// ResolveNames runs internal/resolve over file, the second
// fixed pass.
func ResolveNames(ctx *context.Context, lang ast.Language, file *ast.ScriptFile, emitter diag.Emitter) error {
	return resolve.NewResolver(ctx, lang, emitter).ResolveFile(file)
}

// TypeCheck runs internal/typecheck over file, the third
// fixed pass; it assumes resolve_names already ran (every resolvable
// identifier must have a resolution).
func TypeCheck(ctx *context.Context, lang ast.Language, file *ast.ScriptFile, emitter diag.Emitter) error {
	return typecheck.NewChecker(ctx, lang, emitter).CheckFile(file)
}

// EvaluateConstVars runs internal/consteval's Evaluator over file, folding every top-level/nested const item's
// initializer into a concrete value cached on ctx.Consts.
func EvaluateConstVars(ctx *context.Context, file *ast.ScriptFile, emitter diag.Emitter) error {
	return consteval.NewEvaluator(ctx, emitter).EvaluateFile(file)
}

// ConstSimplify runs internal/consteval's Simplifier over file, folding
// every foldable expression (not just const-item initializers) down to a
// literal in place.
func ConstSimplify(ctx *context.Context, file *ast.ScriptFile, emitter diag.Emitter) error {
	ev := consteval.NewEvaluator(ctx, emitter)
	return consteval.NewSimplifier(ev).SimplifyFile(file)
}
