package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
)

// CompileFile runs every compile-direction pass over file in a fixed
// order, stopping at the first pass that reports an error (each pass
// assumes the invariants its predecessor established, so continuing past
// a failed pass would mean operating on a half-resolved tree).
func CompileFile(ctx *context.Context, lang ast.Language, file *ast.ScriptFile, emitter diag.Emitter) error {
	AssignLanguages(file, lang)
	if err := ResolveNames(ctx, lang, file, emitter); err != nil {
		return err
	}
	if err := TypeCheck(ctx, lang, file, emitter); err != nil {
		return err
	}
	if err := ValidateDifficulty(ctx, lang, file, emitter); err != nil {
		return err
	}
	if err := EvaluateConstVars(ctx, file, emitter); err != nil {
		return err
	}
	if err := ConstSimplify(ctx, file, emitter); err != nil {
		return err
	}
	return DesugarBlocks(ctx, file)
}
