package passes

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
)

// ValidateDifficulty checks every `{EN}:`-style difficulty label against
// lang's mapfile-declared flag letters, reporting an error for any letter the mapfile
// never declared.
func ValidateDifficulty(ctx *context.Context, lang ast.Language, file *ast.ScriptFile, emitter diag.Emitter) error {
	flag := diag.NewErrorFlag(emitter)
	var flags map[byte]string
	if mf := ctx.Mapfiles[lang]; mf != nil {
		flags = mf.DifficultyFlags
	}
	v := &difficultyVisitor{flags: flags, emit: flag}
	ast.Walk(file, v)
	return flag.AsResult()
}

type difficultyVisitor struct {
	ast.BaseVisitor
	flags map[byte]string
	emit  *diag.ErrorFlag
}

func (v *difficultyVisitor) VisitStmt(stmt *ast.Stmt) {
	if stmt.DiffLabel == nil {
		return
	}
	for i := 0; i < len(stmt.DiffLabel.Letters); i++ {
		c := stmt.DiffLabel.Letters[i]
		if _, ok := v.flags[c]; !ok {
			v.emit.Emit(diag.New(diag.Error, diag.CategoryType,
				"unknown difficulty flag %q", string(c)).
				WithPrimary(stmt.DiffLabel.LabelSpan, "not declared by this format's mapfile"))
		}
	}
}
