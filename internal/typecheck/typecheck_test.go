package typecheck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/parse"
	"github.com/zero318/truth/internal/resolve"
	"github.com/zero318/truth/internal/typecheck"
)

// checkSrc parses, resolves, and type-checks src against STD's builtin
// mapfile, the same three pipeline stages passes.CompileFile runs before
// const folding and lowering.
func checkSrc(t *testing.T, src string) *diag.RootEmitter {
	t.Helper()
	adapter := std.Adapter{}
	lang := adapter.Language("10")

	root := context.NewRoot()
	fileID := root.Files.Add("<test>", []byte(src))
	ctx := context.NewContext(root)

	mf, err := adapter.BuiltinMapfile("10")
	require.NoError(t, err)
	ctx.LoadMapfile(mf, lang)

	file, err := parse.ParseFile(ctx, root.Files.Get(fileID), fileID, root.Emitter)
	require.NoError(t, err)
	require.Equal(t, 0, root.Emitter.ErrorCount)

	require.NoError(t, resolve.NewResolver(ctx, lang, root.Emitter).ResolveFile(file))
	require.Equal(t, 0, root.Emitter.ErrorCount, "%v", root.Emitter.Diagnostics)

	_ = typecheck.NewChecker(ctx, lang, root.Emitter).CheckFile(file)
	return root.Emitter
}

func TestCheckCallRejectsIntWhereFloatExpected(t *testing.T) {
	// delay's STD mapfile signature is a single float ('f'); type
	// checking performs no implicit int -> float coercion.
	emitter := checkSrc(t, `script main {
	delay(3);
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
}

func TestCheckCallAcceptsMatchingFloatArgument(t *testing.T) {
	emitter := checkSrc(t, `script main {
	delay(3.0);
}
`)
	require.Equal(t, 0, emitter.ErrorCount, "%v", emitter.Diagnostics)
}

func TestCheckCallRejectsWrongArgCount(t *testing.T) {
	emitter := checkSrc(t, `script main {
	delay(1.0, 2.0);
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
}

func TestCheckConstDeclarationTypeMismatchErrors(t *testing.T) {
	emitter := checkSrc(t, `const int k = 1.5;

script main {
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
}

func TestCheckConstDeclarationMatchingTypeOK(t *testing.T) {
	emitter := checkSrc(t, `const float k = 1.5;

script main {
}
`)
	require.Equal(t, 0, emitter.ErrorCount, "%v", emitter.Diagnostics)
}

func TestCheckFuncWithoutValueReturnOnEveryPathWarns(t *testing.T) {
	emitter := checkSrc(t, `int f() {
	int x = 1;
}

script main {
}
`)
	var sawWarning bool
	for _, d := range emitter.Diagnostics {
		if d.Severity == diag.Warning {
			sawWarning = true
		}
	}
	require.True(t, sawWarning, "a non-void function with no return on any path must warn")
	require.Equal(t, 0, emitter.ErrorCount)
}

func TestCheckBinOpOperandTypeMismatchErrors(t *testing.T) {
	emitter := checkSrc(t, `script main {
	int x = 1;
	float y = 1.0;
	int z = x + y;
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
}

func TestCheckAssignTypeMismatchErrors(t *testing.T) {
	emitter := checkSrc(t, `script main {
	int x = 1;
	x = 1.5;
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
}
