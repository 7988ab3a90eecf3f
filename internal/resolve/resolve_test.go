package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/format/std"
	"github.com/zero318/truth/internal/parse"
	"github.com/zero318/truth/internal/resolve"
)

// resolveSrc parses and resolves src against STD's builtin mapfile,
// mirroring how passes.CompileFile wires name resolution into the
// parse -> typecheck -> lower pipeline, but exercised in isolation.
func resolveSrc(t *testing.T, src string) *diag.RootEmitter {
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
	require.Equal(t, 0, root.Emitter.ErrorCount, "source must parse cleanly before resolution is exercised")

	r := resolve.NewResolver(ctx, lang, root.Emitter)
	_ = r.ResolveFile(file)
	return root.Emitter
}

func TestResolveUndefinedIdentifierErrors(t *testing.T) {
	emitter := resolveSrc(t, `script main {
	delay(bogus);
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
	require.Contains(t, emitter.Diagnostics[len(emitter.Diagnostics)-1].Message, "undefined identifier")
}

func TestResolveDuplicateLocalInSameScopeErrors(t *testing.T) {
	emitter := resolveSrc(t, `script main {
	int x = 1;
	int x = 2;
}
`)
	require.Greater(t, emitter.ErrorCount, 0)
}

func TestResolveFunctionsAreForwardVisible(t *testing.T) {
	emitter := resolveSrc(t, `void a() {
	b();
}

void b() {
}

script main {
}
`)
	require.Equal(t, 0, emitter.ErrorCount, "%v", emitter.Diagnostics)
}

func TestResolveConstsAreForwardVisible(t *testing.T) {
	emitter := resolveSrc(t, `const float k = other + 1.0;
const float other = 2.0;

script main {
}
`)
	require.Equal(t, 0, emitter.ErrorCount, "%v", emitter.Diagnostics)
}

func TestResolveLocalBarrierRejectsCrossingIntoNestedFunction(t *testing.T) {
	emitter := resolveSrc(t, `script main {
	int x = 1;
	void f() {
		x = 2;
	}
}
`)
	require.Greater(t, emitter.ErrorCount, 0, "a nested function must not see an enclosing block's locals")
	last := emitter.Diagnostics[len(emitter.Diagnostics)-1].Message
	require.Contains(t, last, "cannot be used here")
}

func TestResolveLocalVisibleWithinOwnScope(t *testing.T) {
	emitter := resolveSrc(t, `script main {
	int x = 1;
	x = 2;
}
`)
	require.Equal(t, 0, emitter.ErrorCount, "%v", emitter.Diagnostics)
}
