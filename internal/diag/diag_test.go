package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/pos"
)

func TestRootEmitterCountsErrorsAndBugs(t *testing.T) {
	root := NewRootEmitter()

	root.Emit(New(Warning, CategoryType, "a warning"))
	assert.False(t, root.HasErrors())
	assert.Equal(t, 0, root.ErrorCount)

	root.Emit(New(Error, CategoryType, "an error"))
	assert.True(t, root.HasErrors())
	assert.Equal(t, 1, root.ErrorCount)

	root.Emit(New(Bug, CategoryBug, "an internal bug"))
	assert.Equal(t, 2, root.ErrorCount)

	assert.Len(t, root.Diagnostics, 3)
}

func TestRootEmitterSuppressesWarningsByCategory(t *testing.T) {
	root := NewRootEmitter()
	root.SuppressedWarnings[string(CategoryResolve)] = true

	root.Emit(New(Warning, CategoryResolve, "suppressed"))
	root.Emit(New(Warning, CategoryType, "not suppressed"))

	require.Len(t, root.Diagnostics, 1)
	assert.Equal(t, "not suppressed", root.Diagnostics[0].Message)
}

func TestDiagnosticBuilders(t *testing.T) {
	span := pos.NewSpan(pos.FileID(1), 0, 3)
	d := New(Error, CategoryParse, "bad token %q", "+").
		WithPrimary(span, "here").
		WithSecondary(span, "also here").
		WithNote("a note")

	assert.Equal(t, `bad token "+"`, d.Message)
	assert.Equal(t, "here", d.Primary.Message)
	assert.Len(t, d.Extra, 1)
	assert.Equal(t, []string{"a note"}, d.Notes)
	assert.Equal(t, "error: "+`bad token "+"`, d.Error())
}

func TestAsReportedReturnsWrappedSentinel(t *testing.T) {
	root := NewRootEmitter()
	err := root.AsReported(New(Error, CategoryType, "boom"))

	assert.True(t, IsReported(err))
	assert.Equal(t, 1, root.ErrorCount)
}

func TestErrorFlag(t *testing.T) {
	root := NewRootEmitter()
	flag := NewErrorFlag(root)

	flag.Emit(New(Warning, CategoryType, "fine"))
	assert.False(t, flag.Errored())
	assert.NoError(t, flag.AsResult())

	flag.Emit(New(Error, CategoryType, "not fine"))
	assert.True(t, flag.Errored())
	assert.True(t, IsReported(flag.AsResult()))

	// Diagnostics still flow through to the wrapped emitter regardless.
	assert.Len(t, root.Diagnostics, 2)
}
