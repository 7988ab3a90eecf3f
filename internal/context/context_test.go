package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

func TestRibBindRejectsDuplicateName(t *testing.T) {
	r := &Rib{Kind: Locals}
	assert.True(t, r.Bind(1, 10))
	assert.False(t, r.Bind(1, 20), "the same name cannot bind twice in one rib")

	id, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, ast.DefID(10), id)
}

func TestNamespaceResolveReportsCrossedBarriers(t *testing.T) {
	n := newNamespace()
	outer := &Rib{Kind: Locals}
	outer.Bind(1, 100)
	n.Push(outer)
	n.Push(&Rib{Kind: LocalBarrier})
	inner := &Rib{Kind: Locals}
	n.Push(inner)

	results := n.Resolve(1)
	require.Len(t, results, 1)
	assert.Equal(t, ast.DefID(100), results[0].Def)
	assert.Equal(t, 1, results[0].CrossedBarriers)
}

func TestNamespaceResolveReturnsInnermostFirst(t *testing.T) {
	n := newNamespace()
	outer := &Rib{Kind: Locals}
	outer.Bind(1, 1)
	n.Push(outer)
	inner := &Rib{Kind: Locals}
	inner.Bind(1, 2)
	n.Push(inner)

	results := n.Resolve(1)
	require.Len(t, results, 2)
	assert.Equal(t, ast.DefID(2), results[0].Def, "innermost rib must be searched first")
	assert.Equal(t, ast.DefID(1), results[1].Def)
}

func TestNamespacePopPanicsWhenEmpty(t *testing.T) {
	n := newNamespace()
	assert.Panics(t, func() { n.Pop() })
}

func TestContextResolveTwiceForSameResIDPanics(t *testing.T) {
	ctx := NewContext(NewRoot())
	res := ctx.NewResIdent(1)
	ctx.Resolve(res.Res, 1)
	assert.Panics(t, func() { ctx.Resolve(res.Res, 2) })
}

func TestContextResolveZeroResIDPanics(t *testing.T) {
	ctx := NewContext(NewRoot())
	assert.Panics(t, func() { ctx.Resolve(0, 1) })
}

func TestContextNewResIdentMintsDistinctResIDs(t *testing.T) {
	ctx := NewContext(NewRoot())
	a := ctx.NewResIdent(1)
	b := ctx.NewResIdent(1)
	assert.NotEqual(t, a.Res, b.Res)
}

func TestContextNewNodeIDAndLoopIDAreMonotonic(t *testing.T) {
	ctx := NewContext(NewRoot())
	a := ctx.NewNodeID()
	b := ctx.NewNodeID()
	assert.NotEqual(t, a, b)

	l1 := ctx.NewLoopID()
	l2 := ctx.NewLoopID()
	assert.NotEqual(t, l1, l2)
}

func TestDefsGetUnknownIDReturnsNil(t *testing.T) {
	d := newDefs()
	assert.Nil(t, d.Get(999))
}

func TestDefineLocalRoundTrip(t *testing.T) {
	ctx := NewContext(NewRoot())
	span := pos.NewSpan(pos.FileID(1), 0, 3)
	id := ctx.DefineLocal(ast.VarInt, span)

	def, ok := ctx.Defs.Get(id).(*LocalDef)
	require.True(t, ok)
	assert.Equal(t, span, def.DeclSpan)
}

func TestDefineEnumConstantIndexesByMemberAndQualifiedName(t *testing.T) {
	ctx := NewContext(NewRoot())
	id := ctx.DefineEnumConstant("Difficulty", "Easy", 0, 42)

	assert.Equal(t, []ast.DefID{id}, ctx.EnumMembers[42])
	assert.Equal(t, id, ctx.EnumByName["Difficulty"][42])
}

func TestLoadMapfileBindsRegistersAndInstructionsIntoMapfileRibs(t *testing.T) {
	ctx := NewContext(NewRoot())
	lang := ast.Language{Format: "std", Game: "10"}
	mf := &mapfile.Mapfile{
		GvarNames: map[int]string{10: "posx"},
		GvarTypes: map[int]ast.ScalarType{10: ast.Float},
		InsNames:  map[int]string{0: "delete"},
	}
	ctx.LoadMapfile(mf, lang)

	posx := ctx.Interner.Intern("posx")
	results := ctx.Vars.Resolve(posx)
	require.Len(t, results, 1)
	def, ok := ctx.Defs.Get(results[0].Def).(*RegisterAliasDef)
	require.True(t, ok)
	assert.Equal(t, ast.RegID(10), def.Reg)
	assert.Equal(t, ast.Float, def.Type)

	del := ctx.Interner.Intern("delete")
	fnResults := ctx.Funcs.Resolve(del)
	require.Len(t, fnResults, 1)
}

func TestLoadMapfileMergesSecondCallForSameLanguage(t *testing.T) {
	ctx := NewContext(NewRoot())
	lang := ast.Language{Format: "std", Game: "10"}
	ctx.LoadMapfile(&mapfile.Mapfile{InsNames: map[int]string{0: "original"}}, lang)
	ctx.LoadMapfile(&mapfile.Mapfile{InsNames: map[int]string{0: "renamed"}}, lang)

	assert.Equal(t, "renamed", ctx.Mapfiles[lang].InsNames[0])
}
