package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternerInternIsStable(t *testing.T) {
	in := NewInterner()

	a := in.Intern("foo")
	b := in.Intern("bar")
	c := in.Intern("foo")

	assert.Equal(t, a, c, "interning the same text twice should return the same Ident")
	assert.NotEqual(t, a, b, "distinct text should intern to distinct Idents")
	assert.Equal(t, "foo", in.Text(a))
	assert.Equal(t, "bar", in.Text(b))
}

func TestInternerTextPanicsOnUnknownIdent(t *testing.T) {
	in := NewInterner()
	in.Intern("only")

	assert.Panics(t, func() { in.Text(0) }, "the zero Ident is never valid")
	assert.Panics(t, func() { in.Text(99) }, "an Ident never interned by this Interner is a bug")
}

func TestReservedKeywords(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"if", true},
		{"goto", true},
		{"interrupt", true},
		{"mySprite", false},
		{"frame", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReserved(tt.name))
		})
	}
}

func TestValidIdent(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"sprite0", true},
		{"_hidden", true},
		{"0sprite", false},
		{"has-dash", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.name))
		})
	}
}

func TestGensymFreshIsUnique(t *testing.T) {
	in := NewInterner()
	g := NewGensym(in)

	a := g.Fresh("tmp")
	b := g.Fresh("tmp")

	assert.NotEqual(t, a, b, "two Fresh calls with the same tag must not collide")
	assert.NotEqual(t, in.Text(a), in.Text(b))
}
