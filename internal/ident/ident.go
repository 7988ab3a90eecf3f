// Package ident implements interned identifiers, "resolvable" identifier
// uses that carry a fresh resolution id, and a gensym source for synthetic
// hidden identifiers.
package ident

import (
	"fmt"
	"regexp"

	"github.com/dolthub/swiss"
)

// Ident is an interned identifier: case-sensitive textual name, subset of
// ASCII-like identifiers. The zero value is invalid; use an Interner to
// create Idents.
type Ident uint32

// reserved keywords rejected when introduced via a mapfile.
var reserved = map[string]bool{
	"if": true, "else": true, "elif": true, "unless": true,
	"while": true, "do": true, "loop": true, "times": true,
	"goto": true, "break": true, "continue": true, "return": true,
	"var": true, "const": true, "inline": true, "int": true,
	"float": true, "string": true, "void": true, "true": true,
	"false": true, "interrupt": true,
}

// IsReserved reports whether name is a reserved keyword that mapfiles may
// not introduce as an alias.
func IsReserved(name string) bool { return reserved[name] }

var validIdentRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Valid reports whether name is a syntactically legal identifier.
func Valid(name string) bool { return validIdentRE.MatchString(name) }

// Interner maps identifier text to stable, small Ident values and back. It
// is shared by one context.Context for the lifetime of a compile/decompile
// invocation. The forward map uses a swiss-table hash map since mapfiles
// for late-game ECL formats can declare several thousand register
// aliases, and lookups dominate name resolution.
type Interner struct {
	byName *swiss.Map[string, Ident]
	names  []string // names[id-1] == text of Ident(id)
}

// NewInterner constructs an empty interner.
func NewInterner() *Interner {
	return &Interner{byName: swiss.NewMap[string, Ident](64)}
}

// Intern returns the Ident for name, creating one if this is the first use.
func (in *Interner) Intern(name string) Ident {
	if id, ok := in.byName.Get(name); ok {
		return id
	}
	in.names = append(in.names, name)
	id := Ident(len(in.names))
	in.byName.Put(name, id)
	return id
}

// Text returns the textual name of id. Panics if id is unknown, which would
// indicate a bug (an Ident from a different Interner, or the zero value).
func (in *Interner) Text(id Ident) string {
	if id == 0 || int(id) > len(in.names) {
		panic(fmt.Sprintf("ident: unknown Ident %d", id))
	}
	return in.names[id-1]
}

// ResID is a fresh identifier minted per *use site* of an identifier in
// source (not per identifier text). Resolution ids are never copied before
// name resolution runs; copying one early is a bug the pipeline guards
// against by construction (a ResIdent is only produced by
// Context.NewResIdent during parsing).
type ResID uint32

// Ok reports whether this ResID was actually assigned.
func (id ResID) Ok() bool { return id != 0 }

// ResIdent is a "resolvable identifier": an Ident plus the unique ResID of
// this particular use. Two ResIdents sharing an Ident may resolve to two
// different definitions (e.g. the same register-alias name used in two
// different languages).
type ResIdent struct {
	Name Ident
	Res  ResID
}

// Gensym produces fresh, hidden identifiers that can never collide with a
// user-written name (they carry a '%' prefix, not a legal identifier
// character, so Valid() is false for them by construction).
type Gensym struct {
	interner *Interner
	counter  uint32
}

// NewGensym constructs a generator that interns its fresh names through in.
func NewGensym(in *Interner) *Gensym {
	return &Gensym{interner: in}
}

// Fresh returns a new hidden Ident prefixed with tag, e.g. "%tmp3".
func (g *Gensym) Fresh(tag string) Ident {
	g.counter++
	return g.interner.Intern(fmt.Sprintf("%%%s%d", tag, g.counter))
}
