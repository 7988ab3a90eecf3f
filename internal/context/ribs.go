package context

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/ident"
)

// RibKind enumerates the kinds of lexical scope name resolution can push.
type RibKind int

const (
	// DummyRoot is the permanent sentinel at the base of every namespace's
	// rib stack.
	DummyRoot RibKind = iota
	// Items holds consts and user funcs declared in one nested block,
	// forward-visible throughout that block.
	Items
	// Locals holds local declarations of one block, populated in
	// statement order as they are visited.
	Locals
	// Params holds one function's parameters.
	Params
	// LocalBarrier marks a function/const boundary: a match found in a
	// Locals/Params rib on the far side of this barrier is an error, not a
	// successful resolution ("cannot use local from outside function/const").
	LocalBarrier
	// Mapfile holds registers and instruction aliases for one language,
	// loaded once at startup.
	Mapfile
	// EnumConsts holds named enumeration members.
	EnumConsts
	// BuiltinConsts holds built-in constants such as INF, NAN.
	BuiltinConsts
)

// Rib is one lexical scope in one namespace.
type Rib struct {
	Kind RibKind
	// Language is set for Mapfile ribs: a match here is only visible to
	// use sites expecting this language.
	Language ast.Language
	// OfWhat describes what a LocalBarrier bounds, e.g. "function `foo`",
	// for the cross-barrier diagnostic's message.
	OfWhat string

	entries map[ident.Ident]ast.DefID
}

// Bind adds name -> def to this rib. Returns false if name is already
// bound in this exact rib (the two-pass block algorithm relies on this
// to detect "no two locals in the same rib share a name").
func (r *Rib) Bind(name ident.Ident, def ast.DefID) bool {
	if r.entries == nil {
		r.entries = map[ident.Ident]ast.DefID{}
	}
	if _, exists := r.entries[name]; exists {
		return false
	}
	r.entries[name] = def
	return true
}

// Lookup searches only this rib (not its neighbors).
func (r *Rib) Lookup(name ident.Ident) (ast.DefID, bool) {
	id, ok := r.entries[name]
	return id, ok
}

// Namespace is one of the two namespaces (Vars, Funcs), each maintaining
// its own rib stack.
type Namespace struct {
	stack []*Rib
}

func newNamespace() *Namespace {
	return &Namespace{}
}

// Push enters a new lexical scope.
func (n *Namespace) Push(r *Rib) { n.stack = append(n.stack, r) }

// Pop leaves the innermost lexical scope.
func (n *Namespace) Pop() {
	if len(n.stack) == 0 {
		panic("context: bug: popped an empty rib stack")
	}
	n.stack = n.stack[:len(n.stack)-1]
}

// Top returns the innermost rib.
func (n *Namespace) Top() *Rib {
	if len(n.stack) == 0 {
		return nil
	}
	return n.stack[len(n.stack)-1]
}

// LookupResult is what Namespace.Resolve found.
type LookupResult struct {
	Def ast.DefID
	// Rib is the rib the match was found in, so callers can apply
	// rib-kind-specific rules (LocalBarrier crossing, Mapfile language
	// filtering).
	Rib *Rib
	// CrossedBarriers counts how many LocalBarrier ribs were walked over
	// to reach this match, from innermost outward.
	CrossedBarriers int
}

// Resolve walks the rib stack from top (innermost) to bottom (outermost),
// returning every rib that binds name, innermost first, along with how
// many LocalBarrier ribs were crossed to reach each one. This raw search
// is intentionally unfiltered; internal/resolve applies the
// barrier-crossing and mapfile-language rules on top of it, since those
// rules require context the namespace alone does not have (e.g. "which
// language does the use site expect").
func (n *Namespace) Resolve(name ident.Ident) []LookupResult {
	var results []LookupResult
	crossed := 0
	for i := len(n.stack) - 1; i >= 0; i-- {
		rib := n.stack[i]
		if rib.Kind == LocalBarrier {
			crossed++
			continue
		}
		if def, ok := rib.Lookup(name); ok {
			results = append(results, LookupResult{Def: def, Rib: rib, CrossedBarriers: crossed})
		}
	}
	return results
}
