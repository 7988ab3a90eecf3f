package ast

// NodeID optionally names an AST node so that semantics passes can attach
// side-tables to it. The zero value means "not yet
// assigned"; passes.RefreshNodeIDs must be run on any cloned AST fragment
// before it is handed to a pass that keys data by NodeID, since two nodes
// sharing a NodeID would make side-table lookups depend on visitation
// order.
type NodeID uint32

// Ok reports whether id was actually assigned.
func (id NodeID) Ok() bool { return id != 0 }

// LoopID stably identifies one Loop/While/Times statement so that a
// Break/Continue survives passes that re-parent loops.
type LoopID uint32

// Ok reports whether id was actually assigned.
func (id LoopID) Ok() bool { return id != 0 }

// RegID is the integer a game engine uses to address a register. It may be
// negative.
type RegID int32

// DefID stably names a thing that can be resolved to: a user function, a
// user constant, a local variable, an instruction alias, a register alias,
// or an enum constant. DefIDs are minted by
// context.Context, not by this package, to keep one global allocator; the
// type lives here (rather than in context) purely so ast.Var/CallableName
// can reference a defined binding's DefID without an import cycle.
type DefID uint32

// Ok reports whether id refers to an actual definition.
func (id DefID) Ok() bool { return id != 0 }
