// Package context implements the mutable global Context: the DefId-keyed
// definitions table, the resolution map, a const-value cache, the initial
// rib set populated from mapfiles, and a node-id generator. A Context
// serves one compile or decompile invocation; the state that outlives it
// (file registry, diagnostic sink) lives in Root.
//
// Grounded on original_source/src/context/mod.rs (the CompilerContext /
// Scope split, reproduced here as Context / Root) and
// Consensys-go-corset/pkg/corset/scope.go + environment.go for the Go
// idiom of a mutable struct holding maps and a parent-linked rib stack,
// passed by pointer under a single-threaded-per-invocation discipline
// rather than Rust's borrow-checked `&mut`.
package context

import (
	"fmt"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

// Root holds state that must outlive any single compile/decompile call:
// the file registry and the diagnostic sink. A Root is constructed once per process (or per CLI invocation) and
// shared by every Context built from it.
type Root struct {
	Files   *pos.Files
	Emitter *diag.RootEmitter
}

// NewRoot constructs an empty Root.
func NewRoot() *Root {
	return &Root{Files: pos.NewFiles(), Emitter: diag.NewRootEmitter()}
}

// Definition is the payload a DefId can point to: one of a user function, a user constant, a local variable, an
// instruction alias, a register alias, or an enum constant.
type Definition interface {
	definitionNode()
}

// UserFuncDef names a user-defined function or `const`/`inline` function.
type UserFuncDef struct {
	Item *ast.FuncItem
}

func (*UserFuncDef) definitionNode() {}

// UserConstDef names a top-level `const` variable; its folded value lives
// in Context.Consts once evaluate_const_vars has run.
type UserConstDef struct {
	Type ScalarTypeOrUntyped
	Expr ast.Expr
}

func (*UserConstDef) definitionNode() {}

// ScalarTypeOrUntyped lets a const def's declared type be absent (inferred
// from its initializer).
type ScalarTypeOrUntyped struct {
	Type    ast.ScalarType
	Untyped bool
}

// LocalDef names a local variable declared with `var`/`int`/`float`/
// `string` inside a function or script body.
type LocalDef struct {
	Type     ast.VarType
	DeclSpan pos.Span
}

func (*LocalDef) definitionNode() {}

// RegisterAliasDef names a mapfile `!gvar_names` alias for a raw register.
type RegisterAliasDef struct {
	Reg      ast.RegID
	Type     ast.ScalarType
	Language ast.Language
}

func (*RegisterAliasDef) definitionNode() {}

// InstructionAliasDef names a mapfile `!ins_names` alias for an opcode.
type InstructionAliasDef struct {
	Opcode   int
	Language ast.Language
}

func (*InstructionAliasDef) definitionNode() {}

// EnumConstantDef names one member of a built-in enumeration.
type EnumConstantDef struct {
	Enum  string
	Ident string
	Value int64
}

func (*EnumConstantDef) definitionNode() {}

// Defs owns every Definition, keyed by a monotonically-increasing DefID
// (zero reserved for "unset").
type Defs struct {
	table   map[ast.DefID]Definition
	nextID  ast.DefID
}

func newDefs() *Defs {
	return &Defs{table: map[ast.DefID]Definition{}}
}

func (d *Defs) alloc(def Definition) ast.DefID {
	d.nextID++
	id := d.nextID
	d.table[id] = def
	return id
}

// Get returns the Definition for id, or nil if unknown.
func (d *Defs) Get(id ast.DefID) Definition { return d.table[id] }

// ConstValue is a folded constant value, tagged with its scalar type.
type ConstValue struct {
	Type  ast.ScalarType
	Int   int32
	Float float32
	Str   []byte
}

// Context is the per-invocation mutable global state threaded through
// every compiler pass.
type Context struct {
	Root     *Root
	Interner *ident.Interner
	Gensym   *ident.Gensym
	Defs     *Defs

	// resolutions maps each ResID to the DefID it resolves to. Append-only:
	// writes never replace an existing resolution; attempting to do so is an internal bug, not a user error.
	resolutions map[ident.ResID]ast.DefID
	nextResID   ident.ResID

	// Consts caches folded values for const definitions, populated by
	// internal/consteval.
	Consts map[ast.DefID]ConstValue

	Vars  *Namespace
	Funcs *Namespace

	// EnumMembers maps an unqualified member ident to every enum DefID
	// that declares a member of that name, supporting the ambiguity check:
	// if the ident belongs to exactly one enum, that one is used;
	// otherwise it is ambiguous.
	EnumMembers map[ident.Ident][]ast.DefID

	// EnumByName indexes a qualified `EnumName.ident` reference directly,
	// bypassing the rib stack entirely.
	EnumByName map[string]map[ident.Ident]ast.DefID

	// Mapfiles holds the merged mapfile loaded for each language, keyed by
	// ast.Language. Populated by LoadMapfile; consulted directly by
	// internal/typecheck when type-checking a raw `ins_N(...)` call and by
	// internal/lower/internal/raise when resolving an intrinsic's ABI.
	Mapfiles map[ast.Language]*mapfile.Mapfile

	nextNodeID ast.NodeID
	nextLoopID ast.LoopID
}

// NewContext constructs a Context rooted at root, with the DummyRoot
// sentinel rib pushed onto both namespaces.
func NewContext(root *Root) *Context {
	c := &Context{
		Root:        root,
		Interner:    ident.NewInterner(),
		Defs:        newDefs(),
		resolutions: map[ident.ResID]ast.DefID{},
		Consts:      map[ast.DefID]ConstValue{},
		Vars:        newNamespace(),
		Funcs:       newNamespace(),
		EnumMembers: map[ident.Ident][]ast.DefID{},
		EnumByName:  map[string]map[ident.Ident]ast.DefID{},
		Mapfiles:    map[ast.Language]*mapfile.Mapfile{},
	}
	c.Gensym = ident.NewGensym(c.Interner)
	c.Vars.Push(&Rib{Kind: DummyRoot})
	c.Funcs.Push(&Rib{Kind: DummyRoot})
	return c
}

// NewResIdent mints a fresh, unresolved resolvable identifier for name.
// A resolvable identifier's resolution id is fresh per use site; this is
// the only place ResIdents are minted, precisely so that copying one
// before resolution remains structurally impossible to do by accident
// (copy the struct, not call this method twice).
func (c *Context) NewResIdent(name ident.Ident) ident.ResIdent {
	c.nextResID++
	return ident.ResIdent{Name: name, Res: c.nextResID}
}

// Resolve records that res resolves to def. Calling this twice for the
// same res (with the resolution map already populated) is a bug.
func (c *Context) Resolve(res ident.ResID, def ast.DefID) {
	if !res.Ok() {
		panic("context: bug: attempted to resolve a zero ResID")
	}
	if existing, ok := c.resolutions[res]; ok {
		panic(fmt.Sprintf("context: bug: ResID %d already resolved to DefID %d (attempted re-resolution to %d)", res, existing, def))
	}
	c.resolutions[res] = def
}

// Resolution returns the DefID res was resolved to, if any.
func (c *Context) Resolution(res ident.ResID) (ast.DefID, bool) {
	id, ok := c.resolutions[res]
	return id, ok
}

// NewNodeID mints a fresh NodeID. Modeled on interior mutability: a
// single counter on an otherwise widely-shared Context.
func (c *Context) NewNodeID() ast.NodeID {
	c.nextNodeID++
	return c.nextNodeID
}

// NewLoopID mints a fresh LoopID.
func (c *Context) NewLoopID() ast.LoopID {
	c.nextLoopID++
	return c.nextLoopID
}

// DefineUserFunc allocates a DefID for a user function definition.
func (c *Context) DefineUserFunc(item *ast.FuncItem) ast.DefID {
	return c.Defs.alloc(&UserFuncDef{Item: item})
}

// DefineUserConst allocates a DefID for a top-level const.
func (c *Context) DefineUserConst(ty ScalarTypeOrUntyped, expr ast.Expr) ast.DefID {
	return c.Defs.alloc(&UserConstDef{Type: ty, Expr: expr})
}

// DefineLocal allocates a DefID for a local variable.
func (c *Context) DefineLocal(ty ast.VarType, declSpan pos.Span) ast.DefID {
	return c.Defs.alloc(&LocalDef{Type: ty, DeclSpan: declSpan})
}

// DefineRegisterAlias allocates a DefID for a mapfile register alias.
func (c *Context) DefineRegisterAlias(reg ast.RegID, ty ast.ScalarType, lang ast.Language) ast.DefID {
	return c.Defs.alloc(&RegisterAliasDef{Reg: reg, Type: ty, Language: lang})
}

// DefineInstructionAlias allocates a DefID for a mapfile instruction alias.
func (c *Context) DefineInstructionAlias(opcode int, lang ast.Language) ast.DefID {
	return c.Defs.alloc(&InstructionAliasDef{Opcode: opcode, Language: lang})
}

// DefineEnumConstant allocates a DefID for one enum member and records it
// under memberName in EnumMembers for unqualified-ident ambiguity checks.
func (c *Context) DefineEnumConstant(enum, name string, value int64, memberName ident.Ident) ast.DefID {
	id := c.Defs.alloc(&EnumConstantDef{Enum: enum, Ident: name, Value: value})
	c.EnumMembers[memberName] = append(c.EnumMembers[memberName], id)
	if c.EnumByName[enum] == nil {
		c.EnumByName[enum] = map[ident.Ident]ast.DefID{}
	}
	c.EnumByName[enum][memberName] = id
	return id
}
