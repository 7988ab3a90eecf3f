// Package ast implements the typed abstract syntax tree, plus the dual
// read/mutating visitor protocol.
//
// Every node kind is represented as either a concrete struct (for a
// single shape) or a small closed interface with one struct per variant
// (for a sum type) — the same "enumerable interface, not an open class
// hierarchy" style Consensys-go-corset's pkg/corset/ast.go uses for its
// own Declaration/Symbol/Expr sums.
package ast

import (
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/pos"
)

// Language names one script-format family's instruction set + register
// bank for one specific game release, e.g.
// {Format: "anm", Game: "10"}. Mapfile ribs and register/instruction alias
// lookups are scoped per Language.
type Language struct {
	Format string
	Game   string
}

func (l Language) String() string { return l.Format + l.Game }

// Node is implemented by every AST element that carries a source span.
type Node interface {
	Span() pos.Span
}

// ScriptFile is the root of one parsed source file.
type ScriptFile struct {
	SourceSpan   pos.Span
	Mapfiles     []string
	ImageSources []string
	Items        []Item
}

func (f *ScriptFile) Span() pos.Span { return f.SourceSpan }

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// Item is a top-level (or block-nested) declaration: a user function, a
// script/timeline entry point, a meta block, or a const variable.
type Item interface {
	Node
	itemNode()
}

// FuncQualifier distinguishes an ordinary user function from `const` and
// `inline` functions.
type FuncQualifier int

const (
	FuncNone FuncQualifier = iota
	FuncConst
	FuncInline
)

// FuncParam is one parameter of a FuncItem.
type FuncParam struct {
	ParamSpan pos.Span
	Type      VarType
	Name      ident.ResIdent
}

// FuncItem is a user function definition.
type FuncItem struct {
	ItemSpan  pos.Span
	Qualifier FuncQualifier
	Return    ExprType
	Name      ident.ResIdent
	Params    []FuncParam
	Body      *Block // nil for a forward declaration / signature-only entry
}

func (i *FuncItem) Span() pos.Span { return i.ItemSpan }
func (*FuncItem) itemNode()        {}

// ScriptKind distinguishes a plain script/animation entry point from an
// ECL-only timeline variant.
type ScriptKind int

const (
	ScriptBlock ScriptKind = iota
	TimelineBlock
)

// ScriptItem is an animation/stage entry point, or (when Kind ==
// TimelineBlock) an ECL timeline.
type ScriptItem struct {
	ItemSpan pos.Span
	Kind     ScriptKind
	NumberID *int // optional explicit numeric id
	Name     string
	Body     *Block
}

func (i *ScriptItem) Span() pos.Span { return i.ItemSpan }
func (*ScriptItem) itemNode()        {}

// MetaItem is a `meta { ... }` block describing format-specific file
// header data.
type MetaItem struct {
	ItemSpan pos.Span
	Keyword  string // e.g. "meta", or a format-specific keyword
	Fields   []MetaField
}

func (i *MetaItem) Span() pos.Span { return i.ItemSpan }
func (*MetaItem) itemNode()        {}

// MetaField is one `name: value` entry of a MetaItem.
type MetaField struct {
	FieldSpan pos.Span
	Name      string
	Value     Expr
}

// ConstItem is a top-level `const` variable declaration.
type ConstItem struct {
	ItemSpan pos.Span
	Type     ScalarType
	Name     ident.ResIdent
	Value    Expr
}

func (i *ConstItem) Span() pos.Span { return i.ItemSpan }
func (*ConstItem) itemNode()        {}

// ---------------------------------------------------------------------------
// Block / Stmt
// ---------------------------------------------------------------------------

// Block is a non-empty statement sequence. Its first and last statements
// are always virtual NoInstruction nodes, giving the
// block a well-defined start/end time even when otherwise empty; EmptyBlock
// constructs exactly that minimal two-statement block.
type Block struct {
	BlockSpan pos.Span
	Stmts     []*Stmt
}

func (b *Block) Span() pos.Span { return b.BlockSpan }

// EmptyBlock constructs the minimal well-formed block: two virtual
// NoInstruction statements and nothing else.
func EmptyBlock(span pos.Span) *Block {
	return &Block{
		BlockSpan: span,
		Stmts: []*Stmt{
			{StmtSpan: span, Kind: &NoInstruction{}},
			{StmtSpan: span, Kind: &NoInstruction{}},
		},
	}
}

// Stmt wraps one statement kind with its NodeID and optional difficulty
// label.
type Stmt struct {
	StmtSpan pos.Span
	ID       NodeID
	// DiffLabel holds the raw difficulty-letter mask text (e.g. "EN") when
	// this statement is prefixed with a `{EN}:` difficulty label; nil
	// otherwise. Interpreted by passes.ValidateDifficulty and the lowerer.
	DiffLabel *DiffLabel
	Kind      StmtKind
}

func (s *Stmt) Span() pos.Span { return s.StmtSpan }

// DiffLabel is a per-statement difficulty-flag filter, e.g. `{EN}:`.
type DiffLabel struct {
	LabelSpan pos.Span
	Letters   string
}

// StmtKind is the sum of statement shapes.
type StmtKind interface {
	stmtNode()
}

// ItemDefStmt embeds an Item (e.g. a nested const or function) inline in a
// block's statement list.
type ItemDefStmt struct{ Item Item }

func (*ItemDefStmt) stmtNode() {}

// JumpStmt is `goto label @ time;` (time optional).
type JumpStmt struct {
	Destination ident.Ident
	Time        Expr // nil if time omitted (implicitly timeof(destination))
}

func (*JumpStmt) stmtNode() {}

// BreakStmt is `break;` optionally tied to a specific enclosing loop.
type BreakStmt struct{ Loop LoopID }

func (*BreakStmt) stmtNode() {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{ Loop LoopID }

func (*ContinueStmt) stmtNode() {}

// CondJumpStmt is `if (cond) goto label @ time;` (pre-desugaring form; the
// lowerer classifies Cond into CountJmp/CondJmp/CondJmp2A+B/split forms).
type CondJumpStmt struct {
	Unless      bool
	Cond        Expr
	Destination ident.Ident
	Time        Expr
}

func (*CondJumpStmt) stmtNode() {}

// ReturnStmt is `return;` or `return value;`.
type ReturnStmt struct{ Value Expr }

func (*ReturnStmt) stmtNode() {}

// CondArm is one `if`/`elif` arm of a CondChainStmt.
type CondArm struct {
	Cond Expr
	Body *Block
}

// CondChainStmt is an if/elif/else chain.
type CondChainStmt struct {
	Arms []CondArm
	Else *Block // nil if no trailing `else`
}

func (*CondChainStmt) stmtNode() {}

// LoopStmt is a bare `loop { ... }`, which repeats forever absent a break.
type LoopStmt struct {
	Loop LoopID
	Body *Block
}

func (*LoopStmt) stmtNode() {}

// WhileStmt is `while (cond) { ... }` or, when Do is true, `do { ... }
// while (cond);`.
type WhileStmt struct {
	Do   bool
	Loop LoopID
	Cond Expr
	Body *Block
}

func (*WhileStmt) stmtNode() {}

// TimesStmt is `times(count) { ... }`, optionally naming an explicit
// clobber variable for the hidden counter.
type TimesStmt struct {
	Loop    LoopID
	Clobber *Var // nil if the compiler should allocate a hidden counter
	Count   Expr
	Body    *Block
}

func (*TimesStmt) stmtNode() {}

// ExprStmt is a bare expression used as a statement (almost always a Call).
type ExprStmt struct{ Expr Expr }

func (*ExprStmt) stmtNode() {}

// BlockStmt nests an anonymous block directly within another block.
type BlockStmt struct{ Body *Block }

func (*BlockStmt) stmtNode() {}

// AssignStmt is `v = expr;` or `v op= expr;`.
type AssignStmt struct {
	Var   *Var
	Op    AssignOpKind
	Value Expr
}

func (*AssignStmt) stmtNode() {}

// DeclEntry is one `name` or `name = init` clause of a DeclarationStmt.
type DeclEntry struct {
	Name ident.ResIdent
	Init Expr // nil if uninitialized
}

// DeclarationStmt is `TY a, b = init, ...;` (local variable declaration).
// Illegal in register-less formats.
type DeclarationStmt struct {
	Type    VarType
	Entries []DeclEntry
}

func (*DeclarationStmt) stmtNode() {}

// AsyncKind distinguishes a plain call from an `async` call for
// CallSubStmt (ECL `async`/`@` subroutine calls).
type AsyncKind int

const (
	AsyncNone AsyncKind = iota
	AsyncAsync
)

// CallSubStmt is an ECL-style `@sub(args);` or `async sub(args);` call.
type CallSubStmt struct {
	AtSymbol bool
	Async    AsyncKind
	Func     CallableName
	Args     []Expr
}

func (*CallSubStmt) stmtNode() {}

// InterruptLabelStmt is `interrupt[n]:`.
type InterruptLabelStmt struct{ N int }

func (*InterruptLabelStmt) stmtNode() {}

// TimeLabelStmt is an absolute `n:` or relative `+n:` time label.
type TimeLabelStmt struct {
	Relative bool
	N        int
}

func (*TimeLabelStmt) stmtNode() {}

// PlainLabelStmt is a bare `l:` goto target.
type PlainLabelStmt struct{ Name ident.Ident }

func (*PlainLabelStmt) stmtNode() {}

// ScopeEndStmt is a virtual marker inserted by the compiler at the end of a
// local variable's lexical lifetime.
type ScopeEndStmt struct{ Def DefID }

func (*ScopeEndStmt) stmtNode() {}

// NoInstruction is a virtual statement that preserves the current time at a
// block boundary without emitting any instruction.
type NoInstruction struct{}

func (*NoInstruction) stmtNode() {}

// ---------------------------------------------------------------------------
// Var / CallableName / PseudoArg
// ---------------------------------------------------------------------------

// Var is a variable reference: an optional read-type sigil plus a name.
type Var struct {
	VarSpan pos.Span
	// Sigil is ReadInt or ReadFloat when HasSig is true, and is
	// meaningless otherwise. A sigil overrides the read type at this use
	// site.
	Sigil   UnOpKind
	HasSig  bool
	Name    VarName
}

func (v *Var) Span() pos.Span { return v.VarSpan }

// VarName is either a resolvable identifier (local/const/alias, resolved
// by name resolution) or a direct numeric register reference.
type VarName interface {
	varNameNode()
}

// NormalVarName is `name`, resolved via the rib stack.
type NormalVarName struct {
	Res             ident.ResIdent
	LanguageIfReg   *Language // filled in by passes.AssignLanguages
}

func (*NormalVarName) varNameNode() {}

// RegVarName is `REG[n]`, a direct register reference bypassing name
// resolution entirely.
type RegVarName struct {
	Reg      RegID
	Language *Language
}

func (*RegVarName) varNameNode() {}

// CallableName names the callee of a Call/CallSub: either a resolvable
// identifier (user function or instruction alias) or a raw numeric opcode.
type CallableName interface {
	callableNameNode()
}

// NormalCallableName is `name(...)`.
type NormalCallableName struct {
	Res           ident.ResIdent
	LanguageIfIns *Language
}

func (*NormalCallableName) callableNameNode() {}

// InsCallableName is `ins_N(...)`.
type InsCallableName struct {
	Opcode   int
	Language *Language
}

func (*InsCallableName) callableNameNode() {}

// PseudoArgKind enumerates the `@kind=value` prefixes a Call may carry.
type PseudoArgKind int

const (
	PseudoMask PseudoArgKind = iota
	PseudoPop
	PseudoBlob
	PseudoArg0
)

func (k PseudoArgKind) String() string {
	switch k {
	case PseudoMask:
		return "mask"
	case PseudoPop:
		return "pop"
	case PseudoBlob:
		return "blob"
	case PseudoArg0:
		return "arg0"
	default:
		return "?"
	}
}

// PseudoArg is one `@kind=value` prefix on a call's argument list.
type PseudoArg struct {
	ArgSpan pos.Span
	Kind    PseudoArgKind
	Value   Expr
}
