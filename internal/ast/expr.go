package ast

import (
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/pos"
)

// Expr is the sum of expression kinds. Literals carry their ExprType from
// construction; every other variant caches its ExprType once the type
// checker runs (internal/typecheck) and reads as ExprVoid before that,
// which is never a problem in practice
// since every pass that inspects a cached type runs strictly after
// type-checking.
type Expr interface {
	Node
	Type() ExprType
	SetType(ExprType)
	exprNode()
}

type exprBase struct {
	span pos.Span
	ty   ExprType
}

func (e *exprBase) Span() pos.Span    { return e.span }
func (e *exprBase) Type() ExprType    { return e.ty }
func (e *exprBase) SetType(t ExprType) { e.ty = t }

// LitInt is an integer literal with a radix hint.
type LitInt struct {
	exprBase
	Value int32
	Radix IntRadix
}

func NewLitInt(span pos.Span, value int32, radix IntRadix) *LitInt {
	return &LitInt{exprBase: exprBase{span: span, ty: ExprInt}, Value: value, Radix: radix}
}
func (*LitInt) exprNode() {}

// LitFloat is a floating-point literal.
type LitFloat struct {
	exprBase
	Value float32
}

func NewLitFloat(span pos.Span, value float32) *LitFloat {
	return &LitFloat{exprBase: exprBase{span: span, ty: ExprFloat}, Value: value}
}
func (*LitFloat) exprNode() {}

// LitString is a string literal, stored as the declared encoding's raw
// bytes (opaque encoded bytes with a declared fixed encoding).
type LitString struct {
	exprBase
	Value []byte
}

func NewLitString(span pos.Span, value []byte) *LitString {
	return &LitString{exprBase: exprBase{span: span, ty: ExprString}, Value: value}
}
func (*LitString) exprNode() {}

// VarExpr wraps a Var as an expression (a read of that variable).
type VarExpr struct {
	exprBase
	Var *Var
}

func NewVarExpr(v *Var) *VarExpr {
	return &VarExpr{exprBase: exprBase{span: v.Span()}, Var: v}
}
func (*VarExpr) exprNode() {}

// Ternary is `cond ? a : b`.
type Ternary struct {
	exprBase
	Cond, Then, Else Expr
}

func (*Ternary) exprNode() {}

// NewTernary constructs a Ternary spanning span.
func NewTernary(span pos.Span, cond, then, els Expr) *Ternary {
	return &Ternary{exprBase: exprBase{span: span}, Cond: cond, Then: then, Else: els}
}

// BinOp is `a op b`.
type BinOp struct {
	exprBase
	Op   BinOpKind
	A, B Expr
}

func (*BinOp) exprNode() {}

// NewBinOp constructs a BinOp spanning span.
func NewBinOp(span pos.Span, op BinOpKind, a, b Expr) *BinOp {
	return &BinOp{exprBase: exprBase{span: span}, Op: op, A: a, B: b}
}

// UnOp is `op a` (or `f(a)` for named function-shaped unary ops like sin).
type UnOp struct {
	exprBase
	Op UnOpKind
	A  Expr
}

func (*UnOp) exprNode() {}

// NewUnOp constructs a UnOp spanning span.
func NewUnOp(span pos.Span, op UnOpKind, a Expr) *UnOp {
	return &UnOp{exprBase: exprBase{span: span}, Op: op, A: a}
}

// Xcrement is `++x`/`--x`/`x++`/`x--`.
type Xcrement struct {
	exprBase
	Op  XcrementKind
	Pre bool
	Var *Var
}

func (*Xcrement) exprNode() {}

// NewXcrement constructs a Xcrement spanning span.
func NewXcrement(span pos.Span, op XcrementKind, pre bool, v *Var) *Xcrement {
	return &Xcrement{exprBase: exprBase{span: span}, Op: op, Pre: pre, Var: v}
}

// Call is a function or instruction invocation, used both as an
// expression (when it returns a value) and via ExprStmt as a statement.
type Call struct {
	exprBase
	Callable   CallableName
	PseudoArgs []PseudoArg
	Args       []Expr
}

func (*Call) exprNode() {}

// NewCall constructs a Call spanning span.
func NewCall(span pos.Span, callable CallableName, pseudoArgs []PseudoArg, args []Expr) *Call {
	return &Call{exprBase: exprBase{span: span}, Callable: callable, PseudoArgs: pseudoArgs, Args: args}
}

// DiffSwitch is `(a:b:c)`, a per-difficulty value selector with at least
// two options; a nil entry means "use the value from an adjacent easier
// difficulty".
type DiffSwitch struct {
	exprBase
	Options []Expr // nil entries permitted; len >= 2
}

func (*DiffSwitch) exprNode() {}

// NewDiffSwitch constructs a DiffSwitch spanning span.
func NewDiffSwitch(span pos.Span, options []Expr) *DiffSwitch {
	return &DiffSwitch{exprBase: exprBase{span: span}, Options: options}
}

// LabelPropKind distinguishes `offsetof(label)` from `timeof(label)`.
type LabelPropKind int

const (
	OffsetOf LabelPropKind = iota
	TimeOf
)

// LabelProperty is `offsetof(label)` or `timeof(label)`.
type LabelProperty struct {
	exprBase
	Kind  LabelPropKind
	Label ident.Ident
}

func (*LabelProperty) exprNode() {}

// NewLabelProperty constructs a LabelProperty spanning span.
func NewLabelProperty(span pos.Span, kind LabelPropKind, label ident.Ident) *LabelProperty {
	return &LabelProperty{exprBase: exprBase{span: span}, Kind: kind, Label: label}
}

// EnumConst is `EnumName.ident`, or a bare `ident` that happens to name an
// enum constant (in which case EnumName is empty until resolution fixes
// it).
type EnumConst struct {
	exprBase
	EnumName string
	Res      ident.ResIdent
}

func (*EnumConst) exprNode() {}

// NewEnumConst constructs an EnumConst spanning span.
func NewEnumConst(span pos.Span, enumName string, res ident.ResIdent) *EnumConst {
	return &EnumConst{exprBase: exprBase{span: span}, EnumName: enumName, Res: res}
}
