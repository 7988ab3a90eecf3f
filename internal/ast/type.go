package ast

// ScalarType is one of the three data types a register, constant or
// expression can ultimately hold.
type ScalarType int

const (
	Int ScalarType = iota
	Float
	String
)

func (t ScalarType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	default:
		return "?"
	}
}

// VarType additionally allows Untyped, legal only for a `var` local whose
// type must be inferred from its initializer.
type VarType int

const (
	VarUntyped VarType = iota
	VarInt
	VarFloat
	VarString
)

// Scalar converts a resolved VarType to its ScalarType, panicking if still
// Untyped (callers must resolve Untyped vars before calling this).
func (t VarType) Scalar() ScalarType {
	switch t {
	case VarInt:
		return Int
	case VarFloat:
		return Float
	case VarString:
		return String
	default:
		panic("ast: VarType is still Untyped")
	}
}

// FromScalar lifts a ScalarType to the corresponding concrete VarType.
func FromScalar(t ScalarType) VarType {
	switch t {
	case Int:
		return VarInt
	case Float:
		return VarFloat
	case String:
		return VarString
	default:
		panic("ast: unknown ScalarType")
	}
}

func (t VarType) String() string {
	switch t {
	case VarUntyped:
		return "var"
	case VarInt:
		return "int"
	case VarFloat:
		return "float"
	case VarString:
		return "string"
	default:
		return "?"
	}
}

// ExprType additionally allows Void, for calls to functions/instructions
// with no return value.
type ExprType int

const (
	ExprVoid ExprType = iota
	ExprInt
	ExprFloat
	ExprString
)

// FromScalarExpr lifts a ScalarType to the corresponding ExprType.
func FromScalarExpr(t ScalarType) ExprType {
	switch t {
	case Int:
		return ExprInt
	case Float:
		return ExprFloat
	case String:
		return ExprString
	default:
		panic("ast: unknown ScalarType")
	}
}

// Scalar converts to ScalarType, panicking on Void.
func (t ExprType) Scalar() ScalarType {
	switch t {
	case ExprInt:
		return Int
	case ExprFloat:
		return Float
	case ExprString:
		return String
	default:
		panic("ast: ExprType is Void")
	}
}

func (t ExprType) String() string {
	switch t {
	case ExprVoid:
		return "void"
	case ExprInt:
		return "int"
	case ExprFloat:
		return "float"
	case ExprString:
		return "string"
	default:
		return "?"
	}
}
