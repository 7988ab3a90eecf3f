package intrinsic

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

// JumpArgOrderKind records where, and in what order, the jump offset/time
// pair sit in the raw argument list.
type JumpArgOrderKind int

const (
	// JumpLoc means only an offset was present; time is implicitly
	// timeof(destination).
	JumpLoc JumpArgOrderKind = iota
	JumpLocTime
	JumpTimeLoc
)

// UnrepresentablePadding records trailing '_' encodings that must be zero
// at decode time and are always written as zero.
type UnrepresentablePadding struct {
	Index int
	Count int
}

// JumpArgOrder locates the jump offset (and optional adjacent time) args.
type JumpArgOrder struct {
	Index int
	Kind  JumpArgOrderKind
}

// OutOperandTypeKind distinguishes a natural encoding from the EoSD-ECL
// special case of a float output written as an integer bit pattern.
type OutOperandTypeKind int

const (
	OutNatural OutOperandTypeKind = iota
	OutFloatAsInt
)

// OutOperandType locates the output operand.
type OutOperandType struct {
	Index int
	Kind  OutOperandTypeKind
}

// InputOperandType locates one input operand.
type InputOperandType struct{ Index int }

// ImmediateInt locates an argument that must be a plain integer immediate
// (e.g. an interrupt label number).
type ImmediateInt struct{ Index int }

// AbiProps is the result of matching an intrinsic Kind against a concrete
// opcode's signature: the integer index of every structural position in
// the raw argument list, so the lowerer and raiser read indices rather
// than hard-coding positions.
type AbiProps struct {
	NumInstrArgs int
	Kind         AbiPropsKind
}

// AbiPropsKind is the sum of matched shapes, one per Kind variant.
type AbiPropsKind interface {
	abiPropsKind()
}

type JmpProps struct {
	Padding UnrepresentablePadding
	Jump    JumpArgOrder
}

func (JmpProps) abiPropsKind() {}

type InterruptLabelProps struct {
	Padding UnrepresentablePadding
	Label   ImmediateInt
}

func (InterruptLabelProps) abiPropsKind() {}

type AssignOpProps struct {
	Dest OutOperandType
	Rhs  InputOperandType
}

func (AssignOpProps) abiPropsKind() {}

type BinOpProps struct {
	Dest OutOperandType
	Args [2]InputOperandType
}

func (BinOpProps) abiPropsKind() {}

type UnOpProps struct {
	Dest OutOperandType
	Arg  InputOperandType
}

func (UnOpProps) abiPropsKind() {}

type CountJmpProps struct {
	Arg  OutOperandType
	Jump JumpArgOrder
}

func (CountJmpProps) abiPropsKind() {}

type CondJmpProps struct {
	Args [2]InputOperandType
	Jump JumpArgOrder
}

func (CondJmpProps) abiPropsKind() {}

type CondJmp2AProps struct{ Args [2]InputOperandType }

func (CondJmp2AProps) abiPropsKind() {}

type CondJmp2BProps struct{ Jump JumpArgOrder }

func (CondJmp2BProps) abiPropsKind() {}

// indexedEnc pairs a signature encoding with its original index in the
// raw argument list, so positions survive the element removals below
// (mirrors the Rust original's `Vec<(usize, ArgEncoding)>`).
type indexedEnc struct {
	index int
	enc   mapfile.EncodingChar
}

func abiError(abiSpan pos.Span, format string, args ...any) error {
	d := diag.New(diag.Error, diag.CategoryLower, "bad ABI for intrinsic: "+format, args...)
	if !abiSpan.IsNull() {
		d = d.WithPrimary(abiSpan, "in this instruction signature")
	}
	return d
}

// FromABI matches kind against sig, producing an AbiProps, or an error
// diagnostic if sig is structurally incompatible with kind. abiSpan is
// the mapfile source location of the signature, for diagnostics; it may
// be pos.NullSpan for a builtin/synthetic signature.
func FromABI(kind Kind, sig mapfile.Signature, abiSpan pos.Span) (*AbiProps, error) {
	encodings := make([]indexedEnc, len(sig))
	for i, enc := range sig {
		encodings[i] = indexedEnc{index: i, enc: enc.Char}
	}
	numInstrArgs := len(encodings)

	var result AbiPropsKind

	switch k := kind.(type) {
	case Jmp:
		padding := detectAndRemovePadding(&encodings)
		jump, jerr := findAndRemoveJump(&encodings, abiSpan)
		if jerr != nil {
			return nil, jerr
		}
		result = JmpProps{Padding: padding, Jump: jump}

	case InterruptLabel:
		padding := detectAndRemovePadding(&encodings)
		label, lerr := removeImmediateInt(&encodings, abiSpan)
		if lerr != nil {
			return nil, lerr
		}
		result = InterruptLabelProps{Padding: padding, Label: label}

	case AssignOp:
		dest, derr := removeOutOperand(&encodings, abiSpan, k.Ty)
		if derr != nil {
			return nil, derr
		}
		rhs, rerr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if rerr != nil {
			return nil, rerr
		}
		result = AssignOpProps{Dest: dest, Rhs: rhs}

	case BinOp:
		outTy := OutTypeFromBinOp(k.Op, k.Ty)
		dest, derr := removeOutOperand(&encodings, abiSpan, outTy)
		if derr != nil {
			return nil, derr
		}
		a, aerr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if aerr != nil {
			return nil, aerr
		}
		b, berr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if berr != nil {
			return nil, berr
		}
		result = BinOpProps{Dest: dest, Args: [2]InputOperandType{a, b}}

	case UnOp:
		dest, derr := removeOutOperand(&encodings, abiSpan, k.Ty)
		if derr != nil {
			return nil, derr
		}
		arg, aerr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if aerr != nil {
			return nil, aerr
		}
		result = UnOpProps{Dest: dest, Arg: arg}

	case CountJmp:
		jump, jerr := findAndRemoveJump(&encodings, abiSpan)
		if jerr != nil {
			return nil, jerr
		}
		arg, aerr := removeOutOperand(&encodings, abiSpan, ast.Int)
		if aerr != nil {
			return nil, aerr
		}
		result = CountJmpProps{Jump: jump, Arg: arg}

	case CondJmp:
		jump, jerr := findAndRemoveJump(&encodings, abiSpan)
		if jerr != nil {
			return nil, jerr
		}
		a, aerr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if aerr != nil {
			return nil, aerr
		}
		b, berr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if berr != nil {
			return nil, berr
		}
		result = CondJmpProps{Jump: jump, Args: [2]InputOperandType{a, b}}

	case CondJmp2A:
		a, aerr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if aerr != nil {
			return nil, aerr
		}
		b, berr := removeInputOperand(&encodings, abiSpan, k.Ty)
		if berr != nil {
			return nil, berr
		}
		result = CondJmp2AProps{Args: [2]InputOperandType{a, b}}

	case CondJmp2B:
		jump, jerr := findAndRemoveJump(&encodings, abiSpan)
		if jerr != nil {
			return nil, jerr
		}
		result = CondJmp2BProps{Jump: jump}

	default:
		return nil, abiError(abiSpan, "unrecognised intrinsic kind %T", kind)
	}

	if len(encodings) > 0 {
		leftover := encodings[0]
		return nil, abiError(abiSpan, "unexpected %s arg at index %d", leftover.enc.Descr(), leftover.index+1)
	}
	return &AbiProps{NumInstrArgs: numInstrArgs, Kind: result}, nil
}

// detectAndRemovePadding strips trailing EncPadding entries.
func detectAndRemovePadding(encodings *[]indexedEnc) UnrepresentablePadding {
	e := *encodings
	count := 0
	firstIndex := len(e)
	for len(e) > 0 && e[len(e)-1].enc == mapfile.EncPadding {
		firstIndex = e[len(e)-1].index
		e = e[:len(e)-1]
		count++
	}
	*encodings = e
	return UnrepresentablePadding{Index: firstIndex, Count: count}
}

func removeFirstWhere(encodings *[]indexedEnc, pred func(indexedEnc) bool) (indexedEnc, bool) {
	e := *encodings
	for i, v := range e {
		if pred(v) {
			out := v
			*encodings = append(e[:i], e[i+1:]...)
			return out, true
		}
	}
	return indexedEnc{}, false
}

// findAndRemoveJump locates the jump offset ('o') and optional adjacent
// time ('t') args, in either order, and removes them both.
func findAndRemoveJump(encodings *[]indexedEnc, abiSpan pos.Span) (JumpArgOrder, error) {
	offset, hasOffset := removeFirstWhere(encodings, func(v indexedEnc) bool { return v.enc == mapfile.EncJumpOffset })
	if !hasOffset {
		return JumpArgOrder{}, abiError(abiSpan, "missing jump offset ('o')")
	}
	time, hasTime := removeFirstWhere(encodings, func(v indexedEnc) bool { return v.enc == mapfile.EncJumpTime })
	if !hasTime {
		return JumpArgOrder{Index: offset.index, Kind: JumpLoc}, nil
	}
	switch {
	case time.index == offset.index+1:
		return JumpArgOrder{Index: offset.index, Kind: JumpLocTime}, nil
	case time.index+1 == offset.index:
		return JumpArgOrder{Index: time.index, Kind: JumpTimeLoc}, nil
	default:
		return JumpArgOrder{}, abiError(abiSpan, "offset ('o') and time ('t') args must be consecutive")
	}
}

// scalarMatchesEncoding implements the output/input type table: int
// matches 'S', float matches 'f'; a float type is additionally
// permitted to match 'S' for the EoSD-ECL "float stored as raw int bits"
// case (only legal for an output operand, via outAllowsFloatAsInt).
func scalarMatchesEncoding(ty ast.ScalarType, enc mapfile.EncodingChar, outAllowsFloatAsInt bool) (natural, floatAsInt bool) {
	switch {
	case ty == ast.Int && enc == mapfile.EncInt32:
		return true, false
	case ty == ast.Float && enc == mapfile.EncFloat:
		return true, false
	case outAllowsFloatAsInt && ty == ast.Float && enc == mapfile.EncInt32:
		return false, true
	default:
		return false, false
	}
}

func removeOutOperand(encodings *[]indexedEnc, abiSpan pos.Span, ty ast.ScalarType) (OutOperandType, error) {
	e := *encodings
	if len(e) == 0 {
		return OutOperandType{}, abiError(abiSpan, "not enough arguments")
	}
	head := e[0]
	*encodings = e[1:]
	natural, floatAsInt := scalarMatchesEncoding(ty, head.enc, true)
	switch {
	case natural:
		return OutOperandType{Index: head.index, Kind: OutNatural}, nil
	case floatAsInt:
		return OutOperandType{Index: head.index, Kind: OutFloatAsInt}, nil
	default:
		return OutOperandType{}, abiError(abiSpan, "output arg has unexpected encoding (%s)", head.enc.Descr())
	}
}

func removeInputOperand(encodings *[]indexedEnc, abiSpan pos.Span, ty ast.ScalarType) (InputOperandType, error) {
	e := *encodings
	if len(e) == 0 {
		return InputOperandType{}, abiError(abiSpan, "not enough arguments")
	}
	head := e[0]
	*encodings = e[1:]
	natural, _ := scalarMatchesEncoding(ty, head.enc, false)
	if !natural {
		return InputOperandType{}, abiError(abiSpan, "input arg has unexpected encoding (%s)", head.enc.Descr())
	}
	return InputOperandType{Index: head.index}, nil
}

func removeImmediateInt(encodings *[]indexedEnc, abiSpan pos.Span) (ImmediateInt, error) {
	in, err := removeInputOperand(encodings, abiSpan, ast.Int)
	if err != nil {
		return ImmediateInt{}, err
	}
	return ImmediateInt{Index: in.Index}, nil
}
