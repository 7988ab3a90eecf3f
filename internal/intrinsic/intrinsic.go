// Package intrinsic implements the "abstract instruction" vocabulary
// and the ABI-matching algorithm: given an abstract intrinsic (what the
// lowerer/raiser want to express, e.g. "a binary add producing an int")
// and a concrete opcode's mapfile signature, derive exactly where each
// structural piece (output, inputs, jump offset/time, padding) sits in
// the raw argument list.
//
// Grounded almost verbatim, algorithm-for-algorithm, on
// original_source/src/llir/intrinsic.rs's IntrinsicInstrAbiProps::from_abi:
// strip trailing padding, then pull out jump args (if any), then the
// output operand, then the input operands in order, then reject whatever
// is left over. The Rust original threads a mutable Vec of (index,
// encoding) pairs through a chain of `remove`/`find_and_remove` helper
// methods; this is reproduced here as a plain slice of indexedEnc values
// shrunk in place, since Go has no equivalent of Rust's ownership-moving
// builder chain.
package intrinsic

import (
	"github.com/zero318/truth/internal/ast"
)

// Kind is the sum of abstract intrinsic shapes: the things a lowerer
// wants to emit and a raiser wants to detect, independent of which
// concrete opcode implements them in a given game.
type Kind interface {
	intrinsicKind()
}

type Jmp struct{}

func (Jmp) intrinsicKind() {}

type InterruptLabel struct{}

func (InterruptLabel) intrinsicKind() {}

type AssignOp struct {
	Op ast.AssignOpKind
	Ty ast.ScalarType
}

func (AssignOp) intrinsicKind() {}

type BinOp struct {
	Op ast.BinOpKind
	Ty ast.ScalarType // the operands' shared type; output type is derived from it
}

func (BinOp) intrinsicKind() {}

type UnOp struct {
	Op ast.UnOpKind
	Ty ast.ScalarType
}

func (UnOp) intrinsicKind() {}

type CountJmp struct{}

func (CountJmp) intrinsicKind() {}

type CondJmp struct {
	Op ast.BinOpKind
	Ty ast.ScalarType
}

func (CondJmp) intrinsicKind() {}

// CondJmp2A is the first half of a two-instruction conditional jump
// (sets a hidden compare register); CondJmp2B is the second half (jumps
// off that register). Some games' ECL compiles a single `if` into this
// pair.
type CondJmp2A struct{ Ty ast.ScalarType }

func (CondJmp2A) intrinsicKind() {}

type CondJmp2B struct{ Op ast.BinOpKind }

func (CondJmp2B) intrinsicKind() {}

// OutTypeFromBinOp derives a BinOp intrinsic's output type from its
// operand type: arithmetic preserves it, comparison always yields Int.
func OutTypeFromBinOp(op ast.BinOpKind, operandTy ast.ScalarType) ast.ScalarType {
	if op.IsComparison() {
		return ast.Int
	}
	return operandTy
}
