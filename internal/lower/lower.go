// Package lower implements the compile-direction translation from a
// type-checked, desugared AST into a flat sequence of raw instructions.
//
// Grounded algorithm-for-algorithm on
// original_source/src/llir/lower/stackless.rs's Lowerer: walk one
// sub/script body, classifying each sub-expression as either directly
// encodable (a literal, a variable read) or requiring a temporary, and
// recursively decompose complex expressions into a minimal number of
// `RegAlloc`/instruction/`RegFree` sequences. The Rust original threads a
// `LocalId`/`VarId::{Local,Reg}` split through its own AST; this module's
// ast.Var instead carries a resolved ast.DefID (via context.Context), so
// "is this a local that still needs a register, or an explicit register
// alias" is answered by looking up the DefID's context.Definition rather
// than by a dedicated enum case on Var itself.
package lower

import (
	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/pos"
)

// LowArg is one argument of a LowInstr, in one of four shapes: a raw
// immediate, a not-yet-allocated local reference, an explicit register
// reference, or an unresolved label/timeof reference.
type LowArg interface{ lowArgNode() }

type ArgRawInt struct{ Value int32 }

func (ArgRawInt) lowArgNode() {}

type ArgRawFloat struct{ Value float32 }

func (ArgRawFloat) lowArgNode() {}

type ArgRawString struct{ Value []byte }

func (ArgRawString) lowArgNode() {}

// ArgLocal references a register-allocated local by its DefID; resolved
// to ArgReg by the register-assignment sweep in assemble.go.
type ArgLocal struct {
	Def    ast.DefID
	ReadTy ast.ScalarType
}

func (ArgLocal) lowArgNode() {}

// ArgReg is an already-physical register reference: either the user wrote
// `REG[n]`/an alias directly, or register assignment has resolved an
// ArgLocal to this shape.
type ArgReg struct {
	Reg    ast.RegID
	ReadTy ast.ScalarType
}

func (ArgReg) lowArgNode() {}

type ArgLabel struct{ Label ident.Ident }

func (ArgLabel) lowArgNode() {}

type ArgTimeOf struct{ Label ident.Ident }

func (ArgTimeOf) lowArgNode() {}

// LowInstr is one not-yet-assembled instruction. PadCount records how
// many trailing zero args may be omitted on assembly, when this
// instruction was emitted against an intrinsic whose ABI declared
// UnrepresentablePadding (Jmp/InterruptLabel only).
type LowInstr struct {
	Time     int32
	Opcode   int
	Args     []LowArg
	PadCount int
}

// LowStmt is one low-level statement.
type LowStmt interface{ lowStmtNode() }

type StmtInstr struct{ Instr LowInstr }

func (StmtInstr) lowStmtNode() {}

type StmtLabel struct {
	Time  int32
	Label ident.Ident
}

func (StmtLabel) lowStmtNode() {}

// StmtRegAlloc marks the start of a register-allocated temporary's scope.
// Cause is the span that introduced it, surfaced in the "script too
// complex" diagnostic if allocation fails.
type StmtRegAlloc struct {
	Def   ast.DefID
	Ty    ast.ScalarType
	Cause pos.Span
}

func (StmtRegAlloc) lowStmtNode() {}

type StmtRegFree struct{ Def ast.DefID }

func (StmtRegFree) lowStmtNode() {}

// StmtScratchDisabled marks the point at which a format-declared
// scratch-disabling instruction was emitted; every StmtRegAlloc after it
// in the same sub is an error.
type StmtScratchDisabled struct{ Cause pos.Span }

func (StmtScratchDisabled) lowStmtNode() {}

// Lowerer holds the state threaded through lowering one sub/script body.
type Lowerer struct {
	Ctx   *context.Context
	Lang  ast.Language
	Table *intrinsic.Table
	Emit  *diag.ErrorFlag

	// NoScratchOpcodes names opcodes that, once emitted, disable scratch
	// register use for the remainder of the containing sub (format-
	// declared: some instructions disable scratch use entirely for the
	// containing sub).
	NoScratchOpcodes map[int]bool

	out             []LowStmt
	noScratchReason pos.Span // set once a NoScratchOpcodes instruction is emitted
	curTime         int32    // running clock, advanced by each TimeLabelStmt encountered
}

// NewLowerer constructs a Lowerer for one language's intrinsic table.
func NewLowerer(ctx *context.Context, lang ast.Language, table *intrinsic.Table, emitter diag.Emitter, noScratch map[int]bool) *Lowerer {
	return &Lowerer{Ctx: ctx, Lang: lang, Table: table, Emit: diag.NewErrorFlag(emitter), NoScratchOpcodes: noScratch}
}

// Out returns the accumulated low-level statement list.
func (l *Lowerer) Out() []LowStmt { return l.out }

// push appends s to the output stream, stamping the lowerer's current
// running time onto it: every instruction and every synthetic label
// (gensym'd for a decomposed conditional jump, say) shares the time of the
// source statement it was produced from, last set by the most recent
// TimeLabelStmt the walk passed over.
func (l *Lowerer) push(s LowStmt) {
	switch k := s.(type) {
	case StmtInstr:
		k.Instr.Time = l.curTime
		s = k
	case StmtLabel:
		k.Time = l.curTime
		s = k
	}
	l.out = append(l.out, s)
}

func (l *Lowerer) errorf(span pos.Span, format string, args ...any) {
	l.Emit.Emit(diag.New(diag.Error, diag.CategoryLower, format, args...).WithPrimary(span, "here"))
}

// LowerBlock lowers every statement of b in order.
// b must already be desugared (passes.DesugarBlocks/passes.CompileLoop
// have run) so only the "primitive" statement kinds remain; anything
// else is an internal-logic bug, not a user error.
func (l *Lowerer) LowerBlock(b *ast.Block) error {
	for _, stmt := range b.Stmts {
		l.lowerStmt(stmt)
	}
	return l.Emit.AsResult()
}

func (l *Lowerer) lowerStmt(stmt *ast.Stmt) {
	switch k := stmt.Kind.(type) {
	case *ast.NoInstruction:
		// emits nothing; its only purpose is to anchor a time.

	case *ast.JumpStmt:
		l.lowerUncondJump(stmt.Span(), k)

	case *ast.AssignStmt:
		l.lowerAssignOp(stmt.Span(), k.Var, k.Op, k.Value)

	case *ast.InterruptLabelStmt:
		opcode, props, ok := l.Table.Opcode(intrinsic.InterruptLabel{})
		if !ok {
			l.errorf(stmt.Span(), "interrupt labels are not supported by this format")
			return
		}
		l.push(StmtInstr{Instr: LowInstr{
			Time:     0,
			Opcode:   opcode,
			Args:     []LowArg{ArgRawInt{Value: int32(k.N)}},
			PadCount: padCountOf(props),
		}})

	case *ast.CondJumpStmt:
		l.lowerCondJumpStmt(stmt.Span(), k)

	case *ast.DeclarationStmt:
		l.lowerDeclaration(stmt.Span(), k)

	case *ast.ExprStmt:
		call, ok := k.Expr.(*ast.Call)
		if !ok {
			l.errorf(stmt.Span(), "%s is not allowed as a bare statement", exprDescr(k.Expr))
			return
		}
		l.lowerCallStmt(stmt.Span(), call)

	case *ast.PlainLabelStmt:
		l.push(StmtLabel{Label: k.Name})

	case *ast.TimeLabelStmt:
		// time labels carry no instruction of their own; they only advance
		// the lowerer's running clock, consulted by push for every
		// statement lowered after this point.
		if k.Relative {
			l.curTime += int32(k.N)
		} else {
			l.curTime = int32(k.N)
		}

	case *ast.ScopeEndStmt:
		l.push(StmtRegFree{Def: k.Def})

	case *ast.ItemDefStmt:
		// nested function/const definitions carry no runtime instructions.

	default:
		l.errorf(stmt.Span(), "internal error: unsupported statement kind %T reached the lowerer", k)
	}
}

func exprDescr(e ast.Expr) string {
	switch e.(type) {
	case *ast.Call:
		return "this call"
	default:
		return "this expression"
	}
}

// lowerCallStmt lowers `func(args...);` used as a statement.
func (l *Lowerer) lowerCallStmt(span pos.Span, call *ast.Call) {
	opcode, ok := l.opcodeForCallable(call.Callable, span)
	if !ok {
		return
	}
	l.lowerRawCall(span, opcode, call.Args)
}

func (l *Lowerer) opcodeForCallable(name ast.CallableName, span pos.Span) (int, bool) {
	switch c := name.(type) {
	case *ast.InsCallableName:
		return c.Opcode, true
	case *ast.NormalCallableName:
		def, ok := l.Ctx.Resolution(c.Res.Res)
		if !ok {
			l.errorf(span, "internal error: unresolved callable reached the lowerer")
			return 0, false
		}
		switch d := l.Ctx.Defs.Get(def).(type) {
		case *context.InstructionAliasDef:
			return d.Opcode, true
		default:
			l.errorf(span, "user functions must be inlined before lowering")
			return 0, false
		}
	default:
		l.errorf(span, "internal error: unsupported callable name kind")
		return 0, false
	}
}

// lowerRawCall lowers args against opcode's mapfile signature, recursively
// spilling complex arguments to temporaries first.
func (l *Lowerer) lowerRawCall(span pos.Span, opcode int, args []ast.Expr) {
	sig, ok := l.Ctx.Mapfiles[l.Lang].InsSignatures[opcode]
	if !ok {
		l.errorf(span, "no known signature for opcode %d", opcode)
		return
	}
	lowered := make([]LowArg, 0, len(args))
	var freeIDs []ast.DefID
	for i, arg := range args {
		if i >= len(sig) {
			l.errorf(span, "too many arguments (expected %d)", len(sig))
			return
		}
		class := l.classifyExpr(arg)
		var la LowArg
		switch c := class.(type) {
		case simpleExpr:
			la = c.arg
		case temporaryExpr:
			def, expr := l.defineTemporary(c)
			la = exprToArg(expr, c.readTy)
			if loc, ok := la.(ArgLocal); ok {
				loc.Def = def
				la = loc
			}
			freeIDs = append(freeIDs, def)
		}
		lowered = append(lowered, la)
	}
	l.push(StmtInstr{Instr: LowInstr{Opcode: opcode, Args: lowered}})
	if l.NoScratchOpcodes[opcode] && l.noScratchReason.IsNull() {
		l.noScratchReason = span
		l.push(StmtScratchDisabled{Cause: span})
	}
	for i := len(freeIDs) - 1; i >= 0; i-- {
		l.push(StmtRegFree{Def: freeIDs[i]})
	}
}

func padCountOf(props *intrinsic.AbiProps) int {
	if props == nil {
		return 0
	}
	switch k := props.Kind.(type) {
	case intrinsic.JmpProps:
		return k.Padding.Count
	case intrinsic.InterruptLabelProps:
		return k.Padding.Count
	default:
		return 0
	}
}
