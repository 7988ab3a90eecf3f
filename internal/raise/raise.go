// Package raise implements the decompile-direction translation from a flat
// sequence of raw instructions back into an AST block.
// There is no original_source file dedicated to raising (the Rust original
// only ever shipped a compiler); this package reuses internal/intrinsic's
// ABI-position tables (original_source/src/llir/intrinsic.rs) in reverse
// of how internal/lower consumes them.
package raise

import (
	"fmt"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/intrinsic"
	"github.com/zero318/truth/internal/mapfile"
	"github.com/zero318/truth/internal/pos"
)

// Options toggles decompile-direction debugging knobs: intrinsic
// recognition and typed argument rendering can each be disabled
// independently, falling back to a flatter, more literal rendering.
type Options struct {
	NoIntrinsics bool // render every instruction as ins_OPCODE(...), skip Kind matching
	NoArguments  bool // omit argument rendering for unmatched instructions (diagnostic use)
}

// Raiser holds the state threaded through raising one sub's instruction
// stream.
type Raiser struct {
	Ctx     *context.Context
	Lang    ast.Language
	Table   *intrinsic.Table
	Mapfile *mapfile.Mapfile
	Opts    Options
	Emit    *diag.ErrorFlag
}

func NewRaiser(ctx *context.Context, lang ast.Language, table *intrinsic.Table, mf *mapfile.Mapfile, opts Options, emitter diag.Emitter) *Raiser {
	return &Raiser{Ctx: ctx, Lang: lang, Table: table, Mapfile: mf, Opts: opts, Emit: diag.NewErrorFlag(emitter)}
}

// RaiseSub reconstructs one sub/timeline's body from instrs.
func (r *Raiser) RaiseSub(instrs []instr.Instr) (*ast.Block, error) {
	indexByOffset := make(map[int]int, len(instrs))
	for i, in := range instrs {
		indexByOffset[in.Offset] = i
	}

	labelAt := make(map[int]ident.Ident)
	labelName := func(i int) ident.Ident {
		if name, ok := labelAt[i]; ok {
			return name
		}
		name := r.Ctx.Gensym.Fresh(fmt.Sprintf("label_%d", i))
		labelAt[i] = name
		return name
	}

	// Step 1: a pre-scan collects every jump destination, so forward jumps get a label before we reach them.
	if !r.Opts.NoIntrinsics {
		for _, in := range instrs {
			kind, props, ok := r.Table.Kind(in.Opcode)
			if !ok {
				continue
			}
			if idx, ok := r.jumpTargetIndex(in, kind, props, indexByOffset); ok {
				labelName(idx)
			}
		}
	}

	var stmts []*ast.Stmt
	emit := func(k ast.StmtKind) {
		stmts = append(stmts, &ast.Stmt{ID: r.Ctx.NewNodeID(), Kind: k})
	}

	runningTime := int32(0)
	for i, in := range instrs {
		if name, ok := labelAt[i]; ok {
			emit(&ast.PlainLabelStmt{Name: name})
		}
		// Step 5: insert an absolute time label whenever the instruction
		// stream's running clock jumps.
		if in.Time != runningTime {
			emit(&ast.TimeLabelStmt{Relative: false, N: int(in.Time)})
			runningTime = in.Time
		}

		kind, props, ok := r.Table.Kind(in.Opcode)
		if r.Opts.NoIntrinsics || !ok {
			emit(r.raiseRawCall(in))
			continue
		}
		for _, k := range r.raiseIntrinsic(in, kind, props, indexByOffset, labelName) {
			emit(k)
		}
	}

	if err := r.Emit.AsResult(); err != nil {
		return nil, err
	}
	return &ast.Block{Stmts: stmts}, nil
}

// jumpTargetIndex extracts the destination instruction index a jump-family
// instruction targets, if any.
func (r *Raiser) jumpTargetIndex(in instr.Instr, kind intrinsic.Kind, props *intrinsic.AbiProps, indexByOffset map[int]int) (int, bool) {
	var order intrinsic.JumpArgOrder
	switch k := props.Kind.(type) {
	case intrinsic.JmpProps:
		order = k.Jump
	case intrinsic.CountJmpProps:
		order = k.Jump
	case intrinsic.CondJmpProps:
		order = k.Jump
	case intrinsic.CondJmp2BProps:
		order = k.Jump
	default:
		return 0, false
	}
	offsetArgIdx := order.Index
	if order.Kind == intrinsic.JumpTimeLoc {
		offsetArgIdx = order.Index + 1
	}
	if offsetArgIdx >= len(in.Args) {
		return 0, false
	}
	offset := int(in.Args[offsetArgIdx].AsInt())
	idx, ok := indexByOffset[offset]
	if !ok {
		r.Emit.Emit(diag.New(diag.Warning, diag.CategoryRaise,
			"jump to offset %d does not land on an instruction boundary", offset))
		return 0, false
	}
	return idx, true
}

// resolveJumpArgs reads the destination label plus optional explicit time
// for a jump-family instruction, given its JumpArgOrder. Used by
// raiseIntrinsic; the pre-scan's jumpTargetIndex reads the same offset
// argument on its own.
func (r *Raiser) resolveJumpArgs(in instr.Instr, order intrinsic.JumpArgOrder, indexByOffset map[int]int, labelName func(int) ident.Ident) (ident.Ident, ast.Expr) {
	var offsetIdx, timeIdx int
	hasTime := order.Kind != intrinsic.JumpLoc
	switch order.Kind {
	case intrinsic.JumpLoc:
		offsetIdx = order.Index
	case intrinsic.JumpLocTime:
		offsetIdx, timeIdx = order.Index, order.Index+1
	case intrinsic.JumpTimeLoc:
		timeIdx, offsetIdx = order.Index, order.Index+1
	}
	offset := int(in.Args[offsetIdx].AsInt())
	idx, ok := indexByOffset[offset]
	var dest ident.Ident
	if ok {
		dest = labelName(idx)
	} else {
		dest = r.Ctx.Gensym.Fresh("unresolved_jump_target")
	}
	if !hasTime {
		return dest, nil
	}
	// Eliding a time arg that merely repeats timeof(destination) is a
	// cosmetic simplification left to a later pass once every label in the
	// sub has a concrete time attached;
	// rendering it explicitly here is always correct, just not maximally
	// terse.
	t := in.Args[timeIdx].AsInt()
	return dest, ast.NewLitInt(pos.NullSpan, t, ast.RadixDecimal)
}
