package lower

import (
	"fmt"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/instr"
	"github.com/zero318/truth/internal/pos"
)

// InstrSizer computes the encoded byte size of one assembled instruction,
// needed to resolve jump-offset arguments to byte offsets. Each format
// adapter supplies its own. A nil Sizer makes Assemble count each
// instruction as four bytes per argument, with no header; label arguments
// still resolve to that running total.
type InstrSizer interface {
	InstrSize(opcode int, args []instr.RawArg) (int, error)
}

// ScratchPool is the ordered, per-ScalarType pool of general-use registers
// a format declares for scratch allocation.
type ScratchPool struct {
	Int   []ast.RegID
	Float []ast.RegID
}

// Assembler turns one sub's lowered statement stream into final
// instr.Instr values: it assigns registers to every ArgLocal and resolves
// ArgLabel/ArgTimeOf references. It does not consult PadCount; each
// instruction carries exactly the args the lowerer emitted.
type Assembler struct {
	Pool  ScratchPool
	Sizer InstrSizer
	Emit  *diag.ErrorFlag
}

func NewAssembler(pool ScratchPool, sizer InstrSizer, emitter diag.Emitter) *Assembler {
	return &Assembler{Pool: pool, Sizer: sizer, Emit: diag.NewErrorFlag(emitter)}
}

// regStack is a LIFO scratch allocator for one scalar type.
type regStack struct {
	free []ast.RegID // free[len-1] is popped next
	used map[ast.DefID]ast.RegID
}

func newRegStack(pool []ast.RegID) *regStack {
	free := make([]ast.RegID, len(pool))
	for i, r := range pool {
		free[len(pool)-1-i] = r
	}
	return &regStack{free: free, used: map[ast.DefID]ast.RegID{}}
}

func (s *regStack) alloc(def ast.DefID) (ast.RegID, bool) {
	if len(s.free) == 0 {
		return 0, false
	}
	r := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.used[def] = r
	return r, true
}

func (s *regStack) free_(def ast.DefID) {
	r, ok := s.used[def]
	if !ok {
		return
	}
	delete(s.used, def)
	s.free = append(s.free, r)
}

// collectExplicitRegs removes registers the user code names directly
// (`REG[n]` or an alias) from a scratch pool before allocation begins.
func collectExplicitRegs(stmts []LowStmt) (ints, floats map[ast.RegID]bool) {
	ints, floats = map[ast.RegID]bool{}, map[ast.RegID]bool{}
	mark := func(a LowArg) {
		reg, ok := a.(ArgReg)
		if !ok {
			return
		}
		if reg.ReadTy == ast.Float {
			floats[reg.Reg] = true
		} else {
			ints[reg.Reg] = true
		}
	}
	for _, s := range stmts {
		instrS, ok := s.(StmtInstr)
		if !ok {
			continue
		}
		for _, a := range instrS.Instr.Args {
			mark(a)
		}
	}
	return
}

func without(pool []ast.RegID, excluded map[ast.RegID]bool) []ast.RegID {
	out := make([]ast.RegID, 0, len(pool))
	for _, r := range pool {
		if !excluded[r] {
			out = append(out, r)
		}
	}
	return out
}

// Assemble runs register assignment, label/timeof resolution, and final
// encoding over stmts, which must be one sub's complete lowered output.
func (a *Assembler) Assemble(stmts []LowStmt) ([]instr.Instr, error) {
	explicitInts, explicitFloats := collectExplicitRegs(stmts)
	ints := newRegStack(without(a.Pool.Int, explicitInts))
	floats := newRegStack(without(a.Pool.Float, explicitFloats))

	resolved := make([]LowStmt, 0, len(stmts))
	var scratchDisabledAt pos.Span
	causes := map[ast.DefID]pos.Span{}
	for _, s := range stmts {
		switch k := s.(type) {
		case StmtRegAlloc:
			stack := ints
			if k.Ty == ast.Float {
				stack = floats
			}
			reg, ok := stack.alloc(k.Def)
			if !ok {
				d := diag.New(diag.Error, diag.CategoryLower,
					"script is too complex: ran out of scratch %s registers", k.Ty).
					WithPrimary(k.Cause, "while allocating this")
				for def := range stack.used {
					d = d.WithSecondary(causes[def], "this temporary is still live")
				}
				a.Emit.Emit(d)
				continue
			}
			causes[k.Def] = k.Cause
			if !scratchDisabledAt.IsNull() {
				a.Emit.Emit(diag.New(diag.Error, diag.CategoryLower,
					"this expression requires a scratch register, but scratch use was disabled earlier in this script").
					WithPrimary(k.Cause, "here").
					WithSecondary(scratchDisabledAt, "scratch use disabled by this instruction"))
			}
			resolved = append(resolved, regAssignment{def: k.Def, reg: reg, ty: k.Ty})
		case StmtRegFree:
			if _, ok := ints.used[k.Def]; ok {
				ints.free_(k.Def)
			} else {
				floats.free_(k.Def)
			}
		case StmtScratchDisabled:
			if scratchDisabledAt.IsNull() {
				scratchDisabledAt = k.Cause
			}
		default:
			resolved = append(resolved, s)
		}
	}
	if err := a.Emit.AsResult(); err != nil {
		return nil, err
	}

	regOf := map[ast.DefID]ast.RegID{}
	for _, s := range resolved {
		if ra, ok := s.(regAssignment); ok {
			regOf[ra.def] = ra.reg
		}
	}

	return a.layOut(resolved, regOf)
}

// regAssignment is an internal marker produced by Assemble's first sweep,
// recording which register a StmtRegAlloc's DefID received.
type regAssignment struct {
	def ast.DefID
	reg ast.RegID
	ty  ast.ScalarType
}

func (regAssignment) lowStmtNode() {}

// layOut resolves labels/timeofs to concrete offsets via fixed-point
// iteration (an instruction's size can itself depend on a jump-offset
// argument's magnitude in some encodings, so offsets are recomputed until
// they stop changing) and emits the final instr.Instr sequence.
func (a *Assembler) layOut(stmts []LowStmt, regOf map[ast.DefID]ast.RegID) ([]instr.Instr, error) {
	type placed struct {
		isLabel bool
		label   ident.Ident
		time    int32
		opcode  int
		args    []LowArg
	}
	var seq []placed
	labelIndex := map[ident.Ident]int{}
	for _, s := range stmts {
		switch k := s.(type) {
		case StmtLabel:
			labelIndex[k.Label] = len(seq)
			seq = append(seq, placed{isLabel: true, label: k.Label, time: k.Time})
		case StmtInstr:
			seq = append(seq, placed{time: k.Instr.Time, opcode: k.Instr.Opcode, args: k.Instr.Args})
		case regAssignment:
			// no instruction of its own
		}
	}

	offsets := make([]int, len(seq))
	times := make([]int32, len(seq))
	for iter := 0; iter < 64; iter++ {
		changed := false
		off := 0
		for i, p := range seq {
			if offsets[i] != off {
				offsets[i] = off
				changed = true
			}
			if p.isLabel {
				times[i] = p.time
				continue
			}
			times[i] = p.time
			resolvedArgs, err := a.resolveArgs(p.args, regOf, labelIndex, offsets, times)
			if err != nil {
				return nil, err
			}
			size := len(resolvedArgs) * 4
			if a.Sizer != nil {
				sz, err := a.Sizer.InstrSize(p.opcode, resolvedArgs)
				if err != nil {
					return nil, err
				}
				size = sz
			}
			off += size
		}
		if !changed {
			break
		}
	}

	out := make([]instr.Instr, 0, len(seq))
	for i, p := range seq {
		if p.isLabel {
			continue
		}
		args, err := a.resolveArgs(p.args, regOf, labelIndex, offsets, times)
		if err != nil {
			return nil, err
		}
		out = append(out, instr.Instr{Time: p.time, Opcode: p.opcode, Args: args})
	}
	return out, nil
}

func (a *Assembler) resolveArgs(args []LowArg, regOf map[ast.DefID]ast.RegID, labelIndex map[ident.Ident]int, offsets []int, times []int32) ([]instr.RawArg, error) {
	out := make([]instr.RawArg, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case ArgRawInt:
			out = append(out, instr.FromInt(v.Value))
		case ArgRawFloat:
			out = append(out, instr.FromFloat(v.Value))
		case ArgRawString:
			return nil, fmt.Errorf("assemble: string arguments must be encoded by the format adapter, not the core assembler")
		case ArgReg:
			out = append(out, instr.FromReg(int32(v.Reg), v.ReadTy == ast.Float))
		case ArgLocal:
			reg, ok := regOf[v.Def]
			if !ok {
				return nil, fmt.Errorf("assemble: internal error: local %d was never assigned a register", v.Def)
			}
			out = append(out, instr.FromReg(int32(reg), v.ReadTy == ast.Float))
		case ArgLabel:
			idx, ok := labelIndex[v.Label]
			if !ok {
				return nil, fmt.Errorf("assemble: internal error: unresolved label %v", v.Label)
			}
			out = append(out, instr.FromInt(int32(offsets[idx])))
		case ArgTimeOf:
			idx, ok := labelIndex[v.Label]
			if !ok {
				return nil, fmt.Errorf("assemble: internal error: unresolved label %v", v.Label)
			}
			out = append(out, instr.FromInt(times[idx]))
		default:
			return nil, fmt.Errorf("assemble: internal error: unsupported arg kind %T", arg)
		}
	}
	return out, nil
}
