// Package print renders a ScriptFile back to source text, the last step
// of the decompile data flow ("format to source text"). Exact
// pretty-printer formatting is non-normative (structure is preserved,
// exact whitespace is not), so this is a minimal, always-reparseable
// renderer rather than a faithful reproduction of any particular source
// style.
//
// Grounded on the same Stringer idiom internal/ast already uses for its
// enums (ops.go's BinOpKind.String/UnOpKind.String/AssignOpKind.String):
// this package just walks the tree the same way, writing through a
// strings.Builder instead of returning a single token. No example repo in
// the retrieval pack ships a dedicated pretty-printer for a domain script
// language to ground this against more specifically (go-corset's
// pkg/sexp prints s-expressions back out via fmt.Stringer on its own AST,
// the same "walk and Stringer" shape reused here).
package print

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/ident"
)

// Printer renders AST nodes to text, resolving identifiers back to their
// textual names through in.
type Printer struct {
	Interner *ident.Interner
	b        strings.Builder
	indent   int
}

func New(in *ident.Interner) *Printer {
	return &Printer{Interner: in}
}

func (p *Printer) String() string { return p.b.String() }

func (p *Printer) text(id ident.Ident) string { return p.Interner.Text(id) }

func (p *Printer) line(format string, args ...any) {
	p.b.WriteString(strings.Repeat("\t", p.indent))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

// PrintFile renders an entire ScriptFile, pragmas first.
func (p *Printer) PrintFile(f *ast.ScriptFile) {
	for _, mf := range f.Mapfiles {
		p.line("#pragma mapfile %q", mf)
	}
	for _, src := range f.ImageSources {
		p.line("#pragma image_source %q", src)
	}
	for _, item := range f.Items {
		p.printItem(item)
	}
}

func (p *Printer) printItem(item ast.Item) {
	switch it := item.(type) {
	case *ast.FuncItem:
		p.printFunc(it)
	case *ast.ScriptItem:
		p.printScript(it)
	case *ast.MetaItem:
		p.printMeta(it)
	case *ast.ConstItem:
		p.line("const %s %s = %s;", it.Type, p.text(it.Name.Name), p.expr(it.Value))
	default:
		p.line("// unprintable item %T", item)
	}
}

func (p *Printer) printFunc(it *ast.FuncItem) {
	qual := ""
	switch it.Qualifier {
	case ast.FuncConst:
		qual = "const "
	case ast.FuncInline:
		qual = "inline "
	}
	params := make([]string, len(it.Params))
	for i, prm := range it.Params {
		params[i] = fmt.Sprintf("%s %s", prm.Type, p.text(prm.Name.Name))
	}
	p.line("%s%s %s(%s)", qual, it.Return, p.text(it.Name.Name), strings.Join(params, ", "))
	if it.Body == nil {
		p.b.WriteString(";\n")
		return
	}
	p.printBlock(it.Body)
}

func (p *Printer) printScript(it *ast.ScriptItem) {
	kw := "script"
	if it.Kind == ast.TimelineBlock {
		kw = "timeline"
	}
	if it.NumberID != nil {
		p.line("%s %d %s", kw, *it.NumberID, it.Name)
	} else {
		p.line("%s %s", kw, it.Name)
	}
	p.printBlock(it.Body)
}

func (p *Printer) printMeta(it *ast.MetaItem) {
	p.line("%s {", it.Keyword)
	p.indent++
	for _, f := range it.Fields {
		p.line("%s: %s;", f.Name, p.expr(f.Value))
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printBlock(b *ast.Block) {
	p.line("{")
	p.indent++
	for _, stmt := range b.Stmts {
		p.printStmt(stmt)
	}
	p.indent--
	p.line("}")
}

func (p *Printer) printStmt(s *ast.Stmt) {
	prefix := ""
	if s.DiffLabel != nil {
		prefix = fmt.Sprintf("{%s}: ", s.DiffLabel.Letters)
	}
	switch k := s.Kind.(type) {
	case *ast.NoInstruction:
		// virtual; nothing to print
	case *ast.ItemDefStmt:
		p.printItem(k.Item)
	case *ast.JumpStmt:
		if k.Time != nil {
			p.line("%sgoto %s @ %s;", prefix, p.text(k.Destination), p.expr(k.Time))
		} else {
			p.line("%sgoto %s;", prefix, p.text(k.Destination))
		}
	case *ast.BreakStmt:
		p.line("%sbreak;", prefix)
	case *ast.ContinueStmt:
		p.line("%scontinue;", prefix)
	case *ast.CondJumpStmt:
		kw := "if"
		if k.Unless {
			kw = "unless"
		}
		if k.Time != nil {
			p.line("%s%s (%s) goto %s @ %s;", prefix, kw, p.expr(k.Cond), p.text(k.Destination), p.expr(k.Time))
		} else {
			p.line("%s%s (%s) goto %s;", prefix, kw, p.expr(k.Cond), p.text(k.Destination))
		}
	case *ast.ReturnStmt:
		if k.Value != nil {
			p.line("%sreturn %s;", prefix, p.expr(k.Value))
		} else {
			p.line("%sreturn;", prefix)
		}
	case *ast.CondChainStmt:
		for i, arm := range k.Arms {
			kw := "if"
			if i > 0 {
				kw = "elif"
			}
			p.line("%s%s (%s)", prefix, kw, p.expr(arm.Cond))
			p.printBlock(arm.Body)
		}
		if k.Else != nil {
			p.line("else")
			p.printBlock(k.Else)
		}
	case *ast.LoopStmt:
		p.line("%sloop", prefix)
		p.printBlock(k.Body)
	case *ast.WhileStmt:
		if k.Do {
			p.line("%sdo", prefix)
			p.printBlock(k.Body)
			p.line("while (%s);", p.expr(k.Cond))
		} else {
			p.line("%swhile (%s)", prefix, p.expr(k.Cond))
			p.printBlock(k.Body)
		}
	case *ast.TimesStmt:
		if k.Clobber != nil {
			p.line("%stimes(%s) clobber(%s)", prefix, p.expr(k.Count), p.varText(k.Clobber))
		} else {
			p.line("%stimes(%s)", prefix, p.expr(k.Count))
		}
		p.printBlock(k.Body)
	case *ast.ExprStmt:
		p.line("%s%s;", prefix, p.expr(k.Expr))
	case *ast.BlockStmt:
		p.line("%s", prefix)
		p.printBlock(k.Body)
	case *ast.AssignStmt:
		p.line("%s%s %s %s;", prefix, p.varText(k.Var), k.Op, p.expr(k.Value))
	case *ast.DeclarationStmt:
		entries := make([]string, len(k.Entries))
		for i, e := range k.Entries {
			if e.Init != nil {
				entries[i] = fmt.Sprintf("%s = %s", p.text(e.Name.Name), p.expr(e.Init))
			} else {
				entries[i] = p.text(e.Name.Name)
			}
		}
		p.line("%s%s %s;", prefix, k.Type, strings.Join(entries, ", "))
	case *ast.CallSubStmt:
		at := ""
		if k.AtSymbol {
			at = "@"
		}
		async := ""
		if k.Async == ast.AsyncAsync {
			async = "async "
		}
		p.line("%s%s%s%s(%s);", prefix, async, at, p.callableText(k.Func), p.exprList(k.Args))
	case *ast.InterruptLabelStmt:
		p.line("%sinterrupt[%d]:", prefix, k.N)
	case *ast.TimeLabelStmt:
		if k.Relative {
			p.line("%s+%d:", prefix, k.N)
		} else {
			p.line("%s%d:", prefix, k.N)
		}
	case *ast.PlainLabelStmt:
		p.line("%s%s:", prefix, p.text(k.Name))
	case *ast.ScopeEndStmt:
		// virtual; nothing to print
	default:
		p.line("%s// unprintable statement %T", prefix, s.Kind)
	}
}

func (p *Printer) varText(v *ast.Var) string {
	sigil := ""
	if v.HasSig {
		sigil = v.Sigil.String()
	}
	switch n := v.Name.(type) {
	case *ast.NormalVarName:
		return sigil + p.text(n.Res.Name)
	case *ast.RegVarName:
		return fmt.Sprintf("%sreg[%d]", sigil, n.Reg)
	default:
		return sigil + "?"
	}
}

func (p *Printer) callableText(c ast.CallableName) string {
	switch n := c.(type) {
	case *ast.NormalCallableName:
		return p.text(n.Res.Name)
	case *ast.InsCallableName:
		return fmt.Sprintf("ins_%d", n.Opcode)
	default:
		return "?"
	}
}

func (p *Printer) exprList(es []ast.Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = p.expr(e)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) expr(e ast.Expr) string {
	if e == nil {
		return ""
	}
	switch ex := e.(type) {
	case *ast.LitInt:
		return litIntText(ex)
	case *ast.LitFloat:
		return strconv.FormatFloat(float64(ex.Value), 'g', -1, 32)
	case *ast.LitString:
		return strconv.Quote(string(ex.Value))
	case *ast.VarExpr:
		return p.varText(ex.Var)
	case *ast.Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", p.expr(ex.Cond), p.expr(ex.Then), p.expr(ex.Else))
	case *ast.BinOp:
		return fmt.Sprintf("(%s %s %s)", p.expr(ex.A), ex.Op, p.expr(ex.B))
	case *ast.UnOp:
		return p.unOpText(ex)
	case *ast.Xcrement:
		return p.xcrementText(ex)
	case *ast.Call:
		return p.callText(ex)
	case *ast.DiffSwitch:
		parts := make([]string, len(ex.Options))
		for i, o := range ex.Options {
			if o == nil {
				parts[i] = ""
			} else {
				parts[i] = p.expr(o)
			}
		}
		return "(" + strings.Join(parts, ":") + ")"
	case *ast.LabelProperty:
		kw := "offsetof"
		if ex.Kind == ast.TimeOf {
			kw = "timeof"
		}
		return fmt.Sprintf("%s(%s)", kw, p.text(ex.Label))
	case *ast.EnumConst:
		if ex.EnumName != "" {
			return fmt.Sprintf("%s.%s", ex.EnumName, p.text(ex.Res.Name))
		}
		return "." + p.text(ex.Res.Name)
	default:
		return fmt.Sprintf("/* unprintable expr %T */", e)
	}
}

func litIntText(ex *ast.LitInt) string {
	switch ex.Radix {
	case ast.RadixHex:
		return fmt.Sprintf("0x%x", uint32(ex.Value))
	case ast.RadixSignedHex:
		return fmt.Sprintf("-0x%x", -ex.Value)
	case ast.RadixBinary:
		return "0b" + strconv.FormatInt(int64(uint32(ex.Value)), 2)
	case ast.RadixBool:
		if ex.Value != 0 {
			return "true"
		}
		return "false"
	default:
		return strconv.FormatInt(int64(ex.Value), 10)
	}
}

func (p *Printer) unOpText(ex *ast.UnOp) string {
	switch ex.Op {
	case ast.Sin, ast.Cos, ast.Sqrt, ast.CastInt, ast.CastFloat:
		return fmt.Sprintf("%s(%s)", ex.Op, p.expr(ex.A))
	case ast.ReadInt, ast.ReadFloat:
		return fmt.Sprintf("%s%s", ex.Op, p.expr(ex.A))
	default:
		return fmt.Sprintf("%s%s", ex.Op, p.expr(ex.A))
	}
}

func (p *Printer) xcrementText(ex *ast.Xcrement) string {
	sym := "++"
	if ex.Op == ast.Decrement {
		sym = "--"
	}
	if ex.Pre {
		return sym + p.varText(ex.Var)
	}
	return p.varText(ex.Var) + sym
}

func (p *Printer) callText(ex *ast.Call) string {
	var parts []string
	for _, pa := range ex.PseudoArgs {
		parts = append(parts, fmt.Sprintf("@%s=%s", pa.Kind, p.expr(pa.Value)))
	}
	for _, a := range ex.Args {
		parts = append(parts, p.expr(a))
	}
	return fmt.Sprintf("%s(%s)", p.callableText(ex.Callable), strings.Join(parts, ", "))
}
