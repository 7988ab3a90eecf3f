package parse

import (
	"strconv"

	"github.com/zero318/truth/internal/ast"
	"github.com/zero318/truth/internal/context"
	"github.com/zero318/truth/internal/diag"
	"github.com/zero318/truth/internal/ident"
	"github.com/zero318/truth/internal/pos"
)

// Parser turns one source file's tokens into an *ast.ScriptFile, minting a
// fresh ident.ResIdent (via ctx.NewResIdent) at every identifier use site,
// per internal/ident's documented contract that a ResIdent is only ever
// produced during parsing.
//
// Grounded on Consensys-go-corset's hand-rolled recursive-descent idiom
// (Consensys-go-corset/pkg/asm/parser.go: a Parser struct holding the
// current token plus a small lookahead buffer, one parseX method per
// grammar production, precedence-climbing for binary expressions) rather
// than any parser-generator, matching the rest of the pack.
type Parser struct {
	ctx    *context.Context
	lex    *Lexer
	fileID pos.FileID
	buf    []Token
	emit   *diag.ErrorFlag

	// lastSpan is the span of the most recently consumed token that ends a
	// statement production, so parseStmt can compute an accurate overall
	// span without every parseXStmt helper threading it back by hand.
	lastSpan pos.Span
	// loopStack holds the LoopID of every Loop/While/Times currently being
	// parsed, innermost last, so a bare break/continue can bind to its
	// nearest enclosing loop.
	loopStack []ast.LoopID
}

// ParseFile parses file's bytes into a *ast.ScriptFile. Diagnostics are
// reported through emitter in an accumulate-and-continue style: a
// malformed construct reports an error and the parser resynchronizes at
// the next statement/item boundary rather than aborting outright. The
// returned error is diag.ErrReported (wrapped) iff any error was emitted;
// the returned file is still populated on error, for tooling that wants a
// best-effort AST regardless.
func ParseFile(ctx *context.Context, file *pos.File, fileID pos.FileID, emitter diag.Emitter) (*ast.ScriptFile, error) {
	flag := diag.NewErrorFlag(emitter)
	p := &Parser{ctx: ctx, lex: NewLexer(file, fileID, flag), fileID: fileID, emit: flag}
	sf := p.parseScriptFile()
	return sf, flag.AsResult()
}

// ---------------------------------------------------------------------------
// token plumbing
// ---------------------------------------------------------------------------

func (p *Parser) fill(n int) {
	for len(p.buf) <= n {
		p.buf = append(p.buf, p.lex.Next())
	}
}

func (p *Parser) peekN(n int) Token {
	p.fill(n)
	return p.buf[n]
}

func (p *Parser) cur() Token { return p.peekN(0) }

func (p *Parser) advance() Token {
	p.fill(0)
	t := p.buf[0]
	p.buf = p.buf[1:]
	return t
}

func (p *Parser) at(k TokKind) bool { return p.cur().Kind == k }

func (p *Parser) atKw(text string) bool {
	return p.cur().Kind == TIdent && p.cur().Text == text
}

func (p *Parser) accept(k TokKind) (Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	return Token{}, false
}

func (p *Parser) acceptKw(text string) bool {
	if p.atKw(text) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k TokKind, what string) Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorf(p.cur().Span, "expected %s", what)
	return p.cur() // do not consume; caller proceeds best-effort
}

func (p *Parser) expectKw(text string) {
	if !p.acceptKw(text) {
		p.errorf(p.cur().Span, "expected %q", text)
	}
}

func (p *Parser) expectIdent(what string) (string, pos.Span) {
	t := p.expect(TIdent, what)
	return t.Text, t.Span
}

func (p *Parser) errorf(span pos.Span, format string, args ...any) {
	p.emit.Emit(diag.New(diag.Error, diag.CategoryParse, format, args...).
		WithPrimary(span, "here"))
}

func (p *Parser) intern(name string) ident.Ident { return p.ctx.Interner.Intern(name) }

func (p *Parser) newRes(name string) ident.ResIdent { return p.ctx.NewResIdent(p.intern(name)) }

// resync skips tokens until a plausible statement/item boundary, so one
// malformed construct does not cascade into spurious follow-on errors.
func (p *Parser) resync() {
	for {
		switch p.cur().Kind {
		case TEOF, TSemi, TRBrace:
			return
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// top level
// ---------------------------------------------------------------------------

func (p *Parser) parseScriptFile() *ast.ScriptFile {
	start := p.cur().Span
	sf := &ast.ScriptFile{}
	for !p.at(TEOF) {
		switch {
		case p.atKw("mapfile"):
			p.advance()
			s := p.parseStringLiteralText()
			p.expect(TSemi, "';'")
			sf.Mapfiles = append(sf.Mapfiles, s)
		case p.atKw("imagesource"):
			p.advance()
			s := p.parseStringLiteralText()
			p.expect(TSemi, "';'")
			sf.ImageSources = append(sf.ImageSources, s)
		default:
			item := p.parseItem()
			if item != nil {
				sf.Items = append(sf.Items, item)
			}
		}
	}
	end := p.cur().Span
	sf.SourceSpan = start.Merge(end)
	return sf
}

func (p *Parser) parseStringLiteralText() string {
	t := p.expect(TString, "a string literal")
	return string(t.StrVal)
}

// ---------------------------------------------------------------------------
// items
// ---------------------------------------------------------------------------

var scalarTypeKw = map[string]ast.ScalarType{"int": ast.Int, "float": ast.Float, "string": ast.String}

func (p *Parser) parseItem() ast.Item {
	switch {
	case p.atKw("meta"):
		return p.parseMetaItem()
	case p.atKw("script"):
		return p.parseScriptItem(ast.ScriptBlock)
	case p.atKw("timeline"):
		return p.parseScriptItem(ast.TimelineBlock)
	case p.atKw("const"):
		return p.parseConstOrFuncItem()
	case p.atKw("inline"):
		start := p.cur().Span
		p.advance()
		return p.parseFuncItem(start, ast.FuncInline)
	case p.atKw("void") || p.atKw("int") || p.atKw("float") || p.atKw("string"):
		return p.parseFuncItem(p.cur().Span, ast.FuncNone)
	default:
		p.errorf(p.cur().Span, "expected a top-level declaration")
		p.resync()
		if !p.accept(TSemi) {
			p.accept(TRBrace) // drop a stray '}' so top-level parsing always makes progress
		}
		return nil
	}
}

// parseConstOrFuncItem disambiguates `const TYPE name ( ... )` (a `const`
// qualified function) from `const TYPE name = value;` (a const variable) by
// looking one token past the name.
func (p *Parser) parseConstOrFuncItem() ast.Item {
	start := p.cur().Span
	p.advance() // 'const'
	if p.peekN(2).Kind == TLParen {
		return p.parseFuncItem(start, ast.FuncConst)
	}
	ty, ok := scalarTypeKw[p.cur().Text]
	if !p.at(TIdent) || !ok {
		p.errorf(p.cur().Span, "expected a scalar type after 'const'")
	}
	p.advance()
	name, _ := p.expectIdent("a constant name")
	res := p.newRes(name)
	p.expect(TEq, "'='")
	value := p.parseExpr()
	end := p.expect(TSemi, "';'").Span
	return &ast.ConstItem{ItemSpan: start.Merge(end), Type: ty, Name: res, Value: value}
}

func (p *Parser) parseFuncItem(start pos.Span, qual ast.FuncQualifier) ast.Item {
	ret := p.parseExprTypeKw()
	name, _ := p.expectIdent("a function name")
	res := p.newRes(name)
	p.expect(TLParen, "'('")
	var params []ast.FuncParam
	for !p.at(TRParen) && !p.at(TEOF) {
		pstart := p.cur().Span
		pty := p.parseVarTypeKw()
		pname, _ := p.expectIdent("a parameter name")
		params = append(params, ast.FuncParam{ParamSpan: pstart.Merge(p.cur().Span), Type: pty, Name: p.newRes(pname)})
		if !p.accept(TComma) {
			break
		}
	}
	p.expect(TRParen, "')'")
	var body *ast.Block
	if p.at(TLBrace) {
		body = p.parseBlock()
	} else {
		p.expect(TSemi, "';' or a function body")
	}
	end := p.cur().Span
	if body != nil {
		end = body.Span()
	}
	return &ast.FuncItem{ItemSpan: start.Merge(end), Qualifier: qual, Return: ret, Name: res, Params: params, Body: body}
}

func (p *Parser) parseExprTypeKw() ast.ExprType {
	if p.acceptKw("void") {
		return ast.ExprVoid
	}
	ty := p.parseScalarTypeKw()
	return ast.FromScalarExpr(ty)
}

func (p *Parser) parseVarTypeKw() ast.VarType {
	if p.acceptKw("var") {
		return ast.VarUntyped
	}
	return ast.FromScalar(p.parseScalarTypeKw())
}

func (p *Parser) parseScalarTypeKw() ast.ScalarType {
	ty, ok := scalarTypeKw[p.cur().Text]
	if p.at(TIdent) && ok {
		p.advance()
		return ty
	}
	p.errorf(p.cur().Span, "expected a type ('int', 'float' or 'string')")
	return ast.Int
}

func (p *Parser) parseScriptItem(kind ast.ScriptKind) ast.Item {
	start := p.cur().Span
	p.advance() // 'script'/'timeline'
	var numberID *int
	if p.at(TInt) {
		n := int(p.advance().IntVal)
		numberID = &n
	}
	name, _ := p.expectIdent("a script name")
	body := p.parseBlock()
	return &ast.ScriptItem{ItemSpan: start.Merge(body.Span()), Kind: kind, NumberID: numberID, Name: name, Body: body}
}

func (p *Parser) parseMetaItem() ast.Item {
	start := p.cur().Span
	kw := p.advance().Text
	p.expect(TLBrace, "'{'")
	var fields []ast.MetaField
	for !p.at(TRBrace) && !p.at(TEOF) {
		fstart := p.cur().Span
		name, _ := p.expectIdent("a field name")
		p.expect(TColon, "':'")
		value := p.parseExpr()
		fields = append(fields, ast.MetaField{FieldSpan: fstart.Merge(value.Span()), Name: name, Value: value})
		if !p.accept(TSemi) && !p.accept(TComma) {
			break
		}
	}
	end := p.expect(TRBrace, "'}'").Span
	return &ast.MetaItem{ItemSpan: start.Merge(end), Keyword: kw, Fields: fields}
}

// ---------------------------------------------------------------------------
// blocks / statements
// ---------------------------------------------------------------------------

// parseBlock parses a brace-delimited statement list and wraps it with the
// virtual NoInstruction bookends every Block must carry.
func (p *Parser) parseBlock() *ast.Block {
	start := p.expect(TLBrace, "'{'").Span
	stmts := []*ast.Stmt{{StmtSpan: start, Kind: &ast.NoInstruction{}}}
	for !p.at(TRBrace) && !p.at(TEOF) {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		}
	}
	end := p.expect(TRBrace, "'}'").Span
	stmts = append(stmts, &ast.Stmt{StmtSpan: end, Kind: &ast.NoInstruction{}})
	return &ast.Block{BlockSpan: start.Merge(end), Stmts: stmts}
}

// isDiffLabelAhead reports whether the upcoming tokens are `{ LETTERS } :`,
// the one construct besides an anonymous nested block that can start with
// '{'.
func (p *Parser) isDiffLabelAhead() bool {
	return p.peekN(0).Kind == TLBrace && p.peekN(1).Kind == TIdent &&
		p.peekN(2).Kind == TRBrace && p.peekN(3).Kind == TColon
}

func (p *Parser) parseStmt() *ast.Stmt {
	var diffLabel *ast.DiffLabel
	if p.isDiffLabelAhead() {
		lstart := p.advance().Span // '{'
		letters := p.advance()     // ident
		rend := p.advance().Span   // '}'
		p.advance()                // ':'
		diffLabel = &ast.DiffLabel{LabelSpan: lstart.Merge(rend), Letters: letters.Text}
	}
	start := p.cur().Span
	kind := p.parseStmtKind()
	if kind == nil {
		return nil
	}
	end := p.lastSpan
	span := start.Merge(end)
	if diffLabel != nil {
		span = diffLabel.LabelSpan.Merge(end)
	}
	return &ast.Stmt{StmtSpan: span, DiffLabel: diffLabel, Kind: kind}
}

func (p *Parser) noteEnd(span pos.Span) pos.Span { p.lastSpan = span; return span }

func (p *Parser) parseStmtKind() ast.StmtKind {
	switch {
	case p.atKw("goto"):
		return p.parseJumpStmt()
	case p.atKw("break"):
		p.advance()
		p.noteEnd(p.expect(TSemi, "';'").Span)
		return &ast.BreakStmt{Loop: p.currentLoop()}
	case p.atKw("continue"):
		p.advance()
		p.noteEnd(p.expect(TSemi, "';'").Span)
		return &ast.ContinueStmt{Loop: p.currentLoop()}
	case p.atKw("if"):
		return p.parseIfStmt(false)
	case p.atKw("unless"):
		return p.parseUnlessStmt()
	case p.atKw("while"):
		return p.parseWhileStmt()
	case p.atKw("do"):
		return p.parseDoWhileStmt()
	case p.atKw("loop"):
		return p.parseLoopStmt()
	case p.atKw("times"):
		return p.parseTimesStmt()
	case p.atKw("return"):
		return p.parseReturnStmt()
	case p.atKw("interrupt"):
		return p.parseInterruptLabelStmt()
	case p.atKw("var"):
		return p.parseDeclarationStmt()
	case (p.atKw("int") || p.atKw("float") || p.atKw("string")) && p.peekN(1).Kind == TIdent && p.peekN(2).Kind != TLParen:
		return p.parseDeclarationStmt()
	case p.atKw("const") || p.atKw("inline") ||
		((p.atKw("void") || p.atKw("int") || p.atKw("float") || p.atKw("string")) && p.peekN(2).Kind == TLParen):
		item := p.parseItem()
		if item != nil {
			p.noteEnd(item.Span())
		}
		return &ast.ItemDefStmt{Item: item}
	case p.at(TAt):
		return p.parseCallSubStmt(true)
	case p.atKw("async"):
		return p.parseCallSubStmt(false)
	case p.at(TLBrace):
		body := p.parseBlock()
		p.noteEnd(body.Span())
		return &ast.BlockStmt{Body: body}
	case p.at(TInt) && p.peekN(1).Kind == TColon:
		return p.parseTimeLabelStmt(false)
	case p.at(TPlus) && p.peekN(1).Kind == TInt && p.peekN(2).Kind == TColon:
		p.advance() // '+'
		return p.parseTimeLabelStmt(true)
	case p.at(TIdent) && p.peekN(1).Kind == TColon:
		name, _ := p.expectIdent("a label name")
		colon := p.advance().Span // ':'
		p.noteEnd(colon)
		return &ast.PlainLabelStmt{Name: p.intern(name)}
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) parseJumpStmt() ast.StmtKind {
	p.advance() // 'goto'
	name, _ := p.expectIdent("a label name")
	var time ast.Expr
	if p.accept(TAt) {
		time = p.parseExpr()
	}
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.JumpStmt{Destination: p.intern(name), Time: time}
}

func (p *Parser) parseIfStmt(unlessGoto bool) ast.StmtKind {
	p.advance() // 'if'
	p.expect(TLParen, "'('")
	cond := p.parseExpr()
	p.expect(TRParen, "')'")
	if p.atKw("goto") {
		return p.finishCondJump(cond, false)
	}
	var arms []ast.CondArm
	body := p.parseBlock()
	arms = append(arms, ast.CondArm{Cond: cond, Body: body})
	for p.atKw("elif") {
		p.advance()
		p.expect(TLParen, "'('")
		c := p.parseExpr()
		p.expect(TRParen, "')'")
		b := p.parseBlock()
		arms = append(arms, ast.CondArm{Cond: c, Body: b})
	}
	var elseBlock *ast.Block
	if p.acceptKw("else") {
		elseBlock = p.parseBlock()
		p.noteEnd(elseBlock.Span())
	} else {
		p.noteEnd(arms[len(arms)-1].Body.Span())
	}
	return &ast.CondChainStmt{Arms: arms, Else: elseBlock}
}

// parseUnlessStmt handles the single-statement `unless (cond) goto l;` form;
// CondJumpStmt.Unless exists precisely for this pre-desugar shape.
func (p *Parser) parseUnlessStmt() ast.StmtKind {
	p.advance() // 'unless'
	p.expect(TLParen, "'('")
	cond := p.parseExpr()
	p.expect(TRParen, "')'")
	return p.finishCondJump(cond, true)
}

func (p *Parser) finishCondJump(cond ast.Expr, unless bool) ast.StmtKind {
	p.expectKw("goto")
	name, _ := p.expectIdent("a label name")
	var time ast.Expr
	if p.accept(TAt) {
		time = p.parseExpr()
	}
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.CondJumpStmt{Unless: unless, Cond: cond, Destination: p.intern(name), Time: time}
}

func (p *Parser) currentLoop() ast.LoopID {
	if len(p.loopStack) == 0 {
		p.errorf(p.cur().Span, "'break'/'continue' outside of a loop")
		return 0
	}
	return p.loopStack[len(p.loopStack)-1]
}

func (p *Parser) pushLoop() ast.LoopID {
	id := p.ctx.NewLoopID()
	p.loopStack = append(p.loopStack, id)
	return id
}

func (p *Parser) popLoop() { p.loopStack = p.loopStack[:len(p.loopStack)-1] }

func (p *Parser) parseWhileStmt() ast.StmtKind {
	p.advance() // 'while'
	p.expect(TLParen, "'('")
	cond := p.parseExpr()
	p.expect(TRParen, "')'")
	loop := p.pushLoop()
	body := p.parseBlock()
	p.popLoop()
	p.noteEnd(body.Span())
	return &ast.WhileStmt{Do: false, Loop: loop, Cond: cond, Body: body}
}

func (p *Parser) parseDoWhileStmt() ast.StmtKind {
	p.advance() // 'do'
	loop := p.pushLoop()
	body := p.parseBlock()
	p.popLoop()
	p.expectKw("while")
	p.expect(TLParen, "'('")
	cond := p.parseExpr()
	p.expect(TRParen, "')'")
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.WhileStmt{Do: true, Loop: loop, Cond: cond, Body: body}
}

func (p *Parser) parseLoopStmt() ast.StmtKind {
	p.advance() // 'loop'
	loop := p.pushLoop()
	body := p.parseBlock()
	p.popLoop()
	p.noteEnd(body.Span())
	return &ast.LoopStmt{Loop: loop, Body: body}
}

// parseTimesStmt parses `times(count) { ... }`, optionally naming an
// explicit clobber register/variable via `times(count) clobber(var) { ... }`
// for callers that must pin the hidden loop counter to a specific storage
// location.
func (p *Parser) parseTimesStmt() ast.StmtKind {
	p.advance() // 'times'
	p.expect(TLParen, "'('")
	count := p.parseExpr()
	p.expect(TRParen, "')'")
	var clobber *ast.Var
	if p.acceptKw("clobber") {
		p.expect(TLParen, "'('")
		clobber = p.parseVarOperand()
		p.expect(TRParen, "')'")
	}
	loop := p.pushLoop()
	body := p.parseBlock()
	p.popLoop()
	p.noteEnd(body.Span())
	return &ast.TimesStmt{Loop: loop, Clobber: clobber, Count: count, Body: body}
}

func (p *Parser) parseReturnStmt() ast.StmtKind {
	p.advance() // 'return'
	var value ast.Expr
	if !p.at(TSemi) {
		value = p.parseExpr()
	}
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.ReturnStmt{Value: value}
}

func (p *Parser) parseInterruptLabelStmt() ast.StmtKind {
	p.advance() // 'interrupt'
	p.expect(TLBracket, "'['")
	n := p.expect(TInt, "an integer").IntVal
	p.expect(TRBracket, "']'")
	p.noteEnd(p.expect(TColon, "':'").Span)
	return &ast.InterruptLabelStmt{N: int(n)}
}

func (p *Parser) parseTimeLabelStmt(relative bool) ast.StmtKind {
	n := p.advance().IntVal // int literal
	p.noteEnd(p.expect(TColon, "':'").Span)
	return &ast.TimeLabelStmt{Relative: relative, N: int(n)}
}

func (p *Parser) parseDeclarationStmt() ast.StmtKind {
	ty := p.parseVarTypeKw()
	var entries []ast.DeclEntry
	for {
		name, _ := p.expectIdent("a variable name")
		res := p.newRes(name)
		var init ast.Expr
		if p.accept(TEq) {
			init = p.parseExpr()
		}
		entries = append(entries, ast.DeclEntry{Name: res, Init: init})
		if !p.accept(TComma) {
			break
		}
	}
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.DeclarationStmt{Type: ty, Entries: entries}
}

func (p *Parser) parseCallSubStmt(atSymbol bool) ast.StmtKind {
	async := ast.AsyncNone
	if atSymbol {
		p.advance() // '@'
	} else {
		p.advance() // 'async'
		async = ast.AsyncAsync
	}
	name, nspan := p.expectIdent("a subroutine name")
	callable := p.callableNameFor(name, nspan)
	p.expect(TLParen, "'('")
	args := p.parseArgList()
	p.expect(TRParen, "')'")
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.CallSubStmt{AtSymbol: atSymbol, Async: async, Func: callable, Args: args}
}

// parseSimpleStmt parses an assignment or a bare expression statement; the
// two share a prefix (an lvalue-shaped Var, or any expression) so both are
// parsed via the ordinary expression grammar and reinterpreted afterward.
func (p *Parser) parseSimpleStmt() ast.StmtKind {
	e := p.parseExpr()
	if ve, ok := e.(*ast.VarExpr); ok {
		if op, ok := p.tryAssignOp(); ok {
			value := p.parseExpr()
			p.noteEnd(p.expect(TSemi, "';'").Span)
			return &ast.AssignStmt{Var: ve.Var, Op: op, Value: value}
		}
	}
	p.noteEnd(p.expect(TSemi, "';'").Span)
	return &ast.ExprStmt{Expr: e}
}

var assignOpTokens = map[TokKind]ast.AssignOpKind{
	TEq:         ast.Assign,
	TPlusEq:     ast.AssignAdd,
	TMinusEq:    ast.AssignSub,
	TStarEq:     ast.AssignMul,
	TSlashEq:    ast.AssignDiv,
	TPercentEq:  ast.AssignRem,
	TAmpEq:      ast.AssignBitAnd,
	TPipeEq:     ast.AssignBitOr,
	TCaretEq:    ast.AssignBitXor,
	TShlEq:      ast.AssignShl,
	TShrEq:      ast.AssignShr,
}

func (p *Parser) tryAssignOp() (ast.AssignOpKind, bool) {
	if op, ok := assignOpTokens[p.cur().Kind]; ok {
		p.advance()
		return op, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpr() ast.Expr { return p.parseTernary() }

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseLogOr()
	if p.accept(TQuestion) {
		then := p.parseTernary()
		p.expect(TColon, "':'")
		els := p.parseTernary()
		return ast.NewTernary(cond.Span().Merge(els.Span()), cond, then, els)
	}
	return cond
}

func (p *Parser) parseLogOr() ast.Expr {
	a := p.parseLogAnd()
	for p.at(TOrOr) {
		p.advance()
		b := p.parseLogAnd()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), ast.LogOr, a, b)
	}
	return a
}

func (p *Parser) parseLogAnd() ast.Expr {
	a := p.parseBitOr()
	for p.at(TAndAnd) {
		p.advance()
		b := p.parseBitOr()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), ast.LogAnd, a, b)
	}
	return a
}

func (p *Parser) parseBitOr() ast.Expr {
	a := p.parseBitXor()
	for p.at(TPipe) {
		p.advance()
		b := p.parseBitXor()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), ast.BitOr, a, b)
	}
	return a
}

func (p *Parser) parseBitXor() ast.Expr {
	a := p.parseBitAnd()
	for p.at(TCaret) {
		p.advance()
		b := p.parseBitAnd()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), ast.BitXor, a, b)
	}
	return a
}

func (p *Parser) parseBitAnd() ast.Expr {
	a := p.parseEquality()
	for p.at(TAmp) {
		p.advance()
		b := p.parseEquality()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), ast.BitAnd, a, b)
	}
	return a
}

var equalityOps = map[TokKind]ast.BinOpKind{TEqEq: ast.Eq, TNe: ast.Ne}

func (p *Parser) parseEquality() ast.Expr {
	a := p.parseRelational()
	for {
		op, ok := equalityOps[p.cur().Kind]
		if !ok {
			return a
		}
		p.advance()
		b := p.parseRelational()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), op, a, b)
	}
}

var relationalOps = map[TokKind]ast.BinOpKind{TLt: ast.Lt, TLe: ast.Le, TGt: ast.Gt, TGe: ast.Ge}

func (p *Parser) parseRelational() ast.Expr {
	a := p.parseShift()
	for {
		op, ok := relationalOps[p.cur().Kind]
		if !ok {
			return a
		}
		p.advance()
		b := p.parseShift()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), op, a, b)
	}
}

var shiftOps = map[TokKind]ast.BinOpKind{TShl: ast.Shl, TShr: ast.Shr, TUShr: ast.UShr}

func (p *Parser) parseShift() ast.Expr {
	a := p.parseAdditive()
	for {
		op, ok := shiftOps[p.cur().Kind]
		if !ok {
			return a
		}
		p.advance()
		b := p.parseAdditive()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), op, a, b)
	}
}

var additiveOps = map[TokKind]ast.BinOpKind{TPlus: ast.Add, TMinus: ast.Sub}

func (p *Parser) parseAdditive() ast.Expr {
	a := p.parseMultiplicative()
	for {
		op, ok := additiveOps[p.cur().Kind]
		if !ok {
			return a
		}
		p.advance()
		b := p.parseMultiplicative()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), op, a, b)
	}
}

var multiplicativeOps = map[TokKind]ast.BinOpKind{TStar: ast.Mul, TSlash: ast.Div, TPercent: ast.Rem}

func (p *Parser) parseMultiplicative() ast.Expr {
	a := p.parseUnary()
	for {
		op, ok := multiplicativeOps[p.cur().Kind]
		if !ok {
			return a
		}
		p.advance()
		b := p.parseUnary()
		a = ast.NewBinOp(a.Span().Merge(b.Span()), op, a, b)
	}
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur().Kind {
	case TMinus:
		start := p.advance().Span
		a := p.parseUnary()
		return ast.NewUnOp(start.Merge(a.Span()), ast.Neg, a)
	case TBang:
		start := p.advance().Span
		a := p.parseUnary()
		return ast.NewUnOp(start.Merge(a.Span()), ast.Not, a)
	case TTilde:
		start := p.advance().Span
		a := p.parseUnary()
		return ast.NewUnOp(start.Merge(a.Span()), ast.BitNot, a)
	case TPlusPlus, TMinusMinus:
		kind := ast.Increment
		if p.cur().Kind == TMinusMinus {
			kind = ast.Decrement
		}
		start := p.advance().Span
		v := p.parseVarOperand()
		return ast.NewXcrement(start.Merge(v.Span()), kind, true, v)
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		if p.cur().Kind != TPlusPlus && p.cur().Kind != TMinusMinus {
			return e
		}
		ve, ok := e.(*ast.VarExpr)
		if !ok {
			return e
		}
		kind := ast.Increment
		if p.cur().Kind == TMinusMinus {
			kind = ast.Decrement
		}
		end := p.advance().Span
		e = ast.NewXcrement(e.Span().Merge(end), kind, false, ve.Var)
	}
}

// parseVarOperand parses a bare Var (no call/enum-const alternatives), used
// where the grammar requires an lvalue: ++/-- operands and times()'s
// optional clobber variable.
func (p *Parser) parseVarOperand() *ast.Var {
	start := p.cur().Span
	sigil, hasSig := p.tryParseSigil()
	v := p.parseVarBody(start, sigil, hasSig)
	return v
}

func (p *Parser) tryParseSigil() (ast.UnOpKind, bool) {
	switch p.cur().Kind {
	case TDollar:
		p.advance()
		return ast.ReadInt, true
	case TPercent:
		p.advance()
		return ast.ReadFloat, true
	default:
		return 0, false
	}
}

func (p *Parser) parseVarBody(start pos.Span, sigil ast.UnOpKind, hasSig bool) *ast.Var {
	if p.atKw("reg") && p.peekN(1).Kind == TLBracket {
		p.advance() // 'reg'
		p.advance() // '['
		n := p.expect(TInt, "a register number").IntVal
		end := p.expect(TRBracket, "']'").Span
		return &ast.Var{VarSpan: start.Merge(end), Sigil: sigil, HasSig: hasSig,
			Name: &ast.RegVarName{Reg: ast.RegID(n)}}
	}
	name, nspan := p.expectIdent("a variable name")
	res := p.newRes(name)
	return &ast.Var{VarSpan: start.Merge(nspan), Sigil: sigil, HasSig: hasSig,
		Name: &ast.NormalVarName{Res: res}}
}

// parsePrimary parses the innermost expression forms: literals,
// parenthesized expressions / DiffSwitch, sigiled or plain variable/call
// references, enum constants, casts, the `sin`/`cos`/`sqrt` builtins, and
// `offsetof`/`timeof`.
func (p *Parser) parsePrimary() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case TInt:
		t := p.advance()
		return ast.NewLitInt(t.Span, t.IntVal, t.Radix)
	case TFloat:
		t := p.advance()
		return ast.NewLitFloat(t.Span, t.FloatVal)
	case TString:
		t := p.advance()
		return ast.NewLitString(t.Span, t.StrVal)
	case TLParen:
		return p.parseParenOrDiffSwitch()
	case TDot:
		p.advance()
		name, nspan := p.expectIdent("an enum constant")
		res := p.newRes(name)
		return ast.NewEnumConst(start.Merge(nspan), "", res)
	case TDollar, TPercent:
		sigil, hasSig := p.tryParseSigil()
		v := p.parseVarBody(start, sigil, hasSig)
		return ast.NewVarExpr(v)
	case TIdent:
		return p.parseIdentLed(start)
	default:
		p.errorf(start, "expected an expression")
		p.advance()
		return ast.NewLitInt(start, 0, ast.RadixDecimal)
	}
}

func (p *Parser) parseParenOrDiffSwitch() ast.Expr {
	start := p.advance().Span // '('
	var options []ast.Expr
	sawColon := false
	options = append(options, p.parseOptionalOption())
	for p.at(TColon) {
		p.advance()
		sawColon = true
		options = append(options, p.parseOptionalOption())
	}
	end := p.expect(TRParen, "')'").Span
	if !sawColon {
		if options[0] == nil {
			p.errorf(start.Merge(end), "expected an expression inside parentheses")
			return ast.NewLitInt(start.Merge(end), 0, ast.RadixDecimal)
		}
		return options[0] // plain parenthesized expression
	}
	return ast.NewDiffSwitch(start.Merge(end), options)
}

// parseOptionalOption parses one DiffSwitch slot, which may be empty
// ("use the value from an adjacent easier difficulty").
func (p *Parser) parseOptionalOption() ast.Expr {
	if p.at(TColon) || p.at(TRParen) {
		return nil
	}
	return p.parseTernary()
}

// parseIdentLed parses every primary form that starts with a bare
// identifier: `EnumName.ident`, `reg[n]`, `sin`/`cos`/`sqrt`(x),
// `offsetof`/`timeof`(label), a plain Var, or a Call.
func (p *Parser) parseIdentLed(start pos.Span) ast.Expr {
	text := p.cur().Text
	if p.peekN(1).Kind == TDot && p.peekN(2).Kind == TIdent {
		enumName := p.advance().Text
		p.advance() // '.'
		member, mspan := p.expectIdent("an enum member")
		res := p.newRes(member)
		return ast.NewEnumConst(start.Merge(mspan), enumName, res)
	}
	if (text == "sin" || text == "cos" || text == "sqrt") && p.peekN(1).Kind == TLParen {
		p.advance()
		p.advance() // '('
		a := p.parseExpr()
		end := p.expect(TRParen, "')'").Span
		op := map[string]ast.UnOpKind{"sin": ast.Sin, "cos": ast.Cos, "sqrt": ast.Sqrt}[text]
		return ast.NewUnOp(start.Merge(end), op, a)
	}
	if (text == "int" || text == "float") && p.peekN(1).Kind == TLParen {
		p.advance()
		p.advance() // '('
		a := p.parseExpr()
		end := p.expect(TRParen, "')'").Span
		op := ast.CastInt
		if text == "float" {
			op = ast.CastFloat
		}
		return ast.NewUnOp(start.Merge(end), op, a)
	}
	if (text == "offsetof" || text == "timeof") && p.peekN(1).Kind == TLParen {
		p.advance()
		p.advance() // '('
		label, _ := p.expectIdent("a label name")
		end := p.expect(TRParen, "')'").Span
		kind := ast.OffsetOf
		if text == "timeof" {
			kind = ast.TimeOf
		}
		return ast.NewLabelProperty(start.Merge(end), kind, p.intern(label))
	}
	if text == "reg" && p.peekN(1).Kind == TLBracket {
		v := p.parseVarBody(start, 0, false)
		return ast.NewVarExpr(v)
	}
	if p.peekN(1).Kind == TLParen {
		name, nspan := p.expectIdent("a function name")
		callable := p.callableNameFor(name, nspan)
		p.expect(TLParen, "'('")
		pseudo, args := p.parsePseudoAndArgList()
		end := p.expect(TRParen, "')'").Span
		return ast.NewCall(start.Merge(end), callable, pseudo, args)
	}
	v := p.parseVarBody(start, 0, false)
	return ast.NewVarExpr(v)
}

// callableNameFor builds the CallableName for a parsed identifier, special
// casing the raw `ins_N` spelling.
func (p *Parser) callableNameFor(name string, span pos.Span) ast.CallableName {
	if n, ok := parseInsOpcode(name); ok {
		return &ast.InsCallableName{Opcode: n}
	}
	return &ast.NormalCallableName{Res: p.newRes(name)}
}

func parseInsOpcode(name string) (int, bool) {
	const prefix = "ins_"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return 0, false
	}
	n, err := strconv.Atoi(name[len(prefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (p *Parser) parseArgList() []ast.Expr {
	var args []ast.Expr
	for !p.at(TRParen) && !p.at(TEOF) {
		args = append(args, p.parseExpr())
		if !p.accept(TComma) {
			break
		}
	}
	return args
}

var pseudoArgKw = map[string]ast.PseudoArgKind{
	"mask": ast.PseudoMask, "pop": ast.PseudoPop, "blob": ast.PseudoBlob, "arg0": ast.PseudoArg0,
}

// parsePseudoAndArgList parses a call's argument list, which may be
// prefixed by any number of `@kind=value` pseudo-arguments before the ordinary positional arguments begin.
func (p *Parser) parsePseudoAndArgList() ([]ast.PseudoArg, []ast.Expr) {
	var pseudo []ast.PseudoArg
	for p.at(TAt) {
		pstart := p.advance().Span // '@'
		name, _ := p.expectIdent("a pseudo-argument name")
		kind, ok := pseudoArgKw[name]
		if !ok {
			p.errorf(pstart, "unknown pseudo-argument '@%s'", name)
		}
		p.expect(TEq, "'='")
		value := p.parseExpr()
		pseudo = append(pseudo, ast.PseudoArg{ArgSpan: pstart.Merge(value.Span()), Kind: kind, Value: value})
		p.accept(TComma)
	}
	return pseudo, p.parseArgList()
}
