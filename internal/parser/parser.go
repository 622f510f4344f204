// Package parser implements a recursive-descent/precedence-climbing
// parser producing internal/ast nodes. Like internal/lexer, it is a
// front-end collaborator of the engine, kept here so the repository runs
// end-to-end from source text.
package parser

import (
	"fmt"
	"strconv"

	"lumen/internal/ast"
	"lumen/internal/lexer"
)

type Parser struct {
	toks []lexer.Token
	pos  int
	errs []string
}

func New(toks []lexer.Token) *Parser { return &Parser{toks: toks} }

// Parse consumes the whole token stream and returns the top-level block
// plus any syntax errors encountered (best-effort recovery at statement
// boundaries).
func (p *Parser) Parse() (*ast.Block, []string) {
	var stmts []ast.Stmt
	for !p.atEnd() {
		stmts = append(stmts, p.statement())
	}
	return ast.NewBlock(1, stmts, false), p.errs
}

// ---- token helpers ----

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) atEnd() bool       { return p.cur().Type == lexer.TokEOF }
func (p *Parser) line() int         { return p.cur().Line }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(tt lexer.TokenType) bool { return p.cur().Type == tt }

func (p *Parser) match(tt lexer.TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt lexer.TokenType, what string) lexer.Token {
	if p.check(tt) {
		return p.advance()
	}
	p.errs = append(p.errs, fmt.Sprintf("line %d: expected %s, got %q", p.line(), what, p.cur().Lexeme))
	return p.advance()
}

func (p *Parser) syncTo(terms ...lexer.TokenType) {
	for !p.atEnd() {
		for _, t := range terms {
			if p.check(t) {
				return
			}
		}
		p.advance()
	}
}

// ---- statements ----

func (p *Parser) statement() ast.Stmt {
	line := p.line()
	switch {
	case p.match(lexer.TokFunction):
		return p.routineDef(line, false)
	case p.match(lexer.TokVar):
		return p.decl(line, false)
	case p.match(lexer.TokLocal):
		if p.match(lexer.TokFunction) {
			return p.routineDef(line, true)
		}
		p.match(lexer.TokVar) // "var" is optional after "local"
		return p.decl(line, true)
	case p.match(lexer.TokIf):
		return p.ifStmt(line)
	case p.match(lexer.TokWhile):
		return p.whileStmt(line)
	case p.match(lexer.TokFor):
		return p.forStmt(line)
	case p.match(lexer.TokForeach):
		return p.foreachStmt(line)
	case p.match(lexer.TokBreak):
		return ast.NewLoopExit(line, true)
	case p.match(lexer.TokContinue):
		return ast.NewLoopExit(line, false)
	case p.match(lexer.TokReturn):
		return p.returnStmt(line)
	case p.match(lexer.TokPrint):
		return p.printStmt(line, true)
	case p.match(lexer.TokWrite):
		return p.printStmt(line, false)
	case p.match(lexer.TokAssert):
		return p.assertStmt(line)
	case p.match(lexer.TokThrow):
		return ast.NewThrow(line, p.expression())
	default:
		e := p.expression()
		return ast.NewExprStmt(line, e)
	}
}

func (p *Parser) block(enders ...lexer.TokenType) *ast.Block {
	line := p.line()
	var stmts []ast.Stmt
	for !p.atEnd() {
		for _, e := range enders {
			if p.check(e) {
				return ast.NewBlock(line, stmts, true)
			}
		}
		stmts = append(stmts, p.statement())
	}
	return ast.NewBlock(line, stmts, true)
}

func (p *Parser) decl(line int, local bool) ast.Stmt {
	var names []string
	names = append(names, p.expect(lexer.TokIdent, "identifier").Lexeme)
	for p.match(lexer.TokComma) {
		names = append(names, p.expect(lexer.TokIdent, "identifier").Lexeme)
	}
	var rhs []ast.Expr
	if p.match(lexer.TokEqual) {
		rhs = append(rhs, p.expression())
		for p.match(lexer.TokComma) {
			rhs = append(rhs, p.expression())
		}
	}
	return ast.NewDecl(line, names, rhs, local)
}

func (p *Parser) ifStmt(line int) ast.Stmt {
	var conds []ast.IfCond
	cond := p.expression()
	p.expect(lexer.TokThen, "'then'")
	body := p.block(lexer.TokElsif, lexer.TokElse, lexer.TokEnd)
	conds = append(conds, ast.IfCond{Cond: cond, Block: body})
	for p.match(lexer.TokElsif) {
		c := p.expression()
		p.expect(lexer.TokThen, "'then'")
		b := p.block(lexer.TokElsif, lexer.TokElse, lexer.TokEnd)
		conds = append(conds, ast.IfCond{Cond: c, Block: b})
	}
	var elseBlock *ast.Block
	if p.match(lexer.TokElse) {
		elseBlock = p.block(lexer.TokEnd)
	}
	p.expect(lexer.TokEnd, "'end'")
	return ast.NewIf(line, conds, elseBlock)
}

func (p *Parser) whileStmt(line int) ast.Stmt {
	cond := p.expression()
	p.expect(lexer.TokDo, "'do'")
	body := p.block(lexer.TokEnd)
	p.expect(lexer.TokEnd, "'end'")
	return ast.NewWhile(line, cond, body)
}

func (p *Parser) forStmt(line int) ast.Stmt {
	v := p.expect(lexer.TokIdent, "loop variable").Lexeme
	p.expect(lexer.TokEqual, "'='")
	start := p.expression()
	down := false
	if p.match(lexer.TokDownto) {
		down = true
	} else {
		p.expect(lexer.TokTo, "'to' or 'downto'")
	}
	end := p.expression()
	var step ast.Expr
	if p.match(lexer.TokStep) {
		step = p.expression()
	}
	p.expect(lexer.TokDo, "'do'")
	body := p.block(lexer.TokEnd)
	p.expect(lexer.TokEnd, "'end'")
	return ast.NewFor(line, v, start, end, step, down, body)
}

func (p *Parser) foreachStmt(line int) ast.Stmt {
	key := p.expect(lexer.TokIdent, "loop key variable").Lexeme
	value := ""
	refValue := false
	if p.match(lexer.TokComma) {
		if p.match(lexer.TokRef) {
			refValue = true
		}
		value = p.expect(lexer.TokIdent, "loop value variable").Lexeme
	}
	p.expect(lexer.TokIn, "'in'")
	iterable := p.expression()
	p.expect(lexer.TokDo, "'do'")
	body := p.block(lexer.TokEnd)
	p.expect(lexer.TokEnd, "'end'")
	return ast.NewForeach(line, key, value, refValue, iterable, body)
}

func (p *Parser) returnStmt(line int) ast.Stmt {
	if p.atStmtEnd() {
		return ast.NewReturn(line, nil)
	}
	return ast.NewReturn(line, p.expression())
}

func (p *Parser) printStmt(line int, newline bool) ast.Stmt {
	var args []ast.Expr
	if !p.atStmtEnd() {
		args = append(args, p.expression())
		for p.match(lexer.TokComma) {
			args = append(args, p.expression())
		}
	}
	return ast.NewPrint(line, args, newline)
}

func (p *Parser) assertStmt(line int) ast.Stmt {
	cond := p.expression()
	var msg ast.Expr
	if p.match(lexer.TokComma) {
		msg = p.expression()
	}
	return ast.NewAssert(line, cond, msg)
}

// atStmtEnd is a heuristic for statements whose trailing expression is
// optional: true only at end/else/elsif, end of input and ';'. Newlines
// are not preserved by the lexer, so any other next token is parsed as the
// start of the trailing expression.
func (p *Parser) atStmtEnd() bool {
	switch p.cur().Type {
	case lexer.TokEnd, lexer.TokElse, lexer.TokElsif, lexer.TokEOF, lexer.TokSemicolon:
		return true
	}
	return false
}

func (p *Parser) routineDef(line int, local bool) ast.Stmt {
	name := p.expect(lexer.TokIdent, "function name").Lexeme
	p.expect(lexer.TokLParen, "'('")
	var params []ast.Param
	for !p.check(lexer.TokRParen) && !p.atEnd() {
		byRef := p.match(lexer.TokRef)
		pname := p.expect(lexer.TokIdent, "parameter name").Lexeme
		var typ ast.Expr
		if p.match(lexer.TokAs) {
			tline := p.line()
			typ = ast.NewIdent(tline, p.expect(lexer.TokIdent, "type name").Lexeme)
		}
		params = append(params, ast.Param{Name: pname, Type: typ, ByRef: byRef})
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRParen, "')'")
	body := p.block(lexer.TokEnd)
	p.expect(lexer.TokEnd, "'end'")
	return ast.NewRoutineDef(line, name, params, body, local)
}

// ---- expressions (precedence climbing) ----

// precedence of left-associative binary operators; higher binds tighter.
var binPrec = map[lexer.TokenType]int{
	lexer.TokOr:        1,
	lexer.TokAnd:       2,
	lexer.TokEqEq:      3,
	lexer.TokNotEq:     3,
	lexer.TokLT:        3,
	lexer.TokGT:        3,
	lexer.TokLE:        3,
	lexer.TokGE:        3,
	lexer.TokSpaceship: 3,
	lexer.TokAmp:       4,
	lexer.TokPlus:      5,
	lexer.TokMinus:     5,
	lexer.TokStar:      6,
	lexer.TokSlash:     6,
	lexer.TokPercent:   6,
	lexer.TokCaret:     7,
}

func (p *Parser) expression() ast.Expr { return p.assignment() }

func (p *Parser) assignment() ast.Expr {
	lhs := p.binary(0)
	if p.match(lexer.TokEqual) {
		line := p.line()
		rhs := p.assignment()
		return ast.NewAssign(line, lhs, rhs)
	}
	return lhs
}

func (p *Parser) binary(minPrec int) ast.Expr {
	left := p.unary()
	for {
		tt := p.cur().Type
		prec, ok := binPrec[tt]
		if !ok || prec < minPrec {
			return left
		}
		opTok := p.advance()
		right := p.binary(prec + 1)
		switch tt {
		case lexer.TokAnd:
			left = ast.NewLogical(opTok.Line, "and", left, right)
		case lexer.TokOr:
			left = ast.NewLogical(opTok.Line, "or", left, right)
		case lexer.TokAmp:
			left = flattenConcat(opTok.Line, left, right)
		default:
			left = ast.NewBinary(opTok.Line, opTok.Lexeme, left, right)
		}
	}
}

func flattenConcat(line int, left, right ast.Expr) ast.Expr {
	var parts []ast.Expr
	if lc, ok := left.(*ast.Concat); ok {
		parts = append(parts, lc.Parts...)
	} else {
		parts = append(parts, left)
	}
	if rc, ok := right.(*ast.Concat); ok {
		parts = append(parts, rc.Parts...)
	} else {
		parts = append(parts, right)
	}
	return ast.NewConcat(line, parts)
}

func (p *Parser) unary() ast.Expr {
	line := p.line()
	switch {
	case p.match(lexer.TokMinus):
		return ast.NewUnary(line, "-", p.unary())
	case p.match(lexer.TokNot):
		return ast.NewUnary(line, "!", p.unary())
	case p.match(lexer.TokRef):
		return ast.NewRef(line, p.unary())
	default:
		return p.postfix(p.primary())
	}
}

func (p *Parser) postfix(e ast.Expr) ast.Expr {
	for {
		switch {
		case p.match(lexer.TokLParen):
			line := p.line()
			var args []ast.Expr
			for !p.check(lexer.TokRParen) && !p.atEnd() {
				args = append(args, p.expression())
				if !p.match(lexer.TokComma) {
					break
				}
			}
			p.expect(lexer.TokRParen, "')'")
			e = ast.NewCall(line, e, args)
		case p.match(lexer.TokLBracket):
			line := p.line()
			var idx []ast.Expr
			idx = append(idx, p.expression())
			for p.match(lexer.TokComma) {
				idx = append(idx, p.expression())
			}
			p.expect(lexer.TokRBracket, "']'")
			e = ast.NewIndex(line, e, idx)
		case p.match(lexer.TokDot):
			line := p.line()
			name := p.expect(lexer.TokIdent, "field name").Lexeme
			e = ast.NewField(line, e, name)
		default:
			return e
		}
	}
}

func (p *Parser) primary() ast.Expr {
	line := p.line()
	tok := p.advance()
	switch tok.Type {
	case lexer.TokNull:
		return ast.NewConst(line, ast.ConstNull)
	case lexer.TokTrue:
		return ast.NewConst(line, ast.ConstTrue)
	case lexer.TokFalse:
		return ast.NewConst(line, ast.ConstFalse)
	case lexer.TokNan:
		return ast.NewConst(line, ast.ConstNan)
	case lexer.TokPass:
		return ast.NewConst(line, ast.ConstPass)
	case lexer.TokInt:
		return ast.NewIntLit(line, parseInt(tok.Lexeme))
	case lexer.TokFloat:
		return ast.NewFloatLit(line, parseFloat(tok.Lexeme))
	case lexer.TokString:
		return ast.NewStringLit(line, tok.Lexeme)
	case lexer.TokIdent:
		return ast.NewIdent(line, tok.Lexeme)
	case lexer.TokLParen:
		e := p.expression()
		p.expect(lexer.TokRParen, "')'")
		return e
	case lexer.TokLBracket:
		var elems []ast.Expr
		for !p.check(lexer.TokRBracket) && !p.atEnd() {
			elems = append(elems, p.expression())
			if !p.match(lexer.TokComma) {
				break
			}
		}
		p.expect(lexer.TokRBracket, "']'")
		return ast.NewListLit(line, elems)
	case lexer.TokAtLBracket:
		return p.arrayLit(line)
	case lexer.TokLBrace:
		return p.tableLit(line)
	default:
		p.errs = append(p.errs, fmt.Sprintf("line %d: unexpected token %q", line, tok.Lexeme))
		return ast.NewConst(line, ast.ConstNull)
	}
}

// arrayLit parses the 2D numeric-array literal `@[r1,r2; r3,r4]`, rows
// separated by ';', elements by ','.
func (p *Parser) arrayLit(line int) ast.Expr {
	var rows [][]ast.Expr
	row := []ast.Expr{}
	for !p.check(lexer.TokRBracket) && !p.atEnd() {
		row = append(row, p.expression())
		switch {
		case p.match(lexer.TokComma):
			continue
		case p.match(lexer.TokSemicolon):
			rows = append(rows, row)
			row = []ast.Expr{}
		default:
			goto done
		}
	}
done:
	if len(row) > 0 {
		rows = append(rows, row)
	}
	p.expect(lexer.TokRBracket, "']'")
	return ast.NewArrayLit(line, rows)
}

func (p *Parser) tableLit(line int) ast.Expr {
	var keys, values []ast.Expr
	for !p.check(lexer.TokRBrace) && !p.atEnd() {
		k := p.expression()
		p.expect(lexer.TokColon, "':'")
		v := p.expression()
		keys = append(keys, k)
		values = append(values, v)
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBrace, "'}'")
	return ast.NewTableLit(line, keys, values)
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
