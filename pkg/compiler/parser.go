package compiler

import "strings"

// Parser consumes the flat token slice produced by Lex and builds a Program.
// One Parser serves one Parse call; its position is the only cursor.
//
// Grammar:
//
//	program    = globalDecl* function* EOF
//	globalDecl = ("int" | "bool") IDENTIFIER ("=" expression)? ";"
//	function   = "function" IDENTIFIER "(" params? ")" effects? body
//	effects    = "->" "effects" "[" (IDENTIFIER ("," IDENTIFIER)*)? "]"
//	params     = IDENTIFIER ("," IDENTIFIER)*
//	body       = "{" statement* "}"
//	statement  = varDecl | assignment | returnStmt | exprStmt
//	varDecl    = ("int" | "bool") IDENTIFIER "=" expression ";"
//	assignment = IDENTIFIER "=" expression ";"
//	returnStmt = "return" expression ";"
//	exprStmt   = expression ";"
//	expression = shunting-yard over literals, identifiers, calls and operators
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// errorAt builds a SyntaxError for tok, quoting its source line.
func (p *Parser) errorAt(tok Token, expected string) error {
	snippet := ""
	lineIdx := tok.Pos.Line - 1
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}
	return &SyntaxError{Expected: expected, Found: tok, Pos: tok.Pos, Snippet: snippet}
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		if len(p.tokens) > 0 {
			return Token{Kind: END_OF_FILE, Pos: p.tokens[len(p.tokens)-1].Pos}
		}
		return Token{Kind: END_OF_FILE, Pos: Pos{Line: 1, Col: 1}}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorAt(tok, "'"+kind.Symbol()+"'")
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent(what string) (Token, error) {
	tok := p.peek()
	if tok.Kind != IDENTIFIER {
		return tok, p.errorAt(tok, what)
	}
	return p.advance(), nil
}

// Parse builds the Program for a token stream produced by Lex.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	return NewParser(tokens, rawSource).parseProgram()
}

func (p *Parser) parseProgram() (*Program, error) {
	prog := &Program{}

	for p.peek().Kind == INT || p.peek().Kind == BOOL {
		decl, err := p.parseGlobal()
		if err != nil {
			return nil, err
		}
		prog.Globals = append(prog.Globals, decl)
	}

	for p.peek().Kind != END_OF_FILE {
		if p.peek().Kind != FUNCTION {
			return nil, p.errorAt(p.peek(), "'function'")
		}
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

func (p *Parser) parseGlobal() (*VarDecl, error) {
	typ := p.advance()
	name, err := p.expectIdent("global name")
	if err != nil {
		return nil, err
	}
	decl := &VarDecl{Type: typ.Kind, Name: name.Text, Global: true, Pos: name.Pos}
	if p.peek().Kind == SEMICOLON {
		p.advance()
		return decl, nil
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	if decl.Init, err = p.parseExpression(); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseFunction() (*Function, error) {
	p.advance() // function
	name, err := p.expectIdent("function name")
	if err != nil {
		return nil, err
	}
	fn := &Function{Name: name.Text, Pos: name.Pos}

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if p.peek().Kind != RPAREN {
		for {
			param, err := p.expectIdent("parameter name")
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param.Text)
			if p.peek().Kind != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	if p.peek().Kind == ARROW {
		if fn.Effects, err = p.parseEffects(); err != nil {
			return nil, err
		}
	}

	if fn.Body, err = p.parseBody(); err != nil {
		return nil, err
	}
	return fn, nil
}

// parseEffects consumes -> effects [a, b]. The list may be empty.
func (p *Parser) parseEffects() ([]string, error) {
	p.advance() // ->
	if _, err := p.expect(EFFECTS); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACKET); err != nil {
		return nil, err
	}
	effects := []string{}
	if p.peek().Kind == RBRACKET {
		p.advance()
		return effects, nil
	}
	for {
		eff, err := p.expectIdent("effect name")
		if err != nil {
			return nil, err
		}
		effects = append(effects, eff.Text)
		if p.peek().Kind != COMMA {
			break
		}
		p.advance()
	}
	if _, err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	return effects, nil
}

func (p *Parser) parseBody() ([]Stmt, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	var body []Stmt
	for p.peek().Kind != RBRACE {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	p.advance() // }
	return body, nil
}

// parseStatement dispatches on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Kind {
	case INT, BOOL:
		return p.parseVarDecl()
	case RETURN:
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &Return{Value: value, Pos: tok.Pos}, nil
	case IDENTIFIER:
		if p.peekAt(1).Kind == ASSIGN {
			p.advance()
			p.advance()
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return &Assignment{Name: tok.Text, Value: value, Pos: tok.Pos}, nil
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &Arithmetic{Value: value, Pos: tok.Pos}, nil
	case IF, WHILE:
		return nil, p.errorAt(tok, "supported statement ('"+tok.Kind.Symbol()+"' is not supported)")
	}
	return nil, p.errorAt(tok, "statement")
}

func (p *Parser) parseVarDecl() (*VarDecl, error) {
	typ := p.advance()
	name, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	init, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &VarDecl{Type: typ.Kind, Name: name.Text, Init: init, Pos: name.Pos}, nil
}
