package compiler

import "strconv"

// binaryPrecedence is the binding power of each binary operator. Every level
// is left-associative.
var binaryPrecedence = map[TokenKind]int{
	OR:            1,
	AND:           2,
	BIT_OR:        3,
	BIT_XOR:       4,
	BIT_AND:       5,
	EQUALS:        6,
	NOT_EQUALS:    6,
	LESS:          7,
	GREATER:       7,
	LESS_EQUAL:    7,
	GREATER_EQUAL: 7,
	SHL:           8,
	SHR:           8,
	PLUS:          9,
	MINUS:         9,
	STAR:          10,
	SLASH:         10,
}

// unaryPrecedence binds tighter than any binary operator.
const unaryPrecedence = 11

func isUnaryOperator(k TokenKind) bool {
	return k == MINUS || k == NOT || k == BIT_NOT
}

// stackEntry is an operator waiting on the shunting-yard stack, or a barrier
// for an open parenthesis.
type stackEntry struct {
	tok     Token
	unary   bool
	barrier bool
}

func (e stackEntry) precedence() int {
	if e.unary {
		return unaryPrecedence
	}
	return binaryPrecedence[e.tok.Kind]
}

func (e stackEntry) node() *Operator {
	return &Operator{Op: e.tok.Kind, Unary: e.unary, Pos: e.tok.Pos}
}

// ParseExpression converts the infix expression starting at tokens[pos] into
// postfix order. It consumes the terminating ';' and returns the index of
// the token after it.
func ParseExpression(tokens []Token, pos int) (Postfix, int, error) {
	p := &Parser{tokens: tokens, pos: pos}
	out, err := p.parseExpression()
	return out, p.pos, err
}

// parseExpression runs the shunting-yard conversion up to and including ';'.
// It alternates between expecting an operand and expecting an operator, so
// the result is always balanced.
func (p *Parser) parseExpression() (Postfix, error) {
	var out Postfix
	var stack []stackEntry
	expectOperand := true

	for {
		tok := p.peek()

		switch {
		case tok.Kind == SEMICOLON:
			if expectOperand {
				return nil, p.errorAt(tok, "operand")
			}
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.barrier {
					return nil, p.errorAt(tok, "')'")
				}
				out = append(out, top.node())
			}
			p.advance()
			return out, nil

		case tok.Kind == INTEGER, tok.Kind == TRUE, tok.Kind == FALSE, tok.Kind == IDENTIFIER:
			if !expectOperand {
				return nil, p.errorAt(tok, "operator or ';'")
			}
			operand, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			out = append(out, operand)
			expectOperand = false

		case tok.Kind == LPAREN:
			if !expectOperand {
				return nil, p.errorAt(tok, "operator or ';'")
			}
			p.advance()
			stack = append(stack, stackEntry{tok: tok, barrier: true})

		case tok.Kind == RPAREN:
			if expectOperand {
				return nil, p.errorAt(tok, "operand")
			}
			p.advance()
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.barrier {
					matched = true
					break
				}
				out = append(out, top.node())
			}
			if !matched {
				return nil, p.errorAt(tok, "matching '(' before ')'")
			}

		case expectOperand && isUnaryOperator(tok.Kind):
			p.advance()
			stack = append(stack, stackEntry{tok: tok, unary: true})

		default:
			prec, isBinary := binaryPrecedence[tok.Kind]
			if !isBinary {
				if expectOperand {
					return nil, p.errorAt(tok, "operand")
				}
				return nil, p.errorAt(tok, "operator or ';'")
			}
			if expectOperand {
				return nil, p.errorAt(tok, "operand")
			}
			p.advance()
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.barrier || top.precedence() < prec {
					break
				}
				stack = stack[:len(stack)-1]
				out = append(out, top.node())
			}
			stack = append(stack, stackEntry{tok: tok})
			expectOperand = true
		}
	}
}

// parseOperand consumes a literal, identifier or call.
func (p *Parser) parseOperand() (Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case INTEGER:
		p.advance()
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, p.errorAt(tok, "integer literal in range")
		}
		return &Integer{Value: v, Pos: tok.Pos}, nil
	case TRUE, FALSE:
		p.advance()
		return &Boolean{Value: tok.Kind == TRUE, Pos: tok.Pos}, nil
	case IDENTIFIER:
		if p.peekAt(1).Kind == LPAREN {
			return p.parseCall()
		}
		p.advance()
		return &Identifier{Name: tok.Text, Pos: tok.Pos}, nil
	}
	return nil, p.errorAt(tok, "operand")
}

// parseCall consumes name(arg, ...). Each argument is a single INTEGER or
// IDENTIFIER token.
func (p *Parser) parseCall() (*FunctionCall, error) {
	name := p.advance()
	p.advance() // (
	call := &FunctionCall{Name: name.Text, Pos: name.Pos}
	if p.peek().Kind == RPAREN {
		p.advance()
		return call, nil
	}
	for {
		arg := p.advance()
		if arg.Kind != INTEGER && arg.Kind != IDENTIFIER {
			return nil, p.errorAt(arg, "literal or identifier argument")
		}
		call.Args = append(call.Args, arg)

		sep := p.advance()
		switch sep.Kind {
		case RPAREN:
			return call, nil
		case COMMA:
		default:
			return nil, p.errorAt(sep, "',' or ')'")
		}
	}
}
