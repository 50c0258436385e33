package compiler

import (
	"strconv"
	"strings"
	"unicode"
)

var keywords = map[string]TokenKind{
	"function": FUNCTION,
	"while":    WHILE,
	"if":       IF,
	"else":     ELSE,
	"return":   RETURN,
	"int":      INT,
	"bool":     BOOL,
	"void":     VOID,
	"true":     TRUE,
	"false":    FALSE,
	"effects":  EFFECTS,
}

// integerTerminators lists the characters allowed to follow a digit run
// directly. Letters, '(' '.' '{' '[' and '~' are rejected, so "12abc" and
// "3(" are lexical errors rather than two tokens.
const integerTerminators = ";,)]}+-*/&|^<>=!"

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int
	col  int
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) advance() rune {
	if l.atEnd() {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (l *Lexer) here() Pos {
	return Pos{Line: l.line, Col: l.col}
}

// skipTrivia discards whitespace and // comments.
func (l *Lexer) skipTrivia() {
	for !l.atEnd() {
		switch {
		case unicode.IsSpace(l.peek()):
			l.advance()
		case l.peek() == '/' && l.peek2() == '/':
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) scanWord() Token {
	pos := l.here()
	start := l.pos
	for !l.atEnd() {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	text := string(l.src[start:l.pos])
	if kw, ok := keywords[text]; ok {
		return Token{Kind: kw, Pos: pos}
	}
	return Token{Kind: IDENTIFIER, Text: text, Pos: pos}
}

// scanInteger collects a maximal run of ASCII digits, checks what follows it
// and that the value fits in an int64.
func (l *Lexer) scanInteger() (Token, error) {
	pos := l.here()
	start := l.pos
	for !l.atEnd() && isDigit(l.peek()) {
		l.advance()
	}
	if !l.atEnd() {
		next := l.peek()
		if !unicode.IsSpace(next) && !strings.ContainsRune(integerTerminators, next) {
			return Token{}, &LexicalError{Pos: pos, Msg: "invalid integer"}
		}
	}
	text := string(l.src[start:l.pos])
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return Token{}, &LexicalError{Pos: pos, Msg: "invalid integer"}
	}
	return Token{Kind: INTEGER, Text: text, Pos: pos}, nil
}

// nextToken returns the next Token. At end of input it returns END_OF_FILE.
func (l *Lexer) nextToken() (Token, error) {
	l.skipTrivia()
	pos := l.here()
	if l.atEnd() {
		return Token{Kind: END_OF_FILE, Pos: pos}, nil
	}

	ch := l.peek()
	if unicode.IsLetter(ch) {
		return l.scanWord(), nil
	}
	if isDigit(ch) {
		return l.scanInteger()
	}
	if unicode.IsDigit(ch) {
		return Token{}, &LexicalError{Pos: pos, Msg: "invalid integer"}
	}

	l.advance()
	// two-character forms first
	pair := func(second rune, long, short TokenKind) Token {
		if l.peek() == second {
			l.advance()
			return Token{Kind: long, Pos: pos}
		}
		return Token{Kind: short, Pos: pos}
	}

	switch ch {
	case '(':
		return Token{Kind: LPAREN, Pos: pos}, nil
	case ')':
		return Token{Kind: RPAREN, Pos: pos}, nil
	case '{':
		return Token{Kind: LBRACE, Pos: pos}, nil
	case '}':
		return Token{Kind: RBRACE, Pos: pos}, nil
	case '[':
		return Token{Kind: LBRACKET, Pos: pos}, nil
	case ']':
		return Token{Kind: RBRACKET, Pos: pos}, nil
	case ';':
		return Token{Kind: SEMICOLON, Pos: pos}, nil
	case ',':
		return Token{Kind: COMMA, Pos: pos}, nil
	case '.':
		return Token{Kind: DOT, Pos: pos}, nil
	case '+':
		return Token{Kind: PLUS, Pos: pos}, nil
	case '-':
		return pair('>', ARROW, MINUS), nil
	case '*':
		return Token{Kind: STAR, Pos: pos}, nil
	case '/':
		return Token{Kind: SLASH, Pos: pos}, nil
	case '&':
		return pair('&', AND, BIT_AND), nil
	case '|':
		return pair('|', OR, BIT_OR), nil
	case '^':
		return Token{Kind: BIT_XOR, Pos: pos}, nil
	case '~':
		return Token{Kind: BIT_NOT, Pos: pos}, nil
	case '!':
		return pair('=', NOT_EQUALS, NOT), nil
	case '=':
		return pair('=', EQUALS, ASSIGN), nil
	case '<':
		if l.peek() == '<' {
			l.advance()
			return Token{Kind: SHL, Pos: pos}, nil
		}
		return pair('=', LESS_EQUAL, LESS), nil
	case '>':
		if l.peek() == '>' {
			l.advance()
			return Token{Kind: SHR, Pos: pos}, nil
		}
		return pair('=', GREATER_EQUAL, GREATER), nil
	default:
		return Token{Kind: INVALID, Pos: pos}, nil
	}
}

// Lex tokenises src and returns all tokens including the final END_OF_FILE.
// Unknown characters become INVALID tokens; only a malformed integer stops
// the scan with a *LexicalError.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == END_OF_FILE {
			return tokens, nil
		}
	}
}
