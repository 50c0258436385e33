package compiler

import "fmt"

// TokenKind identifies the category of a lexed token.
type TokenKind int

const (
	END_OF_FILE TokenKind = iota // sentinel: end of input
	INVALID                      // unrecognised character, reported by the parser

	// Literals
	INTEGER    // decimal integer literal
	IDENTIFIER // variable / function name

	// Keywords
	FUNCTION // "function"
	WHILE    // "while"
	IF       // "if"
	ELSE     // "else"
	RETURN   // "return"
	INT      // "int"
	BOOL     // "bool"
	VOID     // "void"
	TRUE     // "true"
	FALSE    // "false"
	EFFECTS  // "effects"

	// Paired delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,
	DOT       // .
	ARROW     // ->

	// Arithmetic and bitwise operators
	PLUS    // +
	MINUS   // - (binary subtraction, or unary negation)
	STAR    // *
	SLASH   // /
	BIT_AND // &
	BIT_OR  // |
	BIT_XOR // ^
	BIT_NOT // ~
	SHL     // <<
	SHR     // >>

	// Logical operators
	AND // &&
	OR  // ||
	NOT // !

	// Assignment / comparison
	ASSIGN        // =
	EQUALS        // ==
	NOT_EQUALS    // !=
	LESS          // <
	GREATER       // >
	LESS_EQUAL    // <=
	GREATER_EQUAL // >=
)

var kindNames = [...]string{
	END_OF_FILE:   "END_OF_FILE",
	INVALID:       "INVALID",
	INTEGER:       "INTEGER",
	IDENTIFIER:    "IDENTIFIER",
	FUNCTION:      "FUNCTION",
	WHILE:         "WHILE",
	IF:            "IF",
	ELSE:          "ELSE",
	RETURN:        "RETURN",
	INT:           "INT",
	BOOL:          "BOOL",
	VOID:          "VOID",
	TRUE:          "TRUE",
	FALSE:         "FALSE",
	EFFECTS:       "EFFECTS",
	LPAREN:        "LPAREN",
	RPAREN:        "RPAREN",
	LBRACE:        "LBRACE",
	RBRACE:        "RBRACE",
	LBRACKET:      "LBRACKET",
	RBRACKET:      "RBRACKET",
	SEMICOLON:     "SEMICOLON",
	COMMA:         "COMMA",
	DOT:           "DOT",
	ARROW:         "ARROW",
	PLUS:          "PLUS",
	MINUS:         "MINUS",
	STAR:          "STAR",
	SLASH:         "SLASH",
	BIT_AND:       "BIT_AND",
	BIT_OR:        "BIT_OR",
	BIT_XOR:       "BIT_XOR",
	BIT_NOT:       "BIT_NOT",
	SHL:           "SHL",
	SHR:           "SHR",
	AND:           "AND",
	OR:            "OR",
	NOT:           "NOT",
	ASSIGN:        "ASSIGN",
	EQUALS:        "EQUALS",
	NOT_EQUALS:    "NOT_EQUALS",
	LESS:          "LESS",
	GREATER:       "GREATER",
	LESS_EQUAL:    "LESS_EQUAL",
	GREATER_EQUAL: "GREATER_EQUAL",
}

// kindSymbols gives the source spelling of fixed-text kinds. It is what the
// postfix printer and error messages show for operators and punctuation.
var kindSymbols = map[TokenKind]string{
	FUNCTION: "function", WHILE: "while", IF: "if", ELSE: "else",
	RETURN: "return", INT: "int", BOOL: "bool", VOID: "void",
	TRUE: "true", FALSE: "false", EFFECTS: "effects",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}", LBRACKET: "[", RBRACKET: "]",
	SEMICOLON: ";", COMMA: ",", DOT: ".", ARROW: "->",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/",
	BIT_AND: "&", BIT_OR: "|", BIT_XOR: "^", BIT_NOT: "~", SHL: "<<", SHR: ">>",
	AND: "&&", OR: "||", NOT: "!",
	ASSIGN: "=", EQUALS: "==", NOT_EQUALS: "!=",
	LESS: "<", GREATER: ">", LESS_EQUAL: "<=", GREATER_EQUAL: ">=",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Symbol returns the source spelling of a fixed-text kind, or its name.
func (k TokenKind) Symbol() string {
	if s, ok := kindSymbols[k]; ok {
		return s
	}
	return k.String()
}

// Pos is a 1-based line/column location in the source.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a single lexical unit produced by the scanner. Text is only set
// for INTEGER and IDENTIFIER tokens.
type Token struct {
	Kind TokenKind
	Text string
	Pos  Pos
}

// HasText reports whether tokens of kind k carry their source text.
func (k TokenKind) HasText() bool {
	return k == INTEGER || k == IDENTIFIER
}

// describe renders a token for error messages.
func (t Token) describe() string {
	switch {
	case t.Kind.HasText():
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	case t.Kind == END_OF_FILE:
		return "end of file"
	default:
		return fmt.Sprintf("%q", t.Kind.Symbol())
	}
}

func (t Token) String() string {
	return fmt.Sprintf("%-14s %-10q  %s", t.Kind, t.Text, t.Pos)
}
