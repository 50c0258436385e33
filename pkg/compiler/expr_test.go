package compiler

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"
)

func parseExpr(t *testing.T, src string) (Postfix, error) {
	t.Helper()
	tokens, err := Lex(src)
	be.Err(t, err, nil)
	out, next, err := ParseExpression(tokens, 0)
	if err == nil {
		be.Equal(t, tokens[next-1].Kind, SEMICOLON)
	}
	return out, err
}

func TestParseExpressionPostfix(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1;", "[1]"},
		{"1+2*3;", "[1 2 3 * +]"},
		{"8-4-2;", "[8 4 - 2 -]"},
		{"(1+2)*3;", "[1 2 + 3 *]"},
		{"16/4/2;", "[16 4 / 2 /]"},
		{"a || b && c;", "[a b c && ||]"},
		{"a | b ^ c & d;", "[a b c d & ^ |]"},
		{"a == b < c;", "[a b c < ==]"},
		{"a != b;", "[a b !=]"},
		{"1 << 2 + 3;", "[1 2 3 + <<]"},
		{"a >= b >> 1;", "[a b 1 >> >=]"},
		{"-a;", "[a neg]"},
		{"1 - -2;", "[1 2 neg -]"},
		{"!a && b;", "[a ! b &&]"},
		{"~~a;", "[a ~ ~]"},
		{"-a * b;", "[a neg b *]"},
		{"-(a + b);", "[a b + neg]"},
		{"((((1))));", "[1]"},
		{"true || false;", "[true false ||]"},
		{"f();", "[f()]"},
		{"f(1, x) + 2;", "[f(1,x) 2 +]"},
		{"2 * g(y);", "[2 g(y) *]"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			out, err := parseExpr(t, tc.src)
			be.Err(t, err, nil)
			be.Equal(t, out.String(), tc.want)
			n, ok := out.Depth()
			be.True(t, ok)
			be.Equal(t, n, 1)
		})
	}
}

func TestParseExpressionNodes(t *testing.T) {
	out, err := parseExpr(t, "x - -7;")
	be.Err(t, err, nil)
	be.Equal(t, len(out), 4)

	ident, ok := out[0].(*Identifier)
	be.True(t, ok)
	be.Equal(t, ident.Name, "x")

	lit, ok := out[1].(*Integer)
	be.True(t, ok)
	be.Equal(t, lit.Value, int64(7))

	neg, ok := out[2].(*Operator)
	be.True(t, ok)
	be.Equal(t, neg.Op, MINUS)
	be.True(t, neg.Unary)

	sub, ok := out[3].(*Operator)
	be.True(t, ok)
	be.True(t, !sub.Unary)
}

func TestParseExpressionStopsAfterSemicolon(t *testing.T) {
	tokens, err := Lex("1 + 2; return")
	be.Err(t, err, nil)
	_, next, err := ParseExpression(tokens, 0)
	be.Err(t, err, nil)
	be.Equal(t, tokens[next].Kind, RETURN)
}

func TestParseExpressionErrors(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{";", "operand"},
		{"1 +;", "operand"},
		{"1 2;", "operator or ';'"},
		{"(1 + 2;", "')'"},
		{"1 + 2);", "matching '(' before ')'"},
		{"();", "operand"},
		{"1 (2);", "operator or ';'"},
		{"* 2;", "operand"},
		{"1 = 2;", "operator or ';'"},
		{"f(1 + 2);", "',' or ')'"},
		{"f(-1);", "literal or identifier argument"},
		{"f(g(1));", "',' or ')'"},
		{"1 + 2", "operator or ';'"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			_, err := parseExpr(t, tc.src)
			var synErr *SyntaxError
			be.True(t, errors.As(err, &synErr))
			be.Equal(t, synErr.Expected, tc.expected)
		})
	}
}

func TestPostfixDepth(t *testing.T) {
	one := &Integer{Value: 1}
	plus := &Operator{Op: PLUS}
	neg := &Operator{Op: MINUS, Unary: true}

	n, ok := Postfix{one, one, plus}.Depth()
	be.True(t, ok)
	be.Equal(t, n, 1)

	n, ok = Postfix{one, one}.Depth()
	be.True(t, ok)
	be.Equal(t, n, 2)

	_, ok = Postfix{one, plus}.Depth()
	be.True(t, !ok)

	_, ok = Postfix{neg}.Depth()
	be.True(t, !ok)
}
