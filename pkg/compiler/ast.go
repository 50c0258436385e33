package compiler

import (
	"fmt"
	"strings"
)

//  Expression nodes

// Expr is one element of a postfix sequence. The set of implementations is
// closed: Integer, Boolean, Identifier, Operator and FunctionCall.
type Expr interface {
	exprNode()
	String() string
}

// Integer is a decimal literal.
//
//	int x = 10;
//	        ^^  Integer{Value: 10}
type Integer struct {
	Value int64
	Pos   Pos
}

func (*Integer) exprNode()        {}
func (n *Integer) String() string { return fmt.Sprintf("%d", n.Value) }

// Boolean is true or false, carried as 1 or 0.
type Boolean struct {
	Value bool
	Pos   Pos
}

func (*Boolean) exprNode() {}
func (n *Boolean) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

// Int returns the machine value of the literal.
func (n *Boolean) Int() int {
	if n.Value {
		return 1
	}
	return 0
}

// Identifier is a read of a named variable.
type Identifier struct {
	Name string
	Pos  Pos
}

func (*Identifier) exprNode()        {}
func (n *Identifier) String() string { return n.Name }

// Operator pops its operands (one when Unary, two otherwise) and pushes the
// result.
//
//	1 - -2   ->   [1 2 neg -]
//	    ^         Operator{Op: MINUS, Unary: true}
type Operator struct {
	Op    TokenKind
	Unary bool
	Pos   Pos
}

func (*Operator) exprNode() {}
func (n *Operator) String() string {
	if n.Unary && n.Op == MINUS {
		return "neg"
	}
	return n.Op.Symbol()
}

// FunctionCall is name(args). Arguments are bare INTEGER or IDENTIFIER
// tokens, never nested expressions.
type FunctionCall struct {
	Name string
	Args []Token
	Pos  Pos
}

func (*FunctionCall) exprNode() {}
func (n *FunctionCall) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.Text
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

// Postfix is an expression in reverse-Polish order.
type Postfix []Expr

func (p Postfix) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Depth replays p against an empty operand stack and returns the number of
// values left. ok is false when an operator would underflow.
func (p Postfix) Depth() (n int, ok bool) {
	for _, e := range p {
		switch e := e.(type) {
		case *Integer, *Boolean, *Identifier, *FunctionCall:
			n++
		case *Operator:
			need := 2
			if e.Unary {
				need = 1
			}
			if n < need {
				return n, false
			}
			n -= need - 1
		}
	}
	return n, true
}

//  Statement nodes

// Stmt is implemented by VarDecl, Assignment, Return and Arithmetic.
type Stmt interface {
	stmtNode()
	String() string
}

// VarDecl declares a local, or a global when Global is set. Init is nil
// only for a global without initializer.
//
//	int x = 1 + 2;
//	    ^   ^^^^^
//	    |   Init: [1 2 +]
//	    Name
type VarDecl struct {
	Type   TokenKind // INT or BOOL
	Name   string
	Init   Postfix
	Global bool
	Pos    Pos
}

func (*VarDecl) stmtNode() {}
func (s *VarDecl) String() string {
	kind := "VarDecl"
	if s.Global {
		kind = "Global"
	}
	if s.Init == nil {
		return fmt.Sprintf("%s(%s %s)", kind, s.Type.Symbol(), s.Name)
	}
	return fmt.Sprintf("%s(%s %s = %s)", kind, s.Type.Symbol(), s.Name, s.Init)
}

// Assignment stores Value into an existing variable.
type Assignment struct {
	Name  string
	Value Postfix
	Pos   Pos
}

func (*Assignment) stmtNode()        {}
func (s *Assignment) String() string { return fmt.Sprintf("Assign(%s = %s)", s.Name, s.Value) }

// Return leaves the enclosing function with Value.
type Return struct {
	Value Postfix
	Pos   Pos
}

func (*Return) stmtNode()        {}
func (s *Return) String() string { return fmt.Sprintf("Return(%s)", s.Value) }

// Arithmetic is an expression evaluated for its side effects, e.g. f(1);
type Arithmetic struct {
	Value Postfix
	Pos   Pos
}

func (*Arithmetic) stmtNode()        {}
func (s *Arithmetic) String() string { return fmt.Sprintf("Expr(%s)", s.Value) }

//  Top level

// Function is function Name(Params) -> effects [Effects] { Body }.
type Function struct {
	Name    string
	Params  []string
	Effects []string
	Body    []Stmt
	Pos     Pos
}

func (f *Function) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Function(%s(%s)", f.Name, strings.Join(f.Params, ", "))
	if len(f.Effects) > 0 {
		fmt.Fprintf(&b, " effects[%s]", strings.Join(f.Effects, ", "))
	}
	b.WriteString(")")
	for _, s := range f.Body {
		b.WriteString("\n  ")
		b.WriteString(s.String())
	}
	return b.String()
}

// Program is the AST root.
type Program struct {
	Globals   []*VarDecl
	Functions []*Function
}

func (p *Program) String() string {
	var b strings.Builder
	for _, g := range p.Globals {
		b.WriteString(g.String())
		b.WriteString("\n")
	}
	for _, f := range p.Functions {
		b.WriteString(f.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Function returns the function called name, or nil.
func (p *Program) Function(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
