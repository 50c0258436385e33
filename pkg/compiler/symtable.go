package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type ScopeType int

const (
	ScopeGlobal ScopeType = iota
	ScopeParam
	ScopeLocal
)

func (s ScopeType) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeParam:
		return "param"
	default:
		return "local"
	}
}

// Symbol is one resolved name.
type Symbol struct {
	Name  string
	Scope ScopeType
	Type  TokenKind // INT or BOOL; zero for parameters
	Slot  int       // frame slot for params (negative) and locals (0..n-1)
	Decl  int       // declaring statement for locals, declaration order for globals
	Label string    // data label for globals
	Init  *int64    // literal initialiser of a global, nil otherwise
}

// SymbolTable maps names to frame slots and global cells. Globals are fixed
// for the whole program; the function part is rebuilt by EnterFunction
// before any code for that function is emitted.
//
// Frame layout, addresses relative to the frame base B (the value of SP on
// entry after LD SP, [R0, #stack]):
//
//	B-1-p .. B-2   parameters 0..p-1
//	B-1            return address
//	B+0 .. B+n-1   locals in declaration order
type SymbolTable struct {
	globals     map[string]Symbol
	globalOrder []string

	function string
	params   map[string]Symbol
	locals   map[string]Symbol
	nlocals  int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{globals: make(map[string]Symbol)}
}

var labelPattern = regexp.MustCompile(`^L[0-9]+$`)

// reservedName reports whether name collides with a register, a fixed
// assembler symbol or a generated label.
func reservedName(name string) bool {
	switch strings.ToUpper(name) {
	case "SP", "PC", "R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7":
		return true
	}
	return name == "stack" || name == endLabel || labelPattern.MatchString(name)
}

// DefineGlobal records a global cell. Only a literal initialiser (a single
// Integer or Boolean) is folded into the cell.
func (s *SymbolTable) DefineGlobal(decl *VarDecl) error {
	if reservedName(decl.Name) {
		return genErrorf("", decl.Pos, ErrReserved, "%q cannot name a global", decl.Name)
	}
	if _, exists := s.globals[decl.Name]; exists {
		return genErrorf("", decl.Pos, ErrRedeclared, "global %q", decl.Name)
	}
	sym := Symbol{Name: decl.Name, Scope: ScopeGlobal, Type: decl.Type, Label: decl.Name, Decl: len(s.globalOrder)}
	if v, ok := literalValue(decl.Init); ok {
		sym.Init = &v
	}
	s.globals[decl.Name] = sym
	s.globalOrder = append(s.globalOrder, decl.Name)
	return nil
}

// literalValue returns the value of a postfix that is a single literal.
func literalValue(p Postfix) (int64, bool) {
	if len(p) != 1 {
		return 0, false
	}
	switch n := p[0].(type) {
	case *Integer:
		return n.Value, true
	case *Boolean:
		return int64(n.Int()), true
	}
	return 0, false
}

// Globals returns the global symbols in declaration order.
func (s *SymbolTable) Globals() []Symbol {
	out := make([]Symbol, 0, len(s.globalOrder))
	for _, name := range s.globalOrder {
		out = append(out, s.globals[name])
	}
	return out
}

// EnterFunction runs the first pass over fn: parameters get negative slots,
// every VarDecl in the body gets the next local slot.
func (s *SymbolTable) EnterFunction(fn *Function) error {
	s.function = fn.Name
	s.params = make(map[string]Symbol)
	s.locals = make(map[string]Symbol)
	s.nlocals = 0

	np := len(fn.Params)
	for i, name := range fn.Params {
		if _, dup := s.params[name]; dup {
			return genErrorf(fn.Name, fn.Pos, ErrRedeclared, "parameter %q", name)
		}
		s.params[name] = Symbol{Name: name, Scope: ScopeParam, Slot: i - np - 1}
	}

	for i, stmt := range fn.Body {
		decl, ok := stmt.(*VarDecl)
		if !ok {
			continue
		}
		if _, dup := s.params[decl.Name]; dup {
			return genErrorf(fn.Name, decl.Pos, ErrRedeclared, "local %q shadows a parameter", decl.Name)
		}
		if _, dup := s.locals[decl.Name]; dup {
			return genErrorf(fn.Name, decl.Pos, ErrRedeclared, "local %q", decl.Name)
		}
		s.locals[decl.Name] = Symbol{Name: decl.Name, Scope: ScopeLocal, Type: decl.Type, Slot: s.nlocals, Decl: i}
		s.nlocals++
	}
	return nil
}

// ExitFunction drops the function part of the table.
func (s *SymbolTable) ExitFunction() {
	s.function = ""
	s.params = nil
	s.locals = nil
	s.nlocals = 0
}

// Locals returns the number of local slots of the current function.
func (s *SymbolTable) Locals() int {
	return s.nlocals
}

// Lookup resolves name as seen by statement stmtIndex of the current
// function: a local declared by an earlier statement, then a parameter, then
// a global. Pass -1 outside any function.
func (s *SymbolTable) Lookup(name string, stmtIndex int) (Symbol, bool) {
	if sym, ok := s.locals[name]; ok && sym.Decl < stmtIndex {
		return sym, true
	}
	if sym, ok := s.params[name]; ok {
		return sym, true
	}
	sym, ok := s.globals[name]
	return sym, ok
}

func (s *SymbolTable) String() string {
	var sb strings.Builder
	sb.WriteString("Symbol Table\n")

	names := make([]string, 0, len(s.globals))
	for name := range s.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := s.globals[name]
		init := "0"
		if sym.Init != nil {
			init = fmt.Sprintf("%d", *sym.Init)
		}
		fmt.Fprintf(&sb, "  %-12s %-6s label=%s init=%s\n", name, sym.Scope, sym.Label, init)
	}

	if s.function != "" {
		fmt.Fprintf(&sb, "  [%s]\n", s.function)
		var frame []Symbol
		for _, sym := range s.params {
			frame = append(frame, sym)
		}
		for _, sym := range s.locals {
			frame = append(frame, sym)
		}
		sort.Slice(frame, func(i, j int) bool { return frame[i].Slot < frame[j].Slot })
		for _, sym := range frame {
			fmt.Fprintf(&sb, "  %-12s %-6s slot=%d\n", sym.Name, sym.Scope, sym.Slot)
		}
	}
	return sb.String()
}
