package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// prologue starts every program: entry branch, the SP alias and the cell
// that hands the stack pointer from caller to callee.
const prologue = "ORG 0\n" +
	"B main\n" +
	"SP     EQU     R6\n" +
	"stack  DATA    0x1200\n\n"

// endLabel is where main returns to; the self-branch there halts the machine.
const endLabel = "__end"

// Immediate operands are 5-bit signed.
const (
	minImm = -16
	maxImm = 15
)

// CodeGen walks a Program and emits STUMP assembly text.
//
// Expression values live in R1. When a new operand arrives while R1 holds a
// value, R1 is pushed first; binary operators pop their left operand into R2.
// SP therefore always equals frame base + declared + temps, which is what
// frame addressing is computed from.
type CodeGen struct {
	syms      *SymbolTable
	out       strings.Builder
	nextLabel int

	fn          *Function // nil while emitting global initialisers
	stmt        int       // index of the statement being emitted
	globalIndex int       // declaration index of the global being initialised
	declared    int       // locals stored so far in this frame
	temps       int       // values pushed by the current expression
	live        bool      // R1 holds the top of the operand stack
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{syms: syms}
}

func (cg *CodeGen) newLabel() string {
	l := fmt.Sprintf("L%d", cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) funcName() string {
	if cg.fn == nil {
		return ""
	}
	return cg.fn.Name
}

// Generate lowers prog to assembly text. syms may be nil; when given it is
// filled with the program's globals and left describing the last function.
//
// Layout: prologue, main (preceded by global initialisers and followed by
// the halt loop), the other functions in declaration order, then one DEFW
// cell per global.
func Generate(prog *Program, syms *SymbolTable) (string, error) {
	mainFn := prog.Function("main")
	if mainFn == nil {
		return "", &GenerationError{Err: ErrNoMain}
	}
	if err := checkProgram(prog); err != nil {
		return "", err
	}

	if syms == nil {
		syms = NewSymbolTable()
	}
	for _, g := range prog.Globals {
		if err := syms.DefineGlobal(g); err != nil {
			return "", err
		}
	}

	cg := newCodeGen(syms)
	cg.out.WriteString(prologue)

	if err := cg.genFunction(mainFn, prog.Globals); err != nil {
		return "", err
	}
	cg.line("%s:", endLabel)
	cg.line("B %s", endLabel)

	for _, fn := range prog.Functions {
		if fn == mainFn {
			continue
		}
		if err := cg.genFunction(fn, nil); err != nil {
			return "", err
		}
	}

	for _, g := range syms.Globals() {
		var v int64
		if g.Init != nil {
			v = *g.Init
		}
		if !fitsWord(v) {
			return "", genErrorf("", prog.Globals[g.Decl].Pos, ErrRange, "global %q = %d", g.Name, v)
		}
		cg.line("%s:", g.Label)
		cg.line("DEFW %d", v)
	}

	return cg.out.String(), nil
}

func fitsWord(v int64) bool {
	return v >= -32768 && v <= 0xFFFF
}

// genFunction emits one function. inits are the globals whose non-literal
// initialisers run on entry (main only).
func (cg *CodeGen) genFunction(fn *Function, inits []*VarDecl) error {
	cg.syms.ExitFunction()
	cg.fn = nil
	cg.declared = 0
	cg.temps = 0
	cg.live = false

	cg.line("%s:", fn.Name)
	for r := 1; r <= 5; r++ {
		cg.line("MOV R%d, #0", r)
	}
	cg.line("LD SP, [R0, #stack]")

	for i, g := range inits {
		if g.Init == nil {
			continue
		}
		if _, literal := literalValue(g.Init); literal {
			continue
		}
		cg.globalIndex = i
		if err := cg.genPostfix(g.Init, g.Pos); err != nil {
			return err
		}
		sym, _ := cg.syms.Lookup(g.Name, -1)
		cg.storeGlobal(sym)
		cg.live = false
	}

	if err := cg.syms.EnterFunction(fn); err != nil {
		return err
	}
	cg.fn = fn

	for i, stmt := range fn.Body {
		cg.stmt = i
		if err := cg.genStmt(stmt); err != nil {
			return err
		}
	}

	if n := len(fn.Body); n == 0 || !isReturn(fn.Body[n-1]) {
		cg.line("MOV R1, #0")
		cg.emitReturn()
	}
	return nil
}

func isReturn(s Stmt) bool {
	_, ok := s.(*Return)
	return ok
}

func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case *VarDecl:
		if err := cg.genPostfix(n.Init, n.Pos); err != nil {
			return err
		}
		cg.push()
		cg.declared++
		cg.live = false

	case *Assignment:
		if err := cg.genPostfix(n.Value, n.Pos); err != nil {
			return err
		}
		sym, err := cg.resolve(n.Name, n.Pos)
		if err != nil {
			return err
		}
		if sym.Scope == ScopeGlobal {
			cg.storeGlobal(sym)
		} else {
			cg.frameAccess("ST", "R1", cg.frameDistance(sym))
		}
		cg.live = false

	case *Return:
		if err := cg.genPostfix(n.Value, n.Pos); err != nil {
			return err
		}
		cg.emitReturn()
		cg.live = false

	case *Arithmetic:
		if err := cg.genPostfix(n.Value, n.Pos); err != nil {
			return err
		}
		cg.live = false

	default:
		return genErrorf(cg.funcName(), Pos{}, ErrMalformed, "unknown statement %T", s)
	}
	return nil
}

// emitReturn leaves the current function with R1 as the result. main
// branches to the halt loop; other functions pop their frame, arguments
// included, and jump to the saved return address.
func (cg *CodeGen) emitReturn() {
	if cg.fn.Name == "main" {
		cg.jump(endLabel)
		return
	}
	cg.frameAccess("LD", "R2", cg.declared+cg.temps+1)
	drop := cg.declared + cg.temps + 1 + len(cg.fn.Params)
	if drop <= maxImm {
		cg.line("SUB SP, SP, #%d", drop)
	} else {
		cg.loadConst("R3", strconv.Itoa(drop))
		cg.line("SUB SP, SP, R3")
	}
	cg.line("MOV PC, R2")
}

// genPostfix evaluates p into R1.
func (cg *CodeGen) genPostfix(p Postfix, pos Pos) error {
	if n, ok := p.Depth(); !ok || n != 1 {
		return genErrorf(cg.funcName(), pos, ErrMalformed, "%s does not reduce to one value", p)
	}
	cg.temps = 0
	cg.live = false
	for _, e := range p {
		if err := cg.genExpr(e); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Integer:
		if !fitsWord(n.Value) {
			return genErrorf(cg.funcName(), n.Pos, ErrRange, "%d", n.Value)
		}
		cg.spill()
		cg.loadConst("R1", strconv.FormatInt(n.Value, 10))
		cg.live = true

	case *Boolean:
		cg.spill()
		cg.loadConst("R1", strconv.Itoa(n.Int()))
		cg.live = true

	case *Identifier:
		cg.spill()
		if err := cg.loadVar(n.Name, n.Pos); err != nil {
			return err
		}
		cg.live = true

	case *FunctionCall:
		cg.spill()
		if err := cg.genCall(n); err != nil {
			return err
		}
		cg.live = true

	case *Operator:
		if n.Unary {
			cg.genUnary(n.Op)
			return nil
		}
		cg.line("SUB SP, SP, #1")
		cg.line("LD R2, [SP]")
		cg.temps--
		cg.genBinary(n.Op)

	default:
		return genErrorf(cg.funcName(), Pos{}, ErrMalformed, "unknown expression %T", e)
	}
	return nil
}

// push stores R1 on top of the stack.
func (cg *CodeGen) push() {
	cg.line("ST R1, [SP]")
	cg.line("ADD SP, SP, #1")
}

// spill pushes R1 when it holds a value the next operand would overwrite.
func (cg *CodeGen) spill() {
	if cg.live {
		cg.push()
		cg.temps++
		cg.live = false
	}
}

// loadConst loads a 16-bit value or label address into reg by reading the
// word that follows and then skipping it.
func (cg *CodeGen) loadConst(reg, value string) {
	cg.line("LD %s, [PC, #1]", reg)
	cg.line("ADD PC, PC, #1")
	cg.line("DEFW %s", value)
}

// jump transfers control to label anywhere in memory by loading PC from
// the word that follows.
func (cg *CodeGen) jump(label string) {
	cg.line("LD PC, [PC, #0]")
	cg.line("DEFW %s", label)
}

// frameDistance is how far below SP the slot of sym currently sits.
func (cg *CodeGen) frameDistance(sym Symbol) int {
	return cg.declared + cg.temps - sym.Slot
}

// frameAccess emits op reg, [SP, #-d], going through R2 when -d does not
// fit in an immediate.
func (cg *CodeGen) frameAccess(op, reg string, d int) {
	if -d >= minImm {
		cg.line("%s %s, [SP, #%d]", op, reg, -d)
		return
	}
	cg.loadConst("R2", strconv.Itoa(-d))
	cg.line("%s %s, [SP, R2]", op, reg)
}

func (cg *CodeGen) resolve(name string, pos Pos) (Symbol, error) {
	if cg.fn == nil {
		sym, ok := cg.syms.Lookup(name, -1)
		if !ok || sym.Decl >= cg.globalIndex {
			return Symbol{}, genErrorf("", pos, ErrUndefined, "%q is not an earlier global", name)
		}
		return sym, nil
	}
	sym, ok := cg.syms.Lookup(name, cg.stmt)
	if !ok {
		return Symbol{}, genErrorf(cg.fn.Name, pos, ErrUndefined, "%q", name)
	}
	return sym, nil
}

// loadVar loads a variable into R1.
func (cg *CodeGen) loadVar(name string, pos Pos) error {
	sym, err := cg.resolve(name, pos)
	if err != nil {
		return err
	}
	if sym.Scope == ScopeGlobal {
		cg.loadConst("R2", sym.Label)
		cg.line("LD R1, [R2, #0]")
		return nil
	}
	cg.frameAccess("LD", "R1", cg.frameDistance(sym))
	return nil
}

func (cg *CodeGen) storeGlobal(sym Symbol) {
	cg.loadConst("R2", sym.Label)
	cg.line("ST R1, [R2, #0]")
}

// genCall pushes the arguments and the return address, publishes SP in the
// stack cell for the callee and jumps to it. The callee pops everything, so
// the pushed arguments are not counted as temporaries afterwards.
func (cg *CodeGen) genCall(call *FunctionCall) error {
	for _, arg := range call.Args {
		switch arg.Kind {
		case INTEGER:
			v, err := strconv.ParseInt(arg.Text, 10, 64)
			if err != nil || !fitsWord(v) {
				return genErrorf(cg.funcName(), arg.Pos, ErrRange, "%s", arg.Text)
			}
			cg.loadConst("R1", arg.Text)
		case IDENTIFIER:
			if err := cg.loadVar(arg.Text, arg.Pos); err != nil {
				return err
			}
		default:
			return genErrorf(cg.funcName(), arg.Pos, ErrMalformed, "argument %s", arg.describe())
		}
		cg.push()
		cg.temps++
	}

	// PC reads as the ST below; the return point is past the jump's DEFW.
	cg.line("ADD R2, PC, #5")
	cg.line("ST R2, [SP]")
	cg.line("ADD SP, SP, #1")
	cg.line("ST SP, [R0, #stack]")
	cg.jump(call.Name)
	cg.temps -= len(call.Args)
	return nil
}

func (cg *CodeGen) genUnary(op TokenKind) {
	switch op {
	case MINUS:
		cg.line("SUB R1, R0, R1")
	case BIT_NOT:
		cg.complement("R1")
	case NOT:
		done := cg.newLabel()
		cg.line("CMP R1, #0")
		cg.line("MOV R1, #1")
		cg.line("BEQ %s", done)
		cg.line("MOV R1, #0")
		cg.line("%s:", done)
	}
}

// complement computes reg = ~reg as -reg - 1.
func (cg *CodeGen) complement(reg string) {
	cg.line("SUB %s, R0, %s", reg, reg)
	cg.line("SUB %s, %s, #1", reg, reg)
}

var compareBranch = map[TokenKind]string{
	EQUALS:        "BEQ",
	NOT_EQUALS:    "BNE",
	LESS:          "BLT",
	GREATER:       "BGT",
	LESS_EQUAL:    "BLE",
	GREATER_EQUAL: "BGE",
}

// genBinary computes R1 = R2 op R1. R3 and R4 are scratch.
func (cg *CodeGen) genBinary(op TokenKind) {
	switch op {
	case PLUS:
		cg.line("ADD R1, R2, R1")
	case MINUS:
		cg.line("SUB R1, R2, R1")
	case BIT_AND:
		cg.line("AND R1, R2, R1")
	case BIT_OR:
		cg.line("OR R1, R2, R1")
	case BIT_XOR:
		// (a | b) & ~(a & b)
		cg.line("AND R3, R2, R1")
		cg.line("OR R1, R2, R1")
		cg.complement("R3")
		cg.line("AND R1, R1, R3")

	case EQUALS, NOT_EQUALS, LESS, GREATER, LESS_EQUAL, GREATER_EQUAL:
		done := cg.newLabel()
		cg.line("CMP R2, R1")
		cg.line("MOV R1, #1")
		cg.line("%s %s", compareBranch[op], done)
		cg.line("MOV R1, #0")
		cg.line("%s:", done)

	case AND:
		done := cg.newLabel()
		cg.line("MOV R3, #0")
		cg.line("CMP R2, #0")
		cg.line("BEQ %s", done)
		cg.line("CMP R1, #0")
		cg.line("BEQ %s", done)
		cg.line("MOV R3, #1")
		cg.line("%s:", done)
		cg.line("MOV R1, R3")

	case OR:
		done := cg.newLabel()
		cg.line("MOV R3, #1")
		cg.line("CMP R2, #0")
		cg.line("BNE %s", done)
		cg.line("CMP R1, #0")
		cg.line("BNE %s", done)
		cg.line("MOV R3, #0")
		cg.line("%s:", done)
		cg.line("MOV R1, R3")

	case STAR:
		cg.genMultiply()
	case SLASH:
		cg.genDivide()
	case SHL:
		cg.genShift("ADD R2, R2, R2")
	case SHR:
		cg.genShift("ADD R2, R2, R0, ASR")
	}
}

// genMultiply adds R2 to an accumulator R1 times. A negative multiplier
// negates both operands first.
func (cg *CodeGen) genMultiply() {
	loop, done := cg.newLabel(), cg.newLabel()
	cg.line("MOV R3, #0")
	cg.line("CMP R1, #0")
	cg.line("BGE %s", loop)
	cg.line("SUB R1, R0, R1")
	cg.line("SUB R2, R0, R2")
	cg.line("%s:", loop)
	cg.line("CMP R1, #0")
	cg.line("BEQ %s", done)
	cg.line("ADD R3, R3, R2")
	cg.line("SUB R1, R1, #1")
	cg.line("B %s", loop)
	cg.line("%s:", done)
	cg.line("MOV R1, R3")
}

// genDivide divides magnitudes by repeated subtraction and fixes the sign
// afterwards, truncating toward zero. Magnitudes are compared unsigned so
// that -32768 survives negation. Division by zero yields 0.
func (cg *CodeGen) genDivide() {
	divisorPos, dividendPos := cg.newLabel(), cg.newLabel()
	loop, sign, done := cg.newLabel(), cg.newLabel(), cg.newLabel()
	cg.line("MOV R3, #0")
	cg.line("MOV R4, #0")
	cg.line("CMP R1, #0")
	cg.line("BEQ %s", done)
	cg.line("BGT %s", divisorPos)
	cg.line("SUB R1, R0, R1")
	cg.line("ADD R4, R4, #1")
	cg.line("%s:", divisorPos)
	cg.line("CMP R2, #0")
	cg.line("BGE %s", dividendPos)
	cg.line("SUB R2, R0, R2")
	cg.line("ADD R4, R4, #1")
	cg.line("%s:", dividendPos)
	cg.line("%s:", loop)
	cg.line("CMP R2, R1")
	cg.line("BCC %s", sign)
	cg.line("SUB R2, R2, R1")
	cg.line("ADD R3, R3, #1")
	cg.line("B %s", loop)
	cg.line("%s:", sign)
	cg.line("CMP R4, #1")
	cg.line("BNE %s", done)
	cg.line("SUB R3, R0, R3")
	cg.line("%s:", done)
	cg.line("MOV R1, R3")
}

// genShift applies step to R2 once per unit of R1.
func (cg *CodeGen) genShift(step string) {
	loop, done := cg.newLabel(), cg.newLabel()
	cg.line("%s:", loop)
	cg.line("CMP R1, #0")
	cg.line("BLE %s", done)
	cg.line("%s", step)
	cg.line("SUB R1, R1, #1")
	cg.line("B %s", loop)
	cg.line("%s:", done)
	cg.line("MOV R1, R2")
}
