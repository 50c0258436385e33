package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"stumpc/pkg/cpu"
)

var aluOps = map[string]uint16{
	"ADD": cpu.OpADD,
	"ADC": cpu.OpADC,
	"SUB": cpu.OpSUB,
	"SBC": cpu.OpSBC,
	"AND": cpu.OpAND,
	"OR":  cpu.OpOR,
}

var memoryOps = map[string]bool{
	"LD": false,
	"ST": true,
}

var branchOps = map[string]uint16{
	"B":   cpu.CondAL,
	"BAL": cpu.CondAL,
	"BNV": cpu.CondNV,
	"BHI": cpu.CondHI,
	"BLS": cpu.CondLS,
	"BCC": cpu.CondCC,
	"BCS": cpu.CondCS,
	"BNE": cpu.CondNE,
	"BEQ": cpu.CondEQ,
	"BVC": cpu.CondVC,
	"BVS": cpu.CondVS,
	"BPL": cpu.CondPL,
	"BMI": cpu.CondMI,
	"BGE": cpu.CondGE,
	"BLT": cpu.CondLT,
	"BGT": cpu.CondGT,
	"BLE": cpu.CondLE,
}

var shiftNames = map[string]uint16{
	"ASR": cpu.ShiftASR,
	"ROR": cpu.ShiftROR,
	"RRC": cpu.ShiftRRC,
}

const (
	minImm    = -16
	maxImm    = 15
	minOffset = -128
	maxOffset = 127
)

// Assembler translates STUMP assembly text into a little-endian word image.
// Labels are case-sensitive; mnemonics and register names are not.
type Assembler struct {
	labels  map[string]uint16
	aliases map[string]uint16 // register aliases from EQU, upper-cased
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels:  make(map[string]uint16),
		aliases: make(map[string]uint16),
	}
}

// Assemble returns the program image and a map from word address to the
// source line that produced it.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")
	parsed := make([]parsedLine, 0, len(lines))
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, nil, err
		}
		parsed = append(parsed, p)
	}

	if err := a.pass1(parsed); err != nil {
		return nil, nil, err
	}
	return a.pass2(parsed)
}

// Labels returns a copy of the symbol table built by the last Assemble.
func (a *Assembler) Labels() map[string]uint16 {
	out := make(map[string]uint16, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out
}

func (a *Assembler) defineLabel(name string, value uint16, lineNo int) error {
	if _, exists := a.labels[name]; exists {
		return fmt.Errorf("duplicate label '%s' on line %d", name, lineNo)
	}
	a.labels[name] = value
	return nil
}

func (a *Assembler) pass1(lines []parsedLine) error {
	var address uint32

	for _, p := range lines {
		if p.mnemonic == "EQU" {
			if len(p.labels) != 1 || len(p.operands) != 1 {
				return fmt.Errorf("EQU expects a name and one operand on line %d", p.lineNo)
			}
			name := p.labels[0]
			if reg, err := a.parseRegister(p.operands[0], p.lineNo); err == nil {
				a.aliases[strings.ToUpper(name)] = reg
				continue
			}
			v, err := parseNumber(p.operands[0])
			if err != nil {
				return fmt.Errorf("invalid EQU value on line %d: %s", p.lineNo, p.operands[0])
			}
			if err := a.defineLabel(name, v, p.lineNo); err != nil {
				return err
			}
			continue
		}

		if p.mnemonic == "ORG" {
			target, err := orgTarget(p)
			if err != nil {
				return err
			}
			if uint32(target) < address {
				return fmt.Errorf("cannot move origin backward on line %d", p.lineNo)
			}
			address = uint32(target)
		}

		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, p.lineNo)
			}
			if err := a.defineLabel(lbl, uint16(address), p.lineNo); err != nil {
				return err
			}
		}

		if p.mnemonic == "" || p.mnemonic == "ORG" {
			continue
		}
		if !isMnemonic(p.mnemonic) {
			return fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
		}
		if address+1 > cpu.MemoryWords {
			return fmt.Errorf("program too large near line %d", p.lineNo)
		}
		address++
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]byte, map[uint16]int, error) {
	program := make([]uint16, 0, 256)
	sourceMap := make(map[uint16]int)

	for _, p := range lines {
		switch p.mnemonic {
		case "", "EQU":
			continue
		case "ORG":
			target, err := orgTarget(p)
			if err != nil {
				return nil, nil, err
			}
			for len(program) < int(target) {
				program = append(program, 0)
			}
			continue
		}

		address := uint16(len(program))
		word, err := a.encode(p, address)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[address] = p.lineNo
		program = append(program, word)
	}

	out := make([]byte, len(program)*2)
	for i, w := range program {
		out[i*2] = byte(w)
		out[i*2+1] = byte(w >> 8)
	}
	return out, sourceMap, nil
}

func orgTarget(p parsedLine) (uint16, error) {
	if len(p.operands) != 1 {
		return 0, fmt.Errorf("ORG expects exactly one operand on line %d", p.lineNo)
	}
	target, err := parseNumber(p.operands[0])
	if err != nil {
		return 0, fmt.Errorf("invalid ORG value on line %d: %s", p.lineNo, p.operands[0])
	}
	return target, nil
}

// encode assembles one instruction or data word at address.
func (a *Assembler) encode(p parsedLine, address uint16) (uint16, error) {
	m, ops := p.mnemonic, p.operands

	switch m {
	case "DATA", "DEFW":
		if len(ops) != 1 {
			return 0, fmt.Errorf("%s expects exactly one operand on line %d", m, p.lineNo)
		}
		return a.parseValue(ops[0], p.lineNo)

	case "MOV":
		if len(ops) != 2 {
			return 0, fmt.Errorf("MOV expects 2 operands on line %d", p.lineNo)
		}
		return a.encodeALU(cpu.OpADD, false, p, []string{ops[0], ops[1], "R0"}, true)

	case "CMP":
		if len(ops) != 2 {
			return 0, fmt.Errorf("CMP expects 2 operands on line %d", p.lineNo)
		}
		return a.encodeALU(cpu.OpSUB, true, p, []string{"R0", ops[0], ops[1]}, false)
	}

	if cond, ok := branchOps[m]; ok {
		if len(ops) != 1 {
			return 0, fmt.Errorf("%s expects 1 operand on line %d", m, p.lineNo)
		}
		target, err := a.parseValue(ops[0], p.lineNo)
		if err != nil {
			return 0, err
		}
		offset := int(target) - int(address) - 1
		if offset < minOffset || offset > maxOffset {
			return 0, fmt.Errorf("branch to '%s' out of range on line %d: offset %d", ops[0], p.lineNo, offset)
		}
		return cpu.EncodeBranch(cond, offset), nil
	}

	if store, ok := memoryOps[m]; ok {
		return a.encodeMemory(store, p)
	}

	if op, s, ok := splitALU(m); ok {
		return a.encodeALU(op, s, p, ops, false)
	}
	return 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, m)
}

// encodeALU handles dst, a, b|#imm [, shift]. For MOV the source goes in
// the A slot, so MOV d, #i becomes ADD d, R0, #i.
func (a *Assembler) encodeALU(op uint16, s bool, p parsedLine, ops []string, mov bool) (uint16, error) {
	if len(ops) != 3 && len(ops) != 4 {
		return 0, fmt.Errorf("%s expects 3 operands on line %d", p.mnemonic, p.lineNo)
	}
	dst, err := a.parseRegister(ops[0], p.lineNo)
	if err != nil {
		return 0, err
	}

	if mov && isImmediate(ops[1]) {
		ops = []string{ops[0], "R0", ops[1]}
	}

	srcA, err := a.parseRegister(ops[1], p.lineNo)
	if err != nil {
		return 0, err
	}

	if isImmediate(ops[2]) {
		if len(ops) == 4 {
			return 0, fmt.Errorf("shift not allowed with an immediate on line %d", p.lineNo)
		}
		imm, err := a.parseImmediate(ops[2], p.lineNo)
		if err != nil {
			return 0, err
		}
		return cpu.EncodeImmediate(op, s, dst, srcA, imm), nil
	}

	srcB, err := a.parseRegister(ops[2], p.lineNo)
	if err != nil {
		return 0, err
	}
	shift := cpu.ShiftNone
	if len(ops) == 4 {
		var ok bool
		if shift, ok = shiftNames[strings.ToUpper(ops[3])]; !ok {
			return 0, fmt.Errorf("invalid shift '%s' on line %d", ops[3], p.lineNo)
		}
	}
	return cpu.EncodeRegister(op, s, dst, srcA, srcB, shift), nil
}

// encodeMemory handles LD/ST reg, [base], [base, #imm] and [base, reg].
func (a *Assembler) encodeMemory(store bool, p parsedLine) (uint16, error) {
	ops := p.operands
	if len(ops) != 2 && len(ops) != 3 {
		return 0, fmt.Errorf("%s expects a register and an address on line %d", p.mnemonic, p.lineNo)
	}
	reg, err := a.parseRegister(ops[0], p.lineNo)
	if err != nil {
		return 0, err
	}
	base, err := a.parseRegister(ops[1], p.lineNo)
	if err != nil {
		return 0, err
	}
	if len(ops) == 2 {
		return cpu.EncodeImmediate(cpu.OpMEM, store, reg, base, 0), nil
	}
	if isImmediate(ops[2]) {
		imm, err := a.parseImmediate(ops[2], p.lineNo)
		if err != nil {
			return 0, err
		}
		return cpu.EncodeImmediate(cpu.OpMEM, store, reg, base, imm), nil
	}
	index, err := a.parseRegister(ops[2], p.lineNo)
	if err != nil {
		return 0, err
	}
	return cpu.EncodeRegister(cpu.OpMEM, store, reg, base, index, cpu.ShiftNone), nil
}

// splitALU recognises ADD..OR with an optional S suffix that sets flags.
func splitALU(m string) (uint16, bool, bool) {
	if op, ok := aluOps[m]; ok {
		return op, false, true
	}
	if strings.HasSuffix(m, "S") {
		if op, ok := aluOps[strings.TrimSuffix(m, "S")]; ok {
			return op, true, true
		}
	}
	return 0, false, false
}

func isMnemonic(m string) bool {
	switch m {
	case "MOV", "CMP", "DATA", "DEFW", "EQU", "ORG":
		return true
	}
	if _, ok := branchOps[m]; ok {
		return true
	}
	if _, ok := memoryOps[m]; ok {
		return true
	}
	_, _, ok := splitALU(m)
	return ok
}

// parseLine splits a source line into labels, mnemonic and operands. A label
// is either NAME: or a bare first field in column 0 that is not a mnemonic.
func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := stripComments(raw)
	if strings.TrimSpace(line) == "" {
		return p, nil
	}
	columnZero := !unicode.IsSpace(rune(line[0]))
	line = strings.TrimSpace(line)

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		before := line[:colon]
		if strings.ContainsAny(before, " \t") {
			break
		}
		if !isIdentifier(before) {
			return p, fmt.Errorf("invalid label '%s' on line %d", before, lineNo)
		}
		p.labels = append(p.labels, before)
		columnZero = false
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(normalizeInstructionText(line))
	if len(fields) == 0 {
		return p, nil
	}

	if columnZero && !isMnemonic(strings.ToUpper(fields[0])) {
		if !isIdentifier(fields[0]) {
			return p, fmt.Errorf("invalid label '%s' on line %d", fields[0], lineNo)
		}
		p.labels = append(p.labels, fields[0])
		fields = fields[1:]
		if len(fields) == 0 {
			return p, nil
		}
	}

	p.mnemonic = strings.ToUpper(fields[0])
	p.operands = fields[1:]
	return p, nil
}

func stripComments(line string) string {
	if cut := strings.IndexByte(line, ';'); cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	replacer := strings.NewReplacer(",", " ", "[", " ", "]", " ")
	return replacer.Replace(line)
}

func (a *Assembler) parseRegister(token string, lineNo int) (uint16, error) {
	upper := strings.ToUpper(token)
	switch upper {
	case "PC":
		return cpu.RegPC, nil
	case "R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7":
		return uint16(upper[1] - '0'), nil
	}
	if reg, ok := a.aliases[upper]; ok {
		return reg, nil
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func isImmediate(token string) bool {
	return strings.HasPrefix(token, "#")
}

// parseImmediate reads a 5-bit signed #operand, a number or a label.
func (a *Assembler) parseImmediate(token string, lineNo int) (int, error) {
	body := strings.TrimPrefix(token, "#")
	var v int
	if n, err := strconv.ParseInt(body, 0, 32); err == nil {
		v = int(n)
	} else if addr, ok := a.labels[body]; ok {
		v = int(addr)
	} else if isIdentifier(body) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", body, lineNo)
	} else {
		return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
	}
	if v < minImm || v > maxImm {
		return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
	}
	return v, nil
}

// parseValue reads a 16-bit word: a signed or unsigned number or a label.
func (a *Assembler) parseValue(token string, lineNo int) (uint16, error) {
	if v, err := parseNumber(token); err == nil {
		return v, nil
	} else if !isIdentifier(token) {
		return 0, fmt.Errorf("invalid value '%s' on line %d: %v", token, lineNo, err)
	}
	if addr, ok := a.labels[token]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
}

func parseNumber(token string) (uint16, error) {
	n, err := strconv.ParseInt(token, 0, 32)
	if err != nil {
		return 0, err
	}
	if n < -32768 || n > 0xFFFF {
		return 0, fmt.Errorf("%d does not fit in 16 bits", n)
	}
	return uint16(n), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
