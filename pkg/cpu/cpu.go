package cpu

import (
	"errors"
	"fmt"
)

// Operation field, bits 15..13 of every instruction.
const (
	OpADD uint16 = 0x0
	OpADC uint16 = 0x1
	OpSUB uint16 = 0x2
	OpSBC uint16 = 0x3
	OpAND uint16 = 0x4
	OpOR  uint16 = 0x5
	OpMEM uint16 = 0x6 // LD, or ST when the S bit is set
	OpBCC uint16 = 0x7
)

// Shift applied to source A, bits 1..0 of the register form.
const (
	ShiftNone uint16 = 0
	ShiftASR  uint16 = 1
	ShiftROR  uint16 = 2
	ShiftRRC  uint16 = 3
)

// Branch conditions, bits 11..8 of a branch.
const (
	CondAL uint16 = iota
	CondNV
	CondHI
	CondLS
	CondCC
	CondCS
	CondNE
	CondEQ
	CondVC
	CondVS
	CondPL
	CondMI
	CondGE
	CondLT
	CondGT
	CondLE
)

const (
	RegSP uint16 = 6
	RegPC uint16 = 7
)

// MemoryWords is the size of the word-addressed memory.
const MemoryWords = 1 << 16

var ErrStepLimit = errors.New("step limit reached before halt")

// CPU is a STUMP machine: eight 16-bit registers where R0 reads as zero and
// R7 is the program counter, NZVC flags and 64K words of memory.
//
// Reading PC as an operand yields the address of the next instruction. A
// branch to itself halts the machine.
type CPU struct {
	Regs [8]uint16

	N bool
	Z bool
	V bool
	C bool

	Memory [MemoryWords]uint16

	Halted bool
	Steps  int
}

func NewCPU() *CPU {
	return &CPU{}
}

// EncodeRegister builds a register-form instruction: op S dst a b shift.
func EncodeRegister(op uint16, s bool, dst, srcA, srcB, shift uint16) uint16 {
	return op<<13 | flagBit(s) | (dst&7)<<8 | (srcA&7)<<5 | (srcB&7)<<2 | shift&3
}

// EncodeImmediate builds an immediate-form instruction with a 5-bit signed
// immediate.
func EncodeImmediate(op uint16, s bool, dst, srcA uint16, imm int) uint16 {
	return op<<13 | 1<<12 | flagBit(s) | (dst&7)<<8 | (srcA&7)<<5 | uint16(imm)&0x1F
}

// EncodeBranch builds a conditional branch with an 8-bit signed offset
// relative to the following instruction.
func EncodeBranch(cond uint16, offset int) uint16 {
	return OpBCC<<13 | 1<<12 | (cond&0xF)<<8 | uint16(offset)&0xFF
}

func flagBit(s bool) uint16 {
	if s {
		return 1 << 11
	}
	return 0
}

// Load copies a little-endian image of 16-bit words to address 0.
func (c *CPU) Load(image []byte) error {
	if len(image)%2 != 0 {
		return fmt.Errorf("image has odd length %d", len(image))
	}
	if len(image)/2 > MemoryWords {
		return fmt.Errorf("program too large for memory: %d words > %d words", len(image)/2, MemoryWords)
	}
	for i := 0; i < len(image); i += 2 {
		c.Memory[i/2] = uint16(image[i]) | uint16(image[i+1])<<8
	}
	return nil
}

func (c *CPU) reg(idx uint16) uint16 {
	if idx == 0 {
		return 0
	}
	return c.Regs[idx&7]
}

func (c *CPU) setReg(idx, v uint16) {
	if idx == 0 {
		return
	}
	c.Regs[idx&7] = v
}

func (c *CPU) updateNZ(result uint16) {
	c.Z = result == 0
	c.N = result&0x8000 != 0
}

// Condition reports whether cond holds for the current flags.
func (c *CPU) Condition(cond uint16) bool {
	switch cond & 0xF {
	case CondAL:
		return true
	case CondNV:
		return false
	case CondHI:
		return c.C && !c.Z
	case CondLS:
		return !c.C || c.Z
	case CondCC:
		return !c.C
	case CondCS:
		return c.C
	case CondNE:
		return !c.Z
	case CondEQ:
		return c.Z
	case CondVC:
		return !c.V
	case CondVS:
		return c.V
	case CondPL:
		return !c.N
	case CondMI:
		return c.N
	case CondGE:
		return c.N == c.V
	case CondLT:
		return c.N != c.V
	case CondGT:
		return !c.Z && c.N == c.V
	default: // CondLE
		return c.Z || c.N != c.V
	}
}

// shift applies a source-A shift and returns the shifted value and the bit
// shifted out.
func (c *CPU) shift(v, kind uint16) (uint16, bool) {
	out := v&1 != 0
	switch kind {
	case ShiftASR:
		return v>>1 | v&0x8000, out
	case ShiftROR:
		return v>>1 | v<<15, out
	case ShiftRRC:
		var in uint16
		if c.C {
			in = 0x8000
		}
		return v>>1 | in, out
	}
	return v, c.C
}

// addWithCarry computes a + b + carry and the resulting C and V flags.
func addWithCarry(a, b uint16, carry bool) (uint16, bool, bool) {
	sum := uint32(a) + uint32(b)
	if carry {
		sum++
	}
	result := uint16(sum)
	overflow := (a^result)&(b^result)&0x8000 != 0
	return result, sum > 0xFFFF, overflow
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}

	pc := c.Regs[RegPC]
	instr := c.Memory[pc]
	c.Regs[RegPC] = pc + 1
	c.Steps++

	op := instr >> 13
	if op == OpBCC {
		cond := (instr >> 8) & 0xF
		offset := int8(instr & 0xFF)
		if c.Condition(cond) {
			target := uint16(int(c.Regs[RegPC]) + int(offset))
			if target == pc {
				c.Halted = true
				return nil
			}
			c.Regs[RegPC] = target
		}
		return nil
	}

	immediate := instr&(1<<12) != 0
	s := instr&(1<<11) != 0
	dst := (instr >> 8) & 7
	a := c.reg((instr >> 5) & 7)

	var b uint16
	shiftCarry := c.C
	if immediate {
		b = instr & 0x1F
		if b&0x10 != 0 {
			b |= 0xFFE0
		}
	} else {
		b = c.reg((instr >> 2) & 7)
		a, shiftCarry = c.shift(a, instr&3)
	}

	var result uint16
	switch op {
	case OpMEM:
		addr := a + b
		if s {
			c.Memory[addr] = c.reg(dst)
		} else {
			c.setReg(dst, c.Memory[addr])
		}
		return nil

	case OpADD, OpADC:
		carry := op == OpADC && c.C
		r, cf, vf := addWithCarry(a, b, carry)
		result = r
		if s {
			c.C, c.V = cf, vf
			c.updateNZ(r)
		}

	case OpSUB, OpSBC:
		carry := op == OpSUB || c.C
		r, cf, vf := addWithCarry(a, ^b, carry)
		result = r
		if s {
			c.C, c.V = cf, vf
			c.updateNZ(r)
		}

	case OpAND, OpOR:
		if op == OpAND {
			result = a & b
		} else {
			result = a | b
		}
		if s {
			c.C = shiftCarry
			c.updateNZ(result)
		}

	default:
		return fmt.Errorf("illegal instruction 0x%04X at 0x%04X", instr, pc)
	}

	c.setReg(dst, result)
	return nil
}

// Run steps until the machine halts. maxSteps <= 0 means no limit.
func (c *CPU) Run(maxSteps int) error {
	for !c.Halted {
		if maxSteps > 0 && c.Steps >= maxSteps {
			return ErrStepLimit
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}
