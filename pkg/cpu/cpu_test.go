package cpu

import (
	"testing"

	"github.com/nalgeon/be"
)

// load places words at address 0.
func load(c *CPU, words ...uint16) {
	copy(c.Memory[:], words)
}

// halt is a branch to itself.
var halt = EncodeBranch(CondAL, -1)

func TestEncode(t *testing.T) {
	be.Equal(t, EncodeRegister(OpADD, false, 1, 2, 3, ShiftNone), uint16(0x014C))
	be.Equal(t, EncodeRegister(OpSUB, true, 0, 2, 1, ShiftNone), uint16(0x4844))
	be.Equal(t, EncodeImmediate(OpADD, false, 1, 0, 5), uint16(0x1105))
	be.Equal(t, EncodeImmediate(OpMEM, false, 1, 6, -1), uint16(0xD1DF))
	be.Equal(t, EncodeImmediate(OpMEM, true, 1, 6, 0), uint16(0xD9C0))
	be.Equal(t, EncodeBranch(CondAL, -1), uint16(0xF0FF))
	be.Equal(t, EncodeBranch(CondEQ, 3), uint16(0xF703))
}

func TestLoad(t *testing.T) {
	c := NewCPU()
	be.Err(t, c.Load([]byte{0x05, 0x11, 0xFF, 0xF0}), nil)
	be.Equal(t, c.Memory[0], uint16(0x1105))
	be.Equal(t, c.Memory[1], uint16(0xF0FF))

	be.Err(t, c.Load([]byte{1, 2, 3}), "odd length")
	be.Err(t, c.Load(make([]byte, MemoryWords*2+2)), "too large")
}

func TestAddFlags(t *testing.T) {
	tests := []struct {
		name       string
		a, b       uint16
		want       uint16
		n, z, v, c bool
	}{
		{"small", 2, 3, 5, false, false, false, false},
		{"zero with carry", 0xFFFF, 1, 0, false, true, false, true},
		{"signed overflow", 0x7FFF, 1, 0x8000, true, false, true, false},
		{"negative", 0xFFFE, 0xFFFF, 0xFFFD, true, false, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCPU()
			c.Regs[2], c.Regs[3] = tc.a, tc.b
			load(c, EncodeRegister(OpADD, true, 1, 2, 3, ShiftNone))
			be.Err(t, c.Step(), nil)
			be.Equal(t, c.Regs[1], tc.want)
			be.Equal(t, c.N, tc.n)
			be.Equal(t, c.Z, tc.z)
			be.Equal(t, c.V, tc.v)
			be.Equal(t, c.C, tc.c)
		})
	}
}

func TestSubtractAndCompare(t *testing.T) {
	c := NewCPU()
	c.Regs[1], c.Regs[2] = 3, 5
	load(c,
		EncodeRegister(OpSUB, false, 3, 2, 1, ShiftNone), // R3 = 5 - 3
		EncodeRegister(OpSUB, true, 0, 1, 2, ShiftNone),  // CMP R1, R2
	)
	be.Err(t, c.Step(), nil)
	be.Equal(t, c.Regs[3], uint16(2))
	be.Equal(t, c.Z, false) // no S bit, flags untouched

	be.Err(t, c.Step(), nil)
	be.Equal(t, c.Regs[0], uint16(0))
	be.True(t, c.N)
	be.True(t, !c.C) // borrow
	be.True(t, c.Condition(CondLT))
	be.True(t, !c.Condition(CondGE))
}

func TestSubtractWithCarry(t *testing.T) {
	c := NewCPU()
	c.Regs[1], c.Regs[2] = 10, 3
	c.C = false
	load(c, EncodeRegister(OpSBC, false, 3, 1, 2, ShiftNone))
	be.Err(t, c.Step(), nil)
	be.Equal(t, c.Regs[3], uint16(6))
}

func TestLogicAndShifts(t *testing.T) {
	c := NewCPU()
	c.Regs[1], c.Regs[2] = 0b1100, 0b1010
	c.Regs[3] = 0x8002
	load(c,
		EncodeRegister(OpAND, false, 4, 1, 2, ShiftNone),
		EncodeRegister(OpOR, false, 5, 1, 2, ShiftNone),
		EncodeRegister(OpADD, false, 3, 3, 0, ShiftASR),
		EncodeRegister(OpADD, false, 6, 1, 0, ShiftROR),
	)
	be.Err(t, c.Run(4), ErrStepLimit)
	be.Equal(t, c.Regs[4], uint16(0b1000))
	be.Equal(t, c.Regs[5], uint16(0b1110))
	be.Equal(t, c.Regs[3], uint16(0xC001))
	be.Equal(t, c.Regs[6], uint16(0b0110))
}

func TestRegisterZeroIgnoresWrites(t *testing.T) {
	c := NewCPU()
	load(c, EncodeImmediate(OpADD, false, 0, 0, 7), halt)
	be.Err(t, c.Run(10), nil)
	be.Equal(t, c.Regs[0], uint16(0))
}

func TestLoadStoreAndLiteral(t *testing.T) {
	c := NewCPU()
	load(c,
		EncodeImmediate(OpMEM, false, 1, RegPC, 1), // LD R1, [PC, #1]
		EncodeImmediate(OpADD, false, RegPC, RegPC, 1),
		0x1234,
		EncodeImmediate(OpMEM, false, RegSP, 0, 7), // LD SP, [R0, #7]
		EncodeImmediate(OpMEM, true, 1, RegSP, 0),  // ST R1, [SP]
		EncodeImmediate(OpADD, false, RegSP, RegSP, 1),
		halt,
		0x2000,
	)
	be.Err(t, c.Run(100), nil)
	be.Equal(t, c.Regs[1], uint16(0x1234))
	be.Equal(t, c.Memory[0x2000], uint16(0x1234))
	be.Equal(t, c.Regs[RegSP], uint16(0x2001))
	be.True(t, c.Halted)
	be.Equal(t, c.Steps, 6)
}

func TestIndexedLoad(t *testing.T) {
	c := NewCPU()
	c.Regs[RegSP] = 0x100
	c.Regs[2] = 0xFFEE // -18
	c.Memory[0x100-18] = 42
	load(c, EncodeRegister(OpMEM, false, 1, RegSP, 2, ShiftNone), halt)
	be.Err(t, c.Run(10), nil)
	be.Equal(t, c.Regs[1], uint16(42))
}

func TestConditions(t *testing.T) {
	tests := []struct {
		cond       uint16
		n, z, v, c bool
		want       bool
	}{
		{CondAL, false, false, false, false, true},
		{CondNV, false, false, false, false, false},
		{CondEQ, false, true, false, false, true},
		{CondNE, false, true, false, false, false},
		{CondHI, false, false, false, true, true},
		{CondLS, false, true, false, true, true},
		{CondCS, false, false, false, true, true},
		{CondCC, false, false, false, true, false},
		{CondMI, true, false, false, false, true},
		{CondPL, true, false, false, false, false},
		{CondVS, false, false, true, false, true},
		{CondVC, false, false, true, false, false},
		{CondGE, true, false, true, false, true},
		{CondLT, true, false, false, false, true},
		{CondGT, false, false, false, false, true},
		{CondGT, false, true, false, false, false},
		{CondLE, false, true, false, false, true},
		{CondLE, false, false, false, false, false},
	}
	for _, tc := range tests {
		c := NewCPU()
		c.N, c.Z, c.V, c.C = tc.n, tc.z, tc.v, tc.c
		be.Equal(t, c.Condition(tc.cond), tc.want)
	}
}

func TestBranchTakenAndSkipped(t *testing.T) {
	c := NewCPU()
	c.Regs[1] = 1
	load(c,
		EncodeImmediate(OpSUB, true, 0, 1, 0), // CMP R1, #0
		EncodeBranch(CondEQ, 1),
		EncodeImmediate(OpADD, false, 2, 0, 5),
		EncodeBranch(CondNE, 1),
		EncodeImmediate(OpADD, false, 3, 0, 5),
		halt,
	)
	be.Err(t, c.Run(100), nil)
	be.Equal(t, c.Regs[2], uint16(5))
	be.Equal(t, c.Regs[3], uint16(0))
}

func TestRunStepLimit(t *testing.T) {
	c := NewCPU()
	load(c, EncodeBranch(CondAL, 0), EncodeBranch(CondAL, -2))
	be.Err(t, c.Run(50), ErrStepLimit)
	be.Equal(t, c.Steps, 50)
	be.True(t, !c.Halted)
}

func TestStepAfterHalt(t *testing.T) {
	c := NewCPU()
	load(c, halt)
	be.Err(t, c.Run(0), nil)
	steps := c.Steps
	be.Err(t, c.Step(), nil)
	be.Equal(t, c.Steps, steps)
}
