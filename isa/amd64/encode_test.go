package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tetsuwan/ir2x64/ir"
)

func TestEncodeMovRegImm32(t *testing.T) {
	m := &MachineInst{Op: OpMov, Width: 32, Operands: [2]Operand{RegOperand(0), ImmOperand(42)}}
	assert.Equal(t, []byte{0xb8, 0x2a, 0x00, 0x00, 0x00}, encodeOne(m))
}

func TestEncodeMovRegImmExtendedDest(t *testing.T) {
	m := &MachineInst{Op: OpMov, Width: 32, Operands: [2]Operand{RegOperand(9), ImmOperand(1)}}
	assert.Equal(t, []byte{0x41, 0xb9, 0x01, 0x00, 0x00, 0x00}, encodeOne(m))
}

func TestEncodeMovRegReg(t *testing.T) {
	m := &MachineInst{Op: OpMov, Width: 32, Operands: [2]Operand{RegOperand(0), RegOperand(7)}}
	assert.Equal(t, []byte{0x89, 0xf8}, encodeOne(m))
}

func TestEncodeAddRegImm(t *testing.T) {
	m := &MachineInst{Op: OpAdd, Width: 32, Operands: [2]Operand{RegOperand(7), ImmOperand(1)}}
	assert.Equal(t, []byte{0x83, 0xc7, 0x01}, encodeOne(m))
}

func TestEncodeSubRegReg(t *testing.T) {
	m := &MachineInst{Op: OpSub, Width: 32, Operands: [2]Operand{RegOperand(0), RegOperand(1)}}
	assert.Equal(t, []byte{0x29, 0xc8}, encodeOne(m))
}

func TestEncodeCmpRegImmOutOfRangePanics(t *testing.T) {
	m := &MachineInst{Op: OpCmp, Width: 32, Operands: [2]Operand{RegOperand(0), ImmOperand(1000)}}
	assert.PanicsWithValue(t, "unencodable: encode: arithmetic immediate 1000 does not fit a signed 8-bit range", func() {
		encodeOne(m)
	})
}

func TestEncodePushPopExtended(t *testing.T) {
	push := &MachineInst{Op: OpPush, Width: 64, Operands: [2]Operand{RegOperand(12)}}
	assert.Equal(t, []byte{0x41, 0x54}, encodeOne(push))

	pop := &MachineInst{Op: OpPop, Width: 64, Operands: [2]Operand{RegOperand(3)}}
	assert.Equal(t, []byte{0x5b}, encodeOne(pop))
}

func TestEncodeLeaveAndRet(t *testing.T) {
	assert.Equal(t, []byte{0xc9}, encodeOne(&MachineInst{Op: OpLeave}))
	assert.Equal(t, []byte{0xc3}, encodeOne(&MachineInst{Op: OpRet}))
}

func TestEncodeCallResolvesDisplacement(t *testing.T) {
	m := &MachineInst{Op: OpCall, Width: 32, Operands: [2]Operand{{Kind: OperandOff, Off: 30}}}
	assert.Equal(t, []byte{0xe8, 0x19, 0x00, 0x00, 0x00}, encodeOne(m))
}

func TestEncodeShortJumpOutOfRangePanics(t *testing.T) {
	m := &MachineInst{Op: OpJe, Width: 32, Operands: [2]Operand{{Kind: OperandOff, Off: 1000}}}
	assert.Panics(t, func() { encodeOne(m) })
}

func TestEncodeSetccLowByteNoRex(t *testing.T) {
	m := &MachineInst{Op: OpSete, Width: 8, Operands: [2]Operand{RegOperand(0)}}
	assert.Equal(t, []byte{0x0f, 0x94, 0xc0}, encodeOne(m))
}

func TestEncodeSetccForcesRexAboveByteRange(t *testing.T) {
	m := &MachineInst{Op: OpSetl, Width: 8, Operands: [2]Operand{RegOperand(4)}}
	assert.Equal(t, []byte{0x40, 0x0f, 0x9c, 0xc4}, encodeOne(m))
}

func TestEncodeS1RetConstant(t *testing.T) {
	p := &Program{Insts: []*MachineInst{
		{Op: OpMov, Width: 32, Operands: [2]Operand{RegOperand(0), ImmOperand(42)}},
		{Op: OpRet, Width: 64},
	}}
	assert.Equal(t, []byte{0xb8, 0x2a, 0x00, 0x00, 0x00, 0xc3}, Encode(p))
}

func TestEncodeResolvesBranchDisplacement(t *testing.T) {
	unit := ir.NewUnit()
	fn := unit.AppendFunction("f", 0)
	target := fn.AppendBlock()

	jmp := &MachineInst{Op: OpJmp, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetBlock: target}
	filler := &MachineInst{Op: OpLeave}
	landing := &MachineInst{Op: OpRet, startsBlock: target}
	p := &Program{Insts: []*MachineInst{jmp, filler, landing}}

	code := Encode(p)
	// jmp is 2 bytes; filler (leave) is 1 byte; landing starts at offset 3.
	// Displacement is relative to the byte after jmp (offset 2): 3-2=1.
	assert.Equal(t, []byte{0xeb, 0x01, 0xc9, 0xc3}, code)
}
