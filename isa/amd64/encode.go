package amd64

import (
	"github.com/tetsuwan/ir2x64/internal/diag"
	"github.com/tetsuwan/ir2x64/ir"
)

// Encode lowers a selected Program to its final byte stream (spec §4.H): a
// first pass assigns every instruction a starting offset by encoding it with
// branch/call targets stubbed at zero (their value never affects encoded
// length, only their content); a second pass resolves each Off operand to
// target_offset - (source_offset + instruction_length) and emits bytes for
// real. Grounded directly on original_source/sources/x86/MachineInst.cc's
// per-opcode encode_* functions.
func Encode(p *Program) []byte {
	blockOffset := make(map[*ir.BasicBlock]int, len(p.Insts))
	funcOffset := make(map[*ir.Function]int, len(p.Insts))

	offset := 0
	for _, m := range p.Insts {
		if m.startsBlock != nil {
			blockOffset[m.startsBlock] = offset
		}
		if m.startsFunc != nil {
			funcOffset[m.startsFunc] = offset
		}
		offset += len(encodeOne(m))
	}

	out := make([]byte, 0, offset)
	offset = 0
	for _, m := range p.Insts {
		resolveTarget(m, offset, blockOffset, funcOffset)
		bytes := encodeOne(m)
		out = append(out, bytes...)
		offset += len(bytes)
	}
	return out
}

// resolveTarget fills in m's Off operand from its symbolic target, now that
// every block/function's start offset is known. sourceOffset is the address
// this instruction starts at; encodeOne's own per-opcode logic subtracts the
// instruction's own length to land on "relative to the next instruction"
// (spec §4.H: "target_offset - (source_offset + instruction_length)").
func resolveTarget(m *MachineInst, sourceOffset int, blockOffset map[*ir.BasicBlock]int, funcOffset map[*ir.Function]int) {
	switch {
	case m.targetBlock != nil:
		target, ok := blockOffset[m.targetBlock]
		if !ok {
			diag.Bug("encode: branch target block has no recorded offset")
		}
		m.Operands[0].Off = int32(target - sourceOffset)
	case m.targetFunc != nil:
		target, ok := funcOffset[m.targetFunc]
		if !ok {
			diag.Bug("encode: call target function has no recorded offset")
		}
		m.Operands[0].Off = int32(target - sourceOffset)
	}
}

func modRM(mod, reg, rm uint8) byte {
	return (mod&0b11)<<6 | (reg&0b111)<<3 | (rm & 0b111)
}

// encodeOne returns the full byte encoding of m. Called twice per
// instruction by Encode: once during layout (before Off is resolved, whose
// eventual value never changes this length) and once for real.
func encodeOne(m *MachineInst) []byte {
	switch m.Op {
	case OpAdd, OpSub, OpCmp:
		return encodeArith(m)
	case OpLeave:
		return []byte{0xc9}
	case OpMov:
		return encodeMov(m)
	case OpPop:
		return encodePushPop(m, 0x58)
	case OpPush:
		return encodePushPop(m, 0x50)
	case OpRet:
		return []byte{0xc3}
	case OpCall:
		return encodeCall(m)
	case OpJe:
		return encodeShortJump(m, 0x74)
	case OpJmp:
		return encodeShortJump(m, 0xeb)
	case OpJne:
		return encodeShortJump(m, 0x75)
	case OpSete, OpSetne, OpSetl, OpSetg, OpSetle, OpSetge:
		return encodeSetcc(m)
	default:
		diag.Bug("encode: unrecognized opcode %s", m.Op)
		return nil
	}
}

// encodeArith lowers ADD/SUB/CMP reg,{imm8|reg} (spec §4.H "Arith"
// paragraph). An 8-bit width (the zero test selectCondBranch emits after
// SETcc) is encoded only against an immediate, via the 0x80 form.
// BaseDisp right-hand sides are a representable extension point
// (spec §9) but are never produced by this pipeline's selector, so they are
// deliberately not implemented here.
func encodeArith(m *MachineInst) []byte {
	if m.Width != 8 && m.Width != 16 && m.Width != 32 && m.Width != 64 {
		diag.Bug("encode: arith instruction has invalid operand width %d", m.Width)
	}
	lhs := m.Operands[0].Reg
	var out []byte
	rex := byte(0x40)
	if m.Width == 16 {
		out = append(out, 0x66)
	} else if m.Width == 64 {
		rex |= 1 << 3
	}
	if needsREXExtension(lhs) {
		rex |= 1 << 0
	}
	forceREX := m.Width == 8 && needsRexForByteAccess(lhs)

	switch m.Operands[1].Kind {
	case OperandImm:
		imm := m.Operands[1].Imm
		if imm < -128 || imm > 127 {
			diag.Unencodable("encode: arithmetic immediate %d does not fit a signed 8-bit range", imm)
		}
		if rex != 0x40 || forceREX {
			out = append(out, rex)
		}
		if m.Width == 8 {
			out = append(out, 0x80)
		} else {
			out = append(out, 0x83)
		}
		ext := arithImmExtension(m.Op)
		out = append(out, modRM(0b11, ext, lhs))
		out = append(out, byte(imm))
		return out
	case OperandReg:
		if m.Width == 8 {
			diag.Unsupported("encode: 8-bit register-register arithmetic is not supported")
		}
		rhs := m.Operands[1].Reg
		if needsREXExtension(rhs) {
			rex |= 1 << 2
		}
		if rex != 0x40 {
			out = append(out, rex)
		}
		out = append(out, arithRegRegOpcode(m.Op))
		out = append(out, modRM(0b11, rhs, lhs))
		return out
	default:
		diag.Unsupported("encode: arithmetic right-hand operand kind %v is not supported", m.Operands[1].Kind)
		return nil
	}
}

func arithImmExtension(op Opcode) uint8 {
	switch op {
	case OpCmp:
		return 7
	case OpSub:
		return 5
	default:
		return 0
	}
}

func arithRegRegOpcode(op Opcode) byte {
	switch op {
	case OpAdd:
		return 0x01
	case OpSub:
		return 0x29
	default:
		return 0x39
	}
}

// encodeMov lowers MOV reg,imm / MOV reg,reg (spec §4.H "MOV" paragraph).
// BaseDisp operands (stack slots) are representable but never produced by
// this pipeline's selector (no spilling).
func encodeMov(m *MachineInst) []byte {
	if m.Width != 16 && m.Width != 32 && m.Width != 64 {
		diag.Bug("encode: mov instruction has invalid operand width %d", m.Width)
	}
	if m.Operands[0].Kind != OperandReg {
		diag.Unsupported("encode: mov destination kind %v is not supported", m.Operands[0].Kind)
	}
	dst := m.Operands[0].Reg
	var out []byte
	rex := byte(0x40)
	if m.Width == 16 {
		out = append(out, 0x66)
	} else if m.Width == 64 {
		rex |= 1 << 3
	}
	if needsREXExtension(dst) {
		rex |= 1 << 0
	}

	switch m.Operands[1].Kind {
	case OperandImm:
		imm := m.Operands[1].Imm
		lowDst := dst
		if needsREXExtension(lowDst) {
			lowDst -= 8
		}
		if rex != 0x40 {
			out = append(out, rex)
		}
		out = append(out, 0xb8+lowDst)
		out = append(out, byte(imm), byte(imm>>8))
		if m.Width >= 32 {
			out = append(out, byte(imm>>16), byte(imm>>24))
		}
		if m.Width >= 64 {
			out = append(out, byte(imm>>32), byte(imm>>40), byte(imm>>48), byte(imm>>56))
		}
		return out
	case OperandReg:
		src := m.Operands[1].Reg
		if needsREXExtension(src) {
			rex |= 1 << 2
		}
		if rex != 0x40 {
			out = append(out, rex)
		}
		out = append(out, 0x89)
		out = append(out, modRM(0b11, src, dst))
		return out
	default:
		diag.Unsupported("encode: mov source kind %v is not supported", m.Operands[1].Kind)
		return nil
	}
}

func encodePushPop(m *MachineInst, base byte) []byte {
	if m.Operands[0].Kind != OperandReg {
		diag.Bug("encode: push/pop operand must be a register")
	}
	reg := m.Operands[0].Reg
	var out []byte
	if needsREXExtension(reg) {
		out = append(out, 0x41)
		reg -= 8
	}
	out = append(out, base+reg)
	return out
}

// encodeCall lowers CALL off32: the displacement is relative to the
// instruction immediately following this 5-byte CALL, matching the -5
// correction original_source/sources/x86/MachineInst.cc applies internally.
func encodeCall(m *MachineInst) []byte {
	off := m.Operands[0].Off - 5
	return []byte{0xe8, byte(off), byte(off >> 8), byte(off >> 16), byte(off >> 24)}
}

// encodeShortJump lowers JMP/JE/JNE: an 8-bit displacement relative to the
// instruction immediately following this 2-byte jump (the -2 correction).
func encodeShortJump(m *MachineInst, opcode byte) []byte {
	off := m.Operands[0].Off - 2
	if off < -128 || off > 127 {
		diag.Unencodable("encode: branch displacement %d does not fit a signed 8-bit range", off)
	}
	return []byte{opcode, byte(int8(off))}
}

// encodeSetcc lowers SETcc reg (spec §4.H "SETcc" paragraph): registers in
// the AH..BH legacy-encoding range (>= 4) need a REX prefix purely to force
// the low-byte encoding, even with no extension bits set.
func encodeSetcc(m *MachineInst) []byte {
	if m.Width != 8 {
		diag.Bug("encode: setcc instruction has invalid operand width %d", m.Width)
	}
	reg := m.Operands[0].Reg
	var out []byte
	if needsRexForByteAccess(reg) {
		if needsREXExtension(reg) {
			out = append(out, 0x41)
		} else {
			out = append(out, 0x40)
		}
	}
	if needsREXExtension(reg) {
		reg -= 8
	}
	out = append(out, 0x0f, setccSecondByte(m.Op))
	out = append(out, modRM(0b11, 0, reg))
	return out
}

func setccSecondByte(op Opcode) byte {
	switch op {
	case OpSete:
		return 0x94
	case OpSetne:
		return 0x95
	case OpSetl:
		return 0x9c
	case OpSetg:
		return 0x9f
	case OpSetle:
		return 0x9e
	case OpSetge:
		return 0x9d
	default:
		diag.Bug("encode: unrecognized setcc opcode %s", op)
		return 0
	}
}
