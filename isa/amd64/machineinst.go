package amd64

import (
	"fmt"

	"github.com/tetsuwan/ir2x64/ir"
)

// Opcode names a machine-level operation the encoder knows how to turn into
// bytes (spec §4.H). Ordering mirrors original_source/sources/x86/MachineInst.cc's
// s_functions dispatch table, kept here only for readability — Go's switch in
// encode.go dispatches by value, not by table index.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpLeave
	OpMov
	OpPop
	OpPush
	OpRet
	OpCmp
	OpCall
	OpJe
	OpJmp
	OpJne
	OpSete
	OpSetne
	OpSetl
	OpSetg
	OpSetle
	OpSetge
)

func (o Opcode) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpLeave:
		return "leave"
	case OpMov:
		return "mov"
	case OpPop:
		return "pop"
	case OpPush:
		return "push"
	case OpRet:
		return "ret"
	case OpCmp:
		return "cmp"
	case OpCall:
		return "call"
	case OpJe:
		return "je"
	case OpJmp:
		return "jmp"
	case OpJne:
		return "jne"
	case OpSete:
		return "sete"
	case OpSetne:
		return "setne"
	case OpSetl:
		return "setl"
	case OpSetg:
		return "setg"
	case OpSetle:
		return "setle"
	case OpSetge:
		return "setge"
	default:
		return "?"
	}
}

// setccFor maps a compare kind to its SETcc opcode, used both when a Compare
// feeds a CondBranch indirectly (via a materialized 0/1 byte) and when it
// stands alone with no CondBranch consumer at all (SPEC_FULL.md's
// supplemented feature).
func setccFor(kind ir.CompareKind) Opcode {
	switch kind {
	case ir.CmpEQ:
		return OpSete
	case ir.CmpNE:
		return OpSetne
	case ir.CmpLT:
		return OpSetl
	case ir.CmpGT:
		return OpSetg
	case ir.CmpLE:
		return OpSetle
	case ir.CmpGE:
		return OpSetge
	default:
		panic("unreachable")
	}
}

// OperandKind identifies which field of Operand is meaningful.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImm
	OperandOff
	OperandBaseDisp
)

// Operand is one of a MachineInst's two operand slots (spec §4.G: "Reg
// (physical register number), Imm (64-bit signed literal), Off (signed
// byte/dword displacement for branches and calls), BaseDisp (base register +
// 8-bit signed displacement, used for stack slots)").
type Operand struct {
	Kind OperandKind
	Reg  uint8
	Imm  int64
	Off  int32
	Base uint8
	Disp int8
}

func RegOperand(num uint8) Operand { return Operand{Kind: OperandReg, Reg: num} }
func ImmOperand(v int64) Operand   { return Operand{Kind: OperandImm, Imm: v} }

// MachineInst is one machine-level instruction record (spec §4.G): an
// opcode, an operand width, and up to two operands. Branch- and call-target
// operands carry a symbolic reference (targetBlock/targetFunc) until
// encode.go's layout pass resolves them to a concrete Off.
type MachineInst struct {
	Op       Opcode
	Width    int // 8, 16, 32 or 64
	Operands [2]Operand

	targetBlock *ir.BasicBlock
	targetFunc  *ir.Function

	// startsBlock/startsFunc tag the first MachineInst emitted for a given
	// IR block or function, so the encoder's layout pass can record that
	// block's or function's start address without a parallel index.
	startsBlock *ir.BasicBlock
	startsFunc  *ir.Function
}

func (m *MachineInst) String() string {
	return fmt.Sprintf("%s.%d %v %v", m.Op, m.Width, m.Operands[0], m.Operands[1])
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandReg:
		return fmt.Sprintf("r%d", o.Reg)
	case OperandImm:
		return fmt.Sprintf("$%d", o.Imm)
	case OperandOff:
		return fmt.Sprintf("off%d", o.Off)
	case OperandBaseDisp:
		return fmt.Sprintf("[r%d+%d]", o.Base, o.Disp)
	default:
		return "-"
	}
}
