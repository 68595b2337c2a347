package amd64

import (
	"github.com/tetsuwan/ir2x64/codegen/regalloc"
	"github.com/tetsuwan/ir2x64/internal/diag"
	"github.com/tetsuwan/ir2x64/ir"
)

// Program is the flattened, selected-but-not-yet-encoded instruction stream
// for an entire Unit: every function's machine instructions, concatenated in
// declaration order (spec §6: "Binary output: ... concatenated function
// bodies in declaration order").
type Program struct {
	Insts []*MachineInst
}

// SelectAndCompile lowers every function of unit to machine instructions
// (spec §4.G), given the regalloc.Result each function's allocation pass
// produced (regalloc.Allocate must have already run for every function; see
// the top-level Compile in compile.go). Functions must already have had
// copy insertion and register allocation applied — this pass only reads
// physical registers and constants, per invariant 3.
func SelectAndCompile(unit *ir.Unit, results map[*ir.Function]regalloc.Result) *Program {
	p := &Program{}
	for _, fn := range unit.Functions() {
		selectFunction(p, fn, results[fn])
	}
	return p
}

func selectFunction(p *Program, fn *ir.Function, result regalloc.Result) {
	saved := result.UsedCalleeSaved
	frame := len(saved) > 0

	first := true
	markStart := func(m *MachineInst) {
		if first {
			m.startsFunc = fn
			first = false
		}
	}

	if frame {
		push := &MachineInst{Op: OpPush, Width: 64, Operands: [2]Operand{RegOperand(5)}} // push rbp
		markStart(push)
		p.Insts = append(p.Insts, push)
		p.Insts = append(p.Insts, &MachineInst{Op: OpMov, Width: 64, Operands: [2]Operand{RegOperand(5), RegOperand(4)}}) // mov rbp, rsp
		for _, r := range saved {
			p.Insts = append(p.Insts, &MachineInst{Op: OpPush, Width: 64, Operands: [2]Operand{RegOperand(r)}})
		}
	}

	for bi, block := range fn.Blocks() {
		var nextBlock *ir.BasicBlock
		if bi+1 < len(fn.Blocks()) {
			nextBlock = fn.Blocks()[bi+1]
		}
		blockFirst := true
		for instr := block.First(); instr != nil; instr = instr.Next() {
			insts := selectInstruction(instr, block, nextBlock, saved)
			for _, m := range insts {
				if blockFirst {
					m.startsBlock = block
					blockFirst = false
				}
				markStart(m)
			}
			p.Insts = append(p.Insts, insts...)
		}
	}
}

// selectInstruction lowers one IR instruction, returning the (possibly
// empty, possibly multi-instruction) machine sequence it becomes.
func selectInstruction(instr *ir.Instruction, block *ir.BasicBlock, nextBlock *ir.BasicBlock, saved []uint8) []*MachineInst {
	switch instr.Opcode() {
	case ir.OpCopy:
		return []*MachineInst{selectCopy(instr)}

	case ir.OpAdd, ir.OpSub:
		return []*MachineInst{selectArith(arithOpcodeFor(instr.Opcode()), instr.Lhs(), instr.Rhs())}

	case ir.OpCompare:
		// If the very next instruction is the CondBranch this compare
		// feeds, its own selection (below) consumes this Compare's result
		// directly; emitting the CMP here would duplicate it.
		if next := instr.Next(); next != nil && next.Opcode() == ir.OpCondBranch && sameReg(next.Cond(), instr.Lhs()) {
			return nil
		}
		// A Compare with no (or no adjacent) CondBranch consumer: lower
		// standalone with SETcc materializing 0/1 into its own register
		// (SPEC_FULL.md's supplemented feature, grounded on
		// original_source's Sete/Setne/... opcode family existing
		// independently of any branch).
		lhsReg := instr.Lhs().(*ir.Register)
		return []*MachineInst{
			selectArith(OpCmp, instr.Lhs(), instr.Rhs()),
			{Op: setccFor(instr.CompareKind()), Width: 8, Operands: [2]Operand{RegOperand(lhsReg.Num())}},
		}

	case ir.OpCondBranch:
		return selectCondBranch(instr, nextBlock)

	case ir.OpBranch:
		return []*MachineInst{{Op: OpJmp, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetBlock: instr.Target()}}

	case ir.OpCall:
		return []*MachineInst{{Op: OpCall, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetFunc: instr.Callee()}}

	case ir.OpRet:
		return selectRet(saved)

	case ir.OpLoad, ir.OpStore:
		diag.Unsupported("instruction selection: %s has no addressing-mode lowering in this backend", instr)
		return nil

	default:
		diag.Bug("instruction selection: unhandled opcode for %s", instr)
		return nil
	}
}

func arithOpcodeFor(op ir.Opcode) Opcode {
	switch op {
	case ir.OpAdd:
		return OpAdd
	case ir.OpSub:
		return OpSub
	default:
		diag.Bug("arithOpcodeFor: non-arithmetic opcode %s", op)
		panic("unreachable")
	}
}

func sameReg(a, b ir.Value) bool {
	ra, ok1 := a.(*ir.Register)
	rb, ok2 := b.(*ir.Register)
	return ok1 && ok2 && ra.Physical() && rb.Physical() && ra.Num() == rb.Num()
}

// selectCopy lowers Copy(phys_dst, phys_src) and Copy(phys_dst, Constant) —
// the only two shapes a Copy can still have after register allocation
// (invariant 3).
func selectCopy(instr *ir.Instruction) *MachineInst {
	dst := instr.Dst()
	switch src := instr.Src().(type) {
	case *ir.Constant:
		return &MachineInst{Op: OpMov, Width: 32, Operands: [2]Operand{RegOperand(dst.Num()), ImmOperand(src.Value)}}
	case *ir.Register:
		if !src.Physical() {
			diag.Bug("instruction selection: copy %s still has a virtual source after allocation", instr)
		}
		return &MachineInst{Op: OpMov, Width: 32, Operands: [2]Operand{RegOperand(dst.Num()), RegOperand(src.Num())}}
	default:
		diag.Bug("instruction selection: unsupported copy source for %s", instr)
		return nil
	}
}

// selectArith lowers the common reg-reg / reg-imm shape shared by ADD, SUB
// and CMP: lhs must already be a physical register (two-address form); rhs
// is either a constant (must fit the encoder's signed-8-bit range, checked
// at encode time) or another physical register.
func selectArith(op Opcode, lhs, rhs ir.Value) *MachineInst {
	lhsReg, ok := lhs.(*ir.Register)
	if !ok || !lhsReg.Physical() {
		diag.Bug("instruction selection: arithmetic left-hand side is not a physical register: %v", lhs)
	}
	m := &MachineInst{Op: op, Width: 32, Operands: [2]Operand{RegOperand(lhsReg.Num())}}
	switch rhs := rhs.(type) {
	case *ir.Constant:
		m.Operands[1] = ImmOperand(rhs.Value)
	case *ir.Register:
		if !rhs.Physical() {
			diag.Bug("instruction selection: arithmetic right-hand side still virtual")
		}
		m.Operands[1] = RegOperand(rhs.Num())
	default:
		diag.Bug("instruction selection: unsupported arithmetic operand %v", rhs)
	}
	return m
}

// selectCondBranch lowers CondBranch(cond, t, f) (spec §4.G). When cond is
// fed directly by an adjacent Compare over the same register, the Compare's
// own kind drives JE/JNE directly (for CmpEQ/CmpNE) or, for the orderings
// the encoder has no direct conditional jump for, the compare is first
// materialized into a 0/1 byte via SETcc before falling back to the generic
// zero-test form. Either way, when one of the two target blocks is the
// block immediately following this one in layout order, the matching jump
// is dropped in favor of fall-through.
func selectCondBranch(instr *ir.Instruction, nextBlock *ir.BasicBlock) []*MachineInst {
	cond := instr.Cond()
	trueTarget, falseTarget := instr.TrueTarget(), instr.FalseTarget()

	var out []*MachineInst
	condReg, ok := cond.(*ir.Register)
	if !ok || !condReg.Physical() {
		diag.Bug("instruction selection: condbranch condition is not a physical register: %v", cond)
	}

	if prev := instr.Prev(); prev != nil && prev.Opcode() == ir.OpCompare && sameReg(prev.Lhs(), cond) {
		switch prev.CompareKind() {
		case ir.CmpEQ, ir.CmpNE:
			out = append(out, selectArith(OpCmp, prev.Lhs(), prev.Rhs()))
			// After CMP lhs,rhs, ZF=1 means "equal": that is the false
			// outcome for CmpNE and the true outcome for CmpEQ.
			zeroMeansFalse := prev.CompareKind() == ir.CmpNE
			return append(out, jumpPair(zeroMeansFalse, trueTarget, falseTarget, nextBlock)...)
		default:
			out = append(out,
				selectArith(OpCmp, prev.Lhs(), prev.Rhs()),
				&MachineInst{Op: setccFor(prev.CompareKind()), Width: 8, Operands: [2]Operand{RegOperand(condReg.Num())}},
				&MachineInst{Op: OpCmp, Width: 8, Operands: [2]Operand{RegOperand(condReg.Num()), ImmOperand(0)}},
			)
			return append(out, jumpPair(true, trueTarget, falseTarget, nextBlock)...)
		}
	}

	out = append(out, &MachineInst{Op: OpCmp, Width: 32, Operands: [2]Operand{RegOperand(condReg.Num()), ImmOperand(0)}})
	return append(out, jumpPair(true, trueTarget, falseTarget, nextBlock)...)
}

// jumpPair emits the conditional+unconditional jump pair for a CondBranch
// already reduced to "did the just-executed CMP compare equal?" (jumpIfZeroMeansFalse
// true) semantics, eliding whichever jump is redundant because its target
// is the fall-through block.
func jumpPair(jumpIfZeroMeansFalse bool, trueTarget, falseTarget, nextBlock *ir.BasicBlock) []*MachineInst {
	je := OpJe
	jne := OpJne
	if !jumpIfZeroMeansFalse {
		je, jne = jne, je
	}
	switch nextBlock {
	case trueTarget:
		return []*MachineInst{{Op: je, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetBlock: falseTarget}}
	case falseTarget:
		return []*MachineInst{{Op: jne, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetBlock: trueTarget}}
	default:
		return []*MachineInst{
			{Op: je, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetBlock: falseTarget},
			{Op: OpJmp, Width: 32, Operands: [2]Operand{{Kind: OperandOff}}, targetBlock: trueTarget},
		}
	}
}

func selectRet(saved []uint8) []*MachineInst {
	var out []*MachineInst
	for i := len(saved) - 1; i >= 0; i-- {
		out = append(out, &MachineInst{Op: OpPop, Width: 64, Operands: [2]Operand{RegOperand(saved[i])}})
	}
	if len(saved) > 0 {
		out = append(out, &MachineInst{Op: OpLeave, Width: 64})
	}
	out = append(out, &MachineInst{Op: OpRet, Width: 64})
	return out
}
