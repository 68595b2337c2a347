package codegen

import (
	"github.com/tetsuwan/ir2x64/internal/diag"
	"github.com/tetsuwan/ir2x64/ir"
)

// ArgRegs is the fixed SysV AMD64 integer argument-register order: RDI,
// RSI, RDX, RCX, R8, R9 (register numbers per the GLOSSARY), taken directly
// from original_source/src/codegen/CopyInserter.cc's argument_registers
// table. The register allocator (codegen/regalloc) reuses this same table
// to pre-color Arguments to the registers they physically arrive in.
var ArgRegs = [6]uint8{7, 6, 2, 1, 8, 9}

// InsertCopies rewrites every function of ctx.Unit() so that ABI-constrained
// operands live in dedicated Copy instructions, establishing spec §3
// invariant 5. Must run exactly once per unit (spec §4.D: running it twice
// would violate invariant 5's own precondition that Branch/Copy never
// precede this pass).
func InsertCopies(ctx *Context) {
	for _, fn := range ctx.Unit().Functions() {
		insertCopiesInFunction(ctx, fn)
	}
}

func insertCopiesInFunction(ctx *Context, fn *ir.Function) {
	for _, block := range fn.Blocks() {
		// Capture "next" before visiting each instruction, not after: a Call
		// insertion appends a copy immediately after itself, which would
		// otherwise become the "next" we see and get visited a second time.
		for instr := block.First(); instr != nil; {
			next := instr.Next()
			visitForCopyInsertion(ctx, block, instr)
			instr = next
		}
	}
}

func visitForCopyInsertion(ctx *Context, block *ir.BasicBlock, instr *ir.Instruction) {
	switch instr.Opcode() {
	case ir.OpAdd, ir.OpSub, ir.OpCompare:
		// Binary: the right-hand side is left as-is because x86's
		// two-address ADD/SUB/CMP forms consume the left operand
		// destructively; only the left operand needs a fresh virtual home.
		vnew := ctx.NewVirtual()
		block.InsertBefore(instr, ir.NewCopy(vnew, instr.Lhs()))
		instr.SetLhs(vnew)

	case ir.OpCall:
		args := instr.Args()
		if len(args) > len(ArgRegs) {
			diag.Unsupported("call with %d arguments exceeds the %d-register ABI table", len(args), len(ArgRegs))
		}
		for i, arg := range args {
			phys := ctx.Unit().PhysReg(ArgRegs[i])
			block.InsertBefore(instr, ir.NewCopy(phys, arg))
		}
		// The call's own operand list is intentionally left untouched: the
		// argument copies above already place each value where the ABI
		// expects it, and CALL itself never reads the IR-level operand
		// list (see isa/amd64/select.go). Only the produced value is
		// redirected, onto a fresh virtual register holding RAX.
		vret := ctx.NewVirtual()
		retCopy := ir.NewCopy(vret, ctx.Unit().PhysReg(0))
		block.InsertAfter(instr, retCopy)
		ir.ReplaceAllUsesWith(instr, vret)

	case ir.OpCondBranch:
		vnew := ctx.NewVirtual()
		block.InsertBefore(instr, ir.NewCopy(vnew, instr.Cond()))
		instr.SetCond(vnew)

	case ir.OpRet:
		if val, ok := instr.RetValue(); ok {
			phys0 := ctx.Unit().PhysReg(0)
			block.InsertBefore(instr, ir.NewCopy(phys0, val))
			instr.SetRetValue(phys0)
		}

	case ir.OpBranch, ir.OpCopy:
		diag.Bug("copy insertion: %s must not appear before this pass runs", instr)

	case ir.OpLoad, ir.OpStore:
		// No ABI-constrained operand positions; nothing to rewrite.

	default:
		diag.Bug("copy insertion: unhandled opcode for %s", instr)
	}
}
