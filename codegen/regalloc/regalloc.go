// Package regalloc implements the linear-scan-style allocator of spec §4.F:
// a single deterministic pass over a function's instructions, assigning
// physical registers to every value that still needs one once copy
// insertion has finished, then rewriting operands in place.
//
// This is deliberately not the teacher's graph-coloring allocator
// (backend/regalloc/regalloc.go builds an interference graph and colors
// it); the spec calls for linear scan instead, so only the shape —
// RegisterInfo-driven configuration, a kill/assign/rewrite walk, reporting
// which callee-saved registers ended up live for the prologue/epilogue pass
// — is carried over from it.
package regalloc

import (
	"github.com/tetsuwan/ir2x64/codegen"
	"github.com/tetsuwan/ir2x64/internal/diag"
	"github.com/tetsuwan/ir2x64/ir"
)

// RegisterInfo is the ABI/ISA-specific configuration the allocator needs,
// grounded on the teacher's backend/regalloc.RegisterInfo shape but
// simplified to the one register class this pipeline has (spec §9: no
// floating point).
type RegisterInfo struct {
	// Allocatable lists every physical register number the allocator may
	// hand out, in preference order (ties broken by "lowest numeric index
	// first" per spec §4.F). Must include the ABI argument/return registers
	// so that Arguments and call-return values can be coalesced into the
	// same register their Copy already names (see preColorArguments).
	Allocatable []uint8
	// CalleeSaved is the subset of Allocatable that the caller expects
	// preserved; isa/amd64's prologue/epilogue pass pushes/pops exactly
	// the members of this set that Result.UsedCalleeSaved reports as used.
	CalleeSaved map[uint8]bool
}

// SysV is the RegisterInfo for the System V AMD64 ABI this backend targets:
// every general-purpose register except RSP(4)/RBP(5), which are reserved
// for the stack and frame pointer and never appear in Allocatable.
var SysV = RegisterInfo{
	Allocatable: []uint8{0, 1, 2, 3, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	CalleeSaved: map[uint8]bool{3: true, 12: true, 13: true, 14: true, 15: true},
}

// Result is what Allocate reports back to the instruction selector: the set
// of callee-saved registers actually claimed during allocation, which is
// exactly the set isa/amd64 must push in the prologue and pop in the
// epilogue (spec §4.G).
type Result struct {
	UsedCalleeSaved []uint8
}

// Allocate runs the allocator over every block of fn, in listing order, and
// rewrites every virtual-register, Argument and Instruction-result operand
// it finds into a physical ir.Register (spec invariant 6: no virtual
// registers survive this pass). cfg and live must already be computed for
// fn (ir.BuildCFG, codegen.Compute).
func Allocate(fn *ir.Function, cfg *ir.CFG, live *codegen.Liveness, info RegisterInfo) Result {
	a := &allocator{
		unit:     fn.Unit(),
		cfg:      cfg,
		live:     live,
		info:     info,
		occupant: make(map[uint8]ir.Value, len(info.Allocatable)),
		assigned: make(map[ir.Value]uint8),
		used:     make(map[uint8]bool),
	}
	a.preColorArguments(fn)
	for _, block := range fn.Blocks() {
		for instr := block.First(); instr != nil; instr = instr.Next() {
			a.visit(block, instr)
		}
	}
	cleanupRedundantCopies(fn)

	var result Result
	for _, r := range info.Allocatable {
		if a.used[r] && info.CalleeSaved[r] {
			result.UsedCalleeSaved = append(result.UsedCalleeSaved, r)
		}
	}
	return result
}

type allocator struct {
	unit *ir.Unit
	cfg  *ir.CFG
	live *codegen.Liveness
	info RegisterInfo

	occupant map[uint8]ir.Value // phys register -> value currently holding it
	assigned map[ir.Value]uint8 // value -> phys register currently assigned
	used     map[uint8]bool     // every phys register claimed at least once
}

// preColorArguments binds each of fn's Arguments to the physical register it
// actually arrives in, per the SysV integer argument order (spec §4.D's
// argRegs table, shared with codegen.ArgRegs). This is what lets the
// allocator's coalescing preference (see assignCopy) recover the
// "ADD EDI, 1" form the spec's own worked example shows: the Copy that copy
// insertion placed ahead of the Add is free to land in the same register
// its Argument source already occupies.
func (a *allocator) preColorArguments(fn *ir.Function) {
	for i, arg := range fn.Arguments() {
		if i >= len(codegen.ArgRegs) {
			diag.Unsupported("function %s takes %d arguments, more than the %d-register ABI table supports", fn, fn.ArgCount(), len(codegen.ArgRegs))
		}
		phys := codegen.ArgRegs[i]
		a.assigned[arg] = phys
		a.occupant[phys] = arg
	}
}

func (a *allocator) visit(block *ir.BasicBlock, instr *ir.Instruction) {
	switch instr.Opcode() {
	case ir.OpAdd, ir.OpSub, ir.OpCompare:
		a.visitBinary(block, instr)
	case ir.OpCall:
		a.visitCall(block, instr)
	case ir.OpCondBranch:
		a.visitCondBranch(block, instr)
	case ir.OpCopy:
		a.visitCopy(block, instr)
	case ir.OpLoad:
		a.visitLoad(block, instr)
	case ir.OpStore:
		a.visitStore(block, instr)
	case ir.OpRet, ir.OpBranch:
		// Ret's value (if any) was already forced onto phys0 by copy
		// insertion; Branch has no value operands. Nothing to allocate.
	default:
		diag.Bug("register allocation: unhandled opcode for %s", instr)
	}
}

// resolve maps an operand to what it should read as after allocation:
// constants and already-physical registers pass through unchanged; anything
// else must already have an assignment (invariant 2 guarantees the
// definition was visited earlier in this same linear walk).
func (a *allocator) resolve(v ir.Value) ir.Value {
	if v == nil {
		return nil
	}
	if v.Kind() == ir.ValueConstant {
		return v
	}
	if reg, ok := v.(*ir.Register); ok && reg.Physical() {
		return v
	}
	phys, ok := a.assigned[v]
	if !ok {
		diag.Bug("register allocation: %v used with no reaching assignment", v)
	}
	return a.unit.PhysReg(phys)
}

func isAllocatable(v ir.Value) bool {
	if v == nil || v.Kind() == ir.ValueConstant || v.Kind() == ir.ValueBlock {
		return false
	}
	if reg, ok := v.(*ir.Register); ok {
		return !reg.Physical()
	}
	return true
}

func (a *allocator) liveAfter(block *ir.BasicBlock, instr *ir.Instruction, v ir.Value) bool {
	if next := instr.Next(); next != nil {
		return a.live.LiveAt(v, next)
	}
	for _, succ := range a.cfg.Successors(block) {
		if first := succ.First(); first != nil && a.live.LiveAt(v, first) {
			return true
		}
	}
	return false
}

func (a *allocator) free(v ir.Value) {
	phys, ok := a.assigned[v]
	if !ok {
		return
	}
	delete(a.assigned, v)
	if a.occupant[phys] == v {
		delete(a.occupant, phys)
	}
}

func (a *allocator) killIfDead(block *ir.BasicBlock, instr *ir.Instruction, v ir.Value) {
	if isAllocatable(v) && !a.liveAfter(block, instr, v) {
		a.free(v)
	}
}

// claim picks a free physical register, preferring preferred when it is
// itself free (the coalescing case), else the lowest-numbered free register
// in info.Allocatable order. Panics via diag.Unsupported on exhaustion —
// spec §4.F explicitly forbids spilling to resolve this.
func (a *allocator) claim(def ir.Value, preferred uint8, havePreferred bool) uint8 {
	if havePreferred {
		if _, occupied := a.occupant[preferred]; !occupied {
			a.occupy(def, preferred)
			return preferred
		}
	}
	for _, r := range a.info.Allocatable {
		if _, occupied := a.occupant[r]; !occupied {
			a.occupy(def, r)
			return r
		}
	}
	diag.Unsupported("register allocator exhausted: no free physical register for %v", def)
	panic("unreachable")
}

func (a *allocator) occupy(v ir.Value, phys uint8) {
	a.assigned[v] = phys
	a.occupant[phys] = v
	a.used[phys] = true
}

// visitBinary handles Add/Sub/Compare. Per x86's two-address form (spec
// §4.G: "Add(dst, rhs): two-address: dst is both lhs and destination"), the
// instruction's own result reuses whatever physical register its already-
// copied left-hand operand holds — there is no separate Assign step for it,
// only a retag of the occupant bookkeeping from the dying Copy destination
// onto the instruction itself.
func (a *allocator) visitBinary(block *ir.BasicBlock, instr *ir.Instruction) {
	lhs, rhs := instr.Lhs(), instr.Rhs()
	lhsPhys, ok := a.assigned[lhs]
	if !ok {
		diag.Bug("register allocation: binary lhs %v has no assignment (copy insertion invariant violated)", lhs)
	}
	resolvedRhs := a.resolve(rhs)

	a.killIfDead(block, instr, rhs)

	// The left-hand virtual register is consumed in place by the
	// instruction; retag its slot onto the instruction's own identity so
	// later lookups of this value resolve correctly, then forget the old
	// identity (it has no more uses once this instruction runs).
	delete(a.assigned, lhs)
	a.assigned[instr] = lhsPhys
	a.occupant[lhsPhys] = instr

	instr.SetLhs(a.unit.PhysReg(lhsPhys))
	instr.SetRhs(resolvedRhs)
}

func (a *allocator) visitCall(block *ir.BasicBlock, instr *ir.Instruction) {
	args := instr.Args()
	resolved := make([]ir.Value, len(args))
	for i, arg := range args {
		resolved[i] = a.resolve(arg)
	}
	for _, arg := range args {
		a.killIfDead(block, instr, arg)
	}
	// Copy insertion already redirected every real consumer of this call's
	// result onto the vret Copy that follows it (see copyinsert.go), so
	// Uses() here is normally empty; allocate only if something genuinely
	// still reads it.
	if len(instr.Uses()) > 0 {
		a.claim(instr, 0, false)
	}
	for i, v := range resolved {
		instr.SetArg(i, v)
	}
}

func (a *allocator) visitCondBranch(block *ir.BasicBlock, instr *ir.Instruction) {
	cond := instr.Cond()
	resolved := a.resolve(cond)
	a.killIfDead(block, instr, cond)
	instr.SetCond(resolved)
}

func (a *allocator) visitCopy(block *ir.BasicBlock, instr *ir.Instruction) {
	dst, src := instr.Dst(), instr.Src()
	resolvedSrc := a.resolve(src)

	if dst.Physical() {
		// Fixed ABI copy (an argument-register or return-value copy
		// inserted by copy insertion). Per spec §4.F: "treat each fixed-reg
		// copy as both a kill and a def of that physical register at
		// exactly its program point" — whatever stale value the allocator
		// still thinks occupies dst's number is evicted right here,
		// regardless of its own liveness, because the ABI demands this
		// register now. The one exception is this copy's own source: it
		// already sits in dst, so it keeps the register.
		if stale, had := a.occupant[dst.Num()]; had && stale != src {
			delete(a.assigned, stale)
			delete(a.occupant, dst.Num())
		}
		a.killIfDead(block, instr, src)
		instr.SetSrc(resolvedSrc)
		return
	}

	srcPhys, haveSrcPhys := a.assigned[src]
	a.killIfDead(block, instr, src)
	phys := a.claim(dst, srcPhys, haveSrcPhys)
	instr.SetDst(a.unit.PhysReg(phys))
	instr.SetSrc(resolvedSrc)
}

func (a *allocator) visitLoad(block *ir.BasicBlock, instr *ir.Instruction) {
	addr := instr.Addr()
	resolved := a.resolve(addr)
	a.killIfDead(block, instr, addr)
	if len(instr.Uses()) > 0 {
		a.claim(instr, 0, false)
	}
	instr.SetAddr(resolved)
}

func (a *allocator) visitStore(block *ir.BasicBlock, instr *ir.Instruction) {
	addr, val := instr.Addr(), instr.StoreValue()
	resolvedAddr, resolvedVal := a.resolve(addr), a.resolve(val)
	a.killIfDead(block, instr, addr)
	a.killIfDead(block, instr, val)
	instr.SetAddr(resolvedAddr)
	instr.SetStoreValue(resolvedVal)
}

// cleanupRedundantCopies removes every Copy whose destination and (now
// resolved) source name the same physical register — the coalescing that
// visitCopy performs routinely produces these (spec §4.F: "a cleanup pass
// removes Copy instructions whose source and destination resolve to the
// same physical register").
func cleanupRedundantCopies(fn *ir.Function) {
	for _, block := range fn.Blocks() {
		instr := block.First()
		for instr != nil {
			next := instr.Next()
			if instr.Opcode() == ir.OpCopy {
				if src, ok := instr.Src().(*ir.Register); ok && src.Physical() && src.Num() == instr.Dst().Num() {
					instr.Drop()
					block.Unlink(instr)
				}
			}
			instr = next
		}
	}
}
