package codegen

import (
	"github.com/tetsuwan/ir2x64/internal/diag"
	"github.com/tetsuwan/ir2x64/ir"
)

// Liveness holds, per function, the live-at(value, instruction) relation
// computed by a backward walk from each use to its definition, propagating
// across block boundaries via the CFG when a use's own block doesn't
// contain the definition (spec §4.E). Grounded directly on
// original_source/sources/codegen/Liveness.cc's visit_def/visit_use shape.
//
// Unlike the original source's single def-block map (which asserts each
// value is defined exactly once — untrue here, since a fixed physical
// register such as RAX is legitimately redefined by a Copy ahead of every
// Ret in a multi-return function), this implementation detects "reached the
// definition" by scanning backward instruction-by-instruction rather than
// by block identity. This resolves spec §9's open question about the
// original's imprecise def-block handling without changing the observable
// live_at relation for any value defined exactly once.
type Liveness struct {
	cfg  *ir.CFG
	live map[*ir.Instruction]map[ir.Value]bool
}

// Compute runs liveness analysis over fn using its (already built) cfg.
func Compute(fn *ir.Function, cfg *ir.CFG) *Liveness {
	l := &Liveness{cfg: cfg, live: make(map[*ir.Instruction]map[ir.Value]bool)}
	for _, block := range fn.Blocks() {
		for instr := block.First(); instr != nil; instr = instr.Next() {
			for _, use := range OperandUses(instr) {
				l.markUse(fn, block, instr, use)
			}
		}
	}
	return l
}

// LiveAt reports whether v is live immediately at instruction point (spec
// §4.E's live_at(value, instruction)).
func (l *Liveness) LiveAt(v ir.Value, point *ir.Instruction) bool {
	return l.live[point][v]
}

func (l *Liveness) mark(point *ir.Instruction, v ir.Value) {
	m, ok := l.live[point]
	if !ok {
		m = make(map[ir.Value]bool)
		l.live[point] = m
	}
	m[v] = true
}

// OperandUses returns the values instr consumes, excluding constants and
// physical registers (spec §4.E step 2: "Constants and physical registers
// are ignored as uses"). Exported so the register allocator (codegen/regalloc)
// can drive its own kill/assign walk over the same operand set without
// duplicating this per-opcode table.
func OperandUses(instr *ir.Instruction) []ir.Value {
	var raw []ir.Value
	switch instr.Opcode() {
	case ir.OpAdd, ir.OpSub, ir.OpCompare:
		raw = []ir.Value{instr.Lhs(), instr.Rhs()}
	case ir.OpCall:
		raw = append(raw, instr.Args()...)
	case ir.OpCondBranch:
		raw = []ir.Value{instr.Cond()}
	case ir.OpCopy:
		raw = []ir.Value{instr.Src()}
	case ir.OpRet:
		if v, ok := instr.RetValue(); ok {
			raw = []ir.Value{v}
		}
	case ir.OpLoad:
		raw = []ir.Value{instr.Addr()}
	case ir.OpStore:
		raw = []ir.Value{instr.Addr(), instr.StoreValue()}
	}
	out := raw[:0]
	for _, v := range raw {
		if trackedForLiveness(v) {
			out = append(out, v)
		}
	}
	return out
}

func trackedForLiveness(v ir.Value) bool {
	if v == nil || v.Kind() == ir.ValueConstant {
		return false
	}
	if reg, ok := v.(*ir.Register); ok && reg.Physical() {
		return false
	}
	return true
}

// markUse walks backward from the use at (useBlock, useInstr), marking v
// live at every point from the use itself back to the instruction that
// defines v (or, for an Argument, the top of the entry block); if the walk
// runs off the top of a block without finding the definition, its
// predecessors are enqueued to continue the same walk, each time over that
// predecessor's *entire* block (spec §4.E step 3, and step 4's "blocks may
// be re-entered; the marking is monotone" — a block reached as its own
// predecessor across a back edge must be walked in full, independent of
// whatever partial walk the original use already did over it).
func (l *Liveness) markUse(fn *ir.Function, useBlock *ir.BasicBlock, useInstr *ir.Instruction, v ir.Value) {
	isArg, _ := v.(*ir.Argument)

	// v is live at its own use, including the last use of a multiply-used
	// value — otherwise a later use in the same instruction (e.g. x+x) or
	// an adjacent Copy would see it as already dead.
	l.mark(useInstr, v)

	type walk struct {
		block *ir.BasicBlock
		from  *ir.Instruction
		full  bool // true once it covers the block's entire instruction range
	}

	visited := make(map[*ir.BasicBlock]bool)
	queue := []walk{{block: useBlock, from: useInstr.Prev(), full: false}}

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if w.full {
			if visited[w.block] {
				continue
			}
			visited[w.block] = true
		}

		reachedDef := false
		for p := w.from; p != nil; p = p.Prev() {
			if res, ok := p.Result(); ok && res == v {
				reachedDef = true
				break
			}
			l.mark(p, v)
		}
		if reachedDef {
			continue
		}

		preds := l.cfg.Predecessors(w.block)
		if len(preds) == 0 {
			// Reached the entry block's head without finding a definition.
			// Legitimate only when v is one of this function's own
			// arguments (spec §4.E step 1: arguments are defined at entry).
			if isArg == nil || isArg.Function() != fn {
				diag.Bug("liveness: use of %v has no reaching definition in %s", v, fn)
			}
			continue
		}
		for _, pred := range preds {
			queue = append(queue, walk{block: pred, from: pred.Last(), full: true})
		}
	}
}
