package ir

// CFG is a value-type view over a Function's control-flow graph, derived by
// scanning each block's terminator (spec §4.C). It does not own blocks and
// must be rebuilt (BuildCFG again) after any pass edits branch targets or
// block order.
type CFG struct {
	entry *BasicBlock
	preds map[*BasicBlock][]*BasicBlock
	succs map[*BasicBlock][]*BasicBlock
}

// BuildCFG derives the control-flow graph of f from its blocks' terminators:
// Branch contributes one successor, CondBranch two (true first, false
// second), Ret none.
func BuildCFG(f *Function) *CFG {
	cfg := &CFG{
		entry: f.Entry(),
		preds: make(map[*BasicBlock][]*BasicBlock, len(f.blocks)),
		succs: make(map[*BasicBlock][]*BasicBlock, len(f.blocks)),
	}
	for _, b := range f.blocks {
		cfg.preds[b] = nil
		cfg.succs[b] = nil
	}
	for _, b := range f.blocks {
		term := b.Last()
		if term == nil {
			continue
		}
		for _, succ := range term.Successors() {
			cfg.succs[b] = append(cfg.succs[b], succ)
			cfg.preds[succ] = append(cfg.preds[succ], b)
		}
	}
	return cfg
}

// Entry returns the function's entry block.
func (c *CFG) Entry() *BasicBlock { return c.entry }

// Successors returns b's successor blocks, in terminator-defined order.
func (c *CFG) Successors(b *BasicBlock) []*BasicBlock { return c.succs[b] }

// Predecessors returns the blocks that can transfer control directly to b.
func (c *CFG) Predecessors(b *BasicBlock) []*BasicBlock { return c.preds[b] }
