package ir

import "fmt"

// Function owns an ordered sequence of BasicBlocks and a fixed-length
// sequence of Arguments (argc chosen at creation, spec §3). The first block
// is the entry block.
type Function struct {
	unit   *Unit
	name   string
	args   []*Argument
	blocks []*BasicBlock
}

// Name returns the function's name. Names are not required to be globally
// unique (spec §4.B); Unit.Function returns the first match.
func (f *Function) Name() string { return f.name }

// Unit returns the owning unit.
func (f *Function) Unit() *Unit { return f.unit }

// Argument returns the i-th formal parameter.
func (f *Function) Argument(i int) *Argument {
	return f.args[i]
}

// Arguments returns every formal parameter, in index order.
func (f *Function) Arguments() []*Argument { return f.args }

// ArgCount returns the number of formal parameters.
func (f *Function) ArgCount() int { return len(f.args) }

// Blocks returns every basic block, in declaration order. The first entry is
// the entry block.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// Entry returns the function's entry block (its first).
func (f *Function) Entry() *BasicBlock {
	return f.blocks[0]
}

// AppendBlock appends and returns a new, empty BasicBlock.
func (f *Function) AppendBlock() *BasicBlock {
	b := f.unit.blockPool.Allocate()
	b.id = len(f.blocks)
	b.fn = f
	f.blocks = append(f.blocks, b)
	return b
}

func (f *Function) String() string {
	return fmt.Sprintf("func %s/%d", f.name, len(f.args))
}
