package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitConstantInterning(t *testing.T) {
	unit := NewUnit()
	a := unit.Constant(42)
	b := unit.Constant(42)
	c := unit.Constant(7)
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestUnitPhysRegInterning(t *testing.T) {
	unit := NewUnit()
	a := unit.PhysReg(0)
	b := unit.PhysReg(0)
	assert.Same(t, a, b)
	assert.True(t, a.Physical())
	assert.Equal(t, uint8(0), a.Num())
}

func TestAppendFunctionCreatesIndexedArguments(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 3)
	require.Equal(t, 3, fn.ArgCount())
	for i, arg := range fn.Arguments() {
		assert.Equal(t, i, arg.Index())
		assert.Same(t, fn, arg.Function())
	}
}

func TestUnitFunctionFindsFirstMatch(t *testing.T) {
	unit := NewUnit()
	first := unit.AppendFunction("dup", 0)
	unit.AppendFunction("dup", 1)
	assert.Same(t, first, unit.Function("dup"))
	assert.Nil(t, unit.Function("missing"))
}

func TestBasicBlockAppendAndUnlink(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 0)
	b := fn.AppendBlock()

	i1 := NewRet(unit.Constant(1))
	i2 := NewRet(unit.Constant(2))
	b.Append(i1)
	b.Append(i2)

	assert.Equal(t, []*Instruction{i1, i2}, b.Instructions())
	assert.Same(t, i1, b.First())
	assert.Same(t, i2, b.Last())
	assert.Same(t, i2, i1.Next())
	assert.Same(t, i1, i2.Prev())

	b.Unlink(i1)
	assert.Equal(t, []*Instruction{i2}, b.Instructions())
	assert.Same(t, i2, b.First())
	assert.Nil(t, i1.Next())
	assert.Nil(t, i1.Block())
}

func TestBasicBlockInsertBeforeAndAfter(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 0)
	b := fn.AppendBlock()

	mid := NewRet(unit.Constant(1))
	b.Append(mid)

	before := NewRet(unit.Constant(2))
	after := NewRet(unit.Constant(3))
	b.InsertBefore(mid, before)
	b.InsertAfter(mid, after)

	assert.Equal(t, []*Instruction{before, mid, after}, b.Instructions())
}

func TestSetOperandMaintainsUseList(t *testing.T) {
	unit := NewUnit()
	c1, c2 := unit.Constant(1), unit.Constant(2)
	add := NewAdd(c1, c2)

	require.Len(t, c1.Uses(), 1)
	assert.Equal(t, Use{Instr: add, Slot: 0}, c1.Uses()[0])

	add.SetLhs(c2)
	assert.Len(t, c1.Uses(), 0)
	assert.Len(t, c2.Uses(), 2)
}

func TestReplaceAllUsesWith(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 0)
	b := fn.AppendBlock()

	c1 := unit.Constant(1)
	add1 := NewAdd(c1, unit.Constant(2))
	add2 := NewAdd(c1, unit.Constant(3))
	b.Append(add1)
	b.Append(add2)

	other := unit.Constant(9)
	ReplaceAllUsesWith(c1, other)

	assert.Same(t, other, add1.Lhs())
	assert.Same(t, other, add2.Lhs())
	assert.Len(t, c1.Uses(), 0)
	assert.Len(t, other.Uses(), 2)
}

func TestInstructionResult(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 0)
	b := fn.AppendBlock()
	_ = b

	add := NewAdd(unit.Constant(1), unit.Constant(2))
	res, ok := add.Result()
	require.True(t, ok)
	assert.Same(t, add, res)

	vreg := NewVirtualRegister(0)
	cp := NewCopy(vreg, unit.Constant(1))
	res, ok = cp.Result()
	require.True(t, ok)
	assert.Same(t, vreg, res)

	br := NewBranch(fn.AppendBlock())
	_, ok = br.Result()
	assert.False(t, ok)
}

func TestInstructionIsTerminator(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 0)
	target := fn.AppendBlock()

	assert.True(t, NewRet(nil).IsTerminator())
	assert.True(t, NewBranch(target).IsTerminator())
	assert.True(t, NewCondBranch(unit.Constant(1), target, target).IsTerminator())
	assert.False(t, NewAdd(unit.Constant(1), unit.Constant(2)).IsTerminator())
}

func TestBuildCFGSuccessorsAndPredecessors(t *testing.T) {
	unit := NewUnit()
	fn := unit.AppendFunction("f", 0)
	entry := fn.AppendBlock()
	trueBlock := fn.AppendBlock()
	falseBlock := fn.AppendBlock()

	entry.Append(NewCondBranch(unit.Constant(1), trueBlock, falseBlock))
	trueBlock.Append(NewRet(unit.Constant(1)))
	falseBlock.Append(NewRet(unit.Constant(2)))

	cfg := BuildCFG(fn)
	assert.Equal(t, []*BasicBlock{trueBlock, falseBlock}, cfg.Successors(entry))
	assert.Equal(t, []*BasicBlock{entry}, cfg.Predecessors(trueBlock))
	assert.Equal(t, []*BasicBlock{entry}, cfg.Predecessors(falseBlock))
	assert.Empty(t, cfg.Successors(trueBlock))
}

func TestInstructionDropClearsOperands(t *testing.T) {
	unit := NewUnit()
	c1 := unit.Constant(1)
	vreg := NewVirtualRegister(0)
	cp := NewCopy(vreg, c1)

	require.Len(t, c1.Uses(), 1)
	cp.Drop()
	assert.Len(t, c1.Uses(), 0)
	assert.Len(t, vreg.Uses(), 0)
}
