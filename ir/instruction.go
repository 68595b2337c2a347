package ir

import (
	"fmt"
	"strings"

	"github.com/tetsuwan/ir2x64/internal/diag"
)

// Opcode identifies which Instruction variant an Instruction is. Go has no
// tagged unions, so — mirroring the flattened Instruction struct style the
// teacher backend uses for its own machine instructions — every Instruction
// is the same Go type, and opcode-specific accessors assert the shape they
// expect instead of relying on subclassing.
type Opcode int

const (
	OpInvalid Opcode = iota
	OpAdd
	OpSub
	OpCompare
	OpBranch
	OpCondBranch
	OpCall
	OpCopy
	OpLoad
	OpStore
	OpRet
)

func (o Opcode) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpCompare:
		return "cmp"
	case OpBranch:
		return "br"
	case OpCondBranch:
		return "condbr"
	case OpCall:
		return "call"
	case OpCopy:
		return "copy"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpRet:
		return "ret"
	default:
		return "invalid"
	}
}

// CompareKind is only meaningful when Opcode() == OpCompare.
type CompareKind int

const (
	CmpEQ CompareKind = iota
	CmpNE
	CmpLT
	CmpGT
	CmpLE
	CmpGE
)

func (c CompareKind) String() string {
	switch c {
	case CmpEQ:
		return "eq"
	case CmpNE:
		return "ne"
	case CmpLT:
		return "lt"
	case CmpGT:
		return "gt"
	case CmpLE:
		return "le"
	case CmpGE:
		return "ge"
	default:
		return "invalid"
	}
}

var instrSeq uint64

// Instruction is every IR instruction variant from spec §3: Binary (Add,
// Sub, Compare), Branch, CondBranch, Call, Copy, Load, Store, Ret.
//
// Operands are kept in a single generic slot array rather than per-variant
// named fields so that every rewrite — regardless of opcode — goes through
// the one setOperand primitive, which is what keeps valueBase.uses
// consistent (spec invariant 3). Slot numbering is documented per accessor
// below, not exposed generically.
type Instruction struct {
	valueBase
	id       uint64
	opcode   Opcode
	cmpKind  CompareKind
	operands []Value
	callee   *Function // Call only

	block      *BasicBlock
	prev, next *Instruction
}

func (i *Instruction) Kind() ValueKind { return ValueInstruction }

func (i *Instruction) Opcode() Opcode { return i.opcode }

// Block returns the BasicBlock this instruction currently belongs to, or nil
// if it has not been inserted (or has been unlinked) yet.
func (i *Instruction) Block() *BasicBlock { return i.block }

func (i *Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%%i%d = %s", i.id, i.opcode)
	for idx, op := range i.operands {
		if idx > 0 || i.opcode != OpCall {
			b.WriteByte(' ')
		}
		if op == nil {
			b.WriteString("<nil>")
		} else {
			b.WriteString(op.String())
		}
	}
	return b.String()
}

// setOperand is the one primitive allowed to mutate an operand slot: it
// removes this instruction's use of the slot's previous occupant (if any)
// and registers it with the new one, keeping every Value's use-list exactly
// in sync with what instructions actually reference.
func setOperand(instr *Instruction, slot int, v Value) {
	for len(instr.operands) <= slot {
		instr.operands = append(instr.operands, nil)
	}
	if old := instr.operands[slot]; old != nil {
		old.removeUse(instr, slot)
	}
	instr.operands[slot] = v
	if v != nil {
		v.addUse(Use{Instr: instr, Slot: slot})
	}
}

func newInstruction(op Opcode, nslots int) *Instruction {
	instrSeq++
	return &Instruction{id: instrSeq, opcode: op, operands: make([]Value, nslots)}
}

// --- Binary: Add, Sub, Compare --------------------------------------------

const (
	slotLHS = 0
	slotRHS = 1
)

// NewAdd constructs an unattached Add instruction; link it into a block via
// BasicBlock.Append/Prepend/InsertBefore.
func NewAdd(lhs, rhs Value) *Instruction {
	i := newInstruction(OpAdd, 2)
	setOperand(i, slotLHS, lhs)
	setOperand(i, slotRHS, rhs)
	return i
}

// NewSub constructs an unattached Sub instruction.
func NewSub(lhs, rhs Value) *Instruction {
	i := newInstruction(OpSub, 2)
	setOperand(i, slotLHS, lhs)
	setOperand(i, slotRHS, rhs)
	return i
}

// NewCompare constructs an unattached Compare instruction of the given kind.
func NewCompare(kind CompareKind, lhs, rhs Value) *Instruction {
	i := newInstruction(OpCompare, 2)
	i.cmpKind = kind
	setOperand(i, slotLHS, lhs)
	setOperand(i, slotRHS, rhs)
	return i
}

func (i *Instruction) requireBinary(who string) {
	if i.opcode != OpAdd && i.opcode != OpSub && i.opcode != OpCompare {
		diag.Bug("%s called on non-binary instruction %s", who, i)
	}
}

func (i *Instruction) Lhs() Value {
	i.requireBinary("Lhs()")
	return i.operands[slotLHS]
}

func (i *Instruction) SetLhs(v Value) {
	i.requireBinary("SetLhs()")
	setOperand(i, slotLHS, v)
}

func (i *Instruction) Rhs() Value {
	i.requireBinary("Rhs()")
	return i.operands[slotRHS]
}

func (i *Instruction) SetRhs(v Value) {
	i.requireBinary("SetRhs()")
	setOperand(i, slotRHS, v)
}

// CompareKind returns the comparison kind; only valid when Opcode() ==
// OpCompare.
func (i *Instruction) CompareKind() CompareKind {
	if i.opcode != OpCompare {
		diag.Bug("CompareKind() called on non-compare instruction %s", i)
	}
	return i.cmpKind
}

// --- Branch -----------------------------------------------------------

// NewBranch constructs an unattached unconditional Branch to target.
func NewBranch(target *BasicBlock) *Instruction {
	i := newInstruction(OpBranch, 1)
	setOperand(i, 0, target)
	return i
}

func (i *Instruction) Target() *BasicBlock {
	if i.opcode != OpBranch {
		diag.Bug("Target() called on non-branch instruction %s", i)
	}
	return i.operands[0].(*BasicBlock)
}

// --- CondBranch ---------------------------------------------------------

// NewCondBranch constructs an unattached CondBranch.
func NewCondBranch(cond Value, trueTarget, falseTarget *BasicBlock) *Instruction {
	i := newInstruction(OpCondBranch, 3)
	setOperand(i, 0, cond)
	setOperand(i, 1, trueTarget)
	setOperand(i, 2, falseTarget)
	return i
}

func (i *Instruction) requireCondBranch(who string) {
	if i.opcode != OpCondBranch {
		diag.Bug("%s called on non-condbranch instruction %s", who, i)
	}
}

func (i *Instruction) Cond() Value {
	i.requireCondBranch("Cond()")
	return i.operands[0]
}

func (i *Instruction) SetCond(v Value) {
	i.requireCondBranch("SetCond()")
	setOperand(i, 0, v)
}

func (i *Instruction) TrueTarget() *BasicBlock {
	i.requireCondBranch("TrueTarget()")
	return i.operands[1].(*BasicBlock)
}

func (i *Instruction) FalseTarget() *BasicBlock {
	i.requireCondBranch("FalseTarget()")
	return i.operands[2].(*BasicBlock)
}

// --- Call -----------------------------------------------------------------

// NewCall constructs an unattached Call to callee with the given ordered
// arguments. Per spec §4.D, the copy inserter leaves this operand list
// untouched — the argument-register copies it inserts are a separate
// rewrite, not a rewrite of the Call's own operands (confirmed against
// original_source/src/codegen/CopyInserter.cc: call->args() is read but
// never reassigned).
func NewCall(callee *Function, args []Value) *Instruction {
	i := newInstruction(OpCall, len(args))
	i.callee = callee
	for idx, a := range args {
		setOperand(i, idx, a)
	}
	return i
}

func (i *Instruction) requireCall(who string) {
	if i.opcode != OpCall {
		diag.Bug("%s called on non-call instruction %s", who, i)
	}
}

func (i *Instruction) Callee() *Function {
	i.requireCall("Callee()")
	return i.callee
}

func (i *Instruction) Args() []Value {
	i.requireCall("Args()")
	return i.operands
}

// SetArg rewrites the idx'th call argument. Register allocation uses this to
// resolve arguments to physical registers even though copy insertion itself
// leaves this list untouched (see NewCall).
func (i *Instruction) SetArg(idx int, v Value) {
	i.requireCall("SetArg()")
	setOperand(i, idx, v)
}

// --- Copy -------------------------------------------------------------

// NewCopy constructs an unattached Copy of src into dst. Per spec §3, the
// defined value of a Copy is dst itself, not the Copy instruction.
func NewCopy(dst *Register, src Value) *Instruction {
	i := newInstruction(OpCopy, 2)
	setOperand(i, 0, dst)
	setOperand(i, 1, src)
	return i
}

func (i *Instruction) requireCopy(who string) {
	if i.opcode != OpCopy {
		diag.Bug("%s called on non-copy instruction %s", who, i)
	}
}

func (i *Instruction) Dst() *Register {
	i.requireCopy("Dst()")
	return i.operands[0].(*Register)
}

func (i *Instruction) SetDst(r *Register) {
	i.requireCopy("SetDst()")
	setOperand(i, 0, r)
}

func (i *Instruction) Src() Value {
	i.requireCopy("Src()")
	return i.operands[1]
}

func (i *Instruction) SetSrc(v Value) {
	i.requireCopy("SetSrc()")
	setOperand(i, 1, v)
}

// --- Load / Store -----------------------------------------------------

// NewLoad constructs an unattached Load from addr. Reserved per spec §3;
// not exercised by the core pipeline (no spilling).
func NewLoad(addr Value) *Instruction {
	i := newInstruction(OpLoad, 1)
	setOperand(i, 0, addr)
	return i
}

// NewStore constructs an unattached Store of val to addr.
func NewStore(addr, val Value) *Instruction {
	i := newInstruction(OpStore, 2)
	setOperand(i, 0, addr)
	setOperand(i, 1, val)
	return i
}

func (i *Instruction) Addr() Value {
	if i.opcode != OpLoad && i.opcode != OpStore {
		diag.Bug("Addr() called on non-memory instruction %s", i)
	}
	return i.operands[0]
}

func (i *Instruction) StoreValue() Value {
	if i.opcode != OpStore {
		diag.Bug("StoreValue() called on non-store instruction %s", i)
	}
	return i.operands[1]
}

// SetAddr rewrites the address operand of a Load or Store.
func (i *Instruction) SetAddr(v Value) {
	if i.opcode != OpLoad && i.opcode != OpStore {
		diag.Bug("SetAddr() called on non-memory instruction %s", i)
	}
	setOperand(i, 0, v)
}

// SetStoreValue rewrites the stored-value operand of a Store.
func (i *Instruction) SetStoreValue(v Value) {
	if i.opcode != OpStore {
		diag.Bug("SetStoreValue() called on non-store instruction %s", i)
	}
	setOperand(i, 1, v)
}

// --- Ret ----------------------------------------------------------------

// NewRet constructs an unattached Ret. val may be nil for a bare return.
func NewRet(val Value) *Instruction {
	if val == nil {
		return newInstruction(OpRet, 0)
	}
	i := newInstruction(OpRet, 1)
	setOperand(i, 0, val)
	return i
}

// RetValue returns the returned value and true, or (nil, false) for a bare
// return.
func (i *Instruction) RetValue() (Value, bool) {
	if i.opcode != OpRet {
		diag.Bug("RetValue() called on non-ret instruction %s", i)
	}
	if len(i.operands) == 0 {
		return nil, false
	}
	return i.operands[0], true
}

// SetRetValue rewrites the value of a Ret that already has one. Use NewRet
// if the instruction was created bare.
func (i *Instruction) SetRetValue(v Value) {
	if i.opcode != OpRet || len(i.operands) == 0 {
		diag.Bug("SetRetValue() called on non-value ret instruction %s", i)
	}
	setOperand(i, 0, v)
}

// --- shared shape queries ------------------------------------------------

// IsTerminator reports whether this instruction can legally end a basic
// block (spec invariant 1).
func (i *Instruction) IsTerminator() bool {
	switch i.opcode {
	case OpBranch, OpCondBranch, OpRet:
		return true
	default:
		return false
	}
}

// Successors returns the basic blocks this instruction can transfer control
// to, in CFG-significant order (true branch first, false branch second for
// CondBranch). Non-terminators and Ret return nil.
func (i *Instruction) Successors() []*BasicBlock {
	switch i.opcode {
	case OpBranch:
		return []*BasicBlock{i.Target()}
	case OpCondBranch:
		return []*BasicBlock{i.TrueTarget(), i.FalseTarget()}
	default:
		return nil
	}
}

// Result returns the Value this instruction defines, and true, or (nil,
// false) if it defines nothing. Per spec §3, a Copy's result is its
// destination register, not the Copy instruction itself; every other
// value-producing variant is its own result.
func (i *Instruction) Result() (Value, bool) {
	switch i.opcode {
	case OpAdd, OpSub, OpCompare, OpCall, OpLoad:
		return i, true
	case OpCopy:
		return i.operands[0], true
	default:
		return nil, false
	}
}

// Drop detaches every operand reference this instruction holds from the
// referenced values' use-lists. Callers must unlink the instruction from its
// block separately (BasicBlock.Unlink); this only clears the reverse edges,
// used by the register allocator's cleanup pass when it discards a Copy
// whose source and destination coincide after allocation.
func (i *Instruction) Drop() {
	for slot := range i.operands {
		setOperand(i, slot, nil)
	}
}
