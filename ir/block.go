package ir

import (
	"fmt"

	"github.com/tetsuwan/ir2x64/internal/diag"
)

// BasicBlock owns an ordered sequence of Instructions, linked intrusively
// (each Instruction knows its own prev/next) so insertion before/after a
// given instruction and unlinking are O(1), matching the List<Instruction>
// the original source uses. A BasicBlock is itself a Value: it is the only
// thing a Branch or CondBranch instruction can reference as a target.
type BasicBlock struct {
	valueBase
	id    int
	fn    *Function
	head  *Instruction
	tail  *Instruction
}

func (b *BasicBlock) Kind() ValueKind { return ValueBlock }

// Name returns the block's debug name, e.g. "blk0".
func (b *BasicBlock) Name() string { return fmt.Sprintf("blk%d", b.id) }

func (b *BasicBlock) String() string { return b.Name() }

// ID returns the block's position-assigned identity within its function.
func (b *BasicBlock) ID() int { return b.id }

// Function returns the owning function.
func (b *BasicBlock) Function() *Function { return b.fn }

// Empty reports whether the block has no instructions.
func (b *BasicBlock) Empty() bool { return b.head == nil }

// First returns the block's first instruction, or nil if empty.
func (b *BasicBlock) First() *Instruction { return b.head }

// Last returns the block's last instruction (the terminator, once the block
// is well-formed), or nil if empty.
func (b *BasicBlock) Last() *Instruction { return b.tail }

// HasTerminator reports whether the block's last instruction is a
// terminator (spec invariant 1 requires this to hold for every block after
// every pass).
func (b *BasicBlock) HasTerminator() bool {
	return b.tail != nil && b.tail.IsTerminator()
}

// Instructions returns a snapshot slice of the block's instructions in
// order. Passes that mutate the block while iterating (the copy inserter)
// must not use this — walk Next() by hand instead, see codegen/copyinsert.go.
func (b *BasicBlock) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.head; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// Append links instr as the new last instruction of the block.
func (b *BasicBlock) Append(instr *Instruction) *Instruction {
	instr.block = b
	instr.prev = b.tail
	instr.next = nil
	if b.tail != nil {
		b.tail.next = instr
	} else {
		b.head = instr
	}
	b.tail = instr
	return instr
}

// Prepend links instr as the new first instruction of the block.
func (b *BasicBlock) Prepend(instr *Instruction) *Instruction {
	instr.block = b
	instr.next = b.head
	instr.prev = nil
	if b.head != nil {
		b.head.prev = instr
	} else {
		b.tail = instr
	}
	b.head = instr
	return instr
}

// InsertBefore links instr immediately before mark, an existing instruction
// of this block. Used by the copy inserter to place ABI copies ahead of the
// instruction that needs them.
func (b *BasicBlock) InsertBefore(mark, instr *Instruction) *Instruction {
	if mark == nil || mark.block != b {
		diag.Bug("InsertBefore: mark is not an instruction of %s", b)
	}
	instr.block = b
	instr.prev = mark.prev
	instr.next = mark
	if mark.prev != nil {
		mark.prev.next = instr
	} else {
		b.head = instr
	}
	mark.prev = instr
	return instr
}

// InsertAfter links instr immediately after mark. Used by the copy inserter
// to place the return-value copy after a Call.
func (b *BasicBlock) InsertAfter(mark, instr *Instruction) *Instruction {
	if mark == nil || mark.block != b {
		diag.Bug("InsertAfter: mark is not an instruction of %s", b)
	}
	instr.block = b
	instr.next = mark.next
	instr.prev = mark
	if mark.next != nil {
		mark.next.prev = instr
	} else {
		b.tail = instr
	}
	mark.next = instr
	return instr
}

// Unlink removes instr from the block's instruction list without touching
// any use-list — callers that truly want to discard instr should also call
// Drop to detach its operands, and redirect any consumers of instr with
// ReplaceAllUsesWith beforehand.
func (b *BasicBlock) Unlink(instr *Instruction) {
	if instr.block != b {
		diag.Bug("Unlink: instruction is not linked to %s", b)
	}
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		b.head = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		b.tail = instr.prev
	}
	instr.prev, instr.next, instr.block = nil, nil, nil
}

// Prev returns the preceding instruction in program order, or nil if i is
// the block's first instruction.
func (i *Instruction) Prev() *Instruction { return i.prev }

// Next returns the following instruction in program order, or nil if i is
// the block's last instruction.
func (i *Instruction) Next() *Instruction { return i.next }
