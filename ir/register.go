package ir

import (
	"fmt"

	"github.com/tetsuwan/ir2x64/internal/diag"
)

// RegKind distinguishes a virtual register (an identity awaiting
// allocation) from a physical one (bound to a fixed architectural register
// number, per the GLOSSARY's 0=RAX, 1=RCX, ... numbering).
type RegKind int

const (
	RegVirtual RegKind = iota
	RegPhysical
)

// Register is either a virtual or a physical register value. Physical
// registers are interned per (unit, number) so ABI-fixed operands created by
// independent passes still compare equal; virtual registers have no
// interning — each call to a codegen Context's virtual-register allocator
// produces a fresh identity.
type Register struct {
	valueBase
	kind RegKind
	// num is the architectural register number when kind == RegPhysical.
	num uint8
	// id is the unique identity when kind == RegVirtual; unused otherwise.
	id uint32
}

func (r *Register) Kind() ValueKind { return ValueRegister }

// Physical reports whether this is a physical (already architecturally
// bound) register.
func (r *Register) Physical() bool { return r.kind == RegPhysical }

// Num returns the architectural register number. Valid only when Physical()
// is true.
func (r *Register) Num() uint8 {
	if r.kind != RegPhysical {
		diag.Bug("Num() called on a virtual register v%d", r.id)
	}
	return r.num
}

// ID returns the virtual register's unique identity. Valid only when
// Physical() is false.
func (r *Register) ID() uint32 {
	if r.kind == RegPhysical {
		diag.Bug("ID() called on a physical register p%d", r.num)
	}
	return r.id
}

func (r *Register) String() string {
	if r.kind == RegPhysical {
		return fmt.Sprintf("p%d", r.num)
	}
	return fmt.Sprintf("v%d", r.id)
}

// newPhysicalRegister constructs (uninterned) a physical register value;
// callers go through Unit.PhysReg for interning.
func newPhysicalRegister(num uint8) *Register {
	return &Register{kind: RegPhysical, num: num}
}

// NewVirtualRegister constructs a fresh virtual register with the given
// identity. Callers should go through a codegen.Context, which owns the
// identity counter, rather than calling this directly.
func NewVirtualRegister(id uint32) *Register {
	return &Register{kind: RegVirtual, id: id}
}
