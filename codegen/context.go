// Package codegen implements the lowering pipeline that rewrites an ir.Unit
// in place so every value ends up either a constant, a physical register, or
// (reserved, unused by the core pipeline) a spill slot: copy insertion,
// control-flow-graph-driven liveness, and register allocation (spec §4.D-F).
package codegen

import "github.com/tetsuwan/ir2x64/ir"

// Context is the codegen-owned counterpart to ir.Unit: it owns every virtual
// register created during lowering, the same way the original source's
// codegen::Context sits alongside the ir::Unit it rewrites.
type Context struct {
	unit     *ir.Unit
	nextVReg uint32
}

// NewContext returns a Context that will lower unit.
func NewContext(unit *ir.Unit) *Context {
	return &Context{unit: unit}
}

// Unit returns the ir.Unit this Context lowers.
func (c *Context) Unit() *ir.Unit { return c.unit }

// NewVirtual allocates a fresh virtual register with an identity unique
// within this Context.
func (c *Context) NewVirtual() *ir.Register {
	id := c.nextVReg
	c.nextVReg++
	return ir.NewVirtualRegister(id)
}
