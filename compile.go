// Package ir2x64 wires together the whole lowering pipeline — copy
// insertion, liveness, register allocation, instruction selection and
// encoding — behind the single entry point a caller actually wants: an
// ir.Unit in, a flat byte stream out (spec §6).
package ir2x64

import (
	"github.com/tetsuwan/ir2x64/codegen"
	"github.com/tetsuwan/ir2x64/codegen/regalloc"
	"github.com/tetsuwan/ir2x64/internal/debug"
	"github.com/tetsuwan/ir2x64/ir"
	"github.com/tetsuwan/ir2x64/isa/amd64"
)

// Compile lowers every function in unit to machine code and returns the
// concatenated, ready-to-execute byte stream (spec §6: "concatenated
// function bodies in declaration order"). unit must not have already been
// compiled — copy insertion is not idempotent (spec §4.D).
func Compile(unit *ir.Unit) []byte {
	debug.Tracef("compiling unit with %d functions", len(unit.Functions()))

	ctx := codegen.NewContext(unit)
	codegen.InsertCopies(ctx)
	debug.Tracef("copy insertion done")

	results := RegisterAllocate(unit)
	debug.Tracef("register allocation done")

	program := amd64.SelectAndCompile(unit, results)
	debug.Tracef("instruction selection done: %d machine instructions", len(program.Insts))

	code := amd64.Encode(program)
	debug.Tracef("encoding done: %d bytes", len(code))
	return code
}

// RegisterAllocate runs liveness analysis and linear-scan-style register
// allocation (spec §4.E-F) over every function of unit, which must already
// have had copy insertion applied. Returns each function's allocation
// Result (its used callee-saved registers), keyed by function, for
// SelectAndCompile's prologue/epilogue decisions.
func RegisterAllocate(unit *ir.Unit) map[*ir.Function]regalloc.Result {
	results := make(map[*ir.Function]regalloc.Result, len(unit.Functions()))
	for _, fn := range unit.Functions() {
		cfg := ir.BuildCFG(fn)
		live := codegen.Compute(fn, cfg)
		results[fn] = regalloc.Allocate(fn, cfg, live, regalloc.SysV)
	}
	return results
}
