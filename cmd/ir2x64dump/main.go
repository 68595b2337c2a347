// Command ir2x64dump builds one of a handful of fixed example functions,
// runs it through the full lowering pipeline, and prints the resulting
// machine code as hex — a way to eyeball what the compiler actually emits
// without writing a test.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	ir2x64 "github.com/tetsuwan/ir2x64"
	"github.com/tetsuwan/ir2x64/ir"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ir2x64dump",
		Short: "Build a sample IR function and dump its compiled machine code",
	}
	root.AddCommand(newDumpCmd())
	return root
}

func newDumpCmd() *cobra.Command {
	var scenario string
	var outPath string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Compile one of the built-in example functions and print its bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			build, ok := scenarios[scenario]
			if !ok {
				return fmt.Errorf("unknown scenario %q (want one of: ret-const, add, call, branch)", scenario)
			}
			unit := build()
			code := ir2x64.Compile(unit)
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(code))
			if outPath != "" {
				if err := os.WriteFile(outPath, code, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&scenario, "scenario", "s", "ret-const", "example to build: ret-const, add, call, branch")
	cmd.Flags().StringVarP(&outPath, "out", "o", "out.bin", "file to write the raw compiled bytes to (empty to skip)")
	return cmd
}

var scenarios = map[string]func() *ir.Unit{
	"ret-const": buildRetConst,
	"add":       buildAdd,
	"call":      buildCall,
	"branch":    buildBranch,
}

// buildRetConst builds spec example S1: a single function that returns the
// constant 42.
func buildRetConst() *ir.Unit {
	unit := ir.NewUnit()
	fn := unit.AppendFunction("ret42", 0)
	entry := fn.AppendBlock()
	entry.Append(ir.NewRet(unit.Constant(42)))
	return unit
}

// buildAdd builds spec example S2: a function that adds 1 to its single
// argument and returns the result.
func buildAdd() *ir.Unit {
	unit := ir.NewUnit()
	fn := unit.AppendFunction("addone", 1)
	entry := fn.AppendBlock()
	sum := ir.NewAdd(fn.Argument(0), unit.Constant(1))
	entry.Append(sum)
	entry.Append(ir.NewRet(sum))
	return unit
}

// buildCall builds spec example S3: main calls foo(10, 20), where foo
// returns the sum of its two arguments; foo is declared after main, the way
// a forward call would be.
func buildCall() *ir.Unit {
	unit := ir.NewUnit()
	main := unit.AppendFunction("main", 0)
	mainEntry := main.AppendBlock()

	foo := unit.AppendFunction("foo", 2)
	fooEntry := foo.AppendBlock()
	sum := ir.NewAdd(foo.Argument(0), foo.Argument(1))
	fooEntry.Append(sum)
	fooEntry.Append(ir.NewRet(sum))

	call := ir.NewCall(foo, []ir.Value{unit.Constant(10), unit.Constant(20)})
	mainEntry.Append(call)
	mainEntry.Append(ir.NewRet(call))
	return unit
}

// buildBranch builds spec example S4: if (1) ret 11 else ret 22.
func buildBranch() *ir.Unit {
	unit := ir.NewUnit()
	fn := unit.AppendFunction("branch", 0)
	entry := fn.AppendBlock()
	trueBlock := fn.AppendBlock()
	falseBlock := fn.AppendBlock()

	cmp := ir.NewCompare(ir.CmpNE, unit.Constant(1), unit.Constant(0))
	entry.Append(cmp)
	entry.Append(ir.NewCondBranch(cmp, trueBlock, falseBlock))

	trueBlock.Append(ir.NewRet(unit.Constant(11)))
	falseBlock.Append(ir.NewRet(unit.Constant(22)))
	return unit
}
