package ir

import "fmt"

// Argument is a function's i-th formal parameter, indexed 0..argc-1 at
// creation time. Arguments are owned by their Function and considered
// defined at the function's entry block for liveness purposes.
type Argument struct {
	valueBase
	fn    *Function
	index int
}

func (a *Argument) Kind() ValueKind { return ValueArgument }

// Index returns this argument's position in its function's parameter list.
func (a *Argument) Index() int { return a.index }

// Function returns the owning function.
func (a *Argument) Function() *Function { return a.fn }

func (a *Argument) String() string { return fmt.Sprintf("arg%d", a.index) }
