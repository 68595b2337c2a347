package ir

import "strconv"

// Constant is an interned integer literal. Constant.Value is immutable once
// created; Unit.Constant(n) always returns the same *Constant for equal n,
// matching Constant::get in the original source.
type Constant struct {
	valueBase
	Value int64
}

func (c *Constant) Kind() ValueKind { return ValueConstant }

func (c *Constant) String() string { return strconv.FormatInt(c.Value, 10) }
