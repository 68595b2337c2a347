// Package diag centralizes the fatal-diagnostic helpers used across the
// lowering pipeline. Every structural, lowering, and encoding violation is a
// programmer error in this codebase's current scope, so all three report the
// same way: panic with a "BUG: ..." (or category-prefixed) string that names
// the offending instruction.
package diag

import "fmt"

// Bug panics for a structural violation: a broken IR invariant such as a
// missing terminator, a use-list inconsistency, or a copy-insertion
// precondition that does not hold.
func Bug(format string, args ...any) {
	panic("BUG: " + fmt.Sprintf(format, args...))
}

// Unsupported panics for a lowering violation: an IR shape the instruction
// selector or register allocator cannot handle (unsupported addressing mode,
// allocator exhaustion, a selector asked to lower a shape it does not
// recognize).
func Unsupported(format string, args ...any) {
	panic("unsupported: " + fmt.Sprintf(format, args...))
}

// Unencodable panics for an encoding violation: an immediate or branch
// displacement that does not fit the byte layout the encoder is about to
// emit.
func Unencodable(format string, args ...any) {
	panic("unencodable: " + fmt.Sprintf(format, args...))
}
