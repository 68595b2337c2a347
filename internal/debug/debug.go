// Package debug gates optional pass-execution tracing behind a package-level
// switch (Enabled), the same way wazevoapi gates its debug printers: no logging
// library, just a guarded fmt.Fprintf to stderr, since this pipeline runs
// synchronously inside a single process with no request-scoped context to
// carry a structured logger through.
package debug

import (
	"fmt"
	"os"
)

// Enabled is flipped to true by hand (or by a test) when tracing pass output
// is needed; it is never toggled by a runtime flag or environment variable.
var Enabled = false

// Tracef writes a trace line to stderr when Enabled is true.
func Tracef(format string, args ...any) {
	if !Enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "[ir2x64] "+format+"\n", args...)
}
