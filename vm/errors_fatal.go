package vm

import (
	"fmt"
	"os"
)

// Fatal reports a condition this core treats as a defect in the loaded
// program or the embedder's usage of the Process/Program contract
// rather than a recoverable runtime failure — malformed dispatch
// tables, a bcp that doesn't belong to any function, taking an
// already-taken lookup cache. These conditions aren't representable as
// a Failure sentinel, since a Failure must be something well-behaved
// bytecode can legitimately produce and recover from via GC-and-retry
// or an exception; a malformed program can't.
//
// Fatal logs through Log and terminates the process with exit code 70
// (EX_SOFTWARE), mirroring original_source's FATAL1-style macros
// translated to an idiomatic Go terminal-error helper rather than a
// panic — a panic could be recovered by an embedder and silently
// violate the "fatal" contract.
func Fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Log.Error("fatal", "reason", msg)
	os.Exit(70)
}
