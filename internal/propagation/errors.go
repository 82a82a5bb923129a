package propagation

import (
	"fmt"

	"github.com/emberlang/classflow/internal/image"
)

// InvariantError reports a condition the analysis assumes always holds
// over a well-formed image (an ASSERT in the system this is modeled on):
// a block slot that turns out not to hold a block, a stack merged
// against one at a different height, and the like. It is always a bug
// in the image or in this package, never a property of the analyzed
// program, so callers are expected to let it propagate to a top-level
// recover rather than handle it.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string { return "propagation: " + e.Message }

func invariant(ok bool, message string) {
	if !ok {
		panic(&InvariantError{Message: message})
	}
}

// UnsupportedOpcodeError marks a bytecode position whose opcode the
// analyzer does not give concrete semantics to. Unlike InvariantError,
// this is expected to occur on real input (the frontend may still emit
// forms this port never learned, e.g. dynamic global access) and is
// recorded rather than fatal: the path is simply not propagated past
// that point, exactly as an unconditional RETURN would be.
type UnsupportedOpcodeError struct {
	Op       image.Opcode
	Position int
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("propagation: unsupported opcode %s at position %d", e.Op, e.Position)
}

// Diagnostics accumulates non-fatal notices raised while propagating,
// surfaced alongside the result so a caller can tell a conservative
// widening apart from a clean run.
type Diagnostics struct {
	entries []string
}

func (d *Diagnostics) add(message string) { d.entries = append(d.entries, message) }

// Entries returns the recorded diagnostic messages in emission order.
func (d *Diagnostics) Entries() []string { return d.entries }
