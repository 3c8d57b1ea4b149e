// File: printer.go
package revue

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// PrinterAdd is sent to accumulate text in the printer actor's buffer
// (spec §6.6: "user code sends (add, string)").
type PrinterAdd struct {
	Text string
}

// PrinterFlush is sent to drain the printer actor's buffer to its sink
// (spec §6.6: "(flush)").
type PrinterFlush struct{}

// NewPrinterActor spawns the well-known diagnostics sink actor: it
// accumulates strings added with PrinterAdd and writes them, newline
// joined, to sink whenever it receives a PrinterFlush. Framework
// diagnostics (internal/diag) never go through this actor — it is a
// user-facing convenience, distinct from structured logging (SPEC_FULL.md
// §4.9).
func NewPrinterActor(e *Engine, sink io.Writer) PID {
	if sink == nil {
		sink = os.Stdout
	}
	return e.Spawn(func(ctx Context) Behavior {
		var buf []string
		return NewBehavior(
			Case1[PrinterAdd](func(a PrinterAdd) Result {
				buf = append(buf, a.Text)
				return Handled()
			}),
			Case1[PrinterFlush](func(PrinterFlush) Result {
				if len(buf) > 0 {
					fmt.Fprintln(sink, strings.Join(buf, "\n"))
					buf = buf[:0]
				}
				return Handled()
			}),
		)
	})
}
