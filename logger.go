// File: logger.go
package revue

import "github.com/lguibr/revue/internal/diag"

// Logger is the structured logging surface threaded through the engine and
// every actor's Context. See internal/diag for the zap-backed
// implementations returned by NewDevelopmentLogger/NewProductionLogger.
type Logger = diag.Logger

// NewDevelopmentLogger returns a human-readable logger suitable for local
// runs and tests.
func NewDevelopmentLogger() Logger { return diag.NewDevelopment() }

// NewProductionLogger returns a JSON logger suitable for embedding revue in
// a long-running service.
func NewProductionLogger() Logger { return diag.NewProduction() }

// NoopLogger discards everything; it is the default when Options.Logger is
// left unset.
func NoopLogger() Logger { return diag.Noop() }
