// Package report collects diagnostics produced while scanning providers and
// emitting generated code.
package report

import (
	"fmt"
	"go/token"
	"io"
	"sync"
)

// Code identifies a diagnostic class.
type Code string

const (
	CodeBadProviderName    Code = "bad-provider-name"
	CodeDuplicateProvider  Code = "duplicate-provider"
	CodeNonInterfaceTarget Code = "non-interface-target"
	CodeEmbeddedInterface  Code = "embedded-interface"
	CodeProbeReturnsValue  Code = "probe-returns-value"
	CodeUnsupportedArgType Code = "unsupported-arg-type"
	CodeUnnamedArg         Code = "unnamed-arg"
	CodeTooManyArgs        Code = "too-many-args"
)

// Reporter collects and classifies diagnostics discovered during a run.
type Reporter struct {
	mu      sync.Mutex
	reports []Report
}

// Report represents a single diagnostic entry.
type Report struct {
	Phase   RunPhase
	Code    Code
	Pos     token.Position
	Message string
}

// RunPhase marks the stage of the run where a report was generated.
type RunPhase int

const (
	runPhaseInvalid RunPhase = iota
	PhaseScan                // provider discovery in Go sources
	PhaseNative              // native toolchain detection
	PhaseEmit                // code generation
)

func (p RunPhase) String() string {
	switch p {
	case PhaseScan:
		return "scan"
	case PhaseNative:
		return "native"
	case PhaseEmit:
		return "emit"
	default:
		return fmt.Sprintf("unknown-phase(%d)", p)
	}
}

// Phase binds the reporter to a fixed phase so callers do not have to repeat
// it on every record.
type Phase struct {
	parent *Reporter
	phase  RunPhase
}

// Phase returns a phase-bound reporter that automatically sets the given
// phase for all reports produced through it.
func (r *Reporter) Phase(p RunPhase) *Phase {
	return &Phase{parent: r, phase: p}
}

// Report adds a new record to the reporter.
func (r *Reporter) Report(rep Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Report records a new diagnostic under the bound phase.
func (p *Phase) Report(code Code, message string, pos token.Position) {
	p.parent.Report(Report{
		Phase:   p.phase,
		Code:    code,
		Message: message,
		Pos:     pos,
	})
}

// Reportf records a new diagnostic with a formatted message.
func (p *Phase) Reportf(code Code, pos token.Position, format string, args ...any) {
	p.Report(code, fmt.Sprintf(format, args...), pos)
}

// Reports returns a snapshot of all collected records.
func (r *Reporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Empty reports whether nothing has been recorded.
func (r *Reporter) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports) == 0
}

// WriteSummary writes all collected reports in a compact, human-readable form.
func (r *Reporter) WriteSummary(w io.Writer) {
	for _, rep := range r.Reports() {
		fmt.Fprintf(w, "[%s] %s: %s (%s:%d)\n",
			rep.Phase,
			rep.Code,
			rep.Message,
			rep.Pos.Filename,
			rep.Pos.Line)
	}
}
