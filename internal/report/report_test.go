package report

import (
	"go/token"
	"strings"
	"sync"
	"testing"
)

func TestReporter_PhaseBinding(t *testing.T) {
	tests := []struct {
		name     string
		phase    RunPhase
		code     Code
		message  string
		filename string
		line     int
	}{
		{
			name:     "scan-phase unsupported argument",
			phase:    PhaseScan,
			code:     CodeUnsupportedArgType,
			message:  "probe arguments must map to a native type",
			filename: "probes.go",
			line:     10,
		},
		{
			name:     "native-phase detection note",
			phase:    PhaseNative,
			code:     CodeBadProviderName,
			message:  "provider names cannot contain dots",
			filename: "probes.go",
			line:     20,
		},
		{
			name:     "emit-phase duplicate",
			phase:    PhaseEmit,
			code:     CodeDuplicateProvider,
			message:  "provider simple_probes declared twice",
			filename: "other.go",
			line:     42,
		},
	}

	var r Reporter

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase := r.Phase(tt.phase)
			phase.Report(tt.code, tt.message, token.Position{
				Filename: tt.filename,
				Line:     tt.line,
			})
		})
	}

	reps := r.Reports()
	if len(reps) != len(tests) {
		t.Fatalf("expected %d reports, got %d", len(tests), len(reps))
	}

	for i, rep := range reps {
		want := tests[i]
		if rep.Phase != want.phase {
			t.Errorf("[%s] phase mismatch: got %v, want %v", want.name, rep.Phase, want.phase)
		}
		if rep.Code != want.code {
			t.Errorf("[%s] code mismatch: got %v, want %v", want.name, rep.Code, want.code)
		}
		if rep.Message != want.message {
			t.Errorf("[%s] message mismatch: got %q, want %q", want.name, rep.Message, want.message)
		}
		if rep.Pos.Filename != want.filename || rep.Pos.Line != want.line {
			t.Errorf("[%s] position mismatch: got %s:%d, want %s:%d",
				want.name, rep.Pos.Filename, rep.Pos.Line, want.filename, want.line)
		}
	}
}

func TestReporter_ConcurrencySafety(t *testing.T) {
	const n = 500
	var (
		r    Reporter
		wg   sync.WaitGroup
		fset token.FileSet
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Report(Report{
				Phase:   PhaseScan,
				Code:    CodeUnnamedArg,
				Message: "parallel add",
				Pos:     fset.Position(token.Pos(i)),
			})
		}(i)
	}
	wg.Wait()

	reps := r.Reports()
	if len(reps) != n {
		t.Fatalf("expected %d reports, got %d", n, len(reps))
	}
	reps[0].Message = "changed"
	reps2 := r.Reports()
	if reps2[0].Message == "changed" {
		t.Fatalf("Reports() returned shared slice, expected copy")
	}
}

func TestReporter_WriteSummary(t *testing.T) {
	var r Reporter
	r.Phase(PhaseScan).Report(CodeProbeReturnsValue, "probes cannot return values", token.Position{
		Filename: "probes.go",
		Line:     7,
	})

	var sb strings.Builder
	r.WriteSummary(&sb)

	out := sb.String()
	for _, want := range []string{"[scan]", "probe-returns-value", "probes.go:7"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary %q does not contain %q", out, want)
		}
	}
}
