package gogen

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegen/tracegen/internal/buildinfo"
	"github.com/tracegen/tracegen/internal/cgen"
	"github.com/tracegen/tracegen/internal/provider"
)

var testGen = cgen.Generator{Name: "tracegen", Version: "0.2.0"}

func testSpec() provider.Specification {
	return provider.Specification{
		Name:     "simple_probes",
		TypeName: "SimpleProbes",
		Package:  "simple",
		Probes: []provider.Probe{
			{
				Name:   "hello",
				GoName: "Hello",
				Args: []provider.Arg{
					{Name: "who", GoType: "string", CType: "const char *"},
				},
			},
			{
				Name:   "request_done",
				GoName: "RequestDone",
				Args: []provider.Arg{
					{Name: "status", GoType: "int", CType: "int64_t"},
					{Name: "hit", GoType: "bool", CType: "int"},
				},
			},
			{
				Name:   "heartbeat",
				GoName: "Heartbeat",
			},
		},
	}
}

func testLinks() []buildinfo.LinkInstruction {
	return []buildinfo.LinkInstruction{
		{Kind: buildinfo.LinkSearchPath, Value: "/tmp/out"},
		{Kind: buildinfo.LinkStaticWrapperLib, Value: "simple_probes_wrapper"},
		{Kind: buildinfo.LinkStaticSupportLib, Value: "stapsdt"},
		{Kind: buildinfo.LinkDynamicSupportLib, Value: "dl"},
	}
}

func TestEmitStap(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, EmitStap(&sb, testGen, testSpec(), testLinks()))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, "//go:build linux && amd64 && tracegen_enabled"))
	assert.Contains(t, out, "// Code generated by tracegen 0.2.0. DO NOT EDIT.")
	assert.Contains(t, out, "package simple")
	assert.Contains(t, out, "#cgo LDFLAGS: -L/tmp/out -l:libsimple_probes_wrapper.a -l:libstapsdt.a -ldl")

	// the cgo comment must sit directly on top of the C import
	assert.Contains(t, out, "*/\nimport \"C\"")

	// one extern declaration per probe
	assert.Contains(t, out, "extern void simple_probes_hello(const char * arg0);")
	assert.Contains(t, out, "extern void simple_probes_request_done(int64_t arg0, int arg1);")
	assert.Contains(t, out, "extern void simple_probes_heartbeat(void);")

	// argument marshalling
	assert.Contains(t, out, "func SimpleProbesHello(who string)")
	assert.Contains(t, out, "arg0 := C.CString(who)")
	assert.Contains(t, out, "defer C.free(unsafe.Pointer(arg0))")
	assert.Contains(t, out, "C.simple_probes_hello(arg0)")

	assert.Contains(t, out, "func SimpleProbesRequestDone(status int, hit bool)")
	assert.Contains(t, out, "C.simple_probes_request_done(C.int64_t(status), arg1)")

	assert.Contains(t, out, "func SimpleProbesHeartbeat()")
	assert.Contains(t, out, "C.simple_probes_heartbeat()")
}

func TestEmitStap_NoStringsMeansNoUnsafe(t *testing.T) {
	spec := provider.Specification{
		Name:     "counters",
		TypeName: "Counters",
		Package:  "metrics",
		Probes: []provider.Probe{
			{
				Name:   "tick",
				GoName: "Tick",
				Args: []provider.Arg{
					{Name: "n", GoType: "uint64", CType: "uint64_t"},
				},
			},
		},
	}

	var sb strings.Builder
	require.NoError(t, EmitStap(&sb, testGen, spec, nil))
	assert.NotContains(t, sb.String(), `"unsafe"`)
	assert.Contains(t, sb.String(), "C.counters_tick(C.uint64_t(n))")
}

func TestEmitNoop(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, EmitNoop(&sb, testGen, testSpec()))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, "//go:build !(linux && amd64 && tracegen_enabled)"))
	assert.Contains(t, out, "func SimpleProbesHello(who string) {}")
	assert.Contains(t, out, "func SimpleProbesRequestDone(status int, hit bool) {}")
	assert.Contains(t, out, "func SimpleProbesHeartbeat() {}")
	assert.NotContains(t, out, `import "C"`)
	assert.NotContains(t, out, "C.")

	// the no-op twin must be plain parseable Go
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, NoopFileName(testSpec()), out, parser.ParseComments)
	require.NoError(t, err)
}

func TestFileNames(t *testing.T) {
	spec := testSpec()
	assert.Equal(t, "simple_probes_tracegen.go", StapFileName(spec))
	assert.Equal(t, "simple_probes_tracegen_noop.go", NoopFileName(spec))
	assert.Equal(t, "SimpleProbesHello", FireName(spec, spec.Probes[0]))
}
