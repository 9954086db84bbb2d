// Package gogen emits the Go side of a provider: exported fire functions
// that call into the native wrappers, plus a no-op twin for builds without
// probing support.
//
// Both files land in the scanned package. The cgo variant is gated behind
// the tracegen_enabled build tag on linux/amd64; everywhere else the no-op
// variant compiles instead, so firing a probe is always legal and never
// fails.
package gogen

import (
	"fmt"
	"go/format"
	"io"
	"strings"
	"text/template"

	"github.com/tracegen/tracegen/internal/buildinfo"
	"github.com/tracegen/tracegen/internal/cgen"
	"github.com/tracegen/tracegen/internal/provider"
)

// BuildTag is the build constraint term that selects the cgo stubs.
const BuildTag = "tracegen_enabled"

var stapFile = template.Must(template.New("stap_stub").Parse(`//go:build linux && amd64 && {{.Tag}}

// Code generated by {{.Gen.Name}} {{.Gen.Version}}. DO NOT EDIT.

package {{.Package}}

/*
{{- if .CFlags}}
#cgo CFLAGS: {{.CFlags}}
{{- end}}
{{- if .LDFlags}}
#cgo LDFLAGS: {{.LDFlags}}
{{- end}}
#include <stdint.h>
#include <stdlib.h>
{{range .Fires}}
extern void {{.Extern}};
{{- end}}
*/
import "C"
{{if .NeedUnsafe}}
import "unsafe"
{{end}}
{{- range .Fires}}
// {{.FuncName}} fires the {{.ProbeName}} probe of provider {{$.Provider}}.
func {{.FuncName}}({{.Params}}) {
{{- range .Setup}}
	{{.}}
{{- end}}
	C.{{.Call}}
}
{{end}}`))

var noopFile = template.Must(template.New("noop_stub").Parse(`//go:build !(linux && amd64 && {{.Tag}})

// Code generated by {{.Gen.Name}} {{.Gen.Version}}. DO NOT EDIT.

package {{.Package}}
{{if .NeedUnsafe}}
import "unsafe"
{{end}}
{{- range .Fires}}
// {{.FuncName}} fires the {{.ProbeName}} probe of provider {{$.Provider}}.
// Probing support is compiled out of this build, so firing is a no-op.
func {{.FuncName}}({{.Params}}) {}
{{end}}`))

type fileView struct {
	Tag        string
	Gen        cgen.Generator
	Package    string
	Provider   string
	CFlags     string
	LDFlags    string
	NeedUnsafe bool
	Fires      []fireView
}

type fireView struct {
	FuncName  string
	ProbeName string
	Params    string
	Extern    string
	Setup     []string
	Call      string
}

// StapFileName returns the name of the generated cgo stub file.
func StapFileName(spec provider.Specification) string {
	return spec.Name + "_tracegen.go"
}

// NoopFileName returns the name of the generated no-op stub file.
func NoopFileName(spec provider.Specification) string {
	return spec.Name + "_tracegen_noop.go"
}

// FireName returns the exported name of the fire function for one probe.
func FireName(spec provider.Specification, probe provider.Probe) string {
	return spec.TypeName + probe.GoName
}

// EmitStap writes the cgo stub file for a provider. The link instructions
// come from the build info and are extended with the provider's own wrapper
// library by the caller.
func EmitStap(w io.Writer, gen cgen.Generator, spec provider.Specification, links []buildinfo.LinkInstruction) error {
	view := fileView{
		Tag:      BuildTag,
		Gen:      gen,
		Package:  spec.Package,
		Provider: spec.Name,
		CFlags:   strings.Join(buildinfo.CFlags(links), " "),
		LDFlags:  strings.Join(buildinfo.LDFlags(links), " "),
	}

	for _, probe := range spec.Probes {
		fire, needUnsafe := stapFire(spec, probe)
		view.Fires = append(view.Fires, fire)
		view.NeedUnsafe = view.NeedUnsafe || needUnsafe
	}

	return render(w, stapFile, view, spec)
}

// EmitNoop writes the no-op stub file for a provider.
func EmitNoop(w io.Writer, gen cgen.Generator, spec provider.Specification) error {
	view := fileView{
		Tag:      BuildTag,
		Gen:      gen,
		Package:  spec.Package,
		Provider: spec.Name,
	}

	for _, probe := range spec.Probes {
		view.Fires = append(view.Fires, fireView{
			FuncName:  FireName(spec, probe),
			ProbeName: probe.Name,
			Params:    goParams(probe),
		})
		for _, arg := range probe.Args {
			if arg.GoType == "unsafe.Pointer" {
				view.NeedUnsafe = true
			}
		}
	}

	return render(w, noopFile, view, spec)
}

func render(w io.Writer, tmpl *template.Template, view fileView, spec provider.Specification) error {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, view); err != nil {
		return fmt.Errorf("render stub for provider %s: %w", spec.Name, err)
	}

	src, err := format.Source([]byte(sb.String()))
	if err != nil {
		return fmt.Errorf("format stub for provider %s: %w", spec.Name, err)
	}

	if _, err := w.Write(src); err != nil {
		return fmt.Errorf("write stub for provider %s: %w", spec.Name, err)
	}

	return nil
}

// stapFire builds the call view of one probe: per-argument conversion
// statements and the final native call.
func stapFire(spec provider.Specification, probe provider.Probe) (fireView, bool) {
	fire := fireView{
		FuncName:  FireName(spec, probe),
		ProbeName: probe.Name,
		Params:    goParams(probe),
		Extern:    fmt.Sprintf("%s(%s)", cgen.WrapperName(spec, probe), cgen.Params(probe)),
	}

	var (
		needUnsafe bool
		callArgs   []string
	)
	for i, arg := range probe.Args {
		local := fmt.Sprintf("arg%d", i)
		switch {
		case arg.GoType == "string":
			fire.Setup = append(fire.Setup,
				fmt.Sprintf("%s := C.CString(%s)", local, arg.Name),
				fmt.Sprintf("defer C.free(unsafe.Pointer(%s))", local),
			)
			callArgs = append(callArgs, local)
			needUnsafe = true

		case arg.GoType == "bool":
			fire.Setup = append(fire.Setup,
				fmt.Sprintf("var %s C.int", local),
				fmt.Sprintf("if %s {", arg.Name),
				fmt.Sprintf("%s = 1", local),
				"}",
			)
			callArgs = append(callArgs, local)

		case arg.GoType == "unsafe.Pointer":
			callArgs = append(callArgs, arg.Name)
			needUnsafe = true

		case strings.HasPrefix(arg.GoType, "*"):
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(%s)", arg.Name))
			needUnsafe = true

		default:
			callArgs = append(callArgs, fmt.Sprintf("C.%s(%s)", cgoNumericType(arg.CType), arg.Name))
		}
	}

	fire.Call = fmt.Sprintf("%s(%s)", cgen.WrapperName(spec, probe), strings.Join(callArgs, ", "))

	return fire, needUnsafe
}

// goParams renders the fire function parameter list with the declared
// argument names and Go types.
func goParams(probe provider.Probe) string {
	parts := make([]string, len(probe.Args))
	for i, arg := range probe.Args {
		parts[i] = arg.Name + " " + arg.GoType
	}

	return strings.Join(parts, ", ")
}

// cgoNumericType maps a C type name to its cgo spelling.
func cgoNumericType(ctype string) string {
	return strings.TrimSpace(ctype)
}
