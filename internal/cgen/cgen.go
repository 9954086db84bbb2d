// Package cgen emits the native wrapper translation unit for a provider.
//
// The output is one C file per provider: a header comment carrying the
// generator identity and the provider declaration, then a single extern "C"
// block with exactly one wrapper function per probe. Each wrapper invokes
// the static instrumentation macro from <sys/sdt.h>. The unit is compiled
// into a static wrapper library and linked into the final artifact.
package cgen

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/tracegen/tracegen/internal/provider"
)

// Generator identifies the tool in generated file headers.
type Generator struct {
	Name    string
	Version string
}

var wrapperUnit = template.Must(template.New("wrapper_unit").Parse(`/* Code generated by {{.Gen.Name}} {{.Gen.Version}}. DO NOT EDIT.
 *
 * This file contains native wrappers for the probes declared by
 * {{.Spec.TypeName}} (provider {{.Spec.Name}}).
 *
 * The provider declaration is:
 *
{{.Source}}
 */
#include <stdint.h>
#include <sys/sdt.h>

extern "C" {
{{range .Probes}}
void {{.Name}}({{.Params}})
{
    {{.Macro}};
}
{{end}}
}
`))

type unitView struct {
	Gen    Generator
	Spec   provider.Specification
	Source string
	Probes []wrapperView
}

type wrapperView struct {
	Name   string
	Params string
	Macro  string
}

// FileName returns the name of the translation unit for a provider.
func FileName(spec provider.Specification) string {
	return spec.Name + "_wrapper.c"
}

// WrapperLib returns the name of the static wrapper library the unit is
// compiled into, minus the lib prefix and archive suffix.
func WrapperLib(spec provider.Specification) string {
	return spec.Name + "_wrapper"
}

// WrapperName returns the symbol name of the wrapper for one probe.
func WrapperName(spec provider.Specification, probe provider.Probe) string {
	return spec.Name + "_" + probe.Name
}

// Emit writes the wrapper translation unit for a provider.
func Emit(w io.Writer, gen Generator, spec provider.Specification) error {
	view := unitView{
		Gen:    gen,
		Spec:   spec,
		Source: commentBlock(spec.Source),
	}
	for _, probe := range spec.Probes {
		view.Probes = append(view.Probes, wrapperView{
			Name:   WrapperName(spec, probe),
			Params: Params(probe),
			Macro:  probeMacro(spec, probe),
		})
	}

	if err := wrapperUnit.Execute(w, view); err != nil {
		return fmt.Errorf("render wrapper unit for provider %s: %w", spec.Name, err)
	}

	return nil
}

// Params renders the wrapper parameter list with positional argument names.
func Params(probe provider.Probe) string {
	if len(probe.Args) == 0 {
		return "void"
	}

	parts := make([]string, len(probe.Args))
	for i, arg := range probe.Args {
		parts[i] = fmt.Sprintf("%s arg%d", arg.CType, i)
	}

	return strings.Join(parts, ", ")
}

// probeMacro renders the <sys/sdt.h> instrumentation macro invocation.
// The zero-argument macro has no count suffix.
func probeMacro(spec provider.Specification, probe provider.Probe) string {
	if len(probe.Args) == 0 {
		return fmt.Sprintf("DTRACE_PROBE(%s, %s)", spec.Name, probe.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DTRACE_PROBE%d(%s, %s", len(probe.Args), spec.Name, probe.Name)
	for i := range probe.Args {
		fmt.Fprintf(&b, ", arg%d", i)
	}
	b.WriteByte(')')

	return b.String()
}

// commentBlock reindents the provider declaration as the body of the header
// comment.
func commentBlock(source string) string {
	lines := strings.Split(strings.TrimRight(source, "\n"), "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = " *"
			continue
		}
		lines[i] = " *   " + line
	}

	return strings.Join(lines, "\n")
}
