// Package provider discovers probe providers in Go sources.
//
// A provider is an interface type annotated with a "//tracegen:provider"
// directive. Every method of the interface declares one probe; the method
// parameters become the probe arguments.
package provider

import (
	"regexp"
	"strings"
	"unicode"
)

// Specification describes one probe provider found in a scanned package.
type Specification struct {
	// Name is the native provider name. As of this writing the bpftrace and
	// bcc tools have, shall we say, "evolving" support for USDT, and the
	// latest versions reject provider names with dots or colons. The name is
	// therefore the interface name converted to snake_case unless the
	// directive names it explicitly.
	Name string

	// TypeName is the Go interface name the provider was declared as.
	TypeName string

	// Package is the name of the package holding the declaration.
	Package string

	// Source is the text of the interface declaration, kept for the header
	// comment of the generated translation unit.
	Source string

	Probes []Probe
}

// Probe is a single instrumentation point of a provider.
type Probe struct {
	// Name is the native probe name, snake_case.
	Name string

	// GoName is the declaring method name.
	GoName string

	Args []Arg
}

// Arg is one probe argument with its resolved native type.
type Arg struct {
	Name   string
	GoType string
	CType  string
}

var nativeName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidName reports whether a name is usable as a USDT provider or probe
// name.
func ValidName(name string) bool {
	return nativeName.MatchString(name)
}

// snakeCase converts a Go identifier into snake_case, keeping acronym runs
// together: SimpleProbes becomes simple_probes, HTTPServer becomes
// http_server.
func snakeCase(s string) string {
	runes := []rune(s)

	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}

		boundary := i > 0 && !unicode.IsUpper(runes[i-1])
		if !boundary && i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			// end of an acronym run, as in HTTPServer -> http_server
			boundary = true
		}
		if boundary {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
