package buildinfo

import (
	"encoding"
	"fmt"

	"gopkg.in/yaml.v3"
)

// LinkKind classifies a single linker instruction the generation step reports
// to the build.
type LinkKind int

const (
	_ LinkKind = iota

	// LinkStaticWrapperLib names the generated static wrapper library, minus
	// the lib prefix and the archive suffix.
	LinkStaticWrapperLib

	// LinkStaticSupportLib names a statically linked support library.
	LinkStaticSupportLib

	// LinkDynamicSupportLib names a dynamically linked support library.
	LinkDynamicSupportLib

	// LinkSearchPath adds a native library search path.
	LinkSearchPath

	// LinkIncludePath adds a header search path for compiling the wrappers.
	LinkIncludePath
)

func (k *LinkKind) String() string {
	v, err := k.MarshalText()
	if err != nil {
		return fmt.Sprintf("link-kind-invalid(%d)", *k)
	}

	return string(v)
}

var _ encoding.TextUnmarshaler = (*LinkKind)(nil)

func (k *LinkKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "static-wrapper-lib":
		*k = LinkStaticWrapperLib
		return nil
	case "static-support-lib":
		*k = LinkStaticSupportLib
		return nil
	case "dynamic-support-lib":
		*k = LinkDynamicSupportLib
		return nil
	case "search-path":
		*k = LinkSearchPath
		return nil
	case "include-path":
		*k = LinkIncludePath
		return nil
	default:
		return fmt.Errorf("unknown kind %q of link instruction", b)
	}
}

func (k *LinkKind) MarshalText() ([]byte, error) {
	switch *k {
	case LinkStaticWrapperLib:
		return []byte("static-wrapper-lib"), nil
	case LinkStaticSupportLib:
		return []byte("static-support-lib"), nil
	case LinkDynamicSupportLib:
		return []byte("dynamic-support-lib"), nil
	case LinkSearchPath:
		return []byte("search-path"), nil
	case LinkIncludePath:
		return []byte("include-path"), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid LinkKind(%d)", *k)
	}
}

func (k LinkKind) MarshalYAML() (any, error) {
	v, err := k.MarshalText()
	if err != nil {
		return nil, err
	}

	return string(v), nil
}

func (k *LinkKind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	return k.UnmarshalText([]byte(s))
}

// LinkInstruction is one linker or header-path requirement of the selected
// probing implementation.
type LinkInstruction struct {
	Kind  LinkKind `yaml:"kind"`
	Value string   `yaml:"value"`
}

// LDFlags renders the instructions that belong on a linker command line, in
// input order.
func LDFlags(links []LinkInstruction) []string {
	var out []string
	for i := range links {
		switch links[i].Kind {
		case LinkStaticWrapperLib, LinkStaticSupportLib:
			// the -l: form makes the linker take the archive even when a
			// shared object of the same name is installed next to it
			out = append(out, "-l:lib"+links[i].Value+".a")
		case LinkDynamicSupportLib:
			out = append(out, "-l"+links[i].Value)
		case LinkSearchPath:
			out = append(out, "-L"+links[i].Value)
		}
	}

	return out
}

// CFlags renders the instructions that belong on a compiler command line.
func CFlags(links []LinkInstruction) []string {
	var out []string
	for i := range links {
		if links[i].Kind == LinkIncludePath {
			out = append(out, "-I"+links[i].Value)
		}
	}

	return out
}
