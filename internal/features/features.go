// Package features resolves the probing feature selection for a build.
//
// Two feature names are recognized: "enabled" asks for native probing support
// and tolerates its absence, "required" additionally turns that absence into a
// hard build failure. Selecting "required" implies "enabled", and the selection
// cascades down to the native binding layer unchanged.
package features

import (
	"encoding"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Level represents how strongly the build wants native probing support.
type Level int

const (
	_ Level = iota
	LevelDisabled
	LevelEnabled
	LevelRequired
)

func (l Level) String() string {
	v, err := l.MarshalText()
	if err != nil {
		return fmt.Sprintf("level-invalid(%d)", l)
	}

	return string(v)
}

var _ encoding.TextUnmarshaler = (*Level)(nil)

func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disabled":
		*l = LevelDisabled
		return nil
	case "enabled":
		*l = LevelEnabled
		return nil
	case "required":
		*l = LevelRequired
		return nil
	default:
		return fmt.Errorf("unknown feature level %q", b)
	}
}

func (l *Level) MarshalText() ([]byte, error) {
	switch *l {
	case LevelDisabled:
		return []byte("disabled"), nil
	case LevelEnabled:
		return []byte("enabled"), nil
	case LevelRequired:
		return []byte("required"), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid Level(%d)", *l)
	}
}

// The yaml decoder does not honor encoding.TextUnmarshaler, hence the
// explicit hooks.

func (l Level) MarshalYAML() (any, error) {
	v, err := l.MarshalText()
	if err != nil {
		return nil, err
	}

	return string(v), nil
}

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}

// Set is a resolved feature selection.
type Set struct {
	level Level
}

// Parse resolves a comma-separated feature list ("enabled", "required",
// "enabled,required") into a Set. The empty list means probing is disabled;
// "disabled" spells that out and round-trips the marshaled Level text.
func Parse(list string) (Set, error) {
	level := LevelDisabled
	for _, raw := range strings.Split(list, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		switch name {
		case "disabled":
			// the marshaled form of the empty selection; never lowers a
			// level another entry already chose
		case "enabled":
			if level < LevelEnabled {
				level = LevelEnabled
			}
		case "required":
			// required implies enabled
			level = LevelRequired
		default:
			return Set{}, fmt.Errorf("unknown feature %q", name)
		}
	}

	return Set{level: level}, nil
}

// FromLevel wraps an already-resolved level into a Set.
func FromLevel(l Level) Set {
	return Set{level: l}
}

// Level reports the resolved level of the selection.
func (s Set) Level() Level {
	if s.level == 0 {
		return LevelDisabled
	}

	return s.level
}

// Enabled reports whether native probing support should be looked for at all.
func (s Set) Enabled() bool {
	return s.Level() >= LevelEnabled
}

// Required reports whether missing native probing support must fail the build.
func (s Set) Required() bool {
	return s.Level() == LevelRequired
}

// Cascade returns the feature selection to apply to the native binding layer.
// Enabling "enabled" here enables the binding's "enabled"; "required" cascades
// to the binding's "required" as well.
func (s Set) Cascade() Set {
	return Set{level: s.Level()}
}
