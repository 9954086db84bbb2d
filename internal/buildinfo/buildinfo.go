// Package buildinfo records the outcome of native capability detection and
// exposes it to the generation step and to downstream builds.
//
// The detection step writes a single YAML file into the output directory. The
// generation step, and any build tooling layered on top, reads that file to
// learn which probing implementation was selected and how to link against it.
package buildinfo

import (
	"encoding"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracegen/tracegen/internal/features"
)

// FileName is the name of the build-info file inside the output directory.
const FileName = "tracegen-build-info.yaml"

// Implementation identifies the probing implementation selected for a build.
type Implementation int

const (
	_ Implementation = iota

	// ImplNoOp compiles probe stubs down to empty functions.
	ImplNoOp

	// ImplStapUSDT compiles probe stubs into SystemTap USDT instrumentation
	// points through the generated native wrappers.
	ImplStapUSDT
)

func (i *Implementation) String() string {
	v, err := i.MarshalText()
	if err != nil {
		return fmt.Sprintf("implementation-invalid(%d)", *i)
	}

	return string(v)
}

var _ encoding.TextUnmarshaler = (*Implementation)(nil)

func (i *Implementation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "noop":
		*i = ImplNoOp
		return nil
	case "stap-usdt":
		*i = ImplStapUSDT
		return nil
	default:
		return fmt.Errorf("unknown implementation %q", b)
	}
}

func (i *Implementation) MarshalText() ([]byte, error) {
	switch *i {
	case ImplNoOp:
		return []byte("noop"), nil
	case ImplStapUSDT:
		return []byte("stap-usdt"), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid Implementation(%d)", *i)
	}
}

// The yaml decoder does not honor encoding.TextUnmarshaler, hence the
// explicit hooks.

func (i Implementation) MarshalYAML() (any, error) {
	v, err := i.MarshalText()
	if err != nil {
		return nil, err
	}

	return string(v), nil
}

func (i *Implementation) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	return i.UnmarshalText([]byte(s))
}

// BuildInfo is the detection outcome persisted between tool invocations.
type BuildInfo struct {
	ToolVersion    string            `yaml:"tool_version"`
	GeneratedAt    time.Time         `yaml:"generated_at"`
	Features       features.Level    `yaml:"features"`
	Implementation Implementation    `yaml:"implementation"`
	CC             string            `yaml:"cc,omitempty"`
	SDTHeader      bool              `yaml:"sdt_header"`
	Libstapsdt     bool              `yaml:"libstapsdt"`
	Reason         string            `yaml:"reason,omitempty"`
	Links          []LinkInstruction `yaml:"links,omitempty"`
}

// Path returns the build-info file location for an output directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Save writes the build info into the given output directory, creating it if
// needed.
func (b *BuildInfo) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal build info: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0o644); err != nil {
		return fmt.Errorf("write build info: %w", err)
	}

	return nil
}

// Load reads previously saved build info from the given output directory.
func Load(dir string) (*BuildInfo, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("read build info: %w", err)
	}

	var b BuildInfo
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal build info: %w", err)
	}

	return &b, nil
}

// Resolve picks the implementation for a detection outcome under the given
// feature level.
//
// Disabled never looks at the outcome. Enabled degrades to the no-op
// implementation when the native stack is unavailable. Required turns that
// same outcome into a hard error carrying the detection reason.
func Resolve(level features.Level, available bool, reason string) (Implementation, error) {
	switch level {
	case features.LevelDisabled:
		return ImplNoOp, nil
	case features.LevelEnabled:
		if available {
			return ImplStapUSDT, nil
		}
		return ImplNoOp, nil
	case features.LevelRequired:
		if available {
			return ImplStapUSDT, nil
		}
		if reason == "" {
			reason = "native probing stack unavailable"
		}
		return 0, fmt.Errorf("probing support is required but cannot be provided: %s", reason)
	default:
		return 0, fmt.Errorf("invalid feature level %d", level)
	}
}
