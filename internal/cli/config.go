package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile is looked up in the working directory when --config is
// not given.
const defaultConfigFile = ".tracegen.yaml"

// Config is the optional on-disk tool configuration. Command-line flags win
// over it, and it wins over environment overrides.
type Config struct {
	Features   string `yaml:"features"`
	CC         string `yaml:"cc"`
	Dynamic    bool   `yaml:"dynamic"`
	IncludeDir string `yaml:"include_dir"`
	LibDir     string `yaml:"lib_dir"`
	Out        string `yaml:"out"`
}

// loadConfig reads the configuration file. A missing file is only an error
// when the user named it explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
