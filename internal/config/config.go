// Package config loads analyzer run settings from an optional YAML file,
// overlaid with command-line flags (cmd/classflow).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMegamorphicThreshold is the call-site specialization cap applied
// when no override is configured.
const DefaultMegamorphicThreshold = 5

// Config holds the knobs a run of the analyzer can be tuned with. None of
// it affects the lattice semantics beyond the threshold; it exists so the
// CLI, the cache, and tests can all load the same settings shape.
type Config struct {
	// MegamorphicThreshold bounds how many classes an argument position
	// may hold at a call site before that position widens to Any.
	MegamorphicThreshold int `yaml:"megamorphic_threshold"`

	// EntryArgument names the class of the entry method's argument,
	// "Task" by default. It is loaded but not read by the propagator,
	// which always passes the program's Task class.
	EntryArgument string `yaml:"entry_argument"`

	// CacheDir, when non-empty, enables whole-run result memoization
	// backed by a sqlite database under this directory (internal/cache).
	CacheDir string `yaml:"cache_dir"`

	// Debug turns on trace logging of the dequeue loop.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file or flags override
// it.
func Default() Config {
	return Config{
		MegamorphicThreshold: DefaultMegamorphicThreshold,
		EntryArgument:        "Task",
	}
}

// Load reads a YAML configuration file and overlays it onto Default().
// A missing path is not an error; Load returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.MegamorphicThreshold <= 0 {
		cfg.MegamorphicThreshold = DefaultMegamorphicThreshold
	}
	return cfg, nil
}
