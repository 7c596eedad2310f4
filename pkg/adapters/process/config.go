package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one allow-listed command exposed as a worker.
type Config struct {
	Name        string            `yaml:"name" json:"name"`
	Summary     string            `yaml:"summary" json:"summary"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Dir         string            `yaml:"dir" json:"dir"`
	// Timeout bounds a single invocation, e.g. "30s". Empty means no bound beyond the run's.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// ConfigFile is the structure of workers.yaml.
type ConfigFile struct {
	Workers []Config `yaml:"workers" json:"workers"`
	// Decider optionally names a command that acts as the delegation decision maker.
	Decider *Config `yaml:"decider" json:"decider"`
}

// Validate checks a single entry.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("worker without name")
	}
	if c.Command == "" {
		return fmt.Errorf("worker '%s': command is required", c.Name)
	}
	if _, err := c.timeout(); err != nil {
		return fmt.Errorf("worker '%s': %w", c.Name, err)
	}
	return nil
}

func (c Config) timeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// LoadFile reads workers.yaml (or .json). A missing file yields an empty configuration.
func LoadFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigFile{}, nil
		}
		return nil, fmt.Errorf("failed to read workers config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	seen := make(map[string]bool, len(cfg.Workers))
	for _, w := range cfg.Workers {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("duplicate worker '%s'", w.Name)
		}
		seen[w.Name] = true
	}
	if cfg.Decider != nil && cfg.Decider.Command == "" {
		return nil, fmt.Errorf("decider: command is required")
	}
	return &cfg, nil
}
