package abi

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the knobs that size and configure a kernel instance:
// a raw struct decoded from a JSON config file, with defaults filled
// in and ranges validated after parsing.
type Config struct {
	// NENV is the fixed capacity of the environment table.
	NENV int `json:"nenv"`

	// NCPU is the number of simulated CPUs, each with its own
	// per-CPU idle environment occupying table slot == cpu id.
	NCPU int `json:"ncpu"`

	// Quantum is recorded for future priority-scheduling work but is
	// not consumed by the round-robin scheduler (see DESIGN.md).
	Quantum int `json:"quantum_ms,omitempty"`

	// LogFormat is "text" or "json". It is parsed and defaulted only:
	// the cmd package's logger setup reads the --log-format flag, not
	// this field.
	LogFormat string `json:"log_format,omitempty"`
}

// DefaultConfig returns a Config sized for a small multiprocessor demo.
func DefaultConfig() *Config {
	return &Config{
		NENV:      DefaultNENV,
		NCPU:      DefaultNCPU,
		LogFormat: "text",
	}
}

// LoadConfig reads and validates a JSON config file, filling in
// defaults for any zero-valued field.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured sizes are usable: NCPU must
// leave room in the table for the per-CPU idle environments (slots
// 0..NCPU-1 are reserved for them), and NENV must fit in the bits an
// EnvID reserves for the slot index.
func (c *Config) Validate() error {
	if c.NENV <= 0 {
		c.NENV = DefaultNENV
	}
	if c.NCPU <= 0 {
		c.NCPU = DefaultNCPU
	}
	if c.NENV > MaxSlots {
		return fmt.Errorf("nenv %d exceeds maximum table size %d", c.NENV, MaxSlots)
	}
	if c.NCPU > c.NENV {
		return fmt.Errorf("ncpu %d exceeds nenv %d", c.NCPU, c.NENV)
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	return nil
}
