package solver

import (
	"fmt"
	"os/exec"
	"time"

	"ammonia-battery/internal/model"
)

const (
	BackendAuto    = "auto"
	BackendSimplex = "simplex"
	BackendCBC     = "cbc"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultMaxNodes      = 20000
	DefaultMaxDenseCells = 4_000_000
	// autoDenseCells is the largest model "auto" keeps in-process.
	autoDenseCells = 250_000
)

// RetryConfig controls the single retry allowed after a backend failure or
// timeout. Infeasibility and configuration errors are never retried.
type RetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// TimeoutFactor multiplies the timeout for the retry (>= 1).
	TimeoutFactor float64 `yaml:"timeout_factor" json:"timeout_factor"`
	// Fallback names the backend for the retry; empty keeps the same backend.
	Fallback string `yaml:"fallback" json:"fallback"`
}

// Config selects and bounds the solver.
type Config struct {
	Backend       string        `yaml:"backend" json:"backend"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	CBCPath       string        `yaml:"cbc_path" json:"cbc_path"`
	MaxNodes      int           `yaml:"max_nodes" json:"max_nodes"`
	MaxDenseCells int           `yaml:"max_dense_cells" json:"max_dense_cells"`
	// MIPGap is the relative optimality gap handed to CBC.
	MIPGap   float64     `yaml:"mip_gap" json:"mip_gap"`
	PoolSize int         `yaml:"pool_size" json:"pool_size"`
	Retry    RetryConfig `yaml:"retry" json:"retry"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		Timeout:       DefaultTimeout,
		CBCPath:       "cbc",
		MaxNodes:      DefaultMaxNodes,
		MaxDenseCells: DefaultMaxDenseCells,
		MIPGap:        0.01,
		PoolSize:      4,
		Retry:         RetryConfig{Enabled: true, TimeoutFactor: 2},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.CBCPath == "" {
		c.CBCPath = d.CBCPath
	}
	if c.MaxNodes == 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.MaxDenseCells == 0 {
		c.MaxDenseCells = d.MaxDenseCells
	}
	if c.PoolSize == 0 {
		c.PoolSize = d.PoolSize
	}
	if c.Retry.TimeoutFactor == 0 {
		c.Retry.TimeoutFactor = d.Retry.TimeoutFactor
	}
	return c
}

func (c Config) Validate() error {
	if !knownBackend(c.Backend) {
		return &model.ConfigurationError{Field: "solver.backend", Reason: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if c.Retry.Fallback != "" && (!knownBackend(c.Retry.Fallback) || c.Retry.Fallback == BackendAuto) {
		return &model.ConfigurationError{Field: "solver.retry.fallback", Reason: fmt.Sprintf("unknown backend %q", c.Retry.Fallback)}
	}
	if c.Timeout <= 0 {
		return &model.ConfigurationError{Field: "solver.timeout", Reason: "must be > 0"}
	}
	if c.Retry.TimeoutFactor < 1 {
		return &model.ConfigurationError{Field: "solver.retry.timeout_factor", Reason: "must be >= 1"}
	}
	if c.MIPGap < 0 || c.MIPGap >= 1 {
		return &model.ConfigurationError{Field: "solver.mip_gap", Reason: "must be in [0, 1)"}
	}
	if c.MaxNodes < 0 || c.MaxDenseCells < 0 || c.PoolSize < 0 {
		return &model.ConfigurationError{Field: "solver", Reason: "limits must be >= 0"}
	}
	return nil
}

func cbcAvailable(path string) bool {
	if path == "" {
		path = "cbc"
	}
	_, err := exec.LookPath(path)
	return err == nil
}

func knownBackend(name string) bool {
	switch name {
	case BackendAuto, BackendSimplex, BackendCBC:
		return true
	}
	return false
}

// NewBackend builds the named backend. "auto" resolves against p: large
// models and, when the executable can be found, any model with integer
// columns go to CBC; the rest stay in-process.
func NewBackend(name string, c Config, p *Problem) (Backend, error) {
	if name == BackendAuto {
		name = BackendSimplex
		switch {
		case p == nil:
		case EstimateDenseCells(p) > autoDenseCells:
			name = BackendCBC
		case p.HasIntegers() && cbcAvailable(c.CBCPath):
			name = BackendCBC
		}
	}
	switch name {
	case BackendSimplex:
		return &Simplex{MaxNodes: c.MaxNodes, MaxDenseCells: c.MaxDenseCells}, nil
	case BackendCBC:
		return &CBC{Path: c.CBCPath, MIPGap: c.MIPGap}, nil
	}
	return nil, &model.ConfigurationError{Field: "solver.backend", Reason: fmt.Sprintf("unknown backend %q", name)}
}
