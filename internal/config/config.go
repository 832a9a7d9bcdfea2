package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ammonia-battery/internal/data"
	"ammonia-battery/internal/dispatch"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/logging"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/solver"
	"ammonia-battery/internal/strategy"
	"ammonia-battery/internal/system"
)

// Config is the on-disk scenario shape (YAML).
type Config struct {
	Name     string `yaml:"name"`
	DataFile string `yaml:"data_file"`
	// Days truncates the series to its first days. 0 keeps everything.
	Days float64 `yaml:"days"`
	// StepHours resamples the series when set.
	StepHours float64 `yaml:"step_hours"`

	// Optional: load the plant from a separate YAML (e.g. configs/systems/*.yaml).
	// If both SystemFile and System are provided, System overrides SystemFile.
	SystemFile string       `yaml:"system_file"`
	System     SystemConfig `yaml:"system"`

	Dispatch  dispatch.Policy       `yaml:"dispatch"`
	Solver    solver.Config         `yaml:"solver"`
	Economics economics.Assumptions `yaml:"economics"`
	Logging   logging.Config        `yaml:"logging"`
	Output    OutputConfig          `yaml:"output"`

	// Baselines are rule-based strategies replayed next to the optimised
	// schedule for comparison.
	Baselines BaselineConfig `yaml:"baselines"`
}

// SystemConfig is either the catalogue plant or explicit equipment lists.
type SystemConfig struct {
	Plant system.Plant `yaml:",inline"`
	// Units, when set, replaces the catalogue plant.
	Units *UnitsConfig `yaml:"units,omitempty"`
}

type UnitsConfig struct {
	Charging    []equipment.Spec `yaml:"charging"`
	Discharging []equipment.Spec `yaml:"discharging"`
	Storage     []equipment.Spec `yaml:"storage"`

	ChargingLimit    float64 `yaml:"charging_limit_mw"`
	DischargingLimit float64 `yaml:"discharging_limit_mw"`
	// ConversionFactor is t NH3 per MWh; defaults to the ammonia LHV figure
	// when any unit is rated in tonnes.
	ConversionFactor float64 `yaml:"conversion_factor"`
}

type BaselineConfig struct {
	Threshold *strategy.ThresholdParams `yaml:"threshold" json:"threshold,omitempty"`
	Window    *strategy.WindowParams    `yaml:"window" json:"window,omitempty"`
}

// Strategies builds the configured baselines in a stable order.
func (b BaselineConfig) Strategies() ([]strategy.Strategy, error) {
	var out []strategy.Strategy
	if b.Threshold != nil {
		s, err := strategy.NewThreshold(*b.Threshold)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "baselines.threshold", Reason: err.Error()}
		}
		out = append(out, s)
	}
	if b.Window != nil {
		s, err := strategy.NewWindow(*b.Window)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "baselines.window", Reason: err.Error()}
		}
		out = append(out, s)
	}
	return out, nil
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	CSV     bool   `yaml:"csv"`
	Plot    bool   `yaml:"plot"`
	Summary bool   `yaml:"summary"`
	JSON    bool   `yaml:"json"`
}

// Default is the configuration every file is decoded on top of, so absent
// keys keep these values and explicit ones (including false) win.
func Default() Config {
	return Config{
		System: SystemConfig{Plant: system.Plant{
			P2AMW:         100,
			StorageTonnes: 5000,
			A2PMW:         100,
			Technology:    equipment.DirectCombustion,
		}},
		Dispatch:  dispatch.DefaultPolicy(),
		Solver:    solver.DefaultConfig(),
		Economics: economics.DefaultAssumptions(),
		Logging:   logging.Config{Level: "info", Format: "json"},
		Output:    OutputConfig{Dir: "results", CSV: true, Plot: true, Summary: true, JSON: true},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// If system_file is set, load it and merge in any explicit overrides from c.System.
	if c.SystemFile != "" {
		loaded, err := LoadSystemFile(resolve(path, c.SystemFile))
		if err != nil {
			return nil, err
		}
		var override SystemConfig
		if err := yaml.Unmarshal(raw, &struct {
			System *SystemConfig `yaml:"system"`
		}{&override}); err != nil {
			return nil, err
		}
		c.System = MergeSystem(loaded, override)
	}
	if c.DataFile != "" {
		c.DataFile = resolve(path, c.DataFile)
	}
	return c, nil
}

// Parse decodes raw YAML on top of Default.
func Parse(raw []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// resolve prefers interpreting relative paths as relative to the config file
// directory, but falls back to the provided path (relative to cwd) if that
// doesn't exist.
func resolve(configPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	cand := filepath.Join(filepath.Dir(configPath), p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}

type systemFileWrapper struct {
	System SystemConfig `yaml:"system"`
}

// LoadSystemFile reads a plant definition wrapped in a top-level system key.
func LoadSystemFile(path string) (SystemConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SystemConfig{}, err
	}
	var w systemFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return SystemConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return w.System, nil
}

// MergeSystem overlays non-zero fields from override onto base.
// This is used when loading a system file and then applying overrides from
// the scenario or an API request.
func MergeSystem(base, override SystemConfig) SystemConfig {
	out := base
	b, o := &out.Plant, override.Plant
	if o.Name != "" {
		b.Name = o.Name
	}
	if o.P2AMW != 0 {
		b.P2AMW = o.P2AMW
	}
	if o.StorageTonnes != 0 {
		b.StorageTonnes = o.StorageTonnes
	}
	if o.A2PMW != 0 {
		b.A2PMW = o.A2PMW
	}
	if o.Technology != "" {
		b.Technology = o.Technology
	}
	if o.MinLevel != 0 {
		b.MinLevel = o.MinLevel
	}
	if o.GridLimitMW != 0 {
		b.GridLimitMW = o.GridLimitMW
	}
	if o.P2A != (equipment.P2AOptions{}) {
		b.P2A = o.P2A
	}
	if o.A2P != (equipment.A2POptions{}) {
		b.A2P = o.A2P
	}
	if override.Units != nil {
		out.Units = override.Units
	}
	return out
}

// Build composes the configured plant.
func (s SystemConfig) Build() (*system.System, error) {
	if s.Units == nil {
		ab, err := system.NewAmmoniaBattery(s.Plant)
		if err != nil {
			return nil, err
		}
		return ab.System, nil
	}

	u := s.Units
	build := func(role equipment.Role, specs []equipment.Spec) ([]equipment.Unit, error) {
		out := make([]equipment.Unit, 0, len(specs))
		for _, sp := range specs {
			if sp.Role == "" {
				sp.Role = role
			}
			unit, err := equipment.New(sp)
			if err != nil {
				return nil, err
			}
			out = append(out, unit)
		}
		return out, nil
	}
	charging, err := build(equipment.RoleCharging, u.Charging)
	if err != nil {
		return nil, err
	}
	discharging, err := build(equipment.RoleDischarging, u.Discharging)
	if err != nil {
		return nil, err
	}
	storage, err := build(equipment.RoleStorage, u.Storage)
	if err != nil {
		return nil, err
	}

	factor := u.ConversionFactor
	if factor == 0 && anyMassRated(u) {
		factor = equipment.TonnesPerMWh
	}
	name := s.Plant.Name
	if name == "" {
		name = "custom"
	}
	return system.Compose(system.Spec{
		Name:             name,
		Charging:         charging,
		Discharging:      discharging,
		Storage:          storage,
		ChargingLimit:    u.ChargingLimit,
		DischargingLimit: u.DischargingLimit,
		ConversionFactor: factor,
	})
}

func anyMassRated(u *UnitsConfig) bool {
	for _, list := range [][]equipment.Spec{u.Charging, u.Discharging, u.Storage} {
		for _, sp := range list {
			if sp.Bounds.Quantity.IsMass() {
				return true
			}
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Name) == "" {
		return &model.ConfigurationError{Field: "name", Reason: "is required"}
	}
	if c.DataFile == "" {
		return &model.ConfigurationError{Field: "data_file", Reason: "is required"}
	}
	if c.Days < 0 {
		return &model.ConfigurationError{Field: "days", Reason: "must be >= 0"}
	}
	if c.StepHours < 0 {
		return &model.ConfigurationError{Field: "step_hours", Reason: "must be >= 0"}
	}
	if _, err := c.System.Build(); err != nil {
		return fmt.Errorf("system config invalid: %w", err)
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.Solver.WithDefaults().Validate(); err != nil {
		return err
	}
	if err := c.Economics.WithDefaults().Validate(); err != nil {
		return err
	}
	if _, err := c.Baselines.Strategies(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &model.ConfigurationError{Field: "logging.level", Reason: err.Error()}
	}
	return nil
}

// LoadSeries reads the data file (CSV, or JSON by extension), resamples it
// to StepHours when set and keeps the first Days.
func (c *Config) LoadSeries() (model.TimeSeries, error) {
	var (
		ts  model.TimeSeries
		err error
	)
	if strings.EqualFold(filepath.Ext(c.DataFile), ".json") {
		ts, err = data.LoadJSON(c.DataFile)
	} else {
		ts, err = data.LoadCSV(c.DataFile)
	}
	if err != nil {
		return model.TimeSeries{}, err
	}
	return c.PrepareSeries(ts)
}

// PrepareSeries applies StepHours and Days to a series loaded elsewhere.
func (c *Config) PrepareSeries(ts model.TimeSeries) (model.TimeSeries, error) {
	if c.StepHours > 0 && c.StepHours != ts.StepHours {
		var err error
		if ts, err = data.Resample(ts, c.StepHours); err != nil {
			return model.TimeSeries{}, err
		}
	}
	return data.Head(ts, c.Days), nil
}

// ToScenario pairs the configured policy with a series and the engine
// parameters of a composed plant.
func (c *Config) ToScenario(ts model.TimeSeries, params system.Parameters) dispatch.Scenario {
	return dispatch.Scenario{
		Name:   c.Name,
		Series: ts,
		Params: params,
		Policy: c.Dispatch,
	}
}
