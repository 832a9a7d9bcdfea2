package system

import (
	"fmt"
	"math"

	"ammonia-battery/internal/model"
)

// Parameters is the aggregate, read-only parameter set of a composed system.
// The dispatch engine uses it verbatim.
// Units:
// - MaxCharge, MaxDischarge, MinCharge, MinDischarge: grid-side MW
// - RampCharge, RampDischarge: MW change per period; 0 = unconstrained
// - TankCapacity, MinLevel: storage units (StorageUnit)
// - StoragePerMWh: storage units per MWh of chemical energy
// - VOMCharge, VOMDischarge: GBP per grid-side MWh
type Parameters struct {
	MaxCharge     float64 `json:"max_charge" yaml:"max_charge"`
	MaxDischarge  float64 `json:"max_discharge" yaml:"max_discharge"`
	MinCharge     float64 `json:"min_charge,omitempty" yaml:"min_charge,omitempty"`
	MinDischarge  float64 `json:"min_discharge,omitempty" yaml:"min_discharge,omitempty"`
	EtaCharge     float64 `json:"eta_charge" yaml:"eta_charge"`
	EtaDischarge  float64 `json:"eta_discharge" yaml:"eta_discharge"`
	RampCharge    float64 `json:"ramp_charge,omitempty" yaml:"ramp_charge,omitempty"`
	RampDischarge float64 `json:"ramp_discharge,omitempty" yaml:"ramp_discharge,omitempty"`
	TankCapacity  float64 `json:"tank_capacity" yaml:"tank_capacity"`
	MinLevel      float64 `json:"min_level,omitempty" yaml:"min_level,omitempty"`
	StoragePerMWh float64 `json:"storage_per_mwh" yaml:"storage_per_mwh"`
	StorageUnit   string  `json:"storage_unit" yaml:"storage_unit"`
	VOMCharge     float64 `json:"vom_charge,omitempty" yaml:"vom_charge,omitempty"`
	VOMDischarge  float64 `json:"vom_discharge,omitempty" yaml:"vom_discharge,omitempty"`
}

// Validate checks the parameters are usable by the engine. A zero tank is
// allowed here; whether it can serve a scenario is for the solver to decide.
func (p Parameters) Validate() error {
	nonNeg := []struct {
		name string
		v    float64
	}{
		{"max_charge", p.MaxCharge},
		{"max_discharge", p.MaxDischarge},
		{"min_charge", p.MinCharge},
		{"min_discharge", p.MinDischarge},
		{"ramp_charge", p.RampCharge},
		{"ramp_discharge", p.RampDischarge},
		{"tank_capacity", p.TankCapacity},
		{"min_level", p.MinLevel},
		{"vom_charge", p.VOMCharge},
		{"vom_discharge", p.VOMDischarge},
	}
	for _, f := range nonNeg {
		if f.v < 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &model.ConfigurationError{Field: f.name, Reason: "must be a finite value >= 0"}
		}
	}
	if !(p.EtaCharge > 0 && p.EtaCharge <= 1) {
		return &model.ConfigurationError{Field: "eta_charge", Reason: "must be in (0, 1]"}
	}
	if !(p.EtaDischarge > 0 && p.EtaDischarge <= 1) {
		return &model.ConfigurationError{Field: "eta_discharge", Reason: "must be in (0, 1]"}
	}
	if !(p.StoragePerMWh > 0) || math.IsInf(p.StoragePerMWh, 0) {
		return &model.ConfigurationError{Field: "storage_per_mwh", Reason: "must be > 0"}
	}
	if p.MinCharge > p.MaxCharge {
		return &model.ConfigurationError{Field: "min_charge", Reason: fmt.Sprintf("%.4g exceeds max_charge %.4g", p.MinCharge, p.MaxCharge)}
	}
	if p.MinDischarge > p.MaxDischarge {
		return &model.ConfigurationError{Field: "min_discharge", Reason: fmt.Sprintf("%.4g exceeds max_discharge %.4g", p.MinDischarge, p.MaxDischarge)}
	}
	if p.MinLevel > p.TankCapacity {
		return &model.ConfigurationError{Field: "min_level", Reason: fmt.Sprintf("%.4g exceeds tank_capacity %.4g", p.MinLevel, p.TankCapacity)}
	}
	return nil
}

// RoundTripEfficiency is η_c·η_d.
func (p Parameters) RoundTripEfficiency() float64 {
	return p.EtaCharge * p.EtaDischarge
}

// TankEnergyMWh is the tank capacity expressed as chemical energy.
func (p Parameters) TankEnergyMWh() float64 {
	return p.TankCapacity / p.StoragePerMWh
}

// UsesMinLoad reports whether either subsystem has a minimum running rate,
// which needs on/off indicators to model.
func (p Parameters) UsesMinLoad() bool {
	return p.MinCharge > 0 || p.MinDischarge > 0
}
