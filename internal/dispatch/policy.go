package dispatch

import (
	"fmt"
	"math"

	"ammonia-battery/internal/model"
)

type InitialMode string

const (
	// InitialFixed pins level(0) to Fraction × tank capacity.
	InitialFixed InitialMode = "fixed"
	// InitialFree lets the solver choose level(0).
	InitialFree InitialMode = "free"
)

type TerminalPolicy string

const (
	TerminalCyclic TerminalPolicy = "cyclic"
	TerminalFree   TerminalPolicy = "free"
)

// ExclusionMode selects how simultaneous charging and discharging is handled.
type ExclusionMode string

const (
	// ExclusionLinear adds no indicator variables. Round-trip losses make
	// simultaneous operation uneconomic except at negative prices or with a
	// full tank; periods where it happens are reported as CYCLING.
	ExclusionLinear ExclusionMode = "linear"
	// ExclusionBinary adds on/off indicators with on_c(t)+on_d(t) <= 1, which
	// turns the program into a MILP.
	ExclusionBinary ExclusionMode = "binary"
)

type ObjectiveMode string

const (
	// ObjectiveCost minimises Σ Δt·(price·c − price·d + vom_c·c + vom_d·d − credit·u).
	ObjectiveCost ObjectiveMode = "cost"
	// ObjectiveValue maximises the negation of the cost objective.
	ObjectiveValue ObjectiveMode = "value"
)

type InitialPolicy struct {
	Mode     InitialMode `yaml:"mode" json:"mode"`
	Fraction float64     `yaml:"fraction" json:"fraction"`
}

func (p InitialPolicy) String() string {
	if p.Mode == InitialFree {
		return string(InitialFree)
	}
	return fmt.Sprintf("%s(%.3g)", InitialFixed, p.Fraction)
}

// Policy holds the modelling choices applied on top of the equipment limits.
type Policy struct {
	Initial         InitialPolicy  `yaml:"initial" json:"initial"`
	Terminal        TerminalPolicy `yaml:"terminal" json:"terminal"`
	MutualExclusion ExclusionMode  `yaml:"mutual_exclusion" json:"mutual_exclusion"`
	Objective       ObjectiveMode  `yaml:"objective" json:"objective"`

	// CurtailmentCoupling restricts charge(t) to the curtailment available in t.
	CurtailmentCoupling bool `yaml:"curtailment_coupling" json:"curtailment_coupling"`
	// CurtailmentCredit is the value (currency/MWh) of absorbing curtailed energy.
	CurtailmentCredit float64 `yaml:"curtailment_credit" json:"curtailment_credit"`
	// Ramp enforces the equipment ramp limits when they are set.
	Ramp bool `yaml:"ramp" json:"ramp"`
	// MinChargeEnergy is the grid-side MWh the charging subsystem must absorb
	// over the horizon.
	MinChargeEnergy float64 `yaml:"min_charge_energy" json:"min_charge_energy"`
	// InventoryBackedDischarge requires the fuel burnt in a period to be in the
	// tank at its start, so nothing passes straight through within a period.
	InventoryBackedDischarge bool `yaml:"inventory_backed_discharge" json:"inventory_backed_discharge"`
}

// DefaultPolicy: empty tank at the start, cyclic, linear exclusion, value
// objective, ramp limits enforced, inventory-backed discharge.
func DefaultPolicy() Policy {
	return Policy{
		Initial:                  InitialPolicy{Mode: InitialFixed},
		Terminal:                 TerminalCyclic,
		MutualExclusion:          ExclusionLinear,
		Objective:                ObjectiveValue,
		Ramp:                     true,
		InventoryBackedDischarge: true,
	}
}

func (p Policy) Validate() error {
	switch p.Initial.Mode {
	case InitialFixed:
		if p.Initial.Fraction < 0 || p.Initial.Fraction > 1 || math.IsNaN(p.Initial.Fraction) {
			return &model.ConfigurationError{Field: "dispatch.initial.fraction", Reason: "must be in [0, 1]"}
		}
	case InitialFree:
	default:
		return &model.ConfigurationError{Field: "dispatch.initial.mode", Reason: fmt.Sprintf("unknown mode %q (want fixed|free)", p.Initial.Mode)}
	}
	switch p.Terminal {
	case TerminalCyclic, TerminalFree:
	default:
		return &model.ConfigurationError{Field: "dispatch.terminal", Reason: fmt.Sprintf("unknown policy %q (want cyclic|free)", p.Terminal)}
	}
	switch p.MutualExclusion {
	case ExclusionLinear, ExclusionBinary:
	default:
		return &model.ConfigurationError{Field: "dispatch.mutual_exclusion", Reason: fmt.Sprintf("unknown mode %q (want linear|binary)", p.MutualExclusion)}
	}
	switch p.Objective {
	case ObjectiveCost, ObjectiveValue:
	default:
		return &model.ConfigurationError{Field: "dispatch.objective", Reason: fmt.Sprintf("unknown mode %q (want cost|value)", p.Objective)}
	}
	if p.CurtailmentCredit < 0 || math.IsNaN(p.CurtailmentCredit) || math.IsInf(p.CurtailmentCredit, 0) {
		return &model.ConfigurationError{Field: "dispatch.curtailment_credit", Reason: "must be a finite value >= 0"}
	}
	if p.MinChargeEnergy < 0 || math.IsNaN(p.MinChargeEnergy) || math.IsInf(p.MinChargeEnergy, 0) {
		return &model.ConfigurationError{Field: "dispatch.min_charge_energy", Reason: "must be a finite value >= 0"}
	}
	return nil
}
