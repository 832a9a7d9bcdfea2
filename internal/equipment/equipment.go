package equipment

import (
	"fmt"
	"math"

	"ammonia-battery/internal/model"
)

// Quantity is the physical quantity a unit's capacity is rated in.
type Quantity string

const (
	Power    Quantity = "MW"
	MassFlow Quantity = "t/h"
	Energy   Quantity = "MWh"
	Mass     Quantity = "t"
)

// IsRate reports whether q is a flow (Power, MassFlow) rather than a stock.
func (q Quantity) IsRate() bool { return q == Power || q == MassFlow }

// IsMass reports whether q is measured in tonnes of ammonia.
func (q Quantity) IsMass() bool { return q == Mass || q == MassFlow }

func (q Quantity) valid() bool {
	switch q {
	case Power, MassFlow, Energy, Mass:
		return true
	}
	return false
}

// Role is the subsystem a unit belongs to.
type Role string

const (
	RoleCharging    Role = "charging"
	RoleDischarging Role = "discharging"
	RoleStorage     Role = "storage"
)

// Bounds are the constraint-relevant parameters of a unit.
// Units:
// - Capacity: Quantity units (MW, t/h, MWh or t)
// - Efficiency: (0, 1]; storage units use 1
// - MinLoad: fraction of Capacity a running rate unit cannot go below
// - MinLevel: fraction of Capacity a storage unit keeps as heel
// - RampLimit: max change in rate between consecutive periods, Quantity units; 0 = unconstrained
type Bounds struct {
	Quantity   Quantity `json:"quantity" yaml:"quantity"`
	Capacity   float64  `json:"capacity" yaml:"capacity"`
	Efficiency float64  `json:"efficiency" yaml:"efficiency"`
	MinLoad    float64  `json:"min_load,omitempty" yaml:"min_load,omitempty"`
	MinLevel   float64  `json:"min_level,omitempty" yaml:"min_level,omitempty"`
	RampLimit  float64  `json:"ramp_limit,omitempty" yaml:"ramp_limit,omitempty"`
}

// CostTerms are in GBP.
// - Capex: installed capital cost
// - FixedOM: GBP/year
// - VariableOM: GBP per MWh of grid-side throughput
// - ReplaceableCapex: share of Capex replaced every ReplacementHours of operation (0 = none)
type CostTerms struct {
	Capex            float64 `json:"capex" yaml:"capex"`
	FixedOM          float64 `json:"fixed_om" yaml:"fixed_om"`
	VariableOM       float64 `json:"variable_om,omitempty" yaml:"variable_om,omitempty"`
	ReplaceableCapex float64 `json:"replaceable_capex,omitempty" yaml:"replaceable_capex,omitempty"`
	ReplacementHours float64 `json:"replacement_hours,omitempty" yaml:"replacement_hours,omitempty"`
}

// Unit is one piece of equipment. Implementations are immutable.
type Unit interface {
	Name() string
	Role() Role
	Bounds() Bounds
	Costs() CostTerms
}

// Spec describes a unit to construct.
type Spec struct {
	Name   string    `json:"name" yaml:"name"`
	Role   Role      `json:"role" yaml:"role"`
	Bounds Bounds    `json:"bounds" yaml:"bounds"`
	Costs  CostTerms `json:"costs" yaml:"costs"`
}

// Basic is a validated, immutable Unit.
type Basic struct {
	spec Spec
}

// New validates s and returns the unit.
func New(s Spec) (*Basic, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Basic{spec: s}, nil
}

func (u *Basic) Name() string     { return u.spec.Name }
func (u *Basic) Role() Role       { return u.spec.Role }
func (u *Basic) Bounds() Bounds   { return u.spec.Bounds }
func (u *Basic) Costs() CostTerms { return u.spec.Costs }

// Validate checks the spec against the unit invariants.
func (s Spec) Validate() error {
	field := func(f string) string {
		if s.Name == "" {
			return f
		}
		return s.Name + "." + f
	}
	b := s.Bounds
	switch s.Role {
	case RoleCharging, RoleDischarging:
		if !b.Quantity.IsRate() {
			return &model.ConfigurationError{Field: field("quantity"), Reason: fmt.Sprintf("%s unit must be rated in MW or t/h, got %q", s.Role, b.Quantity)}
		}
	case RoleStorage:
		if b.Quantity != Energy && b.Quantity != Mass {
			return &model.ConfigurationError{Field: field("quantity"), Reason: fmt.Sprintf("storage unit must be rated in MWh or t, got %q", b.Quantity)}
		}
	default:
		return &model.ConfigurationError{Field: field("role"), Reason: fmt.Sprintf("unknown role %q", s.Role)}
	}
	if !b.Quantity.valid() {
		return &model.ConfigurationError{Field: field("quantity"), Reason: fmt.Sprintf("unknown quantity %q", b.Quantity)}
	}
	if !(b.Capacity > 0) || math.IsInf(b.Capacity, 0) {
		return &model.ConfigurationError{Field: field("capacity"), Reason: "must be > 0"}
	}
	if !(b.Efficiency > 0 && b.Efficiency <= 1) {
		return &model.ConfigurationError{Field: field("efficiency"), Reason: "must be in (0, 1]"}
	}
	if b.RampLimit < 0 || math.IsNaN(b.RampLimit) {
		return &model.ConfigurationError{Field: field("ramp_limit"), Reason: "must be >= 0"}
	}
	if b.MinLoad < 0 || b.MinLoad >= 1 {
		return &model.ConfigurationError{Field: field("min_load"), Reason: "must be in [0, 1)"}
	}
	if b.MinLevel < 0 || b.MinLevel >= 1 {
		return &model.ConfigurationError{Field: field("min_level"), Reason: "must be in [0, 1)"}
	}
	if s.Role == RoleStorage && b.MinLoad != 0 {
		return &model.ConfigurationError{Field: field("min_load"), Reason: "not applicable to storage"}
	}
	if s.Role != RoleStorage && b.MinLevel != 0 {
		return &model.ConfigurationError{Field: field("min_level"), Reason: "only applicable to storage"}
	}
	c := s.Costs
	if c.Capex < 0 || c.FixedOM < 0 || c.VariableOM < 0 || c.ReplaceableCapex < 0 || c.ReplacementHours < 0 {
		return &model.ConfigurationError{Field: field("costs"), Reason: "cost terms must be >= 0"}
	}
	if c.ReplaceableCapex > c.Capex {
		return &model.ConfigurationError{Field: field("costs.replaceable_capex"), Reason: "cannot exceed capex"}
	}
	return nil
}
