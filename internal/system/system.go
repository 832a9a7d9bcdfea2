package system

import (
	"fmt"
	"math"

	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
)

// Subsystem aggregates the units of one role.
type Subsystem struct {
	Role  equipment.Role
	Units []equipment.Unit
	// InterconnectLimit caps the aggregate rate (MW) of a charging or
	// discharging subsystem. 0 means no shared limit.
	InterconnectLimit float64
}

// Spec lists the units and shared limits of a system.
type Spec struct {
	Name        string
	Charging    []equipment.Unit
	Discharging []equipment.Unit
	Storage     []equipment.Unit

	ChargingLimit    float64
	DischargingLimit float64

	// ConversionFactor is tonnes of NH3 per MWh of chemical energy. It is
	// required as soon as any unit is rated in t or t/h.
	ConversionFactor float64
}

// System is a composed ammonia battery.
type System struct {
	Name        string
	Charging    Subsystem
	Discharging Subsystem
	Storage     Subsystem

	ConversionFactor float64

	params Parameters
}

// Compose validates the unit mix and derives the engine parameters.
func Compose(spec Spec) (*System, error) {
	if len(spec.Charging) == 0 {
		return nil, &model.ConfigurationError{Field: "charging", Reason: "no units"}
	}
	if len(spec.Discharging) == 0 {
		return nil, &model.ConfigurationError{Field: "discharging", Reason: "no units"}
	}
	if len(spec.Storage) == 0 {
		return nil, &model.ConfigurationError{Field: "storage", Reason: "no units"}
	}
	if spec.ChargingLimit < 0 || spec.DischargingLimit < 0 {
		return nil, &model.ConfigurationError{Field: "interconnect_limit", Reason: "must be >= 0"}
	}
	if spec.ConversionFactor < 0 || math.IsNaN(spec.ConversionFactor) {
		return nil, &model.ConfigurationError{Field: "conversion_factor", Reason: "must be >= 0"}
	}

	seen := make(map[equipment.Unit]string)
	groups := []struct {
		role  equipment.Role
		units []equipment.Unit
	}{
		{equipment.RoleCharging, spec.Charging},
		{equipment.RoleDischarging, spec.Discharging},
		{equipment.RoleStorage, spec.Storage},
	}
	massBased := false
	for _, g := range groups {
		for _, u := range g.units {
			if u == nil {
				return nil, &model.ConfigurationError{Field: string(g.role), Reason: "nil unit"}
			}
			if u.Role() != g.role {
				return nil, &model.ConfigurationError{
					Field:  u.Name(),
					Reason: fmt.Sprintf("%s unit cannot join the %s subsystem", u.Role(), g.role),
				}
			}
			if owner, ok := seen[u]; ok {
				return nil, &model.ConfigurationError{
					Field:  u.Name(),
					Reason: fmt.Sprintf("already owned by the %s subsystem", owner),
				}
			}
			seen[u] = string(g.role)
			if u.Bounds().Quantity.IsMass() {
				massBased = true
			}
		}
	}
	if massBased && spec.ConversionFactor == 0 {
		return nil, &model.ConfigurationError{
			Field:  "conversion_factor",
			Reason: "units rated in t or t/h are combined with power or energy units without a declared conversion factor",
		}
	}

	s := &System{
		Name:             spec.Name,
		Charging:         Subsystem{Role: equipment.RoleCharging, Units: append([]equipment.Unit(nil), spec.Charging...), InterconnectLimit: spec.ChargingLimit},
		Discharging:      Subsystem{Role: equipment.RoleDischarging, Units: append([]equipment.Unit(nil), spec.Discharging...), InterconnectLimit: spec.DischargingLimit},
		Storage:          Subsystem{Role: equipment.RoleStorage, Units: append([]equipment.Unit(nil), spec.Storage...)},
		ConversionFactor: spec.ConversionFactor,
	}
	p, err := s.derive()
	if err != nil {
		return nil, err
	}
	s.params = p
	return s, nil
}

// Parameters returns the aggregate parameter set the dispatch engine consumes.
func (s *System) Parameters() Parameters { return s.params }

func (s *System) derive() (Parameters, error) {
	storageUnit := string(equipment.Energy)
	k := 1.0
	if s.Storage.massBased() {
		storageUnit = string(equipment.Mass)
		k = s.ConversionFactor
	}

	ch := s.Charging.rates(s.ConversionFactor)
	dis := s.Discharging.rates(s.ConversionFactor)
	if ch.min > ch.max {
		return Parameters{}, &model.ConfigurationError{Field: "charging", Reason: fmt.Sprintf("minimum load %.4g MW exceeds interconnect limit %.4g MW", ch.min, ch.max)}
	}
	if dis.min > dis.max {
		return Parameters{}, &model.ConfigurationError{Field: "discharging", Reason: fmt.Sprintf("minimum load %.4g MW exceeds interconnect limit %.4g MW", dis.min, dis.max)}
	}

	var capacity, heel float64
	for _, u := range s.Storage.Units {
		b := u.Bounds()
		c := b.Capacity
		if b.Quantity == equipment.Energy && storageUnit == string(equipment.Mass) {
			c *= s.ConversionFactor
		}
		capacity += c
		heel += b.MinLevel * c
	}

	p := Parameters{
		MaxCharge:     ch.max,
		MaxDischarge:  dis.max,
		MinCharge:     ch.min,
		MinDischarge:  dis.min,
		EtaCharge:     ch.eta,
		EtaDischarge:  dis.eta,
		RampCharge:    ch.ramp,
		RampDischarge: dis.ramp,
		VOMCharge:     ch.vom,
		VOMDischarge:  dis.vom,
		TankCapacity:  capacity,
		MinLevel:      heel,
		StoragePerMWh: k,
		StorageUnit:   storageUnit,
	}
	return p, p.Validate()
}

func (s Subsystem) massBased() bool {
	for _, u := range s.Units {
		if u.Bounds().Quantity.IsMass() {
			return true
		}
	}
	return false
}

type rateAggregate struct {
	max, min, eta, ramp, vom float64
}

// rates converts every unit to grid-side MW and aggregates:
// capacities and ramps add, efficiency and variable O&M are
// capacity-weighted, the minimum running rate is the smallest unit's.
func (s Subsystem) rates(factor float64) rateAggregate {
	var agg rateAggregate
	agg.min = math.Inf(1)
	unlimitedRamp := false
	for _, u := range s.Units {
		b := u.Bounds()
		mw := toMW(b.Capacity, b, s.Role, factor)
		agg.max += mw
		agg.eta += b.Efficiency * mw
		agg.vom += u.Costs().VariableOM * mw
		if m := b.MinLoad * mw; m < agg.min {
			agg.min = m
		}
		if b.RampLimit == 0 {
			unlimitedRamp = true
		}
		agg.ramp += toMW(b.RampLimit, b, s.Role, factor)
	}
	if agg.max > 0 {
		agg.eta /= agg.max
		agg.vom /= agg.max
	}
	if unlimitedRamp {
		agg.ramp = 0
	}
	if s.InterconnectLimit > 0 && s.InterconnectLimit < agg.max {
		agg.max = s.InterconnectLimit
	}
	if math.IsInf(agg.min, 1) {
		agg.min = 0
	}
	return agg
}

// toMW converts a rate in the unit's quantity to grid-side MW. Ammonia mass
// flows are produced (charging) or burnt (discharging) at the unit's
// efficiency.
func toMW(v float64, b equipment.Bounds, role equipment.Role, factor float64) float64 {
	if b.Quantity != equipment.MassFlow {
		return v
	}
	if role == equipment.RoleCharging {
		return v / (factor * b.Efficiency)
	}
	return v * b.Efficiency / factor
}

// Costs is the capital and fixed operating cost breakdown, GBP and GBP/year.
type Costs struct {
	ChargingCapex    float64 `json:"p2a_capex"`
	StorageCapex     float64 `json:"storage_capex"`
	DischargingCapex float64 `json:"a2p_capex"`
	TotalCapex       float64 `json:"total_capex"`

	ChargingOpex    float64 `json:"p2a_opex"`
	StorageOpex     float64 `json:"storage_opex"`
	DischargingOpex float64 `json:"a2p_opex"`
	TotalOpex       float64 `json:"total_opex"`

	// ReplaceableCapex is replaced every ReplacementHours of charging operation.
	ReplaceableCapex float64 `json:"replaceable_capex"`
	ReplacementHours float64 `json:"replacement_hours"`
}

func (s *System) Costs() Costs {
	var c Costs
	sum := func(units []equipment.Unit) (capex, opex float64) {
		for _, u := range units {
			ct := u.Costs()
			capex += ct.Capex
			opex += ct.FixedOM
			c.ReplaceableCapex += ct.ReplaceableCapex
			if ct.ReplacementHours > 0 && (c.ReplacementHours == 0 || ct.ReplacementHours < c.ReplacementHours) {
				c.ReplacementHours = ct.ReplacementHours
			}
		}
		return capex, opex
	}
	c.ChargingCapex, c.ChargingOpex = sum(s.Charging.Units)
	c.StorageCapex, c.StorageOpex = sum(s.Storage.Units)
	c.DischargingCapex, c.DischargingOpex = sum(s.Discharging.Units)
	c.TotalCapex = c.ChargingCapex + c.StorageCapex + c.DischargingCapex
	c.TotalOpex = c.ChargingOpex + c.StorageOpex + c.DischargingOpex
	return c
}
