package equipment

import (
	"fmt"
	"math"

	"ammonia-battery/internal/model"
)

const (
	// LHVAmmonia is the lower heating value of ammonia, MJ/kg.
	LHVAmmonia = 18.6
	// TonnesPerMWh is the ammonia mass holding one MWh of chemical energy.
	TonnesPerMWh = 3600 / (LHVAmmonia * 1000)
	// OpexFraction is annual fixed O&M as a share of capex.
	OpexFraction = 0.02
	// StackFraction is the electrolyser capex share that is replaced at end of stack life.
	StackFraction = 0.6
)

// Stage is one step of a power-to-ammonia process chain.
type Stage struct {
	Name string `json:"name"`
	// SpecificEnergy is the electricity the stage uses, MJ per kg of NH3 produced.
	SpecificEnergy float64 `json:"specific_energy"`
	// SizedAt is the stage size used by its cost correlation (MW or t/day NH3).
	SizedAt float64 `json:"sized_at"`
	Capex   float64 `json:"capex"`
}

// Chain is a power-to-ammonia plant: stages run in series off one grid
// connection. Its efficiency is the ammonia LHV over the summed specific
// energy of every stage.
type Chain struct {
	name       string
	capacityMW float64
	stages     []Stage
	minLoad    float64
	rampLimit  float64
	stackHours float64
}

// P2AOptions tune the power-to-ammonia catalogue plant.
type P2AOptions struct {
	// ElectrolyserEnergy MJ/kg NH3. Literature values: 35.3, 28.2, 24.9.
	ElectrolyserEnergy float64 `yaml:"electrolyser_energy" json:"electrolyser_energy"`
	// ElectrolyserUnitCapex USD/MW at the 10 MW reference size. Literature values: 750000, 500000, 200000.
	ElectrolyserUnitCapex float64 `yaml:"electrolyser_unit_capex" json:"electrolyser_unit_capex"`
	CostYear              int     `yaml:"cost_year" json:"cost_year"`
	MinLoad               float64 `yaml:"min_load" json:"min_load"`
	RampLimit             float64 `yaml:"ramp_limit" json:"ramp_limit"`
	// StackHours is operating hours between electrolyser stack replacements.
	StackHours float64 `yaml:"stack_hours" json:"stack_hours"`
}

// DefaultP2AOptions returns the reference alkaline-electrolyser plant.
func DefaultP2AOptions() P2AOptions {
	return P2AOptions{
		ElectrolyserEnergy:    35.3,
		ElectrolyserUnitCapex: 750000,
		CostYear:              DefaultCostYear,
		StackHours:            80000,
	}
}

const (
	asuEnergy        = 0.74
	h2CompEnergy     = 0.763
	n2CompEnergy     = 0.587
	reactorEnergy    = 0.294
	electrolyserRef  = 10.0
	electrolyserBoP  = 0.4
	bopExponent      = 0.6
	electrolyserYear = 2024
	correlationYear  = 2010
	nitrogenPerNH3   = 14.01 / 17.0034
)

// PowerToAmmonia sizes electrolyser, air separation and synthesis loop for a
// plant drawing capacityMW from the grid.
func PowerToAmmonia(name string, capacityMW float64, opts P2AOptions) (*Chain, error) {
	if !(capacityMW > 0) {
		return nil, &model.ConfigurationError{Field: name + ".capacity", Reason: "must be > 0"}
	}
	if opts.ElectrolyserEnergy <= 0 || opts.ElectrolyserUnitCapex < 0 {
		return nil, &model.ConfigurationError{Field: name + ".electrolyser", Reason: "energy must be > 0 and unit capex >= 0"}
	}
	if opts.CostYear == 0 {
		opts.CostYear = DefaultCostYear
	}
	synthEnergy := h2CompEnergy + n2CompEnergy + reactorEnergy
	total := opts.ElectrolyserEnergy + asuEnergy + synthEnergy
	dailyTonnes := capacityMW * 24 * 3600 / total / 1000

	elecMW := opts.ElectrolyserEnergy / total * capacityMW
	elecCapex, err := electrolyserCapex(elecMW, opts.ElectrolyserUnitCapex, opts.CostYear)
	if err != nil {
		return nil, err
	}
	asuCapex, err := correlationCapex(1606000, -0.6249, 9318, dailyTonnes*nitrogenPerNH3, opts.CostYear)
	if err != nil {
		return nil, err
	}
	synthCapex, err := correlationCapex(23850000, -1.340, 173500, dailyTonnes, opts.CostYear)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		name:       name,
		capacityMW: capacityMW,
		minLoad:    opts.MinLoad,
		rampLimit:  opts.RampLimit,
		stackHours: opts.StackHours,
		stages: []Stage{
			{Name: name + "_electrolyser", SpecificEnergy: opts.ElectrolyserEnergy, SizedAt: elecMW, Capex: elecCapex},
			{Name: name + "_asu", SpecificEnergy: asuEnergy, SizedAt: dailyTonnes, Capex: asuCapex},
			{Name: name + "_synthesis_loop", SpecificEnergy: synthEnergy, SizedAt: dailyTonnes, Capex: synthCapex},
		},
	}
	spec := Spec{Name: name, Role: RoleCharging, Bounds: c.Bounds(), Costs: c.Costs()}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// electrolyserCapex scales stack linearly and balance of plant with the six-tenths rule.
func electrolyserCapex(sizeMW, unitCapexUSD float64, year int) (float64, error) {
	unit, err := AdjustCEPCI(unitCapexUSD, electrolyserYear, year)
	if err != nil {
		return 0, err
	}
	unit = ToGBP(unit, USD)
	stack := unit * StackFraction * sizeMW
	bop := unit * electrolyserBoP * sizeMW * math.Pow(sizeMW/electrolyserRef, bopExponent-1)
	return stack + bop, nil
}

// correlationCapex evaluates (a·size^b + c)·size in 2010 USD.
func correlationCapex(a, b, c, size float64, year int) (float64, error) {
	usd := (a*math.Pow(size, b) + c) * size
	usd, err := AdjustCEPCI(usd, correlationYear, year)
	if err != nil {
		return 0, err
	}
	return ToGBP(usd, USD), nil
}

func (c *Chain) Name() string { return c.name }
func (c *Chain) Role() Role   { return RoleCharging }

func (c *Chain) Bounds() Bounds {
	return Bounds{
		Quantity:   Power,
		Capacity:   c.capacityMW,
		Efficiency: c.Efficiency(),
		MinLoad:    c.minLoad,
		RampLimit:  c.rampLimit,
	}
}

func (c *Chain) Costs() CostTerms {
	var capex float64
	for _, s := range c.stages {
		capex += s.Capex
	}
	return CostTerms{
		Capex:            capex,
		FixedOM:          OpexFraction * capex,
		ReplaceableCapex: StackFraction * c.stages[0].Capex,
		ReplacementHours: c.stackHours,
	}
}

// Stages returns the sized process steps, electrolyser first.
func (c *Chain) Stages() []Stage { return append([]Stage(nil), c.stages...) }

// SpecificEnergy is MJ of electricity per kg NH3 across the chain.
func (c *Chain) SpecificEnergy() float64 {
	var e float64
	for _, s := range c.stages {
		e += s.SpecificEnergy
	}
	return e
}

func (c *Chain) Efficiency() float64 { return LHVAmmonia / c.SpecificEnergy() }

// DailyProduction is t/day of NH3 at full load.
func (c *Chain) DailyProduction() float64 {
	return c.capacityMW * 24 * 3600 / c.SpecificEnergy() / 1000
}

// ElectrolyserCapex is the sized electrolyser stage cost, GBP.
func (c *Chain) ElectrolyserCapex() float64 { return c.stages[0].Capex }

// Tank sizes an ammonia storage tank with the six-tenths rule against a
// 25 000 t, 39 MUSD reference (exponent 0.7 below 10 000 t).
func Tank(name string, capacityTonnes, minLevel float64) (*Basic, error) {
	if !(capacityTonnes > 0) {
		return nil, &model.ConfigurationError{Field: name + ".capacity", Reason: "must be > 0"}
	}
	capex := ToGBP(tankCapexUSD(capacityTonnes), USD)
	return New(Spec{
		Name: name,
		Role: RoleStorage,
		Bounds: Bounds{
			Quantity:   Mass,
			Capacity:   capacityTonnes,
			Efficiency: 1,
			MinLevel:   minLevel,
		},
		Costs: CostTerms{Capex: capex, FixedOM: OpexFraction * capex},
	})
}

func tankCapexUSD(tonnes float64) float64 {
	const refTonnes, refCost = 25000.0, 39e6
	exp := 0.6
	if tonnes < 10000 {
		exp = 0.7
	}
	return refCost * math.Pow(tonnes/refTonnes, exp)
}

// TankEnergyMWh is the chemical energy held by a full tank of the given size.
func TankEnergyMWh(capacityTonnes float64) float64 {
	return capacityTonnes / TonnesPerMWh
}

// Technology is an ammonia-to-power conversion route.
type Technology string

const (
	DirectCombustion Technology = "direct_combustion"
	BlendCombustion  Technology = "blend_combustion"
	H2Combustion     Technology = "h2_combustion"
)

// TechnologyInfo are the fixed characteristics of a conversion route.
type TechnologyInfo struct {
	Technology Technology `json:"technology"`
	Efficiency float64    `json:"efficiency"`
	// CrackedFraction is the share of ammonia cracked to hydrogen before combustion.
	CrackedFraction float64 `json:"cracked_fraction"`
	// StackHours is the electrolyser stack life assumed with this route.
	StackHours float64 `json:"stack_hours"`
}

var technologies = map[Technology]TechnologyInfo{
	DirectCombustion: {Technology: DirectCombustion, Efficiency: 0.60, CrackedFraction: 0, StackHours: 80000},
	BlendCombustion:  {Technology: BlendCombustion, Efficiency: 0.574, CrackedFraction: 0.224, StackHours: 80000},
	H2Combustion:     {Technology: H2Combustion, Efficiency: 0.525, CrackedFraction: 1, StackHours: 60000},
}

// Technologies lists the supported routes in a stable order.
func Technologies() []TechnologyInfo {
	return []TechnologyInfo{
		technologies[DirectCombustion],
		technologies[BlendCombustion],
		technologies[H2Combustion],
	}
}

// LookupTechnology returns the route characteristics or a ConfigurationError.
func LookupTechnology(t Technology) (TechnologyInfo, error) {
	info, ok := technologies[t]
	if !ok {
		return TechnologyInfo{}, &model.ConfigurationError{
			Field:  "a2p_technology",
			Reason: fmt.Sprintf("unsupported conversion technology %q", t),
		}
	}
	return info, nil
}

// Generator is an ammonia-to-power block: a combustion turbine plant plus an
// optional cracker.
type Generator struct {
	*Basic
	Info           TechnologyInfo
	TurbineCapex   float64
	CrackerCapex   float64
	AmmoniaFlowKgH float64
	HydrogenFlowTH float64
}

// A2POptions tune the ammonia-to-power catalogue plant.
type A2POptions struct {
	CostYear  int     `yaml:"cost_year" json:"cost_year"`
	MinLoad   float64 `yaml:"min_load" json:"min_load"`
	RampLimit float64 `yaml:"ramp_limit" json:"ramp_limit"`
}

const (
	turbineRefMW       = 1000.0
	turbineRefUSDPerKW = 766000.0
	turbineExponent    = 0.8
	turbineYear        = 2019
	crackerConversion  = 0.99
	h2PerNH3           = (3.0 * 1.008 * 2) / (2.0 * 17.031)
)

// AmmoniaToPower sizes a generator of capacityMW electrical output.
func AmmoniaToPower(name string, capacityMW float64, tech Technology, opts A2POptions) (*Generator, error) {
	info, err := LookupTechnology(tech)
	if err != nil {
		return nil, err
	}
	if !(capacityMW > 0) {
		return nil, &model.ConfigurationError{Field: name + ".capacity", Reason: "must be > 0"}
	}
	if opts.CostYear == 0 {
		opts.CostYear = DefaultCostYear
	}

	turbineUSD := turbineRefUSDPerKW * turbineRefMW * math.Pow(capacityMW/turbineRefMW, turbineExponent)
	turbineUSD, err = AdjustCEPCI(turbineUSD, turbineYear, opts.CostYear)
	if err != nil {
		return nil, err
	}

	flow := AmmoniaFlowKgH(capacityMW, info.Efficiency)
	h2 := flow * info.CrackedFraction * h2PerNH3 * crackerConversion / 1000
	var crackerUSD float64
	if h2 > 0 {
		crackerUSD, err = AdjustCEPCI(18.171*math.Pow(h2, 0.7451)*1e6, turbineYear, opts.CostYear)
		if err != nil {
			return nil, err
		}
	}

	turbine := ToGBP(turbineUSD, USD)
	cracker := ToGBP(crackerUSD, USD)
	capex := turbine + cracker
	u, err := New(Spec{
		Name: name,
		Role: RoleDischarging,
		Bounds: Bounds{
			Quantity:   Power,
			Capacity:   capacityMW,
			Efficiency: info.Efficiency,
			MinLoad:    opts.MinLoad,
			RampLimit:  opts.RampLimit,
		},
		Costs: CostTerms{Capex: capex, FixedOM: OpexFraction * capex},
	})
	if err != nil {
		return nil, err
	}
	return &Generator{
		Basic:          u,
		Info:           info,
		TurbineCapex:   turbine,
		CrackerCapex:   cracker,
		AmmoniaFlowKgH: flow,
		HydrogenFlowTH: h2,
	}, nil
}

// AmmoniaFlowKgH is the fuel flow a generator of powerMW needs at full load.
func AmmoniaFlowKgH(powerMW, efficiency float64) float64 {
	return powerMW / efficiency * 3600 / LHVAmmonia
}

// DailyConsumption is t/day of NH3 burnt at full load.
func (g *Generator) DailyConsumption() float64 {
	return g.AmmoniaFlowKgH * 24 / 1000
}
