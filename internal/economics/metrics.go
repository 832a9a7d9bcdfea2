package economics

import (
	"encoding/json"
	"fmt"
	"math"

	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

// SystemEconomics is the annual profit tally for the whole plant, GBP.
type SystemEconomics struct {
	P2ACapex     float64 `json:"p2a_capex"`
	StorageCapex float64 `json:"storage_capex"`
	A2PCapex     float64 `json:"a2p_capex"`
	TotalCapex   float64 `json:"total_capex"`

	AnnualizedCapex float64 `json:"annualized_capex"`
	TotalAnnualOpex float64 `json:"total_annual_opex"`

	PeriodProfit           float64 `json:"period_operating_profit"`
	PeriodHours            float64 `json:"period_hours"`
	TimeFraction           float64 `json:"time_fraction"`
	AnnualOperatingProfit  float64 `json:"annual_operating_profit"`
	NetAnnualProfit        float64 `json:"net_annual_profit"`
	LifetimeCostPV         float64 `json:"lifetime_cost_pv"`
	ReplacementPV          float64 `json:"replacement_pv"`
	ElectrolyserStackCount int     `json:"electrolyser_replacements"`
}

// LCOA is the levelised cost of ammonia, GBP per tonne.
type LCOA struct {
	PerTonne               float64 `json:"lcoa_per_tonne"`
	AnnualProductionTonnes float64 `json:"annual_production_tonnes"`
	AnnualElectricityCost  float64 `json:"annual_electricity_cost"`
	CapitalCost            float64 `json:"p2a_capital_cost"`
	ReplacementPV          float64 `json:"electrolyser_replacement_pv"`
}

// LCOE is the levelised cost of electricity from the A2P block with fuel
// priced at the LCOA, GBP per MWh generated.
type LCOE struct {
	PerMWh              float64 `json:"lcoe_per_mwh"`
	AnnualGenerationMWh float64 `json:"annual_generation_mwh"`
	AnnualFuelTonnes    float64 `json:"annual_fuel_tonnes"`
	AnnualFuelCost      float64 `json:"annual_fuel_cost"`
}

// LCOS is the levelised cost of storage over the energy discharged, GBP per
// MWh. Charging electricity is excluded.
type LCOS struct {
	PerMWh              float64 `json:"lcos_per_mwh"`
	AnnualDischargedMWh float64 `json:"annual_energy_discharged_mwh"`
	AnnualCycles        float64 `json:"annual_cycles"`
}

// Report bundles every metric for one schedule.
type Report struct {
	System      SystemEconomics `json:"system"`
	LCOA        LCOA            `json:"lcoa"`
	LCOE        LCOE            `json:"lcoe"`
	LCOS        LCOS            `json:"lcos"`
	Replacement Replacement     `json:"replacement"`
}

// Evaluate computes the full economic report. The schedule is trusted as
// solved; nothing here recomputes the storage balance.
func Evaluate(s *model.Schedule, params system.Parameters, costs system.Costs, a Assumptions) (Report, error) {
	if s == nil {
		return Report{}, fmt.Errorf("schedule is nil")
	}
	a = a.WithDefaults()
	if err := a.Validate(); err != nil {
		return Report{}, err
	}
	if params.StoragePerMWh <= 0 {
		return Report{}, &model.ConfigurationError{Field: "storage_per_mwh", Reason: "must be > 0"}
	}

	totals := s.Totals()
	hours := float64(s.Len()) * s.StepHours()
	tf := a.TimeFraction(hours)

	toTonnes := func(storageUnits float64) float64 {
		return storageUnits / params.StoragePerMWh * equipment.TonnesPerMWh
	}

	repl := a.Replacements(totals.ChargingHours, tf, costs.ReplaceableCapex, costs.ReplacementHours)
	pvf := PVF(a.DiscountRate, a.LifetimeYears)

	var r Report
	r.Replacement = repl
	r.System = SystemEconomics{
		P2ACapex:               costs.ChargingCapex,
		StorageCapex:           costs.StorageCapex,
		A2PCapex:               costs.DischargingCapex,
		TotalCapex:             costs.TotalCapex,
		AnnualizedCapex:        a.Annualize(costs.TotalCapex),
		TotalAnnualOpex:        costs.TotalOpex,
		PeriodProfit:           totals.NetRevenue,
		PeriodHours:            hours,
		TimeFraction:           tf,
		AnnualOperatingProfit:  annual(totals.NetRevenue, tf),
		LifetimeCostPV:         costs.TotalCapex + costs.TotalOpex*pvf + repl.PV,
		ReplacementPV:          repl.PV,
		ElectrolyserStackCount: repl.Count,
	}
	r.System.NetAnnualProfit = r.System.AnnualOperatingProfit - r.System.AnnualizedCapex - r.System.TotalAnnualOpex

	produced := annual(toTonnes(totals.Stored), tf)
	electricity := annual(totals.ChargingCost, tf)
	r.LCOA = LCOA{
		AnnualProductionTonnes: produced,
		AnnualElectricityCost:  electricity,
		CapitalCost:            costs.ChargingCapex,
		ReplacementPV:          repl.PV,
		PerTonne: a.LevelizedCost(Levelized{
			AnnualOutput:   produced,
			Capex:          costs.ChargingCapex,
			AnnualFixed:    costs.ChargingOpex,
			AnnualVariable: electricity,
			ReplacementPV:  repl.PV,
		}),
	}

	generation := annual(totals.EnergyOutMWh, tf)
	fuel := annual(toTonnes(totals.Withdrawn), tf)
	var fuelCost float64
	if fuel > 0 {
		fuelCost = fuel * r.LCOA.PerTonne
	}
	r.LCOE = LCOE{
		AnnualGenerationMWh: generation,
		AnnualFuelTonnes:    fuel,
		AnnualFuelCost:      fuelCost,
		PerMWh: a.LevelizedCost(Levelized{
			AnnualOutput:   generation,
			Capex:          costs.DischargingCapex,
			AnnualFixed:    costs.DischargingOpex,
			AnnualVariable: fuelCost,
		}),
	}

	r.LCOS = LCOS{
		AnnualDischargedMWh: generation,
		PerMWh: a.LevelizedCost(Levelized{
			AnnualOutput:  generation,
			Capex:         costs.TotalCapex,
			AnnualFixed:   costs.TotalOpex,
			ReplacementPV: repl.PV,
		}),
	}
	if tank := params.TankEnergyMWh(); tank > 0 {
		r.LCOS.AnnualCycles = generation / tank
	}
	return r, nil
}

// Finite returns nil for an infinite or NaN value, so unproduced levelised
// costs encode as JSON null.
func Finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func (l LCOA) MarshalJSON() ([]byte, error) {
	type alias LCOA
	return json.Marshal(struct {
		alias
		PerTonne *float64 `json:"lcoa_per_tonne"`
	}{alias(l), Finite(l.PerTonne)})
}

func (l LCOE) MarshalJSON() ([]byte, error) {
	type alias LCOE
	return json.Marshal(struct {
		alias
		PerMWh *float64 `json:"lcoe_per_mwh"`
	}{alias(l), Finite(l.PerMWh)})
}

func (l LCOS) MarshalJSON() ([]byte, error) {
	type alias LCOS
	return json.Marshal(struct {
		alias
		PerMWh *float64 `json:"lcos_per_mwh"`
	}{alias(l), Finite(l.PerMWh)})
}
