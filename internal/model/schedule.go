package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PeriodResult is one period of a solved schedule.
// Units:
// - ChargeMW, DischargeMW, CurtailmentUptakeMW: MW averaged over the period
// - EnergyInMWh, EnergyOutMWh: grid-side MWh
// - LevelStart, LevelEnd, Stored, Withdrawn: storage units (tonnes NH3 or MWh)
// - costs and revenues: currency
type PeriodResult struct {
	Index int       `json:"index"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Price       float64 `json:"price"`
	Curtailment float64 `json:"curtailment"`

	Action Action `json:"action"`

	ChargeMW            float64 `json:"charge_mw"`
	DischargeMW         float64 `json:"discharge_mw"`
	CurtailmentUptakeMW float64 `json:"curtailment_uptake_mw"`

	EnergyInMWh  float64 `json:"energy_in_mwh"`
	EnergyOutMWh float64 `json:"energy_out_mwh"`

	LevelStart float64 `json:"level_start"`
	LevelEnd   float64 `json:"level_end"`
	Stored     float64 `json:"stored"`
	Withdrawn  float64 `json:"withdrawn"`

	ChargingCost       float64 `json:"charging_cost"`
	DischargingRevenue float64 `json:"discharging_revenue"`
	VariableCost       float64 `json:"variable_cost"`
	CurtailmentCredit  float64 `json:"curtailment_credit"`
	NetRevenue         float64 `json:"net_revenue"`
}

// Charging reports whether the charging subsystem ran in the period.
func (p PeriodResult) Charging() bool { return p.ChargeMW > flowEpsilon }

// Discharging reports whether the discharging subsystem ran in the period.
func (p PeriodResult) Discharging() bool { return p.DischargeMW > flowEpsilon }

// SolveMetadata describes how a schedule was obtained.
type SolveMetadata struct {
	Status          string        `json:"status"`
	Objective       float64       `json:"objective"`
	ObjectiveMode   string        `json:"objective_mode"`
	MutualExclusion string        `json:"mutual_exclusion"`
	Backend         string        `json:"backend"`
	SolveTime       time.Duration `json:"solve_time_ns"`
	Attempts        int           `json:"attempts"`
	Nodes           int           `json:"nodes,omitempty"`
	// BalanceResidual is the largest storage-balance deviation found when the
	// schedule was replayed after the solve.
	BalanceResidual float64 `json:"balance_residual"`
}

// Totals aggregates a schedule over its horizon.
type Totals struct {
	EnergyInMWh        float64 `json:"energy_in_mwh"`
	EnergyOutMWh       float64 `json:"energy_out_mwh"`
	Stored             float64 `json:"stored"`
	Withdrawn          float64 `json:"withdrawn"`
	CurtailmentMWh     float64 `json:"curtailment_uptake_mwh"`
	ChargingCost       float64 `json:"charging_cost"`
	DischargingRevenue float64 `json:"discharging_revenue"`
	VariableCost       float64 `json:"variable_cost"`
	CurtailmentCredit  float64 `json:"curtailment_credit"`
	NetRevenue         float64 `json:"net_revenue"`
	ChargingHours      float64 `json:"charging_hours"`
	DischargingHours   float64 `json:"discharging_hours"`
}

// Schedule is the read-only result of a successful solve.
// Accessors return copies; nothing outside this package can change it.
type Schedule struct {
	scenario    string
	stepHours   float64
	storageUnit string
	periods     []PeriodResult
	levels      []float64
	meta        SolveMetadata
}

// NewSchedule snapshots periods and boundary levels into a Schedule.
// levels must hold one entry per period boundary (len(periods)+1).
func NewSchedule(scenario string, stepHours float64, storageUnit string, periods []PeriodResult, levels []float64, meta SolveMetadata) (*Schedule, error) {
	if len(periods) == 0 {
		return nil, fmt.Errorf("schedule has no periods")
	}
	if len(levels) != len(periods)+1 {
		return nil, fmt.Errorf("schedule has %d levels for %d periods", len(levels), len(periods))
	}
	s := &Schedule{
		scenario:    scenario,
		stepHours:   stepHours,
		storageUnit: storageUnit,
		periods:     append([]PeriodResult(nil), periods...),
		levels:      append([]float64(nil), levels...),
		meta:        meta,
	}
	return s, nil
}

func (s *Schedule) Scenario() string      { return s.scenario }
func (s *Schedule) StepHours() float64    { return s.stepHours }
func (s *Schedule) StorageUnit() string   { return s.storageUnit }
func (s *Schedule) Len() int              { return len(s.periods) }
func (s *Schedule) Meta() SolveMetadata   { return s.meta }
func (s *Schedule) InitialLevel() float64 { return s.levels[0] }
func (s *Schedule) FinalLevel() float64   { return s.levels[len(s.levels)-1] }

func (s *Schedule) Period(i int) PeriodResult { return s.periods[i] }

func (s *Schedule) Periods() []PeriodResult {
	return append([]PeriodResult(nil), s.periods...)
}

// Levels returns the storage level at every period boundary 0..N.
func (s *Schedule) Levels() []float64 {
	return append([]float64(nil), s.levels...)
}

func (s *Schedule) Charge() []float64 {
	out := make([]float64, len(s.periods))
	for i, p := range s.periods {
		out[i] = p.ChargeMW
	}
	return out
}

func (s *Schedule) Discharge() []float64 {
	out := make([]float64, len(s.periods))
	for i, p := range s.periods {
		out[i] = p.DischargeMW
	}
	return out
}

func (s *Schedule) Totals() Totals {
	var t Totals
	for _, p := range s.periods {
		t.EnergyInMWh += p.EnergyInMWh
		t.EnergyOutMWh += p.EnergyOutMWh
		t.Stored += p.Stored
		t.Withdrawn += p.Withdrawn
		t.CurtailmentMWh += p.CurtailmentUptakeMW * s.stepHours
		t.ChargingCost += p.ChargingCost
		t.DischargingRevenue += p.DischargingRevenue
		t.VariableCost += p.VariableCost
		t.CurtailmentCredit += p.CurtailmentCredit
		t.NetRevenue += p.NetRevenue
		if p.Charging() {
			t.ChargingHours += s.stepHours
		}
		if p.Discharging() {
			t.DischargingHours += s.stepHours
		}
	}
	return t
}

type scheduleJSON struct {
	Scenario    string         `json:"scenario"`
	StepHours   float64        `json:"step_hours"`
	StorageUnit string         `json:"storage_unit"`
	Meta        SolveMetadata  `json:"meta"`
	Totals      Totals         `json:"totals"`
	Levels      []float64      `json:"levels"`
	Periods     []PeriodResult `json:"periods"`
}

func (s *Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(scheduleJSON{
		Scenario:    s.scenario,
		StepHours:   s.stepHours,
		StorageUnit: s.storageUnit,
		Meta:        s.meta,
		Totals:      s.Totals(),
		Levels:      s.levels,
		Periods:     s.periods,
	})
}
