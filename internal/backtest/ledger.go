package backtest

import (
	"time"

	"ammonia-battery/internal/model"
)

// LedgerRow is one row of per-period output.
// This is the primary artifact for "what happened" in a replay.
type LedgerRow struct {
	Index int

	Start time.Time
	End   time.Time

	Price       float64
	Curtailment float64

	Action model.Action

	ChargeMW    float64
	DischargeMW float64
	UptakeMW    float64

	EnergyInMWh  float64
	EnergyOutMWh float64

	LevelStart float64
	LevelEnd   float64
	Stored     float64
	Withdrawn  float64

	ChargingCost       float64
	DischargingRevenue float64
	VariableCost       float64
	CurtailmentCredit  float64

	PNL    float64
	CumPNL float64
}

// Result is a replayed trajectory.
type Result struct {
	Ledger     []LedgerRow
	Levels     []float64
	TotalPNL   float64
	FinalLevel float64

	// MaxResidual is the largest gap between the replayed levels and the
	// reference levels, when reference levels were supplied.
	MaxResidual float64
	// MaxViolation is the largest breach of a rate, tank or curtailment bound.
	MaxViolation float64
}

// PeriodResults converts the ledger into schedule rows.
func (r *Result) PeriodResults() []model.PeriodResult {
	out := make([]model.PeriodResult, len(r.Ledger))
	for i, row := range r.Ledger {
		out[i] = model.PeriodResult{
			Index:               row.Index,
			Start:               row.Start,
			End:                 row.End,
			Price:               row.Price,
			Curtailment:         row.Curtailment,
			Action:              row.Action,
			ChargeMW:            row.ChargeMW,
			DischargeMW:         row.DischargeMW,
			CurtailmentUptakeMW: row.UptakeMW,
			EnergyInMWh:         row.EnergyInMWh,
			EnergyOutMWh:        row.EnergyOutMWh,
			LevelStart:          row.LevelStart,
			LevelEnd:            row.LevelEnd,
			Stored:              row.Stored,
			Withdrawn:           row.Withdrawn,
			ChargingCost:        row.ChargingCost,
			DischargingRevenue:  row.DischargingRevenue,
			VariableCost:        row.VariableCost,
			CurtailmentCredit:   row.CurtailmentCredit,
			NetRevenue:          row.PNL,
		}
	}
	return out
}
