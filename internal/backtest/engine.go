package backtest

import (
	"fmt"
	"math"

	"ammonia-battery/internal/model"
	"ammonia-battery/internal/strategy"
	"ammonia-battery/internal/system"
)

// Options are the economic and coupling settings a replay prices and checks
// the flows against.
type Options struct {
	// CurtailmentCredit is paid per MWh of curtailed energy taken up.
	CurtailmentCredit float64
	// CurtailmentCoupled restricts charging to the curtailment available.
	CurtailmentCoupled bool
}

// Flows are the per-period decisions to replay.
type Flows struct {
	ChargeMW    []float64
	DischargeMW []float64
	// UptakeMW is the curtailed power absorbed per period; nil means none.
	UptakeMW     []float64
	InitialLevel float64
	// Levels, when set, are reference boundary levels (len N+1) the
	// replayed trajectory is compared against.
	Levels []float64
}

type Engine struct {
	params system.Parameters
	opts   Options
}

func New(params system.Parameters, opts Options) *Engine {
	return &Engine{params: params, opts: opts}
}

// Replay rebuilds the storage trajectory from the initial level and the flows
// through the balance law
//
//	level(t) = level(t-1) + k·Δt·(η_c·charge(t) − discharge(t)/η_d)
//
// and prices every period. It never clips: bound breaches are measured and
// reported in MaxViolation.
func (e *Engine) Replay(series model.TimeSeries, f Flows) (*Result, error) {
	n := series.Len()
	if n == 0 {
		return nil, fmt.Errorf("no intervals")
	}
	if len(f.ChargeMW) != n || len(f.DischargeMW) != n {
		return nil, fmt.Errorf("flows cover %d/%d periods, series has %d", len(f.ChargeMW), len(f.DischargeMW), n)
	}
	if f.UptakeMW != nil && len(f.UptakeMW) != n {
		return nil, fmt.Errorf("uptake covers %d periods, series has %d", len(f.UptakeMW), n)
	}
	if f.Levels != nil && len(f.Levels) != n+1 {
		return nil, fmt.Errorf("reference levels have %d entries, want %d", len(f.Levels), n+1)
	}

	p := e.params
	ledger := make([]LedgerRow, 0, n)
	levels := make([]float64, 0, n+1)
	level := f.InitialLevel
	levels = append(levels, level)
	cum := 0.0
	res := &Result{}

	res.MaxViolation = math.Max(res.MaxViolation, e.levelViolation(level))
	if f.Levels != nil {
		res.MaxResidual = math.Abs(level - f.Levels[0])
	}

	for idx, it := range series.Intervals {
		dtH := series.StepHours
		c, d := f.ChargeMW[idx], f.DischargeMW[idx]
		var u float64
		if f.UptakeMW != nil {
			u = f.UptakeMW[idx]
		}

		res.MaxViolation = math.Max(res.MaxViolation, rateViolation(c, p.MaxCharge))
		res.MaxViolation = math.Max(res.MaxViolation, rateViolation(d, p.MaxDischarge))
		if e.opts.CurtailmentCoupled {
			res.MaxViolation = math.Max(res.MaxViolation, c-it.Curtailment)
		}
		if u != 0 {
			res.MaxViolation = math.Max(res.MaxViolation, math.Max(u-c, u-it.Curtailment))
			res.MaxViolation = math.Max(res.MaxViolation, -u)
		}

		stored := p.StoragePerMWh * dtH * p.EtaCharge * c
		withdrawn := p.StoragePerMWh * dtH * d / p.EtaDischarge
		start := level
		level = start + stored - withdrawn
		levels = append(levels, level)
		res.MaxViolation = math.Max(res.MaxViolation, e.levelViolation(level))
		if f.Levels != nil {
			res.MaxResidual = math.Max(res.MaxResidual, math.Abs(level-f.Levels[idx+1]))
		}

		energyIn := c * dtH
		energyOut := d * dtH
		row := LedgerRow{
			Index:       idx,
			Start:       it.Start,
			End:         it.End,
			Price:       it.Price,
			Curtailment: it.Curtailment,

			Action: model.ActionFromFlows(c, d),

			ChargeMW:    c,
			DischargeMW: d,
			UptakeMW:    u,

			EnergyInMWh:  energyIn,
			EnergyOutMWh: energyOut,

			LevelStart: start,
			LevelEnd:   level,
			Stored:     stored,
			Withdrawn:  withdrawn,

			ChargingCost:       it.Price * energyIn,
			DischargingRevenue: it.Price * energyOut,
			VariableCost:       (p.VOMCharge*c + p.VOMDischarge*d) * dtH,
			CurtailmentCredit:  e.opts.CurtailmentCredit * u * dtH,
		}
		row.PNL = row.DischargingRevenue - row.ChargingCost - row.VariableCost + row.CurtailmentCredit
		cum += row.PNL
		row.CumPNL = cum
		ledger = append(ledger, row)
	}

	res.Ledger = ledger
	res.Levels = levels
	res.TotalPNL = cum
	res.FinalLevel = level
	return res, nil
}

func (e *Engine) levelViolation(level float64) float64 {
	return math.Max(e.params.MinLevel-level, level-e.params.TankCapacity)
}

func rateViolation(v, max float64) float64 {
	return math.Max(-v, v-max)
}

// Run simulates a rule-based strategy period by period. Requests are clipped
// to the rate limits, the curtailment available when coupled, the tank
// headroom and the inventory on hand, then the realised flows are replayed.
func (e *Engine) Run(series model.TimeSeries, strat strategy.Strategy, initialLevel float64) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy is nil")
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("no intervals")
	}
	p := e.params
	n := series.Len()
	flows := Flows{
		ChargeMW:     make([]float64, n),
		DischargeMW:  make([]float64, n),
		UptakeMW:     make([]float64, n),
		InitialLevel: initialLevel,
	}

	level := initialLevel
	for idx, it := range series.Intervals {
		dtH := series.StepHours
		req := strat.Decide(strategy.Context{
			Index:    idx,
			Interval: it,
			Level:    level,
			Params:   p,
		})

		c := clamp(req.ChargeMW, 0, p.MaxCharge)
		if e.opts.CurtailmentCoupled {
			c = math.Min(c, it.Curtailment)
		}
		perMW := p.StoragePerMWh * dtH
		c = math.Min(c, math.Max(0, p.TankCapacity-level)/(perMW*p.EtaCharge))

		d := clamp(req.DischargeMW, 0, p.MaxDischarge)
		d = math.Min(d, math.Max(0, level-p.MinLevel)*p.EtaDischarge/perMW)

		flows.ChargeMW[idx] = c
		flows.DischargeMW[idx] = d
		if e.opts.CurtailmentCredit > 0 {
			flows.UptakeMW[idx] = math.Min(c, it.Curtailment)
		}
		level += perMW * (p.EtaCharge*c - d/p.EtaDischarge)
	}
	return e.Replay(series, flows)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
