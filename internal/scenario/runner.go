// Package scenario drives complete runs: load the series, compose the plant,
// solve the dispatch, evaluate it and write the outputs.
package scenario

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/backtest"
	"ammonia-battery/internal/config"
	"ammonia-battery/internal/dispatch"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/report"
	"ammonia-battery/internal/solver"
	"ammonia-battery/internal/store"
	"ammonia-battery/internal/system"
)

// RunSaver persists finished runs.
type RunSaver interface {
	SaveRun(run *store.Run) error
}

type Runner struct {
	logger *zap.Logger
	pool   *solver.Pool
	cache  *store.ResultCache
	saver  RunSaver
	// workers bounds concurrent scenarios in Sweep.
	workers int
}

type Option func(*Runner)

// WithPool shares a solver pool across runs.
func WithPool(p *solver.Pool) Option { return func(r *Runner) { r.pool = p } }

func WithCache(c *store.ResultCache) Option { return func(r *Runner) { r.cache = c } }

func WithSaver(s RunSaver) Option { return func(r *Runner) { r.saver = s } }

// WithWorkers sets the sweep concurrency; n <= 0 uses the pool size.
func WithWorkers(n int) Option { return func(r *Runner) { r.workers = n } }

func NewRunner(logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{logger: logger}
	for _, o := range opts {
		o(r)
	}
	if r.pool == nil {
		r.pool = solver.NewPool(0)
	}
	if r.workers <= 0 {
		r.workers = r.pool.Size()
	}
	return r
}

// Baseline is a rule-based strategy replayed over the same series.
type Baseline struct {
	Strategy   string  `json:"strategy"`
	NetRevenue float64 `json:"net_revenue"`
	FinalLevel float64 `json:"final_level"`
	// Uplift is the optimised net revenue minus the baseline's.
	Uplift float64 `json:"uplift"`
}

// Outcome is a finished run and everything derived from it.
type Outcome struct {
	Run       *store.Run
	Params    system.Parameters
	Costs     system.Costs
	Baselines []Baseline
	// Files lists the artifacts written, if any.
	Files []string
}

// ReportInput assembles the report view of the outcome.
func (o *Outcome) ReportInput(cfg *config.Config) report.Input {
	in := report.Input{
		Scenario:      o.Run.Scenario,
		SystemName:    cfg.System.Plant.Name,
		Params:        o.Params,
		LifetimeYears: cfg.Economics.WithDefaults().LifetimeYears,
		Schedule:      o.Run.Schedule,
		Economics:     o.Run.Economics,
		Analysis:      o.Run.Analysis,
	}
	if cfg.System.Units == nil {
		in.Technology = string(cfg.System.Plant.Technology)
	} else if in.SystemName == "" {
		in.SystemName = "custom"
	}
	return in
}

// RunSingle loads the configured series, solves and evaluates it, and writes
// the enabled outputs under cfg.Output.Dir.
func (r *Runner) RunSingle(ctx context.Context, cfg *config.Config) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ts, err := cfg.LoadSeries()
	if err != nil {
		return nil, err
	}
	out, err := r.Solve(ctx, cfg, ts)
	if err != nil {
		return nil, err
	}
	if err := r.writeOutputs(cfg, out); err != nil {
		return out, err
	}
	return out, nil
}

// Solve runs the configured scenario over ts. The config's data file is not
// read.
func (r *Runner) Solve(ctx context.Context, cfg *config.Config, ts model.TimeSeries) (*Outcome, error) {
	logger := r.logger.With(zap.String("op", "scenario.Solve"), zap.String("scenario", cfg.Name))
	start := time.Now()

	sys, err := cfg.System.Build()
	if err != nil {
		return nil, err
	}
	params, costs := sys.Parameters(), sys.Costs()
	sc := cfg.ToScenario(ts, params)

	sched, err := dispatch.Run(ctx, sc, cfg.Solver, r.pool, r.logger)
	if err != nil {
		logger.Warn("dispatch failed", zap.Error(err))
		return nil, err
	}

	assumptions := cfg.Economics.WithDefaults()
	econ, err := economics.Evaluate(sched, params, costs, assumptions)
	if err != nil {
		return nil, fmt.Errorf("evaluate economics: %w", err)
	}
	an := analysis.Analyze(sched, analysis.Plant{
		ChargeMW:      params.MaxCharge,
		DischargeMW:   params.MaxDischarge,
		TankCapacity:  params.TankCapacity,
		YearHours:     assumptions.YearHours,
		LifetimeYears: assumptions.LifetimeYears,
		StackHours:    costs.ReplacementHours,
	})

	out := &Outcome{
		Run:    store.NewRun(sched, econ, an),
		Params: params,
		Costs:  costs,
	}
	if out.Baselines, err = r.baselines(cfg, ts, params, sched); err != nil {
		return nil, err
	}

	r.cache.Put(out.Run)
	if r.saver != nil {
		if err := r.saver.SaveRun(out.Run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}

	logger.Info("scenario solved",
		zap.String("run_id", out.Run.ID),
		zap.Int("periods", sched.Len()),
		zap.String("backend", sched.Meta().Backend),
		zap.Float64("net_revenue", sched.Totals().NetRevenue),
		zap.Float64("net_annual_profit", econ.System.NetAnnualProfit),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (r *Runner) baselines(cfg *config.Config, ts model.TimeSeries, params system.Parameters, sched *model.Schedule) ([]Baseline, error) {
	strats, err := cfg.Baselines.Strategies()
	if err != nil || len(strats) == 0 {
		return nil, err
	}
	engine := backtest.New(params, backtest.Options{
		CurtailmentCredit:  cfg.Dispatch.CurtailmentCredit,
		CurtailmentCoupled: cfg.Dispatch.CurtailmentCoupling,
	})
	optimised := sched.Totals().NetRevenue
	out := make([]Baseline, 0, len(strats))
	for _, s := range strats {
		res, err := engine.Run(ts, s, sched.InitialLevel())
		if err != nil {
			return nil, fmt.Errorf("baseline %s: %w", s.Name(), err)
		}
		out = append(out, Baseline{
			Strategy:   s.Name(),
			NetRevenue: res.TotalPNL,
			FinalLevel: res.FinalLevel,
			Uplift:     optimised - res.TotalPNL,
		})
	}
	return out, nil
}

func (r *Runner) writeOutputs(cfg *config.Config, out *Outcome) error {
	o := cfg.Output
	opts := report.Options{CSV: o.CSV, Plot: o.Plot, Summary: o.Summary, JSON: o.JSON}
	if o.Dir == "" || opts == (report.Options{}) {
		return nil
	}
	files, err := report.Write(o.Dir, out.ReportInput(cfg), opts)
	out.Files = files
	if err != nil {
		return fmt.Errorf("write outputs: %w", err)
	}
	r.logger.Info("outputs written",
		zap.String("op", "scenario.RunSingle"),
		zap.String("scenario", cfg.Name),
		zap.String("dir", o.Dir),
		zap.Int("files", len(files)),
	)
	return nil
}
