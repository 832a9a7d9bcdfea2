package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"ammonia-battery/internal/backtest"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/solver"
)

var (
	ErrNotBuilt      = errors.New("dispatch: model not built")
	ErrAlreadyBuilt  = errors.New("dispatch: model already built")
	ErrAlreadySolved = errors.New("dispatch: engine already solved; build a new engine to re-solve")
	ErrNotSolved     = errors.New("dispatch: no schedule available")
)

type State int

const (
	StateUnbuilt State = iota
	StateBuilt
	StateSolved
	StateInfeasible
	StateSolverFailed
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilt:
		return "built"
	case StateSolved:
		return "solved"
	case StateInfeasible:
		return "infeasible"
	case StateSolverFailed:
		return "solver_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// flowClean is the magnitude below which solver output is snapped to zero.
const flowClean = 1e-9

// Engine formulates and solves one scenario. It is not safe for concurrent
// use; run one engine per scenario.
type Engine struct {
	scenario Scenario
	cfg      solver.Config
	pool     *solver.Pool
	log      *zap.Logger

	backendFor func(name string, p *solver.Problem) (solver.Backend, error)

	state    State
	prob     *solver.Problem
	cols     columns
	schedule *model.Schedule
	err      error

	// background is closed once work left running by the last attempt stops.
	background <-chan struct{}
}

// NewEngine validates the scenario and solver configuration. pool may be nil
// when solves need not be rationed.
func NewEngine(sc Scenario, cfg solver.Config, pool *solver.Pool, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		scenario: sc,
		cfg:      cfg,
		pool:     pool,
		log:      logger.With(zap.String("scenario", sc.Name)),
	}
	e.backendFor = func(name string, p *solver.Problem) (solver.Backend, error) {
		return solver.NewBackend(name, e.cfg, p)
	}
	return e, nil
}

func (e *Engine) State() State { return e.state }

func (e *Engine) Scenario() Scenario { return e.scenario }

// Problem returns the formulated program, or nil before Build.
func (e *Engine) Problem() *solver.Problem { return e.prob }

// Build formulates the program. It may be called once.
func (e *Engine) Build() error {
	if e.state != StateUnbuilt {
		return ErrAlreadyBuilt
	}
	e.prob, e.cols = formulate(e.scenario)
	e.state = StateBuilt
	e.log.Debug("model built",
		zap.String("op", "dispatch.Build"),
		zap.Int("periods", e.scenario.Series.Len()),
		zap.Int("vars", len(e.prob.Vars)),
		zap.Int("rows", len(e.prob.Rows)),
		zap.Bool("milp", e.prob.HasIntegers()),
	)
	return nil
}

// Schedule returns the solved schedule, or the error the solve ended with.
func (e *Engine) Schedule() (*model.Schedule, error) {
	switch e.state {
	case StateSolved:
		return e.schedule, nil
	case StateInfeasible, StateSolverFailed:
		return nil, e.err
	}
	return nil, ErrNotSolved
}

// Solve runs the built program once, retrying a single time on a backend
// failure or timeout when the retry policy allows.
func (e *Engine) Solve(ctx context.Context) (*model.Schedule, error) {
	switch e.state {
	case StateUnbuilt:
		return nil, ErrNotBuilt
	case StateBuilt:
	default:
		return nil, ErrAlreadySolved
	}

	start := time.Now()
	backend := e.cfg.Backend
	timeout := e.cfg.Timeout
	sched, err := e.attempt(ctx, 1, backend, timeout)
	if err != nil && model.IsRetryable(err) && e.cfg.Retry.Enabled && ctx.Err() == nil {
		if e.cfg.Retry.Fallback != "" {
			backend = e.cfg.Retry.Fallback
		}
		timeout = time.Duration(float64(timeout) * e.cfg.Retry.TimeoutFactor)
		e.log.Warn("solve failed, retrying",
			zap.String("op", "dispatch.Solve"),
			zap.String("backend", backend),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		sched, err = e.attempt(ctx, 2, backend, timeout)
	}

	if err != nil {
		var inf *model.InfeasibleScheduleError
		if errors.As(err, &inf) {
			e.state = StateInfeasible
		} else {
			e.state = StateSolverFailed
		}
		e.err = err
		e.log.Error("solve failed",
			zap.String("op", "dispatch.Solve"),
			zap.String("state", e.state.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	e.state = StateSolved
	e.schedule = sched
	meta := sched.Meta()
	e.log.Info("solve complete",
		zap.String("op", "dispatch.Solve"),
		zap.String("backend", meta.Backend),
		zap.Float64("objective", meta.Objective),
		zap.Int("attempts", meta.Attempts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sched, nil
}

// attempt holds a pool slot for one backend call. When the backend leaves
// work running after a timeout, the slot stays held until that work stops and
// the next attempt waits for it.
func (e *Engine) attempt(ctx context.Context, n int, backendName string, timeout time.Duration) (*model.Schedule, error) {
	if err := e.waitBackground(ctx, timeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &model.SolverTimeoutError{Backend: backendName, Timeout: timeout}
		}
		return nil, &model.SolverError{Backend: backendName, Detail: "waiting for the previous attempt to stop", Err: err}
	}
	release := func() {}
	if e.pool != nil {
		r, err := e.pool.Acquire(ctx)
		if err != nil {
			r()
			return nil, &model.SolverError{Backend: backendName, Detail: "waiting for a solver slot", Err: err}
		}
		release = r
	}

	b, err := e.backendFor(backendName, e.prob)
	if err != nil {
		release()
		return nil, err
	}
	defer e.releaseWhenIdle(b, release)

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	e.log.Debug("solving",
		zap.String("op", "dispatch.attempt"),
		zap.Int("attempt", n),
		zap.String("backend", b.Name()),
		zap.Duration("timeout", timeout),
	)
	sol, err := e.solveWith(actx, b)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &model.SolverTimeoutError{Backend: b.Name(), Timeout: timeout}
		}
		return nil, &model.SolverError{Backend: b.Name(), Err: err}
	}

	switch sol.Status {
	case solver.StatusOptimal:
	case solver.StatusInfeasible:
		return nil, e.scenario.infeasible(e.scenario.describe())
	case solver.StatusTimeLimit:
		return nil, &model.SolverTimeoutError{Backend: b.Name(), Timeout: timeout}
	case solver.StatusUnbounded:
		return nil, &model.SolverError{Backend: b.Name(), Detail: "model reported unbounded"}
	case solver.StatusNodeLimit:
		return nil, &model.SolverError{Backend: b.Name(), Detail: fmt.Sprintf("node limit reached after %d nodes without a proven optimum", sol.Nodes)}
	default:
		return nil, &model.SolverError{Backend: b.Name(), Detail: fmt.Sprintf("unexpected status %q", sol.Status)}
	}
	if len(sol.Values) != len(e.prob.Vars) {
		return nil, &model.SolverError{Backend: b.Name(), Detail: fmt.Sprintf("solution has %d values for %d variables", len(sol.Values), len(e.prob.Vars))}
	}

	meta := model.SolveMetadata{
		Status:          string(sol.Status),
		Objective:       sol.Objective,
		ObjectiveMode:   string(e.scenario.Policy.Objective),
		MutualExclusion: string(e.scenario.Policy.MutualExclusion),
		Backend:         b.Name(),
		SolveTime:       sol.Elapsed,
		Attempts:        n,
		Nodes:           sol.Nodes,
	}
	sched, err := e.extract(sol.Values, meta)
	if err != nil {
		return nil, &model.SolverError{Backend: b.Name(), Detail: "solution failed verification", Err: err}
	}
	return sched, nil
}

// releaseWhenIdle frees the slot now, or once the backend's leftover work
// has stopped.
func (e *Engine) releaseWhenIdle(b solver.Backend, release func()) {
	d, ok := b.(solver.Detached)
	if !ok {
		release()
		return
	}
	idle := d.Idle()
	select {
	case <-idle:
		release()
	default:
		e.background = idle
		e.log.Debug("backend still running after the attempt ended",
			zap.String("op", "dispatch.attempt"),
			zap.String("backend", b.Name()),
		)
		go func() {
			<-idle
			release()
		}()
	}
}

// waitBackground waits, for at most timeout, until the previous attempt's
// leftover work has stopped.
func (e *Engine) waitBackground(ctx context.Context, timeout time.Duration) error {
	if e.background == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-e.background:
		e.background = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// solveWith runs the program on b. When binaries only enforce mutual
// exclusion, the continuous relaxation is solved first: if it never charges
// and discharges in the same period it is optimal for the full program too,
// and the indicators are read off the flows.
func (e *Engine) solveWith(ctx context.Context, b solver.Backend) (*solver.Solution, error) {
	if !e.exclusionOnly() {
		return b.Solve(ctx, e.prob)
	}
	sol, err := b.Solve(ctx, e.prob.Relaxed())
	if err != nil || sol.Status != solver.StatusOptimal {
		return sol, err
	}
	if e.setIndicators(sol.Values) {
		return sol, nil
	}
	e.log.Debug("relaxation overlaps charging and discharging, solving with indicators",
		zap.String("op", "dispatch.attempt"),
	)
	return b.Solve(ctx, e.prob)
}

func (e *Engine) exclusionOnly() bool {
	return e.cols.onCharge != nil &&
		e.scenario.Policy.MutualExclusion == ExclusionBinary &&
		!e.scenario.Params.UsesMinLoad()
}

// setIndicators turns each period's indicators on where its flow is non-zero.
// It reports false when a period has both flows.
func (e *Engine) setIndicators(x []float64) bool {
	for t := range e.cols.charge {
		c := x[e.cols.charge[t]] > flowClean
		d := x[e.cols.discharge[t]] > flowClean
		if c && d {
			return false
		}
		x[e.cols.onCharge[t]] = indicator(c)
		x[e.cols.onDisch[t]] = indicator(d)
	}
	return true
}

func indicator(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

// extract reads the schedule out of the solution and replays it through the
// balance law. Any residual beyond tolerance is an error.
func (e *Engine) extract(x []float64, meta model.SolveMetadata) (*model.Schedule, error) {
	sc := e.scenario
	p := sc.Params
	n := sc.Series.Len()

	flows := backtest.Flows{
		ChargeMW:    make([]float64, n),
		DischargeMW: make([]float64, n),
		Levels:      make([]float64, n+1),
	}
	for t := 0; t < n; t++ {
		flows.ChargeMW[t] = clean(x[e.cols.charge[t]], 0, e.prob.Vars[e.cols.charge[t]].Upper)
		flows.DischargeMW[t] = clean(x[e.cols.discharge[t]], 0, p.MaxDischarge)
	}
	for b := 0; b <= n; b++ {
		flows.Levels[b] = clean(x[e.cols.level[b]], p.MinLevel, p.TankCapacity)
	}
	flows.InitialLevel = flows.Levels[0]

	switch {
	case e.cols.uptake != nil:
		flows.UptakeMW = make([]float64, n)
		for t := 0; t < n; t++ {
			flows.UptakeMW[t] = clean(x[e.cols.uptake[t]], 0, flows.ChargeMW[t])
		}
	case sc.Policy.CurtailmentCredit > 0 && sc.Policy.CurtailmentCoupling:
		flows.UptakeMW = append([]float64(nil), flows.ChargeMW...)
	}

	replay, err := backtest.New(p, backtest.Options{
		CurtailmentCredit:  sc.Policy.CurtailmentCredit,
		CurtailmentCoupled: sc.Policy.CurtailmentCoupling,
	}).Replay(sc.Series, flows)
	if err != nil {
		return nil, err
	}

	tol := 1e-6 * math.Max(1, math.Max(p.TankCapacity, p.StoragePerMWh*sc.Series.StepHours*math.Max(p.MaxCharge, p.MaxDischarge)))
	if replay.MaxResidual > tol {
		return nil, fmt.Errorf("storage balance residual %.3g exceeds %.3g", replay.MaxResidual, tol)
	}
	if replay.MaxViolation > tol {
		return nil, fmt.Errorf("bound violation %.3g exceeds %.3g", replay.MaxViolation, tol)
	}
	meta.BalanceResidual = replay.MaxResidual

	periods := replay.PeriodResults()
	for t := range periods {
		periods[t].LevelStart = flows.Levels[t]
		periods[t].LevelEnd = flows.Levels[t+1]
	}
	return model.NewSchedule(sc.Name, sc.Series.StepHours, p.StorageUnit, periods, flows.Levels, meta)
}

// clean snaps solver noise to the variable's bounds.
func clean(v, lo, hi float64) float64 {
	if math.Abs(v) < flowClean {
		v = 0
	}
	if v < lo {
		return lo
	}
	if !math.IsInf(hi, 1) && v > hi {
		return hi
	}
	return v
}

// Run builds a fresh engine for sc and solves it.
func Run(ctx context.Context, sc Scenario, cfg solver.Config, pool *solver.Pool, logger *zap.Logger) (*model.Schedule, error) {
	e, err := NewEngine(sc, cfg, pool, logger)
	if err != nil {
		return nil, err
	}
	if err := e.Build(); err != nil {
		return nil, err
	}
	return e.Solve(ctx)
}
