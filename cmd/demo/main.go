package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ammonia-battery/internal/backtest"
	"ammonia-battery/internal/dispatch"
	"ammonia-battery/internal/logging"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/solver"
	"ammonia-battery/internal/strategy"
	"ammonia-battery/internal/system"
)

// Demo:
// - Build a four-period system with cheap curtailed power in periods 1 and 3
// - Solve the optimal schedule
// - Replay a price-threshold rule on the same data to show the uplift
func main() {
	backend := flag.String("backend", solver.BackendSimplex, "Solver backend (auto, simplex, cbc)")
	coupled := flag.Bool("coupled", true, "Only charge from curtailed power")
	terminal := flag.String("terminal", string(dispatch.TerminalCyclic), "Terminal policy (cyclic, free)")
	outCSV := flag.String("out", "", "Optional path to write the threshold ledger CSV")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logger, err := logging.New(logging.Config{Format: "console"}, *logLevel)
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	series, err := model.NewTimeSeries(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		1,
		[]float64{10, 50, 5, 40},
		[]float64{20, 0, 30, 0},
	)
	if err != nil {
		fail(err)
	}

	params := system.Parameters{
		MaxCharge:     20,
		MaxDischarge:  20,
		EtaCharge:     0.9,
		EtaDischarge:  0.85,
		TankCapacity:  100,
		StoragePerMWh: 1,
		StorageUnit:   "MWh",
	}

	pol := dispatch.DefaultPolicy()
	pol.CurtailmentCoupling = *coupled
	pol.Terminal = dispatch.TerminalPolicy(*terminal)

	cfg := solver.DefaultConfig()
	cfg.Backend = *backend

	sched, err := dispatch.Run(context.Background(), dispatch.Scenario{
		Name:   "demo",
		Series: series,
		Params: params,
		Policy: pol,
	}, cfg, nil, logger)
	if err != nil {
		fail(err)
	}

	meta := sched.Meta()
	fmt.Printf("Optimal schedule (%s, backend=%s, objective=%.2f)\n", meta.Status, meta.Backend, meta.Objective)
	fmt.Printf("%-3s %-7s %-7s %-10s %-9s %-9s %-9s %-9s\n", "t", "price", "curt", "action", "charge", "discharge", "level", "net")
	for _, p := range sched.Periods() {
		fmt.Printf(
			"%-3d %-7.1f %-7.1f %-10s %-9.2f %-9.2f %-9.2f %-9.2f\n",
			p.Index+1,
			p.Price,
			p.Curtailment,
			p.Action,
			p.ChargeMW,
			p.DischargeMW,
			p.LevelEnd,
			p.NetRevenue,
		)
	}
	totals := sched.Totals()
	fmt.Printf("Net revenue: %.2f (in %.1f MWh, out %.1f MWh)\n", totals.NetRevenue, totals.EnergyInMWh, totals.EnergyOutMWh)

	rule, err := strategy.NewThreshold(strategy.ThresholdParams{ChargeBelow: 15, DischargeAbove: 30})
	if err != nil {
		fail(err)
	}
	replay, err := backtest.New(params, backtest.Options{CurtailmentCoupled: *coupled}).Run(series, rule, sched.InitialLevel())
	if err != nil {
		fail(err)
	}
	fmt.Printf("Threshold rule net revenue: %.2f (uplift %.2f)\n", replay.TotalPNL, totals.NetRevenue-replay.TotalPNL)

	if *outCSV != "" {
		if err := backtest.WriteLedgerCSV(*outCSV, replay.Ledger); err != nil {
			fail(err)
		}
		fmt.Printf("Wrote %s\n", *outCSV)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
