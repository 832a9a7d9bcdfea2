package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/config"
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/logging"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/report"
	"ammonia-battery/internal/scenario"
	"ammonia-battery/internal/solver"
	"ammonia-battery/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "solve":
		cmdSolve(os.Args[2:])
	case "sweep":
		cmdSweep(os.Args[2:])
	case "compare-tech":
		cmdCompareTech(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli solve --config configs/scenarios/base.yaml [--out results/base_case] [--db results/runs.db]")
	fmt.Println("  cli sweep --config configs/scenarios/base.yaml --variations configs/sweeps/capacity.yaml")
	fmt.Println("  cli sweep --config configs/scenarios/base.yaml --p2a 50,100,150 --tech direct_combustion,h2_combustion")
	fmt.Println("  cli compare-tech --p2a 100 --storage 5000")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - solve writes optimization_results.csv, optimization_plot.png, summary.txt and result.json")
	fmt.Println("  - sweep solves every variation in parallel and ranks them by net revenue")
	fmt.Println("  - --log-level overrides the level in the scenario file")
}

// fail reports err and exits: 2 for configuration errors, 1 otherwise.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var ce *model.ConfigurationError
	if errors.As(err, &ce) {
		os.Exit(2)
	}
	os.Exit(1)
}

type commonFlags struct {
	config   *string
	out      *string
	db       *string
	logLevel *string
	pool     *int
	noPlot   *bool
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:   fs.String("config", "", "Path to scenario YAML"),
		out:      fs.String("out", "", "Output directory (overrides output.dir)"),
		db:       fs.String("db", "", "Optional SQLite file to record runs in"),
		logLevel: fs.String("log-level", "", "Log level override (debug, info, warn, error)"),
		pool:     fs.Int("pool", 0, "Concurrent solves (0 = solver.pool_size)"),
		noPlot:   fs.Bool("no-plot", false, "Skip the PNG figure"),
	}
}

// setup loads the scenario and builds the logger and runner it asks for.
func (f commonFlags) setup(extra ...scenario.Option) (*config.Config, *scenario.Runner, func()) {
	if *f.config == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}
	cfg, err := config.Load(*f.config)
	if err != nil {
		fail(err)
	}
	if *f.out != "" {
		cfg.Output.Dir = *f.out
	}
	if *f.noPlot {
		cfg.Output.Plot = false
	}

	logger, err := logging.New(cfg.Logging, *f.logLevel)
	if err != nil {
		fail(&model.ConfigurationError{Field: "log-level", Reason: err.Error()})
	}

	size := *f.pool
	if size <= 0 {
		size = cfg.Solver.WithDefaults().PoolSize
	}
	opts := []scenario.Option{scenario.WithPool(solver.NewPool(size))}
	cleanup := func() { _ = logger.Sync() }
	if *f.db != "" {
		repo, err := store.Open(*f.db)
		if err != nil {
			fail(err)
		}
		opts = append(opts, scenario.WithSaver(repo))
		cleanup = func() {
			_ = repo.Close()
			_ = logger.Sync()
		}
	}
	opts = append(opts, extra...)
	return cfg, scenario.NewRunner(logger, opts...), cleanup
}

func cmdSolve(args []string) {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	common := addCommon(fs)
	_ = fs.Parse(args)

	cfg, runner, cleanup := common.setup()
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := runner.RunSingle(ctx, cfg)
	if err != nil {
		cleanup()
		fail(err)
	}

	fmt.Print(report.Summary(out.ReportInput(cfg)))
	for _, b := range out.Baselines {
		fmt.Printf("Baseline %-10s net revenue=%.2f uplift=%.2f\n", b.Strategy, b.NetRevenue, b.Uplift)
	}
	for _, f := range out.Files {
		fmt.Printf("Wrote %s\n", f)
	}
}

func cmdSweep(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	common := addCommon(fs)
	variationsPath := fs.String("variations", "", "YAML file with a variations list")
	p2aList := fs.String("p2a", "", "Comma-separated P2A capacities (MW) for a grid sweep")
	techList := fs.String("tech", "", "Comma-separated A2P technologies for a grid sweep")
	workers := fs.Int("workers", 0, "Concurrent scenarios (0 = pool size)")
	_ = fs.Parse(args)

	var variations []scenario.Variation
	switch {
	case *variationsPath != "":
		vs, err := scenario.LoadVariations(*variationsPath)
		if err != nil {
			fail(err)
		}
		variations = vs
	case *p2aList != "" || *techList != "":
		p2a, err := parseFloats(*p2aList)
		if err != nil {
			fail(&model.ConfigurationError{Field: "p2a", Reason: err.Error()})
		}
		var techs []equipment.Technology
		for _, t := range splitList(*techList) {
			techs = append(techs, equipment.Technology(t))
		}
		variations = scenario.Grid(p2a, techs)
	default:
		fmt.Println("--variations or --p2a/--tech is required")
		os.Exit(2)
	}

	cfg, runner, cleanup := common.setup(scenario.WithWorkers(*workers))
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := runner.Sweep(ctx, cfg, variations)
	if err != nil {
		cleanup()
		fail(err)
	}

	ranked := analysis.RankByNetRevenue(scenario.Schedules(results))
	fmt.Printf("%-4s %-36s %-14s %-12s %-12s %-10s\n", "rank", "scenario", "net revenue", "energy in", "energy out", "spread")
	for i, r := range ranked {
		fmt.Printf(
			"%-4d %-36s %-14.2f %-12.1f %-12.1f %-10.2f\n",
			i+1,
			r.Scenario,
			r.Totals.NetRevenue,
			r.Totals.EnergyInMWh,
			r.Totals.EnergyOutMWh,
			r.CaptureSpread,
		)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("FAILED %-36s %v\n", r.Name, r.Err)
		}
	}
}

func cmdCompareTech(args []string) {
	fs := flag.NewFlagSet("compare-tech", flag.ExitOnError)
	p2a := fs.Float64("p2a", 100, "P2A capacity (MW)")
	storage := fs.Float64("storage", 5000, "Tank capacity (t NH3)")
	_ = fs.Parse(args)

	rows, err := scenario.CompareTechnologies(*p2a, *storage)
	if err != nil {
		fail(err)
	}
	fmt.Printf("%-28s %-10s %-10s %-16s %-16s\n", "technology", "eff", "rte", "a2p capex", "total capex")
	for _, r := range rows {
		fmt.Printf(
			"%-28s %-10.1f %-10.1f £%-15.0f £%-15.0f\n",
			r.Name,
			r.Efficiency*100,
			r.RoundTripEfficiency*100,
			r.A2PCapex,
			r.TotalCapex,
		)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, p := range splitList(s) {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}
