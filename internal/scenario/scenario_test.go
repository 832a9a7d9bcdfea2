package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/config"
	"ammonia-battery/internal/dispatch"
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/report"
	"ammonia-battery/internal/store"
)

const scenarioYAML = `
name: toy
data_file: prices.csv
system:
  name: toy
  units:
    charging:
      - name: electrolyser
        bounds: {quantity: MW, capacity: 10, efficiency: 0.8}
    discharging:
      - name: turbine
        bounds: {quantity: MW, capacity: 10, efficiency: 0.5}
    storage:
      - name: tank
        bounds: {quantity: MWh, capacity: 40, efficiency: 1}
solver:
  backend: simplex
  timeout: 30s
baselines:
  threshold:
    charge_below: 20
    discharge_above: 70
output:
  dir: %s
`

// writeScenario lays out an hourly price file and a scenario config in a
// temp dir and loads it.
func writeScenario(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	prices := []float64{10, 80, 5, 90, 10, 80, 5, 90}
	var b strings.Builder
	b.WriteString("DATETIME,PRICE,CURTAILMENT\n")
	start := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		fmt.Fprintf(&b, "%s,%g,0\n", start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"), p)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(b.String()), 0o644))

	out := filepath.Join(dir, "results")
	path := filepath.Join(dir, "toy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(scenarioYAML, out)), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

type recordingSaver struct {
	mu   sync.Mutex
	runs []*store.Run
}

func (s *recordingSaver) SaveRun(run *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func TestRunSingle(t *testing.T) {
	cfg := writeScenario(t)
	cache := store.NewResultCache(time.Hour)
	saver := &recordingSaver{}
	r := NewRunner(nil, WithCache(cache), WithSaver(saver))

	out, err := r.RunSingle(context.Background(), cfg)
	require.NoError(t, err)

	s := out.Run.Schedule
	assert.Equal(t, 8, s.Len())
	assert.Equal(t, "toy", s.Scenario())
	assert.Positive(t, s.Totals().NetRevenue)
	assert.InDelta(t, s.InitialLevel(), s.FinalLevel(), 1e-6)
	assert.Equal(t, "MWh", out.Params.StorageUnit)

	cached, ok := cache.Get(out.Run.ID)
	require.True(t, ok)
	assert.Same(t, out.Run, cached)
	require.Len(t, saver.runs, 1)
	assert.Equal(t, out.Run.ID, saver.runs[0].ID)

	require.Len(t, out.Baselines, 1)
	assert.Equal(t, "threshold", out.Baselines[0].Strategy)
	assert.GreaterOrEqual(t, out.Baselines[0].Uplift, -1e-6)

	require.Len(t, out.Files, 4)
	for _, name := range []string{report.ScheduleFile, report.PlotFile, report.SummaryFile, report.ResultFile} {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, name))
		assert.NoError(t, err, name)
	}

	in := out.ReportInput(cfg)
	assert.Equal(t, "toy", in.SystemName)
	assert.Empty(t, in.Technology)
}

func TestRunSingleSkipsOutputsWhenDisabled(t *testing.T) {
	cfg := writeScenario(t)
	cfg.Output = config.OutputConfig{Dir: cfg.Output.Dir}

	out, err := NewRunner(nil).RunSingle(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, out.Files)
	_, err = os.Stat(cfg.Output.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunSingleRejectsInvalidConfig(t *testing.T) {
	cfg := writeScenario(t)
	cfg.Dispatch.Objective = "profit"

	_, err := NewRunner(nil).RunSingle(context.Background(), cfg)
	var ce *model.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dispatch.objective", ce.Field)
}

func TestSweep(t *testing.T) {
	cfg := writeScenario(t)
	cfg.Output.Plot = false

	coupled := cfg.Dispatch
	coupled.CurtailmentCoupling = true
	broken := cfg.Dispatch
	broken.Terminal = "sometimes"
	variations := []Variation{
		{Name: "free"},
		{Name: "coupled", Dispatch: &coupled},
		{Name: "broken", Dispatch: &broken},
	}

	r := NewRunner(nil, WithWorkers(2))
	results, err := r.Sweep(context.Background(), cfg, variations)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "toy/free", results[0].Config.Name)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	var ce *model.ConfigurationError
	assert.ErrorAs(t, results[2].Err, &ce)

	// No curtailment means a coupled plant can never charge.
	assert.InDelta(t, 0, results[1].Outcome.Run.Schedule.Totals().NetRevenue, 1e-6)
	assert.Positive(t, results[0].Outcome.Run.Schedule.Totals().NetRevenue)

	_, err = os.Stat(filepath.Join(cfg.Output.Dir, "free", report.SummaryFile))
	assert.NoError(t, err)

	ranked := analysis.RankByNetRevenue(Schedules(results))
	require.Len(t, ranked, 2)
	assert.Equal(t, "toy/free", ranked[0].Scenario)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	cfg := writeScenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil).Sweep(ctx, cfg, []Variation{{Name: "a"}, {Name: "b"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVariationApply(t *testing.T) {
	base := config.Default()
	base.Name = "base"
	base.Output.Dir = "results"

	var v Variation
	v.Name = "big"
	v.System.Plant.P2AMW = 250
	pol := dispatch.DefaultPolicy()
	pol.Terminal = dispatch.TerminalFree
	v.Dispatch = &pol

	c := v.Apply(base)
	assert.Equal(t, "base/big", c.Name)
	assert.Equal(t, 250.0, c.System.Plant.P2AMW)
	assert.Equal(t, base.System.Plant.A2PMW, c.System.Plant.A2PMW)
	assert.Equal(t, dispatch.TerminalFree, c.Dispatch.Terminal)
	assert.Equal(t, filepath.Join("results", "big"), c.Output.Dir)
	assert.Equal(t, 100.0, base.System.Plant.P2AMW)
}

func TestGrid(t *testing.T) {
	vs := Grid([]float64{50, 100}, []equipment.Technology{equipment.DirectCombustion, equipment.H2Combustion})
	require.Len(t, vs, 4)
	assert.Equal(t, "p2a_50_direct_combustion", vs[0].Name)
	assert.Equal(t, "p2a_100_h2_combustion", vs[3].Name)
	assert.Equal(t, 100.0, vs[3].System.Plant.P2AMW)

	only := Grid(nil, []equipment.Technology{equipment.BlendCombustion})
	require.Len(t, only, 1)
	assert.Equal(t, "base_blend_combustion", only[0].Name)
	assert.Zero(t, only[0].System.Plant.P2AMW)
}

func TestLoadVariations(t *testing.T) {
	vs, err := LoadVariations(filepath.Join("..", "..", "configs", "sweeps", "capacity.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, vs)
	assert.Equal(t, "p2a_50", vs[0].Name)
	assert.Equal(t, 50.0, vs[0].System.Plant.P2AMW)

	_, err = LoadVariations(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCompareTechnologies(t *testing.T) {
	rows, err := CompareTechnologies(100, 5000)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, equipment.DirectCombustion, rows[0].Technology)
	assert.Equal(t, "Direct NH3 Combustion", rows[0].Name)
	assert.InDelta(t, 0.60, rows[0].Efficiency, 1e-12)
	assert.InDelta(t, 0.525, rows[2].Efficiency, 1e-12)
	for _, r := range rows {
		assert.Positive(t, r.A2PCapex, r.Name)
		assert.Greater(t, r.TotalCapex, r.A2PCapex, r.Name)
		assert.Less(t, r.RoundTripEfficiency, r.Efficiency, r.Name)
	}

	_, err = CompareTechnologies(0, 5000)
	assert.Error(t, err)
}
