package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

func testInput(t *testing.T) Input {
	t.Helper()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return start.Add(time.Duration(h) * time.Hour) }
	periods := []model.PeriodResult{
		{Index: 0, Start: at(0), End: at(1), Price: -20, Curtailment: 40, Action: model.ActionCharging, ChargeMW: 10, LevelStart: 0, LevelEnd: 4, NetRevenue: 200},
		{Index: 1, Start: at(1), End: at(2), Price: 30, Action: model.ActionIdle, LevelStart: 4, LevelEnd: 4},
		{Index: 2, Start: at(2), End: at(3), Price: 150, Action: model.ActionDischarging, DischargeMW: 5, LevelStart: 4, LevelEnd: 0, NetRevenue: 750},
	}
	s, err := model.NewSchedule("base_case", 1, "t", periods, []float64{0, 4, 4, 0}, model.SolveMetadata{
		Status: "optimal", Backend: "simplex", Objective: 950, Attempts: 1, SolveTime: 12 * time.Millisecond,
	})
	require.NoError(t, err)

	params := system.Parameters{
		MaxCharge: 10, MaxDischarge: 5, EtaCharge: 0.5, EtaDischarge: 0.4,
		TankCapacity: 10, StoragePerMWh: 0.2, StorageUnit: "t",
	}
	var econ economics.Report
	econ.System.NetAnnualProfit = 1234567
	econ.System.TotalCapex = 9876543
	econ.LCOA.PerTonne = 612.4
	econ.LCOE.PerMWh = math.Inf(1)
	econ.LCOS.PerMWh = 88

	return Input{
		Scenario:      "base_case",
		SystemName:    "reference",
		Technology:    "direct_combustion",
		Params:        params,
		LifetimeYears: 25,
		Schedule:      s,
		Economics:     econ,
		Analysis:      analysis.Analyze(s, analysis.Plant{ChargeMW: 10, DischargeMW: 5, TankCapacity: 10, YearHours: 8784, LifetimeYears: 25}),
	}
}

func TestSummary(t *testing.T) {
	text := Summary(testInput(t))

	assert.True(t, strings.HasPrefix(text, "AMMONIA BATTERY DISPATCH SUMMARY: base_case\n"))
	assert.Contains(t, text, "A2P Technology:           direct_combustion")
	assert.Contains(t, text, "Round-Trip Efficiency:    20.00%")
	assert.Contains(t, text, "Net Annual Profit:         £1,234,567")
	assert.Contains(t, text, "Total System CAPEX:        £9,876,543")
	assert.Contains(t, text, "LCOA: £612/tonne NH3")
	assert.Contains(t, text, "LCOE: n/a/MWh")
	assert.Contains(t, text, "Total curtailed energy:            40 MWh")
	assert.Contains(t, text, "HIGH CURTAILMENT CAPTURE")
	assert.Contains(t, text, "MINIMAL EXCESS ENERGY")
	assert.True(t, strings.HasSuffix(text, rule+"\n"))
}

func TestWriteScheduleCSV(t *testing.T) {
	in := testInput(t)
	var buf bytes.Buffer
	require.NoError(t, WriteScheduleCSV(&buf, in.Schedule))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	header := rows[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, "index", header[0])
	assert.Equal(t, "2023-01-01T00:00:00Z", rows[1][col("interval_start")])
	assert.Equal(t, "CHARGING", rows[1][col("action")])
	assert.Equal(t, "DISCHARGING", rows[3][col("action")])
	assert.Equal(t, "950.000000", rows[3][col("cum_net_revenue")])
}

func TestWritePlot(t *testing.T) {
	in := testInput(t)
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, in.Schedule, "base_case"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	assert.Error(t, WritePlot(&buf, nil, "none"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testInput(t)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "base_case", got["scenario"])
	solve := got["solve"].(map[string]any)
	assert.Equal(t, "optimal", solve["status"])
	lcoe := got["economics"].(map[string]any)["lcoe"].(map[string]any)
	assert.Nil(t, lcoe["lcoe_per_mwh"])
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files, err := Write(dir, testInput(t), Options{CSV: true, Plot: true, Summary: true, JSON: true})
	require.NoError(t, err)
	require.Len(t, files, 4)
	for _, name := range []string{ScheduleFile, PlotFile, SummaryFile, ResultFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	files, err = Write(filepath.Join(t.TempDir(), "some"), testInput(t), Options{Summary: true})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = Write(dir, Input{Scenario: "empty"}, Options{CSV: true})
	assert.Error(t, err)
}
