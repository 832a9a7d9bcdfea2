package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/model"
)

func period(i int, start time.Time, price, curtailment, charge, discharge, levelEnd, net float64) model.PeriodResult {
	s := start.Add(time.Duration(i) * time.Hour)
	return model.PeriodResult{
		Index:        i,
		Start:        s,
		End:          s.Add(time.Hour),
		Price:        price,
		Curtailment:  curtailment,
		Action:       model.ActionFromFlows(charge, discharge),
		ChargeMW:     charge,
		DischargeMW:  discharge,
		EnergyInMWh:  charge,
		EnergyOutMWh: discharge,
		LevelEnd:     levelEnd,
		NetRevenue:   net,
	}
}

// testSchedule: charge at -60 in curtailment, idle, discharge at 120, charge
// again at -5. Hourly periods in January, tank of 10.
func testSchedule(t *testing.T, name string) *model.Schedule {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	periods := []model.PeriodResult{
		period(0, start, -60, 10, 5, 0, 5, 300),
		period(1, start, 20, 4, 0, 0, 5, 0),
		period(2, start, 120, 2, 0, 3, 0, 360),
		period(3, start, -5, 0, 4, 0, 3, 20),
	}
	s, err := model.NewSchedule(name, 1, "MWh", periods, []float64{0, 5, 5, 0, 3}, model.SolveMetadata{Status: "optimal"})
	require.NoError(t, err)
	return s
}

func TestComputePriceStats(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts, err := model.NewTimeSeries(start, 0.5, []float64{120, -60, 20, -5}, []float64{0, 0, 0, 0})
	require.NoError(t, err)

	p := ComputePriceStats(ts)
	assert.Equal(t, 4, p.Count)
	assert.Equal(t, start, p.Start)
	assert.Equal(t, start.Add(2*time.Hour), p.End)
	assert.Equal(t, -60.0, p.Min)
	assert.Equal(t, 120.0, p.Max)
	assert.InDelta(t, 18.75, p.Mean, 1e-12)
	assert.InDelta(t, -51.75, p.P05, 1e-12)
	assert.InDelta(t, 7.5, p.P50, 1e-12)
	assert.InDelta(t, p.P95-p.P05, p.SpreadP95P05, 1e-12)
	assert.InDelta(t, 1, p.NegativeHours, 1e-12)

	assert.Zero(t, ComputePriceStats(model.TimeSeries{}).Count)
}

func TestPercentileSorted(t *testing.T) {
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{1, 5},
		{0.5, 3},
		{0.25, 2},
		{0.1, 1.4},
	}
	vals := []float64{1, 2, 3, 4, 5}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, percentileSorted(vals, tt.q), 1e-12)
	}
	assert.Zero(t, percentileSorted(nil, 0.5))
}

func TestAnalyzeCurtailment(t *testing.T) {
	a := AnalyzeCurtailment(testSchedule(t, "c"))

	assert.InDelta(t, 4, a.Time.TotalHours, 1e-12)
	assert.InDelta(t, 3, a.Time.CurtailmentHours, 1e-12)
	assert.InDelta(t, 1, a.Time.ChargingHours, 1e-12)
	assert.InDelta(t, 1, a.Time.DischargingHours, 1e-12)
	assert.InDelta(t, 1, a.Time.IdleHours, 1e-12)
	assert.InDelta(t, 100.0/3, a.Time.PctCharging, 1e-9)

	assert.InDelta(t, 16, a.Energy.TotalMWh, 1e-12)
	assert.InDelta(t, 10, a.Energy.DuringChargingMWh, 1e-12)
	assert.InDelta(t, 2, a.Energy.DuringDischargingMWh, 1e-12)
	assert.InDelta(t, 4, a.Energy.DuringIdleMWh, 1e-12)
	assert.InDelta(t, 62.5, a.Energy.PctDuringCharging, 1e-12)
	assert.InDelta(t, 12.5, a.Energy.PctDuringDischarging, 1e-12)

	assert.InDelta(t, 5, a.Interaction.ChargedMWh, 1e-12)
	assert.InDelta(t, 3, a.Interaction.DischargedMWh, 1e-12)
	assert.InDelta(t, 50, a.Interaction.CapturePct, 1e-12)
	assert.InDelta(t, 3, a.Interaction.AdditionalExcessMWh, 1e-12)

	assert.Equal(t, 3, a.Summary.Periods)
	assert.Equal(t, 1, a.Summary.PeriodsWithCharging)
	assert.Equal(t, 1, a.Summary.PeriodsWithDischarging)
	assert.InDelta(t, 0.3125, a.Summary.CaptureRatio, 1e-12)
	assert.InDelta(t, 0.1875, a.Summary.ExcessContribution, 1e-12)
}

func TestAnalyzeCurtailmentWithoutCurtailment(t *testing.T) {
	periods := []model.PeriodResult{{Price: 10, ChargeMW: 1}}
	s, err := model.NewSchedule("none", 1, "MWh", periods, []float64{0, 1}, model.SolveMetadata{})
	require.NoError(t, err)

	a := AnalyzeCurtailment(s)
	assert.Zero(t, a.Summary.Periods)
	assert.Zero(t, a.Time.PctCharging)
	assert.Zero(t, a.Summary.CaptureRatio)
}

func TestSummarizeOperation(t *testing.T) {
	plant := Plant{ChargeMW: 10, DischargeMW: 5, TankCapacity: 10, YearHours: 8, LifetimeYears: 10, StackHours: 20}
	o := SummarizeOperation(testSchedule(t, "o"), plant)

	assert.InDelta(t, 4, o.AnnualChargingHours, 1e-12)
	assert.InDelta(t, 2, o.AnnualDischargingHours, 1e-12)
	assert.InDelta(t, 0.225, o.ChargingUtilisation, 1e-12)
	assert.InDelta(t, 0.15, o.DischargingUtilisation, 1e-12)
	assert.Equal(t, 2, o.ElectrolyserReplacements)

	plant.StackHours = 0
	assert.Zero(t, SummarizeOperation(testSchedule(t, "o"), plant).ElectrolyserReplacements)
}

func TestAnalyzeTime(t *testing.T) {
	m := AnalyzeTime(testSchedule(t, "t"))

	require.Len(t, m.Monthly, 1)
	assert.Equal(t, time.January, m.Monthly[0].Month)
	assert.InDelta(t, 2, m.Monthly[0].ChargingHours, 1e-12)
	assert.InDelta(t, 1, m.Monthly[0].DischargingHours, 1e-12)
	assert.InDelta(t, 1, m.Monthly[0].IdleHours, 1e-12)

	assert.Equal(t, 2, m.Transitions.ChargingCycles)
	assert.Equal(t, 1, m.Transitions.DischargingCycles)

	require.Len(t, m.HourlyBySeason, 4)
	first := m.HourlyBySeason[0]
	assert.Equal(t, Winter, first.Season)
	assert.Equal(t, 0, first.Hour)
	assert.InDelta(t, 5, first.AvgChargeMW, 1e-12)
	assert.InDelta(t, 1, first.ChargingFrequency, 1e-12)
	assert.Zero(t, first.DischargingFrequency)
}

func TestSeasonOf(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.January, Winter},
		{time.March, Winter},
		{time.April, Spring},
		{time.July, Summer},
		{time.September, Summer},
		{time.December, Fall},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeasonOf(tt.month), tt.month.String())
	}
}

func TestAnalyzeStorage(t *testing.T) {
	u := AnalyzeStorage(testSchedule(t, "s"), 10)

	assert.InDelta(t, 5, u.MaxLevel, 1e-12)
	assert.InDelta(t, 0.325, u.Average, 1e-12)

	require.Len(t, u.Bins, 5)
	hours := make([]float64, len(u.Bins))
	for i, b := range u.Bins {
		hours[i] = b.Hours
	}
	assert.Equal(t, []float64{1, 1, 2, 0, 0}, hours)
	assert.InDelta(t, 50, u.Bins[2].Percent, 1e-12)
	assert.Equal(t, "0.4-0.6", u.Bins[2].Label)

	require.Len(t, u.Monthly, 1)
	assert.InDelta(t, 0.325, u.Monthly[0].Avg, 1e-12)
	assert.InDelta(t, 0, u.Monthly[0].Min, 1e-12)
	assert.InDelta(t, 0.5, u.Monthly[0].Max, 1e-12)

	empty := AnalyzeStorage(testSchedule(t, "s"), 0)
	assert.Nil(t, empty.Bins)
	assert.InDelta(t, 5, empty.MaxLevel, 1e-12)
}

func TestAnalyzePriceResponse(t *testing.T) {
	bins := AnalyzePriceResponse(testSchedule(t, "p"))
	require.Len(t, bins, 8)

	byLabel := map[string]PriceBin{}
	for _, b := range bins {
		byLabel[b.Label] = b
	}
	assert.Contains(t, byLabel, ">200")
	assert.Contains(t, byLabel, "-50 to -10")

	assert.InDelta(t, 1, byLabel["<-50"].Hours, 1e-12)
	assert.InDelta(t, 1, byLabel["<-50"].ChargingHours, 1e-12)
	assert.InDelta(t, 1, byLabel["-10 to 0"].ChargingHours, 1e-12)
	assert.InDelta(t, 1, byLabel["0 to 50"].Hours, 1e-12)
	assert.Zero(t, byLabel["0 to 50"].ChargingHours)
	assert.InDelta(t, 1, byLabel["100 to 150"].DischargingHours, 1e-12)
	assert.Zero(t, byLabel[">200"].Hours)
}

func TestPriceBinsEncodeOpenBoundsAsNull(t *testing.T) {
	raw, err := json.Marshal(AnalyzePriceResponse(testSchedule(t, "p")))
	require.NoError(t, err)

	var bins []map[string]any
	require.NoError(t, json.Unmarshal(raw, &bins))
	require.Len(t, bins, 8)
	assert.Nil(t, bins[0]["lower"])
	assert.Equal(t, -50.0, bins[0]["upper"])
	assert.Equal(t, 1.0, bins[0]["hours"])
	assert.Equal(t, "<-50", bins[0]["label"])
	assert.Equal(t, 200.0, bins[7]["lower"])
	assert.Nil(t, bins[7]["upper"])
	assert.Equal(t, 0.0, bins[3]["lower"])
	assert.Equal(t, 50.0, bins[3]["upper"])
}

func TestAnalyze(t *testing.T) {
	plant := Plant{ChargeMW: 10, DischargeMW: 5, TankCapacity: 10, YearHours: 8, LifetimeYears: 10, StackHours: 20}
	r := Analyze(testSchedule(t, "a"), plant)

	assert.InDelta(t, 680, r.Summary.TotalProfit, 1e-12)
	assert.InDelta(t, -32.5, r.Summary.AvgChargingPrice, 1e-12)
	assert.InDelta(t, 120, r.Summary.AvgDischargingPrice, 1e-12)
	assert.InDelta(t, 2, r.Summary.TotalChargingHours, 1e-12)
	assert.InDelta(t, 1, r.Summary.TotalDischargingHours, 1e-12)
	assert.Equal(t, 2, r.Summary.TotalCycles)
	assert.InDelta(t, 50, r.Summary.MaxStoragePct, 1e-12)
	assert.Equal(t, 4, r.Prices.Count)
	assert.Len(t, r.PriceBins, 8)

	_, err := json.Marshal(r)
	require.NoError(t, err)
}

func TestRankByNetRevenue(t *testing.T) {
	low, err := model.NewSchedule("low", 1, "MWh",
		[]model.PeriodResult{{Price: 10, NetRevenue: 100}}, []float64{0, 0}, model.SolveMetadata{})
	require.NoError(t, err)
	tie, err := model.NewSchedule("a-tie", 1, "MWh",
		[]model.PeriodResult{{Price: 10, NetRevenue: 100}}, []float64{0, 0}, model.SolveMetadata{})
	require.NoError(t, err)

	ranked := RankByNetRevenue([]*model.Schedule{low, testSchedule(t, "high"), nil, tie})
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].Scenario)
	assert.Equal(t, "a-tie", ranked[1].Scenario)
	assert.Equal(t, "low", ranked[2].Scenario)
	assert.InDelta(t, 152.5, ranked[0].CaptureSpread, 1e-12)
	assert.Zero(t, ranked[2].CaptureSpread)
}
