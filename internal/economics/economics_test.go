package economics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

func TestCRFAndPVF(t *testing.T) {
	assert.InDelta(t, 0.085811, CRF(0.07, 25), 1e-6)
	assert.InDelta(t, 11.653583, PVF(0.07, 25), 1e-6)
	assert.InDelta(t, 1, CRF(0.07, 25)*PVF(0.07, 25), 1e-12)
	assert.InDelta(t, 0.1, CRF(0, 10), 1e-12)
	assert.InDelta(t, 10, PVF(0, 10), 1e-12)
}

func TestLevelizedCost(t *testing.T) {
	a := Assumptions{LifetimeYears: 10, DiscountRate: 0, YearHours: 8784}

	tests := []struct {
		name string
		in   Levelized
		want float64
	}{
		{"capex only", Levelized{AnnualOutput: 100, Capex: 1000}, 1},
		{"with fixed cost", Levelized{AnnualOutput: 100, Capex: 1000, AnnualFixed: 50}, 1.5},
		{"with variable cost and replacements", Levelized{AnnualOutput: 100, Capex: 1000, AnnualVariable: 20, ReplacementPV: 300}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, a.LevelizedCost(tt.in), 1e-12)
		})
	}
	assert.True(t, math.IsInf(a.LevelizedCost(Levelized{Capex: 1}), 1))
}

func TestReplacements(t *testing.T) {
	a := Assumptions{LifetimeYears: 25, DiscountRate: 0, YearHours: 8784}
	r := a.Replacements(1000, 0.5, 600, 10000)
	assert.InDelta(t, 2000, r.AnnualHours, 1e-9)
	assert.Equal(t, 5, r.Count)
	assert.InDelta(t, 3000, r.PV, 1e-9)

	a.DiscountRate = 0.07
	r = a.Replacements(1000, 0.5, 600, 10000)
	var want float64
	for k := 1; k <= 5; k++ {
		want += 600 / math.Pow(1.07, float64(5*k))
	}
	assert.InDelta(t, want, r.PV, 1e-9)

	assert.Zero(t, a.Replacements(0, 0.5, 600, 10000).Count)
	assert.Zero(t, a.Replacements(1000, 0, 600, 10000).PV)
}

func TestAssumptions(t *testing.T) {
	d := Assumptions{}.WithDefaults()
	assert.Equal(t, DefaultAssumptions(), d)
	assert.NoError(t, d.Validate())
	assert.InDelta(t, 0.5, d.TimeFraction(4392), 1e-12)

	zeroRate := Assumptions{LifetimeYears: 10}.WithDefaults()
	assert.Equal(t, 0.0, zeroRate.DiscountRate)

	var ce *model.ConfigurationError
	assert.ErrorAs(t, Assumptions{LifetimeYears: 10, DiscountRate: 1.5, YearHours: 1}.Validate(), &ce)
	assert.ErrorAs(t, Assumptions{LifetimeYears: -1, YearHours: 1}.Validate(), &ce)
}

func testSchedule(t *testing.T) *model.Schedule {
	t.Helper()
	periods := []model.PeriodResult{
		{Index: 0, ChargeMW: 10, EnergyInMWh: 10, Stored: 2, ChargingCost: 100, NetRevenue: -100},
		{Index: 1, DischargeMW: 5, EnergyOutMWh: 5, Withdrawn: 2, DischargingRevenue: 300, NetRevenue: 300},
		{Index: 2},
		{Index: 3},
	}
	s, err := model.NewSchedule("econ", 1, "t", periods, []float64{0, 2, 0, 0, 0}, model.SolveMetadata{Status: "optimal"})
	require.NoError(t, err)
	return s
}

func TestEvaluate(t *testing.T) {
	params := system.Parameters{
		StoragePerMWh: equipment.TonnesPerMWh,
		TankCapacity:  10 * equipment.TonnesPerMWh,
		StorageUnit:   "t",
	}
	costs := system.Costs{
		ChargingCapex:    1000,
		StorageCapex:     500,
		DischargingCapex: 300,
		TotalCapex:       1800,
		ChargingOpex:     20,
		StorageOpex:      10,
		DischargingOpex:  6,
		TotalOpex:        36,
		ReplaceableCapex: 600,
		ReplacementHours: 10,
	}
	a := Assumptions{LifetimeYears: 10, DiscountRate: 0, YearHours: 8}

	r, err := Evaluate(testSchedule(t), params, costs, a)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, r.System.TimeFraction, 1e-12)
	assert.Equal(t, 2, r.Replacement.Count)
	assert.InDelta(t, 1200, r.Replacement.PV, 1e-9)

	assert.InDelta(t, 180, r.System.AnnualizedCapex, 1e-9)
	assert.InDelta(t, 400, r.System.AnnualOperatingProfit, 1e-9)
	assert.InDelta(t, 184, r.System.NetAnnualProfit, 1e-9)
	assert.InDelta(t, 3360, r.System.LifetimeCostPV, 1e-9)

	assert.InDelta(t, 4, r.LCOA.AnnualProductionTonnes, 1e-9)
	assert.InDelta(t, 110, r.LCOA.PerTonne, 1e-9)

	assert.InDelta(t, 10, r.LCOE.AnnualGenerationMWh, 1e-9)
	assert.InDelta(t, 440, r.LCOE.AnnualFuelCost, 1e-9)
	assert.InDelta(t, 47.6, r.LCOE.PerMWh, 1e-9)

	assert.InDelta(t, 33.6, r.LCOS.PerMWh, 1e-9)
	assert.InDelta(t, 1, r.LCOS.AnnualCycles, 1e-9)
}

func TestEvaluateIdleSchedule(t *testing.T) {
	s, err := model.NewSchedule("idle", 0.5, "MWh", []model.PeriodResult{{}, {}}, []float64{0, 0, 0}, model.SolveMetadata{})
	require.NoError(t, err)
	params := system.Parameters{StoragePerMWh: 1, TankCapacity: 10}

	r, err := Evaluate(s, params, system.Costs{TotalCapex: 100, ChargingCapex: 100}, DefaultAssumptions())
	require.NoError(t, err)
	assert.True(t, math.IsInf(r.LCOA.PerTonne, 1))
	assert.True(t, math.IsInf(r.LCOS.PerMWh, 1))
	assert.Zero(t, r.LCOE.AnnualFuelCost)
	assert.Zero(t, r.Replacement.Count)

	_, err = Evaluate(nil, params, system.Costs{}, DefaultAssumptions())
	assert.Error(t, err)
}

func TestReportJSONEncodesUnproducedCostsAsNull(t *testing.T) {
	var r Report
	r.LCOA.PerTonne = math.Inf(1)
	r.LCOE.PerMWh = 52.5
	r.LCOS.PerMWh = math.NaN()
	r.LCOS.AnnualCycles = 3

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got["lcoa"]["lcoa_per_tonne"])
	assert.Contains(t, got["lcoa"], "lcoa_per_tonne")
	assert.Equal(t, 52.5, got["lcoe"]["lcoe_per_mwh"])
	assert.Nil(t, got["lcos"]["lcos_per_mwh"])
	assert.Equal(t, 3.0, got["lcos"]["annual_cycles"])
}
