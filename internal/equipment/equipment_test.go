package equipment

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/model"
)

func validSpec() Spec {
	return Spec{
		Name: "elec",
		Role: RoleCharging,
		Bounds: Bounds{
			Quantity:   Power,
			Capacity:   20,
			Efficiency: 0.9,
			RampLimit:  5,
		},
		Costs: CostTerms{Capex: 1e6, FixedOM: 2e4, VariableOM: 1.5},
	}
}

func TestNewRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		field  string
	}{
		{"zero capacity", func(s *Spec) { s.Bounds.Capacity = 0 }, "elec.capacity"},
		{"negative capacity", func(s *Spec) { s.Bounds.Capacity = -1 }, "elec.capacity"},
		{"zero efficiency", func(s *Spec) { s.Bounds.Efficiency = 0 }, "elec.efficiency"},
		{"efficiency above one", func(s *Spec) { s.Bounds.Efficiency = 1.01 }, "elec.efficiency"},
		{"negative ramp", func(s *Spec) { s.Bounds.RampLimit = -0.1 }, "elec.ramp_limit"},
		{"min load of one", func(s *Spec) { s.Bounds.MinLoad = 1 }, "elec.min_load"},
		{"unknown role", func(s *Spec) { s.Role = "pump" }, "elec.role"},
		{"storage quantity on charger", func(s *Spec) { s.Bounds.Quantity = Mass }, "elec.quantity"},
		{"negative capex", func(s *Spec) { s.Costs.Capex = -1 }, "elec.costs"},
		{"heel on charger", func(s *Spec) { s.Bounds.MinLevel = 0.1 }, "elec.min_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			u, err := New(s)
			require.Error(t, err)
			assert.Nil(t, u)

			var cfgErr *model.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewExposesBoundsAndCosts(t *testing.T) {
	u, err := New(validSpec())
	require.NoError(t, err)

	assert.Equal(t, "elec", u.Name())
	assert.Equal(t, RoleCharging, u.Role())
	assert.Equal(t, 20.0, u.Bounds().Capacity)
	assert.Equal(t, 0.9, u.Bounds().Efficiency)
	assert.Equal(t, 5.0, u.Bounds().RampLimit)
	assert.Equal(t, 1.5, u.Costs().VariableOM)
}

func TestEfficiencyOfOneIsAccepted(t *testing.T) {
	s := validSpec()
	s.Bounds.Efficiency = 1
	s.Bounds.RampLimit = 0
	_, err := New(s)
	assert.NoError(t, err)
}

func TestAdjustCEPCI(t *testing.T) {
	got, err := AdjustCEPCI(100, 2010, 2024)
	require.NoError(t, err)
	assert.InDelta(t, 100*799.1/550.8, got, 1e-9)

	_, err = AdjustCEPCI(100, 1990, 2024)
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestToGBP(t *testing.T) {
	assert.Equal(t, 75.0, ToGBP(100, USD))
	assert.Equal(t, 85.0, ToGBP(100, EUR))
	assert.Equal(t, 100.0, ToGBP(100, GBP))
}

func TestPowerToAmmoniaChain(t *testing.T) {
	c, err := PowerToAmmonia("p2a", 100, DefaultP2AOptions())
	require.NoError(t, err)

	total := 35.3 + 0.74 + 0.763 + 0.587 + 0.294
	assert.InDelta(t, total, c.SpecificEnergy(), 1e-9)
	assert.InDelta(t, 18.6/total, c.Bounds().Efficiency, 1e-9)
	assert.InDelta(t, 100*24*3600/total/1000, c.DailyProduction(), 1e-9)

	stages := c.Stages()
	require.Len(t, stages, 3)
	assert.InDelta(t, 35.3/total*100, stages[0].SizedAt, 1e-9)

	costs := c.Costs()
	assert.InDelta(t, stages[0].Capex+stages[1].Capex+stages[2].Capex, costs.Capex, 1e-6)
	assert.InDelta(t, 0.02*costs.Capex, costs.FixedOM, 1e-6)
	assert.InDelta(t, 0.6*c.ElectrolyserCapex(), costs.ReplaceableCapex, 1e-6)
	assert.Equal(t, 80000.0, costs.ReplacementHours)

	// Electrolyser in 2024 money: stack + BoP scaled around the 10 MW reference.
	mw := stages[0].SizedAt
	unit := 750000 * 0.75
	want := unit*0.6*mw + unit*0.4*mw*math.Pow(mw/10, -0.4)
	assert.InDelta(t, want, c.ElectrolyserCapex(), 1e-3)

	// Returned stages are copies.
	stages[0].Capex = 0
	assert.NotZero(t, c.Stages()[0].Capex)
}

func TestPowerToAmmoniaRejectsZeroCapacity(t *testing.T) {
	_, err := PowerToAmmonia("p2a", 0, DefaultP2AOptions())
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestTankScaling(t *testing.T) {
	big, err := Tank("tank", 25000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 39e6*0.75, big.Costs().Capex, 1e-6)
	assert.Equal(t, Mass, big.Bounds().Quantity)

	small, err := Tank("tank", 5000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 39e6*math.Pow(0.2, 0.7)*0.75, small.Costs().Capex, 1e-6)

	_, err = Tank("tank", 0, 0)
	assert.Error(t, err)
}

func TestAmmoniaToPowerTechnologies(t *testing.T) {
	direct, err := AmmoniaToPower("a2p", 50, DirectCombustion, A2POptions{})
	require.NoError(t, err)
	blend, err := AmmoniaToPower("a2p", 50, BlendCombustion, A2POptions{})
	require.NoError(t, err)
	h2, err := AmmoniaToPower("a2p", 50, H2Combustion, A2POptions{})
	require.NoError(t, err)

	assert.Zero(t, direct.CrackerCapex)
	assert.Greater(t, blend.CrackerCapex, 0.0)
	assert.Greater(t, h2.CrackerCapex, blend.CrackerCapex)
	assert.InDelta(t, direct.TurbineCapex, h2.TurbineCapex, 1e-6)

	assert.Equal(t, 0.60, direct.Bounds().Efficiency)
	assert.Equal(t, 0.525, h2.Bounds().Efficiency)
	assert.InDelta(t, 50/0.6*3600/18.6, direct.AmmoniaFlowKgH, 1e-9)
	assert.InDelta(t, direct.AmmoniaFlowKgH*24/1000, direct.DailyConsumption(), 1e-9)

	_, err = AmmoniaToPower("a2p", 50, "fuel_cell", A2POptions{})
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestTonnesPerMWh(t *testing.T) {
	assert.InDelta(t, 0.193548, TonnesPerMWh, 1e-6)
	assert.InDelta(t, 1000/TonnesPerMWh, TankEnergyMWh(1000), 1e-9)
}
