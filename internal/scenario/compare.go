package scenario

import (
	"fmt"

	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/system"
)

// comparisonA2PMW is the generator size every technology is priced at.
const comparisonA2PMW = 100

var technologyNames = map[equipment.Technology]string{
	equipment.DirectCombustion: "Direct NH3 Combustion",
	equipment.BlendCombustion:  "Blend Combustion",
	equipment.H2Combustion:     "H2 Combustion",
}

// TechnologyComparison is one row of the A2P technology table.
type TechnologyComparison struct {
	Technology          equipment.Technology `json:"technology"`
	Name                string               `json:"name"`
	Efficiency          float64              `json:"efficiency"`
	RoundTripEfficiency float64              `json:"round_trip_efficiency"`
	A2PCapex            float64              `json:"a2p_capex"`
	TotalCapex          float64              `json:"total_capex"`
}

// CompareTechnologies prices the catalogue plant once per A2P technology at
// the given P2A size (MW) and tank size (t).
func CompareTechnologies(p2aMW, storageTonnes float64) ([]TechnologyComparison, error) {
	var out []TechnologyComparison
	for _, info := range equipment.Technologies() {
		ab, err := system.NewAmmoniaBattery(system.Plant{
			Name:          fmt.Sprintf("comparison_%s", info.Technology),
			P2AMW:         p2aMW,
			StorageTonnes: storageTonnes,
			A2PMW:         comparisonA2PMW,
			Technology:    info.Technology,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", info.Technology, err)
		}
		costs := ab.Costs()
		out = append(out, TechnologyComparison{
			Technology:          info.Technology,
			Name:                technologyNames[info.Technology],
			Efficiency:          info.Efficiency,
			RoundTripEfficiency: ab.Parameters().RoundTripEfficiency(),
			A2PCapex:            costs.DischargingCapex,
			TotalCapex:          costs.TotalCapex,
		})
	}
	return out, nil
}
