package system

import (
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
)

// Plant describes the standard ammonia battery built from the catalogue:
// one P2A chain, one tank, one A2P generator.
type Plant struct {
	Name          string               `yaml:"name" json:"name"`
	P2AMW         float64              `yaml:"p2a_capacity_mw" json:"p2a_capacity_mw"`
	StorageTonnes float64              `yaml:"storage_capacity_t" json:"storage_capacity_t"`
	A2PMW         float64              `yaml:"a2p_capacity_mw" json:"a2p_capacity_mw"`
	Technology    equipment.Technology `yaml:"a2p_technology" json:"a2p_technology"`
	MinLevel      float64              `yaml:"min_level" json:"min_level"`
	P2A           equipment.P2AOptions `yaml:"p2a" json:"p2a"`
	A2P           equipment.A2POptions `yaml:"a2p" json:"a2p"`
	// GridLimitMW caps both import and export when set.
	GridLimitMW float64 `yaml:"grid_limit_mw" json:"grid_limit_mw"`
}

// AmmoniaBattery is a composed catalogue plant with handles on its units.
type AmmoniaBattery struct {
	*System
	P2A        *equipment.Chain
	Tank       *equipment.Basic
	A2P        *equipment.Generator
	Technology equipment.TechnologyInfo
}

// NewAmmoniaBattery sizes and composes the catalogue plant.
func NewAmmoniaBattery(p Plant) (*AmmoniaBattery, error) {
	if p.Name == "" {
		p.Name = "ammonia_battery"
	}
	if p.Technology == "" {
		p.Technology = equipment.DirectCombustion
	}
	info, err := equipment.LookupTechnology(p.Technology)
	if err != nil {
		return nil, err
	}
	opts := p.P2A
	if opts.ElectrolyserEnergy == 0 && opts.ElectrolyserUnitCapex == 0 {
		def := equipment.DefaultP2AOptions()
		opts.ElectrolyserEnergy = def.ElectrolyserEnergy
		opts.ElectrolyserUnitCapex = def.ElectrolyserUnitCapex
	}
	if opts.StackHours == 0 {
		opts.StackHours = info.StackHours
	}

	p2a, err := equipment.PowerToAmmonia(p.Name+"_p2a", p.P2AMW, opts)
	if err != nil {
		return nil, err
	}
	tank, err := equipment.Tank(p.Name+"_storage", p.StorageTonnes, p.MinLevel)
	if err != nil {
		return nil, err
	}
	a2p, err := equipment.AmmoniaToPower(p.Name+"_a2p", p.A2PMW, p.Technology, p.A2P)
	if err != nil {
		return nil, err
	}
	if p.GridLimitMW < 0 {
		return nil, &model.ConfigurationError{Field: "grid_limit_mw", Reason: "must be >= 0"}
	}

	sys, err := Compose(Spec{
		Name:             p.Name,
		Charging:         []equipment.Unit{p2a},
		Discharging:      []equipment.Unit{a2p},
		Storage:          []equipment.Unit{tank},
		ChargingLimit:    p.GridLimitMW,
		DischargingLimit: p.GridLimitMW,
		ConversionFactor: equipment.TonnesPerMWh,
	})
	if err != nil {
		return nil, err
	}
	return &AmmoniaBattery{System: sys, P2A: p2a, Tank: tank, A2P: a2p, Technology: info}, nil
}
