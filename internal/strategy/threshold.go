package strategy

import "fmt"

// ThresholdParams charges when power is cheap (or curtailed) and discharges
// when it is dear. Each rule runs at full rated power.
type ThresholdParams struct {
	ChargeBelow    float64 `yaml:"charge_below" json:"charge_below"`
	DischargeAbove float64 `yaml:"discharge_above" json:"discharge_above"`
	// ChargeOnCurtailment also charges whenever curtailment is available,
	// limited to the curtailed power.
	ChargeOnCurtailment bool `yaml:"charge_on_curtailment" json:"charge_on_curtailment"`
}

type ThresholdStrategy struct {
	params ThresholdParams
}

func NewThreshold(p ThresholdParams) (*ThresholdStrategy, error) {
	if p.DischargeAbove <= p.ChargeBelow {
		return nil, fmt.Errorf("discharge_above (%.2f) must exceed charge_below (%.2f)", p.DischargeAbove, p.ChargeBelow)
	}
	return &ThresholdStrategy{params: p}, nil
}

func (s *ThresholdStrategy) Name() string { return "threshold" }

func (s *ThresholdStrategy) Decide(ctx Context) Decision {
	it := ctx.Interval
	switch {
	case it.Price <= s.params.ChargeBelow:
		return Decision{ChargeMW: ctx.Params.MaxCharge}
	case it.Price >= s.params.DischargeAbove:
		return Decision{DischargeMW: ctx.Params.MaxDischarge}
	case s.params.ChargeOnCurtailment && it.Curtailment > 0:
		return Decision{ChargeMW: it.Curtailment}
	}
	return Decision{}
}
