package dispatch

import (
	"fmt"

	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

// Scenario is the immutable input of one engine: the time series, the
// composed system parameters and the modelling policy.
type Scenario struct {
	Name   string
	Series model.TimeSeries
	Params system.Parameters
	Policy Policy
}

func (s Scenario) Validate() error {
	if err := s.Series.Validate(); err != nil {
		return err
	}
	if err := s.Params.Validate(); err != nil {
		return err
	}
	if err := s.Policy.Validate(); err != nil {
		return err
	}
	if s.Policy.Initial.Mode == InitialFixed {
		if lvl := s.Policy.Initial.Fraction * s.Params.TankCapacity; lvl < s.Params.MinLevel {
			return &model.ConfigurationError{
				Field:  "dispatch.initial.fraction",
				Reason: fmt.Sprintf("initial level %.4g is below the tank floor %.4g", lvl, s.Params.MinLevel),
			}
		}
	}
	return nil
}

// infeasible wraps a detail into an InfeasibleScheduleError carrying the
// scenario's shape and policies.
func (s Scenario) infeasible(detail string) *model.InfeasibleScheduleError {
	return &model.InfeasibleScheduleError{
		Scenario:       s.Name,
		Periods:        s.Series.Len(),
		PriceLen:       len(s.Series.Prices()),
		CurtailmentLen: len(s.Series.Curtailment()),
		InitialPolicy:  s.Policy.Initial.String(),
		TerminalPolicy: string(s.Policy.Terminal),
		Detail:         detail,
	}
}

func (s Scenario) describe() string {
	p := s.Params
	return fmt.Sprintf(
		"tank %.4g %s (floor %.4g), charge <= %.4g MW, discharge <= %.4g MW, min charge energy %.4g MWh, coupling %t, exclusion %s",
		p.TankCapacity, p.StorageUnit, p.MinLevel, p.MaxCharge, p.MaxDischarge,
		s.Policy.MinChargeEnergy, s.Policy.CurtailmentCoupling, s.Policy.MutualExclusion,
	)
}
