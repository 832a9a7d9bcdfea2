package analysis

import "ammonia-battery/internal/model"

// CurtailmentTime is how the plant spent the curtailed periods, in hours.
type CurtailmentTime struct {
	TotalHours       float64 `json:"total_hours"`
	CurtailmentHours float64 `json:"curtailment_hours"`
	ChargingHours    float64 `json:"charging_during_curtailment_hours"`
	DischargingHours float64 `json:"discharging_during_curtailment_hours"`
	IdleHours        float64 `json:"idle_during_curtailment_hours"`

	PctCharging    float64 `json:"pct_curtailment_periods_charging"`
	PctDischarging float64 `json:"pct_curtailment_periods_discharging"`
	PctIdle        float64 `json:"pct_curtailment_periods_idle"`
}

// CurtailmentEnergy splits the curtailed energy by what the plant was doing.
type CurtailmentEnergy struct {
	TotalMWh             float64 `json:"total_curtailment_energy_mwh"`
	DuringChargingMWh    float64 `json:"curtailment_during_charging_mwh"`
	DuringDischargingMWh float64 `json:"curtailment_during_discharging_mwh"`
	DuringIdleMWh        float64 `json:"curtailment_during_idle_mwh"`

	PctDuringCharging    float64 `json:"pct_curtailment_energy_during_charging"`
	PctDuringDischarging float64 `json:"pct_curtailment_energy_during_discharging"`
}

// CurtailmentInteraction measures the plant's own flows in curtailed periods.
type CurtailmentInteraction struct {
	ChargedMWh    float64 `json:"battery_charging_energy_during_curtailment_mwh"`
	DischargedMWh float64 `json:"battery_discharging_energy_during_curtailment_mwh"`
	// CapturePct is charging energy over the curtailment available while
	// charging, in percent.
	CapturePct float64 `json:"curtailment_capture_efficiency_pct"`
	// AdditionalExcessMWh is energy exported on top of an existing surplus.
	AdditionalExcessMWh float64 `json:"additional_excess_energy_from_battery_mwh"`
}

type CurtailmentSummary struct {
	Periods                int     `json:"curtailment_periods_total"`
	PeriodsWithCharging    int     `json:"curtailment_periods_with_charging"`
	PeriodsWithDischarging int     `json:"curtailment_periods_with_discharging"`
	CaptureRatio           float64 `json:"curtailment_capture_ratio"`
	ExcessContribution     float64 `json:"excess_energy_contribution_ratio"`
}

type CurtailmentAnalysis struct {
	Time        CurtailmentTime        `json:"time_analysis"`
	Energy      CurtailmentEnergy      `json:"energy_analysis"`
	Interaction CurtailmentInteraction `json:"battery_curtailment_interaction"`
	Summary     CurtailmentSummary     `json:"summary_metrics"`
}

// AnalyzeCurtailment reports how the schedule lines up with curtailment.
// A period is curtailed when curtailment is above zero; a period where both
// subsystems run counts as charging and as discharging.
func AnalyzeCurtailment(s *model.Schedule) CurtailmentAnalysis {
	dt := s.StepHours()
	var a CurtailmentAnalysis
	var chargedPeriods, dischargedPeriods, idlePeriods int

	for _, p := range s.Periods() {
		a.Time.TotalHours += dt
		a.Energy.TotalMWh += p.Curtailment * dt
		if p.Curtailment <= 0 {
			continue
		}
		a.Summary.Periods++
		charging, discharging := p.Charging(), p.Discharging()
		if charging {
			chargedPeriods++
			a.Energy.DuringChargingMWh += p.Curtailment * dt
			a.Interaction.ChargedMWh += p.ChargeMW * dt
		}
		if discharging {
			dischargedPeriods++
			a.Energy.DuringDischargingMWh += p.Curtailment * dt
			a.Interaction.DischargedMWh += p.DischargeMW * dt
		}
		if !charging && !discharging {
			idlePeriods++
			a.Energy.DuringIdleMWh += p.Curtailment * dt
		}
	}

	a.Summary.PeriodsWithCharging = chargedPeriods
	a.Summary.PeriodsWithDischarging = dischargedPeriods
	a.Time.CurtailmentHours = float64(a.Summary.Periods) * dt
	a.Time.ChargingHours = float64(chargedPeriods) * dt
	a.Time.DischargingHours = float64(dischargedPeriods) * dt
	a.Time.IdleHours = float64(idlePeriods) * dt

	n := float64(a.Summary.Periods)
	a.Time.PctCharging = pct(float64(chargedPeriods), n)
	a.Time.PctDischarging = pct(float64(dischargedPeriods), n)
	a.Time.PctIdle = pct(float64(idlePeriods), n)

	a.Energy.PctDuringCharging = pct(a.Energy.DuringChargingMWh, a.Energy.TotalMWh)
	a.Energy.PctDuringDischarging = pct(a.Energy.DuringDischargingMWh, a.Energy.TotalMWh)

	a.Interaction.CapturePct = pct(a.Interaction.ChargedMWh, a.Energy.DuringChargingMWh)
	a.Interaction.AdditionalExcessMWh = a.Interaction.DischargedMWh

	a.Summary.CaptureRatio = ratio(a.Interaction.ChargedMWh, a.Energy.TotalMWh)
	a.Summary.ExcessContribution = ratio(a.Interaction.AdditionalExcessMWh, a.Energy.TotalMWh)
	return a
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func pct(num, den float64) float64 {
	return 100 * ratio(num, den)
}
