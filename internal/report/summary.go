// Package report renders a solved run as files: a narrative summary, the
// schedule as CSV, a dispatch figure and a JSON result.
package report

import (
	"io"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

// Input is everything a report is rendered from.
type Input struct {
	Scenario   string
	SystemName string
	// Technology is the A2P technology of a catalogue plant; empty for
	// systems composed from explicit equipment lists.
	Technology string

	Params        system.Parameters
	LifetimeYears int

	Schedule  *model.Schedule
	Economics economics.Report
	Analysis  analysis.Report
}

const rule = "======================================================================"

// Capture and excess thresholds, in percent of curtailed energy.
const (
	highCapture     = 10
	moderateCapture = 5
	highExcess      = 5
	moderateExcess  = 1
)

// Summary renders the narrative summary.
func Summary(in Input) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	line := func(format string, args ...any) {
		_, _ = p.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	s := in.Schedule
	par := in.Params
	unit := par.StorageUnit

	line("AMMONIA BATTERY DISPATCH SUMMARY: %s", in.Scenario)
	line(rule)
	line("")

	line("SYSTEM DESIGN")
	if in.SystemName != "" {
		line("  System:                   %s", in.SystemName)
	}
	line("  Storage Capacity:         %.0f %s", par.TankCapacity, unit)
	if s != nil {
		line("  Initial Storage Level:    %.0f %s", s.InitialLevel(), unit)
		line("  Final Storage Level:      %.0f %s", s.FinalLevel(), unit)
	}
	line("  Charging Capacity:        %.1f MW", par.MaxCharge)
	line("  Discharging Capacity:     %.1f MW", par.MaxDischarge)
	if in.Technology != "" {
		line("  A2P Technology:           %s", in.Technology)
	}
	line("")

	line("EFFICIENCY PARAMETERS")
	line("  Charging Efficiency:      %.2f%%", par.EtaCharge*100)
	line("  Discharging Efficiency:   %.2f%%", par.EtaDischarge*100)
	line("  Round-Trip Efficiency:    %.2f%%", par.RoundTripEfficiency()*100)
	line("")

	if s != nil {
		meta := s.Meta()
		totals := s.Totals()
		line("DISPATCH")
		line("  Periods:                  %d x %.2f h", s.Len(), s.StepHours())
		line("  Status:                   %s (%s, %d attempt(s), %s)", meta.Status, meta.Backend, meta.Attempts, meta.SolveTime.Round(time.Millisecond))
		line("  Objective:                %.2f", meta.Objective)
		line("  Energy Charged:           %.0f MWh", totals.EnergyInMWh)
		line("  Energy Discharged:        %.0f MWh", totals.EnergyOutMWh)
		line("  Net Revenue:              £%.0f", totals.NetRevenue)
		line("")
	}

	op := in.Analysis.Operation
	line("OPERATIONAL PERFORMANCE")
	line("  Annual Charging Hours:         %.0f hours/year", op.AnnualChargingHours)
	line("  Annual Discharging Hours:      %.0f hours/year", op.AnnualDischargingHours)
	line("  Charging CAPEX Utilisation:    %.1f%%", op.ChargingUtilisation*100)
	line("  Discharging CAPEX Utilisation: %.1f%%", op.DischargingUtilisation*100)
	line("  Electrolyser Replacements:     %d (over %d years)", op.ElectrolyserReplacements, in.LifetimeYears)
	line("")

	sys := in.Economics.System
	line("ECONOMIC ANALYSIS")
	line("  Annual Operational Profit: £%.0f", sys.AnnualOperatingProfit)
	line("  Total System CAPEX:        £%.0f", sys.TotalCapex)
	line("  Annualised CAPEX:          £%.0f", sys.AnnualizedCapex)
	line("  Total Annual OPEX:         £%.0f", sys.TotalAnnualOpex)
	line("  Net Annual Profit:         £%.0f", sys.NetAnnualProfit)
	line("")

	line("LEVELISED COST ANALYSIS")
	line("  LCOA: %s/tonne NH3", money(p, in.Economics.LCOA.PerTonne))
	line("  LCOE: %s/MWh", money(p, in.Economics.LCOE.PerMWh))
	line("  LCOS: %s/MWh", money(p, in.Economics.LCOS.PerMWh))
	line("")

	writeCurtailment(line, in.Analysis.Curtailment)
	line(rule)
	return b.String()
}

// WriteSummary writes Summary(in) to w.
func WriteSummary(w io.Writer, in Input) error {
	_, err := io.WriteString(w, Summary(in))
	return err
}

func money(p *message.Printer, v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return p.Sprintf("£%.0f", v)
}

func writeCurtailment(line func(string, ...any), c analysis.CurtailmentAnalysis) {
	t, e, i, s := c.Time, c.Energy, c.Interaction, c.Summary
	var curtailedPct float64
	if t.TotalHours > 0 {
		curtailedPct = t.CurtailmentHours / t.TotalHours * 100
	}

	line("CURTAILMENT INTERACTION ANALYSIS")
	line("--------------------------------------------------")
	line("")
	line("TIME-BASED ANALYSIS:")
	line("  Total simulation period:           %.0f hours", t.TotalHours)
	line("  Hours with curtailment:            %.0f hours (%.1f%% of total time)", t.CurtailmentHours, curtailedPct)
	line("  - Charging:                        %.0f hours (%.1f%% of curtailment periods)", t.ChargingHours, t.PctCharging)
	line("  - Discharging:                     %.0f hours (%.1f%% of curtailment periods)", t.DischargingHours, t.PctDischarging)
	line("  - Idle:                            %.0f hours (%.1f%% of curtailment periods)", t.IdleHours, t.PctIdle)
	line("")
	line("ENERGY-BASED ANALYSIS:")
	line("  Total curtailed energy:            %.0f MWh", e.TotalMWh)
	line("  - During charging:                 %.0f MWh (%.1f%% of total curtailment)", e.DuringChargingMWh, e.PctDuringCharging)
	line("  - During discharging:              %.0f MWh (%.1f%% of total curtailment)", e.DuringDischargingMWh, e.PctDuringDischarging)
	line("  - During idle:                     %.0f MWh", e.DuringIdleMWh)
	line("")
	line("CURTAILMENT CAPTURE ANALYSIS:")
	line("  Charging during curtailment:       %.0f MWh", i.ChargedMWh)
	line("  Curtailment capture efficiency:    %.1f%%", i.CapturePct)
	line("  Overall curtailment capture ratio: %.1f%%", s.CaptureRatio*100)
	line("  Discharging during curtailment:    %.0f MWh", i.DischargedMWh)
	line("  Additional excess energy created:  %.1f%% of total curtailment", s.ExcessContribution*100)
	line("")

	line("INTERPRETATION:")
	capture := s.CaptureRatio * 100
	switch {
	case capture > highCapture:
		line("HIGH CURTAILMENT CAPTURE: the plant captures significant curtailed energy.")
	case capture > moderateCapture:
		line("MODERATE CURTAILMENT CAPTURE: the plant captures some curtailed energy.")
	default:
		line("LOW CURTAILMENT CAPTURE: the plant captures minimal curtailed energy.")
	}
	excess := s.ExcessContribution * 100
	switch {
	case excess > highExcess:
		line("SIGNIFICANT EXCESS ENERGY: the plant often discharges during curtailment.")
	case excess > moderateExcess:
		line("MODERATE EXCESS ENERGY: some discharging occurs during curtailment.")
	default:
		line("MINIMAL EXCESS ENERGY: the plant rarely discharges during curtailment.")
	}
	line("")
}
