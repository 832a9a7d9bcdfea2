package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"ammonia-battery/internal/model"
)

// Plant carries the ratings the operational metrics are measured against.
type Plant struct {
	ChargeMW     float64
	DischargeMW  float64
	TankCapacity float64

	YearHours     float64
	LifetimeYears int
	// StackHours is the electrolyser stack life. 0 disables the count.
	StackHours float64
}

// OperationalSummary is the annualised headline of how hard the plant ran.
type OperationalSummary struct {
	AnnualChargingHours    float64 `json:"annual_charging_hours"`
	AnnualDischargingHours float64 `json:"annual_discharging_hours"`

	// Capex utilisation is annual energy over the energy at full rating all year.
	ChargingUtilisation    float64 `json:"charging_capex_utilization"`
	DischargingUtilisation float64 `json:"discharging_capex_utilization"`

	ElectrolyserReplacements int `json:"num_electrolyser_replacements"`
}

// SummarizeOperation annualises the schedule's running hours and energy.
func SummarizeOperation(s *model.Schedule, plant Plant) OperationalSummary {
	var out OperationalSummary
	if s.Len() == 0 || plant.YearHours <= 0 {
		return out
	}
	totals := s.Totals()
	tf := float64(s.Len()) * s.StepHours() / plant.YearHours

	out.AnnualChargingHours = totals.ChargingHours / tf
	out.AnnualDischargingHours = totals.DischargingHours / tf
	out.ChargingUtilisation = ratio(totals.EnergyInMWh/tf, plant.ChargeMW*plant.YearHours)
	out.DischargingUtilisation = ratio(totals.EnergyOutMWh/tf, plant.DischargeMW*plant.YearHours)
	if plant.StackHours > 0 {
		out.ElectrolyserReplacements = int(math.Floor(out.AnnualChargingHours * float64(plant.LifetimeYears) / plant.StackHours))
	}
	return out
}

type MonthlyOperation struct {
	Month            time.Month `json:"month"`
	ChargingHours    float64    `json:"charging_hours"`
	DischargingHours float64    `json:"discharging_hours"`
	IdleHours        float64    `json:"idle_hours"`
}

// Season groups months in quarters starting with January.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
)

var seasons = []Season{Winter, Spring, Summer, Fall}

func seasonIndex(m time.Month) int { return (int(m) - 1) / 3 }

func SeasonOf(m time.Month) Season { return seasons[seasonIndex(m)] }

// HourlyProfile is the average behaviour at one hour of day in one season.
type HourlyProfile struct {
	Season               Season  `json:"season"`
	Hour                 int     `json:"hour"`
	Periods              int     `json:"periods"`
	AvgChargeMW          float64 `json:"avg_charging_power"`
	AvgDischargeMW       float64 `json:"avg_discharging_power"`
	ChargingFrequency    float64 `json:"charging_frequency"`
	DischargingFrequency float64 `json:"discharging_frequency"`
}

// Transitions counts starts of charging and discharging runs.
type Transitions struct {
	ChargingCycles    int `json:"charging_cycles"`
	DischargingCycles int `json:"discharging_cycles"`
}

type TimeMetrics struct {
	Monthly        []MonthlyOperation `json:"monthly_operation"`
	HourlyBySeason []HourlyProfile    `json:"hourly_by_season"`
	Transitions    Transitions        `json:"transitions"`
}

// AnalyzeTime groups the schedule by calendar month and by season and hour
// of day. Groups without periods are left out.
func AnalyzeTime(s *model.Schedule) TimeMetrics {
	dt := s.StepHours()
	var out TimeMetrics

	var monthly [12]MonthlyOperation
	var seen [12]bool
	var hourly [4][24]HourlyProfile

	prevCharging, prevDischarging := false, false
	for _, p := range s.Periods() {
		m := p.Start.Month()
		mi := int(m) - 1
		seen[mi] = true
		monthly[mi].Month = m

		charging, discharging := p.Charging(), p.Discharging()
		switch {
		case charging && discharging:
			monthly[mi].ChargingHours += dt
			monthly[mi].DischargingHours += dt
		case charging:
			monthly[mi].ChargingHours += dt
		case discharging:
			monthly[mi].DischargingHours += dt
		default:
			monthly[mi].IdleHours += dt
		}

		h := &hourly[seasonIndex(m)][p.Start.Hour()]
		h.Periods++
		h.AvgChargeMW += p.ChargeMW
		h.AvgDischargeMW += p.DischargeMW
		if charging {
			h.ChargingFrequency++
		}
		if discharging {
			h.DischargingFrequency++
		}

		if charging && !prevCharging {
			out.Transitions.ChargingCycles++
		}
		if discharging && !prevDischarging {
			out.Transitions.DischargingCycles++
		}
		prevCharging, prevDischarging = charging, discharging
	}

	for i := range monthly {
		if seen[i] {
			out.Monthly = append(out.Monthly, monthly[i])
		}
	}
	for si := range hourly {
		for hr := range hourly[si] {
			h := hourly[si][hr]
			if h.Periods == 0 {
				continue
			}
			n := float64(h.Periods)
			h.Season = seasons[si]
			h.Hour = hr
			h.AvgChargeMW /= n
			h.AvgDischargeMW /= n
			h.ChargingFrequency /= n
			h.DischargingFrequency /= n
			out.HourlyBySeason = append(out.HourlyBySeason, h)
		}
	}
	return out
}

// MonthlyUtilisation is storage fill as a fraction of the tank.
type MonthlyUtilisation struct {
	Month time.Month `json:"month"`
	Avg   float64    `json:"avg_capacity_utilization"`
	Max   float64    `json:"max_capacity_utilization"`
	Min   float64    `json:"min_capacity_utilization"`
}

// UtilisationBin is the time the tank spent in (Lower, Upper] of capacity.
// The lowest bin also holds an empty tank.
type UtilisationBin struct {
	Label   string  `json:"label"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Hours   float64 `json:"hours"`
	Percent float64 `json:"percentage_time"`
}

type StorageUtilisation struct {
	Monthly  []MonthlyUtilisation `json:"monthly_utilization"`
	Bins     []UtilisationBin     `json:"storage_duration"`
	Average  float64              `json:"avg_utilization"`
	MaxLevel float64              `json:"max_storage_level"`
}

var utilisationEdges = []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}

// AnalyzeStorage measures the end-of-period level against the tank capacity.
// A zero tank yields only the maximum level.
func AnalyzeStorage(s *model.Schedule, tankCapacity float64) StorageUtilisation {
	var out StorageUtilisation
	periods := s.Periods()
	for _, p := range periods {
		out.MaxLevel = math.Max(out.MaxLevel, p.LevelEnd)
	}
	if tankCapacity <= 0 || len(periods) == 0 {
		return out
	}

	dt := s.StepHours()
	out.Bins = make([]UtilisationBin, len(utilisationEdges)-1)
	for i := range out.Bins {
		lo, hi := utilisationEdges[i], utilisationEdges[i+1]
		out.Bins[i] = UtilisationBin{Label: fmt.Sprintf("%.1f-%.1f", lo, hi), Lower: lo, Upper: hi}
	}

	var monthly [12]MonthlyUtilisation
	var counts [12]int
	var sum float64
	for _, p := range periods {
		u := p.LevelEnd / tankCapacity
		sum += u
		for i := range out.Bins {
			if u <= out.Bins[i].Upper || i == len(out.Bins)-1 {
				out.Bins[i].Hours += dt
				break
			}
		}
		mi := int(p.Start.Month()) - 1
		m := &monthly[mi]
		if counts[mi] == 0 {
			m.Month = p.Start.Month()
			m.Min, m.Max = u, u
		}
		counts[mi]++
		m.Avg += u
		m.Min = math.Min(m.Min, u)
		m.Max = math.Max(m.Max, u)
	}

	total := float64(len(periods)) * dt
	for i := range out.Bins {
		out.Bins[i].Percent = pct(out.Bins[i].Hours, total)
	}
	for i := range monthly {
		if counts[i] == 0 {
			continue
		}
		monthly[i].Avg /= float64(counts[i])
		out.Monthly = append(out.Monthly, monthly[i])
	}
	out.Average = sum / float64(len(periods))
	return out
}

// PriceBin is the time spent, and the plant's response, in (Lower, Upper].
type PriceBin struct {
	Label            string  `json:"label"`
	Lower            float64 `json:"lower"`
	Upper            float64 `json:"upper"`
	Hours            float64 `json:"hours"`
	ChargingHours    float64 `json:"charging_hours"`
	DischargingHours float64 `json:"discharging_hours"`
}

// MarshalJSON writes the open outer bounds as null.
func (b PriceBin) MarshalJSON() ([]byte, error) {
	type plain PriceBin
	return json.Marshal(struct {
		plain
		Lower *float64 `json:"lower"`
		Upper *float64 `json:"upper"`
	}{plain(b), finite(b.Lower), finite(b.Upper)})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

var priceEdges = []float64{math.Inf(-1), -50, -10, 0, 50, 100, 150, 200, math.Inf(1)}

func priceLabel(lo, hi float64) string {
	switch {
	case math.IsInf(lo, -1):
		return fmt.Sprintf("<%g", hi)
	case math.IsInf(hi, 1):
		return fmt.Sprintf(">%g", lo)
	}
	return fmt.Sprintf("%g to %g", lo, hi)
}

// AnalyzePriceResponse bins every period by price.
func AnalyzePriceResponse(s *model.Schedule) []PriceBin {
	dt := s.StepHours()
	bins := make([]PriceBin, len(priceEdges)-1)
	for i := range bins {
		lo, hi := priceEdges[i], priceEdges[i+1]
		bins[i] = PriceBin{Label: priceLabel(lo, hi), Lower: lo, Upper: hi}
	}
	for _, p := range s.Periods() {
		for i := range bins {
			if p.Price > bins[i].Lower && p.Price <= bins[i].Upper {
				bins[i].Hours += dt
				if p.Charging() {
					bins[i].ChargingHours += dt
				}
				if p.Discharging() {
					bins[i].DischargingHours += dt
				}
				break
			}
		}
	}
	return bins
}

// Summary is the headline of a full analysis.
type Summary struct {
	TotalProfit           float64 `json:"total_profit"`
	AvgChargingPrice      float64 `json:"average_charging_price"`
	AvgDischargingPrice   float64 `json:"average_discharging_price"`
	TotalChargingHours    float64 `json:"total_charging_hours"`
	TotalDischargingHours float64 `json:"total_discharging_hours"`
	TotalCycles           int     `json:"total_cycles"`
	MaxStoragePct         float64 `json:"max_storage_utilization"`
}

// Report is every analysis of one schedule.
type Report struct {
	Summary     Summary             `json:"summary"`
	Operation   OperationalSummary  `json:"operation"`
	Time        TimeMetrics         `json:"time_metrics"`
	Storage     StorageUtilisation  `json:"storage"`
	PriceBins   []PriceBin          `json:"price_bins"`
	Prices      PriceStats          `json:"prices"`
	Curtailment CurtailmentAnalysis `json:"curtailment"`
}

// Analyze runs every analysis over s.
func Analyze(s *model.Schedule, plant Plant) Report {
	r := Report{
		Operation:   SummarizeOperation(s, plant),
		Time:        AnalyzeTime(s),
		Storage:     AnalyzeStorage(s, plant.TankCapacity),
		PriceBins:   AnalyzePriceResponse(s),
		Prices:      SchedulePriceStats(s),
		Curtailment: AnalyzeCurtailment(s),
	}
	periods := s.Periods()
	totals := s.Totals()
	r.Summary = Summary{
		TotalProfit:           totals.NetRevenue,
		AvgChargingPrice:      meanPrice(periods, model.PeriodResult.Charging),
		AvgDischargingPrice:   meanPrice(periods, model.PeriodResult.Discharging),
		TotalChargingHours:    totals.ChargingHours,
		TotalDischargingHours: totals.DischargingHours,
		TotalCycles:           r.Time.Transitions.ChargingCycles,
		MaxStoragePct:         pct(r.Storage.MaxLevel, plant.TankCapacity),
	}
	return r
}
