// Package economics turns a solved schedule and the plant cost breakdown into
// annualised profit and levelised cost metrics.
package economics

import (
	"math"

	"ammonia-battery/internal/model"
)

const (
	DefaultLifetimeYears = 25
	DefaultDiscountRate  = 0.07
	// DefaultYearHours annualises results over a 366-day year.
	DefaultYearHours = 366 * 24
)

// Assumptions are the financial parameters shared by every metric.
type Assumptions struct {
	LifetimeYears int     `yaml:"lifetime_years" json:"lifetime_years"`
	DiscountRate  float64 `yaml:"discount_rate" json:"discount_rate"`
	YearHours     float64 `yaml:"year_hours" json:"year_hours"`
}

func DefaultAssumptions() Assumptions {
	return Assumptions{
		LifetimeYears: DefaultLifetimeYears,
		DiscountRate:  DefaultDiscountRate,
		YearHours:     DefaultYearHours,
	}
}

// WithDefaults fills zero fields. A zero discount rate is kept only when the
// lifetime is also set.
func (a Assumptions) WithDefaults() Assumptions {
	d := DefaultAssumptions()
	if a.LifetimeYears == 0 {
		a.LifetimeYears = d.LifetimeYears
		if a.DiscountRate == 0 {
			a.DiscountRate = d.DiscountRate
		}
	}
	if a.YearHours == 0 {
		a.YearHours = d.YearHours
	}
	return a
}

func (a Assumptions) Validate() error {
	if a.LifetimeYears <= 0 {
		return &model.ConfigurationError{Field: "economics.lifetime_years", Reason: "must be > 0"}
	}
	if a.DiscountRate < 0 || a.DiscountRate >= 1 || math.IsNaN(a.DiscountRate) {
		return &model.ConfigurationError{Field: "economics.discount_rate", Reason: "must be in [0, 1)"}
	}
	if a.YearHours <= 0 {
		return &model.ConfigurationError{Field: "economics.year_hours", Reason: "must be > 0"}
	}
	return nil
}

// CRF is the capital recovery factor r(1+r)^n / ((1+r)^n − 1).
func CRF(rate float64, years int) float64 {
	if rate == 0 {
		return 1 / float64(years)
	}
	power := math.Pow(1+rate, float64(years))
	return rate * power / (power - 1)
}

// PVF is the present value of an annuity of one per year, (1 − (1+r)^−n) / r.
func PVF(rate float64, years int) float64 {
	if rate == 0 {
		return float64(years)
	}
	return (1 - math.Pow(1+rate, -float64(years))) / rate
}

// Annualize spreads capex evenly over the lifetime at the discount rate.
func (a Assumptions) Annualize(capex float64) float64 {
	return capex * CRF(a.DiscountRate, a.LifetimeYears)
}

// TimeFraction is the share of a year covered by hours.
func (a Assumptions) TimeFraction(hours float64) float64 {
	return hours / a.YearHours
}

// annual scales a horizon total to a yearly figure.
func annual(v, timeFraction float64) float64 {
	if timeFraction <= 0 {
		return 0
	}
	return v / timeFraction
}

// Levelized is the input to LevelizedCost. All flows are per year.
type Levelized struct {
	AnnualOutput   float64
	Capex          float64
	AnnualFixed    float64
	AnnualVariable float64
	// ReplacementPV is the present value of intermittent replacements.
	ReplacementPV float64
}

// LevelizedCost is discounted lifetime cost over discounted lifetime output.
// It is +Inf when nothing is produced.
func (a Assumptions) LevelizedCost(in Levelized) float64 {
	if in.AnnualOutput == 0 {
		return math.Inf(1)
	}
	pvf := PVF(a.DiscountRate, a.LifetimeYears)
	costs := in.Capex + (in.AnnualFixed+in.AnnualVariable)*pvf + in.ReplacementPV
	return costs / (in.AnnualOutput * pvf)
}

// Replacement describes electrolyser stack replacements over the lifetime.
type Replacement struct {
	StackCost   float64 `json:"stack_cost"`
	StackHours  float64 `json:"stack_hours"`
	AnnualHours float64 `json:"annual_operating_hours"`
	Count       int     `json:"count"`
	PV          float64 `json:"present_value"`
}

// Replacements counts stack changes from the annualised charging hours and
// discounts each to the year it falls due.
func (a Assumptions) Replacements(chargingHours, timeFraction, stackCost, stackHours float64) Replacement {
	r := Replacement{StackCost: stackCost, StackHours: stackHours, AnnualHours: annual(chargingHours, timeFraction)}
	if r.AnnualHours <= 0 || stackHours <= 0 || stackCost <= 0 {
		return r
	}
	lifetime := float64(a.LifetimeYears)
	r.Count = int(math.Floor(r.AnnualHours * lifetime / stackHours))
	for k := 1; k <= r.Count; k++ {
		year := float64(k) * stackHours / r.AnnualHours
		if year > lifetime {
			break
		}
		r.PV += stackCost / math.Pow(1+a.DiscountRate, year)
	}
	return r
}
