package model

import (
	"fmt"
	"math"
	"time"
)

// Interval is one row of the input table.
// Prices are currency/MWh; curtailment, demand, wind and carbon-based
// generation are MW averaged over the interval.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Price       float64 `json:"price"`
	Curtailment float64 `json:"curtailment"`

	Demand           float64 `json:"demand,omitempty"`
	Wind             float64 `json:"wind,omitempty"`
	CarbonBasedFuels float64 `json:"carbon_based_fuels,omitempty"`
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) DurationHours() float64 {
	return i.Duration().Hours()
}

// TimeSeries is the fixed-step time index and every time-varying input defined on it.
type TimeSeries struct {
	Intervals []Interval `json:"intervals"`
	// StepHours is the period duration Δt in hours.
	StepHours float64 `json:"step_hours"`
}

// NewTimeSeries builds a series from parallel price and curtailment slices.
// Periods start at start and are stepHours long. A length mismatch is a
// ConfigurationError.
func NewTimeSeries(start time.Time, stepHours float64, prices, curtailment []float64) (TimeSeries, error) {
	if len(prices) != len(curtailment) {
		return TimeSeries{}, &ConfigurationError{
			Field:  "curtailment",
			Reason: fmt.Sprintf("length %d does not match price length %d", len(curtailment), len(prices)),
		}
	}
	if stepHours <= 0 {
		return TimeSeries{}, &ConfigurationError{Field: "step_hours", Reason: "must be > 0"}
	}
	step := time.Duration(stepHours * float64(time.Hour))
	out := make([]Interval, len(prices))
	for i := range prices {
		s := start.Add(time.Duration(i) * step)
		out[i] = Interval{Start: s, End: s.Add(step), Price: prices[i], Curtailment: curtailment[i]}
	}
	ts := TimeSeries{Intervals: out, StepHours: stepHours}
	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}
	return ts, nil
}

func (ts TimeSeries) Len() int { return len(ts.Intervals) }

func (ts TimeSeries) Prices() []float64 {
	out := make([]float64, len(ts.Intervals))
	for i, it := range ts.Intervals {
		out[i] = it.Price
	}
	return out
}

func (ts TimeSeries) Curtailment() []float64 {
	out := make([]float64, len(ts.Intervals))
	for i, it := range ts.Intervals {
		out[i] = it.Curtailment
	}
	return out
}

// Hours is the horizon length in hours.
func (ts TimeSeries) Hours() float64 {
	return float64(len(ts.Intervals)) * ts.StepHours
}

// Validate checks the series is usable as a time index.
func (ts TimeSeries) Validate() error {
	if len(ts.Intervals) == 0 {
		return &ConfigurationError{Field: "series", Reason: "no intervals"}
	}
	if ts.StepHours <= 0 || math.IsNaN(ts.StepHours) || math.IsInf(ts.StepHours, 0) {
		return &ConfigurationError{Field: "step_hours", Reason: "must be > 0"}
	}
	for i, it := range ts.Intervals {
		if math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			return &ConfigurationError{Field: "price", Reason: fmt.Sprintf("period %d is not finite", i)}
		}
		if math.IsNaN(it.Curtailment) || math.IsInf(it.Curtailment, 0) {
			return &ConfigurationError{Field: "curtailment", Reason: fmt.Sprintf("period %d is not finite", i)}
		}
		if it.Curtailment < 0 {
			return &ConfigurationError{Field: "curtailment", Reason: fmt.Sprintf("period %d is negative", i)}
		}
		if it.Start.IsZero() || it.End.IsZero() {
			continue
		}
		if d := it.DurationHours(); math.Abs(d-ts.StepHours) > 1e-9 {
			return &ConfigurationError{
				Field:  "series",
				Reason: fmt.Sprintf("period %d lasts %.4gh, expected %.4gh", i, d, ts.StepHours),
			}
		}
		if i > 0 && !ts.Intervals[i-1].End.IsZero() && !it.Start.Equal(ts.Intervals[i-1].End) {
			return &ConfigurationError{
				Field:  "series",
				Reason: fmt.Sprintf("period %d does not start where period %d ends", i, i-1),
			}
		}
	}
	return nil
}
