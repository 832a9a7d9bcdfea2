package data

import (
	"fmt"
	"math"

	"ammonia-battery/internal/model"
)

// Head keeps the first days of the series. days <= 0 keeps everything.
func Head(ts model.TimeSeries, days float64) model.TimeSeries {
	if days <= 0 {
		return ts
	}
	n := int(math.Round(days * 24 / ts.StepHours))
	if n >= ts.Len() {
		return ts
	}
	if n < 1 {
		n = 1
	}
	return model.TimeSeries{
		Intervals: append([]model.Interval(nil), ts.Intervals[:n]...),
		StepHours: ts.StepHours,
	}
}

// Resample coarsens the series to stepHours by averaging each group of
// periods. The target must be a whole multiple of the current step. A
// trailing partial group is dropped.
func Resample(ts model.TimeSeries, stepHours float64) (model.TimeSeries, error) {
	if stepHours <= 0 || ts.StepHours <= 0 {
		return model.TimeSeries{}, &model.ConfigurationError{Field: "step_hours", Reason: "must be > 0"}
	}
	ratio := stepHours / ts.StepHours
	factor := int(math.Round(ratio))
	if factor < 1 || math.Abs(ratio-float64(factor)) > 1e-9 {
		return model.TimeSeries{}, &model.ConfigurationError{
			Field:  "step_hours",
			Reason: fmt.Sprintf("%.4gh is not a whole multiple of the data step %.4gh", stepHours, ts.StepHours),
		}
	}
	if factor == 1 {
		return ts, nil
	}
	groups := ts.Len() / factor
	if groups == 0 {
		return model.TimeSeries{}, &model.ConfigurationError{
			Field:  "step_hours",
			Reason: fmt.Sprintf("series of %d periods is shorter than one %.4gh step", ts.Len(), stepHours),
		}
	}

	out := make([]model.Interval, groups)
	k := float64(factor)
	for g := range out {
		chunk := ts.Intervals[g*factor : (g+1)*factor]
		it := model.Interval{Start: chunk[0].Start, End: chunk[len(chunk)-1].End}
		for _, c := range chunk {
			it.Price += c.Price / k
			it.Curtailment += c.Curtailment / k
			it.Demand += c.Demand / k
			it.Wind += c.Wind / k
			it.CarbonBasedFuels += c.CarbonBasedFuels / k
		}
		out[g] = it
	}
	return model.TimeSeries{Intervals: out, StepHours: stepHours}, nil
}
