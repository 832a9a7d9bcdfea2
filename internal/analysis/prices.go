// Package analysis derives descriptive statistics from input series and
// solved schedules. Nothing here re-solves or changes a schedule.
package analysis

import (
	"math"
	"sort"
	"time"

	"ammonia-battery/internal/model"
)

// PriceStats summarises the market a plant is exposed to, independent of
// its size.
type PriceStats struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Count int `json:"count"`

	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P05  float64 `json:"p05"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`

	// NegativeHours is the time spent at prices below zero.
	NegativeHours float64 `json:"negative_hours"`
}

// ComputePriceStats summarises the prices of a series.
func ComputePriceStats(ts model.TimeSeries) PriceStats {
	p := priceStats(ts.Prices(), ts.StepHours)
	if ts.Len() > 0 {
		p.Start = ts.Intervals[0].Start
		p.End = ts.Intervals[ts.Len()-1].End
	}
	return p
}

// SchedulePriceStats summarises the prices a schedule was solved against.
func SchedulePriceStats(s *model.Schedule) PriceStats {
	periods := s.Periods()
	prices := make([]float64, len(periods))
	for i, pr := range periods {
		prices[i] = pr.Price
	}
	p := priceStats(prices, s.StepHours())
	if len(periods) > 0 {
		p.Start = periods[0].Start
		p.End = periods[len(periods)-1].End
	}
	return p
}

func priceStats(prices []float64, stepHours float64) PriceStats {
	p := PriceStats{}
	if len(prices) == 0 {
		return p
	}
	p.Count = len(prices)

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	vals := make([]float64, 0, len(prices))
	for _, v := range prices {
		vals = append(vals, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
		if v < 0 {
			p.NegativeHours += stepHours
		}
	}
	sort.Float64s(vals)
	p.Min = minv
	p.Max = maxv
	p.Mean = sum / float64(len(vals))
	p.P05 = percentileSorted(vals, 0.05)
	p.P50 = percentileSorted(vals, 0.5)
	p.P95 = percentileSorted(vals, 0.95)
	p.SpreadP95P05 = p.P95 - p.P05
	return p
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// meanPrice is the average price over the periods where pick is true, or 0
// when there are none.
func meanPrice(periods []model.PeriodResult, pick func(model.PeriodResult) bool) float64 {
	var sum float64
	var n int
	for _, p := range periods {
		if pick(p) {
			sum += p.Price
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
