package analysis

import (
	"sort"

	"ammonia-battery/internal/model"
)

type RankedSchedule struct {
	Scenario string      `json:"scenario"`
	Totals   model.Totals `json:"totals"`
	Prices   PriceStats  `json:"prices"`
	// CaptureSpread is the average discharging price minus the average
	// charging price.
	CaptureSpread float64 `json:"capture_spread"`
}

// RankByNetRevenue summarises each schedule and sorts descending by net
// revenue. Ties are broken by scenario name.
func RankByNetRevenue(schedules []*model.Schedule) []RankedSchedule {
	out := make([]RankedSchedule, 0, len(schedules))
	for _, s := range schedules {
		if s == nil {
			continue
		}
		periods := s.Periods()
		out = append(out, RankedSchedule{
			Scenario: s.Scenario(),
			Totals:   s.Totals(),
			Prices:   SchedulePriceStats(s),
			CaptureSpread: meanPrice(periods, model.PeriodResult.Discharging) -
				meanPrice(periods, model.PeriodResult.Charging),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Totals.NetRevenue != out[j].Totals.NetRevenue {
			return out[i].Totals.NetRevenue > out[j].Totals.NetRevenue
		}
		return out[i].Scenario < out[j].Scenario
	})
	return out
}
