package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"ammonia-battery/internal/model"
)

// ScheduleFrame lays the schedule out as a table, one row per period.
func ScheduleFrame(s *model.Schedule) dataframe.DataFrame {
	periods := s.Periods()
	n := len(periods)
	var (
		index                        = make([]int, n)
		start, end, action           = make([]string, n), make([]string, n), make([]string, n)
		price, curtailment           = make([]float64, n), make([]float64, n)
		charge, discharge, uptake    = make([]float64, n), make([]float64, n), make([]float64, n)
		levelStart, levelEnd         = make([]float64, n), make([]float64, n)
		chargingCost, dischargingRev = make([]float64, n), make([]float64, n)
		net, cum                     = make([]float64, n), make([]float64, n)
	)
	var running float64
	for i, p := range periods {
		running += p.NetRevenue
		index[i] = p.Index
		start[i] = p.Start.Format(time.RFC3339)
		end[i] = p.End.Format(time.RFC3339)
		action[i] = string(p.Action)
		price[i] = p.Price
		curtailment[i] = p.Curtailment
		charge[i] = p.ChargeMW
		discharge[i] = p.DischargeMW
		uptake[i] = p.CurtailmentUptakeMW
		levelStart[i] = p.LevelStart
		levelEnd[i] = p.LevelEnd
		chargingCost[i] = p.ChargingCost
		dischargingRev[i] = p.DischargingRevenue
		net[i] = p.NetRevenue
		cum[i] = running
	}
	return dataframe.New(
		series.New(index, series.Int, "index"),
		series.New(start, series.String, "interval_start"),
		series.New(end, series.String, "interval_end"),
		series.New(price, series.Float, "price"),
		series.New(curtailment, series.Float, "curtailment_mw"),
		series.New(action, series.String, "action"),
		series.New(charge, series.Float, "charge_mw"),
		series.New(discharge, series.Float, "discharge_mw"),
		series.New(uptake, series.Float, "curtailment_uptake_mw"),
		series.New(levelStart, series.Float, "level_start"),
		series.New(levelEnd, series.Float, "level_end"),
		series.New(chargingCost, series.Float, "charging_cost"),
		series.New(dischargingRev, series.Float, "discharging_revenue"),
		series.New(net, series.Float, "net_revenue"),
		series.New(cum, series.Float, "cum_net_revenue"),
	)
}

// WriteScheduleCSV writes the schedule table with a header row.
func WriteScheduleCSV(w io.Writer, s *model.Schedule) error {
	df := ScheduleFrame(s)
	if df.Err != nil {
		return fmt.Errorf("build schedule table: %w", df.Err)
	}
	return df.WriteCSV(w)
}
