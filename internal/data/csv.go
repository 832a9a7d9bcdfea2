// Package data loads price and curtailment time series from CSV and JSON
// files and reshapes them for the dispatch engine.
package data

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"ammonia-battery/internal/model"
)

// Column names of the input table.
const (
	ColDatetime         = "DATETIME"
	ColPrice            = "PRICE"
	ColCurtailment      = "CURTAILMENT"
	ColDemand           = "DEMAND"
	ColWind             = "WIND"
	ColCarbonBasedFuels = "CARBON_BASED_FUELS"
)

// DefaultStep is used when the table has a single row.
const DefaultStep = 30 * time.Minute

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// LoadCSV reads a time-series table from path.
func LoadCSV(path string) (model.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	ts, err := ReadCSV(f)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// ReadCSV parses a table with DATETIME, PRICE and CURTAILMENT columns and
// optional DEMAND, WIND and CARBON_BASED_FUELS columns. The step is taken
// from the first two timestamps and must hold for every row.
func ReadCSV(r io.Reader) (model.TimeSeries, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return model.TimeSeries{}, &model.ConfigurationError{Field: "data_file", Reason: df.Err.Error()}
	}

	present := map[string]bool{}
	for _, name := range df.Names() {
		present[name] = true
	}
	for _, name := range []string{ColDatetime, ColPrice, ColCurtailment} {
		if !present[name] {
			return model.TimeSeries{}, &model.ConfigurationError{Field: "data_file", Reason: fmt.Sprintf("missing column %s", name)}
		}
	}
	n := df.Nrow()
	if n == 0 {
		return model.TimeSeries{}, &model.ConfigurationError{Field: "data_file", Reason: "no rows"}
	}

	times := make([]time.Time, n)
	for i, rec := range df.Col(ColDatetime).Records() {
		t, err := parseTime(rec)
		if err != nil {
			return model.TimeSeries{}, &model.ConfigurationError{Field: ColDatetime, Reason: fmt.Sprintf("row %d: %v", i+1, err)}
		}
		times[i] = t
	}

	prices, err := floatColumn(df, ColPrice, true)
	if err != nil {
		return model.TimeSeries{}, err
	}
	curtailment, err := floatColumn(df, ColCurtailment, true)
	if err != nil {
		return model.TimeSeries{}, err
	}
	optional := map[string][]float64{}
	for _, name := range []string{ColDemand, ColWind, ColCarbonBasedFuels} {
		if !present[name] {
			continue
		}
		vals, err := floatColumn(df, name, false)
		if err != nil {
			return model.TimeSeries{}, err
		}
		optional[name] = vals
	}

	stepDur, err := inferStep(times)
	if err != nil {
		return model.TimeSeries{}, err
	}

	intervals := make([]model.Interval, n)
	for i := range intervals {
		it := model.Interval{
			Start:       times[i],
			End:         times[i].Add(stepDur),
			Price:       prices[i],
			Curtailment: curtailment[i],
		}
		if v, ok := optional[ColDemand]; ok {
			it.Demand = v[i]
		}
		if v, ok := optional[ColWind]; ok {
			it.Wind = v[i]
		}
		if v, ok := optional[ColCarbonBasedFuels]; ok {
			it.CarbonBasedFuels = v[i]
		}
		intervals[i] = it
	}

	ts := model.TimeSeries{Intervals: intervals, StepHours: stepDur.Hours()}
	if err := ts.Validate(); err != nil {
		return model.TimeSeries{}, err
	}
	return ts, nil
}

// floatColumn reads a numeric column. Blank or NA cells in optional columns
// read as zero; anything else unparseable is an error.
func floatColumn(df dataframe.DataFrame, name string, required bool) ([]float64, error) {
	col := df.Col(name)
	if col.Err != nil {
		return nil, &model.ConfigurationError{Field: name, Reason: col.Err.Error()}
	}
	records := col.Records()
	out := make([]float64, len(records))
	for i, rec := range records {
		rec = strings.TrimSpace(rec)
		if !required && (rec == "" || strings.EqualFold(rec, "nan")) {
			continue
		}
		v, err := strconv.ParseFloat(rec, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &model.ConfigurationError{Field: name, Reason: fmt.Sprintf("row %d: %q is not a number", i+1, rec)}
		}
		out[i] = v
	}
	return out, nil
}

func inferStep(times []time.Time) (time.Duration, error) {
	if len(times) < 2 {
		return DefaultStep, nil
	}
	step := times[1].Sub(times[0])
	if step <= 0 {
		return 0, &model.ConfigurationError{Field: ColDatetime, Reason: "timestamps must increase"}
	}
	for i := 1; i < len(times); i++ {
		if d := times[i].Sub(times[i-1]); d != step {
			return 0, &model.ConfigurationError{
				Field:  ColDatetime,
				Reason: fmt.Sprintf("row %d: step %s differs from %s", i+1, d, step),
			}
		}
	}
	return step, nil
}
