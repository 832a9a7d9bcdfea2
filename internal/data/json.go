package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"ammonia-battery/internal/model"
)

// Record is one row of a JSON time-series payload.
type Record struct {
	Datetime         string   `json:"datetime"`
	Price            float64  `json:"price"`
	Curtailment      float64  `json:"curtailment"`
	Demand           *float64 `json:"demand,omitempty"`
	Wind             *float64 `json:"wind,omitempty"`
	CarbonBasedFuels *float64 `json:"carbon_based_fuels,omitempty"`
}

// Payload is the {"data": [...]} document accepted by LoadJSON.
type Payload struct {
	Data []Record `json:"data"`
}

func LoadJSON(path string) (model.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	ts, err := DecodeJSON(f)
	if err != nil {
		return model.TimeSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

func DecodeJSON(r io.Reader) (model.TimeSeries, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return model.TimeSeries{}, &model.ConfigurationError{Field: "data_file", Reason: err.Error()}
	}
	return p.TimeSeries()
}

// TimeSeries converts the records, applying the same step rules as ReadCSV.
func (p Payload) TimeSeries() (model.TimeSeries, error) {
	if len(p.Data) == 0 {
		return model.TimeSeries{}, &model.ConfigurationError{Field: "data", Reason: "no rows"}
	}
	times := make([]time.Time, len(p.Data))
	for i, rec := range p.Data {
		t, err := parseTime(rec.Datetime)
		if err != nil {
			return model.TimeSeries{}, &model.ConfigurationError{Field: "datetime", Reason: fmt.Sprintf("row %d: %v", i+1, err)}
		}
		times[i] = t
	}
	stepDur, err := inferStep(times)
	if err != nil {
		return model.TimeSeries{}, err
	}

	intervals := make([]model.Interval, len(p.Data))
	for i, rec := range p.Data {
		intervals[i] = model.Interval{
			Start:            times[i],
			End:              times[i].Add(stepDur),
			Price:            rec.Price,
			Curtailment:      rec.Curtailment,
			Demand:           deref(rec.Demand),
			Wind:             deref(rec.Wind),
			CarbonBasedFuels: deref(rec.CarbonBasedFuels),
		}
	}
	ts := model.TimeSeries{Intervals: intervals, StepHours: stepDur.Hours()}
	if err := ts.Validate(); err != nil {
		return model.TimeSeries{}, err
	}
	return ts, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
