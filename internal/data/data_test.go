package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/model"
)

const sampleCSV = `DATETIME,PRICE,DEMAND,WIND,CURTAILMENT,CARBON_BASED_FUELS
2023-01-01 00:00:00,45.5,25000,8000,0,9000
2023-01-01 00:30:00,-12.25,24000,9000,150.5,8500
2023-01-01 01:00:00,30,23000,,80,
2023-01-01 01:30:00,70,22000,7000,0,8000
`

func TestReadCSV(t *testing.T) {
	ts, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, ts.Len())
	assert.Equal(t, 0.5, ts.StepHours)
	assert.Equal(t, []float64{45.5, -12.25, 30, 70}, ts.Prices())
	assert.Equal(t, []float64{0, 150.5, 80, 0}, ts.Curtailment())

	first := ts.Intervals[0]
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 30, 0, 0, time.UTC), first.End)
	assert.Equal(t, 25000.0, first.Demand)
	assert.Equal(t, 8000.0, first.Wind)
	assert.Equal(t, 9000.0, first.CarbonBasedFuels)

	assert.Zero(t, ts.Intervals[2].Wind)
	assert.Zero(t, ts.Intervals[2].CarbonBasedFuels)
}

func TestReadCSVRequiredColumnsOnly(t *testing.T) {
	csv := "DATETIME,PRICE,CURTAILMENT\n2023-06-01T00:00:00Z,10,0\n2023-06-01T01:00:00Z,20,5\n"
	ts, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1.0, ts.StepHours)
	assert.Zero(t, ts.Intervals[0].Demand)
}

func TestReadCSVSingleRowUsesDefaultStep(t *testing.T) {
	ts, err := ReadCSV(strings.NewReader("DATETIME,PRICE,CURTAILMENT\n2023-06-01 00:00,10,0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.5, ts.StepHours)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		csv   string
		field string
	}{
		{
			name:  "missing curtailment",
			csv:   "DATETIME,PRICE\n2023-01-01 00:00,1\n2023-01-01 00:30,2\n",
			field: "data_file",
		},
		{
			name:  "bad timestamp",
			csv:   "DATETIME,PRICE,CURTAILMENT\nyesterday,1,0\n2023-01-01 00:30,2,0\n",
			field: ColDatetime,
		},
		{
			name:  "non-uniform step",
			csv:   "DATETIME,PRICE,CURTAILMENT\n2023-01-01 00:00,1,0\n2023-01-01 00:30,2,0\n2023-01-01 01:30,3,0\n",
			field: ColDatetime,
		},
		{
			name:  "decreasing timestamps",
			csv:   "DATETIME,PRICE,CURTAILMENT\n2023-01-01 00:30,1,0\n2023-01-01 00:00,2,0\n",
			field: ColDatetime,
		},
		{
			name:  "bad price",
			csv:   "DATETIME,PRICE,CURTAILMENT\n2023-01-01 00:00,abc,0\n2023-01-01 00:30,2,0\n",
			field: ColPrice,
		},
		{
			name:  "blank required value",
			csv:   "DATETIME,PRICE,CURTAILMENT\n2023-01-01 00:00,1,\n2023-01-01 00:30,2,0\n",
			field: ColCurtailment,
		},
		{
			name:  "negative curtailment",
			csv:   "DATETIME,PRICE,CURTAILMENT\n2023-01-01 00:00,1,-4\n2023-01-01 00:30,2,0\n",
			field: "curtailment",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.csv))
			var ce *model.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ts, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 4, ts.Len())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	body := `{"data":[
		{"datetime":"2023-01-01T00:00:00Z","price":50,"curtailment":0,"wind":100},
		{"datetime":"2023-01-01T00:30:00Z","price":-5,"curtailment":12}
	]}`
	ts, err := DecodeJSON(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 0.5, ts.StepHours)
	assert.Equal(t, []float64{50, -5}, ts.Prices())
	assert.Equal(t, 100.0, ts.Intervals[0].Wind)
	assert.Zero(t, ts.Intervals[1].Wind)

	path := filepath.Join(t.TempDir(), "series.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err = LoadJSON(path)
	assert.NoError(t, err)

	var ce *model.ConfigurationError
	_, err = DecodeJSON(strings.NewReader(`{"data":[]}`))
	assert.ErrorAs(t, err, &ce)
	_, err = DecodeJSON(strings.NewReader(`{"data":`))
	assert.ErrorAs(t, err, &ce)
}

func halfHourly(t *testing.T, prices, curtailment []float64) model.TimeSeries {
	t.Helper()
	ts, err := model.NewTimeSeries(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 0.5, prices, curtailment)
	require.NoError(t, err)
	return ts
}

func TestResample(t *testing.T) {
	ts := halfHourly(t, []float64{10, 20, 30, 50, 70}, []float64{0, 4, 2, 2, 9})

	hourly, err := Resample(ts, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, hourly.StepHours)
	assert.Equal(t, []float64{15, 40}, hourly.Prices())
	assert.Equal(t, []float64{2, 2}, hourly.Curtailment())
	assert.Equal(t, ts.Intervals[0].Start, hourly.Intervals[0].Start)
	assert.Equal(t, ts.Intervals[3].End, hourly.Intervals[1].End)
	assert.NoError(t, hourly.Validate())

	same, err := Resample(ts, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ts, same)

	var ce *model.ConfigurationError
	_, err = Resample(ts, 0.75)
	assert.ErrorAs(t, err, &ce)
	_, err = Resample(ts, 0.25)
	assert.ErrorAs(t, err, &ce)
	_, err = Resample(ts, 4)
	assert.ErrorAs(t, err, &ce)
}

func TestHead(t *testing.T) {
	prices := make([]float64, 96)
	ts := halfHourly(t, prices, make([]float64, 96))

	assert.Equal(t, 48, Head(ts, 1).Len())
	assert.Equal(t, 96, Head(ts, 5).Len())
	assert.Equal(t, 96, Head(ts, 0).Len())
	assert.Equal(t, 1, Head(ts, 0.001).Len())
}
