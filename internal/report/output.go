package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

// File names written under the output directory.
const (
	ScheduleFile = "optimization_results.csv"
	PlotFile     = "optimization_plot.png"
	SummaryFile  = "summary.txt"
	ResultFile   = "result.json"
)

// Options selects which artifacts Write produces.
type Options struct {
	CSV     bool
	Plot    bool
	Summary bool
	JSON    bool
}

// Result is the JSON artifact of a run.
type Result struct {
	Scenario   string              `json:"scenario"`
	System     string              `json:"system,omitempty"`
	Technology string              `json:"technology,omitempty"`
	Parameters system.Parameters   `json:"parameters"`
	Meta       model.SolveMetadata `json:"solve"`
	Totals     model.Totals        `json:"totals"`
	Economics  economics.Report    `json:"economics"`
	Analysis   analysis.Report     `json:"analysis"`
}

func NewResult(in Input) Result {
	r := Result{
		Scenario:   in.Scenario,
		System:     in.SystemName,
		Technology: in.Technology,
		Parameters: in.Params,
		Economics:  in.Economics,
		Analysis:   in.Analysis,
	}
	if in.Schedule != nil {
		r.Meta = in.Schedule.Meta()
		r.Totals = in.Schedule.Totals()
	}
	return r
}

func WriteJSON(w io.Writer, in Input) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewResult(in))
}

// Write renders the selected artifacts into dir and returns their paths.
func Write(dir string, in Input, opts Options) ([]string, error) {
	if in.Schedule == nil {
		return nil, fmt.Errorf("report %q: no schedule", in.Scenario)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	emit := func(name string, write func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := write(f); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if opts.CSV {
		if err := emit(ScheduleFile, func(w io.Writer) error { return WriteScheduleCSV(w, in.Schedule) }); err != nil {
			return written, err
		}
	}
	if opts.Plot {
		if err := emit(PlotFile, func(w io.Writer) error { return WritePlot(w, in.Schedule, in.Scenario) }); err != nil {
			return written, err
		}
	}
	if opts.Summary {
		if err := emit(SummaryFile, func(w io.Writer) error { return WriteSummary(w, in) }); err != nil {
			return written, err
		}
	}
	if opts.JSON {
		if err := emit(ResultFile, func(w io.Writer) error { return WriteJSON(w, in) }); err != nil {
			return written, err
		}
	}
	return written, nil
}
