package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"ammonia-battery/internal/config"
	"ammonia-battery/internal/dispatch"
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
)

// Variation is an overlay applied to the base configuration for one sweep
// member. Zero system fields keep the base values.
type Variation struct {
	Name     string              `yaml:"name"`
	System   config.SystemConfig `yaml:"system"`
	Dispatch *dispatch.Policy    `yaml:"dispatch"`
}

// Apply returns a copy of base with the variation laid over it.
func (v Variation) Apply(base config.Config) config.Config {
	c := base
	c.Name = base.Name + "/" + v.Name
	c.System = config.MergeSystem(base.System, v.System)
	if v.Dispatch != nil {
		c.Dispatch = *v.Dispatch
	}
	if base.Output.Dir != "" {
		c.Output.Dir = filepath.Join(base.Output.Dir, v.Name)
	}
	return c
}

// LoadVariations reads a YAML file with a top-level variations list.
func LoadVariations(path string) ([]Variation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w struct {
		Variations []Variation `yaml:"variations"`
	}
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w.Variations, nil
}

// Grid crosses P2A capacities with A2P technologies. An empty list keeps the
// base value for that axis.
func Grid(p2a []float64, techs []equipment.Technology) []Variation {
	if len(p2a) == 0 {
		p2a = []float64{0}
	}
	if len(techs) == 0 {
		techs = []equipment.Technology{""}
	}
	var out []Variation
	for _, mw := range p2a {
		for _, tech := range techs {
			var v Variation
			v.System.Plant.P2AMW = mw
			v.System.Plant.Technology = tech
			v.Name = gridName(mw, tech)
			out = append(out, v)
		}
	}
	return out
}

func gridName(mw float64, tech equipment.Technology) string {
	name := "base"
	if mw > 0 {
		name = "p2a_" + strconv.FormatFloat(mw, 'f', -1, 64)
	}
	if tech != "" {
		name += "_" + string(tech)
	}
	return name
}

// SweepResult is one member of a sweep. Err is set when the member failed.
type SweepResult struct {
	Name    string
	Config  config.Config
	Outcome *Outcome
	Err     error
}

// Sweep solves every variation of base in parallel, each with its own engine.
// A failed member is reported in its result and does not stop the others;
// the returned error is only set when ctx ends the sweep.
func (r *Runner) Sweep(ctx context.Context, base *config.Config, variations []Variation) ([]SweepResult, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	ts, err := base.LoadSeries()
	if err != nil {
		return nil, err
	}
	return r.SweepSeries(ctx, base, ts, variations)
}

// SweepSeries is Sweep over an already loaded series. base.DataFile is not
// read.
func (r *Runner) SweepSeries(ctx context.Context, base *config.Config, ts model.TimeSeries, variations []Variation) ([]SweepResult, error) {
	logger := r.logger.With(zap.String("op", "scenario.Sweep"), zap.String("scenario", base.Name))
	logger.Info("starting sweep", zap.Int("variations", len(variations)), zap.Int("workers", r.workers))

	results := make([]SweepResult, len(variations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, v := range variations {
		i, v := i, v
		cfg := v.Apply(*base)
		results[i] = SweepResult{Name: v.Name, Config: cfg}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			res := &results[i]
			if err := res.Config.Validate(); err != nil {
				res.Err = err
				return nil
			}
			out, err := r.Solve(gctx, &res.Config, ts)
			if err != nil {
				res.Err = err
				return nil
			}
			res.Outcome = out
			if err := r.writeOutputs(&res.Config, out); err != nil {
				res.Err = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Warn("sweep member failed", zap.String("variation", res.Name), zap.Error(res.Err))
		}
	}
	logger.Info("sweep finished", zap.Int("failed", failed))
	return results, nil
}

// Schedules returns the schedules of the successful members.
func Schedules(results []SweepResult) []*model.Schedule {
	var out []*model.Schedule
	for _, r := range results {
		if r.Err == nil && r.Outcome != nil {
			out = append(out, r.Outcome.Run.Schedule)
		}
	}
	return out
}
