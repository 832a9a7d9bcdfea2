package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ammonia-battery/internal/api/models"
	"ammonia-battery/internal/config"
	"ammonia-battery/internal/data"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/report"
	"ammonia-battery/internal/scenario"
	"ammonia-battery/internal/store"
)

// RunStore is the persisted run history. It is optional.
type RunStore interface {
	GetRun(id string) (store.StoredRun, error)
	ListRuns(limit int) ([]store.StoredRun, error)
	Periods(id string) ([]store.StoredPeriod, error)
	DeleteRun(id string) error
}

// DispatchHandler handles dispatch solve requests
type DispatchHandler struct {
	runner  *scenario.Runner
	cache   *store.ResultCache
	runs    RunStore
	systems *SystemHandler
	logger  *zap.Logger
}

// NewDispatchHandler creates a new dispatch handler. cache and runs may be
// nil.
func NewDispatchHandler(runner *scenario.Runner, cache *store.ResultCache, runs RunStore, systems *SystemHandler, logger *zap.Logger) *DispatchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchHandler{
		runner:  runner,
		cache:   cache,
		runs:    runs,
		systems: systems,
		logger:  logger.Named("dispatch"),
	}
}

// RunDispatch handles POST /api/v1/dispatch
func (h *DispatchHandler) RunDispatch(c *gin.Context) {
	req := models.NewDispatchRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	cfg, ts, err := h.prepare(req)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.runner.Solve(c.Request.Context(), cfg, ts)
	if err != nil {
		h.logger.Warn("dispatch failed", zap.String("scenario", cfg.Name), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispatchResponse(out, req.Options.IncludeSchedule))
}

// CompareDispatch handles POST /api/v1/dispatch/compare
func (h *DispatchHandler) CompareDispatch(c *gin.Context) {
	req := models.NewCompareRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	base, ts, err := h.prepare(req.Base)
	if err != nil {
		respondError(c, err)
		return
	}

	variations := make([]scenario.Variation, 0, len(req.Variations))
	seen := make(map[string]bool, len(req.Variations))
	for _, v := range req.Variations {
		if v.Name == "" || seen[v.Name] {
			respondBadRequest(c, "INVALID_REQUEST", fmt.Sprintf("variation names must be unique and non-empty: %q", v.Name))
			return
		}
		seen[v.Name] = true

		sv := scenario.Variation{Name: v.Name}
		if v.System != nil {
			sv.System.Plant = *v.System
		}
		if len(v.Dispatch) > 0 {
			pol := base.Dispatch
			if err := json.Unmarshal(v.Dispatch, &pol); err != nil {
				respondBadRequest(c, "INVALID_REQUEST", fmt.Sprintf("variation %s: dispatch: %v", v.Name, err))
				return
			}
			sv.Dispatch = &pol
		}
		variations = append(variations, sv)
	}

	results, err := h.runner.SweepSeries(c.Request.Context(), base, ts, variations)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CompareResponse{Comparison: comparison(results)})
}

// GetSchedule handles GET /api/v1/dispatch/:id/schedule. Recent runs are
// served from memory; older ones from the database when one is configured.
// format=csv is only available for runs still in memory.
func (h *DispatchHandler) GetSchedule(c *gin.Context) {
	id := c.Param("id")

	if run, ok := h.cache.Get(id); ok {
		if c.Query("format") == "csv" {
			c.Header("Content-Type", "text/csv")
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ScheduleFile))
			if err := report.WriteScheduleCSV(c.Writer, run.Schedule); err != nil {
				h.logger.Error("write schedule csv", zap.String("run_id", id), zap.Error(err))
			}
			return
		}
		c.JSON(http.StatusOK, models.ScheduleResponse{
			ID:      id,
			Source:  "cache",
			Periods: schedulePeriods(run.Schedule),
		})
		return
	}

	if h.runs == nil || c.Query("format") == "csv" {
		respondError(c, store.ErrNotFound)
		return
	}
	rows, err := h.runs.Periods(id)
	if err != nil {
		respondError(c, err)
		return
	}
	periods := make([]models.SchedulePeriod, len(rows))
	for i, r := range rows {
		periods[i] = models.SchedulePeriod{
			Index:       r.PeriodIndex,
			Start:       r.Start,
			Price:       r.Price,
			Curtailment: r.Curtailment,
			Action:      r.Action,
			ChargeMW:    r.ChargeMW,
			DischargeMW: r.DischargeMW,
			LevelStart:  r.LevelStart,
			LevelEnd:    r.LevelEnd,
			NetRevenue:  r.NetRevenue,
		}
	}
	c.JSON(http.StatusOK, models.ScheduleResponse{ID: id, Source: "database", Periods: periods})
}

// prepare turns a request into a validated configuration and its series.
func (h *DispatchHandler) prepare(req models.DispatchRequest) (*config.Config, model.TimeSeries, error) {
	cfg := config.Default()
	cfg.Name = req.Name
	if cfg.Name == "" {
		cfg.Name = "api"
	}
	// The series comes in the body; nothing is read from disk.
	cfg.DataFile = "request"
	cfg.Days = req.Days
	cfg.StepHours = req.StepHours
	cfg.Output = config.OutputConfig{}

	if req.Preset != "" {
		if h.systems == nil {
			return nil, model.TimeSeries{}, &model.ConfigurationError{Field: "preset", Reason: "no presets configured"}
		}
		sys, err := h.systems.Load(req.Preset)
		if err != nil {
			return nil, model.TimeSeries{}, err
		}
		cfg.System = sys
	}
	if req.System != nil {
		cfg.System = config.MergeSystem(cfg.System, config.SystemConfig{Plant: *req.System})
	}

	cfg.Dispatch = req.Dispatch
	cfg.Economics = req.Economics
	cfg.Baselines = req.Baselines
	if req.Solver.Backend != "" {
		cfg.Solver.Backend = req.Solver.Backend
	}
	if req.Solver.TimeoutSeconds > 0 {
		cfg.Solver.Timeout = time.Duration(req.Solver.TimeoutSeconds * float64(time.Second))
	}
	if req.Solver.Retry != nil {
		cfg.Solver.Retry.Enabled = *req.Solver.Retry
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.TimeSeries{}, err
	}
	ts, err := data.Payload{Data: req.Data}.TimeSeries()
	if err != nil {
		return nil, model.TimeSeries{}, err
	}
	if ts, err = cfg.PrepareSeries(ts); err != nil {
		return nil, model.TimeSeries{}, err
	}
	return &cfg, ts, nil
}

func dispatchResponse(out *scenario.Outcome, withSchedule bool) models.DispatchResponse {
	run, s := out.Run, out.Run.Schedule
	resp := models.DispatchResponse{
		ID:        run.ID,
		Scenario:  run.Scenario,
		Status:    s.Meta().Status,
		System:    out.Params,
		Meta:      s.Meta(),
		Totals:    s.Totals(),
		Economics: run.Economics,
		Analysis:  run.Analysis,
		Baselines: out.Baselines,
	}
	if n := s.Len(); n > 0 {
		resp.Window = models.TimeWindow{Start: s.Period(0).Start, End: s.Period(n - 1).End}
	}
	if withSchedule {
		resp.Schedule = s.Periods()
	}
	return resp
}

func schedulePeriods(s *model.Schedule) []models.SchedulePeriod {
	out := make([]models.SchedulePeriod, s.Len())
	for i, p := range s.Periods() {
		out[i] = models.SchedulePeriod{
			Index:       p.Index,
			Start:       p.Start,
			Price:       p.Price,
			Curtailment: p.Curtailment,
			Action:      string(p.Action),
			ChargeMW:    p.ChargeMW,
			DischargeMW: p.DischargeMW,
			LevelStart:  p.LevelStart,
			LevelEnd:    p.LevelEnd,
			NetRevenue:  p.NetRevenue,
		}
	}
	return out
}

// comparison ranks the successful members by net revenue and appends the
// failed ones in request order.
func comparison(results []scenario.SweepResult) []models.ComparisonResult {
	ok := []models.ComparisonResult{}
	var failed []models.ComparisonResult
	for _, r := range results {
		if r.Err != nil {
			_, d := errorDetail(r.Err)
			failed = append(failed, models.ComparisonResult{Name: r.Name, Error: &d})
			continue
		}
		run := r.Outcome.Run
		ok = append(ok, models.ComparisonResult{
			Name:      r.Name,
			ID:        run.ID,
			Totals:    run.Schedule.Totals(),
			NetProfit: run.Economics.System.NetAnnualProfit,
			LCOS:      economics.Finite(run.Economics.LCOS.PerMWh),
		})
	}
	sort.SliceStable(ok, func(i, j int) bool {
		return ok[i].Totals.NetRevenue > ok[j].Totals.NetRevenue
	})
	for i := range ok {
		ok[i].Rank = i + 1
	}
	return append(ok, failed...)
}
