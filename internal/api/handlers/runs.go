package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ammonia-battery/internal/api/models"
	"ammonia-battery/internal/store"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// RunHandler serves the persisted run history
type RunHandler struct {
	runs   RunStore
	logger *zap.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunStore, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{runs: runs, logger: logger.Named("runs")}
}

// ListRuns handles GET /api/v1/runs. sort=profit ranks the returned runs by
// net annual profit instead of recency.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := defaultRunLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondBadRequest(c, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	order := c.DefaultQuery("sort", "recent")
	if order != "recent" && order != "profit" {
		respondBadRequest(c, "INVALID_SORT", "sort must be 'recent' or 'profit'")
		return
	}

	stored, err := h.runs.ListRuns(limit)
	if err != nil {
		h.logger.Error("list runs", zap.Error(err))
		respondError(c, err)
		return
	}

	runs := make([]models.RunInfo, len(stored))
	for i, r := range stored {
		runs[i] = runInfo(r)
	}
	if order == "profit" {
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].NetAnnualProfit > runs[j].NetAnnualProfit
		})
		for i := range runs {
			runs[i].Rank = i + 1
		}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	r, err := h.runs.GetRun(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runInfo(r))
}

// DeleteRun handles DELETE /api/v1/runs/:id
func (h *RunHandler) DeleteRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.runs.DeleteRun(id); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("deleted run", zap.String("run_id", id))
	c.Status(http.StatusNoContent)
}

func runInfo(r store.StoredRun) models.RunInfo {
	return models.RunInfo{
		ID:              r.ID,
		Scenario:        r.Scenario,
		CreatedAt:       r.CreatedAt,
		Status:          r.Status,
		Backend:         r.Backend,
		Periods:         r.Periods,
		NetRevenue:      r.NetRevenue,
		NetAnnualProfit: r.NetAnnualProfit,
		LCOA:            r.LCOA,
		LCOE:            r.LCOE,
		LCOS:            r.LCOS,
	}
}
