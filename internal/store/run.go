// Package store keeps solved runs: briefly in memory for follow-up API
// requests, and durably in SQLite.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
)

var ErrNotFound = errors.New("store: run not found")

// Run is one solved scenario with its evaluation.
type Run struct {
	ID        string
	Scenario  string
	CreatedAt time.Time
	Schedule  *model.Schedule
	Economics economics.Report
	Analysis  analysis.Report
}

// NewRun stamps a fresh ID and creation time.
func NewRun(s *model.Schedule, econ economics.Report, an analysis.Report) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Scenario:  s.Scenario(),
		CreatedAt: time.Now().UTC(),
		Schedule:  s,
		Economics: econ,
		Analysis:  an,
	}
}
