package models

import (
	"encoding/json"

	"ammonia-battery/internal/config"
	"ammonia-battery/internal/data"
	"ammonia-battery/internal/dispatch"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/system"
)

// DispatchRequest represents the request body for a single dispatch solve
type DispatchRequest struct {
	Name string `json:"name,omitempty"`
	// Preset is the ID of a system file under the systems directory.
	Preset string        `json:"preset,omitempty"`
	System *system.Plant `json:"system,omitempty"` // overrides over the preset
	Data   []data.Record `json:"data" binding:"required,min=1"`

	Days      float64 `json:"days,omitempty"`
	StepHours float64 `json:"step_hours,omitempty"`

	Dispatch  dispatch.Policy       `json:"dispatch"`
	Solver    SolverOptions         `json:"solver,omitempty"`
	Economics economics.Assumptions `json:"economics"`
	Baselines config.BaselineConfig `json:"baselines,omitempty"`
	Options   DispatchOptions       `json:"options,omitempty"`
}

// NewDispatchRequest returns a request holding the defaults that a decoded
// body is laid over.
func NewDispatchRequest() DispatchRequest {
	return DispatchRequest{
		Dispatch:  dispatch.DefaultPolicy(),
		Economics: economics.DefaultAssumptions(),
	}
}

// SolverOptions selects the backend and its wall-clock budget
type SolverOptions struct {
	Backend        string  `json:"backend,omitempty"` // "auto", "simplex", "cbc"
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
	Retry          *bool   `json:"retry,omitempty"`
}

// DispatchOptions contains optional response parameters
type DispatchOptions struct {
	IncludeSchedule bool `json:"include_schedule,omitempty"` // default: false
}

// CompareRequest represents a request to solve several variations of one
// base request over the same series
type CompareRequest struct {
	Base       DispatchRequest    `json:"base"`
	Variations []VariationRequest `json:"variations" binding:"required,min=1"`
}

// NewCompareRequest returns a request whose base holds the defaults
func NewCompareRequest() CompareRequest {
	return CompareRequest{Base: NewDispatchRequest()}
}

// VariationRequest overlays one comparison member on the base request.
// Dispatch keys are decoded over the base policy.
type VariationRequest struct {
	Name     string          `json:"name" binding:"required"`
	System   *system.Plant   `json:"system,omitempty"`
	Dispatch json.RawMessage `json:"dispatch,omitempty"`
}
