package models

import (
	"time"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/scenario"
	"ammonia-battery/internal/system"
)

// DispatchResponse represents the response from a dispatch solve
type DispatchResponse struct {
	ID        string               `json:"id"`
	Scenario  string               `json:"scenario"`
	Status    string               `json:"status"`
	Window    TimeWindow           `json:"window"`
	System    system.Parameters    `json:"system"`
	Meta      model.SolveMetadata  `json:"solve"`
	Totals    model.Totals         `json:"totals"`
	Economics economics.Report     `json:"economics"`
	Analysis  analysis.Report      `json:"analysis"`
	Baselines []scenario.Baseline  `json:"baselines,omitempty"`
	Schedule  []model.PeriodResult `json:"schedule,omitempty"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScheduleResponse is the per-period schedule of a stored run
type ScheduleResponse struct {
	ID      string           `json:"id"`
	Source  string           `json:"source"` // "cache" or "database"
	Periods []SchedulePeriod `json:"periods"`
}

// SchedulePeriod is the persisted subset of a period result
type SchedulePeriod struct {
	Index       int       `json:"index"`
	Start       time.Time `json:"start"`
	Price       float64   `json:"price"`
	Curtailment float64   `json:"curtailment"`
	Action      string    `json:"action"`
	ChargeMW    float64   `json:"charge_mw"`
	DischargeMW float64   `json:"discharge_mw"`
	LevelStart  float64   `json:"level_start"`
	LevelEnd    float64   `json:"level_end"`
	NetRevenue  float64   `json:"net_revenue"`
}

// CompareResponse represents the response from a comparison
type CompareResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation. Error is set and the
// other fields are empty when the member failed.
type ComparisonResult struct {
	Rank      int          `json:"rank,omitempty"`
	Name      string       `json:"name"`
	ID        string       `json:"id,omitempty"`
	Totals    model.Totals `json:"totals"`
	NetProfit float64      `json:"net_annual_profit"`
	LCOS      *float64     `json:"lcos_per_mwh"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// RunInfo summarises a persisted run
type RunInfo struct {
	Rank            int       `json:"rank,omitempty"`
	ID              string    `json:"id"`
	Scenario        string    `json:"scenario"`
	CreatedAt       time.Time `json:"created_at"`
	Status          string    `json:"status"`
	Backend         string    `json:"backend"`
	Periods         int       `json:"periods"`
	NetRevenue      float64   `json:"net_revenue"`
	NetAnnualProfit float64   `json:"net_annual_profit"`
	LCOA            *float64  `json:"lcoa_per_tonne"`
	LCOE            *float64  `json:"lcoe_per_mwh"`
	LCOS            *float64  `json:"lcos_per_mwh"`
}

// SystemInfo represents information about a system preset
type SystemInfo struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	File  string      `json:"file"`
	Specs SystemSpecs `json:"specs"`
}

// SystemSpecs contains the catalogue plant sizes
type SystemSpecs struct {
	P2AMW         float64              `json:"p2a_capacity_mw"`
	StorageTonnes float64              `json:"storage_capacity_t"`
	A2PMW         float64              `json:"a2p_capacity_mw"`
	Technology    equipment.Technology `json:"a2p_technology"`
	Custom        bool                 `json:"custom_units,omitempty"`
}

// TechnologyResponse lists the A2P technologies and their cost comparison
type TechnologyResponse struct {
	Technologies []equipment.TechnologyInfo      `json:"technologies"`
	Comparison   []scenario.TechnologyComparison `json:"comparison"`
}

// StrategyInfo represents information about a baseline strategy
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a strategy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "bool", "string"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
