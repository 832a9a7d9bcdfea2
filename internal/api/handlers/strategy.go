package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ammonia-battery/internal/api/models"
)

// StrategyHandler lists the rule-based baselines a dispatch request can
// replay next to the optimised schedule
type StrategyHandler struct{}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler() *StrategyHandler {
	return &StrategyHandler{}
}

var baselineStrategies = []models.StrategyInfo{
	{
		Name:        "threshold",
		Description: "Price threshold rule. Charges at full power below one price and discharges above another.",
		Parameters: []models.ParameterInfo{
			{
				Name:        "charge_below",
				Type:        "float",
				Description: "Charge when the price is at or below this value (currency/MWh)",
				Default:     20.0,
			},
			{
				Name:        "discharge_above",
				Type:        "float",
				Description: "Discharge when the price is at or above this value; must exceed charge_below",
				Default:     90.0,
			},
			{
				Name:        "charge_on_curtailment",
				Type:        "bool",
				Description: "Also charge whenever curtailment is available, limited to the curtailed power",
				Default:     false,
			},
		},
	},
	{
		Name:        "window",
		Description: "Time-based schedule. Charges and discharges in fixed windows each day.",
		Parameters: []models.ParameterInfo{
			{
				Name:        "charge_start",
				Type:        "string",
				Description: "Start time for charging (HH:MM format, e.g., '01:00')",
				Default:     "01:00",
			},
			{
				Name:        "charge_end",
				Type:        "string",
				Description: "End time for charging (HH:MM format; defaults to discharge_start)",
				Default:     "06:00",
			},
			{
				Name:        "discharge_start",
				Type:        "string",
				Description: "Start time for discharging (HH:MM format, e.g., '17:00')",
				Default:     "17:00",
			},
			{
				Name:        "discharge_end",
				Type:        "string",
				Description: "End time for discharging (HH:MM format; defaults to charge_start)",
				Default:     "20:00",
			},
			{
				Name:        "charge_power_mw",
				Type:        "float",
				Description: "Charge power in MW (0 = rated)",
				Default:     0.0,
			},
			{
				Name:        "discharge_power_mw",
				Type:        "float",
				Description: "Discharge power in MW (0 = rated)",
				Default:     0.0,
			},
		},
	},
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": baselineStrategies})
}
