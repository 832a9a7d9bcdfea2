package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ammonia-battery/internal/api/models"
	"ammonia-battery/internal/equipment"
	"ammonia-battery/internal/scenario"
)

// TechnologyHandler describes the A2P technologies
type TechnologyHandler struct{}

func NewTechnologyHandler() *TechnologyHandler {
	return &TechnologyHandler{}
}

// ListTechnologies handles GET /api/v1/technologies. The comparison prices
// the catalogue plant at p2a_mw (default 100) and storage_t (default 5000).
func (h *TechnologyHandler) ListTechnologies(c *gin.Context) {
	p2a, ok := floatQuery(c, "p2a_mw", 100)
	if !ok {
		return
	}
	storage, ok := floatQuery(c, "storage_t", 5000)
	if !ok {
		return
	}

	rows, err := scenario.CompareTechnologies(p2a, storage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TechnologyResponse{
		Technologies: equipment.Technologies(),
		Comparison:   rows,
	})
}

// floatQuery reads a positive float query parameter, answering 400 itself
// when it is malformed.
func floatQuery(c *gin.Context, key string, def float64) (float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		respondBadRequest(c, "INVALID_PARAMETER", key+" must be a positive number")
		return 0, false
	}
	return v, true
}
