package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ammonia-battery/internal/api/models"
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/store"
)

// errorDetail maps the error taxonomy onto an HTTP status and error body.
func errorDetail(err error) (int, models.ErrorDetail) {
	var (
		ce *model.ConfigurationError
		ie *model.InfeasibleScheduleError
		te *model.SolverTimeoutError
		se *model.SolverError
	)
	switch {
	case errors.As(err, &ce):
		d := models.ErrorDetail{Code: "INVALID_CONFIG", Message: err.Error()}
		if ce.Field != "" {
			d.Details = map[string]interface{}{"field": ce.Field}
		}
		return http.StatusBadRequest, d
	case errors.As(err, &ie):
		return http.StatusUnprocessableEntity, models.ErrorDetail{
			Code:    "INFEASIBLE_SCHEDULE",
			Message: err.Error(),
			Details: map[string]interface{}{
				"scenario":        ie.Scenario,
				"periods":         ie.Periods,
				"price_len":       ie.PriceLen,
				"curtailment_len": ie.CurtailmentLen,
				"initial":         ie.InitialPolicy,
				"terminal":        ie.TerminalPolicy,
			},
		}
	case errors.As(err, &te):
		return http.StatusGatewayTimeout, models.ErrorDetail{
			Code:    "SOLVER_TIMEOUT",
			Message: err.Error(),
			Details: map[string]interface{}{
				"backend":         te.Backend,
				"timeout_seconds": te.Timeout.Seconds(),
			},
		}
	case errors.As(err, &se):
		return http.StatusBadGateway, models.ErrorDetail{
			Code:    "SOLVER_ERROR",
			Message: err.Error(),
			Details: map[string]interface{}{"backend": se.Backend},
		}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, models.ErrorDetail{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, models.ErrorDetail{Code: "CANCELLED", Message: err.Error()}
	default:
		return http.StatusInternalServerError, models.ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error()}
	}
}

func respondError(c *gin.Context, err error) {
	status, d := errorDetail(err)
	c.JSON(status, models.ErrorResponse{Error: d})
}

func respondBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
