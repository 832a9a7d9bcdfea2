package equipment

import (
	"fmt"

	"ammonia-battery/internal/model"
)

// CEPCI is the Chemical Engineering Plant Cost Index by year.
// Prefer base years within five years of the target.
var CEPCI = map[int]float64{
	2024: 799.1, 2023: 797.9, 2022: 816.0, 2021: 708.8, 2020: 596.2,
	2019: 607.5, 2018: 603.1, 2017: 567.5, 2016: 541.7, 2015: 556.8,
	2014: 576.1, 2013: 567.3, 2012: 584.6, 2011: 585.7, 2010: 550.8,
	2009: 521.9, 2008: 575.4, 2007: 525.4, 2006: 499.6, 2005: 468.2,
	2004: 444.2, 2003: 402.0, 2002: 395.6, 2001: 394.3,
}

// DefaultCostYear is the year every catalogue cost is escalated to.
const DefaultCostYear = 2024

// AdjustCEPCI escalates cost from baseYear to targetYear money.
func AdjustCEPCI(cost float64, baseYear, targetYear int) (float64, error) {
	base, ok := CEPCI[baseYear]
	if !ok {
		return 0, &model.ConfigurationError{Field: "cost_year", Reason: fmt.Sprintf("no CEPCI data for %d", baseYear)}
	}
	target, ok := CEPCI[targetYear]
	if !ok {
		return 0, &model.ConfigurationError{Field: "cost_year", Reason: fmt.Sprintf("no CEPCI data for %d", targetYear)}
	}
	return cost * target / base, nil
}

// Currency is the currency a cost correlation is quoted in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

const (
	USDToGBP = 0.75
	EURToGBP = 0.85
)

// ToGBP converts amount quoted in c to GBP.
func ToGBP(amount float64, c Currency) float64 {
	switch c {
	case USD:
		return amount * USDToGBP
	case EUR:
		return amount * EURToGBP
	default:
		return amount
	}
}
