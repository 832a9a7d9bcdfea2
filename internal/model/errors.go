package model

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports invalid input detected before any solve.
// It is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// InfeasibleScheduleError means no schedule satisfies every constraint.
// The fields carry enough of the scenario to reproduce the failure.
type InfeasibleScheduleError struct {
	Scenario       string
	Periods        int
	PriceLen       int
	CurtailmentLen int
	InitialPolicy  string
	TerminalPolicy string
	Detail         string
}

func (e *InfeasibleScheduleError) Error() string {
	msg := fmt.Sprintf(
		"infeasible schedule for scenario %q: %d periods (price=%d, curtailment=%d), initial=%s, terminal=%s",
		e.Scenario, e.Periods, e.PriceLen, e.CurtailmentLen, e.InitialPolicy, e.TerminalPolicy,
	)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// SolverError reports that the backend was unavailable or failed for a
// reason other than infeasibility or timeout.
type SolverError struct {
	Backend string
	Detail  string
	Err     error
}

func (e *SolverError) Error() string {
	msg := fmt.Sprintf("solver %s failed", e.Backend)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SolverError) Unwrap() error { return e.Err }

// SolverTimeoutError reports that a solve exceeded its wall-clock budget.
type SolverTimeoutError struct {
	Backend string
	Timeout time.Duration
}

func (e *SolverTimeoutError) Error() string {
	return fmt.Sprintf("solver %s exceeded time limit of %s", e.Backend, e.Timeout)
}

// IsRetryable reports whether err belongs to the classes a caller may retry
// once with a relaxed timeout or another backend.
func IsRetryable(err error) bool {
	var se *SolverError
	var te *SolverTimeoutError
	return errors.As(err, &se) || errors.As(err, &te)
}
