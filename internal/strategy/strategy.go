package strategy

import (
	"ammonia-battery/internal/model"
	"ammonia-battery/internal/system"
)

// Context is what a strategy sees when deciding one period.
type Context struct {
	Index    int
	Interval model.Interval
	// Level is the storage level at the start of the period.
	Level  float64
	Params system.Parameters
}

// Decision is a requested operating point. The simulator clips it to the
// equipment and storage limits.
type Decision struct {
	ChargeMW    float64
	DischargeMW float64
}

// Strategy is a non-anticipative rule used as a baseline against the
// optimised schedule.
type Strategy interface {
	Name() string
	Decide(ctx Context) Decision
}
