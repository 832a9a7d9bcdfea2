package model

// Action is a human-friendly operating mode for a period.
// Keep these values stable; they are written to CSV output and stored runs.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
	// ActionCycling marks a period where both subsystems run at once,
	// which only the linear mutual-exclusion mode allows.
	ActionCycling Action = "CYCLING"
)

// flowEpsilon is the MW below which a flow is reported as zero.
const flowEpsilon = 1e-6

// ActionFromFlows classifies a period from its charging and discharging rates (MW).
func ActionFromFlows(chargeMW, dischargeMW float64) Action {
	charging := chargeMW > flowEpsilon
	discharging := dischargeMW > flowEpsilon
	switch {
	case charging && discharging:
		return ActionCycling
	case charging:
		return ActionCharging
	case discharging:
		return ActionDischarging
	default:
		return ActionIdle
	}
}
