package strategy

import (
	"fmt"
	"strings"
)

// WindowParams implements a simple daily time-window rule:
// - Charge during [ChargeStart, ChargeEnd)
// - Discharge during [DischargeStart, DischargeEnd)
// - Otherwise IDLE
//
// Times are read in the location of each interval's Start.
// Zero power means "full rated power".
type WindowParams struct {
	ChargeStart      string  `yaml:"charge_start" json:"charge_start"`       // "HH:MM"
	ChargeEnd        string  `yaml:"charge_end" json:"charge_end"`           // "HH:MM" (optional; default = DischargeStart)
	DischargeStart   string  `yaml:"discharge_start" json:"discharge_start"` // "HH:MM"
	DischargeEnd     string  `yaml:"discharge_end" json:"discharge_end"`     // "HH:MM" (optional; default = ChargeStart)
	ChargePowerMW    float64 `yaml:"charge_power_mw" json:"charge_power_mw"`
	DischargePowerMW float64 `yaml:"discharge_power_mw" json:"discharge_power_mw"`
}

type WindowStrategy struct {
	params WindowParams
	csMins int
	ceMins int
	dsMins int
	deMins int
}

// NewWindow parses the window bounds up front.
func NewWindow(p WindowParams) (*WindowStrategy, error) {
	cs, err := parseHHMM(p.ChargeStart)
	if err != nil {
		return nil, fmt.Errorf("charge_start: %w", err)
	}
	ds, err := parseHHMM(p.DischargeStart)
	if err != nil {
		return nil, fmt.Errorf("discharge_start: %w", err)
	}
	ce := ds
	if strings.TrimSpace(p.ChargeEnd) != "" {
		if ce, err = parseHHMM(p.ChargeEnd); err != nil {
			return nil, fmt.Errorf("charge_end: %w", err)
		}
	}
	de := cs
	if strings.TrimSpace(p.DischargeEnd) != "" {
		if de, err = parseHHMM(p.DischargeEnd); err != nil {
			return nil, fmt.Errorf("discharge_end: %w", err)
		}
	}
	return &WindowStrategy{params: p, csMins: cs, ceMins: ce, dsMins: ds, deMins: de}, nil
}

func (s *WindowStrategy) Name() string { return "window" }

func (s *WindowStrategy) Decide(ctx Context) Decision {
	start := ctx.Interval.Start
	mins := start.Hour()*60 + start.Minute()

	if inWindow(mins, s.csMins, s.ceMins) {
		return Decision{ChargeMW: orRated(s.params.ChargePowerMW, ctx.Params.MaxCharge)}
	}
	if inWindow(mins, s.dsMins, s.deMins) {
		return Decision{DischargeMW: orRated(s.params.DischargePowerMW, ctx.Params.MaxDischarge)}
	}
	return Decision{}
}

func orRated(v, rated float64) float64 {
	if v <= 0 {
		return rated
	}
	return v
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// inWindow checks whether tMins is in [start, end) on a 24h clock.
// If start == end, the window is empty (always false).
// If start > end, it wraps across midnight.
func inWindow(tMins, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return tMins >= start && tMins < end
	}
	return tMins >= start || tMins < end
}
