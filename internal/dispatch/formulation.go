package dispatch

import (
	"fmt"
	"math"

	"ammonia-battery/internal/solver"
)

// columns maps decision variables to problem columns. Slices that do not
// apply to a scenario are nil.
type columns struct {
	charge    []int
	discharge []int
	level     []int // N+1 boundaries
	uptake    []int
	onCharge  []int
	onDisch   []int
}

// formulate writes the dispatch program for s.
//
// Per period t (Δt hours, k storage units per MWh):
//
//	level(t) = level(t-1) + k·Δt·(η_c·charge(t) − discharge(t)/η_d)
//	MinLevel <= level(b) <= TankCapacity
//	0 <= charge(t) <= MaxCharge (and <= curtailment(t) when coupled)
//	0 <= discharge(t) <= MaxDischarge
//
// plus the initial, terminal, exclusion, min-load, ramp, minimum-energy and
// inventory rows the policy asks for.
func formulate(s Scenario) (*solver.Problem, columns) {
	p := s.Params
	pol := s.Policy
	n := s.Series.Len()
	dt := s.Series.StepHours
	k := p.StoragePerMWh

	sense := solver.Minimize
	sign := 1.0
	if pol.Objective == ObjectiveValue {
		sense = solver.Maximize
		sign = -1
	}
	prob := &solver.Problem{Name: s.Name, Sense: sense}

	useBinaries := pol.MutualExclusion == ExclusionBinary || p.UsesMinLoad()
	creditOnCharge := pol.CurtailmentCredit > 0 && pol.CurtailmentCoupling
	separateUptake := pol.CurtailmentCredit > 0 && !pol.CurtailmentCoupling

	var cols columns
	cols.charge = make([]int, n)
	cols.discharge = make([]int, n)
	cols.level = make([]int, n+1)
	if separateUptake {
		cols.uptake = make([]int, n)
	}
	if useBinaries {
		cols.onCharge = make([]int, n)
		cols.onDisch = make([]int, n)
	}

	for t, it := range s.Series.Intervals {
		ub := p.MaxCharge
		if pol.CurtailmentCoupling {
			ub = math.Min(ub, it.Curtailment)
		}
		costC := it.Price + p.VOMCharge
		if creditOnCharge {
			costC -= pol.CurtailmentCredit
		}
		cols.charge[t] = prob.AddVar(solver.Variable{
			Name:  fmt.Sprintf("charge_%d", t),
			Upper: ub,
			Obj:   sign * dt * costC,
		})
		cols.discharge[t] = prob.AddVar(solver.Variable{
			Name:  fmt.Sprintf("discharge_%d", t),
			Upper: p.MaxDischarge,
			Obj:   sign * dt * (p.VOMDischarge - it.Price),
		})
		if separateUptake {
			cols.uptake[t] = prob.AddVar(solver.Variable{
				Name:  fmt.Sprintf("uptake_%d", t),
				Upper: math.Min(it.Curtailment, p.MaxCharge),
				Obj:   sign * dt * -pol.CurtailmentCredit,
			})
		}
		if useBinaries {
			cols.onCharge[t] = prob.AddVar(solver.Variable{Name: fmt.Sprintf("on_charge_%d", t), Upper: 1, Integer: true})
			cols.onDisch[t] = prob.AddVar(solver.Variable{Name: fmt.Sprintf("on_discharge_%d", t), Upper: 1, Integer: true})
		}
	}
	for b := 0; b <= n; b++ {
		cols.level[b] = prob.AddVar(solver.Variable{
			Name:  fmt.Sprintf("level_%d", b),
			Lower: p.MinLevel,
			Upper: p.TankCapacity,
		})
	}

	if pol.Initial.Mode == InitialFixed {
		prob.AddRow("initial", solver.EQ, pol.Initial.Fraction*p.TankCapacity, solver.Term{Var: cols.level[0], Coef: 1})
	}
	if pol.Terminal == TerminalCyclic {
		prob.AddRow("cyclic", solver.EQ, 0,
			solver.Term{Var: cols.level[n], Coef: 1},
			solver.Term{Var: cols.level[0], Coef: -1},
		)
	}

	var energy []solver.Term
	for t := 0; t < n; t++ {
		c, d := cols.charge[t], cols.discharge[t]
		prob.AddRow(fmt.Sprintf("balance_%d", t), solver.EQ, 0,
			solver.Term{Var: cols.level[t+1], Coef: 1},
			solver.Term{Var: cols.level[t], Coef: -1},
			solver.Term{Var: c, Coef: -k * dt * p.EtaCharge},
			solver.Term{Var: d, Coef: k * dt / p.EtaDischarge},
		)

		if pol.InventoryBackedDischarge {
			prob.AddRow(fmt.Sprintf("inventory_%d", t), solver.LE, 0,
				solver.Term{Var: d, Coef: k * dt / p.EtaDischarge},
				solver.Term{Var: cols.level[t], Coef: -1},
			)
		}

		if separateUptake {
			prob.AddRow(fmt.Sprintf("uptake_%d", t), solver.LE, 0,
				solver.Term{Var: cols.uptake[t], Coef: 1},
				solver.Term{Var: c, Coef: -1},
			)
		}

		if useBinaries {
			onC, onD := cols.onCharge[t], cols.onDisch[t]
			prob.AddRow(fmt.Sprintf("charge_on_%d", t), solver.LE, 0,
				solver.Term{Var: c, Coef: 1}, solver.Term{Var: onC, Coef: -p.MaxCharge})
			prob.AddRow(fmt.Sprintf("discharge_on_%d", t), solver.LE, 0,
				solver.Term{Var: d, Coef: 1}, solver.Term{Var: onD, Coef: -p.MaxDischarge})
			if p.MinCharge > 0 {
				prob.AddRow(fmt.Sprintf("charge_min_%d", t), solver.GE, 0,
					solver.Term{Var: c, Coef: 1}, solver.Term{Var: onC, Coef: -p.MinCharge})
			}
			if p.MinDischarge > 0 {
				prob.AddRow(fmt.Sprintf("discharge_min_%d", t), solver.GE, 0,
					solver.Term{Var: d, Coef: 1}, solver.Term{Var: onD, Coef: -p.MinDischarge})
			}
			if pol.MutualExclusion == ExclusionBinary {
				prob.AddRow(fmt.Sprintf("exclusion_%d", t), solver.LE, 1,
					solver.Term{Var: onC, Coef: 1}, solver.Term{Var: onD, Coef: 1})
			}
		}

		if pol.Ramp && t > 0 {
			addRamp(prob, "charge", t, cols.charge, p.RampCharge)
			addRamp(prob, "discharge", t, cols.discharge, p.RampDischarge)
		}

		energy = append(energy, solver.Term{Var: c, Coef: dt})
	}

	if pol.MinChargeEnergy > 0 {
		prob.AddRow("min_charge_energy", solver.GE, pol.MinChargeEnergy, energy...)
	}
	return prob, cols
}

// addRamp bounds |x(t) − x(t−1)| by limit MW; 0 means unconstrained.
func addRamp(prob *solver.Problem, name string, t int, x []int, limit float64) {
	if limit <= 0 {
		return
	}
	prob.AddRow(fmt.Sprintf("%s_ramp_up_%d", name, t), solver.LE, limit,
		solver.Term{Var: x[t], Coef: 1}, solver.Term{Var: x[t-1], Coef: -1})
	prob.AddRow(fmt.Sprintf("%s_ramp_down_%d", name, t), solver.LE, limit,
		solver.Term{Var: x[t-1], Coef: 1}, solver.Term{Var: x[t], Coef: -1})
}
