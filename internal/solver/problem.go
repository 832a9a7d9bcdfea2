package solver

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Sense is the optimisation direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Op is a row relation.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Variable is a column with finite lower bound and optional upper bound
// (math.Inf(1) for none).
type Variable struct {
	Name    string
	Lower   float64
	Upper   float64
	Integer bool
	Obj     float64
}

// Term is one coefficient of a row.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is Σ terms (op) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

// Problem is a linear or mixed-integer linear program.
type Problem struct {
	Name  string
	Sense Sense
	Vars  []Variable
	Rows  []Constraint
}

// AddVar appends a column and returns its index.
func (p *Problem) AddVar(v Variable) int {
	p.Vars = append(p.Vars, v)
	return len(p.Vars) - 1
}

// AddRow appends a constraint and returns its index.
func (p *Problem) AddRow(name string, op Op, rhs float64, terms ...Term) int {
	p.Rows = append(p.Rows, Constraint{Name: name, Terms: terms, Op: op, RHS: rhs})
	return len(p.Rows) - 1
}

// HasIntegers reports whether any column is integer.
func (p *Problem) HasIntegers() bool {
	for _, v := range p.Vars {
		if v.Integer {
			return true
		}
	}
	return false
}

// Relaxed returns a copy of p with every integer column made continuous.
// Rows are shared with p.
func (p *Problem) Relaxed() *Problem {
	r := &Problem{Name: p.Name, Sense: p.Sense, Rows: p.Rows}
	r.Vars = make([]Variable, len(p.Vars))
	for j, v := range p.Vars {
		v.Integer = false
		r.Vars[j] = v
	}
	return r
}

// Validate checks indices and bounds.
func (p *Problem) Validate() error {
	if len(p.Vars) == 0 {
		return fmt.Errorf("problem %q has no variables", p.Name)
	}
	for j, v := range p.Vars {
		if math.IsNaN(v.Lower) || math.IsInf(v.Lower, 0) {
			return fmt.Errorf("variable %d (%s): lower bound must be finite", j, v.Name)
		}
		if math.IsNaN(v.Upper) || math.IsInf(v.Upper, -1) {
			return fmt.Errorf("variable %d (%s): invalid upper bound", j, v.Name)
		}
		if math.IsNaN(v.Obj) || math.IsInf(v.Obj, 0) {
			return fmt.Errorf("variable %d (%s): objective coefficient must be finite", j, v.Name)
		}
	}
	for i, r := range p.Rows {
		if math.IsNaN(r.RHS) || math.IsInf(r.RHS, 0) {
			return fmt.Errorf("row %d (%s): rhs must be finite", i, r.Name)
		}
		for _, t := range r.Terms {
			if t.Var < 0 || t.Var >= len(p.Vars) {
				return fmt.Errorf("row %d (%s): variable index %d out of range", i, r.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("row %d (%s): coefficient must be finite", i, r.Name)
			}
		}
	}
	return nil
}

// Objective evaluates the objective at x.
func (p *Problem) Objective(x []float64) float64 {
	var f float64
	for j, v := range p.Vars {
		f += v.Obj * x[j]
	}
	return f
}

// MaxViolation is the largest bound or row violation at x.
func (p *Problem) MaxViolation(x []float64) float64 {
	var worst float64
	for j, v := range p.Vars {
		worst = math.Max(worst, v.Lower-x[j])
		if !math.IsInf(v.Upper, 1) {
			worst = math.Max(worst, x[j]-v.Upper)
		}
	}
	for _, r := range p.Rows {
		var lhs float64
		for _, t := range r.Terms {
			lhs += t.Coef * x[t.Var]
		}
		switch r.Op {
		case LE:
			worst = math.Max(worst, lhs-r.RHS)
		case GE:
			worst = math.Max(worst, r.RHS-lhs)
		case EQ:
			worst = math.Max(worst, math.Abs(lhs-r.RHS))
		}
	}
	return worst
}

// Status is the outcome reported by a backend.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusTimeLimit  Status = "time_limit"
	StatusNodeLimit  Status = "node_limit"
)

// Solution is a backend result. Values and Objective are only meaningful
// when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Nodes     int
	Elapsed   time.Duration
}

// Backend solves problems. A backend returns an error only when it could
// not produce a status (missing binary, numerical failure, cancelled
// context); model outcomes are reported through Solution.Status.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}
