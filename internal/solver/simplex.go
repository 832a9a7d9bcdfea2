package solver

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	intTol     = 1e-6
	boundTol   = 1e-9
	simplexTol = 1e-9
)

// ErrTooLarge is returned when a model exceeds the dense-matrix budget of
// the in-process backend.
var ErrTooLarge = errors.New("model too large for dense simplex")

// Detached is implemented by backends whose work can outlive a Solve call
// that returned on cancellation. Idle is closed once none is left running.
type Detached interface {
	Idle() <-chan struct{}
}

var closedIdle = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Simplex solves problems in-process with gonum's dense simplex method and a
// best-bound branch and bound for integer columns. It suits horizons of a
// few hundred periods.
//
// gonum's simplex cannot be interrupted: a relaxation running when the
// context ends keeps going in the background until it finishes. Idle reports
// when that has happened.
type Simplex struct {
	// MaxNodes bounds the branch-and-bound tree. 0 uses DefaultMaxNodes.
	MaxNodes int
	// MaxDenseCells bounds rows×columns of the standard-form matrix. 0 uses DefaultMaxDenseCells.
	MaxDenseCells int

	mu      sync.Mutex
	running int
	idle    chan struct{}
}

func (s *Simplex) Name() string { return BackendSimplex }

// Idle is closed when no relaxation started by s is still running.
func (s *Simplex) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == 0 {
		return closedIdle
	}
	return s.idle
}

func (s *Simplex) begin() {
	s.mu.Lock()
	if s.running == 0 {
		s.idle = make(chan struct{})
	}
	s.running++
	s.mu.Unlock()
}

func (s *Simplex) end() {
	s.mu.Lock()
	s.running--
	if s.running == 0 {
		close(s.idle)
	}
	s.mu.Unlock()
}

// Solve runs the relaxation, then searches the branch-and-bound tree in
// best-bound order until the incumbent is proven optimal.
func (s *Simplex) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	maxCells := s.MaxDenseCells
	if maxCells <= 0 {
		maxCells = DefaultMaxDenseCells
	}
	if cells := EstimateDenseCells(p); cells > maxCells {
		return nil, fmt.Errorf("%w: %d cells, limit %d", ErrTooLarge, cells, maxCells)
	}

	lower := make([]float64, len(p.Vars))
	upper := make([]float64, len(p.Vars))
	for j, v := range p.Vars {
		lower[j], upper[j] = v.Lower, v.Upper
		if v.Integer {
			lower[j] = math.Ceil(v.Lower - intTol)
			if !math.IsInf(v.Upper, 1) {
				upper[j] = math.Floor(v.Upper + intTol)
			}
		}
	}

	layouts := layoutCache{p: p}
	if !p.HasIntegers() {
		st, _, x, err := s.relax(ctx, &layouts, lower, upper)
		if err != nil {
			return nil, err
		}
		sol := &Solution{Status: st, Nodes: 1, Elapsed: time.Since(start)}
		if st == StatusOptimal {
			sol.Values = x
			sol.Objective = p.Objective(x)
		}
		return sol, nil
	}

	best := math.Inf(1)
	var bestX []float64
	queue := &nodeQueue{}
	heap.Push(queue, &bbNode{lower: lower, upper: upper, bound: math.Inf(-1)})
	nodes := 0
	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nd := heap.Pop(queue).(*bbNode)
		if nd.bound >= best-gapTol(best) {
			continue
		}
		if nodes >= maxNodes {
			return &Solution{Status: StatusNodeLimit, Nodes: nodes, Elapsed: time.Since(start)}, nil
		}
		nodes++

		st, f, x, err := s.relax(ctx, &layouts, nd.lower, nd.upper)
		if err != nil {
			return nil, err
		}
		switch st {
		case StatusInfeasible:
			continue
		case StatusUnbounded:
			return &Solution{Status: StatusUnbounded, Nodes: nodes, Elapsed: time.Since(start)}, nil
		}
		if f >= best-gapTol(best) {
			continue
		}

		branch := mostFractional(p, x)
		if branch < 0 {
			best, bestX = f, x
			continue
		}
		if bestX == nil && nd.depth == 0 {
			// Seed an incumbent so the tree can be pruned from the start.
			if hf, hx, ok := s.roundingIncumbent(ctx, &layouts, nd, x); ok && hf < best {
				best, bestX = hf, hx
				if f >= best-gapTol(best) {
					continue
				}
			}
		}

		down := nd.child(f)
		down.upper[branch] = math.Floor(x[branch])
		up := nd.child(f)
		up.lower[branch] = math.Ceil(x[branch])
		heap.Push(queue, down)
		heap.Push(queue, up)
	}

	if bestX == nil {
		return &Solution{Status: StatusInfeasible, Nodes: nodes, Elapsed: time.Since(start)}, nil
	}
	for j, v := range p.Vars {
		if v.Integer {
			bestX[j] = math.Round(bestX[j])
		}
	}
	return &Solution{
		Status:    StatusOptimal,
		Objective: p.Objective(bestX),
		Values:    bestX,
		Nodes:     nodes,
		Elapsed:   time.Since(start),
	}, nil
}

func gapTol(best float64) float64 {
	if math.IsInf(best, 1) {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(best))
}

// mostFractional returns the integer column furthest from an integer value,
// or -1 when x is integral.
func mostFractional(p *Problem, x []float64) int {
	branch, frac := -1, 0.0
	for j, v := range p.Vars {
		if !v.Integer {
			continue
		}
		d := math.Abs(x[j] - math.Round(x[j]))
		if d > intTol && d > frac {
			branch, frac = j, d
		}
	}
	return branch
}

// roundingIncumbent fixes every integer column to a rounded relaxation value
// and re-solves for the continuous columns. Rounding up any non-zero value is
// tried first (it keeps on/off indicators on wherever their flow is), then
// rounding to nearest, then down.
func (s *Simplex) roundingIncumbent(ctx context.Context, layouts *layoutCache, nd *bbNode, x []float64) (float64, []float64, bool) {
	rounders := []func(float64) float64{
		func(v float64) float64 { return math.Ceil(v - intTol) },
		math.Round,
		func(v float64) float64 { return math.Floor(v + intTol) },
	}
	for _, round := range rounders {
		lower := append([]float64(nil), nd.lower...)
		upper := append([]float64(nil), nd.upper...)
		for j, v := range layouts.p.Vars {
			if !v.Integer {
				continue
			}
			r := round(x[j])
			if r < lower[j] {
				r = lower[j]
			}
			if !math.IsInf(upper[j], 1) && r > upper[j] {
				r = upper[j]
			}
			lower[j], upper[j] = r, r
		}
		st, f, hx, err := s.relax(ctx, layouts, lower, upper)
		if err == nil && st == StatusOptimal {
			return f, hx, true
		}
	}
	return 0, nil, false
}

// relax solves the LP relaxation under the given bounds. The returned
// objective is in minimisation form for pruning.
func (s *Simplex) relax(ctx context.Context, layouts *layoutCache, lower, upper []float64) (Status, float64, []float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, nil, err
	}
	l, st := layouts.get(lower, upper)
	if st != StatusOptimal {
		return st, 0, nil, nil
	}
	a, b, st := l.node(lower, upper)
	if st != StatusOptimal {
		return st, 0, nil, nil
	}

	p := layouts.p
	x := make([]float64, len(p.Vars))
	copy(x, lower)
	if a == nil {
		// Every column dropped: each variable sits at its lower bound.
		return StatusOptimal, minObjective(p, x), x, nil
	}

	type result struct {
		x   []float64
		err error
	}
	done := make(chan result, 1)
	s.begin()
	go func() {
		defer s.end()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("simplex panic: %v", r)}
			}
		}()
		_, y, err := lp.Simplex(l.c, a, b, simplexTol, nil)
		done <- result{x: y, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return "", 0, nil, ctx.Err()
	case r = <-done:
	}

	switch {
	case errors.Is(r.err, lp.ErrInfeasible):
		return StatusInfeasible, 0, nil, nil
	case errors.Is(r.err, lp.ErrUnbounded):
		return StatusUnbounded, 0, nil, nil
	case r.err != nil:
		return "", 0, nil, fmt.Errorf("simplex: %w", r.err)
	}

	for j, col := range l.col {
		if col >= 0 {
			x[j] = lower[j] + r.x[col]
		}
		if x[j] < lower[j] {
			x[j] = lower[j]
		}
		if !math.IsInf(upper[j], 1) && x[j] > upper[j] {
			x[j] = upper[j]
		}
	}
	return StatusOptimal, minObjective(p, x), x, nil
}

func minObjective(p *Problem, x []float64) float64 {
	f := p.Objective(x)
	if p.Sense == Maximize {
		return -f
	}
	return f
}

type bbNode struct {
	lower, upper []float64
	// bound is the parent's relaxation objective in minimisation form.
	bound float64
	depth int
}

func (n *bbNode) child(bound float64) *bbNode {
	return &bbNode{
		lower: append([]float64(nil), n.lower...),
		upper: append([]float64(nil), n.upper...),
		bound: bound,
		depth: n.depth + 1,
	}
}

// nodeQueue orders open nodes by bound, deeper first on ties.
type nodeQueue []*bbNode

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound < q[j].bound
	}
	return q[i].depth > q[j].depth
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*bbNode)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// layoutCache holds one standard-form layout per set of finite upper bounds.
// Branching only tightens bounds, so a tree normally uses a single layout.
type layoutCache struct {
	p       *Problem
	layouts map[string]*layout
}

func (c *layoutCache) get(lower, upper []float64) (*layout, Status) {
	var key strings.Builder
	for j, u := range upper {
		if !math.IsInf(u, 1) {
			key.WriteString(strconv.Itoa(j))
			key.WriteByte(',')
		}
	}
	if l, ok := c.layouts[key.String()]; ok {
		return l, StatusOptimal
	}
	l, st := newLayout(c.p, lower, upper)
	if st != StatusOptimal {
		return nil, st
	}
	if c.layouts == nil {
		c.layouts = make(map[string]*layout)
	}
	c.layouts[key.String()] = l
	return l, StatusOptimal
}

// sfRow is one row of the standard form. Constraint rows have
// rhs = base − Σ vals·lower[vars]; bound rows (bound >= 0) have
// rhs = upper[bound] − lower[bound].
type sfRow struct {
	vars  []int
	vals  []float64
	slack int // standard-form slack column, -1 for equality rows
	base  float64
	bound int
}

func (r sfRow) rhs(lower, upper []float64) float64 {
	if r.bound >= 0 {
		return math.Max(0, upper[r.bound]-lower[r.bound])
	}
	v := r.base
	for k, j := range r.vars {
		v -= r.vals[k] * lower[j]
	}
	return v
}

// layout is the standard form min cᵀy, Ay = b, y ≥ 0 with x = lower + y.
// Finite upper bounds and inequality rows get slack columns and rows are
// stored so that b ≥ 0 at the root. Columns that appear in no row are fixed
// at their lower bound. A and c are built once; each node recomputes b and
// negates, on a copy of A, any row whose b changed sign.
type layout struct {
	c     []float64
	a     *mat.Dense
	rows  []sfRow
	flip  []bool // rows stored negated in a
	konst []constRow
	col   []int // standard-form column of each variable, -1 when dropped
}

// constRow is a row whose coefficients all cancel; it is checked directly.
type constRow struct {
	op  Op
	rhs float64
}

func newLayout(p *Problem, lower, upper []float64) (*layout, Status) {
	n := len(p.Vars)
	obj := make([]float64, n)
	for j, v := range p.Vars {
		obj[j] = v.Obj
		if p.Sense == Maximize {
			obj[j] = -v.Obj
		}
	}

	l := &layout{}
	var slacks []float64
	used := make([]bool, n)
	for _, r := range p.Rows {
		coef := make(map[int]float64, len(r.Terms))
		for _, t := range r.Terms {
			coef[t.Var] += t.Coef
		}
		var vars []int
		for j, v := range coef {
			if v != 0 {
				vars = append(vars, j)
			}
		}
		if len(vars) == 0 {
			l.konst = append(l.konst, constRow{op: r.Op, rhs: r.RHS})
			continue
		}
		sort.Ints(vars)
		vals := make([]float64, len(vars))
		for k, j := range vars {
			vals[k] = coef[j]
			used[j] = true
		}
		var slack float64
		switch r.Op {
		case LE:
			slack = 1
		case GE:
			slack = -1
		}
		l.rows = append(l.rows, sfRow{vars: vars, vals: vals, base: r.RHS, bound: -1})
		slacks = append(slacks, slack)
	}
	for j := range p.Vars {
		if math.IsInf(upper[j], 1) {
			continue
		}
		if !used[j] && obj[j] >= 0 {
			continue
		}
		used[j] = true
		l.rows = append(l.rows, sfRow{vars: []int{j}, vals: []float64{1}, bound: j})
		slacks = append(slacks, 1)
	}

	l.col = make([]int, n)
	nc := 0
	for j := range p.Vars {
		if !used[j] {
			if obj[j] < 0 {
				return nil, StatusUnbounded
			}
			l.col[j] = -1
			continue
		}
		l.col[j] = nc
		nc++
	}
	if len(l.rows) == 0 {
		return l, StatusOptimal
	}
	nSlack := 0
	for _, sv := range slacks {
		if sv != 0 {
			nSlack++
		}
	}

	m := len(l.rows)
	l.a = mat.NewDense(m, nc+nSlack, nil)
	l.c = make([]float64, nc+nSlack)
	l.flip = make([]bool, m)
	for j := range p.Vars {
		if l.col[j] >= 0 {
			l.c[l.col[j]] = obj[j]
		}
	}
	s := nc
	for i := range l.rows {
		r := &l.rows[i]
		sign := 1.0
		if r.rhs(lower, upper) < 0 {
			sign = -1
			l.flip[i] = true
		}
		for k, j := range r.vars {
			l.a.Set(i, l.col[j], sign*r.vals[k])
		}
		r.slack = -1
		if slacks[i] != 0 {
			r.slack = s
			l.a.Set(i, s, sign*slacks[i])
			s++
		}
	}
	return l, StatusOptimal
}

// node returns A and b for the given bounds, with b ≥ 0.
func (l *layout) node(lower, upper []float64) (*mat.Dense, []float64, Status) {
	for j := range lower {
		if !math.IsInf(upper[j], 1) && lower[j] > upper[j]+boundTol {
			return nil, nil, StatusInfeasible
		}
	}
	for _, k := range l.konst {
		switch {
		case k.op == LE && k.rhs < -boundTol,
			k.op == GE && k.rhs > boundTol,
			k.op == EQ && math.Abs(k.rhs) > boundTol:
			return nil, nil, StatusInfeasible
		}
	}
	if l.a == nil {
		return nil, nil, StatusOptimal
	}

	a := l.a
	b := make([]float64, len(l.rows))
	for i, r := range l.rows {
		v := r.rhs(lower, upper)
		if l.flip[i] {
			v = -v
		}
		if v < 0 {
			if a == l.a {
				// Copy: a relaxation still running in the background may be
				// reading the shared matrix.
				a = mat.DenseCopyOf(l.a)
			}
			for _, j := range r.vars {
				a.Set(i, l.col[j], -a.At(i, l.col[j]))
			}
			if r.slack >= 0 {
				a.Set(i, r.slack, -a.At(i, r.slack))
			}
			v = -v
		}
		b[i] = v
	}
	return a, b, StatusOptimal
}

// EstimateDenseCells approximates the size of the standard-form matrix.
func EstimateDenseCells(p *Problem) int {
	m := len(p.Rows)
	slack := 0
	for _, r := range p.Rows {
		if r.Op != EQ {
			slack++
		}
	}
	for _, v := range p.Vars {
		if !math.IsInf(v.Upper, 1) {
			m++
			slack++
		}
	}
	return m * (len(p.Vars) + slack)
}
