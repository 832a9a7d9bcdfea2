package solver

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// max 3x + 2y  s.t. x + y <= 4, x + 3y <= 6, 0 <= x <= 3
func smallLP() *Problem {
	p := &Problem{Name: "small", Sense: Maximize}
	x := p.AddVar(Variable{Name: "x", Upper: 3, Obj: 3})
	y := p.AddVar(Variable{Name: "y", Upper: math.Inf(1), Obj: 2})
	p.AddRow("cap", LE, 4, Term{x, 1}, Term{y, 1})
	p.AddRow("mix", LE, 6, Term{x, 1}, Term{y, 3})
	return p
}

func TestSimplexSolvesLP(t *testing.T) {
	sol, err := (&Simplex{}).Solve(context.Background(), smallLP())
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 3, sol.Values[0], 1e-7)
	assert.InDelta(t, 1, sol.Values[1], 1e-7)
	assert.InDelta(t, 11, sol.Objective, 1e-7)
}

func TestSimplexHandlesEqualityAndNegativeRHS(t *testing.T) {
	// min x + y  s.t. x - y = -2, x >= 1
	p := &Problem{Sense: Minimize}
	x := p.AddVar(Variable{Name: "x", Lower: 1, Upper: math.Inf(1), Obj: 1})
	y := p.AddVar(Variable{Name: "y", Upper: math.Inf(1), Obj: 1})
	p.AddRow("diff", EQ, -2, Term{x, 1}, Term{y, -1})

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1, sol.Values[x], 1e-7)
	assert.InDelta(t, 3, sol.Values[y], 1e-7)
	assert.InDelta(t, 4, sol.Objective, 1e-7)
	assert.Less(t, p.MaxViolation(sol.Values), 1e-7)
}

func TestSimplexDetectsInfeasible(t *testing.T) {
	p := &Problem{}
	x := p.AddVar(Variable{Name: "x", Upper: 1})
	p.AddRow("need", GE, 2, Term{x, 1})

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, sol.Status)
}

func TestSimplexDetectsUnbounded(t *testing.T) {
	p := &Problem{Sense: Maximize}
	x := p.AddVar(Variable{Name: "x", Upper: math.Inf(1), Obj: 1})
	y := p.AddVar(Variable{Name: "y", Upper: math.Inf(1)})
	p.AddRow("r", GE, 1, Term{x, 1}, Term{y, 1})

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusUnbounded, sol.Status)
}

func TestSimplexFreeColumnSitsAtBound(t *testing.T) {
	p := &Problem{}
	p.AddVar(Variable{Name: "idle", Lower: 2, Upper: 5, Obj: 1})
	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, 2.0, sol.Values[0])

	p.Vars[0].Obj = -1
	sol, err = (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 5, sol.Values[0], 1e-9)
}

func TestBranchAndBound(t *testing.T) {
	// max 5a + 4b  s.t. 6a + 4b <= 24, a + 2b <= 6, a,b integer >= 0
	// LP optimum is (3, 1.5); integer optimum is (4, 0) with value 20.
	p := &Problem{Sense: Maximize}
	a := p.AddVar(Variable{Name: "a", Upper: math.Inf(1), Obj: 5, Integer: true})
	b := p.AddVar(Variable{Name: "b", Upper: math.Inf(1), Obj: 4, Integer: true})
	p.AddRow("r1", LE, 24, Term{a, 6}, Term{b, 4})
	p.AddRow("r2", LE, 6, Term{a, 1}, Term{b, 2})

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, 4.0, sol.Values[a])
	assert.Equal(t, 0.0, sol.Values[b])
	assert.InDelta(t, 20, sol.Objective, 1e-7)
	assert.Greater(t, sol.Nodes, 1)
}

func TestBranchAndBoundBinaryExclusion(t *testing.T) {
	// Two activities that pay when run together but may not be.
	p := &Problem{Sense: Maximize}
	c := p.AddVar(Variable{Name: "c", Upper: 10, Obj: 1})
	d := p.AddVar(Variable{Name: "d", Upper: 10, Obj: 2})
	uc := p.AddVar(Variable{Name: "uc", Upper: 1, Integer: true})
	ud := p.AddVar(Variable{Name: "ud", Upper: 1, Integer: true})
	p.AddRow("c_on", LE, 0, Term{c, 1}, Term{uc, -10})
	p.AddRow("d_on", LE, 0, Term{d, 1}, Term{ud, -10})
	p.AddRow("excl", LE, 1, Term{uc, 1}, Term{ud, 1})

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 0, sol.Values[c], 1e-7)
	assert.InDelta(t, 10, sol.Values[d], 1e-7)
	assert.InDelta(t, 20, sol.Objective, 1e-7)
}

func TestBranchAndBoundKnapsack(t *testing.T) {
	weights := []float64{23, 31, 29, 44, 53, 38, 63, 85, 89, 82, 12, 17}
	values := []float64{92, 57, 49, 68, 60, 43, 67, 84, 87, 72, 20, 25}
	const capacity = 165

	p := &Problem{Sense: Maximize}
	terms := make([]Term, len(weights))
	for i := range weights {
		terms[i] = Term{p.AddVar(Variable{Name: "take", Upper: 1, Obj: values[i], Integer: true}), weights[i]}
	}
	p.AddRow("capacity", LE, capacity, terms...)

	best := 0.0
	for mask := 0; mask < 1<<len(weights); mask++ {
		var w, v float64
		for i := range weights {
			if mask&(1<<i) != 0 {
				w += weights[i]
				v += values[i]
			}
		}
		if w <= capacity && v > best {
			best = v
		}
	}

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, best, sol.Objective, 1e-6)
	assert.LessOrEqual(t, p.MaxViolation(sol.Values), 1e-6)
}

func TestBranchAndBoundRowChangesSign(t *testing.T) {
	// min x − 2u  s.t. u − x <= 0, 4u <= 3, u binary. Branching u up turns
	// both right-hand sides negative; the up branch is infeasible.
	p := &Problem{Sense: Minimize}
	x := p.AddVar(Variable{Name: "x", Upper: 10, Obj: 1})
	u := p.AddVar(Variable{Name: "u", Upper: 1, Obj: -2, Integer: true})
	p.AddRow("link", LE, 0, Term{u, 1}, Term{x, -1})
	p.AddRow("cap", LE, 3, Term{u, 4})

	sol, err := (&Simplex{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, 0.0, sol.Values[u])
	assert.InDelta(t, 0, sol.Values[x], 1e-9)
	assert.InDelta(t, 0, sol.Objective, 1e-9)
}

func TestBranchAndBoundNodeLimit(t *testing.T) {
	p := &Problem{Sense: Maximize}
	a := p.AddVar(Variable{Name: "a", Upper: math.Inf(1), Obj: 5, Integer: true})
	b := p.AddVar(Variable{Name: "b", Upper: math.Inf(1), Obj: 4, Integer: true})
	p.AddRow("r1", LE, 24, Term{a, 6}, Term{b, 4})
	p.AddRow("r2", LE, 6, Term{a, 1}, Term{b, 2})

	sol, err := (&Simplex{MaxNodes: 1}).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusNodeLimit, sol.Status)
}

func TestSimplexHonoursCancelledContext(t *testing.T) {
	p := &Problem{Sense: Maximize}
	a := p.AddVar(Variable{Name: "a", Upper: math.Inf(1), Obj: 5, Integer: true})
	p.AddRow("r1", LE, 7.5, Term{a, 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Simplex{}).Solve(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimplexIdle(t *testing.T) {
	s := &Simplex{}
	select {
	case <-s.Idle():
	default:
		t.Fatal("fresh backend reports work in progress")
	}

	// A relaxation cut off by the deadline finishes in the background.
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err := s.Solve(ctx, storageLP(40))
	if err == nil {
		t.Skip("solved inside the deadline")
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	select {
	case <-s.Idle():
	case <-time.After(time.Minute):
		t.Fatal("background relaxation never finished")
	}

	sol, err := s.Solve(context.Background(), smallLP())
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, sol.Status)
	<-s.Idle()
}

// storageLP is a price-arbitrage program over n periods with a tank of 50.
func storageLP(n int) *Problem {
	p := &Problem{Name: "storage", Sense: Maximize}
	level := p.AddVar(Variable{Name: "level_0", Upper: 50})
	p.AddRow("initial", EQ, 0, Term{level, 1})
	for t := 0; t < n; t++ {
		price := 40 + 30*math.Sin(float64(t)/3)
		c := p.AddVar(Variable{Name: "charge", Upper: 10, Obj: -price})
		d := p.AddVar(Variable{Name: "discharge", Upper: 10, Obj: price})
		next := p.AddVar(Variable{Name: "level", Upper: 50})
		p.AddRow("balance", EQ, 0, Term{next, 1}, Term{level, -1}, Term{c, -0.9}, Term{d, 1 / 0.85})
		level = next
	}
	return p
}

func TestSimplexRejectsOversizedModel(t *testing.T) {
	_, err := (&Simplex{MaxDenseCells: 1}).Solve(context.Background(), smallLP())
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestProblemValidate(t *testing.T) {
	p := &Problem{}
	assert.Error(t, p.Validate())

	p.AddVar(Variable{Name: "x", Lower: math.Inf(-1), Upper: 1})
	assert.Error(t, p.Validate())

	p.Vars[0].Lower = 0
	p.AddRow("bad", LE, 1, Term{Var: 3, Coef: 1})
	assert.Error(t, p.Validate())
}

func TestWriteLP(t *testing.T) {
	p := smallLP()
	p.Vars[1].Integer = true
	p.AddVar(Variable{Name: "fixed", Lower: 2, Upper: 2})

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p))
	out := buf.String()

	assert.Contains(t, out, "Maximize\n obj: + 3 x0 + 2 x1\n")
	assert.Contains(t, out, " r0: + 1 x0 + 1 x1 <= 4\n")
	assert.Contains(t, out, " r1: + 1 x0 + 3 x1 <= 6\n")
	assert.Contains(t, out, " 0 <= x0 <= 3\n")
	assert.Contains(t, out, " x1 >= 0\n")
	assert.Contains(t, out, " x2 = 2\n")
	assert.Contains(t, out, "Generals\n x1\n")
	assert.True(t, strings.HasSuffix(out, "End\n"))
}

func TestParseCBCSolution(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		status Status
		values []float64
	}{
		{
			name: "optimal",
			input: "Optimal - objective value 11.00000000\n" +
				"      0 x0                     3                       0\n" +
				"      1 x1                     1                       0\n",
			status: StatusOptimal,
			values: []float64{3, 1, 0},
		},
		{
			name:   "infeasible",
			input:  "Infeasible - objective value 0.00000000\n",
			status: StatusInfeasible,
		},
		{
			name:   "integer infeasible",
			input:  "Integer infeasible - objective value 0.00000000\n",
			status: StatusInfeasible,
		},
		{
			name:   "time limit",
			input:  "Stopped on time - objective value 12.5\n",
			status: StatusTimeLimit,
		},
		{
			name:   "flagged column",
			input:  "Optimal - objective value 2\n** 2 x2 2 0\n",
			status: StatusOptimal,
			values: []float64{0, 0, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, err := ParseCBCSolution(strings.NewReader(tt.input), 3)
			require.NoError(t, err)
			assert.Equal(t, tt.status, sol.Status)
			if tt.values != nil {
				assert.Equal(t, tt.values, sol.Values)
			}
		})
	}

	_, err := ParseCBCSolution(strings.NewReader("garbage\n"), 1)
	assert.Error(t, err)
	_, err = ParseCBCSolution(strings.NewReader("Optimal - objective value 1\n 0 x9 1 0\n"), 1)
	assert.Error(t, err)
}

func TestCBCUnavailable(t *testing.T) {
	_, err := (&CBC{Path: "definitely-not-a-solver-binary"}).Solve(context.Background(), smallLP())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCBCSolvesLPWhenInstalled(t *testing.T) {
	if _, err := exec.LookPath("cbc"); err != nil {
		t.Skip("cbc not installed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sol, err := (&CBC{}).Solve(ctx, smallLP())
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 11, sol.Objective, 1e-6)
}

func TestNewBackendAndConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	b, err := NewBackend(BackendAuto, cfg, smallLP())
	require.NoError(t, err)
	assert.Equal(t, BackendSimplex, b.Name())

	b, err = NewBackend(BackendCBC, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendCBC, b.Name())

	_, err = NewBackend("glpk", cfg, nil)
	assert.Error(t, err)

	bad := cfg
	bad.Retry.Fallback = "glpk"
	assert.Error(t, bad.Validate())

	filled := Config{Backend: BackendSimplex}.WithDefaults()
	assert.Equal(t, DefaultTimeout, filled.Timeout)
	assert.Equal(t, BackendSimplex, filled.Backend)
}

func TestAutoSendsIntegerModelsToCBC(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "cbc")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	milp := &Problem{Sense: Maximize}
	u := milp.AddVar(Variable{Name: "u", Upper: 1, Obj: 1, Integer: true})
	milp.AddRow("cap", LE, 1, Term{u, 1})

	cfg := DefaultConfig()
	cfg.CBCPath = fake
	b, err := NewBackend(BackendAuto, cfg, milp)
	require.NoError(t, err)
	assert.Equal(t, BackendCBC, b.Name())

	b, err = NewBackend(BackendAuto, cfg, smallLP())
	require.NoError(t, err)
	assert.Equal(t, BackendSimplex, b.Name())

	cfg.CBCPath = filepath.Join(t.TempDir(), "missing-cbc")
	b, err = NewBackend(BackendAuto, cfg, milp)
	require.NoError(t, err)
	assert.Equal(t, BackendSimplex, b.Name())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(1)
	release, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op

	again, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	again()
	assert.Equal(t, 1, pool.Size())
}
