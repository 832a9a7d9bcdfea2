package solver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable is returned when a backend's executable cannot be found.
var ErrUnavailable = errors.New("solver backend unavailable")

// CBC solves problems with the COIN-OR CBC executable. The model is written
// in CPLEX LP format to a temporary directory and the solution file read back.
type CBC struct {
	// Path is the executable name or path. Empty means "cbc" on PATH.
	Path   string
	MIPGap float64
}

func (c *CBC) Name() string { return BackendCBC }

func (c *CBC) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bin := c.Path
	if bin == "" {
		bin = "cbc"
	}
	exe, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, bin, err)
	}

	dir, err := os.MkdirTemp("", "abatt-cbc-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	modelPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "solution.txt")
	f, err := os.Create(modelPath)
	if err != nil {
		return nil, fmt.Errorf("create model file: %w", err)
	}
	if err := WriteLP(f, p); err != nil {
		f.Close()
		return nil, fmt.Errorf("write model: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close model file: %w", err)
	}

	args := []string{modelPath}
	if deadline, ok := ctx.Deadline(); ok {
		secs := math.Ceil(time.Until(deadline).Seconds())
		if secs < 1 {
			secs = 1
		}
		args = append(args, "sec", strconv.FormatFloat(secs, 'f', 0, 64))
	}
	if p.HasIntegers() && c.MIPGap > 0 {
		args = append(args, "ratioGap", strconv.FormatFloat(c.MIPGap, 'g', -1, 64))
	}
	args = append(args, "solve", "solu", solPath)

	start := time.Now()
	cmd := exec.CommandContext(ctx, exe, args...)
	out, runErr := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if runErr != nil {
		return nil, fmt.Errorf("cbc: %v: %s", runErr, lastLines(string(out), 5))
	}

	sf, err := os.Open(solPath)
	if err != nil {
		return nil, fmt.Errorf("cbc produced no solution file: %w", err)
	}
	defer sf.Close()
	sol, err := ParseCBCSolution(sf, len(p.Vars))
	if err != nil {
		return nil, err
	}
	sol.Elapsed = time.Since(start)
	if sol.Status == StatusOptimal {
		for j, v := range p.Vars {
			if v.Integer {
				sol.Values[j] = math.Round(sol.Values[j])
			}
		}
		sol.Objective = p.Objective(sol.Values)
	}
	return sol, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// colName and rowName give LP-format-safe identifiers; the original names
// are not guaranteed to be.
func colName(j int) string { return "x" + strconv.Itoa(j) }
func rowName(i int) string { return "r" + strconv.Itoa(i) }

// WriteLP writes p in CPLEX LP format.
func WriteLP(w io.Writer, p *Problem) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ %s\n", p.Name)
	if p.Sense == Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	bw.WriteString(" obj:")
	wroteObj := false
	for j, v := range p.Vars {
		if v.Obj == 0 {
			continue
		}
		writeTerm(bw, v.Obj, j)
		wroteObj = true
	}
	if !wroteObj {
		bw.WriteString(" 0 " + colName(0))
	}
	bw.WriteString("\nSubject To\n")
	for i, r := range p.Rows {
		fmt.Fprintf(bw, " %s:", rowName(i))
		wrote := false
		for _, t := range r.Terms {
			if t.Coef == 0 {
				continue
			}
			writeTerm(bw, t.Coef, t.Var)
			wrote = true
		}
		if !wrote {
			bw.WriteString(" 0 " + colName(0))
		}
		fmt.Fprintf(bw, " %s %s\n", r.Op, fmtNum(r.RHS))
	}
	bw.WriteString("Bounds\n")
	for j, v := range p.Vars {
		switch {
		case !math.IsInf(v.Upper, 1) && v.Upper == v.Lower:
			fmt.Fprintf(bw, " %s = %s\n", colName(j), fmtNum(v.Lower))
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", colName(j), fmtNum(v.Lower))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", fmtNum(v.Lower), colName(j), fmtNum(v.Upper))
		}
	}
	if p.HasIntegers() {
		bw.WriteString("Generals\n")
		for j, v := range p.Vars {
			if v.Integer {
				fmt.Fprintf(bw, " %s\n", colName(j))
			}
		}
	}
	bw.WriteString("End\n")
	return bw.Flush()
}

func writeTerm(w *bufio.Writer, coef float64, j int) {
	if coef < 0 {
		fmt.Fprintf(w, " - %s %s", fmtNum(-coef), colName(j))
		return
	}
	fmt.Fprintf(w, " + %s %s", fmtNum(coef), colName(j))
}

func fmtNum(x float64) string {
	return strconv.FormatFloat(x, 'g', 17, 64)
}

// ParseCBCSolution reads a CBC "solu" file. The first line carries the
// status; each following line is "index name value [reduced cost]" for the
// non-zero columns.
func ParseCBCSolution(r io.Reader, nVars int) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read cbc solution: %w", err)
		}
		return nil, fmt.Errorf("empty cbc solution file")
	}
	header := strings.TrimSpace(sc.Text())
	lower := strings.ToLower(header)

	sol := &Solution{}
	switch {
	case strings.HasPrefix(lower, "optimal"):
		sol.Status = StatusOptimal
	case strings.Contains(lower, "infeasible"):
		sol.Status = StatusInfeasible
		return sol, nil
	case strings.Contains(lower, "unbounded"):
		sol.Status = StatusUnbounded
		return sol, nil
	case strings.HasPrefix(lower, "stopped on time"):
		sol.Status = StatusTimeLimit
		return sol, nil
	case strings.HasPrefix(lower, "stopped on iterations"), strings.HasPrefix(lower, "stopped on nodes"):
		sol.Status = StatusNodeLimit
		return sol, nil
	default:
		return nil, fmt.Errorf("unrecognised cbc status %q", header)
	}
	if i := strings.LastIndex(lower, "objective value"); i >= 0 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(header[i+len("objective value"):]), 64); err == nil {
			sol.Objective = v
		}
	}

	sol.Values = make([]float64, nVars)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimPrefix(line, "**")
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name := fields[1]
		if !strings.HasPrefix(name, "x") {
			continue
		}
		j, err := strconv.Atoi(name[1:])
		if err != nil || j < 0 || j >= nVars {
			return nil, fmt.Errorf("cbc solution references unknown column %q", name)
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("cbc solution column %s: %w", name, err)
		}
		sol.Values[j] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read cbc solution: %w", err)
	}
	return sol, nil
}
