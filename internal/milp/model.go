// Package milp is the repository's own reference implementation of
// internal/modeling.Model: a two-phase simplex for the LP relaxation,
// wrapped in branch-and-bound for integrality and SOS1 sets. It exists
// because no third-party Go MILP solver is available; any of CPLEX,
// Gurobi, HiGHS, CBC, or OR-Tools could replace it behind the same
// modeling.Model interface without internal/optimizer noticing.
package milp

import (
	"context"
	"fmt"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/modeling"
)

const tol = 1e-6

type varRecord struct {
	name      string
	integer   bool
	lower     float64
	upper     float64
	unbounded bool
}

type rowRecord struct {
	coeffs map[int]float64
	rel    modeling.Relation
	rhs    float64
	name   string
}

// Model builds a MILP in the shape of internal/modeling.Model and solves
// it with this package's own branch-and-bound. It is not safe for
// concurrent use by multiple goroutines.
type Model struct {
	vars      []varRecord
	rows      []rowRecord
	sosGroups [][]int
	objective map[int]float64
	objConst  float64
}

// New returns an empty Model ready to accept variable declarations.
func New() *Model {
	return &Model{objective: map[int]float64{}}
}

var _ modeling.Model = (*Model)(nil)

func (m *Model) addVars(keys []modeling.Key, name string, integer bool, bounds []modeling.Bounds) (map[modeling.Key]modeling.Var, error) {
	b := modeling.Bounds{Lower: 0, Unbounded: true}
	if len(bounds) > 0 {
		b = bounds[0]
	}
	if !b.Unbounded && b.Upper < b.Lower {
		return nil, fmt.Errorf("milp: %s: upper bound %g below lower bound %g", name, b.Upper, b.Lower)
	}
	out := make(map[modeling.Key]modeling.Var, len(keys))
	for _, k := range keys {
		id := len(m.vars)
		m.vars = append(m.vars, varRecord{
			name:      fmt.Sprintf("%s[%v]", name, k),
			integer:   integer,
			lower:     b.Lower,
			upper:     b.Upper,
			unbounded: b.Unbounded,
		})
		out[k] = modeling.NewVar(id, k)
	}
	return out, nil
}

// AddIntegerVars implements modeling.Model.
func (m *Model) AddIntegerVars(keys []modeling.Key, name string, bounds ...modeling.Bounds) (map[modeling.Key]modeling.Var, error) {
	return m.addVars(keys, name, true, bounds)
}

// AddContinuousVars implements modeling.Model.
func (m *Model) AddContinuousVars(keys []modeling.Key, name string, bounds ...modeling.Bounds) (map[modeling.Key]modeling.Var, error) {
	return m.addVars(keys, name, false, bounds)
}

func flatten(e modeling.Expr) (map[int]float64, float64) {
	coeffs := make(map[int]float64, len(e.Terms))
	for _, t := range e.Terms {
		coeffs[t.V.ID] += t.Coeff
	}
	return coeffs, e.Const
}

// AddConstraint implements modeling.Model.
func (m *Model) AddConstraint(c modeling.Constraint, name string) error {
	left, lconst := flatten(c.Left)
	right, rconst := flatten(c.Right)
	merged := left
	for id, coeff := range right {
		merged[id] -= coeff
	}
	m.rows = append(m.rows, rowRecord{
		coeffs: merged,
		rel:    c.Relation,
		rhs:    rconst - lconst,
		name:   name,
	})
	return nil
}

// AddConstraints implements modeling.Model.
func (m *Model) AddConstraints(cs []modeling.Constraint, name string) error {
	for i, c := range cs {
		if err := m.AddConstraint(c, fmt.Sprintf("%s[%d]", name, i)); err != nil {
			return err
		}
	}
	return nil
}

// Sum implements modeling.Model.
func (m *Model) Sum(terms ...modeling.Expr) modeling.Expr {
	out := modeling.Expr{}
	for _, t := range terms {
		out.Const += t.Const
		out.Terms = append(out.Terms, t.Terms...)
	}
	return out
}

// AddSOS1 implements modeling.Model.
func (m *Model) AddSOS1(vars []modeling.Var) error {
	ids := make([]int, len(vars))
	for i, v := range vars {
		ids[i] = v.ID
	}
	m.sosGroups = append(m.sosGroups, ids)
	return nil
}

// Minimize implements modeling.Model.
func (m *Model) Minimize(objective modeling.Expr) {
	coeffs, constVal := flatten(objective)
	m.objective = coeffs
	m.objConst = constVal
}

// Solve implements modeling.Model. ctx is checked once before branch and
// bound begins; the reference backend does not poll it mid-search.
func (m *Model) Solve(ctx context.Context) (modeling.Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x, ok := m.branchAndBound()
	if !ok {
		return nil, modeling.ErrInfeasible
	}
	return &solution{x: x}, nil
}

type solution struct {
	x []float64
}

func (s *solution) ValueOf(v modeling.Var) float64 {
	return s.x[v.ID]
}

func (s *solution) ValuesOf(vs map[modeling.Key]modeling.Var) map[modeling.Key]float64 {
	out := make(map[modeling.Key]float64, len(vs))
	for k, v := range vs {
		out[k] = s.x[v.ID]
	}
	return out
}
