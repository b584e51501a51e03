package milp

import (
	"math"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/modeling"
	"gonum.org/v1/gonum/floats"
)

// node is one branch-and-bound subproblem: box bounds tightened relative
// to the model's declared variable bounds. Bounds only ever shrink as
// nodes are created, so the search tree has finite depth.
type node struct {
	lower []float64
	upper []float64 // math.Inf(1) means unbounded
}

func (n node) clone() node {
	lower := append([]float64(nil), n.lower...)
	upper := append([]float64(nil), n.upper...)
	return node{lower: lower, upper: upper}
}

// branchAndBound searches for an optimal solution respecting variable
// integrality and SOS1 groups. It returns ok=false if the model is
// infeasible.
func (m *Model) branchAndBound() (best []float64, ok bool) {
	nVars := len(m.vars)
	root := node{lower: make([]float64, nVars), upper: make([]float64, nVars)}
	for i, v := range m.vars {
		root.lower[i] = v.lower
		if v.unbounded {
			root.upper[i] = math.Inf(1)
		} else {
			root.upper[i] = v.upper
		}
	}

	cost := make([]float64, nVars)
	for id, c := range m.objective {
		cost[id] = c
	}

	stack := []node{root}
	bestObj := math.Inf(1)
	found := false

	const maxNodes = 200000
	for len(stack) > 0 && len(stack) < maxNodes {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, obj, status := m.solveRelaxation(n, cost)
		if status != lpOptimal {
			continue
		}
		if found && obj >= bestObj-tol {
			continue // bound: this subtree cannot beat the incumbent
		}

		branchVar := -1
		for i, v := range m.vars {
			if v.integer && !floats.EqualWithinAbs(x[i], math.Round(x[i]), tol) {
				branchVar = i
				break
			}
		}

		violated := firstViolatedSOS1(m.sosGroups, x)

		if branchVar == -1 && violated == nil {
			if obj < bestObj {
				bestObj = obj
				best = append([]float64(nil), x...)
				found = true
			}
			continue
		}

		if violated != nil {
			for _, keep := range violated {
				child := n.clone()
				for _, other := range violated {
					if other == keep {
						continue
					}
					child.lower[other] = 0
					child.upper[other] = 0
				}
				stack = append(stack, child)
			}
			continue
		}

		floorVal := math.Floor(x[branchVar])
		down := n.clone()
		down.upper[branchVar] = floorVal
		up := n.clone()
		up.lower[branchVar] = floorVal + 1
		stack = append(stack, down, up)
	}

	return best, found
}

// firstViolatedSOS1 returns the group whose x-values have more than one
// non-zero entry, or nil if every group respects its at-most-one rule.
func firstViolatedSOS1(groups [][]int, x []float64) []int {
	for _, g := range groups {
		nonZero := 0
		for _, idx := range g {
			if math.Abs(x[idx]) > tol {
				nonZero++
			}
		}
		if nonZero > 1 {
			return g
		}
	}
	return nil
}

// solveRelaxation solves the LP relaxation of the model at node n: the
// model's general rows plus one extra row per finite upper bound, over
// variables shifted so the simplex's implicit y >= 0 matches n.lower.
func (m *Model) solveRelaxation(n node, cost []float64) (x []float64, obj float64, status lpStatus) {
	nVars := len(m.vars)

	rows := make([]denseRow, 0, len(m.rows)+nVars)
	for _, r := range m.rows {
		coeffs := make([]float64, nVars)
		shift := 0.0
		for id, c := range r.coeffs {
			coeffs[id] = c
			shift += c * n.lower[id]
		}
		rows = append(rows, denseRow{coeffs: coeffs, rel: relOf(r.rel), rhs: r.rhs - shift})
	}
	for i := 0; i < nVars; i++ {
		if math.IsInf(n.upper[i], 1) {
			continue
		}
		coeffs := make([]float64, nVars)
		coeffs[i] = 1
		rows = append(rows, denseRow{coeffs: coeffs, rel: relLE, rhs: n.upper[i] - n.lower[i]})
	}

	y, obj, status := solveLP(nVars, rows, cost)
	if status != lpOptimal {
		return nil, 0, status
	}
	x = make([]float64, nVars)
	for i := range x {
		x[i] = y[i] + n.lower[i]
	}
	// obj from solveLP excludes the constant contribution of the shift
	// (cost·lower) and the model's own objective constant; the caller
	// only compares objectives relative to each other within this
	// model, so both constants can be folded in uniformly.
	shiftConst := 0.0
	for i, c := range cost {
		shiftConst += c * n.lower[i]
	}
	obj += shiftConst + m.objConst
	return x, obj, lpOptimal
}

// relOf maps modeling.Relation onto this package's relLE/relGE/relEQ,
// which share the same LE/GE/EQ ordering by construction.
func relOf(r modeling.Relation) int {
	switch r {
	case modeling.GE:
		return relGE
	case modeling.EQ:
		return relEQ
	default:
		return relLE
	}
}
