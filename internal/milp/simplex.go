package milp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// lpStatus is the outcome of one LP relaxation solve.
type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

// denseRow is one linear constraint over the box-shifted variables y,
// already expressed in <=/>=/== form against a non-negative rhs-free
// coefficient vector.
type denseRow struct {
	coeffs []float64
	rel    int // rel uses the same LE/GE/EQ values as modeling.Relation
	rhs    float64
}

const (
	relLE = iota
	relGE
	relEQ
)

// solveLP minimizes cost·y subject to rows and y >= 0, using a two-phase
// primal simplex with Bland's rule throughout (both phases), which
// guarantees termination without cycling regardless of degeneracy.
func solveLP(nVars int, rows []denseRow, cost []float64) (y []float64, obj float64, status lpStatus) {
	numRows := len(rows)

	normalized := make([]denseRow, numRows)
	for i, r := range rows {
		if r.rhs < -tol {
			flipped := make([]float64, nVars)
			for j, c := range r.coeffs {
				flipped[j] = -c
			}
			rel := r.rel
			switch rel {
			case relLE:
				rel = relGE
			case relGE:
				rel = relLE
			}
			normalized[i] = denseRow{coeffs: flipped, rel: rel, rhs: -r.rhs}
		} else {
			normalized[i] = r
		}
	}

	slackCol := make([]int, numRows)
	artCol := make([]int, numRows)
	totalCols := nVars
	for i, r := range normalized {
		slackCol[i], artCol[i] = -1, -1
		switch r.rel {
		case relLE:
			slackCol[i] = totalCols
			totalCols++
		case relGE:
			slackCol[i] = totalCols
			totalCols++
			artCol[i] = totalCols
			totalCols++
		case relEQ:
			artCol[i] = totalCols
			totalCols++
		}
	}

	// tableau has numRows+1 rows (last is the objective row) and
	// totalCols+1 columns (last is the rhs column).
	tableau := make([][]float64, numRows+1)
	for i := range tableau {
		tableau[i] = make([]float64, totalCols+1)
	}
	basis := make([]int, numRows)
	for i, r := range normalized {
		row := tableau[i]
		for j, c := range r.coeffs {
			row[j] = c
		}
		row[totalCols] = r.rhs
		if slackCol[i] >= 0 {
			coeff := 1.0
			if r.rel == relGE {
				coeff = -1.0
			}
			row[slackCol[i]] = coeff
		}
		if artCol[i] >= 0 {
			row[artCol[i]] = 1.0
			basis[i] = artCol[i]
		} else {
			basis[i] = slackCol[i]
		}
	}

	needsPhase1 := false
	for _, c := range artCol {
		if c >= 0 {
			needsPhase1 = true
			break
		}
	}

	if needsPhase1 {
		phaseCost := make([]float64, totalCols)
		for _, c := range artCol {
			if c >= 0 {
				phaseCost[c] = 1
			}
		}
		canonicalizeObjRow(tableau, basis, phaseCost, numRows, totalCols)
		if pivotLoop(tableau, basis, numRows, totalCols, nil) == lpUnbounded {
			// The phase-1 objective is bounded below by 0 by
			// construction; an unbounded pivot here means the
			// ratio test found no leaving row for an improving
			// column, which cannot happen while any artificial
			// variable is still driving the cost up. Treat
			// defensively as infeasible rather than looping.
			return nil, 0, lpInfeasible
		}
		phase1Obj := -tableau[numRows][totalCols]
		if !floats.EqualWithinAbs(phase1Obj, 0, 1e-7) {
			return nil, 0, lpInfeasible
		}
		// Pivot out any artificial variable still basic at zero
		// (degenerate phase-1 optimum), if a non-artificial column in
		// its row admits it. A row where none does is redundant: its
		// artificial variable stays basic at zero and simply never
		// becomes eligible to re-enter in phase 2.
		for i := 0; i < numRows; i++ {
			if !isArtificialColumn(artCol, basis[i]) {
				continue
			}
			for j := 0; j < totalCols; j++ {
				if isArtificialColumn(artCol, j) {
					continue
				}
				if math.Abs(tableau[i][j]) > tol {
					pivot(tableau, i, j, numRows, totalCols)
					basis[i] = j
					break
				}
			}
		}
	}

	forbidden := make([]bool, totalCols)
	for _, c := range artCol {
		if c >= 0 {
			forbidden[c] = true
		}
	}
	fullCost := make([]float64, totalCols)
	copy(fullCost, cost)
	canonicalizeObjRow(tableau, basis, fullCost, numRows, totalCols)
	if pivotLoop(tableau, basis, numRows, totalCols, forbidden) == lpUnbounded {
		return nil, 0, lpUnbounded
	}

	y = make([]float64, nVars)
	for i := 0; i < numRows; i++ {
		if basis[i] < nVars {
			y[basis[i]] = tableau[i][totalCols]
		}
	}
	obj = -tableau[numRows][totalCols]
	return y, obj, lpOptimal
}

func isArtificialColumn(artCol []int, col int) bool {
	for _, c := range artCol {
		if c == col {
			return true
		}
	}
	return false
}

func canonicalizeObjRow(tableau [][]float64, basis []int, cost []float64, numRows, totalCols int) {
	objRow := tableau[numRows]
	for j := 0; j < totalCols; j++ {
		objRow[j] = cost[j]
	}
	objRow[totalCols] = 0
	for i := 0; i < numRows; i++ {
		cb := cost[basis[i]]
		if cb == 0 {
			continue
		}
		row := tableau[i]
		for j := 0; j <= totalCols; j++ {
			objRow[j] -= cb * row[j]
		}
	}
}

// pivotLoop runs primal simplex pivots, selecting entering and leaving
// variables by Bland's rule (smallest index in both the entering-column
// search and the leaving-row tie-break), which guarantees termination.
func pivotLoop(tableau [][]float64, basis []int, numRows, totalCols int, forbidden []bool) lpStatus {
	objRow := numRows
	for {
		entering := -1
		for j := 0; j < totalCols; j++ {
			if forbidden != nil && forbidden[j] {
				continue
			}
			if tableau[objRow][j] < -tol {
				entering = j
				break
			}
		}
		if entering == -1 {
			return lpOptimal
		}

		leaving := -1
		bestRatio := math.Inf(1)
		for i := 0; i < numRows; i++ {
			a := tableau[i][entering]
			if a <= tol {
				continue
			}
			ratio := tableau[i][totalCols] / a
			if ratio < bestRatio-tol {
				bestRatio = ratio
				leaving = i
			} else if ratio < bestRatio+tol && (leaving == -1 || basis[i] < basis[leaving]) {
				bestRatio = math.Min(bestRatio, ratio)
				leaving = i
			}
		}
		if leaving == -1 {
			return lpUnbounded
		}
		pivot(tableau, leaving, entering, numRows, totalCols)
		basis[leaving] = entering
	}
}

func pivot(tableau [][]float64, r, c, numRows, totalCols int) {
	row := tableau[r]
	pv := row[c]
	for j := 0; j <= totalCols; j++ {
		row[j] /= pv
	}
	for i := 0; i <= numRows; i++ {
		if i == r {
			continue
		}
		factor := tableau[i][c]
		if factor == 0 {
			continue
		}
		other := tableau[i]
		for j := 0; j <= totalCols; j++ {
			other[j] -= factor * row[j]
		}
	}
}
