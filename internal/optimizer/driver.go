package optimizer

import (
	"context"
	"errors"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/modeling"
)

// outcome is the Solver Driver's verdict: either a Solution handle ready
// for read-back, or no solution at all. The core never distinguishes
// infeasible, unbounded, and solver-failure causes (spec §4.3).
type outcome struct {
	solution modeling.Solution
	solved   bool
}

// drive invokes Solve and reduces its result to the two outcomes the
// Result Assembler understands. Any error other than ErrInfeasible (a
// genuine backend failure) propagates to the caller unchanged.
func drive(ctx context.Context, e *encoding) (outcome, error) {
	sol, err := e.model.Solve(ctx)
	if err == nil {
		return outcome{solution: sol, solved: true}, nil
	}
	if errors.Is(err, modeling.ErrInfeasible) {
		return outcome{solved: false}, nil
	}
	return outcome{}, err
}
