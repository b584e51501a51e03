// Package optimizer implements the GPU allocation core: the Problem
// Encoder, Solver Driver, and Result Assembler wired together behind a
// single Optimize entry point (spec §6). The core is a pure function of
// its input Bundle — no state survives between calls.
package optimizer

import (
	"context"
	"time"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/logger"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/metrics"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/milp"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/types"
)

// Optimize validates b, encodes it as a MILP against this repository's
// reference backend (internal/milp), solves it, and assembles the
// result. Validation failures are returned as *types.ValidationError;
// "no feasible plan" is never an error, only an empty AllocationResult.
func Optimize(ctx context.Context, b types.Bundle) (types.AllocationResult, error) {
	if err := b.Validate(); err != nil {
		return types.AllocationResult{}, err
	}

	logger.Log.Debugw("encoding allocation problem",
		"models", len(b.Variants), "accelerator_types", len(b.Supply))

	start := time.Now()
	enc, err := encode(b, milp.New())
	if err != nil {
		return types.AllocationResult{}, err
	}

	out, err := drive(ctx, enc)
	if err != nil {
		return types.AllocationResult{}, err
	}

	result := assemble(b, enc, out)
	elapsed := time.Since(start)
	metrics.ObserveSolve(elapsed, out.solved)
	if !out.solved {
		metrics.IncInfeasible()
	}
	for t, remaining := range result.GPUAfterAllocation {
		metrics.SetGPURemaining(t, remaining)
	}

	logger.Log.Infow("allocation solved",
		"solved", out.solved, "duration", elapsed)

	return result, nil
}
