package optimizer

import (
	"math"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/types"
)

// assemble turns a driver outcome into the final AllocationResult,
// following the Result Assembler design: nearest-integer rounding,
// remaining-inventory computation, and the degenerate-no-eligible-type
// pass-through. A "no solution" outcome yields the empty result, never
// an error.
func assemble(b types.Bundle, e *encoding, out outcome) types.AllocationResult {
	if !out.solved {
		return types.EmptyResult()
	}

	result := types.EmptyResult()

	if e.degenerate {
		for t, supply := range b.Supply {
			result.GPUAfterAllocation[t] = supply
		}
	} else {
		consumed := make(map[string]int, len(e.usedGPU))
		for t, v := range e.usedGPU {
			consumed[t] = int(math.Round(out.solution.ValueOf(v)))
		}
		for t, supply := range b.Supply {
			if !e.eligible[t] {
				result.GPUAfterAllocation[t] = supply
				continue
			}
			remaining := supply - consumed[t]
			if remaining < 0 {
				remaining = 0
			}
			result.GPUAfterAllocation[t] = remaining
		}
	}

	for modelID, variants := range b.Variants {
		required := make(map[string]types.InstanceAllocation, len(variants))
		for variantID, v := range variants {
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			etaVar, ok := e.eta[key]
			if !ok {
				continue
			}
			count := int(math.Round(out.solution.ValueOf(etaVar)))
			required[variantID] = types.InstanceAllocation{
				InstanceNum:      count,
				AcceleratorType:  v.AcceleratorType,
				AcceleratorCount: v.AcceleratorCount,
			}
		}
		result.ModelsData[modelID] = types.ModelAllocation{RequiredInstances: required}
	}

	return result
}
