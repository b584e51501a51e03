package optimizer

import "github.com/llm-d-incubation/gpu-alloc-optimizer/internal/types"

// scenarioVariants mirrors the reference test matrix of spec §8: four
// models, three accelerator types, fixed per-variant accelerator counts
// and service rates.
func scenarioVariants() map[string]types.Variants {
	return map[string]types.Variants{
		"google-flan-xl": {
			"flan-a100": {VariantID: "flan-a100", AcceleratorType: "A100", AcceleratorCount: 6, MaxServiceRate: 15.0},
			"flan-h100": {VariantID: "flan-h100", AcceleratorType: "H100", AcceleratorCount: 3, MaxServiceRate: 20.0},
		},
		"lama-8b": {
			"lama8-a100+": {VariantID: "lama8-a100+", AcceleratorType: "A100+", AcceleratorCount: 5, MaxServiceRate: 10.0},
			"lama8-a100":  {VariantID: "lama8-a100", AcceleratorType: "A100", AcceleratorCount: 3, MaxServiceRate: 8.0},
		},
		"lama-80b": {
			"lama80-h100":  {VariantID: "lama80-h100", AcceleratorType: "H100", AcceleratorCount: 4, MaxServiceRate: 12.0},
			"lama80-a100+": {VariantID: "lama80-a100+", AcceleratorType: "A100+", AcceleratorCount: 7, MaxServiceRate: 10.0},
		},
		"mistral": {
			"mistral-a100": {VariantID: "mistral-a100", AcceleratorType: "A100", AcceleratorCount: 4, MaxServiceRate: 14.0},
			"mistral-h100": {VariantID: "mistral-h100", AcceleratorType: "H100", AcceleratorCount: 1, MaxServiceRate: 12.0},
		},
	}
}

func scenarioDemand() types.Rates {
	return types.Rates{
		"google-flan-xl": 25.0,
		"lama-8b":         20.0,
		"lama-80b":        22.0,
		"mistral":         15.0,
	}
}

func scenarioSupply() types.Supply {
	return types.Supply{"A100": 15, "H100": 17, "A100+": 20}
}

func scenarioCost() types.Cost {
	return types.Cost{"A100": 1.0, "H100": 1.3, "A100+": 1.2}
}

func baseBundle() types.Bundle {
	return types.Bundle{
		Variants: scenarioVariants(),
		Demand:   scenarioDemand(),
		Supply:   scenarioSupply(),
		Cost:     scenarioCost(),
	}
}

func replicaCounts(pairs map[string]map[string]int) types.ReplicaCounts {
	out := make(types.ReplicaCounts, len(pairs))
	for modelID, byVariant := range pairs {
		out[modelID] = byVariant
	}
	return out
}
