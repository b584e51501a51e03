package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/types"
)

func replicaOf(t *testing.T, result types.AllocationResult, modelID, variantID string) int {
	t.Helper()
	model, ok := result.ModelsData[modelID]
	require.Truef(t, ok, "missing model %s in models_data", modelID)
	inst, ok := model.RequiredInstances[variantID]
	require.Truef(t, ok, "missing variant %s of model %s in models_data", variantID, modelID)
	return inst.InstanceNum
}

func TestOptimizeScenarioA(t *testing.T) {
	b := baseBundle()
	b.ScaleToZero = types.NewScaleToZero([]string{"lama-80b"})
	b.Flags = types.Flags{ChangePenalty: 0, Homogeneous: true}
	b.MinReplicas = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1},
		"mistral":         {"mistral-h100": 1},
	})
	b.MaxReplicas = replicaCounts(map[string]map[string]int{
		"lama-8b":  {"lama8-a100+": 3, "lama8-a100": 2},
		"mistral":  {"mistral-a100": 2, "mistral-h100": 2},
	})
	b.CurrentLayout = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1, "flan-h100": 0},
		"lama-80b":        {"lama80-h100": 1, "lama80-a100+": 0},
		"lama-8b":         {"lama8-a100+": 1, "lama8-a100": 0},
		"mistral":         {"mistral-a100": 0, "mistral-h100": 0},
	})

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A100": 3, "A100+": 10, "H100": 7}, result.GPUAfterAllocation)
	assert.Equal(t, 2, replicaOf(t, result, "google-flan-xl", "flan-a100"))
	assert.Equal(t, 0, replicaOf(t, result, "google-flan-xl", "flan-h100"))
	assert.Equal(t, 2, replicaOf(t, result, "lama-80b", "lama80-h100"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-80b", "lama80-a100+"))
	assert.Equal(t, 2, replicaOf(t, result, "lama-8b", "lama8-a100+"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-8b", "lama8-a100"))
	assert.Equal(t, 0, replicaOf(t, result, "mistral", "mistral-a100"))
	assert.Equal(t, 2, replicaOf(t, result, "mistral", "mistral-h100"))
}

func TestOptimizeScenarioB(t *testing.T) {
	b := baseBundle()
	b.ScaleToZero = types.NewScaleToZero([]string{"lama-80b"})
	b.Flags = types.Flags{ChangePenalty: 3, Homogeneous: false}
	b.MinReplicas = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1},
		"mistral":         {"mistral-h100": 1},
	})
	b.MaxReplicas = replicaCounts(map[string]map[string]int{
		"lama-8b": {"lama8-a100+": 3, "lama8-a100": 2},
		"mistral": {"mistral-a100": 2, "mistral-h100": 2},
	})
	b.CurrentLayout = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1, "flan-h100": 1},
		"lama-80b":        {"lama80-h100": 1, "lama80-a100+": 0},
		"lama-8b":         {"lama8-a100+": 1, "lama8-a100": 0},
		"mistral":         {"mistral-a100": 0, "mistral-h100": 0},
	})

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A100": 9, "A100+": 10, "H100": 4}, result.GPUAfterAllocation)
	assert.Equal(t, 1, replicaOf(t, result, "google-flan-xl", "flan-a100"))
	assert.Equal(t, 1, replicaOf(t, result, "google-flan-xl", "flan-h100"))
	assert.Equal(t, 2, replicaOf(t, result, "lama-80b", "lama80-h100"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-80b", "lama80-a100+"))
	assert.Equal(t, 2, replicaOf(t, result, "lama-8b", "lama8-a100+"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-8b", "lama8-a100"))
	assert.Equal(t, 0, replicaOf(t, result, "mistral", "mistral-a100"))
	assert.Equal(t, 2, replicaOf(t, result, "mistral", "mistral-h100"))
}

func TestOptimizeScenarioC(t *testing.T) {
	b := baseBundle()
	b.ScaleToZero = types.NewScaleToZero(nil) // lama-80b no longer scale-to-zero exempt
	b.Flags = types.Flags{ChangePenalty: 3, Homogeneous: false}
	b.MinReplicas = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1},
		"mistral":         {"mistral-h100": 1},
	})
	b.MaxReplicas = replicaCounts(map[string]map[string]int{
		"lama-8b": {"lama8-a100+": 3, "lama8-a100": 2},
		"mistral": {"mistral-a100": 2, "mistral-h100": 2},
	})
	b.CurrentLayout = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1, "flan-h100": 1},
		"lama-80b":        {"lama80-h100": 1, "lama80-a100+": 0},
		"lama-8b":         {"lama8-a100+": 1, "lama8-a100": 0},
		"mistral":         {"mistral-a100": 0, "mistral-h100": 0},
	})

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	// Result is unchanged from Scenario B: lama-80b's current layout is
	// already non-zero, so the minimum-one rule forces it active with
	// or without scale-to-zero exemption.
	assert.Equal(t, map[string]int{"A100": 9, "A100+": 10, "H100": 4}, result.GPUAfterAllocation)
	assert.Equal(t, 2, replicaOf(t, result, "lama-80b", "lama80-h100"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-80b", "lama80-a100+"))
}

func TestOptimizeScenarioD(t *testing.T) {
	b := baseBundle()
	b.ScaleToZero = types.NewScaleToZero(nil)
	b.Flags = types.Flags{ChangePenalty: 3, Homogeneous: false}
	b.CurrentLayout = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1, "flan-h100": 1},
		"lama-80b":        {"lama80-h100": 1, "lama80-a100+": 0},
		"lama-8b":         {"lama8-a100+": 1, "lama8-a100": 0},
		"mistral":         {"mistral-a100": 0, "mistral-h100": 0},
	})
	// min_replicas and max_replicas both cleared.

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A100": 3, "A100+": 15, "H100": 4}, result.GPUAfterAllocation)
	assert.Equal(t, 1, replicaOf(t, result, "google-flan-xl", "flan-a100"))
	assert.Equal(t, 1, replicaOf(t, result, "google-flan-xl", "flan-h100"))
	assert.Equal(t, 2, replicaOf(t, result, "lama-80b", "lama80-h100"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-80b", "lama80-a100+"))
	assert.Equal(t, 1, replicaOf(t, result, "lama-8b", "lama8-a100+"))
	assert.Equal(t, 2, replicaOf(t, result, "lama-8b", "lama8-a100"))
	assert.Equal(t, 0, replicaOf(t, result, "mistral", "mistral-a100"))
	assert.Equal(t, 2, replicaOf(t, result, "mistral", "mistral-h100"))
}

func TestOptimizeZeroDemandAllZero(t *testing.T) {
	b := types.Bundle{
		Variants: scenarioVariants(),
		Demand:   types.Rates{},
		Supply:   scenarioSupply(),
		Cost:     scenarioCost(),
	}
	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A100": 15, "H100": 17, "A100+": 20}, result.GPUAfterAllocation)
	for modelID, variants := range b.Variants {
		for variantID := range variants {
			assert.Equalf(t, 0, replicaOf(t, result, modelID, variantID),
				"%s/%s should be zero under zero demand", modelID, variantID)
		}
	}
}

func TestOptimizeInsufficientSupplyIsEmpty(t *testing.T) {
	b := baseBundle()
	b.Supply = types.Supply{"A100": 0, "H100": 0, "A100+": 0}

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	assert.Empty(t, result.ModelsData)
	assert.Empty(t, result.GPUAfterAllocation)
}

func TestOptimizeHomogeneousWithConflictingMinReplicasIsInfeasible(t *testing.T) {
	b := baseBundle()
	b.Flags = types.Flags{Homogeneous: true}
	b.MinReplicas = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"flan-a100": 1, "flan-h100": 1},
	})

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	assert.Empty(t, result.ModelsData)
	assert.Empty(t, result.GPUAfterAllocation)
}

func TestOptimizeVariantWithUnsuppliedAcceleratorTypeIsUnusable(t *testing.T) {
	b := baseBundle()
	b.Supply = types.Supply{"H100": 17, "A100+": 20} // no "A100" at all
	b.ScaleToZero = types.NewScaleToZero([]string{"google-flan-xl", "lama-8b", "lama-80b", "mistral"})

	result, err := Optimize(context.Background(), b)
	require.NoError(t, err)

	// flan-a100 and mistral-a100 and lama8-a100 reference a type with zero
	// supply entries; they must stay at zero even though every model is
	// scale-to-zero-eligible and so the solver is free to pick them.
	assert.Equal(t, 0, replicaOf(t, result, "google-flan-xl", "flan-a100"))
	assert.Equal(t, 0, replicaOf(t, result, "lama-8b", "lama8-a100"))
	assert.Equal(t, 0, replicaOf(t, result, "mistral", "mistral-a100"))
	_, hasA100 := result.GPUAfterAllocation["A100"]
	assert.False(t, hasA100)
}

func TestOptimizeRejectsUnknownVariantReference(t *testing.T) {
	b := baseBundle()
	b.MinReplicas = replicaCounts(map[string]map[string]int{
		"google-flan-xl": {"does-not-exist": 1},
	})

	_, err := Optimize(context.Background(), b)
	require.Error(t, err)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}
