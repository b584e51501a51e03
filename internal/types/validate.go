package types

import (
	"fmt"
	"math"
)

// ValidationError reports a malformed Bundle: an unresolved variant
// reference, a negative rate or supply count, or a non-finite number.
// Per spec §7, this is raised before encoding begins and is distinct
// from the no-solution outcome, which is never an error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bundle field %s: %s", e.Field, e.Reason)
}

// Validate checks the invariants listed in spec §3: every variant
// referenced by a bound, current-layout entry, or demand entry must
// exist in the catalog, and no rate, count, or cost may be negative or
// non-finite.
func (b *Bundle) Validate() error {
	if err := b.checkNonNegative(); err != nil {
		return err
	}
	return b.checkReferences()
}

func (b *Bundle) checkNonNegative() error {
	for modelID, rate := range b.Demand {
		if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return &ValidationError{Field: "demand[" + modelID + "]", Reason: "negative or non-finite required service rate"}
		}
	}
	for accType, count := range b.Supply {
		if count < 0 {
			return &ValidationError{Field: "supply[" + accType + "]", Reason: "negative accelerator count"}
		}
	}
	for accType, cost := range b.Cost {
		if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
			return &ValidationError{Field: "cost[" + accType + "]", Reason: "negative or non-finite unit cost"}
		}
	}
	for modelID, variants := range b.Variants {
		for variantID, v := range variants {
			if !(v.AcceleratorCount > 0) || math.IsInf(v.AcceleratorCount, 1) {
				return &ValidationError{Field: modelID + "/" + variantID, Reason: "accelerator_count must be positive and finite"}
			}
			if !(v.MaxServiceRate > 0) || math.IsInf(v.MaxServiceRate, 1) {
				return &ValidationError{Field: modelID + "/" + variantID, Reason: "max_service_rate must be positive and finite"}
			}
		}
	}
	return nil
}

func (b *Bundle) checkReferences() error {
	resolve := func(source, modelID, variantID string) error {
		setups, ok := b.Variants[modelID]
		if !ok {
			return &ValidationError{Field: source, Reason: "references unknown model " + modelID}
		}
		if _, ok := setups[variantID]; !ok {
			return &ValidationError{Field: source, Reason: "references unknown variant " + variantID + " of model " + modelID}
		}
		return nil
	}
	for modelID, byVariant := range b.CurrentLayout {
		for variantID := range byVariant {
			if err := resolve("current_layout", modelID, variantID); err != nil {
				return err
			}
		}
	}
	for modelID, byVariant := range b.MaxReplicas {
		for variantID := range byVariant {
			if err := resolve("max_replicas", modelID, variantID); err != nil {
				return err
			}
		}
	}
	for modelID, byVariant := range b.MinReplicas {
		for variantID := range byVariant {
			if err := resolve("min_replicas", modelID, variantID); err != nil {
				return err
			}
		}
	}
	for modelID := range b.Demand {
		if _, ok := b.Variants[modelID]; !ok {
			return &ValidationError{Field: "required_rates", Reason: "references unknown model " + modelID}
		}
	}
	return nil
}
