package optimizer

import (
	"math"
	"sort"

	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/modeling"
	"github.com/llm-d-incubation/gpu-alloc-optimizer/internal/types"
)

// encoding is everything the Solver Driver and Result Assembler need to
// read a solved model back into an AllocationResult: the built Model,
// plus the handles the Problem Encoder assigned to each decision
// variable, keyed the same way the Encoder declared them.
type encoding struct {
	model model

	eta         map[types.ModelVariantKey]modeling.Var
	usedGPU     map[string]modeling.Var
	delta       map[types.ModelVariantKey]modeling.Var
	eligible    map[string]bool
	maxGPUCost  float64
	degenerate  bool // no accelerator type has any eligible variant
}

// model is modeling.Model under a local name; encode takes it as a
// parameter so tests can swap in a fake without importing internal/milp.
type model = modeling.Model

// encode builds the MILP described in the Problem Encoder design: eta,
// used_gpu, and (when change_penalty > 0) delta variables; replica
// bound, homogeneity, minimum-one, service-rate, supply, accounting, and
// change-penalty constraints; and the cost-plus-churn objective.
func encode(b types.Bundle, m model) (*encoding, error) {
	e := &encoding{
		model:   m,
		eta:     make(map[types.ModelVariantKey]modeling.Var),
		usedGPU: make(map[string]modeling.Var),
		delta:   make(map[types.ModelVariantKey]modeling.Var),
	}

	eligibleTypes := eligibleAcceleratorTypes(b)
	e.eligible = eligibleTypes
	e.degenerate = len(eligibleTypes) == 0

	if err := e.declareEta(b); err != nil {
		return nil, err
	}
	if !e.degenerate {
		if err := e.declareUsedGPU(b, eligibleTypes); err != nil {
			return nil, err
		}
	}

	e.maxGPUCost = maxEligibleCost(b, eligibleTypes)

	if err := e.addReplicaBounds(b); err != nil {
		return nil, err
	}
	if err := e.addHomogeneity(b); err != nil {
		return nil, err
	}
	if err := e.addMinimumOne(b); err != nil {
		return nil, err
	}
	if err := e.addServiceRate(b); err != nil {
		return nil, err
	}
	if !e.degenerate {
		if err := e.addSupplyAndAccounting(b, eligibleTypes); err != nil {
			return nil, err
		}
	}

	var deltaTerms []modeling.Expr
	if b.Flags.ChangePenalty > 0 {
		terms, err := e.addChangePenalty(b)
		if err != nil {
			return nil, err
		}
		deltaTerms = terms
	}

	e.setObjective(b, deltaTerms)
	return e, nil
}

// eligibleAcceleratorTypes returns the accelerator types that both appear
// in Supply and are used by at least one variant in the catalog.
func eligibleAcceleratorTypes(b types.Bundle) map[string]bool {
	used := map[string]bool{}
	for _, variants := range b.Variants {
		for _, v := range variants {
			used[v.AcceleratorType] = true
		}
	}
	eligible := map[string]bool{}
	for t := range b.Supply {
		if used[t] {
			eligible[t] = true
		}
	}
	return eligible
}

func maxEligibleCost(b types.Bundle, eligible map[string]bool) float64 {
	max := 0.0
	for t := range eligible {
		if c := b.Cost[t]; c > max {
			max = c
		}
	}
	return max
}

// etaUpperBound derives a finite upper bound on eta[m,v] that is valid
// for every cost-optimal solution: if max_replicas caps it, that cap is
// itself already a hard constraint and so is safe to reuse directly;
// otherwise, replicas beyond what is needed to single-handedly cover
// demand only add cost and so never help an optimal solution, except
// that min_replicas (a separate hard floor) and the minimum-one rule
// (which needs headroom of at least 1) must still fit inside the bound.
func etaUpperBound(demand float64, rate float64, maxReplica, minReplica int, hasMax bool) float64 {
	if hasMax {
		return float64(maxReplica)
	}
	ub := math.Max(float64(minReplica), 1)
	if demand > 0 && rate > 0 {
		ub = math.Max(ub, math.Ceil(demand/rate))
	}
	return ub
}

func (e *encoding) declareEta(b types.Bundle) error {
	modelIDs := sortedKeys(b.Variants)
	for _, modelID := range modelIDs {
		variantIDs := sortedVariantKeys(b.Variants[modelID])
		for _, variantID := range variantIDs {
			v := b.Variants[modelID][variantID]
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}

			maxReplica, hasMax := lookup2(b.MaxReplicas, modelID, variantID)
			minReplica, _ := lookup2(b.MinReplicas, modelID, variantID)
			ub := etaUpperBound(b.Demand[modelID], v.MaxServiceRate, maxReplica, minReplica, hasMax)
			if _, hasSupply := b.Supply[v.AcceleratorType]; !hasSupply {
				// No accelerators of this type exist at all; the variant
				// can never be deployed, regardless of demand or bounds.
				ub = 0
			}

			vars, err := e.model.AddIntegerVars([]modeling.Key{key}, "eta",
				modeling.Bounds{Lower: 0, Upper: ub})
			if err != nil {
				return err
			}
			e.eta[key] = vars[key]
		}
	}
	return nil
}

func (e *encoding) declareUsedGPU(b types.Bundle, eligible map[string]bool) error {
	for _, t := range sortedSet(eligible) {
		keys := []modeling.Key{t}
		vars, err := e.model.AddIntegerVars(keys, "used_gpu",
			modeling.Bounds{Lower: 0, Upper: float64(b.Supply[t])})
		if err != nil {
			return err
		}
		e.usedGPU[t] = vars[t]
	}
	return nil
}

func (e *encoding) addReplicaBounds(b types.Bundle) error {
	var constraints []modeling.Constraint
	for modelID, byVariant := range b.MaxReplicas {
		for variantID, max := range byVariant {
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			v, ok := e.eta[key]
			if !ok {
				continue
			}
			constraints = append(constraints, modeling.LessOrEqual(
				modeling.Coeff(1, v), modeling.C(float64(max))))
		}
	}
	if err := e.model.AddConstraints(constraints, "replica_max"); err != nil {
		return err
	}

	constraints = nil
	for modelID, byVariant := range b.MinReplicas {
		for variantID, min := range byVariant {
			if min == 0 {
				continue
			}
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			v, ok := e.eta[key]
			if !ok {
				continue
			}
			constraints = append(constraints, modeling.GreaterOrEqual(
				modeling.Coeff(1, v), modeling.C(float64(min))))
		}
	}
	return e.model.AddConstraints(constraints, "replica_min")
}

func (e *encoding) addHomogeneity(b types.Bundle) error {
	if !b.Flags.Homogeneous {
		return nil
	}
	for _, modelID := range sortedKeys(b.Demand) {
		variants, ok := b.Variants[modelID]
		if !ok {
			continue
		}
		group := make([]modeling.Var, 0, len(variants))
		for _, variantID := range sortedVariantKeys(variants) {
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			group = append(group, e.eta[key])
		}
		if err := e.model.AddSOS1(group); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoding) addMinimumOne(b types.Bundle) error {
	var constraints []modeling.Constraint
	for _, modelID := range sortedKeys(b.Variants) {
		if b.ScaleToZero.Contains(modelID) {
			continue
		}
		if currentLayoutTotal(b.CurrentLayout, modelID) <= 0 {
			continue
		}
		variants := b.Variants[modelID]
		terms := make([]modeling.Expr, 0, len(variants))
		for _, variantID := range sortedVariantKeys(variants) {
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			terms = append(terms, modeling.Coeff(1, e.eta[key]))
		}
		constraints = append(constraints, modeling.GreaterOrEqual(
			e.model.Sum(terms...), modeling.C(1)))
	}
	return e.model.AddConstraints(constraints, "minimum_one")
}

func (e *encoding) addServiceRate(b types.Bundle) error {
	var constraints []modeling.Constraint
	for _, modelID := range sortedKeys(b.Demand) {
		variants, ok := b.Variants[modelID]
		if !ok {
			continue
		}
		terms := make([]modeling.Expr, 0, len(variants))
		for _, variantID := range sortedVariantKeys(variants) {
			v := variants[variantID]
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			terms = append(terms, modeling.Coeff(v.MaxServiceRate, e.eta[key]))
		}
		constraints = append(constraints, modeling.GreaterOrEqual(
			e.model.Sum(terms...), modeling.C(b.Demand[modelID])))
	}
	return e.model.AddConstraints(constraints, "service_rate")
}

func (e *encoding) addSupplyAndAccounting(b types.Bundle, eligible map[string]bool) error {
	var supplyConstraints, accountingConstraints []modeling.Constraint
	for _, t := range sortedSet(eligible) {
		var terms []modeling.Expr
		for _, modelID := range sortedKeys(b.Variants) {
			for _, variantID := range sortedVariantKeys(b.Variants[modelID]) {
				v := b.Variants[modelID][variantID]
				if v.AcceleratorType != t {
					continue
				}
				key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
				terms = append(terms, modeling.Coeff(v.AcceleratorCount, e.eta[key]))
			}
		}
		sum := e.model.Sum(terms...)
		supplyConstraints = append(supplyConstraints, modeling.LessOrEqual(sum, modeling.C(float64(b.Supply[t]))))
		accountingConstraints = append(accountingConstraints, modeling.GreaterOrEqual(
			modeling.Coeff(1, e.usedGPU[t]), sum))
	}
	if err := e.model.AddConstraints(supplyConstraints, "supply"); err != nil {
		return err
	}
	return e.model.AddConstraints(accountingConstraints, "used_gpu_accounting")
}

// addChangePenalty declares delta[m,v] for every (model, variant) in
// Current Layout and the one-sided linearization constraints; it returns
// the delta terms so the caller can fold them into the objective.
func (e *encoding) addChangePenalty(b types.Bundle) ([]modeling.Expr, error) {
	var terms []modeling.Expr
	var constraints []modeling.Constraint

	for _, modelID := range sortedKeys(b.CurrentLayout) {
		variants, ok := b.Variants[modelID]
		if !ok {
			continue
		}
		deltaRate := -b.Demand[modelID]
		for variantID, current := range b.CurrentLayout[modelID] {
			if v, ok := variants[variantID]; ok {
				deltaRate += float64(current) * v.MaxServiceRate
			}
		}
		overProvisioned := deltaRate >= 0

		for _, variantID := range sortedKeys(b.CurrentLayout[modelID]) {
			current := b.CurrentLayout[modelID][variantID]
			v, ok := variants[variantID]
			if !ok {
				continue
			}
			key := types.ModelVariantKey{ModelID: modelID, VariantID: variantID}
			etaVar, ok := e.eta[key]
			if !ok {
				continue
			}

			maxReplica, hasMax := lookup2(b.MaxReplicas, modelID, variantID)
			minReplica, _ := lookup2(b.MinReplicas, modelID, variantID)
			etaUB := etaUpperBound(b.Demand[modelID], v.MaxServiceRate, maxReplica, minReplica, hasMax)
			deltaUB := etaUB + float64(current)

			vars, err := e.model.AddContinuousVars([]modeling.Key{key}, "delta",
				modeling.Bounds{Lower: 0, Upper: deltaUB})
			if err != nil {
				return nil, err
			}
			deltaVar := vars[key]
			e.delta[key] = deltaVar
			terms = append(terms, modeling.Coeff(1, deltaVar))

			if overProvisioned {
				// delta >= eta - current
				constraints = append(constraints, modeling.GreaterOrEqual(
					modeling.Coeff(1, deltaVar),
					modeling.Coeff(1, etaVar).Plus(modeling.C(-float64(current)))))
			} else {
				// delta >= current - eta
				constraints = append(constraints, modeling.GreaterOrEqual(
					modeling.Coeff(1, deltaVar),
					modeling.C(float64(current)).Plus(modeling.Coeff(-1, etaVar))))
			}
		}
	}

	if err := e.model.AddConstraints(constraints, "change_penalty"); err != nil {
		return nil, err
	}
	return terms, nil
}

func (e *encoding) setObjective(b types.Bundle, deltaTerms []modeling.Expr) {
	var costTerms []modeling.Expr
	for _, t := range sortedSet(e.eligible) {
		costTerms = append(costTerms, modeling.Coeff(b.Cost[t], e.usedGPU[t]))
	}
	objective := e.model.Sum(costTerms...)
	if b.Flags.ChangePenalty > 0 && len(deltaTerms) > 0 {
		penalty := e.model.Sum(deltaTerms...).Scale(b.Flags.ChangePenalty * e.maxGPUCost)
		objective = e.model.Sum(objective, penalty)
	}
	e.model.Minimize(objective)
}

func currentLayoutTotal(layout types.ReplicaCounts, modelID string) int {
	total := 0
	for _, count := range layout[modelID] {
		total += count
	}
	return total
}

func lookup2(m types.ReplicaCounts, modelID, variantID string) (int, bool) {
	byVariant, ok := m[modelID]
	if !ok {
		return 0, false
	}
	v, ok := byVariant[variantID]
	return v, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedVariantKeys(m types.Variants) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
