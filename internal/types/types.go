// Package types holds the value records the optimizer operates on: the
// catalog of deployment variants, demand and supply, and the allocation
// result handed back to the caller. Every entity here is immutable for
// the duration of one Optimize call.
package types

// Variant is a candidate deployment of a model on a given accelerator
// type and count, with a measured maximum service rate.
type Variant struct {
	VariantID        string  `json:"variant_id"`
	AcceleratorType  string  `json:"accelerator_type"`
	AcceleratorCount float64 `json:"accelerator_count"`
	MaxServiceRate   float64 `json:"max_service_rate"`

	// Descriptive fields, ignored by the optimizer but preserved on the
	// wire so callers round-trip them.
	Role           string  `json:"role,omitempty"`
	SLOClass       string  `json:"slo_class,omitempty"`
	MaxConcurrency float64 `json:"max_concurrency,omitempty"`
}

// Variants maps variant_id to Variant for a single model.
type Variants map[string]Variant

// ModelVariantKey is the composite key used for every per-(model,variant)
// map the optimizer builds internally. It replaces the ad-hoc tuple keys
// of the source this was distilled from.
type ModelVariantKey struct {
	ModelID   string
	VariantID string
}

// ReplicaCounts maps model_id -> variant_id -> non-negative integer,
// used for Current Layout and for Replica Bounds' min/max maps.
type ReplicaCounts map[string]map[string]int

// Rates maps model_id -> required aggregate service rate.
type Rates map[string]float64

// Supply maps accelerator_type -> available unit count.
type Supply map[string]int

// Cost maps accelerator_type -> unit price.
type Cost map[string]float64

// ScaleToZero is the set of model_id permitted to receive zero total
// replicas.
type ScaleToZero map[string]struct{}

// NewScaleToZero builds a ScaleToZero set from a slice of model IDs.
func NewScaleToZero(ids []string) ScaleToZero {
	s := make(ScaleToZero, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether modelID is in the scale-to-zero set. A nil
// set contains nothing.
func (s ScaleToZero) Contains(modelID string) bool {
	_, ok := s[modelID]
	return ok
}

// Flags are the modeling options that change which constraints the
// Problem Encoder emits.
type Flags struct {
	ChangePenalty float64
	Homogeneous   bool
}

// Bundle is the validated input to one optimization call: §6's optimize
// operation, made concrete.
type Bundle struct {
	Variants      map[string]Variants
	Demand        Rates
	Supply        Supply
	Cost          Cost
	ScaleToZero   ScaleToZero
	CurrentLayout ReplicaCounts
	MaxReplicas   ReplicaCounts
	MinReplicas   ReplicaCounts
	Flags         Flags
}

// InstanceAllocation is the replica count and static attributes of one
// (model, variant) in the result.
type InstanceAllocation struct {
	InstanceNum      int     `json:"instance_num"`
	AcceleratorType  string  `json:"accelerator_type"`
	AcceleratorCount float64 `json:"accelerator_count"`
}

// ModelAllocation groups the per-variant allocations of a single model.
type ModelAllocation struct {
	RequiredInstances map[string]InstanceAllocation `json:"requiredInstances"`
}

// AllocationResult is the output of one optimize call. All fields are
// always present — empty collections rather than absent keys — so
// callers never have to nil-check.
type AllocationResult struct {
	GPUAfterAllocation  map[string]int             `json:"gpu_after_allocation"`
	ModelsData          map[string]ModelAllocation `json:"models_data"`
	ImpossibleModels    []string                   `json:"impossible_models"`
	StrangeModels       []string                   `json:"strange_models"`
	MissingModels       []string                   `json:"missing_models"`
	ImpossibleInstances map[string][]string        `json:"impossible_instances"`
}

// EmptyResult is the degenerate "no feasible plan" record: a structurally
// valid AllocationResult with every collection empty rather than nil, so
// JSON-encodes to `{}`/`[]` rather than `null`.
func EmptyResult() AllocationResult {
	return AllocationResult{
		GPUAfterAllocation:  map[string]int{},
		ModelsData:          map[string]ModelAllocation{},
		ImpossibleModels:    []string{},
		StrangeModels:       []string{},
		MissingModels:       []string{},
		ImpossibleInstances: map[string][]string{},
	}
}
