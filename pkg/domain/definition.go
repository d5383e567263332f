package domain

import "sort"

// StepDefinition describes a single node of the flow graph.
// A step with a zero Next is terminal.
type StepDefinition struct {
	Next Transition `json:"next,omitzero" yaml:"next,omitempty"`
}

// FlowDefinition is the declarative step graph.
// It is plain data so it can be fetched from a database or an API and
// swapped at runtime; executable logic lives in RuntimeConfig.
type FlowDefinition struct {
	ID      string                    `json:"id" yaml:"id"`
	Start   string                    `json:"start" yaml:"start"`
	Version string                    `json:"version,omitempty" yaml:"version,omitempty"`
	Steps   map[string]StepDefinition `json:"steps" yaml:"steps"`
}

// HasStep reports whether id is a declared step.
func (d *FlowDefinition) HasStep(id string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Steps[id]
	return ok
}

// StepIDs returns the declared step ids in sorted order.
func (d *FlowDefinition) StepIDs() []string {
	ids := make([]string, 0, len(d.Steps))
	for id := range d.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolver computes the destination of a step from the context.
type Resolver func(Context) string

// ResolverMap binds resolvers to step ids.
type ResolverMap map[string]Resolver

// MigrateFunc upgrades a snapshot saved under fromVersion to the current definition.
type MigrateFunc func(old *PersistedFlowState, fromVersion string) (*PersistedFlowState, error)

// RuntimeConfig carries the executable parts of a flow that never travel with the definition.
type RuntimeConfig struct {
	Resolvers ResolverMap
	Migrate   MigrateFunc
}

// Handle pairs an unchanged, serializable definition with its runtime configuration.
type Handle struct {
	Config  *FlowDefinition
	Runtime RuntimeConfig
}

// With layers runtime configuration onto the definition.
// The definition itself is not modified; build receives it read-only.
func (d *FlowDefinition) With(build func(*FlowDefinition) RuntimeConfig) *Handle {
	h := &Handle{Config: d}
	if build != nil {
		h.Runtime = build(d)
	}
	if h.Runtime.Resolvers == nil {
		h.Runtime.Resolvers = ResolverMap{}
	}
	return h
}

// Bare wraps the definition in a handle without resolvers or migration.
func (d *FlowDefinition) Bare() *Handle {
	return d.With(nil)
}

// Resolver returns the resolver attached to stepID, if any.
func (h *Handle) Resolver(stepID string) Resolver {
	if h == nil || h.Runtime.Resolvers == nil {
		return nil
	}
	return h.Runtime.Resolvers[stepID]
}

// HasNext reports whether stepID has any way to move forward:
// a declared transition or an attached resolver.
func HasNext(def *FlowDefinition, resolvers ResolverMap, stepID string) bool {
	if resolvers[stepID] != nil {
		return true
	}
	if def == nil {
		return false
	}
	step, ok := def.Steps[stepID]
	if !ok {
		return false
	}
	return !step.Next.IsTerminal()
}

// HasNext reports whether stepID can move forward under this handle.
func (h *Handle) HasNext(stepID string) bool {
	if h == nil {
		return false
	}
	return HasNext(h.Config, h.Runtime.Resolvers, stepID)
}
