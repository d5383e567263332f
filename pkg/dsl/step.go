package dsl

import "github.com/aretw0/waypoint/pkg/domain"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	id      string
	builder *Builder
}

func (s *StepBuilder) setNext(t domain.Transition) *StepBuilder {
	s.builder.def.Steps[s.id] = domain.StepDefinition{Next: t}
	return s
}

// Next moves unconditionally to stepID.
func (s *StepBuilder) Next(stepID string) *StepBuilder {
	return s.setNext(domain.To(stepID))
}

// OneOf declares the possible destinations. Without a resolver or an explicit
// target at dispatch time, the choice cannot be made.
func (s *StepBuilder) OneOf(stepIDs ...string) *StepBuilder {
	return s.setNext(domain.OneOf(stepIDs...))
}

// Compute sets a transition computed from the context.
// Computed transitions are not part of the serialized definition.
func (s *StepBuilder) Compute(fn func(domain.Context) string) *StepBuilder {
	return s.setNext(domain.Computed(fn))
}

// Resolve attaches a resolver, which takes precedence over the declared transition.
func (s *StepBuilder) Resolve(fn domain.Resolver) *StepBuilder {
	s.builder.resolvers[s.id] = fn
	return s
}

// Terminal marks the step as the end of the flow.
func (s *StepBuilder) Terminal() *StepBuilder {
	delete(s.builder.resolvers, s.id)
	return s.setNext(domain.Transition{})
}

// Add declares the next step, allowing a single chain for the whole flow.
func (s *StepBuilder) Add(id string) *StepBuilder {
	return s.builder.Add(id)
}

// Build builds the enclosing flow.
func (s *StepBuilder) Build() (*domain.Handle, error) {
	return s.builder.Build()
}

// Flow returns the enclosing builder.
func (s *StepBuilder) Flow() *Builder {
	return s.builder
}
