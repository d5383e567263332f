package dsl

import (
	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Builder manages the definition construction.
type Builder struct {
	def       domain.FlowDefinition
	resolvers domain.ResolverMap
	migrate   domain.MigrateFunc
	steps     map[string]*StepBuilder
}

// New creates a builder for flow id.
func New(id string) *Builder {
	return &Builder{
		def: domain.FlowDefinition{
			ID:    id,
			Steps: make(map[string]domain.StepDefinition),
		},
		resolvers: make(domain.ResolverMap),
		steps:     make(map[string]*StepBuilder),
	}
}

// Version sets the definition version stamped on snapshots.
func (b *Builder) Version(v string) *Builder {
	b.def.Version = v
	return b
}

// Start sets the start step.
func (b *Builder) Start(stepID string) *Builder {
	b.def.Start = stepID
	return b
}

// Migrate sets the function that upgrades snapshots from older versions.
func (b *Builder) Migrate(fn domain.MigrateFunc) *Builder {
	b.migrate = fn
	return b
}

// Add declares a step. If the step already exists, it returns the existing builder.
func (b *Builder) Add(id string) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	if b.def.Start == "" {
		b.def.Start = id
	}
	sb := &StepBuilder{id: id, builder: b}
	b.steps[id] = sb
	b.def.Steps[id] = domain.StepDefinition{}
	return sb
}

// Build validates the plain definition and layers the runtime configuration onto it.
func (b *Builder) Build() (*domain.Handle, error) {
	steps := make(map[string]domain.StepDefinition, len(b.def.Steps))
	for id, step := range b.def.Steps {
		steps[id] = step
	}
	def := b.def
	def.Steps = steps

	plain, err := definition.Define(def)
	if err != nil {
		return nil, err
	}

	resolvers := make(domain.ResolverMap, len(b.resolvers))
	for id, fn := range b.resolvers {
		resolvers[id] = fn
	}
	migrate := b.migrate

	return plain.With(func(*domain.FlowDefinition) domain.RuntimeConfig {
		return domain.RuntimeConfig{Resolvers: resolvers, Migrate: migrate}
	}), nil
}

// MustBuild is like Build but panics on an invalid definition.
func (b *Builder) MustBuild() *domain.Handle {
	h, err := b.Build()
	if err != nil {
		panic(err)
	}
	return h
}
