/*
Package waypoint drives multi-step flows such as onboarding wizards and checkouts.

A flow is a plain, serializable graph of steps (domain.FlowDefinition) that can
be fetched from a file, a database or an API and swapped at runtime for A/B
variants. Branching logic that needs code is attached locally as resolvers,
never transmitted with the definition.

# Concept

The engine is a pure reducer (Reduce) over a FlowState: the current step, the
context collected so far, the back-stack (path) and the full visit history.
Flow wraps the reducer with an owned state, serialized dispatches, hooks, and
persistence of snapshots keyed by flow, instance and variant.

# Usage

	handle := definition.MustDefine(domain.FlowDefinition{
		ID:      "onboarding",
		Start:   "welcome",
		Version: "1",
		Steps: map[string]domain.StepDefinition{
			"welcome": {Next: domain.To("plan")},
			"plan":    {Next: domain.OneOf("team", "solo")},
			"team":    {Next: domain.To("done")},
			"solo":    {Next: domain.To("done")},
			"done":    {},
		},
	}).Bare()

	flow, err := waypoint.New(handle, domain.Context{"seats": 1},
		waypoint.WithPersister(persistence.New(file.New(".waypoint/snapshots"))),
		waypoint.WithInstanceID("task-1"),
		waypoint.WithAutoSave(true),
	)
	if err != nil {
		log.Fatal(err)
	}

	flow.Restore(ctx) // resume, or stay on the start step
	_ = flow.Next(ctx, domain.Navigation{})
	_ = flow.Next(ctx, domain.Navigation{Target: "solo"})

# Persistence

Persistence failures never escape a Flow. Restoring a snapshot saved under a
different definition version either runs the handle's MigrateFunc or falls
back to the initial state; the failure is reported through
Hooks.OnPersistenceError.
*/
package waypoint
