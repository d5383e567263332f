/*
Package domain contains the core data model of the Waypoint flow engine.

It defines the step graph (FlowDefinition, StepDefinition, Transition), the
runtime snapshot of a flow instance (FlowState with its Path and History),
the actions a host dispatches, and the persisted envelope used by storage
adapters. This package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - FlowDefinition: plain, JSON-serializable step graph (id, start, version, steps).
  - Transition: the outgoing edge(s) of a step: a single step, a choice list or a computed function.
  - Handle: a definition paired with its non-serializable RuntimeConfig (resolvers, migrate).
  - FlowState: current step, context, status, path (stack) and history (audit log).
  - Action: a NEXT/SKIP/BACK/SET_CONTEXT/RESTORE/RESET request for the reducer.
  - PersistedFlowState: FlowState wrapped in the version/instance/variant envelope.
*/
package domain
