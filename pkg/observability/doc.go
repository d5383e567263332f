/*
Package observability exposes Prometheus metrics for flows.

Metrics.Persister wraps any ports.FlowPersister and counts every save, restore
and remove by outcome, with a latency histogram. Metrics.ObserveTransition is
meant to be installed as the OnTransition hook of a waypoint.Flow.
*/
package observability
