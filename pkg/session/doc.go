/*
Package session orders persistence operations per flow instance.

The default persister applies last-write-wins to overlapping saves. Manager wraps
any ports.FlowPersister so that operations on the same composite key (flow,
instance, variant) run one at a time, optionally guarded by a distributed lock
so that several replicas share the same ordering.
*/
package session
