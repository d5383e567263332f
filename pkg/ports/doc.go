/*
Package ports defines the driven ports (interfaces) of the Waypoint engine.

These interfaces decouple the core logic from external implementations, allowing
flows to be persisted in any key-value backend and definitions to be fetched
from any source.

# Key Interfaces

  - Store: uniform get/set/remove key-value backend (memory, file, redis, sqlite, NATS, HTTP).
  - Serializer: converts a persisted snapshot to and from a string.
  - FlowPersister: save/restore/remove of flow snapshots keyed by flow, instance and variant.
  - DefinitionLoader: fetches plain flow definitions, e.g. per A/B variant.
  - DistributedLocker: cross-process locking used to serialize saves when required.
*/
package ports
