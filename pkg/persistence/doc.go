// Package persistence saves and restores flow instances through any ports.Store.
//
// A Persister composes the storage key from the flow id plus the optional
// instance and variant ids (see package keyspace), serializes the snapshot
// envelope, and applies the versioning policy on restore: a snapshot saved
// under another definition version is migrated when a MigrateFunc is
// supplied, and rejected with a *domain.VersionMismatchError otherwise.
//
// Saves are not queued: overlapping saves to the same key are last-write-wins.
// Wrap the persister with session.NewManager when strict ordering is required.
package persistence
