// Package store provides SQLite-backed durable storage for the relation bus.
//
// The store holds:
//   - Relations: one row per relation instance (name, interface, remote app, broken flag)
//   - Relation units: the units that joined each relation instance
//   - Application data: string fields per (relation instance, application scope),
//     last-write-wins with a per-field revision counter
//   - Event log: the events an application observer received, in order
//
// # Critical Patterns
//
// Relation-instance scoping:
//   - Every data read and write is keyed by relation_id first
//   - Data written under one relation instance is never visible through another
//
// Deterministic query results:
//   - Relation listings are ORDER BY id ASC
//   - Event log reads are ORDER BY seq ASC, id ASC
//
// The store does not know about leadership. Write authority is enforced one
// layer up by the relation bus, which re-checks the leadership gate before
// every write.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
