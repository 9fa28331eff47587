// Package store defines the narrow contracts between the vault access layer
// and the storage engine that owns the append-only log.
//
// The access layer never touches blocks or peers directly. It opens a Handle
// through a Driver, reads through Reader views, and mutates through the
// Handle. Durability, content addressing and replication belong to the
// Driver implementation; see package logstore for the in-tree one.
package store
