// Package store provides persistent storage for watched channel messages
// using SQLite.
//
// A single messages table holds every record. Identity is the composite
// key (id, channel_name, timestamp), which makes InsertMessage a no-op
// under source-side redelivery. Each message carries a lifecycle status
// that only ever moves new -> completed; MarkCompletedSince performs the
// transition for a whole time window at once.
//
// # SQLite Configuration
//
// The store uses WAL journaling for concurrent reads and full auto-vacuum
// so retention deletes give disk space back:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA auto_vacuum=FULL;
//
// Databases created before auto-vacuum was enabled are rebuilt once with
// VACUUM on open. ReclaimSpace truncates the WAL on demand.
//
// # Error Handling
//
// Every failed operation is returned as a *StorageError naming the
// operation. The store never retries and holds no cache; each call is
// one transaction, so callers may interleave freely from multiple
// goroutines.
package store
