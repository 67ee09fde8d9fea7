// Package retention bounds the store's age and disk footprint. Records
// older than the configured horizon are deleted regardless of status,
// then the write-ahead log is truncated.
package retention
