// Package filter decides which raw events are persisted. It is pure and
// total: no I/O, never panics, and the same event with the same
// configuration always gets the same decision, so it unit-tests without
// any live connection.
package filter
