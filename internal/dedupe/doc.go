// Package dedupe suppresses redelivered channel posts during ingestion.
// Telegram can replay updates after a reconnect when the previous offset
// was not acknowledged; the cache catches those replays cheaply before
// they hit the filter and the store.
package dedupe
