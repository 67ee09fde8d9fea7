// Package source defines the boundary to the real-time messaging system
// and ships a Telegram Bot API implementation of it.
//
// The ingestion loop consumes the Source interface only, so tests and
// alternative transports plug in without touching the pipeline. BotSource
// long-polls getUpdates, normalizes messages and channel posts into
// RawEvents, and classifies credential rejections as ErrUnauthorized so
// the supervisor can tell a fatal auth problem from a transient outage.
package source
