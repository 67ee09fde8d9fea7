// Package ingest runs the long-lived consumption loop between the
// messaging source and the store. It owns the connection lifecycle:
// transient drops reconnect with bounded backoff, authorization failures
// propagate out so the process can exit and demand operator attention.
package ingest
