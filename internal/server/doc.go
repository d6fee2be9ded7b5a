// Package server implements the HTTP surface of the shook webhook receiver.
//
// This package provides:
//   - POST / for GitHub webhook deliveries, authenticated and decoded by internal/hook
//   - Per-IP rate limiting on the webhook route
//   - Health and status endpoints for monitoring
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/config: the read-only ServerConfig shared by all handlers
//   - internal/event: update_events policy matching
//   - internal/deployment: the Dispatcher that runs pull and restart off the request goroutine
//   - internal/history: SQLite record of every delivery outcome
//
// Status codes:
//   - 200 deployed, or ignored because the event is not in update_events
//   - 400 missing or malformed headers, unsupported content type, undecodable payload
//   - 401 signature mismatch, or unsigned delivery while a secret is configured
//   - 413 payload over max_payload_bytes
//   - 429 rate limited
//   - 500 missing secret or failed deploy cycle
//   - 503 deploy queue saturated or shutting down
package server
