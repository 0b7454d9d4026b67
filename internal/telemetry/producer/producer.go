// Package producer publishes collected-event telemetry to Kafka.
package producer

import "web-analytics/backend/internal/telemetry"

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close flushes and releases the writer. Safe to call if already closed.
	Close() error
}
