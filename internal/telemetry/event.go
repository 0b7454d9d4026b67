// Package telemetry fans collected analytics events out to best-effort sinks (Kafka, OTel logs).
package telemetry

import "time"

// SourceCollect marks events published by the collect endpoint.
const SourceCollect = "collect"

// Event is the telemetry view of one collected analytics event. It is the Kafka message body
// consumed by cmd/worker.
type Event struct {
	EventID   string            `json:"eventId"`
	AppID     string            `json:"appId"`
	OwnerID   string            `json:"ownerId,omitempty"`
	Event     string            `json:"event"`
	Device    string            `json:"device,omitempty"`
	URL       string            `json:"url,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
}
