package domain

import (
	"errors"
	"time"
)

// Device classes stored on events.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
)

// Event is one immutable analytics fact owned by an app.
type Event struct {
	ID        string
	AppID     string
	Event     string
	URL       string
	Referrer  string
	Device    string
	IPAddress string
	UserID    string
	SessionID string
	Timestamp time.Time
	Metadata  map[string]any
	CreatedAt time.Time
}

// Validate validates the event for persistence. Returns an error describing the first validation failure.
func (e *Event) Validate() error {
	if e.AppID == "" {
		return errors.New("app is required")
	}
	if e.Event == "" {
		return errors.New("event is required")
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// SummaryFilter selects events for an event summary. Start and End are inclusive; nil means unbounded.
type SummaryFilter struct {
	AppIDs []string
	Event  string
	Start  *time.Time
	End    *time.Time
}

// Summary aggregates events with one name.
type Summary struct {
	Event       string           `json:"event"`
	Count       int64            `json:"count"`
	UniqueUsers int64            `json:"uniqueUsers"`
	DeviceData  map[string]int64 `json:"deviceData"`
}

// UserStats aggregates one external user's events. DeviceDetails and IPAddress come from the latest event.
type UserStats struct {
	UserID        string         `json:"userId"`
	TotalEvents   int64          `json:"totalEvents"`
	DeviceDetails map[string]any `json:"deviceDetails"`
	IPAddress     *string        `json:"ipAddress"`
}

// EmptySummary is the result for an owner without apps.
func EmptySummary(event string) *Summary {
	return &Summary{Event: event, DeviceData: map[string]int64{}}
}

// EmptyUserStats is the result for an owner without apps.
func EmptyUserStats(userID string) *UserStats {
	return &UserStats{UserID: userID, DeviceDetails: map[string]any{}}
}
