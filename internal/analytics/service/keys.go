package service

import (
	"net/url"
	"time"
)

const (
	summaryKeyPrefix   = "event_summary:"
	userStatsKeyPrefix = "user_stats:"
	unbounded          = "all"
)

// Components are query-escaped so ':' inside an event name or user id cannot forge another key.
func esc(s string) string { return url.QueryEscape(s) }

func scopeApp(appID string) string     { return "app:" + esc(appID) }
func scopeOwner(ownerID string) string { return "owner:" + esc(ownerID) }

// summaryEventGroup is the invalidation group of every date range of one event within one scope.
// It is also the common prefix of those keys.
func summaryEventGroup(scope, event string) string {
	return summaryKeyPrefix + scope + ":" + esc(event) + ":"
}

// summaryKey is deterministic in (scope, event, start, end); bounds are the normalized filter values.
func summaryKey(scope, event string, start, end *time.Time) string {
	return summaryEventGroup(scope, event) + bound(start) + ":" + bound(end)
}

// userStatsKey is scoped to the owner so two tenants sharing an external user id never share an entry.
func userStatsKey(ownerID, userID string) string {
	return userStatsKeyPrefix + esc(ownerID) + ":" + esc(userID)
}

func bound(t *time.Time) string {
	if t == nil {
		return unbounded
	}
	return t.UTC().Format(time.RFC3339Nano)
}
