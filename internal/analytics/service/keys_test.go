package service

import (
	"strings"
	"testing"
	"time"
)

func TestSummaryKey_Deterministic(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := summaryKey(scopeApp("app-1"), "click", &start, nil)
	b := summaryKey(scopeApp("app-1"), "click", &start, nil)
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a != "event_summary:app:app-1:click:2026-01-01T00:00:00Z:all" {
		t.Errorf("key = %q", a)
	}
}

func TestSummaryKey_NoCollisions(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	keys := []string{
		summaryKey(scopeApp("a"), "click", nil, nil),
		summaryKey(scopeOwner("a"), "click", nil, nil),
		summaryKey(scopeApp("a"), "click", &start, nil),
		summaryKey(scopeApp("a"), "click", nil, &start),
		summaryKey(scopeApp("a"), "click", &start, &end),
		summaryKey(scopeApp("a"), "click:all", nil, nil),
		summaryKey(scopeApp("a:click"), "all", nil, nil),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestSummaryPrefixCoversRanges(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prefix := summaryEventGroup(scopeApp("a"), "click")
	for _, k := range []string{
		summaryKey(scopeApp("a"), "click", nil, nil),
		summaryKey(scopeApp("a"), "click", &start, &start),
	} {
		if !strings.HasPrefix(k, prefix) {
			t.Errorf("%q not under %q", k, prefix)
		}
	}
	if strings.HasPrefix(summaryKey(scopeApp("a"), "click_other", nil, nil), prefix) {
		t.Error("prefix must not cover other events")
	}
}

func TestUserStatsKey_OwnerScoped(t *testing.T) {
	if userStatsKey("o1", "u") == userStatsKey("o2", "u") {
		t.Error("owners must not share a user stats key")
	}
	if userStatsKey("o1", "u:x") == userStatsKey("o1:u", "x") {
		t.Error("escaping must prevent component collisions")
	}
}
