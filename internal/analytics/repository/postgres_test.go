package repository

import (
	"strings"
	"testing"
	"time"

	"web-analytics/backend/internal/analytics/domain"
)

func TestSummaryWhere(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	testCases := []struct {
		name     string
		filter   domain.SummaryFilter
		want     string
		wantArgs int
	}{
		{
			name:     "no dates",
			filter:   domain.SummaryFilter{AppIDs: []string{"a1", "a2"}, Event: "click"},
			want:     "app_id IN ($1, $2) AND event = $3",
			wantArgs: 3,
		},
		{
			name:     "both bounds",
			filter:   domain.SummaryFilter{AppIDs: []string{"a1"}, Event: "click", Start: &start, End: &end},
			want:     "app_id IN ($1) AND event = $2 AND timestamp >= $3 AND timestamp <= $4",
			wantArgs: 4,
		},
		{
			name:     "end only",
			filter:   domain.SummaryFilter{AppIDs: []string{"a1"}, Event: "click", End: &end},
			want:     "app_id IN ($1) AND event = $2 AND timestamp <= $3",
			wantArgs: 3,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			where, args := summaryWhere(tc.filter)
			if where != tc.want {
				t.Errorf("where = %q, want %q", where, tc.want)
			}
			if len(args) != tc.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tc.wantArgs)
			}
			if strings.Count(where, "$") != len(args) {
				t.Error("placeholder count does not match args")
			}
		})
	}
}
