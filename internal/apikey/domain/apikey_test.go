package domain

import (
	"testing"
	"time"
)

func TestAPIKey_Status(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	testCases := []struct {
		name string
		key  APIKey
		want Status
	}{
		{"active no expiry", APIKey{IsActive: true}, StatusActive},
		{"active future expiry", APIKey{IsActive: true, ExpiresAt: &future}, StatusActive},
		{"expired but still flagged active", APIKey{IsActive: true, ExpiresAt: &past}, StatusExpired},
		{"expiry exactly now", APIKey{IsActive: true, ExpiresAt: &now}, StatusExpired},
		{"revoked", APIKey{IsActive: false, RevokedAt: &past}, StatusRevoked},
		{"revoked and expired", APIKey{IsActive: false, RevokedAt: &past, ExpiresAt: &past}, StatusRevoked},
		{"inactive without timestamp", APIKey{IsActive: false}, StatusRevoked},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.key.Status(now); got != tc.want {
				t.Errorf("Status() = %q, want %q", got, tc.want)
			}
		})
	}
}
