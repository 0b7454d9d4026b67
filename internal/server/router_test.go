package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"web-analytics/backend/internal/analytics/analyticstest"
	analyticshandler "web-analytics/backend/internal/analytics/handler"
	analyticsservice "web-analytics/backend/internal/analytics/service"
	appdomain "web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/apikey/apikeytest"
	"web-analytics/backend/internal/apikey/domain"
	apikeyhandler "web-analytics/backend/internal/apikey/handler"
	apikeyservice "web-analytics/backend/internal/apikey/service"
	healthhandler "web-analytics/backend/internal/health/handler"
	"web-analytics/backend/internal/policy/engine"
	"web-analytics/backend/internal/security"
	userdomain "web-analytics/backend/internal/user/domain"
	userhandler "web-analytics/backend/internal/user/handler"
)

const (
	ownerID    = "aaaaaaaa-0000-0000-0000-000000000001"
	ownerEmail = "owner@example.com"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Warning string          `json:"warning"`
}

type memUsers map[string]*userdomain.User

func (m memUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return m[id], nil
}

type testServer struct {
	handler http.Handler
	store   *apikeytest.MemStore
	events  *analyticstest.MemEvents
	token   string
}

func newTestServer(t *testing.T, tune func(*Deps)) *testServer {
	t.Helper()
	ctx := context.Background()
	authz, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.Issue(ownerID, ownerEmail, "Owner")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	store := apikeytest.NewMemStore()
	events := &analyticstest.MemEvents{}
	users := memUsers{ownerID: {ID: ownerID, Email: ownerEmail, Name: "Owner", CreatedAt: time.Now()}}

	d := Deps{
		Logger:    zerolog.Nop(),
		Sessions:  tokens,
		APIKeys:   apikeyservice.NewAuthenticator(store),
		Analytics: analyticshandler.NewHandler(analyticsservice.NewService(events, store.Apps(), authz, nil, nil)),
		Keys:      apikeyhandler.NewHandler(apikeyservice.NewService(store.Apps(), store, authz, nil, 24*time.Hour)),
		Users:     userhandler.NewHandler(users),
		Health:    healthhandler.NewHandler(nil, authz, nil),
	}
	if tune != nil {
		tune(&d)
	}
	return &testServer{handler: NewRouter(d), store: store, events: events, token: token}
}

func (s *testServer) do(t *testing.T, method, target, body string, header map[string]string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func (s *testServer) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.token}
}

func apiKey(key string) map[string]string {
	return map[string]string{"X-API-Key": key}
}

// register creates an app through the API and returns its id and plaintext key.
func (s *testServer) register(t *testing.T, name string) (appID, key string) {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api-keys/register", `{"name":"`+name+`","domain":"https://shop.example.com"}`, s.bearer())
	if code != http.StatusCreated {
		t.Fatalf("register status = %d (%s)", code, env.Message)
	}
	var data struct {
		App struct {
			ID string `json:"id"`
		} `json:"app"`
		APIKey struct {
			Key string `json:"key"`
		} `json:"apiKey"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	return data.App.ID, data.APIKey.Key
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	if code, env := s.do(t, http.MethodGet, "/health", "", nil); code != http.StatusOK || env.Message != "API is running" {
		t.Errorf("/health = %d %+v", code, env)
	}
	if code, _ := s.do(t, http.MethodGet, "/health/ready", "", nil); code != http.StatusOK {
		t.Errorf("/health/ready = %d", code)
	}
	if code, env := s.do(t, http.MethodGet, "/", "", nil); code != http.StatusOK || !env.Success {
		t.Errorf("/ = %d %+v", code, env)
	}
	if code, env := s.do(t, http.MethodGet, "/nope", "", nil); code != http.StatusNotFound || env.Message != "Endpoint not found" {
		t.Errorf("/nope = %d %+v", code, env)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("/metrics = %d", rec.Code)
	}
}

func TestOwnerRoutes_RequireBearer(t *testing.T) {
	s := newTestServer(t, nil)
	routes := []struct{ method, target string }{
		{http.MethodGet, "/analytics/event-summary?event=x"},
		{http.MethodGet, "/analytics/user-stats?userId=u"},
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodPost, "/api-keys/register"},
		{http.MethodGet, "/api-keys/apps"},
	}
	for _, rt := range routes {
		for _, h := range []map[string]string{
			nil,
			{"Authorization": "Bearer not-a-jwt"},
			{"Authorization": "Basic " + s.token},
		} {
			code, env := s.do(t, rt.method, rt.target, "", h)
			if code != http.StatusUnauthorized || env.Message != "Unauthorized" {
				t.Errorf("%s %s with %v = %d %q", rt.method, rt.target, h, code, env.Message)
			}
		}
	}
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := s.do(t, http.MethodGet, "/auth/me", "", s.bearer())
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(string(env.Data), ownerEmail) {
		t.Errorf("data = %s", env.Data)
	}
}

func TestAuthLogout(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := s.do(t, http.MethodPost, "/auth/logout", "", s.bearer())
	if code != http.StatusOK || !env.Success || env.Message != "Logged out successfully" {
		t.Errorf("logout = %d %+v", code, env)
	}
	// Tokens are stateless; the same bearer still resolves afterwards.
	if code, _ := s.do(t, http.MethodGet, "/auth/me", "", s.bearer()); code != http.StatusOK {
		t.Errorf("me after logout = %d", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)
	testCases := []struct {
		name, target string
		header       map[string]string
		wantHSTS     bool
	}{
		{"health", "/health", nil, false},
		{"not found", "/nope", nil, false},
		{"unauthorized", "/auth/me", nil, false},
		{"behind tls proxy", "/health", map[string]string{"X-Forwarded-Proto": "https"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			h := rec.Header()
			if h.Get("X-Content-Type-Options") != "nosniff" ||
				h.Get("X-Frame-Options") != "DENY" ||
				h.Get("Referrer-Policy") != "strict-origin-when-cross-origin" {
				t.Errorf("%s: headers = %v", tc.target, h)
			}
			hsts := h.Get("Strict-Transport-Security")
			if (hsts == "max-age=31536000; includeSubDomains") != tc.wantHSTS || (!tc.wantHSTS && hsts != "") {
				t.Errorf("%s: Strict-Transport-Security = %q", tc.target, hsts)
			}
		})
	}
}

func TestCollect_RejectsBadKeys(t *testing.T) {
	s := newTestServer(t, nil)
	_, good := s.register(t, "Good App")

	inactiveKey, _ := security.GenerateAPIKey()
	s.store.PutApp(&appdomain.App{ID: "bbbbbbbb-0000-0000-0000-0000000000b1", UserID: ownerID, Name: "Off", IsActive: false})
	s.store.PutKey(&domain.APIKey{ID: "k-inactive", AppID: "bbbbbbbb-0000-0000-0000-0000000000b1",
		KeyHash: security.HashAPIKey(inactiveKey), IsActive: true, CreatedAt: time.Now()})

	expiredKey, _ := security.GenerateAPIKey()
	past := time.Now().Add(-time.Hour)
	s.store.PutApp(&appdomain.App{ID: "cccccccc-0000-0000-0000-0000000000c1", UserID: ownerID, Name: "Old", IsActive: true})
	s.store.PutKey(&domain.APIKey{ID: "k-expired", AppID: "cccccccc-0000-0000-0000-0000000000c1",
		KeyHash: security.HashAPIKey(expiredKey), IsActive: true, ExpiresAt: &past, CreatedAt: past})

	unknownKey, _ := security.GenerateAPIKey()
	body := `{"event":"page_view"}`

	testCases := []struct {
		name   string
		header map[string]string
	}{
		{"absent header", nil},
		{"unknown key", apiKey(unknownKey)},
		{"malformed key", apiKey("ak_short")},
		{"inactive app", apiKey(inactiveKey)},
		{"expired key", apiKey(expiredKey)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/analytics/collect", body, tc.header)
			if code != http.StatusUnauthorized || env.Message != "Unauthorized" {
				t.Errorf("status = %d message = %q", code, env.Message)
			}
		})
	}
	if n := len(s.events.Events()); n != 0 {
		t.Fatalf("rejected requests stored %d events", n)
	}

	if code, _ := s.do(t, http.MethodPost, "/analytics/collect", body, apiKey(good)); code != http.StatusCreated {
		t.Errorf("valid key status = %d", code)
	}
}

func TestRegenerate_OldKeyStopsWorking(t *testing.T) {
	s := newTestServer(t, nil)
	appID, oldKey := s.register(t, "Rotating App")
	body := `{"event":"page_view"}`

	if code, _ := s.do(t, http.MethodPost, "/analytics/collect", body, apiKey(oldKey)); code != http.StatusCreated {
		t.Fatalf("collect with first key = %d", code)
	}

	code, env := s.do(t, http.MethodPost, "/api-keys/"+appID+"/regenerate", "", s.bearer())
	if code != http.StatusOK {
		t.Fatalf("regenerate status = %d (%s)", code, env.Message)
	}
	if env.Warning == "" {
		t.Error("regenerate should warn to save the key")
	}
	var data struct {
		APIKey struct {
			Key string `json:"key"`
		} `json:"apiKey"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.APIKey.Key == "" {
		t.Fatalf("regenerate data = %s err=%v", env.Data, err)
	}

	if code, _ := s.do(t, http.MethodPost, "/analytics/collect", body, apiKey(oldKey)); code != http.StatusUnauthorized {
		t.Errorf("old key status = %d, want 401", code)
	}
	if code, _ := s.do(t, http.MethodPost, "/analytics/collect", body, apiKey(data.APIKey.Key)); code != http.StatusCreated {
		t.Errorf("new key status = %d, want 201", code)
	}

	active := 0
	for _, k := range s.store.Keys(appID) {
		if k.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active keys = %d, want 1", active)
	}
}

func TestCollectThenSummary(t *testing.T) {
	s := newTestServer(t, nil)
	appID, key := s.register(t, "Summary App")
	for _, b := range []string{
		`{"event":"button_click","userId":"user1","device":"mobile"}`,
		`{"event":"button_click","userId":"user1","device":"mobile"}`,
		`{"event":"button_click","userId":"user2","device":"desktop"}`,
	} {
		if code, _ := s.do(t, http.MethodPost, "/analytics/collect", b, apiKey(key)); code != http.StatusCreated {
			t.Fatalf("collect = %d", code)
		}
	}
	code, env := s.do(t, http.MethodGet, "/analytics/event-summary?event=button_click&app_id="+appID, "", s.bearer())
	if code != http.StatusOK {
		t.Fatalf("summary status = %d (%s)", code, env.Message)
	}
	var sum struct {
		Count       int64            `json:"count"`
		UniqueUsers int64            `json:"uniqueUsers"`
		DeviceData  map[string]int64 `json:"deviceData"`
	}
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Count != 3 || sum.UniqueUsers != 2 || sum.DeviceData["mobile"] != 2 || sum.DeviceData["desktop"] != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRateLimits(t *testing.T) {
	s := newTestServer(t, func(d *Deps) {
		d.CollectRateLimitMax, d.CollectRateLimitWindow = 2, time.Minute
		d.RateLimitMax, d.RateLimitWindow = 2, time.Minute
	})

	for i := 0; i < 2; i++ {
		if code, _ := s.do(t, http.MethodPost, "/analytics/collect", `{"event":"x"}`, apiKey("ak_a")); code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited early", i)
		}
	}
	code, env := s.do(t, http.MethodPost, "/analytics/collect", `{"event":"x"}`, apiKey("ak_a"))
	if code != http.StatusTooManyRequests || env.Success || env.Message == "" {
		t.Errorf("third collect = %d %+v", code, env)
	}
	if code, _ := s.do(t, http.MethodPost, "/analytics/collect", `{"event":"x"}`, apiKey("ak_b")); code == http.StatusTooManyRequests {
		t.Error("a different key must have its own budget")
	}

	for i := 0; i < 2; i++ {
		s.do(t, http.MethodGet, "/api-keys/apps", "", s.bearer())
	}
	if code, _ := s.do(t, http.MethodGet, "/api-keys/apps", "", s.bearer()); code != http.StatusTooManyRequests {
		t.Errorf("owner API third request = %d, want 429", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/health", "", nil); code != http.StatusOK {
		t.Errorf("/health must not be rate limited, got %d", code)
	}
}
