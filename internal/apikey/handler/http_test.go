package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"web-analytics/backend/internal/apikey/apikeytest"
	"web-analytics/backend/internal/apikey/service"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/policy/engine"
)

var (
	owner = principal.Owner{UserID: "owner-1", Email: "owner@example.com"}
	other = principal.Owner{UserID: "owner-2", Email: "other@example.com"}
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Warning string `json:"warning"`
}

// newTestRouter mounts the handler with a fixed principal chosen per request by the X-Test-Owner header.
func newTestRouter(t *testing.T) (http.Handler, *apikeytest.MemStore) {
	t.Helper()
	authz, err := engine.NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	store := apikeytest.NewMemStore()
	h := NewHandler(service.NewService(store.Apps(), store, authz, nil, 24*time.Hour))
	as := func(fn principal.OwnerHandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p := owner
			if r.Header.Get("X-Test-Owner") == other.UserID {
				p = other
			}
			fn(w, r, p)
		}
	}
	r := chi.NewRouter()
	r.Post("/api-keys/register", as(h.Register))
	r.Get("/api-keys/apps", as(h.ListApps))
	r.Get("/api-keys/{appId}", as(h.GetApp))
	r.Post("/api-keys/{apiKeyId}/revoke", as(h.Revoke))
	r.Post("/api-keys/{appId}/regenerate", as(h.Regenerate))
	return r, store
}

func do(t *testing.T, h http.Handler, method, path, body, asOwner string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if asOwner != "" {
		req.Header.Set("X-Test-Owner", asOwner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func register(t *testing.T, h http.Handler) (appID, key string) {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/api-keys/register", `{"name":"Storefront","domain":"https://shop.example.com","extra":"ignored"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body.String())
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
		t.Fatalf("decode data: %v", err)
	}
	return data.App.ID, data.APIKey.Key
}

func TestRegister_Created(t *testing.T) {
	h, store := newTestRouter(t)
	rec, env := do(t, h, http.MethodPost, "/api-keys/register", `{"name":"Storefront"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if !env.Success || env.Warning != SaveKeyWarning {
		t.Errorf("envelope = %+v", env)
	}
	if !strings.Contains(string(env.Data), `"key":"ak_`) {
		t.Errorf("data = %s, want plaintext key", env.Data)
	}
	if store.AppCount() != 1 {
		t.Errorf("apps = %d", store.AppCount())
	}
}

func TestRegister_ShortName(t *testing.T) {
	h, store := newTestRouter(t)
	rec, env := do(t, h, http.MethodPost, "/api-keys/register", `{"name":"ab"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Success || len(env.Errors) != 1 || env.Errors[0].Field != "name" {
		t.Errorf("envelope = %+v", env)
	}
	if store.AppCount() != 0 {
		t.Error("no app should be created")
	}
}

func TestRegister_MalformedJSON(t *testing.T) {
	h, _ := newTestRouter(t)
	rec, _ := do(t, h, http.MethodPost, "/api-keys/register", `{"name":`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetApp_PrefixOnly(t *testing.T) {
	h, _ := newTestRouter(t)
	appID, key := register(t, h)

	rec, env := do(t, h, http.MethodGet, "/api-keys/"+appID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), key) {
		t.Fatal("plaintext key leaked in listing")
	}
	var data struct {
		APIKeys []keyView `json:"apiKeys"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.APIKeys) != 1 || data.APIKeys[0].KeyPrefix != key[:12]+"..." || data.APIKeys[0].Status != "active" {
		t.Errorf("apiKeys = %+v", data.APIKeys)
	}
}

func TestGetApp_NotOwnedIs404(t *testing.T) {
	h, _ := newTestRouter(t)
	appID, _ := register(t, h)

	rec, env := do(t, h, http.MethodGet, "/api-keys/"+appID, "", other.UserID)
	if rec.Code != http.StatusNotFound || env.Message != "App not found" {
		t.Errorf("status = %d message = %q", rec.Code, env.Message)
	}
}

func TestListApps(t *testing.T) {
	h, _ := newTestRouter(t)
	register(t, h)

	rec, env := do(t, h, http.MethodGet, "/api-keys/apps", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var apps []appWithKeysView
	if err := json.Unmarshal(env.Data, &apps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(apps) != 1 || len(apps[0].APIKeys) != 1 {
		t.Errorf("apps = %+v", apps)
	}

	_, env = do(t, h, http.MethodGet, "/api-keys/apps", "", other.UserID)
	if string(env.Data) != "[]" {
		t.Errorf("other owner data = %s, want []", env.Data)
	}
}

func TestRevokeAndRegenerate(t *testing.T) {
	h, store := newTestRouter(t)
	appID, key := register(t, h)
	keyID := store.Keys(appID)[0].ID

	rec, _ := do(t, h, http.MethodPost, "/api-keys/"+keyID+"/revoke", "", other.UserID)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign revoke status = %d, want 404", rec.Code)
	}
	rec, env := do(t, h, http.MethodPost, "/api-keys/"+keyID+"/revoke", "", "")
	if rec.Code != http.StatusOK || env.Message != "API key revoked successfully" {
		t.Fatalf("revoke status = %d message = %q", rec.Code, env.Message)
	}

	rec, env = do(t, h, http.MethodPost, "/api-keys/"+appID+"/regenerate", "", "")
	if rec.Code != http.StatusOK || env.Warning != SaveKeyWarning {
		t.Fatalf("regenerate status = %d env = %+v", rec.Code, env)
	}
	if strings.Contains(string(env.Data), key) {
		t.Error("regenerate returned the old key")
	}
	rec, _ = do(t, h, http.MethodPost, "/api-keys/not-an-app/regenerate", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown app regenerate status = %d", rec.Code)
	}
}
