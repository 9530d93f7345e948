package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	datafeed "github.com/fazecat/mogulscan/Internal/database"
	"github.com/fazecat/mogulscan/Internal/handlers/monitoring"
	"github.com/fazecat/mogulscan/Internal/types"
)

type fakeStatus struct {
	stats monitoring.Stats
	scan  *types.ScanResult
}

func (f fakeStatus) Stats() monitoring.Stats { return f.stats }
func (f fakeStatus) LastScan() *types.ScanResult { return f.scan }

type fakePurchases struct {
	records   []datafeed.PurchaseRecord
	err       error
	gotSymbol string
	gotLimit  int
}

func (f *fakePurchases) RecentPurchases(_ context.Context, symbol string, limit int) ([]datafeed.PurchaseRecord, error) {
	f.gotSymbol, f.gotLimit = symbol, limit
	return f.records, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestAPI() (*API, *fakePurchases) {
	p := &fakePurchases{records: []datafeed.PurchaseRecord{{ID: 1, Symbol: "SOLUSDT", Success: true}}}
	return &API{
		Status: fakeStatus{
			stats: monitoring.Stats{State: monitoring.StateActed, ScanCount: 4},
			scan:  &types.ScanResult{AnalyzedCount: 9, TotalCount: 10},
		},
		Purchases:  p,
		JWTManager: NewJWTManager("test-secret"),
		AdminKey:   "admin-key",
	}, p
}

func do(t *testing.T, h http.Handler, method, path, token string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestHealth(t *testing.T) {
	a, _ := newTestAPI()
	rec, env := do(t, NewRouter(a), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Errorf("health = %d %+v", rec.Code, env)
	}

	a.HealthCheck = func(context.Context) error { return errors.New("db down") }
	rec, _ = do(t, NewRouter(a), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d", rec.Code)
	}
}

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name     string
		adminKey string
		header   string
		want     int
	}{
		{name: "valid key", adminKey: "admin-key", header: "admin-key", want: http.StatusOK},
		{name: "wrong key", adminKey: "admin-key", header: "nope", want: http.StatusUnauthorized},
		{name: "issuing disabled", adminKey: "", header: "", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAPI()
			a.AdminKey = tt.adminKey
			rec, env := do(t, NewRouter(a), http.MethodPost, "/api/token", "", map[string]string{"X-Admin-Key": tt.header})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusOK {
				return
			}
			var data struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
				t.Fatalf("token payload = %s", env.Data)
			}
			if _, err := a.JWTManager.ValidateToken(data.Token); err != nil {
				t.Errorf("issued token invalid: %v", err)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a, _ := newTestAPI()
	h := NewRouter(a)

	for _, path := range []string{"/api/scanner/status", "/api/scanner/last-scan", "/api/purchases"} {
		rec, _ := do(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token = %d", path, rec.Code)
		}
		rec, _ = do(t, h, http.MethodGet, path, "garbage", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token = %d", path, rec.Code)
		}
	}

	other := NewJWTManager("other-secret")
	foreign, _ := other.GenerateToken("mallory", time.Hour)
	if rec, _ := do(t, h, http.MethodGet, "/api/scanner/status", foreign, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("token signed with another secret accepted: %d", rec.Code)
	}
}

func TestScannerEndpoints(t *testing.T) {
	a, purchases := newTestAPI()
	h := NewRouter(a)
	token, err := a.JWTManager.GenerateToken("ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	rec, env := do(t, h, http.MethodGet, "/api/scanner/status", token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"state":"acted"`) {
		t.Errorf("status = %d %s", rec.Code, env.Data)
	}

	rec, env = do(t, h, http.MethodGet, "/api/scanner/last-scan", token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"analyzed_count":9`) {
		t.Errorf("last scan = %d %s", rec.Code, env.Data)
	}

	rec, env = do(t, h, http.MethodGet, "/api/purchases/solusdt?limit=5", token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"count":1`) {
		t.Errorf("purchases = %d %s", rec.Code, env.Data)
	}
	if purchases.gotSymbol != "SOLUSDT" || purchases.gotLimit != 5 {
		t.Errorf("lister got symbol=%q limit=%d", purchases.gotSymbol, purchases.gotLimit)
	}

	if rec, _ := do(t, h, http.MethodGet, "/api/purchases?limit=-1", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", rec.Code)
	}
}

func TestEndpointErrors(t *testing.T) {
	a, purchases := newTestAPI()
	a.Status = fakeStatus{}
	purchases.err = errors.New("connection refused")
	token, _ := a.JWTManager.GenerateToken("ops", time.Hour)
	h := NewRouter(a)

	if rec, _ := do(t, h, http.MethodGet, "/api/scanner/last-scan", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("last scan before first run = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/api/purchases", token, nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("purchases with failing store = %d", rec.Code)
	}

	a.Purchases = nil
	if rec, _ := do(t, NewRouter(a), http.MethodGet, "/api/purchases", token, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("purchases without store = %d", rec.Code)
	}
}

func TestJWTManager_Expiry(t *testing.T) {
	jm := NewJWTManager("s")
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jm.now = func() time.Time { return issued }
	token, err := jm.GenerateToken("u", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if claims, err := jm.ValidateToken(token); err != nil || claims.UserID != "u" {
		t.Fatalf("fresh token: %v %+v", err, claims)
	}
	jm.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := jm.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v", err)
	}
}

func TestJWTAuthMiddleware_StoresUserID(t *testing.T) {
	jm := NewJWTManager("s")
	token, _ := jm.GenerateToken("ops-1", time.Hour)

	var got string
	h := JWTAuthMiddleware(jm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "ops-1" {
		t.Errorf("UserID = %q, want ops-1", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("non-bearer scheme = %d", rec.Code)
	}
}
