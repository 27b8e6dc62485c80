package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cardadmin/internal/auth"
	"cardadmin/internal/domain/audit"
	"cardadmin/internal/domain/directory"
	"cardadmin/internal/domain/directory/directorytest"
	"cardadmin/internal/platform/cache"
	"cardadmin/internal/platform/config"
	"cardadmin/internal/platform/jobs/jobstest"
)

const testSecret = "test-secret"

func testApp(t *testing.T, ready func(context.Context) error) (*App, *directorytest.Store) {
	app, store, _ := testAppWithAudit(t, ready)
	return app, store
}

func testAppWithAudit(t *testing.T, ready func(context.Context) error) (*App, *directorytest.Store, *audit.Memory) {
	t.Helper()
	store := &directorytest.Store{
		Teams: []directory.Team{{ID: 1, Name: "Engineering"}},
		Employees: []directory.Employee{
			{ID: 1, Name: "Ana", Team: "Engineering"},
			{ID: 2, Name: "Ben", Team: "engineering "},
		},
		Cards: []directory.Card{{ID: 5, UserID: 2, CardNo: "5555444433331111", CardType: "wellness"}},
	}
	cfg := config.Config{
		JWTSecret:              testSecret,
		Environment:            "test",
		ViewCacheTTL:           time.Minute,
		AggregationConcurrency: 2,
		MaxBodyBytes:           4096,
		RateLimitPerMinute:     100,
		MetricsEnabled:         true,
	}
	events := &audit.Memory{}
	app := Build(cfg, Deps{
		Store: store,
		Cache: cache.NewMemory(),
		Runs:  jobstest.NewRuns(),
		Audit: events,
		Ready: ready,
	})
	return app, store, events
}

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "user-" + role, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return signed
}

func request(app *App, method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	app, _ := testApp(t, func(context.Context) error { return errors.New("db down") })

	if rec := request(app, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
	if rec := request(app, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz 503, got %d", rec.Code)
	}
	rec := request(app, http.MethodGet, "/healthz", "", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}
}

func TestImportThenBrowse(t *testing.T) {
	app, store, events := testAppWithAudit(t, nil)
	admin := token(t, auth.RoleAdmin)
	viewer := token(t, auth.RoleViewer)

	if rec := request(app, http.MethodGet, "/api/v1/directory", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// nothing imported yet
	rec := request(app, http.MethodGet, "/api/v1/cards", viewer, "")
	var before struct {
		Data struct {
			Benefit []json.RawMessage `json:"benefit"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &before); err != nil || len(before.Data.Benefit) != 0 {
		t.Fatalf("expected empty inventory before import, got %s", rec.Body.String())
	}

	if rec := request(app, http.MethodPost, "/api/v1/aggregation/run", viewer, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected viewer to be refused, got %d", rec.Code)
	}
	rec = request(app, http.MethodPost, "/api/v1/aggregation/run", admin, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected run 200, got %d %s", rec.Code, rec.Body.String())
	}
	if len(store.Updates) != 1 {
		t.Fatalf("expected a single write-back, got %v", store.Updates)
	}
	if logged := events.Events(); len(logged) != 1 || logged[0].ActorID != "user-admin" {
		t.Fatalf("expected the run to be audited, got %+v", logged)
	}

	rec = request(app, http.MethodGet, "/api/v1/cards", viewer, "")
	var after struct {
		Data struct {
			Benefit []struct {
				MaskedNumber string `json:"maskedNumber"`
				Wallet       string `json:"wallet"`
			} `json:"benefit"`
			WithoutCards []json.RawMessage `json:"withoutCards"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode inventory: %v", err)
	}
	if len(after.Data.Benefit) != 1 || after.Data.Benefit[0].MaskedNumber != "***1111" || after.Data.Benefit[0].Wallet != "Monthly Limit" {
		t.Fatalf("expected imported benefit card, got %s", rec.Body.String())
	}
	if len(after.Data.WithoutCards) != 1 {
		t.Fatalf("expected one employee without cards, got %s", rec.Body.String())
	}

	rec = request(app, http.MethodGet, "/metrics", "", "")
	var snapshot struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snapshot.Data["aggregationRunsTotal"] != float64(1) {
		t.Fatalf("expected one recorded run, got %v", snapshot.Data)
	}
}

func TestBodyLimit(t *testing.T) {
	app, _ := testApp(t, nil)
	body := `{"teams":["` + string(bytes.Repeat([]byte("a"), 8192)) + `"]}`
	rec := request(app, http.MethodPost, "/api/v1/aggregation/run", token(t, auth.RoleAdmin), body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
