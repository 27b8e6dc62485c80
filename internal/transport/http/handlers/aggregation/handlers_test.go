package aggregationhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"cardadmin/internal/auth"
	"cardadmin/internal/domain/aggregation"
	"cardadmin/internal/domain/directory"
	"cardadmin/internal/domain/directory/directorytest"
	"cardadmin/internal/platform/jobs"
	"cardadmin/internal/platform/jobs/jobstest"
	"cardadmin/internal/transport/http/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func seededStore() *directorytest.Store {
	return &directorytest.Store{
		Teams: []directory.Team{{ID: 1, Name: "Engineering"}},
		Employees: []directory.Employee{
			{ID: 1, Name: "Ana", Team: "Engineering "},
			{ID: 2, Name: "Ben", Team: "engineering"},
			{ID: 3, Name: "Cy", Team: "Sales"},
		},
		Cards: []directory.Card{{ID: 10, UserID: 1, CardNo: "4111111111111111", CardType: "company"}},
	}
}

func newRouter(t *testing.T, store *directorytest.Store, role string) (http.Handler, *jobs.Service) {
	t.Helper()
	jobService := jobs.New(jobstest.NewRuns())
	h := NewHandler(aggregation.NewService(store, 2), jobService, store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if role != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "u-1", Role: role})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	h.RegisterRoutes(r)
	return r, jobService
}

func do(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func TestRunReturnsNestedView(t *testing.T) {
	store := seededStore()
	router, _ := newRouter(t, store, auth.RoleAdmin)

	rec, env := do(t, router, http.MethodPost, "/aggregation/run", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var result aggregation.Result
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Teams) != 1 || len(result.Teams[0].Employees) != 2 {
		t.Fatalf("expected one team with two members, got %+v", result.Teams)
	}
	if result.Summary.Cards != 1 || result.NewlyImported != 2 {
		t.Fatalf("unexpected summary %+v newly=%d", result.Summary, result.NewlyImported)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestRunIsRecordedAsJob(t *testing.T) {
	router, _ := newRouter(t, seededStore(), auth.RoleAdmin)

	rec, _ := do(t, router, http.MethodPost, "/aggregation/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	jobID := rec.Header().Get("X-Job-ID")
	if jobID == "" {
		t.Fatal("expected job id header")
	}

	rec, env := do(t, router, http.MethodGet, "/aggregation/jobs/"+jobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected recorded job, got %d %s", rec.Code, rec.Body.String())
	}
	var run jobs.Run
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Status != jobs.StatusCompleted || run.CompletedAt == nil {
		t.Fatalf("expected completed run, got %+v", run)
	}
	var details struct {
		NewlyImported int64 `json:"newlyImported"`
	}
	if err := json.Unmarshal(run.Details, &details); err != nil || details.NewlyImported != 2 {
		t.Fatalf("unexpected run details %s", run.Details)
	}

	failing, _ := newRouter(t, &directorytest.Store{Employees: seededStore().Employees}, auth.RoleAdmin)
	rec, _ = do(t, failing, http.MethodPost, "/aggregation/run", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	rec, env = do(t, failing, http.MethodGet, "/aggregation/jobs/"+rec.Header().Get("X-Job-ID"), "")
	if err := json.Unmarshal(env.Data, &run); err != nil || run.Status != jobs.StatusFailed {
		t.Fatalf("expected failed run, got %s", rec.Body.String())
	}
}

func TestRunMapsConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		store  *directorytest.Store
		body   string
		status int
		code   string
	}{
		{name: "no teams", store: &directorytest.Store{Employees: seededStore().Employees}, status: http.StatusUnprocessableEntity, code: "no_teams"},
		{name: "unknown team filter", store: seededStore(), body: `{"teams":["Legal"]}`, status: http.StatusUnprocessableEntity, code: "no_teams"},
		{name: "no employees", store: &directorytest.Store{Teams: seededStore().Teams}, status: http.StatusUnprocessableEntity, code: "no_employees"},
		{name: "read failure", store: &directorytest.Store{TeamsErr: errors.New("connection reset")}, status: http.StatusBadGateway, code: "backend_read_failed"},
		{name: "bad payload", store: seededStore(), body: `{"teams":`, status: http.StatusBadRequest, code: "invalid_payload"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newRouter(t, tc.store, auth.RoleAdmin)
			rec, env := do(t, router, http.MethodPost, "/aggregation/run", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d %s", tc.status, rec.Code, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, rec.Body.String())
			}
			if len(tc.store.Updates) != 0 {
				t.Fatalf("expected no write-back, got %v", tc.store.Updates)
			}
		})
	}
}

func TestRunRequiresAdmin(t *testing.T) {
	router, _ := newRouter(t, seededStore(), auth.RoleViewer)
	if rec, _ := do(t, router, http.MethodPost, "/aggregation/run", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rec.Code)
	}

	anonymous, _ := newRouter(t, seededStore(), "")
	if rec, _ := do(t, anonymous, http.MethodGet, "/aggregation/pending", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rec.Code)
	}
}

func TestEnqueueRunsAggregationJob(t *testing.T) {
	store := seededStore()
	router, jobService := newRouter(t, store, auth.RoleAdmin)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobService.Start(ctx)

	rec, env := do(t, router, http.MethodPost, "/aggregation/jobs", `{"teams":["engineering"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", rec.Code, rec.Body.String())
	}
	var queued map[string]string
	if err := json.Unmarshal(env.Data, &queued); err != nil || queued["jobId"] == "" {
		t.Fatalf("expected job id, got %s", env.Data)
	}

	deadline := time.Now().Add(2 * time.Second)
	var run jobs.Run
	for time.Now().Before(deadline) {
		rec, env = do(t, router, http.MethodGet, "/aggregation/jobs/"+queued["jobId"], "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for job lookup, got %d", rec.Code)
		}
		if err := json.Unmarshal(env.Data, &run); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.Status == jobs.StatusCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if run.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed job, got %+v", run)
	}
	var details struct {
		NewlyImported int64 `json:"newlyImported"`
	}
	if err := json.Unmarshal(run.Details, &details); err != nil || details.NewlyImported != 2 {
		t.Fatalf("unexpected job details %s", run.Details)
	}

	rec, env = do(t, router, http.MethodGet, "/aggregation/jobs", "")
	var runs []jobs.Run
	if err := json.Unmarshal(env.Data, &runs); err != nil || len(runs) != 1 {
		t.Fatalf("expected one listed run, got %s", rec.Body.String())
	}
}

func TestGetJobNotFound(t *testing.T) {
	router, _ := newRouter(t, seededStore(), auth.RoleViewer)
	for _, id := range []string{"not-a-uuid", "7b0f5c3e-1f7a-4c55-9d8e-3a2b1c0d9e8f"} {
		if rec, _ := do(t, router, http.MethodGet, "/aggregation/jobs/"+id, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", id, rec.Code)
		}
	}
}

func TestPendingListsEmployeesNotYetImported(t *testing.T) {
	store := seededStore()
	store.Employees[0].IsAdded = true
	router, _ := newRouter(t, store, auth.RoleViewer)

	_, env := do(t, router, http.MethodGet, "/aggregation/pending?team=ENGINEERING", "")
	var pending []directory.Employee
	if err := json.Unmarshal(env.Data, &pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != 2 {
		t.Fatalf("expected only employee 2 pending, got %+v", pending)
	}
}
