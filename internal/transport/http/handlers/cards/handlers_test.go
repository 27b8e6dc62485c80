package cardshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"cardadmin/internal/auth"
	"cardadmin/internal/domain/audit"
	"cardadmin/internal/domain/cards"
	"cardadmin/internal/domain/directory"
	"cardadmin/internal/domain/directory/directorytest"
	"cardadmin/internal/domain/views"
	"cardadmin/internal/platform/cache"
	"cardadmin/internal/transport/http/middleware"
)

type storedKey struct {
	hash     string
	response middleware.StoredResponse
}

type memoryKeys struct {
	mu    sync.Mutex
	items map[string]storedKey
}

func (m *memoryKeys) Check(_ context.Context, userID, endpoint, key, hash string) (middleware.StoredResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[userID+"|"+endpoint+"|"+key]
	if !ok {
		return middleware.StoredResponse{}, false, nil
	}
	if item.hash != hash {
		return middleware.StoredResponse{}, false, middleware.ErrIdempotencyConflict
	}
	return item.response, true, nil
}

func (m *memoryKeys) Save(_ context.Context, userID, endpoint, key, hash string, response middleware.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]storedKey{}
	}
	m.items[userID+"|"+endpoint+"|"+key] = storedKey{hash: hash, response: response}
	return nil
}

type fixture struct {
	router http.Handler
	store  *directorytest.Store
	events *audit.Memory
}

func newFixture(t *testing.T, role string) fixture {
	t.Helper()
	store := &directorytest.Store{
		Teams: []directory.Team{{ID: 1, Name: "Engineering"}},
		Employees: []directory.Employee{
			{ID: 1, Name: "Ana Silva", Team: "Engineering", IsAdded: true},
			{ID: 2, Name: "Ben", Team: "Engineering"},
		},
	}
	viewService := views.NewService(store, cache.NewMemory(), time.Minute)
	cardService := cards.NewService(store)
	cardService.Invalidator = viewService
	h := NewHandler(cardService, viewService, &memoryKeys{})
	events := &audit.Memory{}
	h.Audit = events

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := middleware.WithUser(req.Context(), auth.UserContext{UserID: "admin-1", Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return fixture{router: r, store: store, events: events}
}

func (f fixture) send(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

const companyBody = `{"userId":1,"cardHolderName":"Ana Silva","cardNo":"4111111111111234","expiryMm":4,"expiryYy":28}`

func TestCreateCompanyCardAppearsInInventory(t *testing.T) {
	f := newFixture(t, auth.RoleAdmin)

	// warm the cache so the insert has something to invalidate
	if rec := f.send(http.MethodGet, "/cards", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := f.send(http.MethodPost, "/cards/company", companyBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data directory.Card `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.CardNo != "***1234" {
		t.Fatalf("expected masked number, got %q", created.Data.CardNo)
	}
	events := f.events.Events()
	if len(events) != 1 || events[0].Action != audit.ActionCardCreate || events[0].ActorID != "admin-1" || events[0].EntityID != "1001" {
		t.Fatalf("expected card.create audit event, got %+v", events)
	}

	rec = f.send(http.MethodGet, "/cards", "", nil)
	var inventory struct {
		Data views.CardInventory `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &inventory); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(inventory.Data.Company) != 1 || inventory.Data.Company[0].Wallet != views.WalletPrimary {
		t.Fatalf("expected new card in company inventory, got %+v", inventory.Data)
	}
}

func TestCreateBenefitCard(t *testing.T) {
	f := newFixture(t, auth.RoleAdmin)

	rec := f.send(http.MethodPost, "/cards/benefit", `{"userId":1,"cardNickname":"Lunch","benefitType":"meal_voucher"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if len(f.store.Cards) != 1 {
		t.Fatalf("expected stored card, got %d", len(f.store.Cards))
	}
	card := f.store.Cards[0]
	if card.CardHolderName != "Ana Silva" || card.CardType != "meal_voucher" || !strings.HasPrefix(card.CardNo, "****-****-****-") {
		t.Fatalf("unexpected benefit card %+v", card)
	}
	if card.ExpiryMM != 12 || card.ExpiryYY != 25 {
		t.Fatalf("unexpected expiry %02d/%02d", card.ExpiryMM, card.ExpiryYY)
	}
}

func TestCreateCardErrors(t *testing.T) {
	f := newFixture(t, auth.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "validation", path: "/cards/company", body: `{"userId":1,"cardNo":"12ab","expiryMm":13,"expiryYy":28}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown benefit", path: "/cards/benefit", body: `{"userId":1,"cardNickname":"x","benefitType":"yacht"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown employee", path: "/cards/company", body: strings.Replace(companyBody, `"userId":1`, `"userId":99`, 1), status: http.StatusNotFound, code: "employee_not_found"},
		{name: "not imported", path: "/cards/company", body: strings.Replace(companyBody, `"userId":1`, `"userId":2`, 1), status: http.StatusConflict, code: "employee_not_imported"},
		{name: "unknown field", path: "/cards/company", body: `{"userId":1,"pin":"0000"}`, status: http.StatusBadRequest, code: "invalid_payload"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.send(http.MethodPost, tc.path, tc.body, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d %s", tc.status, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, code)
			}
		})
	}
	if len(f.store.Cards) != 0 || len(f.events.Events()) != 0 {
		t.Fatalf("expected no cards stored or audited, got %d", len(f.store.Cards))
	}
}

func TestCreateCardIdempotencyKey(t *testing.T) {
	f := newFixture(t, auth.RoleAdmin)
	headers := map[string]string{"Idempotency-Key": "card-1"}

	first := f.send(http.MethodPost, "/cards/company", companyBody, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	replay := f.send(http.MethodPost, "/cards/company", companyBody, headers)
	if replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replay, got %d", replay.Code)
	}
	if len(f.store.Cards) != 1 {
		t.Fatalf("expected a single insert, got %d", len(f.store.Cards))
	}

	conflict := f.send(http.MethodPost, "/cards/company", strings.Replace(companyBody, "Ana Silva", "A. Silva", 1), headers)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", conflict.Code)
	}
}

func TestCreateCardRequiresAdmin(t *testing.T) {
	f := newFixture(t, auth.RoleViewer)
	if rec := f.send(http.MethodPost, "/cards/company", companyBody, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := f.send(http.MethodGet, "/cards/benefit-types", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected viewers to read benefit types, got %d", rec.Code)
	}
}
