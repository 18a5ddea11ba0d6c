package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/vineeth-0509/open-llm/internal/shared/apikeys"
	"github.com/vineeth-0509/open-llm/internal/shared/database"
	"github.com/vineeth-0509/open-llm/internal/shared/models"
)

type fakeAdminStore struct {
	accounts  map[int64]*models.Account
	keys      map[int64]*models.APIKey
	models    map[string]*models.Model
	offerings map[int64][]models.ProviderOffering
	nextKeyID int64
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		accounts: map[int64]*models.Account{
			1: {ID: 1, Email: "a@example.com", Credits: 500, CreditsConsumed: 20},
		},
		keys:      make(map[int64]*models.APIKey),
		models:    make(map[string]*models.Model),
		offerings: make(map[int64][]models.ProviderOffering),
		nextKeyID: 10,
	}
}

func (f *fakeAdminStore) GetAccount(_ context.Context, accountID int64) (*models.Account, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return account, nil
}

func (f *fakeAdminStore) CreateAPIKey(_ context.Context, accountID int64, name, keyHash, keyPrefix string) (*models.APIKey, error) {
	f.nextKeyID++
	key := &models.APIKey{ID: f.nextKeyID, AccountID: accountID, Name: name, KeyHash: keyHash, KeyPrefix: keyPrefix}
	f.keys[key.ID] = key
	return key, nil
}

func (f *fakeAdminStore) ListAPIKeys(_ context.Context, accountID int64) ([]models.APIKey, error) {
	var out []models.APIKey
	for _, key := range f.keys {
		if key.AccountID == accountID && !key.Deleted {
			out = append(out, *key)
		}
	}
	return out, nil
}

func (f *fakeAdminStore) SetAPIKeyDisabled(_ context.Context, apiKeyID int64, disabled bool) error {
	key, ok := f.keys[apiKeyID]
	if !ok {
		return database.ErrNotFound
	}
	key.Disabled = disabled
	return nil
}

func (f *fakeAdminStore) SoftDeleteAPIKey(_ context.Context, apiKeyID int64) error {
	key, ok := f.keys[apiKeyID]
	if !ok {
		return database.ErrNotFound
	}
	key.Deleted = true
	return nil
}

func (f *fakeAdminStore) ListModels(_ context.Context) ([]models.Model, error) {
	var out []models.Model
	for _, m := range f.models {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeAdminStore) GetModelBySlug(_ context.Context, slug string) (*models.Model, error) {
	m, ok := f.models[slug]
	if !ok {
		return nil, database.ErrNotFound
	}
	return m, nil
}

func (f *fakeAdminStore) ListOfferings(_ context.Context, modelID int64) ([]models.ProviderOffering, error) {
	return f.offerings[modelID], nil
}

type fakeTopUpper struct {
	store *fakeAdminStore
	last  int64
}

func (f *fakeTopUpper) TopUp(_ context.Context, accountID, amount int64) (int64, error) {
	account, ok := f.store.accounts[accountID]
	if !ok {
		return 0, database.ErrNotFound
	}
	account.Credits += amount
	f.last = amount
	return account.Credits, nil
}

func newAdminRouter(store *fakeAdminStore, ledger *fakeTopUpper) http.Handler {
	h := NewAdminHandler(store, ledger, 1000)

	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Post("/keys", h.HandleCreateKey)
		r.Patch("/keys/{id}", h.HandleUpdateKey)
		r.Delete("/keys/{id}", h.HandleDeleteKey)
		r.Get("/accounts/{id}", h.HandleGetAccount)
		r.Get("/accounts/{id}/keys", h.HandleListKeys)
		r.Post("/accounts/{id}/topup", h.HandleTopUp)
		r.Get("/models", h.HandleListModels)
		r.Get("/models/{company}/{name}/offerings", h.HandleListOfferings)
	})
	return r
}

func doAdmin(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminCreateKey(t *testing.T) {
	store := newFakeAdminStore()
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "POST", "/admin/keys", `{"account_id":1,"name":"ci"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp createKeyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.APIKey, apikeys.Prefix) {
		t.Errorf("expected key with %q prefix, got %q", apikeys.Prefix, resp.APIKey)
	}

	// Only the hash is stored.
	key := store.keys[resp.ID]
	if key == nil {
		t.Fatal("key not persisted")
	}
	if key.KeyHash != apikeys.Hash(resp.APIKey) {
		t.Error("stored hash does not match returned key")
	}
	if strings.Contains(key.KeyHash, resp.APIKey) {
		t.Error("raw key leaked into the store")
	}
}

func TestAdminCreateKeyValidation(t *testing.T) {
	store := newFakeAdminStore()
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "POST", "/admin/keys", `{"name":"ci"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminListKeysMasksSecret(t *testing.T) {
	store := newFakeAdminStore()
	store.keys[11] = &models.APIKey{ID: 11, AccountID: 1, Name: "ci", KeyHash: "deadbeef", KeyPrefix: "sk-or-v1-zxcv"}
	store.keys[12] = &models.APIKey{ID: 12, AccountID: 1, Name: "old", Deleted: true}
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "GET", "/admin/accounts/1/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		APIKeys []keyListItem `json:"api_keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.APIKeys) != 1 {
		t.Fatalf("expected deleted key filtered out, got %d keys", len(resp.APIKeys))
	}
	if resp.APIKeys[0].KeyPrefix != "sk-or-v1-zxcv" {
		t.Errorf("unexpected prefix %q", resp.APIKeys[0].KeyPrefix)
	}
	if strings.Contains(rec.Body.String(), "deadbeef") {
		t.Error("key hash leaked into the listing")
	}
}

func TestAdminUpdateAndDeleteKey(t *testing.T) {
	store := newFakeAdminStore()
	store.keys[11] = &models.APIKey{ID: 11, AccountID: 1, Name: "ci"}
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "PATCH", "/admin/keys/11", `{"disabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.keys[11].Disabled {
		t.Error("key not disabled")
	}

	rec = doAdmin(t, router, "DELETE", "/admin/keys/11", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !store.keys[11].Deleted {
		t.Error("key not soft-deleted")
	}

	rec = doAdmin(t, router, "PATCH", "/admin/keys/99", `{"disabled":true}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", rec.Code)
	}
}

func TestAdminTopUpDefaultAmount(t *testing.T) {
	store := newFakeAdminStore()
	ledger := &fakeTopUpper{store: store}
	router := newAdminRouter(store, ledger)

	rec := doAdmin(t, router, "POST", "/admin/accounts/1/topup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ledger.last != 1000 {
		t.Errorf("expected default amount 1000, got %d", ledger.last)
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["credits"] != 1500 {
		t.Errorf("expected new balance 1500, got %d", resp["credits"])
	}
}

func TestAdminTopUpExplicitAmount(t *testing.T) {
	store := newFakeAdminStore()
	ledger := &fakeTopUpper{store: store}
	router := newAdminRouter(store, ledger)

	rec := doAdmin(t, router, "POST", "/admin/accounts/1/topup", `{"amount":250}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ledger.last != 250 {
		t.Errorf("expected amount 250, got %d", ledger.last)
	}
}

func TestAdminTopUpUnknownAccount(t *testing.T) {
	store := newFakeAdminStore()
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "POST", "/admin/accounts/9/topup", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminGetAccount(t *testing.T) {
	store := newFakeAdminStore()
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "GET", "/admin/accounts/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["credits"].(float64) != 500 {
		t.Errorf("unexpected credits %v", resp["credits"])
	}

	rec = doAdmin(t, router, "GET", "/admin/accounts/9", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminListOfferings(t *testing.T) {
	store := newFakeAdminStore()
	store.models["acme/foo"] = &models.Model{ID: 1, Slug: "acme/foo", Name: "foo", Company: "acme"}
	store.offerings[1] = []models.ProviderOffering{
		{ID: 9, ModelID: 1, Provider: "openai", InputTokenCost: 10, OutputTokenCost: 20},
	}
	router := newAdminRouter(store, &fakeTopUpper{store: store})

	rec := doAdmin(t, router, "GET", "/admin/models/acme/foo/offerings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Offerings []struct {
			Provider string `json:"provider"`
		} `json:"offerings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Offerings) != 1 || resp.Offerings[0].Provider != "openai" {
		t.Errorf("unexpected offerings %s", rec.Body.String())
	}

	rec = doAdmin(t, router, "GET", "/admin/models/nope/never/offerings", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown model, got %d", rec.Code)
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	guard := AdminAuthMiddleware("secret")
	inner := guard(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/admin/models", nil)
	rec := httptest.NewRecorder()
	inner.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	inner.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with token, got %d", rec.Code)
	}
}
