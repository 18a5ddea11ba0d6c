package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vineeth-0509/open-llm/internal/shared/apikeys"
	"github.com/vineeth-0509/open-llm/internal/shared/database"
	"github.com/vineeth-0509/open-llm/internal/shared/models"
)

// AdminStore covers the management-plane reads and writes.
type AdminStore interface {
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	CreateAPIKey(ctx context.Context, accountID int64, name, keyHash, keyPrefix string) (*models.APIKey, error)
	ListAPIKeys(ctx context.Context, accountID int64) ([]models.APIKey, error)
	SetAPIKeyDisabled(ctx context.Context, apiKeyID int64, disabled bool) error
	SoftDeleteAPIKey(ctx context.Context, apiKeyID int64) error
	ListModels(ctx context.Context) ([]models.Model, error)
	GetModelBySlug(ctx context.Context, slug string) (*models.Model, error)
	ListOfferings(ctx context.Context, modelID int64) ([]models.ProviderOffering, error)
}

// TopUpper credits an account atomically.
type TopUpper interface {
	TopUp(ctx context.Context, accountID, amount int64) (int64, error)
}

type AdminHandler struct {
	store        AdminStore
	ledger       TopUpper
	defaultTopUp int64
}

func NewAdminHandler(store AdminStore, ledger TopUpper, defaultTopUp int64) *AdminHandler {
	return &AdminHandler{store: store, ledger: ledger, defaultTopUp: defaultTopUp}
}

type createKeyRequest struct {
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
}

type createKeyResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// HandleCreateKey handles POST /admin/keys. The raw key appears in this
// response only; the store keeps the hash.
func (h *AdminHandler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.AccountID == 0 || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "account_id and name are required")
		return
	}

	rawKey, err := apikeys.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to generate key")
		return
	}

	key, err := h.store.CreateAPIKey(r.Context(), req.AccountID, req.Name, apikeys.Hash(rawKey), apikeys.DisplayPrefix(rawKey))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to create key")
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{ID: key.ID, Name: key.Name, APIKey: rawKey})
}

type keyListItem struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	KeyPrefix       string     `json:"key_prefix"`
	Disabled        bool       `json:"disabled"`
	CreditsConsumed int64      `json:"credits_consumed"`
	LastUsedAt      *time.Time `json:"last_used_at"`
}

// HandleListKeys handles GET /admin/accounts/{id}/keys
func (h *AdminHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	keys, err := h.store.ListAPIKeys(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list keys")
		return
	}

	items := make([]keyListItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, keyListItem{
			ID:              key.ID,
			Name:            key.Name,
			KeyPrefix:       key.KeyPrefix,
			Disabled:        key.Disabled,
			CreditsConsumed: key.CreditsConsumed,
			LastUsedAt:      key.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": items})
}

type updateKeyRequest struct {
	Disabled bool `json:"disabled"`
}

// HandleUpdateKey handles PATCH /admin/keys/{id}
func (h *AdminHandler) HandleUpdateKey(w http.ResponseWriter, r *http.Request) {
	keyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if err := h.store.SetAPIKeyDisabled(r.Context(), keyID, req.Disabled); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "api key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to update key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated api key successfully"})
}

// HandleDeleteKey handles DELETE /admin/keys/{id}. Soft delete; usage
// history stays attached.
func (h *AdminHandler) HandleDeleteKey(w http.ResponseWriter, r *http.Request) {
	keyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.SoftDeleteAPIKey(r.Context(), keyID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "api key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to delete key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "api key deleted successfully"})
}

// HandleListModels handles GET /admin/models
func (h *AdminHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list models")
		return
	}

	type modelItem struct {
		ID      int64  `json:"id"`
		Slug    string `json:"slug"`
		Name    string `json:"name"`
		Company string `json:"company"`
	}
	items := make([]modelItem, 0, len(list))
	for _, m := range list {
		items = append(items, modelItem{ID: m.ID, Slug: m.Slug, Name: m.Name, Company: m.Company})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": items})
}

// HandleListOfferings handles GET /admin/models/{company}/{name}/offerings
func (h *AdminHandler) HandleListOfferings(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "company") + "/" + chi.URLParam(r, "name")

	model, err := h.store.GetModelBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "model not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load model")
		return
	}

	offerings, err := h.store.ListOfferings(r.Context(), model.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list offerings")
		return
	}

	type offeringItem struct {
		ID              int64  `json:"id"`
		Provider        string `json:"provider"`
		InputTokenCost  int64  `json:"input_token_cost"`
		OutputTokenCost int64  `json:"output_token_cost"`
	}
	items := make([]offeringItem, 0, len(offerings))
	for _, o := range offerings {
		items = append(items, offeringItem{ID: o.ID, Provider: o.Provider, InputTokenCost: o.InputTokenCost, OutputTokenCost: o.OutputTokenCost})
	}
	writeJSON(w, http.StatusOK, map[string]any{"offerings": items})
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

// HandleTopUp handles POST /admin/accounts/{id}/topup
func (h *AdminHandler) HandleTopUp(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req topUpRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}
	amount := req.Amount
	if amount == 0 {
		amount = h.defaultTopUp
	}

	newBalance, err := h.ledger.TopUp(r.Context(), accountID, amount)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"credits": newBalance})
}

// HandleGetAccount handles GET /admin/accounts/{id}
func (h *AdminHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	account, err := h.store.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":               account.ID,
		"email":            account.Email,
		"credits":          account.Credits,
		"credits_consumed": account.CreditsConsumed,
		"disabled":         account.Disabled,
	})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}
