package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vineeth-0509/open-llm/internal/gateway/orchestrator"
	"github.com/vineeth-0509/open-llm/internal/gateway/providers"
)

// Completer serves one gateway request end to end.
type Completer interface {
	Complete(ctx context.Context, credential string, req orchestrator.Request) (*orchestrator.Response, error)
}

type ChatHandler struct {
	completer Completer
}

func NewChatHandler(completer Completer) *ChatHandler {
	return &ChatHandler{completer: completer}
}

// HandleChatCompletion handles POST /v1/chat/completions
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credential, _ := CredentialFrom(ctx)

	// Parse request
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.completer.Complete(ctx, credential, req)
	if err != nil {
		var oerr *orchestrator.Error
		if errors.As(err, &oerr) {
			writeError(w, oerr.Kind.HTTPStatus(), string(oerr.Kind), oerr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	// Set headers
	w.Header().Set("X-Provider", resp.Provider)
	w.Header().Set("X-Cost", fmt.Sprintf("%d", resp.Cost))
	if resp.BillingFailed {
		w.Header().Set("X-Billing", "failed")
	}

	writeJSON(w, http.StatusOK, resp)
}

// validateRequest enforces the canonical request shape: a model slug and an
// ordered list of user/assistant turns.
func validateRequest(req orchestrator.Request) error {
	if req.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, msg := range req.Messages {
		if msg.Role != providers.RoleUser && msg.Role != providers.RoleAssistant {
			return fmt.Errorf("messages[%d]: role must be %q or %q", i, providers.RoleUser, providers.RoleAssistant)
		}
	}
	return nil
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
