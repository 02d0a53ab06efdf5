package handlers

import (
	"net/http"
	"strings"

	"revshare/internal/models"
	"revshare/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	accounts, err := h.svc.BankAccounts.List(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_bank_accounts")
		return
	}
	if accounts == nil {
		accounts = []models.BankAccount{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) AddBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.BankAccountInput
	if !decode(w, r, &req) {
		return
	}
	account, err := h.svc.BankAccounts.Add(r.Context(), userID, req)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_add_bank_account")
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (h *Handler) SetDefaultBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.BankAccounts.SetDefault(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err, "unable_to_set_default")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "default_set"})
}

func (h *Handler) DeleteBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.BankAccounts.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err, "unable_to_delete_bank_account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyBankAccountRequest struct {
	Status string `json:"status"`
}

func (h *Handler) VerifyBankAccount(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req verifyBankAccountRequest
	if !decode(w, r, &req) {
		return
	}
	status := models.BankAccountStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != models.BankAccountVerified && status != models.BankAccountRejected {
		respondError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	account, err := h.svc.BankAccounts.Verify(r.Context(), adminID, chi.URLParam(r, "id"), status)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_verify_bank_account")
		return
	}
	respondJSON(w, http.StatusOK, account)
}
