package handlers

import (
	"net/http"

	"revshare/internal/money"
	"revshare/internal/services"

	"github.com/go-chi/chi/v5"
)

type withdrawalRequest struct {
	BankAccountID string `json:"bank_account_id"`
	Amount        string `json:"amount"`
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !decode(w, r, &req) {
		return
	}
	if req.BankAccountID == "" {
		respondError(w, http.StatusBadRequest, "bank_account_required")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	withdrawal, err := h.svc.Withdrawals.Request(r.Context(), services.WithdrawalRequest{
		UserID:        userID,
		BankAccountID: req.BankAccountID,
		Amount:        amount,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_request_withdrawal")
		return
	}
	respondJSON(w, http.StatusCreated, newWithdrawalView(withdrawal))
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	limit, offset := paging(r)
	list, err := h.svc.Withdrawals.ListForUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_withdrawals")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalViews(list))
}

func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	withdrawal, err := h.svc.Withdrawals.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_withdrawal")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalView(withdrawal))
}

func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	withdrawal, err := h.svc.Withdrawals.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_cancel_withdrawal")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalView(withdrawal))
}

// WithdrawalFee quotes the fee for an amount before the user commits.
func (h *Handler) WithdrawalFee(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmountMinor(r.URL.Query().Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	fee := h.svc.Withdrawals.Fee(amount)
	respondJSON(w, http.StatusOK, map[string]string{
		"amount":     money.FormatMinor(amount),
		"fee":        money.FormatMinor(fee),
		"net_amount": money.FormatMinor(amount - fee),
	})
}

func (h *Handler) AdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		raw = "PENDING"
	}
	status, ok := parseWithdrawalStatus(raw)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	limit, offset := paging(r)
	list, err := h.svc.Withdrawals.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_withdrawals")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalViews(list))
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	withdrawal, err := h.svc.Withdrawals.Approve(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_approve_withdrawal")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalView(withdrawal))
}

func (h *Handler) CompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	withdrawal, err := h.svc.Withdrawals.Complete(r.Context(), adminID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_complete_withdrawal")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalView(withdrawal))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !decode(w, r, &req) {
		return
	}
	withdrawal, err := h.svc.Withdrawals.Reject(r.Context(), adminID, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_reject_withdrawal")
		return
	}
	respondJSON(w, http.StatusOK, newWithdrawalView(withdrawal))
}
