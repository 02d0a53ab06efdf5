package handlers

import (
	"net/http"

	"revshare/internal/auth"
	"revshare/internal/middleware"
	"revshare/internal/money"
	"revshare/internal/websocket"

	"go.uber.org/zap"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	wallet, err := h.svc.Ledger.Wallet(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_wallet")
		return
	}
	respondJSON(w, http.StatusOK, newWalletView(wallet))
}

func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	limit, offset := paging(r)
	entries, err := h.svc.Ledger.History(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_ledger")
		return
	}
	respondJSON(w, http.StatusOK, newLedgerEntryViews(entries))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	txType, valid := parseTransactionType(r.URL.Query().Get("type"))
	if !valid {
		respondError(w, http.StatusBadRequest, "invalid_transaction_type")
		return
	}
	limit, offset := paging(r)
	rows, err := h.svc.Ledger.Transactions(r.Context(), userID, txType, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_transactions")
		return
	}
	respondJSON(w, http.StatusOK, newTransactionViews(rows))
}

type depositRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.svc.Payments.Deposit(r.Context(), userID, amount)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_create_deposit")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"transaction_id": result.Transaction.ID,
		"status":         string(result.Transaction.Status),
		"amount":         money.FormatMinor(result.Transaction.Amount),
		"client_secret":  result.ClientSecret,
	})
}

// WSBalances upgrades to a websocket carrying the caller's balance
// updates. Browsers cannot set headers on the upgrade, so the token may
// come from the query string.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	var snapshot *websocket.BalanceUpdate
	if wallet, err := h.svc.Ledger.Wallet(r.Context(), claims.UserID); err == nil {
		update := websocket.NewBalanceUpdate(wallet)
		snapshot = &update
	} else {
		h.log.Warn("balance snapshot unavailable", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	h.hub.Serve(w, r, claims.UserID, snapshot)
}
