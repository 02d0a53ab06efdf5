package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"revshare/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CurrentAdmin describes the calling admin and its grants.
func (h *Handler) CurrentAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	admin, err := h.admin.Get(r.Context(), userID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusForbidden, "admin_required")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_admin")
		return
	}
	respondJSON(w, http.StatusOK, admin)
}

type promoteRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req promoteRequest
	if !decode(w, r, &req) {
		return
	}
	target := strings.TrimSpace(req.UserID)
	if target == "" {
		respondError(w, http.StatusBadRequest, "user_id_required")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, target, false, &userID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"target_user_id": target})
		return h.audit.Log(r.Context(), tx, userID, "promote_admin", "admin", target, string(data))
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_promote_admin")
		return
	}
	h.log.Info("admin promoted", zap.String("admin_user_id", target), zap.String("by", userID))
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted"})
}

type roleRequest struct {
	AdminUserID string `json:"admin_user_id"`
	Role        string `json:"role"`
}

// roleTarget validates a grant or revoke request against a non-super admin.
func (h *Handler) roleTarget(w http.ResponseWriter, r *http.Request) (roleRequest, bool) {
	var req roleRequest
	if !decode(w, r, &req) {
		return req, false
	}
	if req.AdminUserID == "" || !middleware.KnownRole(req.Role) {
		respondError(w, http.StatusBadRequest, "invalid_role_request")
		return req, false
	}
	isAdmin, isSuper, err := h.admin.IsAdmin(r.Context(), req.AdminUserID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_verify_target_admin")
		return req, false
	}
	if !isAdmin {
		respondError(w, http.StatusBadRequest, "target_not_admin")
		return req, false
	}
	if isSuper {
		respondError(w, http.StatusBadRequest, "target_is_super_admin")
		return req, false
	}
	return req, true
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := h.roleTarget(w, r)
	if !ok {
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.GrantRole(r.Context(), tx, req.AdminUserID, req.Role, userID); err != nil {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, userID, "grant_role", "admin_role", req.AdminUserID, string(data))
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_grant_role")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "role_granted"})
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	req, ok := h.roleTarget(w, r)
	if !ok {
		return
	}
	var removed bool
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		var err error
		removed, err = h.admin.RevokeRole(r.Context(), tx, req.AdminUserID, req.Role)
		if err != nil || !removed {
			return err
		}
		data, _ := json.Marshal(req)
		return h.audit.Log(r.Context(), tx, userID, "revoke_role", "admin_role", req.AdminUserID, string(data))
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_revoke_role")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "role_not_granted")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "role_revoked"})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	rows, err := h.audit.List(r.Context(), r.URL.Query().Get("entity_type"), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_audit_logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// ReconcileWallets replays every wallet's ledger and lists the ones whose
// stored balances disagree with it.
func (h *Handler) ReconcileWallets(w http.ResponseWriter, r *http.Request) {
	broken, checked, err := h.svc.Ledger.VerifyAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_reconcile_wallets")
		return
	}
	views := make([]replayView, 0, len(broken))
	for _, report := range broken {
		views = append(views, newReplayView(report))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"checked":      checked,
		"inconsistent": views,
	})
}

func (h *Handler) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Ledger.VerifyWallet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_reconcile_wallet")
		return
	}
	respondJSON(w, http.StatusOK, newReplayView(report))
}
