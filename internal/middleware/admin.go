package middleware

import (
	"context"
	"net/http"
)

// Admin roles. Super admins hold every role implicitly.
const (
	RoleWithdrawals = "CanManageWithdrawals"
	RoleCompliance  = "CanReviewCompliance"
	RoleOfferings   = "CanManageOfferings"
	RoleSettlement  = "CanRunSettlement"
	RoleAudit       = "CanViewAudit"

	// SuperOnly is the pseudo role for promote and grant.
	SuperOnly = "super"
)

// KnownRole reports whether role can be granted. SuperOnly is not a
// grantable role.
func KnownRole(role string) bool {
	switch role {
	case RoleWithdrawals, RoleCompliance, RoleOfferings, RoleSettlement, RoleAudit:
		return true
	}
	return false
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireAdmin lets admins holding role through. An empty role only
// requires admin status; SuperOnly requires a super admin.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			isAdmin, isSuper, err := adminStore.IsAdmin(r.Context(), userID)
			if err != nil {
				deny(w, http.StatusInternalServerError, "admin_check_failed")
				return
			}
			if !isAdmin {
				deny(w, http.StatusForbidden, "admin_required")
				return
			}
			if isSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			if role == SuperOnly {
				deny(w, http.StatusForbidden, "super_admin_required")
				return
			}
			hasRole, err := adminStore.HasRole(r.Context(), userID, role)
			if err != nil {
				deny(w, http.StatusInternalServerError, "role_check_failed")
				return
			}
			if !hasRole {
				deny(w, http.StatusForbidden, "missing_role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
