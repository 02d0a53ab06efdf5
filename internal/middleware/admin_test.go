package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubAdminStore struct {
	isAdminFn func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn func(ctx context.Context, userID, role string) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	return s.hasRoleFn(ctx, userID, role)
}

// admins answers from fixed maps: super admins, plain admins and their roles.
func admins(super map[string]bool, roles map[string][]string) stubAdminStore {
	return stubAdminStore{
		isAdminFn: func(_ context.Context, userID string) (bool, bool, error) {
			if super[userID] {
				return true, true, nil
			}
			_, ok := roles[userID]
			return ok, false, nil
		},
		hasRoleFn: func(_ context.Context, userID, role string) (bool, error) {
			for _, r := range roles[userID] {
				if r == role {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func TestRequireAdmin(t *testing.T) {
	store := admins(
		map[string]bool{"root": true},
		map[string][]string{"ops": {RoleWithdrawals}, "plain": {}},
	)
	tests := []struct {
		name   string
		userID string
		role   string
		want   int
	}{
		{"missing user", "", RoleWithdrawals, http.StatusUnauthorized},
		{"not admin", "user-1", RoleWithdrawals, http.StatusForbidden},
		{"super admin", "root", RoleSettlement, http.StatusOK},
		{"has role", "ops", RoleWithdrawals, http.StatusOK},
		{"missing role", "ops", RoleSettlement, http.StatusForbidden},
		{"any admin", "plain", "", http.StatusOK},
		{"super only", "ops", SuperOnly, http.StatusForbidden},
		{"super only as super", "root", SuperOnly, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := RequireAdmin(store, tt.role)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.userID != "" {
				req = req.WithContext(WithUserID(req.Context(), tt.userID))
			}
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if called != (tt.want == http.StatusOK) {
				t.Fatalf("handler called = %v", called)
			}
		})
	}
}

func TestRequireAdminStoreFailure(t *testing.T) {
	handler := RequireAdmin(stubAdminStore{
		isAdminFn: func(context.Context, string) (bool, bool, error) {
			return false, false, errors.New("db down")
		},
		hasRoleFn: func(context.Context, string, string) (bool, error) {
			t.Fatalf("unexpected call")
			return false, nil
		},
	}, RoleAudit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestKnownRole(t *testing.T) {
	for _, role := range []string{RoleWithdrawals, RoleCompliance, RoleOfferings, RoleSettlement, RoleAudit} {
		if !KnownRole(role) {
			t.Fatalf("expected %s to be grantable", role)
		}
	}
	for _, role := range []string{SuperOnly, "", "CanDoAnything"} {
		if KnownRole(role) {
			t.Fatalf("expected %q to be rejected", role)
		}
	}
}
