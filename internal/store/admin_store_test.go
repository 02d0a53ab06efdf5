package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"revshare/internal/models"
)

func TestAdminStoreIsAdminNoRows(t *testing.T) {
	store := NewAdminStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			return sql.ErrNoRows
		},
	})
	isAdmin, isSuper, err := store.IsAdmin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isAdmin || isSuper {
		t.Fatalf("expected non-admin result")
	}
}

func TestAdminStoreIsSuper(t *testing.T) {
	store := NewAdminStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM admins") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = true
			return nil
		},
	})
	isAdmin, isSuper, err := store.IsAdmin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isAdmin || !isSuper {
		t.Fatalf("expected admin and super")
	}
}

func TestAdminStoreHasRole(t *testing.T) {
	store := NewAdminStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM admin_roles") || args[1] != "CanRunSettlement" {
				t.Fatalf("unexpected query: %s %#v", query, args)
			}
			*dest.(*bool) = true
			return nil
		},
	})
	granted, err := store.HasRole(context.Background(), "user-1", "CanRunSettlement")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !granted {
		t.Fatalf("expected role to be granted")
	}
}

func TestAdminStoreGetLoadsRoles(t *testing.T) {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewAdminStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			*dest.(*models.Admin) = models.Admin{UserID: "admin-1", CreatedAt: created}
			return nil
		},
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM admin_roles") || args[0] != "admin-1" {
				t.Fatalf("unexpected query: %s %#v", query, args)
			}
			*dest.(*[]string) = []string{"CanManageOfferings", "CanRunSettlement"}
			return nil
		},
	})
	admin, err := store.Get(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin.UserID != "admin-1" || len(admin.Roles) != 2 || admin.Roles[1] != "CanRunSettlement" {
		t.Fatalf("unexpected admin: %#v", admin)
	}
}

func TestAdminStoreGetMissing(t *testing.T) {
	store := NewAdminStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error { return sql.ErrNoRows },
		selectFn: func(context.Context, any, string, ...any) error {
			t.Fatalf("roles must not be loaded for a missing admin")
			return nil
		},
	})
	if _, err := store.Get(context.Background(), "user-9"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestAdminStoreCreateAdmin(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO admins") || !strings.Contains(query, "DO NOTHING") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "user-1" || args[1] != true {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := NewAdminStore(stubDB{}).CreateAdmin(context.Background(), execer, "user-1", true, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdminStoreGrantRoleRecordsGrantor(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO admin_roles") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "admin-2" || args[1] != "CanViewAudit" || args[2] != "super-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := NewAdminStore(stubDB{}).GrantRole(context.Background(), execer, "admin-2", "CanViewAudit", "super-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdminStoreRevokeRole(t *testing.T) {
	rows := int64(1)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM admin_roles") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{rows: rows}, nil
		},
	}
	store := NewAdminStore(stubDB{})
	removed, err := store.RevokeRole(context.Background(), execer, "admin-2", "CanViewAudit")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	rows = 0
	removed, err = store.RevokeRole(context.Background(), execer, "admin-2", "CanViewAudit")
	if err != nil || removed {
		t.Fatalf("expected no-op, got %v %v", removed, err)
	}
}

func TestAdminStoreHasAnyAdmin(t *testing.T) {
	store := NewAdminStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "EXISTS") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*bool) = true
			return nil
		},
	})
	hasAny, err := store.HasAnyAdmin(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasAny {
		t.Fatalf("expected admins to exist")
	}
}
