package store

import (
	"context"
	"database/sql"
	"errors"

	"revshare/internal/models"
)

// AdminStore records which identity-provider users may operate the
// platform and the roles granted to them.
type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

// IsAdmin reports (isAdmin, isSuper).
func (s *AdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `SELECT is_super FROM admins WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, isSuper, nil
}

func (s *AdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var granted bool
	err := s.db.GetContext(ctx, &granted, `
		SELECT EXISTS (SELECT 1 FROM admin_roles WHERE admin_user_id = $1 AND role = $2)
	`, userID, role)
	return granted, err
}

// Get loads an admin with its explicit role grants. sql.ErrNoRows means
// the user is not an admin.
func (s *AdminStore) Get(ctx context.Context, userID string) (models.Admin, error) {
	var admin models.Admin
	if err := s.db.GetContext(ctx, &admin, `
		SELECT user_id, is_super, created_by, created_at FROM admins WHERE user_id = $1
	`, userID); err != nil {
		return models.Admin{}, err
	}
	roles := []string{}
	if err := s.db.SelectContext(ctx, &roles, `
		SELECT role FROM admin_roles WHERE admin_user_id = $1 ORDER BY role
	`, userID); err != nil {
		return models.Admin{}, err
	}
	admin.Roles = roles
	return admin, nil
}

// CreateAdmin is a no-op for an existing admin; isSuper is never changed
// by a second call.
func (s *AdminStore) CreateAdmin(ctx context.Context, tx Execer, userID string, isSuper bool, createdBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admins (user_id, is_super, created_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, isSuper, createdBy)
	return err
}

func (s *AdminStore) GrantRole(ctx context.Context, tx Execer, adminUserID, role, grantedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_roles (admin_user_id, role, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (admin_user_id, role) DO NOTHING
	`, adminUserID, role, grantedBy)
	return err
}

// RevokeRole reports whether a grant was removed.
func (s *AdminStore) RevokeRole(ctx context.Context, tx Execer, adminUserID, role string) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM admin_roles WHERE admin_user_id = $1 AND role = $2
	`, adminUserID, role)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (s *AdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM admins)`)
	return exists, err
}
