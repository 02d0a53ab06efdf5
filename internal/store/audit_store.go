package store

import (
	"context"
	"fmt"

	"revshare/internal/models"

	"github.com/google/uuid"
)

// AuditStore is the append-only trail of operator and system actions.
type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Log writes one entry through tx so it commits or rolls back with the
// action itself. An empty actorID records a system action.
func (s *AuditStore) Log(ctx context.Context, tx Execer, actorID, action, entityType, entityID, data string) error {
	if data == "" {
		data = "{}"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, data)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	`, uuid.NewString(), actorID, action, entityType, entityID, data)
	return err
}

// List pages through entries newest first, optionally for one entity type.
func (s *AuditStore) List(ctx context.Context, entityType string, limit, offset int) ([]models.AuditLog, error) {
	where, args := "", []any{}
	if entityType != "" {
		where = "WHERE entity_type = $1"
		args = append(args, entityType)
	}
	query := fmt.Sprintf(`
		SELECT id, actor_user_id, action, entity_type, entity_id, data, created_at
		FROM audit_logs
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows := []models.AuditLog{}
	if err := s.db.SelectContext(ctx, &rows, query, append(args, limit, offset)...); err != nil {
		return nil, err
	}
	return rows, nil
}
