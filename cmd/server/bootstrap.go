package main

import (
	"context"

	"revshare/internal/db"
	"revshare/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type adminBootstrapper interface {
	HasAnyAdmin(ctx context.Context) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
}

// bootstrapAdmin makes userID a super admin on a deployment with no
// admins. It does nothing once any admin exists.
func bootstrapAdmin(ctx context.Context, txRunner db.TxRunner, admins adminBootstrapper, userID string, log *zap.Logger) error {
	if userID == "" {
		return nil
	}
	exists, err := admins.HasAnyAdmin(ctx)
	if err != nil || exists {
		return err
	}
	err = txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return admins.CreateAdmin(ctx, tx, userID, true, nil)
	})
	if err != nil {
		return err
	}
	log.Info("bootstrap super admin created", zap.String("user_id", userID))
	return nil
}
