package services

import (
	"context"
	"time"

	"revshare/internal/events"
	"revshare/internal/models"
	"revshare/internal/websocket"

	"go.uber.org/zap"
)

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// Notifier fans committed changes out to live clients and the event bus.
// Failures are logged and never undo the money operation.
type Notifier struct {
	hub       BalanceHub
	publisher events.Publisher
	log       *zap.Logger
}

func NewNotifier(hub BalanceHub, publisher events.Publisher, log *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{hub: hub, publisher: publisher, log: log}
}

func (n *Notifier) WalletChanged(wallet models.Wallet) {
	if n == nil || n.hub == nil {
		return
	}
	n.hub.BroadcastBalance(wallet.UserID, websocket.NewBalanceUpdate(wallet))
}

func (n *Notifier) Publish(ctx context.Context, eventType, key string, payload any) {
	if n == nil {
		return
	}
	err := n.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		n.log.Error("event publish failed", zap.String("event_type", eventType), zap.String("key", key), zap.Error(err))
	}
}
