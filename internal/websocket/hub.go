package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"revshare/internal/models"
	"revshare/internal/money"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BalanceUpdate is pushed to every open socket of the wallet owner after a
// committed balance change. Amounts are formatted major units.
type BalanceUpdate struct {
	WalletID       string `json:"wallet_id"`
	Balance        string `json:"balance"`
	LockedBalance  string `json:"locked_balance"`
	PendingBalance string `json:"pending_balance"`
	Currency       string `json:"currency"`
}

func NewBalanceUpdate(wallet models.Wallet) BalanceUpdate {
	return BalanceUpdate{
		WalletID:       wallet.ID,
		Balance:        money.FormatMinor(wallet.Balance),
		LockedBalance:  money.FormatMinor(wallet.LockedBalance),
		PendingBalance: money.FormatMinor(wallet.PendingBalance),
		Currency:       wallet.Currency,
	}
}

// Hub tracks the open balance sockets of each user.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub accepts upgrades from the listed origins; "*" accepts any. A
// request without an Origin header is not from a browser and is accepted.
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[strings.ToLower(origin)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

// Unregister is safe to call more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[client.userID]
	if set == nil {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// BroadcastBalance never blocks; a client with a full buffer misses the
// update and catches up on the next one.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.log.Error("balance update encode failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			h.log.Debug("balance update dropped", zap.String("user_id", userID))
		}
	}
}
