package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// Purpose tells the processor what the collected money is for.
type Purpose string

const (
	PurposeDeposit    Purpose = "DEPOSIT"
	PurposeInvestment Purpose = "INVESTMENT"
)

type PaymentIntentRequest struct {
	Amount        int64
	Currency      string
	UserID        string
	Purpose       Purpose
	TransactionID string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// PaymentEvent is the asynchronous confirmation delivered by the processor.
type PaymentEvent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Succeeded       bool   `json:"succeeded"`
	Amount          int64  `json:"amount"`
}

type Processor interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
}

type Disbursement struct {
	PayoutID    string
	Amount      int64
	Currency    string
	InvestorID  string
	Destination string
}

// Disburser pays out settled revenue. An error means the payout failed and
// may be retried.
type Disburser interface {
	Disburse(ctx context.Context, d Disbursement) error
}

var ErrInvalidIntent = errors.New("invalid payment intent request")

// SandboxProcessor issues intents without moving money. Confirmations are
// delivered to the webhook by the caller.
type SandboxProcessor struct{}

func (SandboxProcessor) CreatePaymentIntent(_ context.Context, req PaymentIntentRequest) (PaymentIntent, error) {
	if req.Amount <= 0 || req.UserID == "" {
		return PaymentIntent{}, ErrInvalidIntent
	}
	id := "pi_" + uuid.NewString()
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return PaymentIntent{}, err
	}
	return PaymentIntent{ID: id, ClientSecret: id + "_secret_" + hex.EncodeToString(secret)}, nil
}
