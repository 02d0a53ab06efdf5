package services

import (
	"context"
	"database/sql"
	"errors"

	"revshare/internal/config"
	"revshare/internal/models"
	"revshare/internal/store"
)

// KYCProvider is the read side of the identity provider.
type KYCProvider interface {
	KYCStatus(ctx context.Context, userID string) (models.KYCStatus, error)
}

type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	err      *Error
}

// Err is nil for an eligible decision and a compliance error otherwise.
func (e Eligibility) Err() error {
	if e.Eligible {
		return nil
	}
	if e.err == nil {
		return ErrCompliance
	}
	return e.err
}

func eligible() Eligibility {
	return Eligibility{Eligible: true}
}

func ineligible(err *Error) Eligibility {
	return Eligibility{Reason: err.Code, err: err}
}

// ComplianceGate decides whether a money movement may start. It never
// writes.
type ComplianceGate struct {
	kyc         KYCProvider
	wallets     WalletStore
	investments InvestmentStore
	policy      config.Policy
}

func NewComplianceGate(kyc KYCProvider, wallets WalletStore, investments InvestmentStore, policy config.Policy) *ComplianceGate {
	return &ComplianceGate{kyc: kyc, wallets: wallets, investments: investments, policy: policy}
}

func (g *ComplianceGate) CheckInvestmentEligibility(ctx context.Context, userID string, amount int64) (Eligibility, error) {
	decision, err := g.checkKYC(ctx, userID)
	if err != nil || !decision.Eligible {
		return decision, err
	}
	if amount > g.policy.SingleInvestmentCap {
		return ineligible(ErrSingleInvestmentCap), nil
	}
	var invested int64
	wallet, err := g.wallets.GetByUser(ctx, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Eligibility{}, err
	default:
		invested = wallet.TotalInvested
	}
	err = g.checkCumulativeCap(ctx, nil, userID, invested, amount)
	switch {
	case errors.Is(err, ErrCumulativeCap):
		return ineligible(ErrCumulativeCap), nil
	case err != nil:
		return Eligibility{}, err
	}
	return eligible(), nil
}

// checkCumulativeCap counts confirmed and still PENDING investments against
// the cumulative limit. Inside a unit of work q is the transaction and the
// investor's wallet row must already be locked; nil reads outside one.
func (g *ComplianceGate) checkCumulativeCap(ctx context.Context, q store.Getter, userID string, invested, amount int64) error {
	pending, err := g.investments.PendingTotalByInvestor(ctx, q, userID)
	if err != nil {
		return err
	}
	if invested+pending+amount > g.policy.CumulativeInvestmentCap {
		return ErrCumulativeCap
	}
	return nil
}

func (g *ComplianceGate) CheckWithdrawalEligibility(ctx context.Context, userID string) (Eligibility, error) {
	return g.checkKYC(ctx, userID)
}

func (g *ComplianceGate) CheckBankAccountEligibility(ctx context.Context, userID string) (Eligibility, error) {
	return g.checkKYC(ctx, userID)
}

func (g *ComplianceGate) checkKYC(ctx context.Context, userID string) (Eligibility, error) {
	status, err := g.kyc.KYCStatus(ctx, userID)
	if err != nil {
		return Eligibility{}, err
	}
	if status != models.KYCVerified {
		return ineligible(ErrKYCNotVerified), nil
	}
	return eligible(), nil
}

// mustBeEligible folds an ineligible decision into an error.
func mustBeEligible(decision Eligibility, err error) error {
	if err != nil {
		return err
	}
	return decision.Err()
}
