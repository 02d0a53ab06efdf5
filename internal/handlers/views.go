package handlers

import (
	"time"

	"revshare/internal/models"
	"revshare/internal/money"
	"revshare/internal/services"
)

// Amounts leave the API as decimal strings in major units.

type walletView struct {
	ID             string     `json:"id,omitempty"`
	Currency       string     `json:"currency"`
	Balance        string     `json:"balance"`
	PendingBalance string     `json:"pending_balance"`
	LockedBalance  string     `json:"locked_balance"`
	TotalDeposited string     `json:"total_deposited"`
	TotalInvested  string     `json:"total_invested"`
	TotalWithdrawn string     `json:"total_withdrawn"`
	TotalEarnings  string     `json:"total_earnings"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

func newWalletView(w models.Wallet) walletView {
	return walletView{
		ID:             w.ID,
		Currency:       w.Currency,
		Balance:        money.FormatMinor(w.Balance),
		PendingBalance: money.FormatMinor(w.PendingBalance),
		LockedBalance:  money.FormatMinor(w.LockedBalance),
		TotalDeposited: money.FormatMinor(w.TotalDeposited),
		TotalInvested:  money.FormatMinor(w.TotalInvested),
		TotalWithdrawn: money.FormatMinor(w.TotalWithdrawn),
		TotalEarnings:  money.FormatMinor(w.TotalEarnings),
		LastActivityAt: w.LastActivityAt,
	}
}

type ledgerEntryView struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	EntryType     string    `json:"entry_type"`
	Debit         string    `json:"debit"`
	Credit        string    `json:"credit"`
	Balance       string    `json:"balance_after"`
	Description   string    `json:"description"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newLedgerEntryViews(entries []models.LedgerEntry) []ledgerEntryView {
	out := make([]ledgerEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryView{
			ID:            e.ID,
			Seq:           e.Seq,
			EntryType:     string(e.EntryType),
			Debit:         money.FormatMinor(e.Debit),
			Credit:        money.FormatMinor(e.Credit),
			Balance:       money.FormatMinor(e.Balance),
			Description:   e.Description,
			ReferenceType: e.ReferenceType,
			ReferenceID:   e.ReferenceID,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

type transactionView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTransactionViews(rows []models.Transaction) []transactionView {
	out := make([]transactionView, 0, len(rows))
	for _, t := range rows {
		out = append(out, transactionView{
			ID:          t.ID,
			Type:        string(t.Type),
			Status:      string(t.Status),
			Amount:      money.FormatMinor(t.Amount),
			Currency:    t.Currency,
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	return out
}

type withdrawalView struct {
	ID            string     `json:"id"`
	BankAccountID string     `json:"bank_account_id"`
	TransactionID string     `json:"transaction_id"`
	UserID        string     `json:"user_id"`
	Amount        string     `json:"amount"`
	Fee           string     `json:"fee"`
	NetAmount     string     `json:"net_amount"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func newWithdrawalView(w models.Withdrawal) withdrawalView {
	return withdrawalView{
		ID:            w.ID,
		BankAccountID: w.BankAccountID,
		TransactionID: w.TransactionID,
		UserID:        w.UserID,
		Amount:        money.FormatMinor(w.Amount),
		Fee:           money.FormatMinor(w.Fee),
		NetAmount:     money.FormatMinor(w.NetAmount),
		Status:        string(w.Status),
		FailureReason: w.FailureReason,
		RequestedAt:   w.RequestedAt,
		ProcessedAt:   w.ProcessedAt,
		CompletedAt:   w.CompletedAt,
	}
}

func newWithdrawalViews(list []models.Withdrawal) []withdrawalView {
	out := make([]withdrawalView, 0, len(list))
	for _, w := range list {
		out = append(out, newWithdrawalView(w))
	}
	return out
}

type offeringView struct {
	ID              string    `json:"id"`
	ChannelID       string    `json:"channel_id"`
	Title           string    `json:"title"`
	TotalShares     int64     `json:"total_shares"`
	AvailableShares int64     `json:"available_shares"`
	SharePercentage string    `json:"share_percentage"`
	PricePerShare   string    `json:"price_per_share"`
	MinInvestment   string    `json:"min_investment"`
	MaxInvestment   string    `json:"max_investment,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func newOfferingView(o models.Offering) offeringView {
	view := offeringView{
		ID:              o.ID,
		ChannelID:       o.ChannelID,
		Title:           o.Title,
		TotalShares:     o.TotalShares,
		AvailableShares: o.AvailableShares,
		SharePercentage: o.SharePercentage.String(),
		PricePerShare:   money.FormatMinor(o.PricePerShare),
		MinInvestment:   money.FormatMinor(o.MinInvestment),
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
	}
	if o.MaxInvestment > 0 {
		view.MaxInvestment = money.FormatMinor(o.MaxInvestment)
	}
	return view
}

type investmentView struct {
	ID            string     `json:"id"`
	OfferingID    string     `json:"offering_id"`
	TransactionID string     `json:"transaction_id"`
	Shares        int64      `json:"shares"`
	TotalAmount   string     `json:"total_amount"`
	Status        string     `json:"status"`
	FundingSource string     `json:"funding_source"`
	ClientSecret  string     `json:"client_secret,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

func newInvestmentView(inv models.Investment) investmentView {
	return investmentView{
		ID:            inv.ID,
		OfferingID:    inv.OfferingID,
		TransactionID: inv.TransactionID,
		Shares:        inv.Shares,
		TotalAmount:   money.FormatMinor(inv.TotalAmount),
		Status:        string(inv.Status),
		FundingSource: string(inv.FundingSource),
		CreatedAt:     inv.CreatedAt,
		ConfirmedAt:   inv.ConfirmedAt,
	}
}

type payoutView struct {
	ID            string     `json:"id"`
	InvestmentID  string     `json:"investment_id"`
	InvestorID    string     `json:"investor_id"`
	OfferingID    string     `json:"offering_id"`
	RevenueMonth  string     `json:"revenue_month"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

func newPayoutViews(list []models.Payout) []payoutView {
	out := make([]payoutView, 0, len(list))
	for _, p := range list {
		out = append(out, payoutView{
			ID:            p.ID,
			InvestmentID:  p.InvestmentID,
			InvestorID:    p.InvestorID,
			OfferingID:    p.OfferingID,
			RevenueMonth:  p.RevenueMonth,
			Amount:        money.FormatMinor(p.Amount),
			Status:        string(p.Status),
			FailureReason: p.FailureReason,
			PaidAt:        p.PaidAt,
		})
	}
	return out
}

type settlementView struct {
	ChannelID           string                   `json:"channel_id"`
	RevenueMonth        string                   `json:"revenue_month"`
	GrossRevenue        string                   `json:"gross_revenue,omitempty"`
	OfferingsProcessed  int                      `json:"offerings_processed"`
	PayoutsCreated      int                      `json:"payouts_created"`
	PayoutsSkipped      int                      `json:"payouts_skipped"`
	PayoutsCompleted    int                      `json:"payouts_completed"`
	Failures            []services.PayoutFailure `json:"failures"`
	TotalPaid           string                   `json:"total_paid"`
	PlatformFee         string                   `json:"platform_fee,omitempty"`
	PlatformFeeRecorded bool                     `json:"platform_fee_recorded"`
}

func newSettlementView(s services.SettlementSummary) settlementView {
	view := settlementView{
		ChannelID:           s.ChannelID,
		RevenueMonth:        s.RevenueMonth,
		OfferingsProcessed:  s.OfferingsProcessed,
		PayoutsCreated:      s.PayoutsCreated,
		PayoutsSkipped:      s.PayoutsSkipped,
		PayoutsCompleted:    s.PayoutsCompleted,
		Failures:            s.Failures,
		TotalPaid:           money.FormatMinor(s.TotalPaid),
		PlatformFeeRecorded: s.PlatformFeeRecorded,
	}
	if view.Failures == nil {
		view.Failures = []services.PayoutFailure{}
	}
	if s.GrossRevenue > 0 {
		view.GrossRevenue = money.FormatMinor(s.GrossRevenue)
		view.PlatformFee = money.FormatMinor(s.PlatformFee)
	}
	return view
}

type replayView struct {
	WalletID      string   `json:"wallet_id"`
	Consistent    bool     `json:"consistent"`
	Entries       int      `json:"entries"`
	Balance       string   `json:"replayed_balance"`
	LockedBalance string   `json:"replayed_locked_balance"`
	Problems      []string `json:"problems"`
}

func newReplayView(r services.ReplayReport) replayView {
	problems := r.Problems
	if problems == nil {
		problems = []string{}
	}
	return replayView{
		WalletID:      r.WalletID,
		Consistent:    r.Consistent(),
		Entries:       r.Entries,
		Balance:       money.FormatMinor(r.Balance),
		LockedBalance: money.FormatMinor(r.LockedBalance),
		Problems:      problems,
	}
}
