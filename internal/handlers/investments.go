package handlers

import (
	"net/http"
	"strings"

	"revshare/internal/models"
	"revshare/internal/services"

	"github.com/go-chi/chi/v5"
)

type investmentRequest struct {
	OfferingID string `json:"offering_id"`
	Shares     int64  `json:"shares"`
	Funding    string `json:"funding"`
}

// CreateInvestment buys shares. WALLET funding settles at once; EXTERNAL
// funding returns a client secret and waits for the processor.
func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req investmentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.OfferingID == "" || req.Shares <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_investment")
		return
	}
	in := services.InvestmentRequest{InvestorID: userID, OfferingID: req.OfferingID, Shares: req.Shares}
	switch models.FundingSource(strings.ToUpper(req.Funding)) {
	case models.FundingWallet, "":
		inv, err := h.svc.Investments.CreateFromWallet(r.Context(), in)
		if err != nil {
			h.respondServiceError(w, r, err, "unable_to_create_investment")
			return
		}
		respondJSON(w, http.StatusCreated, newInvestmentView(inv))
	case models.FundingExternal:
		result, err := h.svc.Investments.Create(r.Context(), in)
		if err != nil {
			h.respondServiceError(w, r, err, "unable_to_create_investment")
			return
		}
		view := newInvestmentView(result.Investment)
		view.ClientSecret = result.ClientSecret
		respondJSON(w, http.StatusAccepted, view)
	default:
		respondError(w, http.StatusBadRequest, "invalid_funding_source")
	}
}

func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Investments.ListForInvestor(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_investments")
		return
	}
	out := make([]investmentView, 0, len(list))
	for _, inv := range list {
		out = append(out, newInvestmentView(inv))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Investments.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_investment")
		return
	}
	respondJSON(w, http.StatusOK, newInvestmentView(inv))
}

func (h *Handler) CancelInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Investments.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_cancel_investment")
		return
	}
	respondJSON(w, http.StatusOK, newInvestmentView(inv))
}

// InvestmentEligibility answers whether the caller may invest amount now.
// An ineligible caller still gets 200 with the reason.
func (h *Handler) InvestmentEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	amount, err := parseAmountMinor(r.URL.Query().Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	decision, err := h.svc.Compliance.CheckInvestmentEligibility(r.Context(), userID, amount)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_check_eligibility")
		return
	}
	respondJSON(w, http.StatusOK, decision)
}

func (h *Handler) ListMyPayouts(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Settlement.ListForInvestor(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_payouts")
		return
	}
	respondJSON(w, http.StatusOK, newPayoutViews(list))
}
