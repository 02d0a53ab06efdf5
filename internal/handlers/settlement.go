package handlers

import (
	"net/http"

	"revshare/internal/services"
)

type settlementRequest struct {
	ChannelID    string `json:"channel_id"`
	RevenueMonth string `json:"revenue_month"`
	GrossRevenue string `json:"gross_revenue"`
}

func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req settlementRequest
	if !decode(w, r, &req) {
		return
	}
	gross, err := parseAmountMinor(req.GrossRevenue)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_gross_revenue")
		return
	}
	summary, err := h.svc.Settlement.Reconcile(r.Context(), adminID, services.SettlementRequest{
		ChannelID:    req.ChannelID,
		RevenueMonth: req.RevenueMonth,
		GrossRevenue: gross,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_run_settlement")
		return
	}
	respondJSON(w, http.StatusOK, newSettlementView(summary))
}

type retryPayoutsRequest struct {
	ChannelID    string `json:"channel_id"`
	RevenueMonth string `json:"revenue_month"`
}

func (h *Handler) RetryPayouts(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req retryPayoutsRequest
	if !decode(w, r, &req) {
		return
	}
	summary, err := h.svc.Settlement.RetryFailedPayouts(r.Context(), adminID, req.ChannelID, req.RevenueMonth)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_retry_payouts")
		return
	}
	respondJSON(w, http.StatusOK, newSettlementView(summary))
}

func (h *Handler) ListPeriodPayouts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	channelID, month := query.Get("channel_id"), query.Get("revenue_month")
	if channelID == "" || month == "" {
		respondError(w, http.StatusBadRequest, "channel_and_month_required")
		return
	}
	list, err := h.svc.Settlement.ListPayouts(r.Context(), channelID, month)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_payouts")
		return
	}
	respondJSON(w, http.StatusOK, newPayoutViews(list))
}
