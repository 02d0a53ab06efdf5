package handlers

import (
	"net/http"
	"strings"

	"revshare/internal/models"
	"revshare/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = string(models.OfferingActive)
	case "ALL":
		status = ""
	case string(models.OfferingDraft), string(models.OfferingActive), string(models.OfferingClosed):
	default:
		respondError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	list, err := h.svc.Offerings.List(r.Context(), status)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_offerings")
		return
	}
	out := make([]offeringView, 0, len(list))
	for _, o := range list {
		out = append(out, newOfferingView(o))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOffering(w http.ResponseWriter, r *http.Request) {
	offering, err := h.svc.Offerings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_offering")
		return
	}
	respondJSON(w, http.StatusOK, newOfferingView(offering))
}

type offeringRequest struct {
	ChannelID       string `json:"channel_id"`
	Title           string `json:"title"`
	TotalShares     int64  `json:"total_shares"`
	SharePercentage string `json:"share_percentage"`
	PricePerShare   string `json:"price_per_share"`
	MinInvestment   string `json:"min_investment"`
	MaxInvestment   string `json:"max_investment"`
}

func (req offeringRequest) input() (services.OfferingInput, string) {
	in := services.OfferingInput{
		ChannelID:   req.ChannelID,
		Title:       req.Title,
		TotalShares: req.TotalShares,
	}
	var err error
	if in.SharePercentage, err = parsePercentage(req.SharePercentage); err != nil {
		return in, "invalid_share_percentage"
	}
	if in.PricePerShare, err = parseAmountMinor(req.PricePerShare); err != nil {
		return in, "invalid_price_per_share"
	}
	if in.MinInvestment, err = parseOptionalMinor(req.MinInvestment); err != nil {
		return in, "invalid_min_investment"
	}
	if in.MaxInvestment, err = parseOptionalMinor(req.MaxInvestment); err != nil {
		return in, "invalid_max_investment"
	}
	return in, ""
}

func (h *Handler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req offeringRequest
	if !decode(w, r, &req) {
		return
	}
	in, code := req.input()
	if code != "" {
		respondError(w, http.StatusBadRequest, code)
		return
	}
	offering, err := h.svc.Offerings.Create(r.Context(), adminID, in)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_create_offering")
		return
	}
	respondJSON(w, http.StatusCreated, newOfferingView(offering))
}

type offeringStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetOfferingStatus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req offeringStatusRequest
	if !decode(w, r, &req) {
		return
	}
	status := models.OfferingStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	switch status {
	case models.OfferingDraft, models.OfferingActive, models.OfferingClosed:
	default:
		respondError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	offering, err := h.svc.Offerings.SetStatus(r.Context(), adminID, chi.URLParam(r, "id"), status)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_update_offering")
		return
	}
	respondJSON(w, http.StatusOK, newOfferingView(offering))
}
