package handlers

import (
	"net/http"
	"strings"

	"revshare/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) KYCStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	status, err := h.svc.KYC.Status(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_load_kyc")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var doc models.KYCDocument
	if !decode(w, r, &doc) {
		return
	}
	status, err := h.svc.KYC.Submit(r.Context(), userID, doc)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_submit_kyc")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": string(status)})
}

type kycDecisionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) DecideKYC(w http.ResponseWriter, r *http.Request) {
	adminID, ok := caller(w, r)
	if !ok {
		return
	}
	var req kycDecisionRequest
	if !decode(w, r, &req) {
		return
	}
	status := models.KYCStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	userID := chi.URLParam(r, "userID")
	if err := h.svc.KYC.Decide(r.Context(), adminID, userID, status); err != nil {
		h.respondServiceError(w, r, err, "unable_to_record_decision")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": string(status)})
}
