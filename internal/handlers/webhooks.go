package handlers

import (
	"crypto/subtle"
	"net/http"

	"revshare/internal/payments"
)

const webhookSecretHeader = "X-Webhook-Secret"

// PaymentWebhook receives processor confirmations. Redeliveries are
// answered 200 so the processor stops retrying.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(webhookSecretHeader)
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.WebhookSecret)) != 1 {
		respondError(w, http.StatusUnauthorized, "invalid_signature")
		return
	}
	var evt payments.PaymentEvent
	if !decode(w, r, &evt) {
		return
	}
	outcome, err := h.svc.Payments.HandlePaymentEvent(r.Context(), evt)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_process_event")
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}
