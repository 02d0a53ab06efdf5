package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"revshare/internal/middleware"
	"revshare/internal/services"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

func statusForKind(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindInsufficientFunds:
		return http.StatusBadRequest
	case services.KindCompliance:
		return http.StatusForbidden
	case services.KindStateConflict, services.KindDuplicate:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondServiceError maps a service error onto its HTTP status. Errors
// outside the service taxonomy are logged and hidden behind fallback.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		h.log.Error(fallback,
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback)
		return
	}
	code := svcErr.Code
	if code == "" {
		code = string(svcErr.Kind)
	}
	respondJSON(w, statusForKind(svcErr.Kind), map[string]string{
		"error":   code,
		"message": svcErr.Message,
	})
}

// caller returns the authenticated user id or answers 401.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return false
	}
	return true
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// paging reads limit and page query parameters.
func paging(r *http.Request) (int, int) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}
