package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/apperrors"
	"github.com/RoscaStefanAndrei/SmartVest-Backtest-Engine/internal/validation"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON: %v", err)
		}
	}
}

// respondServiceError maps service-layer errors onto HTTP statuses: not
// found sentinels to 404, conflicts to 409, validation failures to 400,
// everything else to 500.
func respondServiceError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError

	var verr *validation.Error
	switch {
	case errors.Is(err, apperrors.ErrRunNotFound),
		errors.Is(err, apperrors.ErrTickerNotFound),
		errors.Is(err, apperrors.ErrPriceNotFound),
		errors.Is(err, apperrors.ErrFundamentalsNotFound),
		errors.Is(err, apperrors.ErrProfileNotFound),
		errors.Is(err, apperrors.ErrProviderConfigNotFound),
		errors.Is(err, apperrors.ErrSymbolNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicateRun),
		errors.Is(err, apperrors.ErrRunNotCancellable):
		status = http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrInvalidCapital),
		errors.Is(err, apperrors.ErrInvalidUUID),
		errors.Is(err, apperrors.ErrEmptySelection):
		status = http.StatusBadRequest
	}

	respondJSON(w, status, map[string]string{
		"error":  message,
		"detail": err.Error(),
	})
}
