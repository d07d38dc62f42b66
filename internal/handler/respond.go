package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/logger"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/optik-pos/api/internal/service"
	"github.com/rs/zerolog"
)

// handlerLog is resolved per call so it follows logger.Setup.
func handlerLog() *zerolog.Logger {
	l := logger.WithComponent("handler")
	return &l
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		handlerLog().Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeServiceError maps a service error onto a status code. Unknown
// errors are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, order.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case order.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		handlerLog().Error().Err(err).Str("op", op).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a caller input problem that
// should result in 400 Bad Request.
func isValidationError(err error) bool {
	return order.IsValidation(err) ||
		errors.Is(err, service.ErrInvalidView) ||
		errors.Is(err, service.ErrInvalidRange) ||
		errors.Is(err, money.ErrInvalid) ||
		errors.Is(err, money.ErrPrecision)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid request body"
		if errors.Is(err, money.ErrInvalid) || errors.Is(err, money.ErrPrecision) {
			msg = err.Error()
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return false
	}
	return true
}

func shopIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return uuid.Nil, false
	}
	return shopID, true
}

// parsePagination reads limit (default 20, at most 100) and offset. The
// offset is clamped to what an int32 query parameter can carry.
func parsePagination(r *http.Request) (limit, offset int32) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = int32(min(v, 100))
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		// ParseInt saturates on overflow, which the clamp absorbs.
		v, err := strconv.ParseInt(s, 10, 64)
		if (err == nil || errors.Is(err, strconv.ErrRange)) && v >= 0 {
			offset = int32(min(v, math.MaxInt32))
		}
	}
	return limit, offset
}
