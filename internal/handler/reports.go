package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/service"
)

// ReportServicer defines the service methods needed by report handlers.
// Satisfied by *service.ReportService.
type ReportServicer interface {
	SalesSummary(ctx context.Context, shopID uuid.UUID, from, to time.Time) (*service.SalesSummary, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc ReportServicer
	loc *time.Location
	now func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Dates in query strings
// are read in the shop's time zone; an unknown zone name falls back to
// UTC+3 (Kuwait).
func NewReportsHandler(svc ReportServicer, timezone string) *ReportsHandler {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		handlerLog().Warn().Err(err).Str("timezone", timezone).Msg("unknown shop time zone, using UTC+3")
		loc = time.FixedZone("AST", 3*3600)
	}
	return &ReportsHandler{svc: svc, loc: loc, now: time.Now}
}

// RegisterRoutes registers shop-scoped report endpoints.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.Sales)
}

// Sales handles GET /shops/{sid}/reports/sales?start_date=&end_date=.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	from, to, err := h.parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sum, err := h.svc.SalesSummary(r.Context(), shopID, from, to)
	if err != nil {
		writeServiceError(w, "sales summary", err)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

// parseDateRange reads start_date and end_date (YYYY-MM-DD, inclusive) and
// returns a half-open range [start, end). The default is the last 30 days
// up to and including today.
func (h *ReportsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now := h.now().In(h.loc)

	// Default: last 30 days (midnight to midnight in local time)
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc).AddDate(0, 0, -30)
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc).AddDate(0, 0, 1) // next day midnight

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		// Make end_date exclusive by adding 1 day
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return startDate, endDate, nil
}
