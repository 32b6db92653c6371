package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/store"
)

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	DB *sql.DB
}

// Summary handles GET /api/reports/summary?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Missing bounds leave that side of the range open.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	dates, err := queryDates(r.URL.Query())
	if err != nil {
		queryError(w, r, err)
		return
	}

	summary, err := store.GetSummary(r.Context(), h.DB, dates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// Health handles GET /healthz.
func Health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger(r.Context()).Warn("health check failed", zap.Error(err))
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
