package httpapi

import (
	"net/http"

	"emmo-data/internal/service"

	"go.uber.org/zap"
)

const dashboardPath = apiPrefix + "/dashboard"

// DashboardHandler 仪表盘 Handler
type DashboardHandler struct {
	dashboard *service.DashboardService
	logger    *zap.Logger
}

func NewDashboardHandler(dashboard *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// ServeHTTP GET /api/v1/dashboard[?refresh=true]
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}
	refresh := parseBool(r.URL.Query().Get("refresh"))
	summary, err := h.dashboard.Summary(r.Context(), refresh != nil && *refresh)
	if err != nil {
		writeError(w, h.logger, "DashboardSummary", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}
