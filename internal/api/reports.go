package api

import (
	"net/http"
	"time"

	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/report"
	"github.com/erazemk/zaloga/internal/sales"
)

// ReportsHandler serves aggregates computed from the live inventory and
// sales views.
type ReportsHandler struct {
	Inventory *inventory.Repository
	Sales     *sales.Repository
	Now       func() time.Time
}

// Dashboard handles GET /api/reports/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, report.BuildDashboard(h.Inventory.List(), h.Sales.List(), h.Now()))
}

// Sales handles GET /api/reports/sales?range=7days|30days|90days.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	rng, err := report.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, report.BuildSalesReport(h.Inventory.List(), h.Sales.List(), rng, h.Now()))
}
