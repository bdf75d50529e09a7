package api

import (
	"net/http"

	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/sales"
)

// HealthHandler reports whether both live views are still subscribed.
type HealthHandler struct {
	Inventory *inventory.Repository
	Sales     *sales.Repository
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"inventory": "ok", "sales": "ok"}
	code := http.StatusOK
	if err := h.Inventory.Err(); err != nil {
		status["inventory"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := h.Sales.Err(); err != nil {
		status["sales"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	jsonResponse(w, code, status)
}
