package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/checkout"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/report"
	"github.com/erazemk/zaloga/internal/sales"
)

// SalesHandler handles sale endpoints. New sales go through the checkout
// service so stock and sales stay consistent.
type SalesHandler struct {
	Sales    *sales.Repository
	Checkout *checkout.Service
}

type createSaleRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// List handles GET /api/sales. With ?q= it filters by product name.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.Sales.Search(r.URL.Query().Get("q"))
	if list == nil {
		list = []model.Sale{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// Get handles GET /api/sales/{id}.
func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.Sales.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "sale not found")
		return
	}
	jsonResponse(w, http.StatusOK, sale)
}

// Create handles POST /api/sales.
func (h *SalesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		jsonError(w, http.StatusBadRequest, "product_id required")
		return
	}

	res, err := h.Checkout.RecordSale(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("sale recorded",
		"user", claims.Username,
		"sale", res.Transaction.ID,
		"product", res.Transaction.ProductName,
		"quantity", res.Transaction.Quantity,
		"total", res.Transaction.TotalAmount.StringFixed(2),
	)
	jsonResponse(w, http.StatusCreated, res)
}

// Receipt handles GET /api/sales/{id}/receipt.
func (h *SalesHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	sale, ok := h.Sales.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "sale not found")
		return
	}
	jsonResponse(w, http.StatusOK, report.BuildReceipt(sale))
}
