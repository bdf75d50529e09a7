package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/checkout"
	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/sales"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

type insufficientStockResponse struct {
	Error     string `json:"error"`
	Available int    `json:"available"`
}

type partialFailureResponse struct {
	Error  string `json:"error"`
	SaleID string `json:"sale_id"`
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		insufficient *checkout.InsufficientStockError
		partial      *checkout.PartialFailureError
	)
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, checkout.ErrInvalidQuantity):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrProductNotFound):
		jsonError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, inventory.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, sales.ErrNotFound):
		jsonError(w, http.StatusNotFound, "sale not found")
	case errors.Is(err, checkout.ErrStockBusy):
		w.Header().Set("Retry-After", "1")
		jsonError(w, http.StatusConflict, checkout.ErrStockBusy.Error())
	case errors.As(err, &insufficient):
		jsonResponse(w, http.StatusConflict, insufficientStockResponse{
			Error:     insufficient.Error(),
			Available: insufficient.Available,
		})
	case errors.As(err, &partial):
		jsonResponse(w, http.StatusInternalServerError, partialFailureResponse{
			Error:  "sale recorded but stock was not updated",
			SaleID: partial.Sale.ID,
		})
	case errors.Is(err, docstore.ErrExists):
		jsonError(w, http.StatusConflict, "already exists")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
