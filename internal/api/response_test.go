package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/zaloga/internal/checkout"
	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/model"
)

func TestWriteErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &model.ValidationError{Field: "name", Reason: "required"}, http.StatusBadRequest},
		{"invalid quantity", checkout.ErrInvalidQuantity, http.StatusBadRequest},
		{"unknown product", checkout.ErrProductNotFound, http.StatusNotFound},
		{"insufficient", &checkout.InsufficientStockError{Requested: 5, Available: 2}, http.StatusConflict},
		{"stock busy", fmt.Errorf("%w: %w", checkout.ErrStockBusy, docstore.ErrConflict), http.StatusConflict},
		{"partial", &checkout.PartialFailureError{Sale: model.Sale{ID: "s1"}, Err: docstore.ErrClosed}, http.StatusInternalServerError},
		{"other", docstore.ErrClosed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/sales", nil)
			writeError(rec, req, tt.err)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestWriteErrorStockBusyIsRetryable(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sales", nil)
	writeError(rec, req, fmt.Errorf("%w: %w", checkout.ErrStockBusy, docstore.ErrConflict))

	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("expected Retry-After 1, got %q", got)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] != checkout.ErrStockBusy.Error() {
		t.Errorf("unexpected error message %q", body["error"])
	}
}
