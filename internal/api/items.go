package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/imaging"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/lowstock"
	"github.com/erazemk/zaloga/internal/model"
)

// ItemsHandler handles inventory item endpoints.
type ItemsHandler struct {
	Store     docstore.Store
	Inventory *inventory.Repository
	LowStock  *lowstock.Evaluator
}

// List handles GET /api/items. With ?q= it filters by name or category.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.Inventory.Search(r.URL.Query().Get("q"))
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// LowStockList handles GET /api/items/low-stock.
func (h *ItemsHandler) LowStockList(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.LowStock.Get())
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Inventory.Add(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item created", "user", claims.Username, "item", item.Name, "id", item.ID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.Inventory.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.ItemPatch
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Empty() {
		jsonError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	item, err := h.Inventory.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item updated", "user", claims.Username, "item", item.Name, "id", item.ID)
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Past sales keep their snapshot of
// the item.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Inventory.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := imaging.DeletePhoto(r.Context(), h.Store, id); err != nil {
		slog.Warn("item photo left behind", "id", id, "error", err)
	}

	claims := GetClaims(r.Context())
	slog.Info("item deleted", "user", claims.Username, "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.Inventory.Get(id); !ok {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := imaging.SavePhoto(r.Context(), h.Store, id, photo); err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	photo, err := imaging.LoadPhoto(r.Context(), h.Store, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if photo == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", photo.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(photo.Data)
}
