package imaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/erazemk/zaloga/internal/docstore"
)

// SavePhoto stores photo under the item's ID, replacing any earlier one.
func SavePhoto(ctx context.Context, st docstore.Store, itemID string, photo *Photo) error {
	_, err := st.Create(ctx, docstore.CollectionImages, itemID, photo)
	if errors.Is(err, docstore.ErrExists) {
		_, err = st.Update(ctx, docstore.CollectionImages, itemID, docstore.Fields{
			"data":   photo.Data,
			"mime":   photo.MIME,
			"width":  photo.Width,
			"height": photo.Height,
		})
	}
	if err != nil {
		return fmt.Errorf("saving photo: %w", err)
	}
	return nil
}

// LoadPhoto returns the item's photo, or nil if it has none.
func LoadPhoto(ctx context.Context, st docstore.Store, itemID string) (*Photo, error) {
	doc, err := st.Get(ctx, docstore.CollectionImages, itemID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading photo: %w", err)
	}
	var p Photo
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePhoto removes the item's photo if there is one.
func DeletePhoto(ctx context.Context, st docstore.Store, itemID string) error {
	_, err := st.Delete(ctx, docstore.CollectionImages, itemID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}
