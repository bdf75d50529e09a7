package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/erazemk/zaloga/internal/docstore"
)

const jwtSecretKey = "jwt_secret"

type setting struct {
	Value string `json:"value"`
}

// GetJWTSecret retrieves the JWT secret from the store.
// If no secret exists, it generates one, stores it, and returns it.
// Creating under a fixed ID lets concurrent startups agree on one secret.
func GetJWTSecret(ctx context.Context, st docstore.Store) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := st.Create(ctx, docstore.CollectionSettings, jwtSecretKey, setting{Value: candidate})
	if err == nil {
		return candidate, nil
	}
	if !errors.Is(err, docstore.ErrExists) {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	// Someone else got there first; use theirs.
	doc, err := st.Get(ctx, docstore.CollectionSettings, jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	var s setting
	if err := doc.Decode(&s); err != nil {
		return "", err
	}
	return s.Value, nil
}
