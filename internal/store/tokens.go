package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/zaloga/internal/docstore"
)

type revokedToken struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokeToken adds a token's JTI to the revocation list.
func RevokeToken(ctx context.Context, st docstore.Store, jti string, expiresAt time.Time) error {
	_, err := st.Create(ctx, docstore.CollectionTokens, jti, revokedToken{ExpiresAt: expiresAt})
	if err != nil && !errors.Is(err, docstore.ErrExists) {
		return fmt.Errorf("revoking token: %w", err)
	}

	// Opportunistically clean up expired revocations.
	pruneRevokedTokens(ctx, st, time.Now())

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, st docstore.Store, jti string) (bool, error) {
	_, err := st.Get(ctx, docstore.CollectionTokens, jti)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return true, nil
}

func pruneRevokedTokens(ctx context.Context, st docstore.Store, now time.Time) {
	snap, err := st.ReadOnce(ctx, docstore.CollectionTokens)
	if err != nil {
		return
	}
	for _, doc := range snap.Documents {
		var tok revokedToken
		if doc.Decode(&tok) != nil {
			continue
		}
		if tok.ExpiresAt.Before(now) {
			_, _ = st.Delete(ctx, docstore.CollectionTokens, doc.ID)
		}
	}
}
