package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/docstore"
)

func TestRevokeAndCheckToken(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Token should not be revoked initially.
	revoked, err := IsTokenRevoked(ctx, st, "test-jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected token not to be revoked")
	}

	// Revoke the token.
	err = RevokeToken(ctx, st, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	// Now it should be revoked.
	revoked, err = IsTokenRevoked(ctx, st, "test-jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	// Different JTI should not be revoked.
	revoked, err = IsTokenRevoked(ctx, st, "test-jti-2")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected different token not to be revoked")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := RevokeToken(ctx, st, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("first RevokeToken: %v", err)
	}

	err = RevokeToken(ctx, st, "test-jti-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}
}

func TestRevokeTokenPrunesExpired(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := RevokeToken(ctx, st, "old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := RevokeToken(ctx, st, "new", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	snap, err := st.ReadOnce(ctx, docstore.CollectionTokens)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Documents) != 1 || snap.Documents[0].ID != "new" {
		t.Errorf("expected only the unexpired revocation to remain, got %d documents", len(snap.Documents))
	}
}
