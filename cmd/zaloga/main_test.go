package main

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zaloga/internal/docstore/memstore"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

func TestLevelRouterSplitsByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(newLevelRouter(&out, &errOut))

	logger.Info("hello")
	logger.Warn("careful")
	logger.Error("broken")
	logger.Debug("hidden")

	if !strings.Contains(out.String(), "hello") || !strings.Contains(out.String(), "careful") {
		t.Errorf("stdout missing info/warn: %q", out.String())
	}
	if strings.Contains(out.String(), "broken") {
		t.Errorf("error leaked to stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "broken") {
		t.Errorf("stderr missing error: %q", errOut.String())
	}
	if strings.Contains(out.String()+errOut.String(), "hidden") {
		t.Error("debug should be dropped")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, _ := generatePassword(16)
	if len(a) != 16 {
		t.Errorf("expected 16 characters, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct passwords")
	}
}

func TestEnsureAdminOnlyOnce(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	defer st.Close()

	password, err := ensureAdmin(ctx, st, "Admin")
	if err != nil {
		t.Fatalf("ensureAdmin: %v", err)
	}
	if password == "" {
		t.Fatal("expected a generated password")
	}

	user, err := store.GetUserByUsername(ctx, st, "Admin")
	if err != nil || user == nil {
		t.Fatalf("admin not created: %v", err)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("expected admin role, got %s", user.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		t.Error("stored hash does not match printed password")
	}

	again, err := ensureAdmin(ctx, st, "Admin")
	if err != nil {
		t.Fatalf("second ensureAdmin: %v", err)
	}
	if again != "" {
		t.Error("expected no new admin on second run")
	}
}

func TestServeWaitsForInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		finished.Store(true)
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := &http.Server{Handler: handler}
	quit := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- serve(server, ln, quit, 5*time.Second) }()

	respErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
		respErr <- err
	}()

	<-started
	quit <- syscall.SIGTERM

	select {
	case <-done:
		t.Fatal("serve returned while a request was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !finished.Load() {
		t.Error("expected the request to finish before serve returned")
	}
	if err := <-respErr; err != nil {
		t.Errorf("in-flight request failed: %v", err)
	}
}
