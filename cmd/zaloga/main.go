package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/zaloga/internal/api"
	"github.com/erazemk/zaloga/internal/checkout"
	"github.com/erazemk/zaloga/internal/config"
	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/lowstock"
	"github.com/erazemk/zaloga/internal/metrics"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/sales"
	"github.com/erazemk/zaloga/internal/seed"
	"github.com/erazemk/zaloga/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprint(os.Stdout, config.Usage())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprint(os.Stderr, config.Usage())
		os.Exit(1)
	}

	// Set up structured logging: INFO/WARN → stdout, ERROR → stderr.
	// Optionally also write to a log file.
	closeLog, err := setupLogger(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()

	// First run: create the admin account and print its password once.
	password, err := ensureAdmin(ctx, st, cfg.Admin.User)
	if err != nil {
		return err
	}
	if password != "" {
		printAdminCreated(cfg.Admin.User, password)
	}

	// Load JWT secret from the store (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, st)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	inv := inventory.New(st)
	if err := inv.Start(ctx); err != nil {
		return fmt.Errorf("starting inventory view: %w", err)
	}
	defer inv.Close()

	sl := sales.New(st)
	if err := sl.Start(ctx); err != nil {
		return fmt.Errorf("starting sales view: %w", err)
	}
	defer sl.Close()

	if cfg.Seed {
		if err := seed.IfEmpty(ctx, st, inv, sl); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
	}

	publisher, err := openPublisher(cfg)
	if err != nil {
		return fmt.Errorf("opening event publisher: %w", err)
	}
	defer publisher.Close()

	m := metrics.New()
	low := lowstock.New(inv)
	m.TrackInventory(func() int { return len(inv.List()) }, low.Count)

	svc := checkout.New(inv, sl, checkout.WithPublisher(publisher), checkout.WithMetrics(m))

	router := api.NewRouter(api.Deps{
		Store:     st,
		Inventory: inv,
		Sales:     sl,
		Checkout:  svc,
		Metrics:   m,
		JWTSecret: jwtSecret,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	slog.Info("server started", "addr", cfg.Addr, "backend", cfg.Store.Backend)
	if err := serve(server, ln, quit, cfg.ShutdownTimeout); err != nil {
		return err
	}

	slog.Info("server stopped, closing store")
	return nil
}

// serve runs server on ln until a signal arrives on quit, then shuts it down
// and returns only after in-flight requests have drained or timeout passed.
func serve(server *http.Server, ln net.Listener, quit <-chan os.Signal, timeout time.Duration) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		sig, ok := <-quit
		if !ok {
			return
		}
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	<-drained
	return nil
}

// ensureAdmin creates an admin called username when the store has no live
// users. It returns the generated password, or "" if nothing was created.
func ensureAdmin(ctx context.Context, st docstore.Store, username string) (string, error) {
	users, err := store.ListUsers(ctx, st)
	if err != nil {
		return "", err
	}
	if len(users) > 0 {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, st, username, string(hash), model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printAdminCreated prints the first-run admin credentials to stdout.
func printAdminCreated(username, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
