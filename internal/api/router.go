package api

import (
	"net/http"
	"time"

	"github.com/erazemk/zaloga/internal/checkout"
	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/lowstock"
	"github.com/erazemk/zaloga/internal/metrics"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/sales"
)

// Deps are the services the router dispatches to. Metrics may be nil.
type Deps struct {
	Store     docstore.Store
	Inventory *inventory.Repository
	Sales     *sales.Repository
	Checkout  *checkout.Service
	Metrics   *metrics.Metrics
	JWTSecret string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Store: d.Store, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{Store: d.Store}
	itemsHandler := &ItemsHandler{
		Store:     d.Store,
		Inventory: d.Inventory,
		LowStock:  lowstock.New(d.Inventory),
	}
	salesHandler := &SalesHandler{Sales: d.Sales, Checkout: d.Checkout}
	reportsHandler := &ReportsHandler{Inventory: d.Inventory, Sales: d.Sales, Now: time.Now}
	healthHandler := &HealthHandler{Inventory: d.Inventory, Sales: d.Sales}

	authMW := AuthMiddleware(d.JWTSecret, d.Store)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /healthz", healthHandler.Check)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (admin).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/low-stock", authMW(http.HandlerFunc(itemsHandler.LowStockList)))
	mux.Handle("POST /api/items", authMW(requireAdmin(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireAdmin(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireAdmin(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireAdmin(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Sales (all roles).
	mux.Handle("GET /api/sales", authMW(http.HandlerFunc(salesHandler.List)))
	mux.Handle("POST /api/sales", authMW(http.HandlerFunc(salesHandler.Create)))
	mux.Handle("GET /api/sales/{id}", authMW(http.HandlerFunc(salesHandler.Get)))
	mux.Handle("GET /api/sales/{id}/receipt", authMW(http.HandlerFunc(salesHandler.Receipt)))

	// Reports: dashboard (all), sales report (admin).
	mux.Handle("GET /api/reports/dashboard", authMW(http.HandlerFunc(reportsHandler.Dashboard)))
	mux.Handle("GET /api/reports/sales", authMW(requireAdmin(http.HandlerFunc(reportsHandler.Sales))))

	return LoggingMiddleware(d.Metrics)(mux)
}
