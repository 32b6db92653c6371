package api

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/auth"
	"github.com/erazemk/duka/internal/imaging"
	"github.com/erazemk/duka/internal/ledger"
	"github.com/erazemk/duka/internal/model"
)

// Deps are the services the API is built on.
type Deps struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
	Tokens *auth.Issuer
	Images imaging.Processor
	Log    *zap.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, Tokens: d.Tokens}
	usersHandler := &UsersHandler{DB: d.DB}
	categoriesHandler := &CategoriesHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{DB: d.DB, Ledger: d.Ledger, Images: d.Images}
	salesHandler := &SalesHandler{DB: d.DB, Ledger: d.Ledger}
	purchasesHandler := &PurchasesHandler{DB: d.DB, Ledger: d.Ledger}
	reportsHandler := &ReportsHandler{DB: d.DB}

	authMW := AuthMiddleware(d.Tokens, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /healthz", Health(d.DB))
	mux.Handle("GET /metrics", promhttp.Handler())

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

	// Categories: read (all roles), write (manager+).
	mux.Handle("GET /api/categories", authMW(http.HandlerFunc(categoriesHandler.List)))
	mux.Handle("GET /api/categories/count", authMW(http.HandlerFunc(categoriesHandler.Count)))
	mux.Handle("POST /api/categories", authMW(requireManager(http.HandlerFunc(categoriesHandler.Create))))
	mux.Handle("GET /api/categories/{id}", authMW(http.HandlerFunc(categoriesHandler.Get)))
	mux.Handle("PUT /api/categories/{id}", authMW(requireManager(http.HandlerFunc(categoriesHandler.Update))))
	mux.Handle("DELETE /api/categories/{id}", authMW(requireManager(http.HandlerFunc(categoriesHandler.Delete))))

	// Items: read (all roles), write and distribution (manager+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/counts", authMW(http.HandlerFunc(itemsHandler.Counts)))
	mux.Handle("POST /api/items", authMW(requireManager(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("POST /api/items/{id}/distribute", authMW(requireManager(http.HandlerFunc(itemsHandler.Distribute))))
	mux.Handle("GET /api/items/{id}/movements", authMW(http.HandlerFunc(itemsHandler.Movements)))
	mux.Handle("GET /api/items/{id}/audit", authMW(requireManager(http.HandlerFunc(itemsHandler.Audit))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireManager(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Sales: read and record (all roles), correct and void (manager+).
	mux.Handle("GET /api/sales", authMW(http.HandlerFunc(salesHandler.List)))
	mux.Handle("POST /api/sales", authMW(http.HandlerFunc(salesHandler.Create)))
	mux.Handle("GET /api/sales/{id}", authMW(http.HandlerFunc(salesHandler.Get)))
	mux.Handle("PUT /api/sales/{id}", authMW(requireManager(http.HandlerFunc(salesHandler.Update))))
	mux.Handle("DELETE /api/sales/{id}", authMW(requireManager(http.HandlerFunc(salesHandler.Delete))))

	// Purchases (manager+).
	mux.Handle("GET /api/purchases", authMW(requireManager(http.HandlerFunc(purchasesHandler.List))))
	mux.Handle("GET /api/purchases/count", authMW(requireManager(http.HandlerFunc(purchasesHandler.Count))))
	mux.Handle("POST /api/purchases", authMW(requireManager(http.HandlerFunc(purchasesHandler.Create))))
	mux.Handle("GET /api/purchases/{id}", authMW(requireManager(http.HandlerFunc(purchasesHandler.Get))))
	mux.Handle("PUT /api/purchases/{id}", authMW(requireManager(http.HandlerFunc(purchasesHandler.Update))))
	mux.Handle("DELETE /api/purchases/{id}", authMW(requireManager(http.HandlerFunc(purchasesHandler.Delete))))
	mux.Handle("POST /api/purchases/{id}/receive", authMW(requireManager(http.HandlerFunc(purchasesHandler.Receive))))

	// Reports (all roles).
	mux.Handle("GET /api/reports/summary", authMW(http.HandlerFunc(reportsHandler.Summary)))

	return RequestIDMiddleware(d.Log)(LoggingMiddleware(mux))
}
