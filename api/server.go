/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for operations consoles

ROUTE GROUPS:
  /api/transactions/*   Transaction lifecycle
  /api/accounts/*       Balance and history inquiries
  /api/gl-setup/*       Chart-of-accounts queries
  /api/admin/*          EOD, BOD, reports, clock control

SEE ALSO:
  - handlers.go: the handler implementations
  - dto.go: wire types
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the chi router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS for operations consoles
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Transaction lifecycle
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/entry", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Post("/{id}/post", h.PostTransaction)
			r.Post("/{id}/verify", h.VerifyTransaction)
			r.Post("/{id}/reverse", h.ReverseTransaction)
		})

		// Account inquiries
		r.Route("/accounts/{accountNo}", func(r chi.Router) {
			r.Get("/balance", h.GetAccountBalance)
			r.Get("/history", h.GetAccountHistory)
		})

		// Chart of accounts
		r.Route("/gl-setup", func(r chi.Router) {
			r.Get("/layer/{layerId}", h.ListGLsByLayer)
			r.Get("/interest/payable-receivable/layer4", h.ListInterestRecvPayGLs)
			r.Get("/interest/income-expenditure/layer4", h.ListInterestIncomeExpGLs)
		})

		// Admin operations
		r.Route("/admin", func(r chi.Router) {
			r.Post("/run-eod", h.RunEOD)
			r.Post("/run-bod", h.RunBOD)
			r.Get("/bod/status", h.GetBODStatus)
			r.Post("/set-system-date", h.SetSystemDate)

			r.Route("/eod", func(r chi.Router) {
				r.Get("/status", h.GetEODStatus)
				r.Get("/logs", h.ListEODLogs)
				r.Post("/validate", h.ValidateEOD)
				r.Post("/batch/{job}", h.RunBatchJob)
				r.Post("/batch-job-7/execute", h.GenerateReports)
				r.Get("/batch-job-7/download/{kind}/{date}", h.DownloadReport)
			})
		})
	})

	return r
}
