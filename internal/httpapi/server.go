// Package httpapi wires the HTTP surface of the accounting service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerhouse/ledgerhouse/internal/service/chart"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
	"github.com/ledgerhouse/ledgerhouse/internal/service/linker"
	"github.com/ledgerhouse/ledgerhouse/internal/service/reports"
)

// Server wires handlers and middleware using Chi.
// Services are constructed over a single store implementation.
type Server struct {
	chartSvc   chart.Service
	journalSvc journal.Service
	linkerSvc  linker.Service
	reportsSvc reports.Service
	store      Store
	log        *slog.Logger
	rt         *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger backs request/response logging and panic recovery.
func New(store Store, currency string, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	chartSvc := chart.New(store, store)
	s := &Server{
		chartSvc:   chartSvc,
		journalSvc: journal.New(store, store),
		linkerSvc:  linker.New(store, store, chartSvc, currency),
		reportsSvc: reports.New(store),
		store:      store,
		log:        logger,
		rt:         r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public endpoints and attaches per-route middleware.
func (s *Server) routes() {
	// Accounts
	s.rt.With(s.validatePostAccount()).Post("/v1/accounts", s.postAccount)
	s.rt.Get("/v1/accounts", s.listAccounts)
	s.rt.Get("/v1/accounts/{id}", s.getAccount)
	s.rt.Patch("/v1/accounts/{id}", s.updateAccount)
	s.rt.Delete("/v1/accounts/{id}", s.deleteAccount)
	s.rt.Post("/v1/accounts/deduplicate", s.deduplicateAccounts)
	s.rt.Get("/v1/categories", s.listCategories)

	// Vouchers
	s.rt.With(s.validatePostVoucher()).Post("/v1/vouchers", s.postVoucher)
	s.rt.Post("/v1/vouchers/validate", s.validateVoucher)
	s.rt.Get("/v1/vouchers", s.listVouchers)
	s.rt.Get("/v1/vouchers/{id}", s.getVoucher)
	s.rt.Post("/v1/vouchers/{id}/post", s.postVoucherToLedger)
	s.rt.Post("/v1/vouchers/{id}/reverse", s.reverseVoucher)
	s.rt.Post("/v1/vouchers/{id}/cancel", s.cancelVoucher)

	// Customers and suppliers
	s.rt.Post("/v1/customers", s.postCustomer)
	s.rt.Get("/v1/customers", s.listCustomers)
	s.rt.Get("/v1/customers/{id}", s.getParty)
	s.rt.Patch("/v1/customers/{id}", s.renameParty)
	s.rt.Delete("/v1/customers/{id}", s.deleteParty)
	s.rt.Post("/v1/suppliers", s.postSupplier)
	s.rt.Get("/v1/suppliers", s.listSuppliers)
	s.rt.Get("/v1/suppliers/{id}", s.getParty)
	s.rt.Patch("/v1/suppliers/{id}", s.renameParty)
	s.rt.Delete("/v1/suppliers/{id}", s.deleteParty)
	s.rt.Post("/v1/reconcile/accounts", s.reconcileAccounts)

	// Reports
	s.rt.Get("/v1/reports/general-ledger", s.generalLedger)
	s.rt.Get("/v1/reports/general-ledger/summary", s.generalLedgerSummary)
	s.rt.Get("/v1/reports/trial-balance", s.trialBalance)
	s.rt.Get("/v1/reports/income-statement", s.incomeStatement)
	s.rt.Get("/v1/reports/balance-sheet", s.balanceSheet)
	s.rt.Get("/v1/reports/equation", s.accountingEquation)
	s.rt.Get("/v1/reports/integrity", s.integrityReport)

	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
