package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/app"
	"github.com/ledgerhouse/ledgerhouse/internal/httpapi"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/storage/memory"
	pgstore "github.com/ledgerhouse/ledgerhouse/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var store httpapi.Store
	var closeFn func()

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		if cfg.DevSeed {
			if accs, err := pg.SeedDev(ctx, cfg.Currency); err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", accs)
			}
		}
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		mem := memory.New()
		if cfg.DevSeed {
			accs := devAccounts(cfg.Currency)
			for _, a := range accs {
				mem.SeedAccount(a)
			}
			logDevSeed(logger, "memory", accs)
		}
		store = mem
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(store, cfg.Currency, logger).Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("accounting service listening", "addr", srv.Addr, "currency", cfg.Currency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// devAccounts builds a minimal chart for local runs against the memory store.
func devAccounts(currency string) []ledger.Account {
	now := time.Now().UTC()
	mk := func(code, name string, t ledger.AccountType, category string, system bool) ledger.Account {
		return ledger.Account{
			ID:           uuid.New(),
			Code:         code,
			Name:         name,
			Type:         t,
			Category:     category,
			NormalSide:   t.NormalSide(),
			Currency:     currency,
			System:       system,
			AllowPosting: true,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return []ledger.Account{
		mk("1000", "Cash", ledger.AccountTypeAsset, "cash", false),
		mk("3000", "Opening Balances", ledger.AccountTypeEquity, "opening_balances", true),
		mk("4000", "Sales Revenue", ledger.AccountTypeRevenue, "operating_revenue", false),
		mk("5000", "Salaries Expense", ledger.AccountTypeExpense, "payroll", false),
	}
}

func logDevSeed(l *slog.Logger, backend string, accs []ledger.Account) {
	ids := make(map[string]string, len(accs))
	for _, a := range accs {
		ids[a.Code] = a.ID.String()
	}
	l.Info("dev seed installed", "backend", backend, "accounts", ids)
}

func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg app.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
