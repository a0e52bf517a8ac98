// Command ledgercore runs the transactional ledger core behind a thin HTTP
// perimeter.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerforge/corebank/internal/adapters/database/pgsql"
	ledgerhttp "github.com/ledgerforge/corebank/internal/adapters/http"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/core/services"
	"github.com/ledgerforge/corebank/internal/platform/config"
	"github.com/ledgerforge/corebank/internal/platform/database"
	"github.com/ledgerforge/corebank/internal/platform/logging"
)

func main() {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pgsql.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("failed to run database migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.NewPgxPool(connectCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.ClosePgxPool(pool)

	accountRepo := pgsql.NewAccountRepository(pool)
	journalRepo := pgsql.NewJournalRepository(pool)
	uow := pgsql.NewUnitOfWork(pool)

	sysRouter := services.NewSystemAccountRouter(accountRepo, accountRepo, uow)
	ledger := services.NewLedgerEngine(accountRepo, accountRepo, journalRepo, uow, sysRouter, services.Config{
		AmountPolicy: domain.AmountPolicy{
			MaxUnits: cfg.AmountMaxUnits,
			Scale:    cfg.AmountScale,
		},
		BalanceNonNegativePolicy: cfg.BalanceNonNegativePolicy,
		ConcurrencyMaxRetries:    cfg.ConcurrencyMaxRetries,
		ConcurrencyBaseBackoff:   cfg.ConcurrencyBaseBackoff,
	})
	accountService := services.NewAccountService(accountRepo, accountRepo, uow)

	router := ledgerhttp.NewRouter(ledgerhttp.Deps{
		Accounts:  accountService,
		Ledger:    ledger,
		JWTSecret: cfg.JWTSecret,
	}, logger)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	sweepCtx, stopSweep := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer stopSweep()
	go runPeriodicSweep(sweepCtx, ledger, cfg.SweepStalenessThreshold)

	go func() {
		logger.Info("ledgercore listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// runPeriodicSweep settles deliberately-deferred PENDING transactions on a
// fixed cadence, independent of the admin-triggered /sweep endpoint.
func runPeriodicSweep(ctx context.Context, ledger ports.LedgerEngine, staleness time.Duration) {
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(staleness)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := ledger.SweepPending(ctx, staleness)
			if err != nil {
				logger.Error("periodic sweep failed", slog.String("error", err.Error()))
				continue
			}
			if result.Processed > 0 || result.Failed > 0 {
				logger.Info("periodic sweep completed", slog.Int("processed", result.Processed), slog.Int("failed", result.Failed))
			}
		}
	}
}
