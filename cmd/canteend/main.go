package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/canteen-reservation/internal/canteen"
	"github.com/example/canteen-reservation/internal/config"
	httptransport "github.com/example/canteen-reservation/internal/http"
	"github.com/example/canteen-reservation/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	handler := buildHandler(pool, cfg, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("canteen API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// buildHandler wires repositories, services, and transport on top of an
// opened and migrated connection pool.
func buildHandler(pool *sqlite.ConnectionPool, cfg config.Config, logger *slog.Logger) http.Handler {
	idGenerator := func() string { return uuid.NewString() }
	now := time.Now

	reservationRepo := sqlite.NewReservationRepository(pool)
	confirmationRepo := sqlite.NewConfirmationRepository(pool)
	badgeTokenRepo := sqlite.NewBadgeTokenRepository(pool)
	directoryRepo := sqlite.NewDirectoryRepository(pool)
	menuRepo := sqlite.NewMenuRepository(pool)

	reservationService := canteen.NewReservationServiceWithLogger(reservationRepo, directoryRepo, menuRepo, idGenerator, now, logger)
	confirmationService := canteen.NewConfirmationServiceWithLogger(confirmationRepo, reservationRepo, badgeTokenRepo, directoryRepo, []byte(cfg.BadgeSigningSecret), idGenerator, now, logger)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Reservations:  httptransport.NewReservationHandler(reservationService, logger),
		Confirmations: httptransport.NewConfirmationHandler(confirmationService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})
}
