// cmd/market/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"farmmarket/internal/catalog"
	"farmmarket/internal/clients"
	"farmmarket/internal/config"
	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/fault"
	"farmmarket/internal/ledger"
	"farmmarket/internal/metrics"
	"farmmarket/internal/payment"
	"farmmarket/internal/reservation"
	"farmmarket/internal/telemetry"
	"farmmarket/internal/urgentsale"
)

func main() {
	cfg := config.Load()
	log := telemetry.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, "farmmarket")
	if err != nil {
		log.WithError(err).Fatal("failed to initialize tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to open database")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.WithError(err).Fatal("database unreachable")
		}
		log.Info("using postgres-backed stores")
	} else {
		log.Info("no DATABASE_URL set, using in-memory stores")
	}

	var cat catalog.Service
	if cfg.CatalogURL != "" {
		cat = clients.NewCatalogClient(cfg.CatalogURL)
	} else {
		cat = catalog.NewMemoryCatalog()
	}

	// Pool status flips map to listing flips. Urgent sale pools have no
	// listing behind them, so the lookup miss is expected there.
	hook := func(ctx context.Context, poolID uuid.UUID, soldOut bool) {
		status := catalog.StatusAvailable
		if soldOut {
			status = catalog.StatusSold
		}
		if err := cat.SetStatus(ctx, poolID, status); err != nil && !errors.Is(err, fault.ErrNotFound) {
			log.WithError(err).WithField("pool", poolID).Warn("failed to flip listing status")
		}
	}

	var (
		ldg       ledger.Ledger
		journal   eventlog.Journal
		payStore  payment.Store
		resStore  reservation.Store
		saleStore urgentsale.Store
	)
	if db != nil {
		ldg = ledger.NewPostgresLedger(db, hook)
		journal = eventlog.NewPostgresJournal(db)
		payStore = payment.NewPostgresStore(db)
		resStore = reservation.NewPostgresStore(db)
		saleStore = urgentsale.NewPostgresStore(db)
	} else {
		ldg = ledger.NewMemoryLedger(hook)
		journal = eventlog.NewMemoryJournal()
		payStore = payment.NewMemoryStore()
		resStore = reservation.NewMemoryStore()
		saleStore = urgentsale.NewMemoryStore()
	}

	var sink event.Sink
	if cfg.NotifierURL != "" {
		sink = event.NewNotifierSink(cfg.NotifierURL, log)
	} else {
		sink = event.LogSink{Log: log}
	}
	dispatcher := event.NewDispatcher(sink, log)

	payments := payment.NewService(payStore, journal, dispatcher, log)
	reservations := reservation.NewService(resStore, ldg, cat, payments, journal, dispatcher, log)
	payments.RegisterCompleter(payment.OriginReservation, reservations)

	limiter := rate.NewLimiter(rate.Limit(cfg.PurchaseRate), cfg.PurchaseBurst)
	urgentSales := urgentsale.NewService(saleStore, ldg, payments, journal, dispatcher, limiter, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Mount("/reservations", reservation.NewHandler(reservations).Routes())
	r.Mount("/transactions", payment.NewHandler(payments).Routes())
	r.Mount("/urgent-sales", urgentsale.NewHandler(urgentSales).Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("marketplace engine listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
