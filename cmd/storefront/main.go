package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nikolayk812/storefront-cart/internal/api"
	"github.com/nikolayk812/storefront-cart/internal/availability"
	"github.com/nikolayk812/storefront-cart/internal/backend"
	"github.com/nikolayk812/storefront-cart/internal/cartsync"
	"github.com/nikolayk812/storefront-cart/internal/catalog"
	"github.com/nikolayk812/storefront-cart/internal/checkout"
	"github.com/nikolayk812/storefront-cart/internal/config"
	"github.com/nikolayk812/storefront-cart/internal/kvstore"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/metrics"
	"github.com/nikolayk812/storefront-cart/internal/notify"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "storefront"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "storefront stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (runErr error) {
	store, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		runErr = multierr.Append(runErr, store.Close())
	}()

	session := store.Session()
	ctx = logg.WithSession(ctx, session.Origin())
	cur := cfg.Checkout.CurrencyUnit()

	bus := notify.NewBus(logg)
	repo, err := repository.NewCart(ctx, session, bus, cur, logg)
	if err != nil {
		return err
	}
	defer repo.Close()
	overrides := repository.NewOverrides(session, bus, logg)
	syncState := repository.NewSyncState(session)
	notifies := repository.NewNotifyRequests(session)

	reconciler := availability.NewReconciler(repo, bus, logg)
	defer reconciler.Close()
	resolver := availability.NewResolver(overrides)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(registry)

	client, err := backend.NewClient(cfg.API, syncState)
	if err != nil {
		return err
	}

	if cfg.Sync.Enabled {
		agent := cartsync.NewAgent(client, repo, bus, syncState, cartsync.Options{
			Debounce: cfg.Sync.Debounce,
			Currency: cur,
			Metrics:  syncMetrics,
			Logger:   logg,
		})
		defer agent.Close()

		if err := agent.Restore(ctx); err != nil {
			logg.WarnErr(ctx, "restore server cart", err)
		}
	}

	checkoutSvc := checkout.New(repo, resolver, notifies, cfg.Checkout, client.ResolveURL)

	router := api.NewRouter(api.Deps{
		Cart:      repo,
		Checkout:  checkoutSvc,
		Overrides: overrides,
		Catalog:   catalog.New(client),
		Resolver:  resolver,
		Notifier:  bus,
		Gatherer:  registry,
		Logger:    logg,
	})

	addr := ":" + cfg.App.Port
	// request contexts derive from ctx so event streams end on shutdown
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return notify.NewBridge(session, bus, repository.WatchedKey, logg).Run(gctx)
	})

	g.Go(func() error {
		logg.Info(logg.WithFields(gctx, map[string]any{"env": cfg.App.Env, "addr": addr, "store": cfg.Store.Driver}), "starting storefront server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
