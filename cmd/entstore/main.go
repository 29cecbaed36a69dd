// Command entstore serves an entity store and its hierarchical defaults over
// HTTP. Configuration is read from the environment, see config.
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

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/entstore/adapters/api"
	"github.com/codewandler/entstore/adapters/nats"
	promadapter "github.com/codewandler/entstore/adapters/prometheus"
	"github.com/codewandler/entstore/core/defaults"
	"github.com/codewandler/entstore/core/entity"
	"github.com/codewandler/entstore/core/es"
	"github.com/codewandler/entstore/core/registry"
)

const shutdownTimeout = 10 * time.Second

// eventStore is what the command needs from a backend.
type eventStore interface {
	es.EventStore
	api.Reloader
}

func main() {
	cfg, err := parseConfig(env.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exit", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newRegistry(cfg config) (*registry.Registry[map[string]any], error) {
	b := registry.NewBuilder[map[string]any]()
	for _, t := range cfg.entityTypes() {
		b.Register(func() map[string]any { return map[string]any{} }, t[0], t[1:]...)
	}
	return b.Build()
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	format, err := cfg.format()
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := promadapter.NewAllMetrics(promReg)

	var (
		store eventStore
		start func(context.Context) error
	)
	switch cfg.Backend {
	case backendNATS:
		js, err := nats.NewEventStore(nats.EventStoreConfig{
			Connect:       nats.ConnectURL(cfg.NATSURL),
			Log:           log,
			Metrics:       m.ES,
			SubjectPrefix: cfg.SubjectPrefix,
			StreamName:    cfg.StreamName,
			MaxAge:        cfg.MaxAge,
		})
		if err != nil {
			return fmt.Errorf("nats event store: %w", err)
		}
		defer js.Close()
		store, start = js, js.Start
	default:
		mem := es.NewInMemoryStore(es.WithLog(log), es.WithMetrics(m.ES))
		defer mem.Close()
		if cfg.Seed != "" {
			events, err := loadSeed(cfg.Seed)
			if err != nil {
				return err
			}
			if err := mem.Replay(events...); err != nil {
				return err
			}
		}
		store, start = mem, func(context.Context) error { mem.Start(); return nil }
	}

	defs := defaults.New(store, reg,
		defaults.WithLog(log),
		defaults.WithMetrics(m.ES),
		defaults.WithFormat(format),
	)
	defer defs.Close()

	ents := entity.New(store, reg, defs,
		entity.WithLog[map[string]any](log),
		entity.WithMetrics[map[string]any](m.ES),
		entity.WithFormat[map[string]any](format),
	)
	defer ents.Close()

	if err := start(ctx); err != nil {
		return fmt.Errorf("start event store: %w", err)
	}

	srv := api.NewServer(
		api.WithLog(log),
		api.WithMetrics(m.HTTP),
		api.WithWriteTimeout(cfg.WriteTimeout),
	)
	api.Mount[map[string]any](srv, "/entities", ents)
	api.Mount[map[string]any](srv, "/defaults", defs)
	srv.MountReload(store)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/", srv)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", slog.String("addr", cfg.Addr), slog.String("backend", cfg.Backend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-ents.Started():
			log.Info("ready", slog.Int("defaults", len(defs.Identifiers())), slog.Int("entities", len(ents.Identifiers())))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
