package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ulauncher/extapi/internal/api"
	"github.com/ulauncher/extapi/internal/config"
	"github.com/ulauncher/extapi/pkg/auth"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/observability"
	"github.com/ulauncher/extapi/pkg/sync"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// pinger is implemented by caches that can report their health.
type pinger interface {
	Ping(ctx context.Context) error
}

func (c *CLI) serveCommand() *cobra.Command {
	var withSync, noCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extension directory API",
		Long: `Run the HTTP API.

With --sync the extension sync worker runs in the same process, so a single
deployment keeps stars and supported versions current.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), withSync, noCache)
		},
	}

	cmd.Flags().BoolVar(&withSync, "sync", false, "also run the sync worker")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the GitHub response cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, withSync, noCache bool) error {
	cfg := c.config()
	if err := cfg.Validate(config.NeedDatabase | config.NeedImages | config.NeedAuth); err != nil {
		return err
	}
	logger := c.Logger

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())
	if err := store.CheckVersion(ctx, logger); err != nil {
		return err
	}

	ghCache, err := c.newCache(ctx, noCache)
	if err != nil {
		return err
	}
	defer ghCache.Close()
	gh := c.newGitHub(ghCache)

	imgs, err := c.newImages(ctx)
	if err != nil {
		return err
	}

	verifier, err := auth.NewOIDCVerifier(ctx, auth.IssuerURL(cfg.Auth.Domain), cfg.Auth.ClientID)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	observability.SetHTTPHooks(metrics)
	observability.SetCacheHooks(metrics)
	observability.SetSyncHooks(metrics)

	health := map[string]api.HealthCheck{
		"mongo":  store.Ping,
		"images": imgs.Ping,
	}
	if p, ok := ghCache.(pinger); ok {
		health["cache"] = p.Ping
	}

	handler := api.NewServer(api.Deps{
		Store:     store,
		Resolver:  extension.NewResolver(gh, logger),
		Releases:  gh,
		Images:    imgs,
		Verifier:  verifier,
		Logger:    logger,
		Health:    health,
		Commit:    cfg.Commit,
		BuildDate: cfg.BuildDate,
	}, api.WithCORS(cfg.Server.CORSOrigins...), api.WithMetrics(metrics))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if withSync {
		syncer := sync.New(store, gh.Fresh(), c.syncOptions())
		go func() {
			if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
