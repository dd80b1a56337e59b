// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/seven/internal/config"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/offline"
	"github.com/jeranaias/seven/internal/server"
)

// shutdownTimeout bounds in-flight requests after a signal.
const shutdownTimeout = 15 * time.Second

func serveCmd(a *app) *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the router over HTTP:

  POST /v1/route              route one prompt
  POST /v1/chat/completions   OpenAI-compatible facade (non-streaming)
  GET  /v1/profiles           energy profiles
  GET  /health                backend status
  GET  /stats                 request and energy counters
  GET  /metrics               Prometheus metrics

The config file is watched; routing settings are reloaded on save.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				if port < 1 || port > 65535 {
					return &UsageError{Message: fmt.Sprintf("--port must be between 1 and 65535, got %d", port)}
				}
				a.cfg.Server.Port = port
			}
			return a.runServe(cmd, host)
		},
	}
	cmd.Flags().IntVar(&port, "port", server.DefaultPort, "listen port")
	cmd.Flags().StringVar(&host, "host", server.DefaultHost, "listen address")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, host string) error {
	log := logging.Component("serve")
	cfg := a.cfg

	st, err := buildStack(cfg)
	if err != nil {
		return &CommandError{Command: "serve", Reason: "wiring router", Err: err}
	}
	defaults := routeOptions(cfg)
	srvCfg := server.Config{
		Host:      host,
		Port:      cfg.Server.Port,
		Router:    st.router,
		Local:     st.local,
		Cloud:     st.cloud,
		Defaults:  &defaults,
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
	}

	ledger, err := openLedger(cfg)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("energy ledger unavailable, continuing without it")
	case ledger != nil:
		defer ledger.Close()
		srvCfg.Ledger = ledger
	}

	srv := server.NewServer(srvCfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.watchConfig(ctx, srv)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "%s listening on http://%s %s\n",
		TitleStyle.Render("SEVEN"), srv.Addr(), DimStyle.Render("(Ctrl+C to stop)"))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return &CommandError{Command: "serve", Reason: "listening on " + srv.Addr(), Err: err}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return &CommandError{Command: "serve", Reason: "shutting down", Err: err}
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("server stopped"))
	return nil
}

// watchConfig rebuilds the router whenever the config file changes. A file
// that fails to load keeps the running router. Listen address, rate limits
// and the ledger only change on restart.
func (a *app) watchConfig(ctx context.Context, srv *server.Server) {
	log := logging.Component("serve")

	path, err := a.resolvedConfigPath()
	if err != nil || !exists(path) {
		log.Debug().Str("path", path).Msg("no config file to watch")
		return
	}

	err = config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("config reload failed, keeping current settings")
			return
		}
		if a.offline {
			cfg.Routing.OfflineMode = true
		}
		st, err := buildStack(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("config reload produced an unusable router")
			return
		}
		offline.SetOfflineMode(cfg.Routing.OfflineMode)
		srv.SetDefaults(routeOptions(cfg))
		srv.SetRouter(st.router)
		log.Info().Str("path", path).Msg("config reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("config hot reload disabled")
	}
}
