package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pdpl_assistant/logging"
	"pdpl_assistant/server"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API: per-stage endpoints under /api, the full pipeline at
/api/ask, chat sessions under /api/sessions, plus /healthz and /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logging.New("serve")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	agent, store, err := buildAgent(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(agent, server.Options{
		AllowOrigin:       cfg.Server.AllowOrigin,
		RateLimitRPS:      cfg.Server.RateLimitRPS,
		RateLimitBurst:    cfg.Server.RateLimitBurst,
		RequestTimeout:    cfg.QueryTimeout(),
		TrustForwardedFor: cfg.Server.TrustForwardedFor,
		SessionTTL:        cfg.Server.SessionTTL(),
		MaxSessions:       cfg.Server.MaxSessions,
		MaxHistoryTurns:   cfg.Server.MaxHistoryTurns,
		Metrics:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	if err != nil {
		return err
	}

	listen := cfg.Server.Addr
	if serveFlags.addr != "" {
		listen = serveFlags.addr
	}
	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting web server", "addr", listen, "index", cfg.IndexPath, "model", cfg.LLM.Model)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
