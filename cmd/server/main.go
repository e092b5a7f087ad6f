// Command server runs the kernel's background pollers: the execution
// sweep that drives pending agents through an Executor, and the workflow
// sweep that resumes graphs left running by a crashed process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	kernel "github.com/agentmesh/kernel"
	"github.com/agentmesh/kernel/internal/config"
	"github.com/agentmesh/kernel/internal/executor"
	"github.com/agentmesh/kernel/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	exec := executor.NewOpenAIExecutor(cfg.Executor.APIKey, cfg.Executor.Model, cfg.Executor.MaxTokens, float32(cfg.Executor.Temperature))

	k, err := kernel.New(cfg, exec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build kernel: %v\n", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	k.RegisterObserver(observability.NewMetrics(registry))

	hub := observability.NewHub(k.Logger())
	k.RegisterObserver(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := k.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start kernel: %v\n", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := k.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "database: %s", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/ws/events", hub.ServeWS)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		}
	case <-shutdown:
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}

	if err := k.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "kernel shutdown error: %v\n", err)
	}
}
