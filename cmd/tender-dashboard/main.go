package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/config"
	"tender_dashboard/internal/dashboard"
	httpserver "tender_dashboard/internal/http-server"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/query"
	"tender_dashboard/internal/storage/memory"
	"tender_dashboard/internal/storage/postgres"
	"tender_dashboard/internal/storage/redis"

	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("tender-dashboard", pflag.ExitOnError)
	flags.String("addr", "", "address to listen on")
	flags.String("api-url", "", "base URL of the tender API")
	flags.Duration("timeout", 0, "timeout of one API request")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.Int("page-size", 0, "tenders per page")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := sl.New(os.Stdout, cfg.LogLevel)

	var storage dashboard.Storage
	if cfg.PostgresConn != "" {
		st, err := postgres.New(cfg.PostgresConn)
		if err != nil {
			log.Error("failed to connect to postgresql", sl.Err(err))
			os.Exit(1)
		}
		defer st.Close()
		storage = st
	} else {
		log.Info("POSTGRES_CONN is empty, sessions and remarks are kept in memory")
		storage = memory.New()
	}

	var cache query.Cache
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := redis.New(ctx, cfg.RedisAddr, cfg.CacheTTL)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, tender pages are not cached", sl.Err(err))
		} else {
			defer c.Close()
			cache = c
		}
	}

	dashboards := dashboard.NewRegistry(log, storage, cache, dashboard.Options{
		Client:      client.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout, Debug: cfg.LogLevel == "debug"},
		Defaults:    cfg.DefaultQuery(),
		Location:    cfg.Location(),
		IdleTTL:     cfg.SessionIdleTTL,
		MaxSessions: cfg.MaxSessions,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go dashboards.Run(sweepCtx)

	router := httpserver.NewRouter(log, dashboards, httpserver.Config{Cookie: cfg.SessionCookie})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start the server", sl.Err(err))
			done <- syscall.SIGTERM
		}
	}()

	log.Info("starting server", slog.String("addr", cfg.HTTPAddr), slog.String("api", cfg.APIBaseURL))
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("failed to stop the server", sl.Err(err))
		return
	}
	log.Info("server stopped")
}
