package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"researchdesk/internal/app"
	"researchdesk/internal/config"
	"researchdesk/internal/server"
	"researchdesk/internal/util"
	"researchdesk/pkg/domain"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	providerTimeout, err := config.ParseProviderTimeout(cfg.ProviderTimeout)
	if err != nil {
		logger.Error("failed to parse provider timeout", "err", err)
		os.Exit(1)
	}

	appCore, err := app.New(app.Config{
		DataDir:         cfg.DataDir,
		SidecarURL:      cfg.SidecarURL,
		ProviderTimeout: providerTimeout,
	})
	if err != nil {
		logger.Error("failed to init app", "err", err)
		os.Exit(1)
	}
	defer appCore.Close()

	if appCore.Status().Storage == domain.StorageMemory {
		slog.Warn("durable storage unavailable; data will not survive restarts")
	}

	// One startup probe; proxy-relayed providers stay disabled until a later
	// explicit status check finds the sidecar.
	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	st := appCore.CheckSidecar(probeCtx)
	cancel()
	slog.Info("sidecar probe", "reachable", st.Reachable)

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		SearchRateLimitPerMinute: cfg.SearchRateLimitPerMinute,
	})
	if err != nil {
		logger.Error("failed to init server", "err", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
