// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package main is the pvrmirrord entry point.
//
// pvrmirrord connects to a TVHeadend backend over HTSP, mirrors its PVR
// state (channels, tags, recordings, recurring rules, guide data) into a
// local Badger store, and serves the replica plus DVR commands over a
// local HTTP API.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layers (defaults, config.yaml, PVRMIRROR_* env)
//  2. Logging: zerolog, json or console
//  3. Store: Badger replica database
//  4. Event bus: in-process Watermill pub/sub for lifecycle events
//  5. Supervision tree: session layer (HTSP connection + sync engine),
//     worker layer (icons, guide purge, store GC), API layer (chi server)
//
// # Configuration
//
// The only required setting is the backend host:
//
//	export PVRMIRROR_BACKEND_HOST=tvheadend.local
//	export PVRMIRROR_BACKEND_USERNAME=pvr
//	export PVRMIRROR_BACKEND_PASSWORD=secret
//	./pvrmirrord
//
// See internal/config for the full set.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the supervision tree
// stops every service, in-flight HTTP requests get a bounded drain, and
// the store closes with a final value-log compaction.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pvrmirror/pvrmirror/internal/api"
	"github.com/pvrmirror/pvrmirror/internal/config"
	"github.com/pvrmirror/pvrmirror/internal/eventbus"
	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/repository"
	"github.com/pvrmirror/pvrmirror/internal/supervisor"
	"github.com/pvrmirror/pvrmirror/internal/supervisor/services"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("pvrmirrord failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("backend", fmt.Sprintf("%s:%d", cfg.Backend.Host, cfg.Backend.Port)).
		Str("store", cfg.Store.Path).
		Msg("Starting pvrmirrord")

	repo, err := repository.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logging.Error().Err(err).Msg("Store close failed")
		}
	}()

	bus := eventbus.New()
	defer bus.Close()

	store := sync.Store{
		Channels:         repo.Channels,
		Tags:             repo.Tags,
		TagChannels:      repo.TagChannels,
		Recordings:       repo.Recordings,
		SeriesRecordings: repo.SeriesRecordings,
		TimerRecordings:  repo.TimerRecordings,
		Programs:         repo.Programs,
		Profiles:         repo.Profiles,
		State:            repo.State,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	var (
		icons    sync.IconSink
		liveConn *services.SessionConn
	)
	if cfg.Icons.Enabled {
		liveConn = services.NewSessionConn()
		cache := sync.NewIconCache(liveConn, sync.IconConfig{
			Dir:           cfg.Icons.Dir,
			MaxEdge:       cfg.Icons.MaxEdge,
			FetchInterval: cfg.Icons.FetchInterval,
		})
		icons = cache
		tree.AddWorkerService(services.NewIconService(cache))
	}

	session := services.NewSessionService(cfg.Backend, cfg.Sync, store, bus, icons)
	if liveConn != nil {
		session.BindConn(liveConn)
	}
	tree.AddSessionService(session)

	purger := sync.NewPurger(repo.Programs, cfg.Sync.GuideRetention)
	tree.AddWorkerService(services.NewPurgeService(purger, cfg.Sync.PurgeInterval))
	tree.AddWorkerService(services.NewGCService(repo, cfg.Store.GCInterval))

	if cfg.Server.Enabled {
		router := api.NewRouter(api.NewHandler(repo, session), api.RouterConfig{
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
		})
		httpServer := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Setup(),
			ReadTimeout:  cfg.Server.Timeout,
			WriteTimeout: cfg.Server.Timeout,
		}
		tree.AddAPIService(services.NewHTTPService(httpServer, cfg.Server.Timeout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervision tree: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
