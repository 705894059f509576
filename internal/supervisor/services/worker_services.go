// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/repository"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

// IconService runs the icon cache fetch loop as a supervised service.
type IconService struct {
	cache *sync.IconCache
}

func NewIconService(cache *sync.IconCache) *IconService {
	return &IconService{cache: cache}
}

// Serve implements suture.Service.
func (s *IconService) Serve(ctx context.Context) error {
	return s.cache.Run(ctx)
}

func (s *IconService) String() string { return "icon-cache" }

// PurgeService removes expired guide events on a fixed interval.
type PurgeService struct {
	purger   *sync.Purger
	interval time.Duration
	log      zerolog.Logger
}

func NewPurgeService(purger *sync.Purger, interval time.Duration) *PurgeService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PurgeService{
		purger:   purger,
		interval: interval,
		log:      logging.With().Str("component", "purge-service").Logger(),
	}
}

// Serve implements suture.Service. One pass runs immediately so a long
// downtime doesn't leave stale guide data sitting for another interval.
func (s *PurgeService) Serve(ctx context.Context) error {
	if _, err := s.purger.RunOnce(); err != nil {
		s.log.Warn().Err(err).Msg("Guide purge failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.purger.RunOnce(); err != nil {
				s.log.Warn().Err(err).Msg("Guide purge failed")
			}
		}
	}
}

func (s *PurgeService) String() string { return "guide-purge" }

// GCService runs the store's value log garbage collector periodically.
type GCService struct {
	repo     *repository.Repository
	interval time.Duration
	log      zerolog.Logger
}

func NewGCService(repo *repository.Repository, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{
		repo:     repo,
		interval: interval,
		log:      logging.With().Str("component", "store-gc").Logger(),
	}
}

// Serve implements suture.Service.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.repo.RunGC(); err != nil {
				s.log.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}
}

func (s *GCService) String() string { return "store-gc" }
