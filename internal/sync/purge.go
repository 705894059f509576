// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package sync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/metrics"
)

// DefaultGuideRetention is how long finished guide events are kept.
const DefaultGuideRetention = 7 * 24 * time.Hour

// Purger removes guide events whose end time fell out of the retention
// window. It runs independently of the engine; the stores are safe for
// concurrent use.
type Purger struct {
	programs  ProgramStore
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewPurger creates a purger; retention <= 0 uses the default.
func NewPurger(programs ProgramStore, retention time.Duration) *Purger {
	if retention <= 0 {
		retention = DefaultGuideRetention
	}
	return &Purger{
		programs:  programs,
		retention: retention,
		log:       logging.With().Str("component", "purge").Logger(),
		now:       time.Now,
	}
}

// RunOnce removes everything past retention and returns the removed count.
func (p *Purger) RunOnce() (int, error) {
	cutoff := p.now().Add(-p.retention).Unix()
	removed, err := p.programs.RemoveOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		metrics.ProgramsPurged.Add(float64(removed))
		p.log.Info().Int("removed", removed).Int64("cutoff", cutoff).Msg("Purged expired guide events")
	}
	return removed, nil
}
