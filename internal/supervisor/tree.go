// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig tunes suture's restart policy, applied uniformly to every
// layer. Zero values fall back to the defaults below.
type TreeConfig struct {
	// FailureThreshold: accumulated failures before the layer backs off.
	FailureThreshold float64
	// FailureDecay: seconds for an accumulated failure to halve.
	FailureDecay float64
	// FailureBackoff: pause once the threshold is crossed.
	FailureBackoff time.Duration
	// ShutdownTimeout: grace period for a service to honor ctx
	// cancellation before it is reported unstopped.
	ShutdownTimeout time.Duration
}

func (c TreeConfig) withDefaults() TreeConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// DefaultTreeConfig returns the restart policy pvrmirrord runs with.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{}.withDefaults()
}

// Tree is the daemon's supervision hierarchy: a root supervisor over
// three sibling layers. The session layer holds the backend connection
// and sync engine, the worker layer holds the icon cache, guide purge,
// and store GC loops, and the api layer holds the HTTP server. Keeping
// them siblings means a flapping backend session never takes the API or
// the workers down with it; the replica keeps serving.
type Tree struct {
	root    *suture.Supervisor
	session *suture.Supervisor
	workers *suture.Supervisor
	api     *suture.Supervisor
}

// NewTree builds the hierarchy. Supervisor events (starts, failures,
// backoff transitions) flow through logger via sutureslog.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	config = config.withDefaults()
	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	layer := func(name string) *suture.Supervisor {
		return suture.New(name, spec)
	}

	rootSpec := spec
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &Tree{
		root:    suture.New("pvrmirror", rootSpec),
		session: layer("session-layer"),
		workers: layer("worker-layer"),
		api:     layer("api-layer"),
	}
	t.root.Add(t.session)
	t.root.Add(t.workers)
	t.root.Add(t.api)
	return t
}

// AddSessionService registers svc under the session layer.
func (t *Tree) AddSessionService(svc suture.Service) suture.ServiceToken {
	return t.session.Add(svc)
}

// AddWorkerService registers svc under the worker layer.
func (t *Tree) AddWorkerService(svc suture.Service) suture.ServiceToken {
	return t.workers.Add(svc)
}

// AddAPIService registers svc under the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the whole tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in its own goroutine; the returned
// channel yields the terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport names services still running after shutdown.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
