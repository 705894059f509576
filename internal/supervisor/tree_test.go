// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// countingService records Serve calls and blocks until canceled.
type countingService struct {
	name   string
	serves atomic.Int64
	fail   atomic.Bool
}

func (c *countingService) Serve(ctx context.Context) error {
	c.serves.Add(1)
	if c.fail.Load() {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *countingService) String() string { return c.name }

func testTree(t *testing.T) *Tree {
	t.Helper()
	return NewTree(slog.New(slog.DiscardHandler), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
}

func waitServes(t *testing.T, svc *countingService, want int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for svc.serves.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("%s served %d times, want >= %d", svc.name, svc.serves.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTreeStartsAllLayers(t *testing.T) {
	tree := testTree(t)

	session := &countingService{name: "session"}
	worker := &countingService{name: "worker"}
	api := &countingService{name: "api"}
	tree.AddSessionService(session)
	tree.AddWorkerService(worker)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitServes(t, session, 1)
	waitServes(t, worker, 1)
	waitServes(t, api, 1)

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	tree := testTree(t)

	flaky := &countingService{name: "flaky"}
	flaky.fail.Store(true)
	stable := &countingService{name: "stable"}
	tree.AddSessionService(flaky)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	// The failing service gets restarted; the API layer is untouched.
	waitServes(t, stable, 1)
	waitServes(t, flaky, 3)
	if got := stable.serves.Load(); got != 1 {
		t.Errorf("stable service served %d times, want 1", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}
