// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/pvrmirror/pvrmirror/internal/models"
	"github.com/pvrmirror/pvrmirror/internal/repository"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

func TestPurgeServiceRunsImmediately(t *testing.T) {
	repo, err := repository.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	old := time.Now().Add(-30 * 24 * time.Hour).Unix()
	if err := repo.Programs.Put(&models.Program{ID: 1, ChannelID: 1, Start: old - 3600, Stop: old}); err != nil {
		t.Fatal(err)
	}

	svc := NewPurgeService(sync.NewPurger(repo.Programs, 0), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		left, err := repo.Programs.GetByChannel(1)
		if err == nil && len(left) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired event never purged on startup")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("purge service did not stop")
	}
}

func TestHTTPServiceServesAndShutsDown(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	})
	svc := NewHTTPService(&http.Server{Addr: addr, Handler: mux}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/ping")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("http service did not stop")
	}
}

func TestHTTPServiceReportsBindFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer lis.Close()

	svc := NewHTTPService(&http.Server{Addr: lis.Addr().String()}, time.Second)
	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected bind error for occupied port")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("bind failure not reported")
	}
}
