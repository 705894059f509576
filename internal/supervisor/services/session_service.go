// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package services

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/config"
	"github.com/pvrmirror/pvrmirror/internal/eventbus"
	"github.com/pvrmirror/pvrmirror/internal/htsp"
	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/models"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

const (
	clientName    = "pvrmirror"
	clientVersion = "1.0.0"
	// htspVersion is the highest protocol version this client speaks.
	htspVersion = 34
)

// SessionService owns one backend session: dial, authenticate, run the
// sync engine, probe status. Any failure ends Serve with an error and the
// supervisor restarts it with a fresh connection and engine; the service
// paces its own redials, doubling from ReconnectBackoff up to
// ReconnectBackoffMax until a session authenticates again.
type SessionService struct {
	backend config.Backend
	syncCfg config.Sync
	store   sync.Store
	bus     *eventbus.Bus
	icons   sync.IconSink
	log     zerolog.Logger

	mu     stdsync.Mutex
	engine *sync.Engine
	delay  time.Duration

	liveConn *SessionConn
}

// NewSessionService creates the session service. bus and icons may be nil.
func NewSessionService(backend config.Backend, syncCfg config.Sync, store sync.Store, bus *eventbus.Bus, icons sync.IconSink) *SessionService {
	return &SessionService{
		backend: backend,
		syncCfg: syncCfg,
		store:   store,
		bus:     bus,
		icons:   icons,
		log:     logging.With().Str("component", "session").Logger(),
	}
}

// BindConn makes handle track this service's live connection. Each
// session binds its fresh connection on start and unbinds on exit.
func (s *SessionService) BindConn(handle *SessionConn) {
	s.liveConn = handle
}

// Engine returns the running sync engine, or nil while disconnected. The
// API uses this to issue commands; callers must tolerate nil.
func (s *SessionService) Engine() *sync.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *SessionService) setEngine(e *sync.Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

// backoffDelay returns how long this attempt should wait before dialing
// and advances the pacing: first retry waits ReconnectBackoff, each
// further one doubles up to ReconnectBackoffMax. resetBackoff clears it
// once a session authenticates.
func (s *SessionService) backoffDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.delay
	switch {
	case d == 0:
		s.delay = s.backend.ReconnectBackoff
	case 2*d < s.backend.ReconnectBackoffMax:
		s.delay = 2 * d
	default:
		s.delay = s.backend.ReconnectBackoffMax
	}
	return d
}

func (s *SessionService) resetBackoff() {
	s.mu.Lock()
	s.delay = 0
	s.mu.Unlock()
}

// Serve implements suture.Service.
func (s *SessionService) Serve(ctx context.Context) error {
	if d := s.backoffDelay(); d > 0 {
		s.log.Debug().Dur("delay", d).Msg("Waiting before reconnect")
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	stateCh := make(chan htsp.StateChange, 8)
	conn := htsp.NewConnection(htsp.Config{
		Host:           s.backend.Host,
		Port:           s.backend.Port,
		ConnectTimeout: s.backend.ConnectTimeout,
		RequestTimeout: s.backend.RequestTimeout,
	}, func(sc htsp.StateChange) {
		if s.bus != nil {
			if err := s.bus.PublishConnection(sc.State.String(), failureText(sc)); err != nil {
				s.log.Warn().Err(err).Msg("Publish connection event")
			}
		}
		select {
		case stateCh <- sc:
		default:
		}
	})

	if err := conn.Open(ctx); err != nil {
		return fmt.Errorf("open backend connection: %w", err)
	}
	defer conn.Close()

	auth := htsp.NewAuthenticator(conn, s.backend.Username, s.backend.Password, htsp.ClientInfo{
		Name:            clientName,
		Version:         clientVersion,
		ProtocolVersion: htspVersion,
	}, s.publishAuth)

	info, err := auth.Authenticate(ctx)
	if err != nil {
		if errors.Is(err, htsp.ErrBadCredentials) {
			s.log.Error().Str("username", s.backend.Username).Msg("Backend rejected credentials")
		}
		return fmt.Errorf("authenticate: %w", err)
	}
	s.resetBackoff()

	status := models.ServerStatus{
		ServerName:      info.Name,
		ServerVersion:   info.Version,
		ProtocolVersion: info.ProtocolVersion,
		Webroot:         info.Webroot,
		ConnectedAt:     time.Now().Unix(),
	}
	if err := s.store.State.SetServerStatus(&status); err != nil {
		return fmt.Errorf("persist server status: %w", err)
	}

	engine := sync.NewEngine(conn, s.store, s.bus, s.icons, sync.Config{
		EPG:            s.syncCfg.EPG,
		GuideWindow:    s.syncCfg.GuideWindow,
		GuideRetention: s.syncCfg.GuideRetention,
	})
	engine.Attach(conn.Dispatcher())
	if err := engine.Start(ctx, info); err != nil {
		return fmt.Errorf("start sync: %w", err)
	}

	s.setEngine(engine)
	defer s.setEngine(nil)

	if s.liveConn != nil {
		s.liveConn.set(conn)
		defer s.liveConn.set(nil)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	stopEngine := func() {
		engine.Stop()
		<-runErr
	}

	probe := time.NewTicker(s.syncCfg.StatusInterval)
	defer probe.Stop()

	s.log.Info().
		Str("server", info.Name).
		Str("version", info.Version).
		Int64("htsp_version", info.ProtocolVersion).
		Msg("Session established")

	for {
		select {
		case <-ctx.Done():
			stopEngine()
			return ctx.Err()
		case sc := <-stateCh:
			if sc.State == htsp.StateFailed {
				stopEngine()
				return fmt.Errorf("connection failed: %s", sc.Failure)
			}
		case <-probe.C:
			if err := engine.ProbeStatus(ctx, status); err != nil {
				s.log.Warn().Err(err).Msg("Status probe failed")
			}
		case err := <-runErr:
			return fmt.Errorf("sync loop ended: %w", err)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *SessionService) String() string {
	return "htsp-session"
}

func (s *SessionService) publishAuth(state htsp.AuthState) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishAuth(state.String()); err != nil {
		s.log.Warn().Err(err).Msg("Publish auth event")
	}
}

func failureText(sc htsp.StateChange) string {
	if sc.State != htsp.StateFailed {
		return ""
	}
	return sc.Failure.String()
}
