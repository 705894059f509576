// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package eventbus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/logging"
)

// loggerAdapter routes watermill's internal logging through zerolog.
type loggerAdapter struct {
	log zerolog.Logger
}

func newLoggerAdapter() watermill.LoggerAdapter {
	return &loggerAdapter{
		log: logging.With().Str("component", "eventbus").Logger(),
	}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(a.log.Error().Err(err), fields).Msg(msg)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	// Watermill's info chatter is debug-grade for this process.
	a.event(a.log.Debug(), fields).Msg(msg)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(a.log.Debug(), fields).Msg(msg)
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(a.log.Trace(), fields).Msg(msg)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	log := a.log
	for k, v := range fields {
		log = log.With().Interface(k, v).Logger()
	}
	return &loggerAdapter{log: log}
}

func (a *loggerAdapter) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
