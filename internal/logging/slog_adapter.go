// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlogLogger returns an *slog.Logger that writes through the global
// zerolog pipeline. Suture's sutureslog event hook is the only consumer;
// everything else in the tree logs zerolog directly.
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{})
}

// slogBridge adapts slog records onto zerolog events. Attrs bound via
// WithAttrs are folded into a child zerolog logger up front, so Handle
// only pays for the record's own attrs. Group names become dotted key
// prefixes, which is how the rest of the codebase namespaces fields.
type slogBridge struct {
	bound  *zerolog.Logger
	prefix string
}

func (b *slogBridge) base() zerolog.Logger {
	if b.bound != nil {
		return *b.bound
	}
	return Logger()
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return mapLevel(level) >= b.base().GetLevel()
}

func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	logger := b.base()
	event := logger.WithLevel(mapLevel(record.Level))
	record.Attrs(func(attr slog.Attr) bool {
		event = appendAttr(event, b.prefix, attr)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	ctx := b.base().With()
	for _, attr := range attrs {
		ctx = ctx.Interface(b.prefix+attr.Key, attr.Value.Any())
	}
	logger := ctx.Logger()
	return &slogBridge{bound: &logger, prefix: b.prefix}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	child := *b
	child.prefix = b.prefix + name + "."
	return &child
}

// appendAttr writes one slog attr onto the event under its prefixed key.
// Groups recurse with an extended prefix.
func appendAttr(event *zerolog.Event, prefix string, attr slog.Attr) *zerolog.Event {
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, member := range v.Group() {
			event = appendAttr(event, prefix+attr.Key+".", member)
		}
		return event
	}
	key := prefix + attr.Key
	switch v.Kind() {
	case slog.KindString:
		return event.Str(key, v.String())
	case slog.KindBool:
		return event.Bool(key, v.Bool())
	case slog.KindInt64:
		return event.Int64(key, v.Int64())
	case slog.KindUint64:
		return event.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, v.Float64())
	case slog.KindDuration:
		return event.Dur(key, v.Duration())
	case slog.KindTime:
		return event.Time(key, v.Time())
	default:
		return event.Interface(key, v.Any())
	}
}

// mapLevel buckets slog's sparse level scale onto zerolog's. Levels below
// debug land on trace; anything at error and above stays error.
func mapLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
