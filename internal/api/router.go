// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// RequestsPerMinute rate-limits API clients per IP. Zero disables
	// limiting. Health and metrics endpoints get ten times this budget.
	RequestsPerMinute int
}

// Router wires handlers into a chi mux.
type Router struct {
	handler *Handler
	cfg     RouterConfig
}

// NewRouter creates the router over the given handler.
func NewRouter(handler *Handler, cfg RouterConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Monitoring endpoints get a permissive limit so scrapers and
	// liveness probes never starve.
	r.Group(func(r chi.Router) {
		r.Use(rateLimit(router.cfg.RequestsPerMinute * 10))
		r.Get("/healthz", router.handler.HealthLive)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(router.cfg.RequestsPerMinute))
		r.Use(prometheusMetrics)

		r.Get("/status", router.handler.Status)
		r.Get("/profiles", router.handler.Profiles)

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", router.handler.Channels)
			r.Get("/{id}", router.handler.Channel)
			r.Get("/{id}/guide", router.handler.ChannelGuide)
			r.Post("/{id}/guide/more", router.handler.ChannelGuideMore)
			r.Get("/{id}/ticket", router.handler.ChannelTicket)
		})

		r.Get("/tags", router.handler.Tags)

		r.Route("/recordings", func(r chi.Router) {
			r.Get("/", router.handler.Recordings)
			r.Post("/", router.handler.RecordingCreate)
			r.Get("/{id}", router.handler.Recording)
			r.Put("/{id}", router.handler.RecordingUpdate)
			r.Delete("/{id}", router.handler.RecordingDelete)
			r.Post("/{id}/stop", router.handler.RecordingStop)
			r.Post("/{id}/cancel", router.handler.RecordingCancel)
			r.Get("/{id}/ticket", router.handler.RecordingTicket)
		})

		r.Route("/series-rules", func(r chi.Router) {
			r.Get("/", router.handler.SeriesRules)
			r.Post("/", router.handler.SeriesRuleCreate)
			r.Put("/{id}", router.handler.SeriesRuleUpdate)
			r.Delete("/{id}", router.handler.SeriesRuleDelete)
		})

		r.Route("/timer-rules", func(r chi.Router) {
			r.Get("/", router.handler.TimerRules)
			r.Post("/", router.handler.TimerRuleCreate)
			r.Put("/{id}", router.handler.TimerRuleUpdate)
			r.Delete("/{id}", router.handler.TimerRuleDelete)
		})

		r.Route("/guide", func(r chi.Router) {
			r.Get("/search", router.handler.GuideSearch)
			r.Get("/events/{id}", router.handler.GuideEvent)
		})
	})

	return r
}
