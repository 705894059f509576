// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

/*
assets.go - Channel Icon Cache

Icons referenced by channel notifications are fetched once and cached on disk
under a content-addressed name. Two transports: plain HTTP(S) for absolute
URLs, and the connection's file API for imagecache paths. HTTP fetches go
through a circuit breaker so a dead icon host cannot pile up timeouts, and
all fetches are rate limited to keep icon traffic from competing with the
replay.

Oversized icons are downscaled by halving until they fit the configured edge,
then resampled to the exact target and re-encoded as PNG.
*/

package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/metrics"
)

// IconConfig tunes the cache.
type IconConfig struct {
	// Dir is the on-disk cache directory.
	Dir string
	// MaxEdge is the longest allowed icon edge in pixels; larger images are
	// downscaled. Zero keeps originals.
	MaxEdge int
	// FetchInterval spaces out fetches. Default 200ms.
	FetchInterval time.Duration
	// HTTPTimeout bounds one HTTP icon download. Default 10s.
	HTTPTimeout time.Duration
}

// IconCache implements IconSink: the engine enqueues icon references as
// channels arrive, a worker fetches and converts them.
type IconCache struct {
	conn    Conn
	cfg     IconConfig
	log     zerolog.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter

	mu    stdsync.Mutex
	seen  map[string]struct{}
	queue chan string
}

// NewIconCache creates the cache; Run must be started for fetches to happen.
func NewIconCache(conn Conn, cfg IconConfig) *IconCache {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = 200 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	c := &IconCache{
		conn:    conn,
		cfg:     cfg,
		log:     logging.With().Str("component", "icons").Logger(),
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Every(cfg.FetchInterval), 3),
		seen:    make(map[string]struct{}),
		queue:   make(chan string, 1024),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "icon-http",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("Icon breaker state change")
			metrics.RecordCircuitBreakerState(name, to == gobreaker.StateOpen, to == gobreaker.StateHalfOpen)
		},
	})
	return c
}

// Enqueue registers an icon reference for fetching. Duplicates and already
// cached icons are dropped; a full queue drops the reference rather than
// blocking the sync loop.
func (c *IconCache) Enqueue(ref string) {
	if ref == "" {
		return
	}
	c.mu.Lock()
	if _, dup := c.seen[ref]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[ref] = struct{}{}
	c.mu.Unlock()

	if _, err := os.Stat(c.Path(ref)); err == nil {
		metrics.IconFetches.WithLabelValues(transportFor(ref), "cached").Inc()
		return
	}

	select {
	case c.queue <- ref:
	default:
		c.log.Warn().Str("ref", ref).Msg("Icon queue full, dropping")
		c.forget(ref)
	}
}

// Run fetches queued icons until ctx is canceled.
func (c *IconCache) Run(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create icon dir: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ref := <-c.queue:
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := c.fetchOne(ctx, ref); err != nil {
				c.log.Warn().Err(err).Str("ref", ref).Msg("Icon fetch failed")
				metrics.IconFetches.WithLabelValues(transportFor(ref), "error").Inc()
				c.forget(ref) // a later notification may retry it
			} else {
				metrics.IconFetches.WithLabelValues(transportFor(ref), "ok").Inc()
			}
		}
	}
}

// Path returns the cache file for an icon reference.
func (c *IconCache) Path(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return filepath.Join(c.cfg.Dir, hex.EncodeToString(sum[:])+".png")
}

// Remove drops one icon from the cache, used when its channel goes away.
func (c *IconCache) Remove(ref string) error {
	c.forget(ref)
	err := os.Remove(c.Path(ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove icon: %w", err)
	}
	return nil
}

func (c *IconCache) forget(ref string) {
	c.mu.Lock()
	delete(c.seen, ref)
	c.mu.Unlock()
}

func transportFor(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return "http"
	}
	return "htsp"
}

func (c *IconCache) fetchOne(ctx context.Context, ref string) error {
	var raw []byte
	var err error
	if transportFor(ref) == "http" {
		raw, err = c.breaker.Execute(func() ([]byte, error) {
			return c.fetchHTTP(ctx, ref)
		})
	} else {
		raw, err = c.conn.FetchFile(ctx, ref)
	}
	if err != nil {
		return err
	}

	converted, err := c.convert(raw)
	if err != nil {
		return err
	}
	return c.writeAtomic(c.Path(ref), converted)
}

func (c *IconCache) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build icon request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch icon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch icon: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read icon body: %w", err)
	}
	return data, nil
}

// convert decodes, downscales to the configured edge, and re-encodes PNG.
func (c *IconCache) convert(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode icon: %w", err)
	}

	if c.cfg.MaxEdge > 0 {
		img = downscale(img, c.cfg.MaxEdge)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale halves the image until it is within twice the target edge, then
// resamples to the exact target. Halving first keeps the final resample
// cheap and artifact-free on very large sources.
func downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	for w > 2*maxEdge && h > 2*maxEdge {
		w, h = w/2, h/2
		half := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(half, half.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = half
	}

	scale := float64(maxEdge) / float64(max(w, h))
	tw, th := int(float64(w)*scale), int(float64(h)*scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)
	return out
}

func (c *IconCache) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.cfg.Dir, ".icon-*")
	if err != nil {
		return fmt.Errorf("create temp icon: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write icon: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close icon: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit icon: %w", err)
	}
	return nil
}
