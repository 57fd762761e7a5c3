// Package progressfeed consumes the packaging progress feed.
//
// The feed is read as a server-sent event stream when the server offers one
// and polled otherwise. Values above zero report progress; a negative value
// after progress has started signals completion. A negative value before that
// means the packager is idle.
package progressfeed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"csheet/internal/logging"
)

// DefaultInterval is the polling interval.
const DefaultInterval = 100 * time.Millisecond

// ErrStreamEnded is returned when the stream closed before completion and
// polling is disabled.
var ErrStreamEnded = errors.New("progress stream ended before completion")

// Watcher reads one progress feed.
type Watcher struct {
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(w *Watcher) {
		if client != nil {
			w.client = client
		}
	}
}

// WithInterval overrides the polling interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New constructs a Watcher.
func New(opts ...Option) *Watcher {
	w := &Watcher{client: http.DefaultClient, interval: DefaultInterval}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.NewComponentLogger(w.logger, "progressfeed")
	return w
}

// Watch reports every value to fn until completion or ctx is done.
func Watch(ctx context.Context, url string, fn func(float64)) error {
	return New().Watch(ctx, url, fn)
}

type tracker struct {
	fn      func(float64)
	started bool
}

// observe reports v and returns true once the feed completed.
func (t *tracker) observe(v float64) bool {
	if t.fn != nil {
		t.fn(v)
	}
	if v > 0 {
		t.started = true
		return false
	}
	return v < 0 && t.started
}

// Watch reports every value to fn until completion or ctx is done.
func (w *Watcher) Watch(ctx context.Context, url string, fn func(float64)) error {
	state := &tracker{fn: fn}
	done, streamed, err := w.stream(ctx, url, state)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if streamed {
		w.logger.Debug("progress stream closed early; polling", logging.String("url", url))
	}
	return w.poll(ctx, url, state)
}

func (w *Watcher) stream(ctx context.Context, url string, state *tracker) (done bool, streamed bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, false, fmt.Errorf("build progress request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, false, ctx.Err()
		}
		return false, false, fmt.Errorf("open progress feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, false, fmt.Errorf("open progress feed: unexpected status %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		v, err := readValue(resp.Body)
		if err != nil {
			return false, false, err
		}
		return state.observe(v), false, nil
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "data:")), 64)
		if err != nil {
			w.logger.Debug("ignoring malformed progress event", logging.String("line", line))
			continue
		}
		if state.observe(v) {
			return true, true, nil
		}
	}
	if ctx.Err() != nil {
		return false, true, ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		w.logger.Debug("progress stream read failed", logging.Error(err))
	}
	return false, true, nil
}

func (w *Watcher) poll(ctx context.Context, url string, state *tracker) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		v, err := w.fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if state.observe(v) {
			return nil
		}
	}
}

func (w *Watcher) fetch(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build progress request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("poll progress: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("poll progress: unexpected status %d", resp.StatusCode)
	}
	return readValue(resp.Body)
}

func readValue(r io.Reader) (float64, error) {
	body, err := io.ReadAll(io.LimitReader(r, 64))
	if err != nil {
		return 0, fmt.Errorf("read progress: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse progress %q: %w", strings.TrimSpace(string(body)), err)
	}
	return v, nil
}
