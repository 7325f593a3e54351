// Package readiness probes dependent services until they answer, so the
// server can start in any order relative to its backends.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Endpoint is a named health URL to probe.
type Endpoint struct {
	Name string
	URL  string
}

// Prober polls endpoints with a fixed backoff between attempts.
type Prober struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// New creates a Prober. Non-positive attempts defaults to 30 and a
// non-positive backoff to two seconds.
func New(attempts int, backoff time.Duration) *Prober {
	if attempts <= 0 {
		attempts = 30
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Prober{
		client:   &http.Client{Timeout: 5 * time.Second},
		attempts: attempts,
		backoff:  backoff,
	}
}

// Wait polls ep until it answers with a 2xx status, the attempt budget is
// exhausted, or ctx is cancelled.
func (p *Prober) Wait(ctx context.Context, ep Endpoint) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := p.probe(ctx, ep); err == nil {
			slog.Info("service ready", "service", ep.Name, "attempts", attempt)
			return nil
		} else {
			lastErr = err
		}

		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff):
			}
		}
	}
	return fmt.Errorf("service %s not ready after %d attempts: %w", ep.Name, p.attempts, lastErr)
}

// WaitAll probes all endpoints concurrently and returns the first failure.
func (p *Prober) WaitAll(ctx context.Context, endpoints []Endpoint) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		g.Go(func() error {
			return p.Wait(ctx, ep)
		})
	}
	return g.Wait()
}

func (p *Prober) probe(ctx context.Context, ep Endpoint) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
