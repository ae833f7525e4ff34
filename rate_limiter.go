package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiters hands out one token-bucket limiter per host, created on first use
// with the configured QPS and a burst of 1, plus a fixed politeness delay applied
// after every acquisition.
type HostLimiters struct {
	qps   float64
	delay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiters creates an empty registry. A non-positive qps disables pacing.
func NewHostLimiters(qps float64, delay time.Duration) *HostLimiters {
	return &HostLimiters{
		qps:      qps,
		delay:    delay,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Limiter returns the limiter for host, creating it if needed.
func (h *HostLimiters) Limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[host]
	if ok {
		return limiter
	}
	limit := rate.Inf
	if h.qps > 0 {
		limit = rate.Limit(h.qps)
	}
	limiter = rate.NewLimiter(limit, 1)
	h.limiters[host] = limiter
	return limiter
}

// Wait blocks until host has a free slot and then sleeps the fixed delay.
func (h *HostLimiters) Wait(ctx context.Context, host string) error {
	if err := h.Limiter(host).Wait(ctx); err != nil {
		return err
	}
	if h.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(h.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports how many hosts have a limiter.
func (h *HostLimiters) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.limiters)
}
