// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// RateLimitConfig tunes the per-session token bucket.
type RateLimitConfig struct {
	// Burst is the bucket capacity: commands allowed back to back.
	Burst float64
	// PerSecond is the refill rate.
	PerSecond float64
	// IdleAfter is how long an idle session's bucket survives before
	// the sweeper drops it.
	IdleAfter time.Duration
	// SweepEvery is the sweeper interval.
	SweepEvery time.Duration
}

// DefaultRateLimitConfig returns production defaults: short bursts,
// sustained two commands per second.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Burst:      5,
		PerSecond:  2,
		IdleAfter:  10 * time.Minute,
		SweepEvery: time.Minute,
	}
}

func (c *RateLimitConfig) normalize() {
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.PerSecond <= 0 {
		c.PerSecond = 1
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = 10 * time.Minute
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter enforces a token bucket per session. Safe for
// concurrent use. Close stops the background sweeper.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[ulid.ULID]*tokenBucket
	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
	gauge   prometheus.Gauge // optional, tracks live buckets
}

// NewRateLimiter creates a limiter and starts its sweeper.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg.normalize()
	l := &RateLimiter{
		cfg:     cfg,
		buckets: make(map[ulid.ULID]*tokenBucket),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// SetGauge attaches a gauge tracking the number of live buckets.
func (l *RateLimiter) SetGauge(g prometheus.Gauge) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gauge = g
	if g != nil {
		g.Set(float64(len(l.buckets)))
	}
}

// Allow consumes one token for the session. When the bucket is empty
// it returns false and the cooldown in milliseconds until the next
// token.
func (l *RateLimiter) Allow(sessionID ulid.ULID) (bool, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[sessionID]
	if !ok {
		b = &tokenBucket{tokens: l.cfg.Burst}
		l.buckets[sessionID] = b
		if l.gauge != nil {
			l.gauge.Set(float64(len(l.buckets)))
		}
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens = math.Min(l.cfg.Burst, b.tokens+elapsed*l.cfg.PerSecond)
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	deficit := 1 - b.tokens
	cooldown := time.Duration(deficit / l.cfg.PerSecond * float64(time.Second))
	return false, cooldown.Milliseconds()
}

// Forget drops the session's bucket, freeing its state on disconnect.
func (l *RateLimiter) Forget(sessionID ulid.ULID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, sessionID)
	if l.gauge != nil {
		l.gauge.Set(float64(len(l.buckets)))
	}
}

// Close stops the sweeper and waits for it to exit.
func (l *RateLimiter) Close() {
	close(l.stop)
	<-l.done
}

func (l *RateLimiter) sweep() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-l.cfg.IdleAfter)
			for id, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, id)
				}
			}
			if l.gauge != nil {
				l.gauge.Set(float64(len(l.buckets)))
			}
			l.mu.Unlock()
		}
	}
}
