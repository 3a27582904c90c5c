// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package dispatch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Spam-guard defaults. The guard throttles raw message frequency per sender,
// independent of per-command rate limiting.
const (
	// DefaultBurstCapacity is how many messages a sender can burst before
	// the guard kicks in.
	DefaultBurstCapacity = 10

	// DefaultSustainedRate is the sustained messages-per-second refill rate.
	DefaultSustainedRate = 1.0

	// MinBurstCapacity ensures burst capacity is at least 1.
	MinBurstCapacity = 1

	// MinSustainedRate ensures the refill rate is at least 0.1 tokens/second.
	MinSustainedRate = 0.1

	// DefaultCleanupInterval is how often stale senders are swept.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultSenderMaxAge is how long an idle sender's bucket is kept.
	DefaultSenderMaxAge = time.Hour
)

// SpamGuardConfig configures the guard.
type SpamGuardConfig struct {
	// BurstCapacity is the bucket size. Defaults to DefaultBurstCapacity.
	BurstCapacity int

	// SustainedRate is the refill rate in messages per second.
	// Defaults to DefaultSustainedRate.
	SustainedRate float64

	// CleanupInterval is how often background cleanup runs.
	CleanupInterval time.Duration

	// SenderMaxAge is the idle age after which a sender's state is dropped.
	SenderMaxAge time.Duration
}

// senderBucket tracks one sender's token-bucket state.
type senderBucket struct {
	tokens    float64
	lastCheck time.Time
}

// SpamGuard rate-limits inbound message frequency per sender using a token
// bucket. It is safe for concurrent use and runs a background goroutine to
// sweep idle senders; call Close to stop it.
type SpamGuard struct {
	mu            sync.Mutex
	senders       map[string]*senderBucket
	burstCapacity int
	sustainedRate float64
	senderMaxAge  time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	senderGauge prometheus.Gauge
}

// NewSpamGuard creates a guard with the given configuration.
func NewSpamGuard(cfg SpamGuardConfig) *SpamGuard {
	return newSpamGuard(cfg, nil)
}

// NewSpamGuardWithRegistry creates a guard and registers a tracked-sender
// gauge with the provided Prometheus registry.
func NewSpamGuardWithRegistry(cfg SpamGuardConfig, reg prometheus.Registerer) *SpamGuard {
	return newSpamGuard(cfg, reg)
}

func newSpamGuard(cfg SpamGuardConfig, reg prometheus.Registerer) *SpamGuard {
	burstCapacity := cfg.BurstCapacity
	if burstCapacity <= 0 {
		burstCapacity = DefaultBurstCapacity
	}
	if burstCapacity < MinBurstCapacity {
		burstCapacity = MinBurstCapacity
	}

	sustainedRate := cfg.SustainedRate
	if sustainedRate <= 0 {
		sustainedRate = DefaultSustainedRate
	}
	if sustainedRate < MinSustainedRate {
		sustainedRate = MinSustainedRate
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	senderMaxAge := cfg.SenderMaxAge
	if senderMaxAge <= 0 {
		senderMaxAge = DefaultSenderMaxAge
	}

	g := &SpamGuard{
		senders:       make(map[string]*senderBucket),
		burstCapacity: burstCapacity,
		sustainedRate: sustainedRate,
		senderMaxAge:  senderMaxAge,
		stopChan:      make(chan struct{}),
	}

	if reg != nil {
		g.senderGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hermod_spamguard_senders",
			Help: "Current number of tracked spam-guard senders",
		})
		reg.MustRegister(g.senderGauge)
	}

	g.wg.Add(1)
	go g.cleanupLoop(cleanupInterval)

	return g
}

// Allow consumes one token for the sender if available. Tokens refill at the
// sustained rate up to the burst capacity.
func (g *SpamGuard) Allow(sender string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()

	bucket, exists := g.senders[sender]
	if !exists {
		bucket = &senderBucket{
			tokens:    float64(g.burstCapacity),
			lastCheck: now,
		}
		g.senders[sender] = bucket
	}

	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * g.sustainedRate
	if bucket.tokens > float64(g.burstCapacity) {
		bucket.tokens = float64(g.burstCapacity)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true
	}
	return false
}

// SenderCount returns the number of tracked senders. Useful for testing and
// monitoring.
func (g *SpamGuard) SenderCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.senders)
}

// Cleanup removes senders idle longer than maxAge. Called automatically by
// the background goroutine.
func (g *SpamGuard) Cleanup(maxAge time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	for sender, bucket := range g.senders {
		if bucket.lastCheck.Before(threshold) {
			delete(g.senders, sender)
		}
	}

	if g.senderGauge != nil {
		g.senderGauge.Set(float64(len(g.senders)))
	}
}

func (g *SpamGuard) cleanupLoop(interval time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.Cleanup(g.senderMaxAge)
		}
	}
}

// Close stops the background cleanup goroutine and waits for it.
func (g *SpamGuard) Close() {
	close(g.stopChan)
	g.wg.Wait()
}
