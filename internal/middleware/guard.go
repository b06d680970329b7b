package middleware

import (
	"sync"
	"time"

	"iot-sentinel/internal/config"

	"github.com/sirupsen/logrus"
)

// Guard owns the process-wide traffic state: sliding-window request
// counters per (client, endpoint), suspicion counters, and the block
// list. All decisions are made in memory under one mutex; persistence of
// the resulting security events happens in the caller, outside the lock.
type Guard struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	suspicion map[string]int
	blocked   map[string]time.Time

	limits    config.RateLimitsConfig
	blockTTL  time.Duration
	threshold int
	logger    *logrus.Logger
	now       func() time.Time
}

func NewGuard(limits config.RateLimitsConfig, suspicion config.SuspicionConfig, logger *logrus.Logger) *Guard {
	return &Guard{
		windows:   make(map[string][]time.Time),
		suspicion: make(map[string]int),
		blocked:   make(map[string]time.Time),
		limits:    limits,
		blockTTL:  time.Duration(suspicion.BlockTTLMinutes) * time.Minute,
		threshold: suspicion.BlockThreshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Verdict is the in-memory decision for one request.
type Verdict int

const (
	VerdictAllowed Verdict = iota
	VerdictRateLimited
	VerdictBlocked
)

// Decision carries the verdict plus whether this request tipped the
// client into the block list, so the caller can escalate accordingly.
type Decision struct {
	Verdict      Verdict
	NewlyBlocked bool
}

// Check runs the pre-request sequence: block list first, then the
// sliding-window rate limit. A blocked client never touches the
// counters.
func (g *Guard) Check(client, endpoint string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if g.isBlockedLocked(client, now) {
		return Decision{Verdict: VerdictBlocked}
	}

	limit := g.limitFor(endpoint)
	key := client + ":" + endpoint
	cutoff := now.Add(-limit.Window())

	// Prune lazily so the counter never holds stale history.
	window := g.windows[key]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	g.windows[key] = kept

	if len(kept) >= limit.Limit {
		g.suspicion[client]++
		if g.suspicion[client] >= g.threshold {
			g.blocked[client] = now
			return Decision{Verdict: VerdictRateLimited, NewlyBlocked: true}
		}
		return Decision{Verdict: VerdictRateLimited}
	}

	g.windows[key] = append(kept, now)
	return Decision{Verdict: VerdictAllowed}
}

// IsBlocked reports block list membership without touching counters.
func (g *Guard) IsBlocked(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBlockedLocked(client, g.now())
}

func (g *Guard) isBlockedLocked(client string, now time.Time) bool {
	blockedAt, ok := g.blocked[client]
	if !ok {
		return false
	}
	if g.blockTTL > 0 && now.Sub(blockedAt) > g.blockTTL {
		delete(g.blocked, client)
		return false
	}
	return true
}

// Block adds the client to the block list. Returns false when the client
// was already blocked.
func (g *Guard) Block(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.blocked[client]; ok {
		return false
	}
	g.blocked[client] = g.now()
	return true
}

// Unblock removes a client from the block list (operator action).
func (g *Guard) Unblock(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.blocked[client]; !ok {
		return false
	}
	delete(g.blocked, client)
	return true
}

// RaiseSuspicion increments a suspicion counter and returns the new
// count. Keys follow the client:kind convention (client:failed_login,
// client:404s).
func (g *Guard) RaiseSuspicion(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.suspicion[key]++
	return g.suspicion[key]
}

// BlockedClients returns a snapshot of the block list.
func (g *Guard) BlockedClients() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	clients := make([]string, 0, len(g.blocked))
	for client := range g.blocked {
		clients = append(clients, client)
	}
	return clients
}

// Sweep performs periodic maintenance: rate windows older than an hour
// are dropped, suspicion counters decay by one (never below zero), and
// expired blocks are lifted. Runs under the same lock as the request
// path.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-time.Hour)

	for key, window := range g.windows {
		kept := window[:0]
		for _, ts := range window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(g.windows, key)
		} else {
			g.windows[key] = kept
		}
	}

	for key, count := range g.suspicion {
		if count <= 1 {
			delete(g.suspicion, key)
		} else {
			g.suspicion[key] = count - 1
		}
	}

	if g.blockTTL > 0 {
		for client, blockedAt := range g.blocked {
			if now.Sub(blockedAt) > g.blockTTL {
				delete(g.blocked, client)
				g.logger.Infof("Block expired for %s", client)
			}
		}
	}
}

// RunSweeper decays state on the given interval until the channel closes.
func (g *Guard) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-stop:
			return
		}
	}
}

func (g *Guard) limitFor(endpoint string) config.EndpointLimit {
	if limit, ok := g.limits.Endpoints[endpoint]; ok {
		return limit
	}
	return g.limits.Default
}
