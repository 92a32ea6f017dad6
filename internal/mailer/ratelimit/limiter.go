package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// UnknownIdentity is used when no caller address can be derived.
const UnknownIdentity = "unknown"

// evictThreshold is the store size past which expired entries are purged
// during the next lookup.
const evictThreshold = 1000

// Result is the admission decision for one request.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count       int
	windowStart time.Time
}

// Limiter is a fixed-window per-identity request counter. A window opens on
// the first request from an identity and lasts the configured duration; up to
// max requests are admitted per window.
//
// The counter store is process-local. A deployment with multiple concurrent
// instances needs an external store for correct global limiting; this limiter
// only bounds each process.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	max     int
	window  time.Duration
}

// New creates a limiter admitting max requests per window per identity.
func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		max:     max,
		window:  window,
	}
}

// Allow decides whether a request from identity at time now is admitted.
func (l *Limiter) Allow(identity string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > evictThreshold {
		l.evictLocked(now)
	}

	e, ok := l.entries[identity]
	if !ok || now.Sub(e.windowStart) >= l.window {
		l.entries[identity] = &entry{count: 1, windowStart: now}
		return Result{Allowed: true, Remaining: l.max - 1, ResetAt: now.Add(l.window)}
	}

	resetAt := e.windowStart.Add(l.window)
	if e.count >= l.max {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}
	e.count++
	return Result{Allowed: true, Remaining: l.max - e.count, ResetAt: resetAt}
}

// Size reports the number of tracked identities.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) evictLocked(now time.Time) {
	for id, e := range l.entries {
		if now.Sub(e.windowStart) >= l.window {
			delete(l.entries, id)
		}
	}
}

// ClientIdentity derives the caller identity from trust-ordered forwarded
// headers, falling back to the socket address and finally a sentinel.
func ClientIdentity(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		// First hop in the chain is the original client.
		if first := strings.TrimSpace(strings.SplitN(v, ",", 2)[0]); first != "" {
			return first
		}
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return UnknownIdentity
}
