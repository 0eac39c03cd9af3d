package server

import (
	"sync"
	"time"
)

// RateLimiter caps inbound events per connection with a sliding window.
// One chatty or abusive client must not degrade the relay for the rest
// of its room.
type RateLimiter struct {
	maxEvents int                    // events allowed per window
	window    time.Duration          // sliding window length
	events    map[string][]time.Time // connectionID → recent event times
	mu        sync.Mutex
}

func NewRateLimiter(maxEvents int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxEvents: maxEvents,
		window:    window,
		events:    make(map[string][]time.Time),
	}
}

// Allow reports whether the connection may send another event now.
// Timestamps outside the window are discarded on every call, which keeps
// per-connection memory bounded.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	recent := make([]time.Time, 0, len(r.events[connectionID]))
	for _, ts := range r.events[connectionID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= r.maxEvents {
		r.events[connectionID] = recent
		return false
	}

	r.events[connectionID] = append(recent, now)
	return true
}

// RemoveConnection drops rate-limit state when a connection closes.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, connectionID)
}

// ActivityTracker records when each connection last sent anything, so
// the idle reaper can close connections that have gone silent.
type ActivityTracker struct {
	lastSeen map[string]time.Time // connectionID → last inbound event
	mu       sync.RWMutex
}

func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{
		lastSeen: make(map[string]time.Time),
	}
}

// Update records inbound traffic for a connection. Called on every
// event.
func (t *ActivityTracker) Update(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[connectionID] = time.Now()
}

// IdleConnections returns every tracked connection silent for longer
// than timeout.
func (t *ActivityTracker) IdleConnections(timeout time.Duration) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idle := make([]string, 0)
	now := time.Now()
	for connID, seen := range t.lastSeen {
		if now.Sub(seen) > timeout {
			idle = append(idle, connID)
		}
	}
	return idle
}

// RemoveConnection drops tracking state when a connection closes.
func (t *ActivityTracker) RemoveConnection(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSeen, connectionID)
}
