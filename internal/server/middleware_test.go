package server

import (
	"testing"
	"time"
)

// TestRateLimiter_Allow tests the basic per-connection cap
func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second)
	connID := "test-conn-1"

	// First 10 events should be allowed
	for i := 0; i < 10; i++ {
		if !limiter.Allow(connID) {
			t.Errorf("Event %d should be allowed", i+1)
		}
	}

	// 11th event should be denied
	if limiter.Allow(connID) {
		t.Error("11th event should be denied")
	}
}

// TestRateLimiter_WindowSlides tests that capacity returns as old
// events age out of the window
func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRateLimiter(2, 100*time.Millisecond)
	connID := "test-conn-2"

	if !limiter.Allow(connID) {
		t.Error("First event should be allowed")
	}
	if !limiter.Allow(connID) {
		t.Error("Second event should be allowed")
	}
	if limiter.Allow(connID) {
		t.Error("Third event should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(connID) {
		t.Error("Event after the window passed should be allowed")
	}
}

// TestRateLimiter_PerConnection tests that limits are independent
func TestRateLimiter_PerConnection(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		limiter.Allow("conn-1")
	}
	if limiter.Allow("conn-1") {
		t.Error("conn-1 should be rate limited")
	}

	for i := 0; i < 5; i++ {
		if !limiter.Allow("conn-2") {
			t.Errorf("conn-2 event %d should be allowed", i+1)
		}
	}
}

// TestRateLimiter_RemoveConnection tests that state is dropped on close
func TestRateLimiter_RemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	connID := "test-conn-3"

	limiter.Allow(connID)
	if limiter.Allow(connID) {
		t.Error("Second event should be denied")
	}

	limiter.RemoveConnection(connID)

	// A fresh connection reusing the id starts with a clean window
	if !limiter.Allow(connID) {
		t.Error("Event after RemoveConnection should be allowed")
	}
}

// TestActivityTracker_IdleConnections tests idle detection
func TestActivityTracker_IdleConnections(t *testing.T) {
	tracker := NewActivityTracker()

	tracker.Update("conn-1")
	time.Sleep(30 * time.Millisecond)
	tracker.Update("conn-2")

	idle := tracker.IdleConnections(20 * time.Millisecond)
	if len(idle) != 1 || idle[0] != "conn-1" {
		t.Errorf("Expected only conn-1 idle, got %v", idle)
	}

	// Fresh activity clears the idle state
	tracker.Update("conn-1")
	idle = tracker.IdleConnections(20 * time.Millisecond)
	if len(idle) != 0 {
		t.Errorf("Expected no idle connections, got %v", idle)
	}
}

// TestActivityTracker_RemoveConnection tests cleanup on close
func TestActivityTracker_RemoveConnection(t *testing.T) {
	tracker := NewActivityTracker()

	tracker.Update("conn-1")
	tracker.RemoveConnection("conn-1")

	time.Sleep(10 * time.Millisecond)
	idle := tracker.IdleConnections(time.Nanosecond)
	if len(idle) != 0 {
		t.Errorf("Removed connection should not be reported idle, got %v", idle)
	}
}
