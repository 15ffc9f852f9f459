package flood

import (
	"sync"
	"time"
)

// MemoryGuard is an in-process Guard for single-instance deployments
// and tests. Events older than their window are pruned on access and
// by a periodic cleanup goroutine.
type MemoryGuard struct {
	mu     sync.Mutex
	events map[string][]event
}

type event struct {
	at      time.Time
	expires time.Time
}

func NewMemoryGuard() *MemoryGuard {
	guard := &MemoryGuard{
		events: make(map[string][]event),
	}

	go guard.cleanup()

	return guard
}

func (g *MemoryGuard) IsAllowed(name string, threshold int, window time.Duration, identifier string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-window)

	count := 0
	for _, e := range g.events[key(name, identifier)] {
		if e.at.After(cutoff) {
			count++
		}
	}

	return count < threshold, nil
}

func (g *MemoryGuard) Register(name string, window time.Duration, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	k := key(name, identifier)

	kept := g.events[k][:0]
	for _, e := range g.events[k] {
		if e.expires.After(now) {
			kept = append(kept, e)
		}
	}

	g.events[k] = append(kept, event{at: now, expires: now.Add(window)})

	return nil
}

func (g *MemoryGuard) Clear(name, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.events, key(name, identifier))

	return nil
}

func (g *MemoryGuard) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		g.mu.Lock()
		now := time.Now()

		for k, events := range g.events {
			kept := events[:0]
			for _, e := range events {
				if e.expires.After(now) {
					kept = append(kept, e)
				}
			}

			if len(kept) == 0 {
				delete(g.events, k)
			} else {
				g.events[k] = kept
			}
		}

		g.mu.Unlock()
	}
}

func key(name, identifier string) string {
	return name + ":" + identifier
}
