package service

import (
	"sort"
	"sync"

	"github.com/Mokona5901/ChatApp/internal/metrics"
)

// PresenceTracker maps usernames to their number of open connections.
// Counts are what make the disconnect grace window safe: each connect
// increments once and each disconnect eventually decrements once, so a
// reconnect during the window never drops a still-connected user.
type PresenceTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{counts: make(map[string]int)}
}

func (p *PresenceTracker) Increment(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[username]++
	metrics.UsersOnline.Set(float64(len(p.counts)))
}

// Decrement lowers the connection count, pruning the entry at zero.
// Decrementing an absent username is a no-op; the count never goes
// negative.
func (p *PresenceTracker) Decrement(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[username]
	if !ok {
		return
	}
	if n <= 1 {
		delete(p.counts, username)
	} else {
		p.counts[username] = n - 1
	}
	metrics.UsersOnline.Set(float64(len(p.counts)))
}

// Snapshot returns the usernames with at least one open connection,
// sorted for stable output.
func (p *PresenceTracker) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make([]string, 0, len(p.counts))
	for u := range p.counts {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Count returns the current connection count for a username.
func (p *PresenceTracker) Count(username string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[username]
}
