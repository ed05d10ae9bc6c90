package deploy

import "sync"

// Guard enforces at most one in-flight orchestration per service
// identity. Different identities proceed concurrently; a second deploy
// or rollback for the same identity is rejected while one is running.
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

// TryAcquire attempts to claim the identity key. It never blocks:
// false means another orchestration for the same identity is running
// and the caller should reject the request.
func (g *Guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, inFlight := g.held[key]; inFlight {
		return false
	}
	g.held[key] = struct{}{}
	return true
}

// Release frees the identity key after an orchestration completes,
// successfully or not. Safe to call for a key that is not held.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.held, key)
}
