package autofix

import "sync"

// Guard enforces at most one orchestrator run per project. The project
// root is the identity key; acquisition is rejected, never queued.
type Guard struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewGuard() *Guard {
	return &Guard{active: make(map[string]bool)}
}

// TryAcquire claims the project, returning false if a run is active.
func (g *Guard) TryAcquire(projectRoot string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[projectRoot] {
		return false
	}
	g.active[projectRoot] = true
	return true
}

// Release frees the project for the next run.
func (g *Guard) Release(projectRoot string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, projectRoot)
}
