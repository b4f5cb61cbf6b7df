// Package session gates message processing until the host chat is ready.
package session

import "sync"

// State is the readiness of a chat session.
type State int

const (
	NotReady State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "not_ready"
}

// Gate defers work submitted before the session is ready and runs it in
// submission order once MarkReady is called. Work submitted while the queue
// drains is queued behind it, so FIFO order holds under concurrent Defer.
type Gate struct {
	mu       sync.Mutex
	state    State
	draining bool
	epoch    int
	pending  []func()
}

// NewGate returns a gate in the NotReady state.
func NewGate() *Gate {
	return &Gate{}
}

// NewReadyGate returns a gate that runs work immediately.
func NewReadyGate() *Gate {
	return &Gate{state: Ready}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Defer queues fn when the gate is not ready and reports true. When the gate
// is ready it returns false and the caller runs the work itself.
func (g *Gate) Defer(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Ready {
		return false
	}
	g.pending = append(g.pending, fn)
	return true
}

// Pending returns the number of queued tasks.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// MarkReady drains the queue in FIFO order, then flips the gate to Ready.
// Tasks run without the gate lock held; work deferred meanwhile, from any
// goroutine, runs after the current batch. It returns the number of tasks
// run.
func (g *Gate) MarkReady() int {
	g.mu.Lock()
	if g.state == Ready || g.draining {
		g.mu.Unlock()
		return 0
	}
	g.draining = true
	epoch := g.epoch
	ran := 0
	for len(g.pending) > 0 && g.epoch == epoch {
		batch := g.pending
		g.pending = nil
		g.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		ran += len(batch)
		g.mu.Lock()
	}
	if g.epoch == epoch {
		g.state = Ready
	}
	g.draining = false
	g.mu.Unlock()
	return ran
}

// Reset returns the gate to NotReady and drops queued work. A drain in
// progress stops after its current batch and leaves the gate NotReady.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.epoch++
	g.state = NotReady
	g.pending = nil
}
