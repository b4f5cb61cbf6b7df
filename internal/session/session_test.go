package session

import "testing"

func TestGateDefersUntilReady(t *testing.T) {
	g := NewGate()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		if !g.Defer(func() { order = append(order, i) }) {
			t.Fatalf("task %d ran before ready", i)
		}
	}
	if g.Pending() != 3 {
		t.Fatalf("Pending = %d", g.Pending())
	}
	if n := g.MarkReady(); n != 3 {
		t.Errorf("MarkReady ran %d tasks", n)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want FIFO", order)
	}
	if g.Defer(func() {}) {
		t.Error("ready gate should not defer")
	}
	if g.MarkReady() != 0 {
		t.Error("second MarkReady should be a no-op")
	}
}

func TestGateReset(t *testing.T) {
	g := NewReadyGate()
	if g.State() != Ready {
		t.Fatal("expected ready")
	}
	g.Reset()
	if g.State() != NotReady {
		t.Fatal("expected not ready after reset")
	}
	ran := false
	g.Defer(func() { ran = true })
	g.Reset()
	g.MarkReady()
	if ran {
		t.Error("reset should drop queued work")
	}
}

func TestGateKeepsOrderForWorkDeferredDuringDrain(t *testing.T) {
	g := NewGate()
	var order []int
	late := false
	g.Defer(func() {
		order = append(order, 1)
		late = g.Defer(func() { order = append(order, 3) })
	})
	g.Defer(func() { order = append(order, 2) })

	if n := g.MarkReady(); n != 3 {
		t.Errorf("MarkReady ran %d tasks, want 3", n)
	}
	if !late {
		t.Error("work submitted during the drain should queue")
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
	if g.State() != Ready {
		t.Error("gate should be ready after draining")
	}
}

func TestGateResetDuringDrain(t *testing.T) {
	g := NewGate()
	ran := 0
	g.Defer(func() {
		ran++
		g.Reset()
		g.Defer(func() { ran++ })
	})
	g.MarkReady()
	if ran != 1 {
		t.Errorf("ran %d tasks, want 1", ran)
	}
	if g.State() != NotReady {
		t.Error("reset during drain should leave the gate not ready")
	}
	if g.Pending() != 1 {
		t.Errorf("Pending = %d, want the task queued after reset", g.Pending())
	}
}
