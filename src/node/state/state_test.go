package state

import (
	"sync"
	"testing"
)

func TestGoFuncLimit(t *testing.T) {
	var m Manager
	m.SetLimit(2)

	release := make(chan struct{})
	started := sync.WaitGroup{}
	started.Add(2)

	for i := 0; i < 2; i++ {
		if !m.GoFunc(func() {
			started.Done()
			<-release
		}) {
			t.Fatalf("GoFunc %d should have been accepted", i)
		}
	}

	started.Wait()

	if m.GoFunc(func() {}) {
		t.Fatalf("GoFunc should refuse work above the limit")
	}
	if m.Dropped() != 1 {
		t.Fatalf("Dropped should be 1, not %d", m.Dropped())
	}

	close(release)
	m.WaitRoutines()

	if m.Running() != 0 {
		t.Fatalf("Running should be 0, not %d", m.Running())
	}

	if !m.GoFunc(func() {}) {
		t.Fatalf("GoFunc should accept work once routines have returned")
	}
	m.WaitRoutines()
}

func TestStateString(t *testing.T) {
	var m Manager

	if m.GetState() != CatchingUp {
		t.Fatalf("zero Manager should be CatchingUp, not %s", m.GetState())
	}

	m.SetState(Shutdown)
	if m.GetState().String() != "Shutdown" {
		t.Fatalf("state should be Shutdown, not %s", m.GetState())
	}
}
