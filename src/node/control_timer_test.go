package node

import (
	"testing"
	"time"
)

func TestControlTimer(t *testing.T) {
	timer := NewRandomControlTimer()
	defer timer.Shutdown()

	go timer.Run(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		select {
		case <-timer.tickCh:
		case <-time.After(time.Second):
			t.Fatalf("tick %d did not arrive", i)
		}
		timer.Reset(10 * time.Millisecond)
	}

	//tick armed by the last reset
	select {
	case <-timer.tickCh:
	case <-time.After(time.Second):
		t.Fatal("last tick did not arrive")
	}

	//without a reset the timer stays silent
	select {
	case <-timer.tickCh:
		t.Fatal("timer should not tick without a reset")
	case <-time.After(100 * time.Millisecond):
	}
}
