package node

import (
	"testing"
	"time"
)

func TestControlTimerTicks(t *testing.T) {
	timer := NewPeriodicControlTimer()

	go timer.Run(5 * time.Millisecond)
	defer timer.Shutdown()

	for i := 0; i < 3; i++ {
		select {
		case <-timer.TickCh():
		case <-time.After(time.Second):
			t.Fatalf("timer should have ticked (tick %d)", i)
		}
	}
}

func TestControlTimerStop(t *testing.T) {
	timer := NewPeriodicControlTimer()

	go timer.Run(time.Minute)
	defer timer.Shutdown()

	timer.Stop()

	select {
	case <-timer.TickCh():
		t.Fatal("a stopped timer should not tick")
	case <-time.After(50 * time.Millisecond):
	}

	//Reset rearms it
	timer.Reset(5 * time.Millisecond)

	select {
	case <-timer.TickCh():
	case <-time.After(time.Second):
		t.Fatal("a reset timer should tick again")
	}
}
