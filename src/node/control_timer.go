package node

import (
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer drives the node's scheduled work (vote expiry scans, the
// relocation re-check) from a single goroutine. Firing only pushes a tick on
// tickCh; the receiver decides whether the tick is still relevant, so a timer
// that fires after its condition resolved is a harmless no-op. The timer can
// be reset or stopped at any time, which is how early quorum cancels a
// pending expiry.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives instruction to reset the timer
	stopCh       chan struct{}      //receives instruction to stop the timer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
	set          bool
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewPeriodicControlTimer returns a ControlTimer backed by plain time.After.
func NewPeriodicControlTimer() *ControlTimer {
	return NewControlTimer(func(d time.Duration) <-chan time.Time {
		if d == 0 {
			return nil
		}
		return time.After(d)
	})
}

// Run loops until Shutdown, rearming the timer with init after every tick.
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		c.set = true
		return c.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			c.tickCh <- struct{}{}
			c.set = false
			timer = setTimer(init)
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			c.set = false
		case <-c.shutdownCh:
			c.set = false
			return
		}
	}
}

// TickCh exposes the tick channel to the listening process.
func (c *ControlTimer) TickCh() <-chan struct{} {
	return c.tickCh
}

// Reset rearms the timer with a new duration.
func (c *ControlTimer) Reset(t time.Duration) {
	c.resetCh <- t
}

// Stop disarms the timer without shutting down the Run loop.
func (c *ControlTimer) Stop() {
	c.stopCh <- struct{}{}
}

// Shutdown exits the Run loop.
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
