package node

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a routing node: Bootstrapping, Joining,
// Running, Relocating, or Shutdown
type State uint32

const (
	//Bootstrapping is the initial state, before the node has a section.
	Bootstrapping State = iota
	//Joining means the node's join proposal is being voted on.
	Joining
	//Running means the node is a section member processing votes.
	Running
	//Relocating means the node was selected for relocation and is moving to
	//its destination section.
	Relocating
	//Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "Bootstrapping"
	case Joining:
		return "Joining"
	case Running:
		return "Running"
	case Relocating:
		return "Relocating"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 20

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	tempWgCount := atomic.LoadInt32(&b.wgCount)
	if tempWgCount < WGLIMIT {
		b.wg.Add(1)
		atomic.AddInt32(&b.wgCount, 1)
		go func() {
			defer b.wg.Done()
			atomic.AddInt32(&b.wgCount, -1)
			f()
		}()
	}
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
