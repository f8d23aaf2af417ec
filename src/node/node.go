package node

import (
	"time"

	"github.com/sectornet/routing/src/config"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/relocation"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/vote"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
)

// Node drives a Core with background timers and a submission queue. The host
// feeds inbound signed votes through SubmitVote; the node serialises them into
// the core, expires stale ballots on the vote timer, and re-checks relocation
// triggers on the relocation timer.
type Node struct {
	state

	conf *config.Config
	core *Core

	voteTimer       *ControlTimer
	relocationTimer *ControlTimer

	submitCh   chan *SignedVote
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewNode ...
func NewNode(conf *config.Config,
	id *identity.FullIdentity,
	sec *section.Section,
	store section.Store,
) *Node {

	node := Node{
		conf:            conf,
		core:            NewCore(id, sec, store, conf),
		voteTimer:       NewPeriodicControlTimer(),
		relocationTimer: NewPeriodicControlTimer(),
		submitCh:        make(chan *SignedVote, 64),
		shutdownCh:      make(chan struct{}),
		logger:          conf.Logger().WithField("name", id.Name.String()),
	}

	node.setState(Bootstrapping)

	return &node
}

// Init persists the initial section state so a restart resumes from the same
// proof chain, and moves the node to Running.
func (n *Node) Init() error {
	n.logger.WithFields(logrus.Fields{
		"section": n.core.Section().Prefix().String(),
		"members": n.core.Section().Members().Len(),
	}).Debug("Init node")

	n.core.persist(n.core.Section())

	n.setState(Running)

	return nil
}

// Run starts the background timers and processes submissions until Shutdown.
func (n *Node) Run() {
	n.goFunc(func() { n.voteTimer.Run(n.conf.VoteExpiry) })
	n.goFunc(func() { n.relocationTimer.Run(n.conf.RelocationInterval) })

	for {
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Running:
			n.doWork()
		case Shutdown:
			return
		default:
			// Transitional states park the loop until the host moves the node
			// on or shuts it down.
			select {
			case <-n.shutdownCh:
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

// SubmitVote queues an inbound signed vote for processing. It never blocks;
// when the queue is full the vote is dropped and the sender's retransmission
// is relied upon.
func (n *Node) SubmitVote(sv *SignedVote) {
	select {
	case n.submitCh <- sv:
	default:
		n.logger.Warn("Submit queue full, dropping vote")
	}
}

// CreateVote signs a proposal with the node's own identity.
func (n *Node) CreateVote(proposal *vote.Proposal) (*SignedVote, error) {
	return n.core.CreateVote(proposal)
}

// TipHex returns the chain tip that new proposals must reference.
func (n *Node) TipHex() string {
	return n.core.TipHex()
}

// TargetsFor computes the delivery group for a destination.
func (n *Node) TargetsFor(dst xorname.DstLocation) []*identity.NodeIdentity {
	return n.core.TargetsFor(dst)
}

// Section exposes the current section.
func (n *Node) Section() *section.Section {
	return n.core.Section()
}

// Events is the host-facing notification stream.
func (n *Node) Events() <-chan Event {
	return n.core.Events()
}

// SetSibling supplies the sibling section's state ahead of a merge.
func (n *Node) SetSibling(sibling *section.Section) {
	n.core.SetSibling(sibling)
}

// UpdateNeighbour records a neighbouring section's member count.
func (n *Node) UpdateNeighbour(prefix xorname.Prefix, memberCount int) {
	n.core.UpdateNeighbour(prefix, memberCount)
}

// CompleteRelocation reports that a relocated node rejoined under its
// destination with the given identity link.
func (n *Node) CompleteRelocation(link identity.RelocationLink, details *relocation.Details) {
	n.core.CompleteRelocation(link, details)
}

// Shutdown stops the timers, drains the run loop, and waits for background
// routines. Safe to call more than once.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")

	close(n.shutdownCh)

	n.voteTimer.Shutdown()
	n.relocationTimer.Shutdown()

	n.setState(Shutdown)

	n.waitRoutines()
}

func (n *Node) doWork() {
	select {
	case sv := <-n.submitCh:
		if err := n.core.HandleVote(sv); err != nil {
			n.logger.WithError(err).Debug("Rejected vote")
		}
	case <-n.voteTimer.TickCh():
		n.core.ExpireStaleBallots()
	case <-n.relocationTimer.TickCh():
		n.core.CheckRelocations()
	case <-n.shutdownCh:
	}
}
