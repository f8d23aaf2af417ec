package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/config"
	"github.com/sectornet/routing/src/delivery"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/relocation"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/vote"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
)

// SignedVote is the wire form of a vote: the full proposal body, the voter,
// and the voter's signature over the proposal hash. The core treats the
// payload as opaque beyond verification and ordering.
type SignedVote struct {
	Proposal       vote.ProposalBody
	VoterPubKeyHex string
	Signature      string
}

// Key identifies the vote in the message filter: proposal, voter, and the
// signature itself. The signature is part of the key so that a forged vote
// with a bad signature cannot occupy the filter slot of the voter's genuine
// one; a byte-identical replay is still dropped.
func (sv *SignedVote) Key() string {
	p := &vote.Proposal{Body: sv.Proposal}
	return fmt.Sprintf("%s-%s-%s", p.Hex(), sv.VoterPubKeyHex, sv.Signature)
}

type ballotEntry struct {
	ballot   *vote.Ballot
	deadline time.Time
	applied  bool
}

// Core ties the membership machinery together: inbound signed votes flow
// through the message filter into per-proposal ballots; when a ballot reaches
// quorum the change is applied to the section and appended to its proof
// chain; relocation and delivery-group outputs are re-derived from the new
// state. Vote submission is concurrent-safe; the apply step is serialised by
// the section's chain-tip check.
type Core struct {
	l sync.Mutex

	id  *identity.FullIdentity
	sec *section.Section

	ballots map[string]*ballotEntry
	filter  *MessageFilter
	store   section.Store
	conf    *config.Config

	// missedVotes counts, per member, consecutive accepted ballots the member
	// was eligible for but did not vote on. A vote resets the count.
	missedVotes map[xorname.Name]int

	// neighbours tracks the member counts of neighbouring sections, as
	// reported by the host, for relocation destination choice.
	neighbours map[xorname.Prefix]int

	// pendingRelocations guards against re-announcing a relocation that was
	// already started.
	pendingRelocations map[xorname.Name]*relocation.Details

	// sibling is the latest known state of the sibling section, needed to
	// apply a merge. It is supplied by the host from synced state.
	sibling *section.Section

	round  int
	events chan Event
	logger *logrus.Entry
}

// NewCore ...
func NewCore(id *identity.FullIdentity, sec *section.Section, store section.Store, conf *config.Config) *Core {
	return &Core{
		id:                 id,
		sec:                sec,
		ballots:            make(map[string]*ballotEntry),
		filter:             NewMessageFilter(conf.FilterWindow, conf.CacheSize),
		store:              store,
		conf:               conf,
		missedVotes:        make(map[xorname.Name]int),
		neighbours:         make(map[xorname.Prefix]int),
		pendingRelocations: make(map[xorname.Name]*relocation.Details),
		events:             make(chan Event, 128),
		logger:             conf.Logger().WithField("name", id.Name.String()),
	}
}

// Section returns the core's current section.
func (c *Core) Section() *section.Section {
	c.l.Lock()
	defer c.l.Unlock()
	return c.sec
}

// Events is the notification stream for the host. Events are dropped, with a
// log line, if the host does not drain the channel.
func (c *Core) Events() <-chan Event {
	return c.events
}

// HandleVote processes one inbound signed vote: duplicate suppression, ballot
// accumulation, and, on quorum, application to the section. Proposal-layer
// misuse (DuplicateVote, UnknownVoter, ExpiredProposal) is returned to the
// caller; a vote with an unverifiable signature is dropped silently.
func (c *Core) HandleVote(sv *SignedVote) error {
	if !c.filter.Insert(sv.Key()) {
		c.logger.WithField("vote", sv.Key()).Debug("Duplicate vote filtered")
		return nil
	}

	proposal := &vote.Proposal{Body: sv.Proposal}

	entry, err := c.ballotFor(proposal)
	if err != nil {
		return err
	}

	if err := entry.ballot.SubmitVote(sv.VoterPubKeyHex, sv.Signature); err != nil {
		return err
	}

	if entry.ballot.State() == vote.Accepted {
		return c.applyAccepted(proposal.Hex(), entry)
	}

	return nil
}

// CreateVote signs the proposal with the node's own key. Only useful when the
// node is an elder of its section.
func (c *Core) CreateVote(proposal *vote.Proposal) (*SignedVote, error) {
	digest, err := proposal.Hash()
	if err != nil {
		return nil, err
	}

	sig, err := c.id.Sign(digest)
	if err != nil {
		return nil, err
	}

	return &SignedVote{
		Proposal:       proposal.Body,
		VoterPubKeyHex: c.id.PubKeyHex,
		Signature:      sig,
	}, nil
}

// TipHex returns the chain tip new proposals must reference.
func (c *Core) TipHex() string {
	return c.Section().TipHex()
}

// TargetsFor computes the delivery group for a destination: the members that
// must receive the message so that a quorum of honest forwarders is
// guaranteed under the configured Byzantine tolerance.
func (c *Core) TargetsFor(dst xorname.DstLocation) []*identity.NodeIdentity {
	snapshot := c.Section().Snapshot()
	groupSize := delivery.GroupSize(c.conf.ByzantineTolerance)
	return delivery.SelectTargets(snapshot, dst.TargetName(), groupSize)
}

// ExpireStaleBallots resolves every open ballot whose deadline has passed.
// Expired proposals are discarded; the initiator must resubmit against the
// current tip. Driven by the node's vote timer.
func (c *Core) ExpireStaleBallots() {
	c.l.Lock()
	defer c.l.Unlock()

	now := time.Now()
	for hex, entry := range c.ballots {
		if now.Before(entry.deadline) {
			continue
		}
		if entry.ballot.Expire() {
			c.logger.WithFields(logrus.Fields{
				"proposal": hex,
				"votes":    entry.ballot.VoteCount(),
			}).Debug("Proposal expired without quorum")
		}
		delete(c.ballots, hex)
	}
}

// CheckRelocations re-derives the relocation set from the current section
// state and announces newly selected relocations. Driven by churn and by the
// periodic relocation timer.
func (c *Core) CheckRelocations() {
	c.l.Lock()
	snapshot := c.sec.Snapshot()
	round := c.round
	missed := make(map[xorname.Name]int, len(c.missedVotes))
	for k, v := range c.missedVotes {
		missed[k] = v
	}
	neighbours := make(map[xorname.Prefix]int, len(c.neighbours))
	for k, v := range c.neighbours {
		neighbours[k] = v
	}
	c.l.Unlock()

	rels := relocation.SelectRelocations(snapshot, round, missed, neighbours, relocation.Config{
		AgeThreshold:          c.conf.RelocationAgeThreshold,
		UnresponsiveThreshold: c.conf.UnresponsiveThreshold,
	})

	for _, details := range rels {
		c.l.Lock()
		_, pending := c.pendingRelocations[details.Relocating.Name]
		if !pending {
			c.pendingRelocations[details.Relocating.Name] = details
		}
		c.l.Unlock()

		if pending {
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"member":      details.Relocating.Name.String(),
			"destination": details.DestinationPrefix.String(),
		}).Info("Relocation started")

		c.emit(Event{Type: RelocationStarted, Relocation: details})
	}
}

// CompleteRelocation is called by the host when a relocated node has rejoined
// under its destination prefix, presenting the link between its old and new
// identities. The relocation proof and the identity link are both verified;
// an invalid submission from an adversarial peer is a silent no-op.
func (c *Core) CompleteRelocation(link identity.RelocationLink, details *relocation.Details) {
	if !link.Verify() || link.OldName() != details.Relocating.Name {
		c.logger.WithField("member", details.Relocating.Name.String()).
			Debug("Dropping relocation completion with bad identity link")
		return
	}

	c.l.Lock()
	pending, ok := c.pendingRelocations[details.Relocating.Name]
	if ok {
		delete(c.pendingRelocations, details.Relocating.Name)
	}
	c.l.Unlock()

	if !ok || !relocation.VerifyProof(pending, c.Section().Snapshot().TipHash) {
		// The proof may legitimately fail to recompute when churn has moved
		// the tip since the relocation started; the host retries with
		// refreshed details in that case.
		if ok {
			c.logger.WithField("member", details.Relocating.Name.String()).
				Debug("Relocation proof did not recompute against current tip")
		}
		return
	}

	c.emit(Event{Type: RelocationCompleted, Relocation: details})
}

// SetSibling supplies the latest known state of the sibling section, required
// before a merge can be applied.
func (c *Core) SetSibling(sibling *section.Section) {
	c.l.Lock()
	defer c.l.Unlock()
	c.sibling = sibling
}

// UpdateNeighbour records the member count of a neighbouring section.
func (c *Core) UpdateNeighbour(prefix xorname.Prefix, memberCount int) {
	c.l.Lock()
	defer c.l.Unlock()
	c.neighbours[prefix] = memberCount
}

/* Internal */

// ballotFor finds or opens the ballot for a proposal. The voter set is frozen
// to the section's elders at creation.
func (c *Core) ballotFor(proposal *vote.Proposal) (*ballotEntry, error) {
	c.l.Lock()
	defer c.l.Unlock()

	if entry, ok := c.ballots[proposal.Hex()]; ok {
		return entry, nil
	}

	ballot, err := vote.NewBallot(proposal, c.sec.Elders().Members)
	if err != nil {
		return nil, err
	}

	entry := &ballotEntry{
		ballot:   ballot,
		deadline: time.Now().Add(c.conf.VoteExpiry),
	}
	c.ballots[proposal.Hex()] = entry

	return entry, nil
}

// applyAccepted advances the section once per accepted ballot. The section's
// own tip check rejects the application if another proposal won against the
// same tip first; the initiator then re-votes against the new tip.
func (c *Core) applyAccepted(hex string, entry *ballotEntry) error {
	c.l.Lock()
	if entry.applied {
		c.l.Unlock()
		return nil
	}
	entry.applied = true
	sec := c.sec
	sibling := c.sibling
	c.l.Unlock()

	ballot := entry.ballot
	proposal := ballot.Proposal()

	eldersBefore := sec.Elders().Hex()

	var err error
	var replacement *section.Section

	switch proposal.Body.Type {
	case vote.ADD_MEMBER:
		err = sec.ApplyMemberAdded(ballot)
	case vote.REMOVE_MEMBER:
		err = sec.ApplyMemberRemoved(ballot)
	case vote.ELDER_CHURN:
		err = sec.ApplyElderChurn(ballot)
	case vote.SPLIT:
		replacement, err = c.applySplit(sec, ballot)
	case vote.MERGE:
		if sibling == nil {
			err = fmt.Errorf("merge accepted but sibling state unknown")
		} else {
			replacement, err = sec.ApplyMerge(ballot, sibling)
		}
	default:
		err = fmt.Errorf("unknown proposal type %d", proposal.Body.Type)
	}

	if err != nil {
		c.l.Lock()
		delete(c.ballots, hex)
		c.l.Unlock()

		if common.IsCore(err, common.StaleProof) {
			c.logger.WithField("proposal", hex).
				Warn("Proposal raced against a newer tip, initiator must re-vote")
		} else {
			c.logger.WithError(err).WithField("proposal", hex).Error("Failed to apply accepted proposal")
		}
		return err
	}

	c.l.Lock()
	delete(c.ballots, hex)
	if replacement != nil {
		c.sec = replacement
		c.sibling = nil
		sec = replacement
	}
	c.round++
	c.trackParticipation(ballot)
	c.l.Unlock()

	c.emitChange(proposal, sec, eldersBefore)
	c.persist(sec)
	c.CheckRelocations()

	return nil
}

// applySplit keeps the child section that covers the node's own name.
func (c *Core) applySplit(sec *section.Section, ballot *vote.Ballot) (*section.Section, error) {
	left, right, err := sec.ApplySplit(ballot)
	if err != nil {
		return nil, err
	}

	if left.Prefix().Matches(c.id.Name) {
		return left, nil
	}
	return right, nil
}

// trackParticipation updates unresponsiveness counters: eligible voters that
// did not vote on the accepted ballot accumulate misses, voters reset. Must
// be called with the core lock held.
func (c *Core) trackParticipation(ballot *vote.Ballot) {
	voted := make(map[string]bool)
	for _, pubKey := range ballot.Voters() {
		voted[pubKey] = true
	}

	for _, elder := range c.sec.Elders().Members {
		if voted[elder.PubKeyHex] {
			delete(c.missedVotes, elder.Name)
		} else {
			c.missedVotes[elder.Name]++
		}
	}
}

func (c *Core) emitChange(proposal *vote.Proposal, sec *section.Section, eldersBefore string) {
	switch proposal.Body.Type {
	case vote.ADD_MEMBER:
		c.emit(Event{Type: MemberJoined, Member: proposal.Body.Member})
	case vote.REMOVE_MEMBER:
		c.emit(Event{Type: MemberLeft, Member: proposal.Body.Member})
	case vote.SPLIT:
		c.emit(Event{Type: SectionSplit, Prefix: sec.Prefix()})
	case vote.MERGE:
		c.emit(Event{Type: SectionsMerged, Prefix: sec.Prefix()})
	}

	if sec.Elders().Hex() != eldersBefore {
		c.emit(Event{Type: EldersChanged, Prefix: sec.Prefix()})
	}
}

func (c *Core) persist(sec *section.Section) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveSection(sec); err != nil {
		c.logger.WithError(err).Error("Failed to persist section")
	}
}

func (c *Core) emit(event Event) {
	select {
	case c.events <- event:
	default:
		c.logger.WithField("event", event.String()).Warn("Event channel full, dropping")
	}
}
