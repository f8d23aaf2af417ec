package section

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/vote"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
)

// Sizes gathers the section sizing parameters. They come from configuration;
// the section itself never hard-codes them.
type Sizes struct {
	// ElderSize is the target elder count.
	ElderSize int
	// RecommendedSize is the minimum size of each half for a split to be
	// allowed.
	RecommendedSize int
	// MinSize is the size under which the section should merge with its
	// sibling.
	MinSize int
}

// Section owns the authoritative view of one section: its prefix, members,
// elder subset, and the proof chain recording every accepted change. All
// mutations require a quorum-accepted ballot whose proposal references the
// current chain tip; a mismatch returns StaleProof and the caller must re-vote
// against the refreshed tip. That check serialises mutations through the tip:
// two conflicting proposals cannot both apply against the same tip. Mutating
// methods take the write lock; Snapshot takes the read lock and hands out
// immutable state, so readers never observe a half-applied transition.
type Section struct {
	l sync.RWMutex

	prefix  xorname.Prefix
	members *MemberSet
	elders  *MemberSet
	chain   *ProofChain

	sizes  Sizes
	logger *logrus.Entry
}

// NewSection founds a section from its initial members. The genesis elder set
// anchors the proof chain; trust in it is established out of band.
func NewSection(prefix xorname.Prefix, founding []*identity.NodeIdentity, sizes Sizes, logger *logrus.Entry) *Section {
	members := NewMemberSet(founding)
	elders := electElders(members, sizes.ElderSize, prefix.Midpoint())

	return &Section{
		prefix:  prefix,
		members: members,
		elders:  elders,
		chain:   NewProofChain(NewGenesisBlock(elders.PubKeys())),
		sizes:   sizes,
		logger:  logger.WithField("section", prefix.String()),
	}
}

// NewSectionFromState rebuilds a section from persisted state. The chain must
// already have been verified by the loader.
func NewSectionFromState(prefix xorname.Prefix, members, elders *MemberSet, chain *ProofChain, sizes Sizes, logger *logrus.Entry) *Section {
	return &Section{
		prefix:  prefix,
		members: members,
		elders:  elders,
		chain:   chain,
		sizes:   sizes,
		logger:  logger.WithField("section", prefix.String()),
	}
}

// Prefix ...
func (s *Section) Prefix() xorname.Prefix {
	return s.prefix
}

// Members returns the current member set. MemberSets are immutable; callers
// may hold the result across mutations and will simply see the old view.
func (s *Section) Members() *MemberSet {
	s.l.RLock()
	defer s.l.RUnlock()
	return s.members
}

// Elders returns the current elder subset.
func (s *Section) Elders() *MemberSet {
	s.l.RLock()
	defer s.l.RUnlock()
	return s.elders
}

// Chain returns the proof chain. Only the section itself appends to it.
func (s *Section) Chain() *ProofChain {
	s.l.RLock()
	defer s.l.RUnlock()
	return s.chain
}

// TipHex returns the current chain tip hash. Proposals must embed it.
func (s *Section) TipHex() string {
	s.l.RLock()
	defer s.l.RUnlock()
	return s.chain.TipHex()
}

// Snapshot captures a consistent view of the section for pure computations
// (delivery groups, relocation). The contained sets are immutable.
type Snapshot struct {
	Prefix  xorname.Prefix
	Members *MemberSet
	Elders  *MemberSet
	TipHex  string
	TipHash []byte
}

// Snapshot ...
func (s *Section) Snapshot() *Snapshot {
	s.l.RLock()
	defer s.l.RUnlock()

	tipHash, _ := s.chain.Tip().Hash()

	return &Snapshot{
		Prefix:  s.prefix,
		Members: s.members,
		Elders:  s.elders,
		TipHex:  s.chain.TipHex(),
		TipHash: tipHash,
	}
}

// ApplyMemberAdded inserts the proposed member. Adding an identity that is
// already a member is a no-op: no block is appended and no ages change.
func (s *Section) ApplyMemberAdded(ballot *vote.Ballot) error {
	s.l.Lock()
	defer s.l.Unlock()

	proposal := ballot.Proposal()
	if err := s.checkBallot(ballot, vote.ADD_MEMBER); err != nil {
		return err
	}

	member := proposal.Body.Member
	if s.members.Contains(member.Name) {
		return nil
	}

	members := s.agedCopy(s.members).WithNewMember(member)
	elders := s.refreshElders(members)

	if err := s.appendBlock(ballot, elders); err != nil {
		return err
	}

	s.members = members
	s.elders = elders

	s.logger.WithFields(logrus.Fields{
		"member":  member.Name.String(),
		"members": members.Len(),
	}).Debug("Member added")

	return nil
}

// ApplyMemberRemoved removes the member and, if it was an elder, backfills the
// elder set from the remaining members. Removing an identity that is not a
// member is a no-op.
func (s *Section) ApplyMemberRemoved(ballot *vote.Ballot) error {
	s.l.Lock()
	defer s.l.Unlock()

	proposal := ballot.Proposal()
	if err := s.checkBallot(ballot, vote.REMOVE_MEMBER); err != nil {
		return err
	}

	member := proposal.Body.Member
	if !s.members.Contains(member.Name) {
		return nil
	}

	members := s.agedCopy(s.members).WithRemovedMember(member)
	elders := s.refreshElders(members)

	if err := s.appendBlock(ballot, elders); err != nil {
		return err
	}

	s.members = members
	s.elders = elders

	s.logger.WithFields(logrus.Fields{
		"member":  member.Name.String(),
		"members": members.Len(),
	}).Debug("Member removed")

	return nil
}

// ApplyElderChurn replaces the elder set with the proposed one. The appended
// block carries the outgoing elders' signatures, which is exactly what chain
// verification expects: each block quorate against its predecessor's elders.
func (s *Section) ApplyElderChurn(ballot *vote.Ballot) error {
	s.l.Lock()
	defer s.l.Unlock()

	proposal := ballot.Proposal()
	if err := s.checkBallot(ballot, vote.ELDER_CHURN); err != nil {
		return err
	}

	newElders := []*identity.NodeIdentity{}
	for _, pubKey := range proposal.Body.Elders {
		member, ok := s.members.ByPubKey[pubKey]
		if !ok {
			return common.NewCoreErr("section", common.NotAMember, pubKey)
		}
		newElders = append(newElders, member)
	}

	elders := NewMemberSet(newElders)

	if err := s.appendBlock(ballot, elders); err != nil {
		return err
	}

	s.members = s.agedCopy(s.members)
	s.elders = remapElders(elders, s.members)

	s.logger.WithField("elders", elders.Len()).Debug("Elders churned")

	return nil
}

// ApplySplit divides the section in two along the next prefix bit. It is only
// valid if both halves would meet the recommended section size. The parent's
// chain becomes the common ancestor of both children's chains; each child
// appends its own block, signed by the parent's elders.
func (s *Section) ApplySplit(ballot *vote.Ballot) (*Section, *Section, error) {
	s.l.Lock()
	defer s.l.Unlock()

	proposal := ballot.Proposal()
	if err := s.checkBallot(ballot, vote.SPLIT); err != nil {
		return nil, nil, err
	}

	bitIndex := proposal.Body.BitIndex
	if bitIndex != s.prefix.BitCount {
		return nil, nil, fmt.Errorf("split bit %d does not extend prefix %s", bitIndex, s.prefix)
	}

	aged := s.agedCopy(s.members)

	zero := []*identity.NodeIdentity{}
	one := []*identity.NodeIdentity{}
	for _, m := range aged.Members {
		if m.Name.Bit(bitIndex) {
			one = append(one, m)
		} else {
			zero = append(zero, m)
		}
	}

	if len(zero) < s.sizes.RecommendedSize || len(one) < s.sizes.RecommendedSize {
		return nil, nil, common.NewCoreErr("section", common.InsufficientMembers,
			fmt.Sprintf("%d/%d", len(zero), len(one)))
	}

	left, err := s.makeChild(ballot, s.prefix.ExtendedWith(false), zero)
	if err != nil {
		return nil, nil, err
	}

	right, err := s.makeChild(ballot, s.prefix.ExtendedWith(true), one)
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"left":  left.members.Len(),
		"right": right.members.Len(),
	}).Debug("Section split")

	return left, right, nil
}

// ApplyMerge unions this section with its sibling under the parent prefix. It
// is only valid when the section has shrunk below the minimum size and the
// sibling shares the parent prefix. The merged chain extends this section's
// chain; the sibling's history remains independently verifiable up to the
// common ancestor.
func (s *Section) ApplyMerge(ballot *vote.Ballot, sibling *Section) (*Section, error) {
	s.l.Lock()
	defer s.l.Unlock()

	proposal := ballot.Proposal()
	if err := s.checkBallot(ballot, vote.MERGE); err != nil {
		return nil, err
	}

	if s.members.Len() >= s.sizes.MinSize {
		return nil, common.NewCoreErr("section", common.InsufficientMembers,
			fmt.Sprintf("size %d above merge threshold", s.members.Len()))
	}

	if proposal.Body.SiblingPrefix != s.prefix.Sibling().String() ||
		!sibling.Prefix().Equal(s.prefix.Sibling()) {
		return nil, fmt.Errorf("prefix %s is not our sibling", sibling.Prefix())
	}

	union := append([]*identity.NodeIdentity{}, s.agedCopy(s.members).Members...)
	union = append(union, sibling.Members().Members...)
	members := NewMemberSet(union)

	parent := s.prefix.Popped()
	elders := electElders(members, s.sizes.ElderSize, parent.Midpoint())

	merged := &Section{
		prefix:  parent,
		members: members,
		elders:  elders,
		chain:   s.chain.Fork(),
		sizes:   s.sizes,
		logger:  s.logger.WithField("section", parent.String()),
	}

	block := NewProofBlock(
		merged.chain.Tip().Index()+1,
		mustHash(merged.chain.Tip()),
		proposal.Body,
		elders.PubKeys(),
		ballot.Signatures(),
	)
	if err := merged.chain.Append(block); err != nil {
		return nil, err
	}

	s.logger.WithField("members", members.Len()).Debug("Sections merged")

	return merged, nil
}

/* Internal */

// checkBallot enforces the common preconditions: the ballot is accepted, of
// the expected kind, and voted against the current chain tip.
func (s *Section) checkBallot(ballot *vote.Ballot, expected vote.PayloadType) error {
	proposal := ballot.Proposal()

	if ballot.State() != vote.Accepted {
		return common.NewCoreErr("section", common.ExpiredProposal, proposal.Hex())
	}

	if proposal.Body.Type != expected {
		return fmt.Errorf("wrong proposal type: got %s, want %s", proposal.Body.Type, expected)
	}

	if proposal.Body.ChainTip != s.chain.TipHex() {
		return common.NewCoreErr("section", common.StaleProof, proposal.Hex())
	}

	return nil
}

func (s *Section) appendBlock(ballot *vote.Ballot, elders *MemberSet) error {
	tip := s.chain.Tip()
	block := NewProofBlock(
		tip.Index()+1,
		mustHash(tip),
		ballot.Proposal().Body,
		elders.PubKeys(),
		ballot.Signatures(),
	)
	return s.chain.Append(block)
}

func (s *Section) makeChild(ballot *vote.Ballot, prefix xorname.Prefix, members []*identity.NodeIdentity) (*Section, error) {
	memberSet := NewMemberSet(members)
	elders := electElders(memberSet, s.sizes.ElderSize, prefix.Midpoint())

	child := &Section{
		prefix:  prefix,
		members: memberSet,
		elders:  elders,
		chain:   s.chain.Fork(),
		sizes:   s.sizes,
		logger:  s.logger.WithField("section", prefix.String()),
	}

	block := NewProofBlock(
		child.chain.Tip().Index()+1,
		mustHash(child.chain.Tip()),
		ballot.Proposal().Body,
		elders.PubKeys(),
		ballot.Signatures(),
	)
	if err := child.chain.Append(block); err != nil {
		return nil, err
	}

	return child, nil
}

// agedCopy increments every member's age by one. Age counts the accepted
// churn events a member has survived, so it is bumped once per applied
// change.
func (s *Section) agedCopy(ms *MemberSet) *MemberSet {
	aged := make([]*identity.NodeIdentity, 0, ms.Len())
	for _, m := range ms.Members {
		age := m.Age
		if age < 255 {
			age++
		}
		aged = append(aged, m.WithAge(age))
	}
	return NewMemberSet(aged)
}

// refreshElders keeps the current elders that are still members and backfills
// up to the target from the remaining members, oldest first.
func (s *Section) refreshElders(members *MemberSet) *MemberSet {
	kept := []*identity.NodeIdentity{}
	for _, e := range s.elders.Members {
		if m, ok := members.ByName[e.Name]; ok {
			kept = append(kept, m)
		}
	}

	if len(kept) >= s.sizes.ElderSize {
		return NewMemberSet(kept)
	}

	candidates := []*identity.NodeIdentity{}
	for _, m := range members.Members {
		if _, ok := NewMemberSet(kept).ByName[m.Name]; !ok {
			candidates = append(candidates, m)
		}
	}

	sortElderCandidates(candidates, s.prefix.Midpoint())

	missing := s.sizes.ElderSize - len(kept)
	if missing > len(candidates) {
		missing = len(candidates)
	}

	return NewMemberSet(append(kept, candidates[:missing]...))
}

// electElders picks a fresh elder set of the given size: oldest-tenured
// members first, ties broken by XOR distance to the section midpoint.
func electElders(members *MemberSet, size int, midpoint xorname.Name) *MemberSet {
	candidates := make([]*identity.NodeIdentity, len(members.Members))
	copy(candidates, members.Members)

	sortElderCandidates(candidates, midpoint)

	if size > len(candidates) {
		size = len(candidates)
	}

	return NewMemberSet(candidates[:size])
}

func sortElderCandidates(candidates []*identity.NodeIdentity, midpoint xorname.Name) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Age != candidates[j].Age {
			return candidates[i].Age > candidates[j].Age
		}
		return midpoint.CmpDistance(candidates[i].Name, candidates[j].Name) == -1
	})
}

// remapElders re-points the elder set at the aged member copies so that both
// views carry the same ages.
func remapElders(elders, members *MemberSet) *MemberSet {
	res := []*identity.NodeIdentity{}
	for _, e := range elders.Members {
		if m, ok := members.ByName[e.Name]; ok {
			res = append(res, m)
		}
	}
	return NewMemberSet(res)
}

func mustHash(b *ProofBlock) []byte {
	h, _ := b.Hash()
	return h
}
