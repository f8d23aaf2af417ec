package vote

import (
	"sync"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
)

// BallotState tracks the lifecycle of a proposal: Open until either a quorum
// of votes is reached (Accepted) or the deadline fires (Expired). A ballot is
// resolved exactly once and never reopens.
type BallotState uint32

const (
	// Open ...
	Open BallotState = iota
	// Accepted ...
	Accepted
	// Expired ...
	Expired
)

var ballotStates = []string{"Open", "Accepted", "Expired"}

// String ...
func (s BallotState) String() string {
	return ballotStates[s]
}

// Quorum implements the supermajority rule: strictly more than two-thirds of
// the voters. Any two quorums among the same voter set intersect, which is
// what makes concurrent conflicting proposals safe.
func Quorum(votes, voters int) bool {
	return votes*3 > voters*2
}

// Ballot accumulates signed votes from a fixed voter set towards one proposal.
// The voter set is frozen at creation (normally the section's elder set at the
// time the proposal was made); later membership changes do not affect an open
// ballot. SubmitVote may be called concurrently.
type Ballot struct {
	l sync.Mutex

	proposal *Proposal
	digest   []byte

	voters     map[string]*identity.NodeIdentity //[pubKeyHex] => voter
	signatures map[string]string                 //[pubKeyHex] => signature
	state      BallotState
}

// NewBallot opens a ballot for the proposal with the given eligible voters.
func NewBallot(proposal *Proposal, voters []*identity.NodeIdentity) (*Ballot, error) {
	digest, err := proposal.Hash()
	if err != nil {
		return nil, err
	}

	byPubKey := make(map[string]*identity.NodeIdentity, len(voters))
	for _, v := range voters {
		byPubKey[v.PubKeyHex] = v
	}

	return &Ballot{
		proposal:   proposal,
		digest:     digest,
		voters:     byPubKey,
		signatures: make(map[string]string),
	}, nil
}

// Proposal returns the proposal being voted on.
func (b *Ballot) Proposal() *Proposal {
	return b.proposal
}

// SubmitVote records a vote and recomputes the quorum. It returns
// UnknownVoter if the signer is not in the eligible set, DuplicateVote if it
// already voted, and ExpiredProposal if the ballot is already resolved. A vote
// whose signature does not verify is dropped silently: adversarial peers are
// expected traffic, not an error condition.
func (b *Ballot) SubmitVote(voterPubKeyHex string, signature string) error {
	b.l.Lock()
	defer b.l.Unlock()

	if b.state != Open {
		return common.NewCoreErr("ballot", common.ExpiredProposal, b.proposal.Hex())
	}

	voter, ok := b.voters[voterPubKeyHex]
	if !ok {
		return common.NewCoreErr("ballot", common.UnknownVoter, voterPubKeyHex)
	}

	if _, ok := b.signatures[voterPubKeyHex]; ok {
		return common.NewCoreErr("ballot", common.DuplicateVote, voterPubKeyHex)
	}

	if !voter.Verify(b.digest, signature) {
		return nil
	}

	b.signatures[voterPubKeyHex] = signature

	if Quorum(len(b.signatures), len(b.voters)) {
		b.state = Accepted
	}

	return nil
}

// Expire resolves the ballot if it is still open. A timer that fires after the
// ballot was accepted is a harmless no-op. It returns true if the ballot
// transitioned to Expired.
func (b *Ballot) Expire() bool {
	b.l.Lock()
	defer b.l.Unlock()

	if b.state != Open {
		return false
	}

	b.state = Expired
	return true
}

// State ...
func (b *Ballot) State() BallotState {
	b.l.Lock()
	defer b.l.Unlock()
	return b.state
}

// VoteCount returns the number of valid recorded votes.
func (b *Ballot) VoteCount() int {
	b.l.Lock()
	defer b.l.Unlock()
	return len(b.signatures)
}

// VoterCount returns the size of the eligible voter set.
func (b *Ballot) VoterCount() int {
	return len(b.voters)
}

// Signatures returns a copy of the recorded votes, keyed by voter public key.
func (b *Ballot) Signatures() map[string]string {
	b.l.Lock()
	defer b.l.Unlock()

	res := make(map[string]string, len(b.signatures))
	for k, v := range b.signatures {
		res[k] = v
	}
	return res
}

// Voters returns the public keys of voters that have cast a valid vote.
func (b *Ballot) Voters() []string {
	b.l.Lock()
	defer b.l.Unlock()

	res := make([]string, 0, len(b.signatures))
	for k := range b.signatures {
		res = append(res, k)
	}
	return res
}
