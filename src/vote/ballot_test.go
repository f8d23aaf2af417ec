package vote

import (
	"testing"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
)

func TestQuorum(t *testing.T) {
	for _, tt := range []struct {
		votes, voters int
		quorum        bool
	}{
		{0, 7, false},
		{4, 7, false},
		{5, 7, true},
		{7, 7, true},
		{2, 4, false},
		{3, 4, true},
		{2, 3, false}, //exactly 2/3 is not enough
		{3, 3, true},
		{1, 1, true},
	} {
		if Quorum(tt.votes, tt.voters) != tt.quorum {
			t.Fatalf("Quorum(%d, %d) should be %v", tt.votes, tt.voters, tt.quorum)
		}
	}
}

func TestQuorumIntersection(t *testing.T) {
	//any two quorums among the same voters share at least one voter
	for voters := 1; voters <= 30; voters++ {
		minQuorum := 0
		for v := 0; v <= voters; v++ {
			if Quorum(v, voters) {
				minQuorum = v
				break
			}
		}
		if 2*minQuorum <= voters {
			t.Fatalf("two quorums of %d among %d voters could be disjoint", minQuorum, voters)
		}
	}
}

func genVoters(t *testing.T, n int) []*identity.FullIdentity {
	res := []*identity.FullIdentity{}
	for i := 0; i < n; i++ {
		id, err := identity.GenerateFullIdentity(identity.NewSeededRand(int64(i)), 0)
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, id)
	}
	return res
}

func publicSet(voters []*identity.FullIdentity) []*identity.NodeIdentity {
	res := []*identity.NodeIdentity{}
	for _, v := range voters {
		id := v.NodeIdentity
		res = append(res, &id)
	}
	return res
}

func castVote(t *testing.T, b *Ballot, voter *identity.FullIdentity) error {
	digest, err := b.Proposal().Hash()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := voter.Sign(digest)
	if err != nil {
		t.Fatal(err)
	}
	return b.SubmitVote(voter.PubKeyHex, sig)
}

func TestBallotQuorum(t *testing.T) {
	voters := genVoters(t, 7)

	member, err := identity.GenerateFullIdentity(identity.NewSeededRand(99), 0)
	if err != nil {
		t.Fatal(err)
	}

	proposal := NewAddMemberProposal(&member.NodeIdentity, "sometip")

	ballot, err := NewBallot(proposal, publicSet(voters))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		if err := castVote(t, ballot, voters[i]); err != nil {
			t.Fatal(err)
		}
		if ballot.State() != Open {
			t.Fatalf("ballot should still be Open after %d of 7 votes", i+1)
		}
	}

	if err := castVote(t, ballot, voters[4]); err != nil {
		t.Fatal(err)
	}

	if ballot.State() != Accepted {
		t.Fatal("ballot should be Accepted after 5 of 7 votes")
	}

	if ballot.VoteCount() != 5 {
		t.Fatalf("VoteCount should be 5, not %d", ballot.VoteCount())
	}
}

func TestBallotDuplicateVote(t *testing.T) {
	voters := genVoters(t, 7)

	proposal := NewElderChurnProposal([]string{"a"}, "sometip")

	ballot, err := NewBallot(proposal, publicSet(voters))
	if err != nil {
		t.Fatal(err)
	}

	if err := castVote(t, ballot, voters[0]); err != nil {
		t.Fatal(err)
	}

	err = castVote(t, ballot, voters[0])
	if !common.IsCore(err, common.DuplicateVote) {
		t.Fatalf("repeat vote should return DuplicateVote, got %v", err)
	}

	if ballot.VoteCount() != 1 {
		t.Fatal("repeat vote should not be counted")
	}
}

func TestBallotUnknownVoter(t *testing.T) {
	voters := genVoters(t, 7)

	proposal := NewElderChurnProposal([]string{"a"}, "sometip")

	ballot, err := NewBallot(proposal, publicSet(voters[:6]))
	if err != nil {
		t.Fatal(err)
	}

	err = castVote(t, ballot, voters[6])
	if !common.IsCore(err, common.UnknownVoter) {
		t.Fatalf("outsider vote should return UnknownVoter, got %v", err)
	}
}

func TestBallotInvalidSignature(t *testing.T) {
	voters := genVoters(t, 7)

	proposal := NewElderChurnProposal([]string{"a"}, "sometip")

	ballot, err := NewBallot(proposal, publicSet(voters))
	if err != nil {
		t.Fatal(err)
	}

	//an eligible voter with a bad signature is dropped silently
	if err := ballot.SubmitVote(voters[0].PubKeyHex, "1|2"); err != nil {
		t.Fatal(err)
	}

	if ballot.VoteCount() != 0 {
		t.Fatal("an invalid signature should not be counted")
	}

	//and the voter can still cast a valid vote afterwards
	if err := castVote(t, ballot, voters[0]); err != nil {
		t.Fatal(err)
	}

	if ballot.VoteCount() != 1 {
		t.Fatal("the valid vote should be counted")
	}
}

func TestBallotExpiry(t *testing.T) {
	voters := genVoters(t, 7)

	proposal := NewElderChurnProposal([]string{"a"}, "sometip")

	ballot, err := NewBallot(proposal, publicSet(voters))
	if err != nil {
		t.Fatal(err)
	}

	if !ballot.Expire() {
		t.Fatal("expiring an open ballot should report true")
	}

	if ballot.State() != Expired {
		t.Fatal("ballot should be Expired")
	}

	err = castVote(t, ballot, voters[0])
	if !common.IsCore(err, common.ExpiredProposal) {
		t.Fatalf("voting on an expired ballot should return ExpiredProposal, got %v", err)
	}
}

func TestBallotExpireAfterAccept(t *testing.T) {
	voters := genVoters(t, 3)

	proposal := NewElderChurnProposal([]string{"a"}, "sometip")

	ballot, err := NewBallot(proposal, publicSet(voters))
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range voters {
		if err := castVote(t, ballot, v); err != nil {
			t.Fatal(err)
		}
	}

	if ballot.State() != Accepted {
		t.Fatal("ballot should be Accepted")
	}

	//a timer firing after quorum must not unseat the decision
	if ballot.Expire() {
		t.Fatal("expiring an accepted ballot should be a no-op")
	}

	if ballot.State() != Accepted {
		t.Fatal("ballot should remain Accepted")
	}
}

func TestProposalHash(t *testing.T) {
	member, err := identity.GenerateFullIdentity(identity.NewSeededRand(1), 0)
	if err != nil {
		t.Fatal(err)
	}

	a := NewAddMemberProposal(&member.NodeIdentity, "tip1")
	b := NewAddMemberProposal(&member.NodeIdentity, "tip1")
	c := NewAddMemberProposal(&member.NodeIdentity, "tip2")

	if a.Hex() != b.Hex() {
		t.Fatal("identical proposals should hash equal")
	}

	if a.Hex() == c.Hex() {
		t.Fatal("proposals against different tips should hash differently")
	}
}
