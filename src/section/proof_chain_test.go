package section

import (
	"testing"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/vote"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
)

// churnedSection builds a section and runs a few accepted changes through it,
// leaving a chain with genesis plus two blocks.
func churnedSection(t testing.TB) (*Section, map[string]*identity.FullIdentity) {
	founders, signers := genFounders(t, 7, 1000, 0)

	sec := NewSection(xorname.Prefix{}, founders, testSizes, common.NewTestEntry(t, logrus.DebugLevel))

	newcomers, _ := genFounders(t, 2, 2000, 0)
	for _, n := range newcomers {
		proposal := vote.NewAddMemberProposal(n, sec.TipHex())
		ballot := acceptProposal(t, sec, proposal, signers)
		if err := sec.ApplyMemberAdded(ballot); err != nil {
			t.Fatal(err)
		}
	}

	return sec, signers
}

func TestChainVerifyIdempotent(t *testing.T) {
	sec, _ := churnedSection(t)

	chain := sec.Chain()

	if chain.Len() != 3 {
		t.Fatalf("chain should have 3 blocks, not %d", chain.Len())
	}

	if err := chain.Verify(); err != nil {
		t.Fatal(err)
	}

	//verifying again must yield the same result
	if err := chain.Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestChainRebuildFromBlocks(t *testing.T) {
	sec, _ := churnedSection(t)

	//serialize and rebuild, as the stores do
	blocks := []*ProofBlock{}
	for _, b := range sec.Chain().Blocks() {
		data, err := b.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		rebuilt := new(ProofBlock)
		if err := rebuilt.Unmarshal(data); err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, rebuilt)
	}

	chain, err := NewProofChainFromBlocks(blocks)
	if err != nil {
		t.Fatal(err)
	}

	if chain.TipHex() != sec.Chain().TipHex() {
		t.Fatal("the rebuilt chain should have the same tip")
	}
}

func TestChainTamperedProposal(t *testing.T) {
	sec, _ := churnedSection(t)

	blocks := []*ProofBlock{}
	for _, b := range sec.Chain().Blocks() {
		data, err := b.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		rebuilt := new(ProofBlock)
		if err := rebuilt.Unmarshal(data); err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, rebuilt)
	}

	//swap the member recorded in block 1: its signatures no longer verify
	blocks[1].Body.Proposal.Member = blocks[2].Body.Proposal.Member

	_, err := NewProofChainFromBlocks(blocks)
	if !common.IsCore(err, common.InvalidProofChain) {
		t.Fatalf("a tampered chain should fail closed, got %v", err)
	}
}

func TestChainBrokenLink(t *testing.T) {
	sec, _ := churnedSection(t)

	blocks := []*ProofBlock{}
	for _, b := range sec.Chain().Blocks() {
		data, err := b.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		rebuilt := new(ProofBlock)
		if err := rebuilt.Unmarshal(data); err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, rebuilt)
	}

	//dropping a middle block breaks the hash link
	tampered := []*ProofBlock{blocks[0], blocks[2]}

	_, err := NewProofChainFromBlocks(tampered)
	if !common.IsCore(err, common.InvalidProofChain) {
		t.Fatalf("a chain with a missing block should fail closed, got %v", err)
	}
}

func TestChainAppendRejectsBadBlock(t *testing.T) {
	sec, _ := churnedSection(t)

	chain := sec.Chain()
	tip := chain.Tip()

	//an unsigned block does not meet quorum against the tip's elders
	bogus := NewProofBlock(
		tip.Index()+1,
		mustHash(tip),
		vote.ProposalBody{Type: vote.ELDER_CHURN, ChainTip: tip.Hex()},
		tip.ElderPubKeys(),
		map[string]string{},
	)

	err := chain.Append(bogus)
	if !common.IsCore(err, common.InvalidProofChain) {
		t.Fatalf("an unsigned block should be rejected, got %v", err)
	}

	if chain.Len() != 3 {
		t.Fatal("a rejected block should not be appended")
	}
}

func TestChainFork(t *testing.T) {
	sec, signers := churnedSection(t)

	fork := sec.Chain().Fork()
	forkLen := fork.Len()

	//advancing the original does not touch the fork
	newcomer, _ := genFounders(t, 1, 5000, 0)
	proposal := vote.NewAddMemberProposal(newcomer[0], sec.TipHex())
	ballot := acceptProposal(t, sec, proposal, signers)
	if err := sec.ApplyMemberAdded(ballot); err != nil {
		t.Fatal(err)
	}

	if fork.Len() != forkLen {
		t.Fatal("the fork should be unaffected by the original's growth")
	}
}
