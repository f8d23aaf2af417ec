package section

import (
	"bytes"
	"strconv"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/vote"
)

// ProofChain is the hash-linked, signed history of a section's membership
// changes. Blocks are held in an append-only slice indexed by sequence number;
// the backward reference of block i is simply i-1, so there is no pointer
// cycle to manage. The first block is the genesis anchor. Verifying the chain
// means checking, block by block, that the hash links hold and that each
// block's signature set meets quorum against the previous block's elder set.
type ProofChain struct {
	blocks []*ProofBlock
}

// NewProofChain starts a chain from its genesis anchor.
func NewProofChain(genesis *ProofBlock) *ProofChain {
	return &ProofChain{blocks: []*ProofBlock{genesis}}
}

// NewProofChainFromBlocks rebuilds a chain from persisted blocks and verifies
// it. Loading a chain that does not verify fails closed.
func NewProofChainFromBlocks(blocks []*ProofBlock) (*ProofChain, error) {
	if len(blocks) == 0 {
		return nil, common.NewCoreErr("proof_chain", common.InvalidProofChain, "empty")
	}

	chain := &ProofChain{blocks: blocks}
	if err := chain.Verify(); err != nil {
		return nil, err
	}
	return chain, nil
}

// Append validates the block against the current tip and adds it to the
// chain. The checks mirror Verify: sequence number, hash link, signed tip
// reference, and quorum against the tip's elder set.
func (c *ProofChain) Append(block *ProofBlock) error {
	if err := c.validate(block, c.Tip()); err != nil {
		return err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// Verify re-validates the entire chain. It is deterministic and idempotent:
// verifying the same chain twice yields the same result, and mutating any
// block breaks either its own hash link or the signatures over it.
func (c *ProofChain) Verify() error {
	genesis := c.blocks[0]
	if genesis.Index() != 0 || len(genesis.Body.PrevHash) != 0 {
		return common.NewCoreErr("proof_chain", common.InvalidProofChain, "genesis")
	}

	for i := 1; i < len(c.blocks); i++ {
		if err := c.validate(c.blocks[i], c.blocks[i-1]); err != nil {
			return err
		}
	}

	return nil
}

func (c *ProofChain) validate(block, prev *ProofBlock) error {
	key := strconv.Itoa(block.Index())

	if block.Index() != prev.Index()+1 {
		return common.NewCoreErr("proof_chain", common.InvalidProofChain, key)
	}

	prevHash, err := prev.Hash()
	if err != nil {
		return common.NewCoreErr("proof_chain", common.InvalidProofChain, key)
	}

	if !bytes.Equal(block.Body.PrevHash, prevHash) {
		return common.NewCoreErr("proof_chain", common.InvalidProofChain, key)
	}

	// The voters signed the proposal, and the proposal pins the tip it was
	// voted against. Both links must agree.
	if block.Body.Proposal.ChainTip != prev.Hex() {
		return common.NewCoreErr("proof_chain", common.InvalidProofChain, key)
	}

	// Quorum of valid signatures against the previous block's elder set.
	eligible := make(map[string]bool, len(prev.ElderPubKeys()))
	for _, pk := range prev.ElderPubKeys() {
		eligible[pk] = true
	}

	valid := 0
	for pubKey, sig := range block.Signatures {
		if !eligible[pubKey] {
			continue
		}
		if block.VerifySignature(pubKey, sig) {
			valid++
		}
	}

	if !vote.Quorum(valid, len(eligible)) {
		return common.NewCoreErr("proof_chain", common.InvalidProofChain, key)
	}

	return nil
}

// Tip returns the latest block.
func (c *ProofChain) Tip() *ProofBlock {
	return c.blocks[len(c.blocks)-1]
}

// TipHex returns the hex hash of the latest block. Proposals must reference it
// to be applied.
func (c *ProofChain) TipHex() string {
	return c.Tip().Hex()
}

// Len returns the number of blocks, genesis included.
func (c *ProofChain) Len() int {
	return len(c.blocks)
}

// Block returns the block at the given sequence number.
func (c *ProofChain) Block(index int) (*ProofBlock, error) {
	if index < 0 || index >= len(c.blocks) {
		return nil, common.NewCoreErr("proof_chain", common.InvalidProofChain, strconv.Itoa(index))
	}
	return c.blocks[index], nil
}

// Blocks returns the ordered blocks of the chain. The slice is a copy; the
// blocks are shared.
func (c *ProofChain) Blocks() []*ProofBlock {
	res := make([]*ProofBlock, len(c.blocks))
	copy(res, c.blocks)
	return res
}

// Fork returns a new chain sharing this chain's blocks as common ancestry.
// It is used at split time: both children inherit the parent's chain and then
// diverge with their own churn blocks.
func (c *ProofChain) Fork() *ProofChain {
	blocks := make([]*ProofBlock, len(c.blocks))
	copy(blocks, c.blocks)
	return &ProofChain{blocks: blocks}
}
