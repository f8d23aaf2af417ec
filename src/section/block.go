package section

import (
	"bytes"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/crypto"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/vote"
	"github.com/ugorji/go/codec"
)

// BlockBody is the content of one proof-chain block: the accepted proposal,
// the elder set that results from applying it, and the link to the previous
// block. Voters signed the proposal, and the proposal carries the previous
// tip in its ChainTip field, so the backward link is covered by the same
// signatures that authorise the change.
type BlockBody struct {
	Index        int
	PrevHash     []byte
	Proposal     vote.ProposalBody
	ElderPubKeys []string
}

// Marshal produces the canonical json encoding of the body. Canonical encoding
// keeps the hash stable regardless of map iteration order.
func (bb *BlockBody) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(bb); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (bb *BlockBody) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(bb); err != nil {
		return err
	}

	return nil
}

// Hash ...
func (bb *BlockBody) Hash() ([]byte, error) {
	hashBytes, err := bb.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}

// ProofBlock is one accepted membership change in a section's proof chain,
// carrying the quorum of elder signatures that authorised it.
type ProofBlock struct {
	Body       BlockBody
	Signatures map[string]string // [voter pub key hex] => signature

	hash []byte
	hex  string
}

// NewGenesisBlock creates the fixed anchor of a proof chain. It has no
// predecessor and no signatures; trust in the genesis elder set is
// established out of band.
func NewGenesisBlock(elderPubKeys []string) *ProofBlock {
	return &ProofBlock{
		Body: BlockBody{
			Index:        0,
			PrevHash:     []byte{},
			ElderPubKeys: elderPubKeys,
		},
		Signatures: make(map[string]string),
	}
}

// NewProofBlock assembles the block recording an accepted proposal. The
// signatures are the quorum votes collected by the ballot; they sign the
// proposal hash, not the block hash.
func NewProofBlock(index int, prevHash []byte, proposal vote.ProposalBody, elderPubKeys []string, signatures map[string]string) *ProofBlock {
	sigs := make(map[string]string, len(signatures))
	for k, v := range signatures {
		sigs[k] = v
	}

	return &ProofBlock{
		Body: BlockBody{
			Index:        index,
			PrevHash:     prevHash,
			Proposal:     proposal,
			ElderPubKeys: elderPubKeys,
		},
		Signatures: sigs,
	}
}

// Index ...
func (b *ProofBlock) Index() int {
	return b.Body.Index
}

// ElderPubKeys returns the elder set that results from this block.
func (b *ProofBlock) ElderPubKeys() []string {
	return b.Body.ElderPubKeys
}

// ProposalHash returns the digest that the block's signatures attest to.
func (b *ProofBlock) ProposalHash() ([]byte, error) {
	return b.Body.Proposal.Hash()
}

// VerifySignature checks one elder's signature on the block's proposal.
func (b *ProofBlock) VerifySignature(pubKeyHex, signature string) bool {
	digest, err := b.ProposalHash()
	if err != nil {
		return false
	}
	return identity.NewNodeIdentity(pubKeyHex, 0).Verify(digest, signature)
}

// Hash ...
func (b *ProofBlock) Hash() ([]byte, error) {
	if len(b.hash) == 0 {
		hashBytes, err := b.Body.Marshal()
		if err != nil {
			return nil, err
		}
		b.hash = crypto.SHA256(hashBytes)
	}
	return b.hash, nil
}

// Hex ...
func (b *ProofBlock) Hex() string {
	if b.hex == "" {
		hash, _ := b.Hash()
		b.hex = common.EncodeToString(hash)
	}
	return b.hex
}

// Marshal encodes the whole block, signatures included, for storage.
func (b *ProofBlock) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)

	wrapper := struct {
		Body       BlockBody
		Signatures map[string]string
	}{b.Body, b.Signatures}

	if err := enc.Encode(wrapper); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal ...
func (b *ProofBlock) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)

	wrapper := struct {
		Body       BlockBody
		Signatures map[string]string
	}{}

	if err := dec.Decode(&wrapper); err != nil {
		return err
	}

	b.Body = wrapper.Body
	b.Signatures = wrapper.Signatures
	if b.Signatures == nil {
		b.Signatures = make(map[string]string)
	}
	b.hash = nil
	b.hex = ""

	return nil
}
