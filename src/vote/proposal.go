package vote

import (
	"bytes"
	"encoding/json"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/crypto"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/xorname"
)

// PayloadType enumerates the membership changes that can be proposed.
type PayloadType uint8

const (
	ADD_MEMBER PayloadType = iota
	REMOVE_MEMBER
	ELDER_CHURN
	SPLIT
	MERGE
)

var payloadTypes = []string{"ADD_MEMBER", "REMOVE_MEMBER", "ELDER_CHURN", "SPLIT", "MERGE"}

// String ...
func (p PayloadType) String() string {
	if int(p) >= len(payloadTypes) {
		return "UNKNOWN"
	}
	return payloadTypes[p]
}

// ProposalBody is the signed content of a proposal. ChainTip pins the proposal
// to the proof-chain block it was created against; a proposal whose tip no
// longer matches the section's current tip is stale and must be re-voted.
type ProposalBody struct {
	Type          PayloadType
	Member        *identity.NodeIdentity `json:",omitempty"`
	Elders        []string               `json:",omitempty"`
	BitIndex      uint                   `json:",omitempty"`
	SiblingPrefix string                 `json:",omitempty"`
	ChainTip      string
}

//json encoding of body
func (b *ProposalBody) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf) //will write to buf

	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

//Hash returns the SHA256 hash of the ProposalBodyify
func (b *ProposalBody) Hash() ([]byte, error) {
	hashBytes, err := b.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}

// Proposal is a proposed membership change identified by the hash of its body.
// Votes are signatures of that hash by eligible voters.
type Proposal struct {
	Body ProposalBody

	hash []byte
	hex  string
}

// NewAddMemberProposal ...
func NewAddMemberProposal(member *identity.NodeIdentity, chainTip string) *Proposal {
	return &Proposal{Body: ProposalBody{Type: ADD_MEMBER, Member: member, ChainTip: chainTip}}
}

// NewRemoveMemberProposal ...
func NewRemoveMemberProposal(member *identity.NodeIdentity, chainTip string) *Proposal {
	return &Proposal{Body: ProposalBody{Type: REMOVE_MEMBER, Member: member, ChainTip: chainTip}}
}

// NewElderChurnProposal takes the public keys of the proposed new elder set.
func NewElderChurnProposal(elderPubKeys []string, chainTip string) *Proposal {
	return &Proposal{Body: ProposalBody{Type: ELDER_CHURN, Elders: elderPubKeys, ChainTip: chainTip}}
}

// NewSplitProposal ...
func NewSplitProposal(bitIndex uint, chainTip string) *Proposal {
	return &Proposal{Body: ProposalBody{Type: SPLIT, BitIndex: bitIndex, ChainTip: chainTip}}
}

// NewMergeProposal ...
func NewMergeProposal(sibling xorname.Prefix, chainTip string) *Proposal {
	return &Proposal{Body: ProposalBody{Type: MERGE, SiblingPrefix: sibling.String(), ChainTip: chainTip}}
}

// Hash returns the SHA256 hash of the proposal body. This is the digest that
// voters sign.
func (p *Proposal) Hash() ([]byte, error) {
	if len(p.hash) == 0 {
		hash, err := p.Body.Hash()
		if err != nil {
			return nil, err
		}
		p.hash = hash
	}
	return p.hash, nil
}

// Hex is the string identifier of the proposal, used to route inbound votes to
// the right ballot.
func (p *Proposal) Hex() string {
	if p.hex == "" {
		hash, _ := p.Hash()
		p.hex = common.EncodeToString(hash)
	}
	return p.hex
}
