package identity

import (
	"crypto/ecdsa"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/crypto"
	"github.com/sectornet/routing/src/crypto/keys"
	"github.com/sectornet/routing/src/xorname"
)

// NodeIdentity is the public face of a node: its public key, the Name derived
// from it, and its age. The age counts the churn events the node has survived
// and only ever increases; it is incremented by the section, not by the node
// itself. A NodeIdentity is immutable; relocation mints a brand new identity
// bound to the old one by a RelocationLink.
type NodeIdentity struct {
	PubKeyHex string
	Name      xorname.Name
	Age       uint8

	id uint32
}

// NewNodeIdentity derives a NodeIdentity from the hex form of an uncompressed
// public key.
func NewNodeIdentity(pubKeyHex string, age uint8) *NodeIdentity {
	id := &NodeIdentity{
		PubKeyHex: pubKeyHex,
		Age:       age,
	}

	pubBytes, err := id.PubKeyBytes()
	if err == nil {
		id.Name = xorname.NewName(pubBytes)
		id.id = common.Hash32(pubBytes)
	}

	return id
}

// PubKeyBytes returns the decoded public key.
func (n *NodeIdentity) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(n.PubKeyHex)
}

// ID returns a compact numeric identifier derived from the public key. It is
// used for map keys and log fields, never for authentication.
func (n *NodeIdentity) ID() uint32 {
	return n.id
}

// WithAge returns a copy of the identity with the given age. The underlying
// key material is unchanged.
func (n *NodeIdentity) WithAge(age uint8) *NodeIdentity {
	res := *n
	res.Age = age
	return &res
}

// Verify checks that sig is a valid signature of data by the holder of the
// identity's private key. Undecodable keys or signatures verify false; they
// are expected from adversarial peers and are not errors.
func (n *NodeIdentity) Verify(data []byte, sig string) bool {
	pubBytes, err := n.PubKeyBytes()
	if err != nil {
		return false
	}

	pub := keys.ToPublicKey(pubBytes)
	if pub == nil {
		return false
	}

	r, s, err := keys.DecodeSignature(sig)
	if err != nil {
		return false
	}

	return keys.Verify(pub, data, r, s)
}

// FullIdentity couples a NodeIdentity with custody of its private key.
type FullIdentity struct {
	NodeIdentity
	key *ecdsa.PrivateKey
}

// NewFullIdentity wraps an existing private key.
func NewFullIdentity(key *ecdsa.PrivateKey, age uint8) *FullIdentity {
	pub := keys.PublicKeyHex(&key.PublicKey)
	return &FullIdentity{
		NodeIdentity: *NewNodeIdentity(pub, age),
		key:          key,
	}
}

// GenerateFullIdentity creates a fresh key pair and the identity derived from
// it. The entropy source is injected so tests can be deterministic.
func GenerateFullIdentity(entropy *Rand, age uint8) (*FullIdentity, error) {
	key, err := keys.GenerateECDSAKeyFrom(entropy.Reader())
	if err != nil {
		return nil, err
	}
	return NewFullIdentity(key, age), nil
}

// Sign signs data with the identity's private key. It does not fail for a held
// key; an error only indicates resource exhaustion in the entropy source.
func (f *FullIdentity) Sign(data []byte) (string, error) {
	r, s, err := keys.Sign(f.key, data)
	if err != nil {
		return "", err
	}
	return keys.EncodeSignature(r, s), nil
}

// Key exposes the underlying private key for key custody operations (keyfile
// persistence).
func (f *FullIdentity) Key() *ecdsa.PrivateKey {
	return f.key
}

// RelocationLink cryptographically binds a relocated node's new identity to
// its previous one. The old key signs the pair of public keys, so a peer that
// trusted the old identity can transfer that trust to the new one, and nobody
// can claim an arbitrary origin for a fresh key.
type RelocationLink struct {
	OldPubKeyHex string
	NewPubKeyHex string
	Signature    string
}

// NewRelocationLink signs the binding between old and the new public key.
func NewRelocationLink(old *FullIdentity, newPubKeyHex string) (RelocationLink, error) {
	sig, err := old.Sign(linkDigest(old.PubKeyHex, newPubKeyHex))
	if err != nil {
		return RelocationLink{}, err
	}
	return RelocationLink{
		OldPubKeyHex: old.PubKeyHex,
		NewPubKeyHex: newPubKeyHex,
		Signature:    sig,
	}, nil
}

// Verify checks the binding signature against the old identity.
func (l RelocationLink) Verify() bool {
	old := NewNodeIdentity(l.OldPubKeyHex, 0)
	return old.Verify(linkDigest(l.OldPubKeyHex, l.NewPubKeyHex), l.Signature)
}

// OldName returns the Name the node held before relocating.
func (l RelocationLink) OldName() xorname.Name {
	return NewNodeIdentity(l.OldPubKeyHex, 0).Name
}

func linkDigest(oldPub, newPub string) []byte {
	return crypto.SimpleHashFromTwoHashes([]byte(oldPub), []byte(newPub))
}
