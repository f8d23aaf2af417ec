package section

import (
	"bytes"
	"fmt"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/crypto"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Store persists a section and its proof chain across restarts. Loading must
// fail closed: a chain that does not verify, or a record whose signature does
// not recompute, means the persisted membership view cannot be trusted, and
// the node must not rejoin the network under it. Both stores sign the record
// and the chain tip with the node's own key at save time.
type Store interface {
	SaveSection(s *Section) error
	LoadSection(sizes Sizes, logger *logrus.Entry) (*Section, error)
	Close() error
}

// memberRecord is the serializable form of a member. Name and the compact ID
// are re-derived from the public key at load time.
type memberRecord struct {
	PubKeyHex string
	Age       uint8
}

// sectionRecord is the serializable form of a section, minus the chain blocks
// which are stored individually.
type sectionRecord struct {
	Prefix       string
	Members      []memberRecord
	ElderPubKeys []string
	BlockCount   int
}

func newSectionRecord(s *Section) *sectionRecord {
	members := s.Members()

	rec := &sectionRecord{
		Prefix:       s.Prefix().String(),
		ElderPubKeys: s.Elders().PubKeys(),
		BlockCount:   s.Chain().Len(),
	}

	for _, m := range members.Members {
		rec.Members = append(rec.Members, memberRecord{PubKeyHex: m.PubKeyHex, Age: m.Age})
	}

	return rec
}

func (r *sectionRecord) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (r *sectionRecord) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(r)
}

// recordDigest pins the persisted record and the chain tip under one hash.
// The tip's body hash covers its elder set, and, through the PrevHash links,
// every earlier block body; signing the digest therefore commits to the whole
// persisted membership view.
func recordDigest(recordBytes, tipHash []byte) []byte {
	data := make([]byte, 0, len(recordBytes)+len(tipHash))
	data = append(data, recordBytes...)
	data = append(data, tipHash...)
	return crypto.SHA256(data)
}

// signRecord produces the node's signature over the record and tip at save
// time.
func signRecord(id *identity.FullIdentity, recordBytes []byte, chain *ProofChain) (string, error) {
	tipHash, err := chain.Tip().Hash()
	if err != nil {
		return "", err
	}
	return id.Sign(recordDigest(recordBytes, tipHash))
}

// verifyRecord recomputes the digest from the loaded record and chain and
// checks the stored signature against the node's own key. An offline edit to
// the record or to any block body, the unreferenced tip included, fails here.
func verifyRecord(id *identity.FullIdentity, recordBytes []byte, chain *ProofChain, sig string) error {
	tipHash, err := chain.Tip().Hash()
	if err != nil {
		return err
	}
	if !id.Verify(recordDigest(recordBytes, tipHash), sig) {
		return common.NewCoreErr("store", common.InvalidProofChain, "record signature")
	}
	return nil
}

// rebuildSection reconstructs a Section from its record and verified chain.
// The elder subset must be contained in the member set; persisted state that
// violates the invariant is rejected.
func rebuildSection(rec *sectionRecord, chain *ProofChain, sizes Sizes, logger *logrus.Entry) (*Section, error) {
	prefix, err := xorname.ParsePrefix(recPrefix(rec.Prefix))
	if err != nil {
		return nil, err
	}

	memberList := []*identity.NodeIdentity{}
	for _, m := range rec.Members {
		memberList = append(memberList, identity.NewNodeIdentity(m.PubKeyHex, m.Age))
	}
	members := NewMemberSet(memberList)

	elderList := []*identity.NodeIdentity{}
	for _, pubKey := range rec.ElderPubKeys {
		member, ok := members.ByPubKey[pubKey]
		if !ok {
			return nil, common.NewCoreErr("store", common.NotAMember, pubKey)
		}
		elderList = append(elderList, member)
	}
	elders := NewMemberSet(elderList)

	if !stringSetEqual(chain.Tip().ElderPubKeys(), elders.PubKeys()) {
		return nil, common.NewCoreErr("store", common.InvalidProofChain, "tip elder set mismatch")
	}

	return NewSectionFromState(prefix, members, elders, chain, sizes, logger), nil
}

// recPrefix maps the "-" rendering of the empty prefix back to an empty bit
// string.
func recPrefix(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func blockKey(index int) []byte {
	return []byte(fmt.Sprintf("block_%09d", index))
}
