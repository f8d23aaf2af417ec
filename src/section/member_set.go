package section

import (
	"sort"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/crypto"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/xorname"
)

// MemberSet is an immutable set of node identities, ordered by Name. Deriving
// a new set (WithNewMember, WithRemovedMember) leaves the receiver untouched,
// so snapshots handed to concurrent readers stay valid while the section
// advances.
type MemberSet struct {
	Members  []*identity.NodeIdentity
	ByName   map[xorname.Name]*identity.NodeIdentity
	ByPubKey map[string]*identity.NodeIdentity

	//cached values
	hash          []byte
	hex           string
	superMajority *int
}

// NewMemberSet creates a MemberSet from a list of identities. The list is
// copied and sorted by Name so that equal sets hash equal.
func NewMemberSet(members []*identity.NodeIdentity) *MemberSet {
	sorted := make([]*identity.NodeIdentity, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name.Cmp(sorted[j].Name) < 0
	})

	ms := &MemberSet{
		Members:  sorted,
		ByName:   make(map[xorname.Name]*identity.NodeIdentity),
		ByPubKey: make(map[string]*identity.NodeIdentity),
	}

	for _, m := range sorted {
		ms.ByName[m.Name] = m
		ms.ByPubKey[m.PubKeyHex] = m
	}

	return ms
}

// WithNewMember returns a new MemberSet including the provided identity.
func (ms *MemberSet) WithNewMember(member *identity.NodeIdentity) *MemberSet {
	members := ms.Members

	//don't add it if it already exists
	if _, ok := ms.ByName[member.Name]; !ok {
		members = append(members, member)
	}

	return NewMemberSet(members)
}

// WithRemovedMember returns a new MemberSet excluding the provided identity.
func (ms *MemberSet) WithRemovedMember(member *identity.NodeIdentity) *MemberSet {
	members := []*identity.NodeIdentity{}
	for _, m := range ms.Members {
		if m.Name != member.Name {
			members = append(members, m)
		}
	}
	return NewMemberSet(members)
}

// Contains ...
func (ms *MemberSet) Contains(name xorname.Name) bool {
	_, ok := ms.ByName[name]
	return ok
}

// PubKeys returns the members' public keys in Name order.
func (ms *MemberSet) PubKeys() []string {
	res := []string{}
	for _, m := range ms.Members {
		res = append(res, m.PubKeyHex)
	}
	return res
}

// Names returns the members' Names in order.
func (ms *MemberSet) Names() []xorname.Name {
	res := []xorname.Name{}
	for _, m := range ms.Members {
		res = append(res, m.Name)
	}
	return res
}

// Len returns the number of members in the set.
func (ms *MemberSet) Len() int {
	return len(ms.ByName)
}

// Hash uniquely identifies a MemberSet. It is computed by hashing (SHA256) the
// members' public keys together, one by one, in Name order.
func (ms *MemberSet) Hash() []byte {
	if len(ms.hash) == 0 {
		hash := []byte{}
		for _, m := range ms.Members {
			pk, _ := m.PubKeyBytes()
			hash = crypto.SimpleHashFromTwoHashes(hash, pk)
		}
		ms.hash = hash
	}
	return ms.hash
}

// Hex is the hexadecimal representation of Hash
func (ms *MemberSet) Hex() string {
	if ms.hex == "" {
		ms.hex = common.EncodeToString(ms.Hash())
	}
	return ms.hex
}

// SuperMajority returns the number of members that forms a strong majority
// (+2/3) in the MemberSet.
func (ms *MemberSet) SuperMajority() int {
	if ms.superMajority == nil {
		val := 2*ms.Len()/3 + 1
		ms.superMajority = &val
	}
	return *ms.superMajority
}
