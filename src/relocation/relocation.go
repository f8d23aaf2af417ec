package relocation

import (
	"encoding/binary"
	"sort"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/crypto"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/xorname"
)

// Details describes one decided relocation: which node moves, where to, and
// the proof that ties the decision to section-signed entropy. Any peer holding
// the same proof chain can recompute the proof and reach the same decision, so
// an adversary cannot bias who relocates without breaking the signature
// scheme. Details are created when a trigger fires and consumed when the node
// rejoins under the destination prefix; they are never mutated.
type Details struct {
	Relocating        *identity.NodeIdentity
	DestinationPrefix xorname.Prefix
	TriggerRound      int
	Proof             []byte
}

// Config carries the relocation thresholds from configuration.
type Config struct {
	// AgeThreshold is the age above which a member becomes a candidate.
	AgeThreshold uint8
	// UnresponsiveThreshold is the number of missed votes within the tracking
	// window after which a member is treated as a candidate regardless of age.
	UnresponsiveThreshold int
}

// SelectRelocations decides which members must relocate, given a consistent
// snapshot of the section and the set of sibling/neighbour prefixes with
// their known member counts. The trigger seed is derived from the snapshot's
// latest proof-chain block, so the computation is deterministic and
// reproducible by any peer with the same chain.
//
// missedVotes maps member names to the number of votes they failed to cast
// within the unresponsiveness window; members absent from the map are treated
// as responsive.
func SelectRelocations(
	snapshot *section.Snapshot,
	triggerRound int,
	missedVotes map[xorname.Name]int,
	neighbourCounts map[xorname.Prefix]int,
	conf Config,
) []*Details {
	seed := TriggerSeed(snapshot.TipHash, triggerRound)

	candidates := []*identity.NodeIdentity{}
	for _, m := range snapshot.Members.Members {
		if m.Age > conf.AgeThreshold {
			candidates = append(candidates, m)
			continue
		}
		if conf.UnresponsiveThreshold > 0 && missedVotes[m.Name] >= conf.UnresponsiveThreshold {
			candidates = append(candidates, m)
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	// Deterministic choice among eligible candidates: the one whose name is
	// closest to the seed-derived target. Every peer with the same chain
	// derives the same target, hence the same pick.
	target := seedName(seed)
	sort.Slice(candidates, func(i, j int) bool {
		if c := target.CmpDistance(candidates[i].Name, candidates[j].Name); c != 0 {
			return c == -1
		}
		return candidates[i].Name.Cmp(candidates[j].Name) < 0
	})

	chosen := candidates[0]

	return []*Details{{
		Relocating:        chosen,
		DestinationPrefix: destination(snapshot.Prefix, neighbourCounts),
		TriggerRound:      triggerRound,
		Proof:             RelocationProof(snapshot.TipHash, triggerRound, chosen.Name),
	}}
}

// CheckMember returns NotAMember if the named node is not a member of the
// snapshot's section. Relocating a non-member indicates caller misuse, not
// adversarial input, and must surface loudly.
func CheckMember(snapshot *section.Snapshot, name xorname.Name) error {
	if !snapshot.Members.Contains(name) {
		return common.NewCoreErr("relocation", common.NotAMember, name.String())
	}
	return nil
}

// VerifyProof recomputes a relocation proof against a known chain tip.
func VerifyProof(details *Details, tipHash []byte) bool {
	expected := RelocationProof(tipHash, details.TriggerRound, details.Relocating.Name)
	if len(expected) != len(details.Proof) {
		return false
	}
	for i := range expected {
		if expected[i] != details.Proof[i] {
			return false
		}
	}
	return true
}

// TriggerSeed derives the selection seed from the latest proof-chain block.
func TriggerSeed(tipHash []byte, triggerRound int) uint64 {
	var round [8]byte
	binary.BigEndian.PutUint64(round[:], uint64(triggerRound))
	digest := crypto.SimpleHashFromTwoHashes(tipHash, round[:])
	return binary.BigEndian.Uint64(digest[:8])
}

// RelocationProof binds a relocation decision to the chain tip it was derived
// from.
func RelocationProof(tipHash []byte, triggerRound int, name xorname.Name) []byte {
	var round [8]byte
	binary.BigEndian.PutUint64(round[:], uint64(triggerRound))
	return crypto.SHA256(append(append(append([]byte{}, tipHash...), round[:]...), name[:]...))
}

// destination picks the sibling or neighbouring prefix with the smallest known
// member count, to rebalance load. With no known neighbours the sibling is
// used.
func destination(prefix xorname.Prefix, neighbourCounts map[xorname.Prefix]int) xorname.Prefix {
	best := prefix.Sibling()
	bestCount, ok := neighbourCounts[best]
	if !ok {
		bestCount = int(^uint(0) >> 1)
	}

	ordered := make([]xorname.Prefix, 0, len(neighbourCounts))
	for p := range neighbourCounts {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	for _, p := range ordered {
		if p.Equal(prefix) {
			continue
		}
		if neighbourCounts[p] < bestCount {
			best = p
			bestCount = neighbourCounts[p]
		}
	}

	return best
}

func seedName(seed uint64) xorname.Name {
	var material [8]byte
	binary.BigEndian.PutUint64(material[:], seed)
	return xorname.NewName(material[:])
}
