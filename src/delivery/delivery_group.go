package delivery

import (
	"sort"

	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/xorname"
)

// GroupSize returns the number of forwarders needed so that, assuming at most
// f Byzantine members end up in the group, the honest remainder still forms a
// strict two-thirds supermajority: with g = 3f+2, the g-f honest members
// satisfy (g-f)*3 > g*2. The tolerance f is an explicit configuration knob;
// the right constant depends on the deployment's threat model, so it is not a
// baked-in ratio.
func GroupSize(f int) int {
	if f < 0 {
		f = 0
	}
	return 3*f + 2
}

// SelectTargets computes the subset of the section's members that must receive
// a message so it keeps progressing towards dst despite Byzantine forwarders:
// the groupSize members closest to dst in XOR distance, closest first, ties
// broken by name order for determinism. If the section has fewer members than
// groupSize the full member set is returned. The function is pure: it reads
// an immutable snapshot, never mutates it, and is safe to call concurrently
// with section churn.
func SelectTargets(snapshot *section.Snapshot, dst xorname.Name, groupSize int) []*identity.NodeIdentity {
	members := snapshot.Members.Members

	targets := make([]*identity.NodeIdentity, len(members))
	copy(targets, members)

	sort.Slice(targets, func(i, j int) bool {
		if c := dst.CmpDistance(targets[i].Name, targets[j].Name); c != 0 {
			return c == -1
		}
		return targets[i].Name.Cmp(targets[j].Name) < 0
	})

	if groupSize > len(targets) {
		groupSize = len(targets)
	}
	if groupSize < 0 {
		groupSize = 0
	}

	return targets[:groupSize]
}
