package delivery

import (
	"reflect"
	"testing"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/vote"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
)

var testSizes = section.Sizes{ElderSize: 7, RecommendedSize: 5, MinSize: 3}

func testSnapshot(t testing.TB, n int) *section.Snapshot {
	founders := []*identity.NodeIdentity{}
	for i := 0; i < n; i++ {
		full, err := identity.GenerateFullIdentity(identity.NewSeededRand(int64(1000+i)), 0)
		if err != nil {
			t.Fatal(err)
		}
		pub := full.NodeIdentity
		founders = append(founders, &pub)
	}

	sec := section.NewSection(xorname.Prefix{}, founders, testSizes, common.NewTestEntry(t, logrus.DebugLevel))

	return sec.Snapshot()
}

func TestGroupSize(t *testing.T) {
	for _, tt := range []struct {
		f, size int
	}{
		{0, 2},
		{1, 5},
		{2, 8},
		{-1, 2}, //negative tolerance is clamped
	} {
		if GroupSize(tt.f) != tt.size {
			t.Fatalf("GroupSize(%d) should be %d, not %d", tt.f, tt.size, GroupSize(tt.f))
		}
	}
}

func TestGroupSizeHonestSupermajority(t *testing.T) {
	//removing f Byzantine members must leave a strict 2/3 supermajority
	for f := 0; f <= 10; f++ {
		g := GroupSize(f)
		if !vote.Quorum(g-f, g) {
			t.Fatalf("GroupSize(%d)=%d does not leave an honest supermajority", f, g)
		}
	}
}

func TestSelectTargets(t *testing.T) {
	snapshot := testSnapshot(t, 12)

	dst := xorname.NewName([]byte("destination"))

	targets := SelectTargets(snapshot, dst, 8)

	if len(targets) != 8 {
		t.Fatalf("8 targets expected, got %d", len(targets))
	}

	//closest first
	for i := 1; i < len(targets); i++ {
		if dst.CmpDistance(targets[i-1].Name, targets[i].Name) == 1 {
			t.Fatalf("target %d is closer to dst than target %d", i, i-1)
		}
	}

	//no excluded member is closer than a selected one
	last := targets[len(targets)-1]
	selected := map[xorname.Name]bool{}
	for _, m := range targets {
		selected[m.Name] = true
	}
	for _, m := range snapshot.Members.Members {
		if selected[m.Name] {
			continue
		}
		if dst.CmpDistance(m.Name, last.Name) == -1 {
			t.Fatalf("excluded member %s is closer to dst than selected %s", m.Name, last.Name)
		}
	}
}

func TestSelectTargetsDeterministic(t *testing.T) {
	snapshot := testSnapshot(t, 12)

	dst := xorname.NewName([]byte("destination"))

	first := SelectTargets(snapshot, dst, 8)
	second := SelectTargets(snapshot, dst, 8)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("target selection should be deterministic")
	}
}

func TestSelectTargetsClamped(t *testing.T) {
	snapshot := testSnapshot(t, 5)

	dst := xorname.NewName([]byte("destination"))

	targets := SelectTargets(snapshot, dst, 50)

	if len(targets) != 5 {
		t.Fatalf("the group should be clamped to the member count, got %d", len(targets))
	}
}

func TestSelectTargetsNegativeGroupSize(t *testing.T) {
	snapshot := testSnapshot(t, 5)

	dst := xorname.NewName([]byte("destination"))

	targets := SelectTargets(snapshot, dst, -1)

	if len(targets) != 0 {
		t.Fatalf("a negative group size should select nobody, got %d", len(targets))
	}
}

func TestSelectTargetsDoesNotMutateSnapshot(t *testing.T) {
	snapshot := testSnapshot(t, 12)

	before := append([]*identity.NodeIdentity{}, snapshot.Members.Members...)

	dst := xorname.NewName([]byte("destination"))
	SelectTargets(snapshot, dst, 8)

	if !reflect.DeepEqual(before, snapshot.Members.Members) {
		t.Fatal("target selection should not reorder the snapshot's members")
	}
}
