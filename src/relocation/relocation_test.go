package relocation

import (
	"reflect"
	"testing"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/xorname"
	"github.com/sirupsen/logrus"
)

var testSizes = section.Sizes{ElderSize: 7, RecommendedSize: 5, MinSize: 3}

var testConf = Config{AgeThreshold: 5, UnresponsiveThreshold: 5}

func testSnapshot(t testing.TB, n int, age uint8) *section.Snapshot {
	founders := []*identity.NodeIdentity{}
	for i := 0; i < n; i++ {
		full, err := identity.GenerateFullIdentity(identity.NewSeededRand(int64(1000+i)), age)
		if err != nil {
			t.Fatal(err)
		}
		pub := full.NodeIdentity
		founders = append(founders, &pub)
	}

	prefix, _ := xorname.ParsePrefix("0")
	sec := section.NewSection(prefix, founders, testSizes, common.NewTestEntry(t, logrus.DebugLevel))

	return sec.Snapshot()
}

func TestSelectRelocationsByAge(t *testing.T) {
	snapshot := testSnapshot(t, 10, 6) //everyone above the age threshold

	rels := SelectRelocations(snapshot, 1, nil, nil, testConf)

	if len(rels) != 1 {
		t.Fatalf("one member should relocate per trigger, got %d", len(rels))
	}

	details := rels[0]

	if !snapshot.Members.Contains(details.Relocating.Name) {
		t.Fatal("the relocating node should be a member")
	}

	if details.TriggerRound != 1 {
		t.Fatalf("TriggerRound should be 1, not %d", details.TriggerRound)
	}

	if !details.DestinationPrefix.Equal(snapshot.Prefix.Sibling()) {
		t.Fatal("with no known neighbours the sibling should be the destination")
	}
}

func TestSelectRelocationsDeterministic(t *testing.T) {
	snapshot := testSnapshot(t, 10, 6)

	first := SelectRelocations(snapshot, 3, nil, nil, testConf)
	second := SelectRelocations(snapshot, 3, nil, nil, testConf)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("the same snapshot and round should always produce the same decision")
	}
}

func TestSelectRelocationsRoundChangesSeed(t *testing.T) {
	snapshot := testSnapshot(t, 10, 6)

	if TriggerSeed(snapshot.TipHash, 1) == TriggerSeed(snapshot.TipHash, 2) {
		t.Fatal("different rounds should derive different seeds")
	}
}

func TestSelectRelocationsNoCandidates(t *testing.T) {
	snapshot := testSnapshot(t, 10, 0) //everyone young and responsive

	rels := SelectRelocations(snapshot, 1, nil, nil, testConf)

	if rels != nil {
		t.Fatal("no member should relocate without a candidate")
	}
}

func TestSelectRelocationsUnresponsive(t *testing.T) {
	snapshot := testSnapshot(t, 10, 0)

	laggard := snapshot.Members.Members[4]
	missed := map[xorname.Name]int{laggard.Name: 5}

	rels := SelectRelocations(snapshot, 1, missed, nil, testConf)

	if len(rels) != 1 {
		t.Fatalf("the unresponsive member should relocate, got %d candidates", len(rels))
	}

	if rels[0].Relocating.Name != laggard.Name {
		t.Fatal("the unresponsive member should be the one relocating")
	}
}

func TestRelocationDestination(t *testing.T) {
	snapshot := testSnapshot(t, 10, 6)

	small, _ := xorname.ParsePrefix("10")
	big, _ := xorname.ParsePrefix("11")

	counts := map[xorname.Prefix]int{
		snapshot.Prefix.Sibling(): 20,
		small:                     3,
		big:                       15,
	}

	rels := SelectRelocations(snapshot, 1, nil, counts, testConf)

	if len(rels) != 1 {
		t.Fatal("one member should relocate")
	}

	if !rels[0].DestinationPrefix.Equal(small) {
		t.Fatalf("the least populated neighbour should be the destination, got %s",
			rels[0].DestinationPrefix)
	}
}

func TestVerifyProof(t *testing.T) {
	snapshot := testSnapshot(t, 10, 6)

	rels := SelectRelocations(snapshot, 2, nil, nil, testConf)
	if len(rels) != 1 {
		t.Fatal("one member should relocate")
	}

	details := rels[0]

	if !VerifyProof(details, snapshot.TipHash) {
		t.Fatal("the proof should recompute against the same tip")
	}

	otherTip := append([]byte{}, snapshot.TipHash...)
	otherTip[0] ^= 0xff
	if VerifyProof(details, otherTip) {
		t.Fatal("the proof should not recompute against a different tip")
	}

	tamperedRound := *details
	tamperedRound.TriggerRound = 3
	if VerifyProof(&tamperedRound, snapshot.TipHash) {
		t.Fatal("the proof should not recompute for a different round")
	}
}

func TestCheckMember(t *testing.T) {
	snapshot := testSnapshot(t, 10, 0)

	if err := CheckMember(snapshot, snapshot.Members.Members[0].Name); err != nil {
		t.Fatal(err)
	}

	stranger, err := identity.GenerateFullIdentity(identity.NewSeededRand(9000), 0)
	if err != nil {
		t.Fatal(err)
	}

	err = CheckMember(snapshot, stranger.Name)
	if !common.IsCore(err, common.NotAMember) {
		t.Fatalf("a stranger should return NotAMember, got %v", err)
	}
}
