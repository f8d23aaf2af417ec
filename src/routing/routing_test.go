package routing

import (
	"testing"

	"github.com/sectornet/routing/src/config"
	"github.com/sectornet/routing/src/crypto/keys"
	"github.com/sectornet/routing/src/identity"
	"github.com/sirupsen/logrus"
)

func testSetup(t *testing.T, memberCount int) *config.Config {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(t.TempDir())

	founders := []*identity.NodeIdentity{}
	for i := 0; i < memberCount; i++ {
		full, err := identity.GenerateFullIdentity(identity.NewSeededRand(int64(1000+i)), 0)
		if err != nil {
			t.Fatal(err)
		}

		if i == 0 {
			//the first founder is us: persist its key where Init looks
			if err := keys.NewSimpleKeyfile(conf.Keyfile()).WriteKey(full.Key()); err != nil {
				t.Fatal(err)
			}
		}

		pub := full.NodeIdentity
		founders = append(founders, &pub)
	}

	if err := NewJSONGenesis(conf.DataDir).SetMembers(founders); err != nil {
		t.Fatal(err)
	}

	return conf
}

func TestInitFromGenesis(t *testing.T) {
	conf := testSetup(t, 7)

	engine := NewRouting(conf)
	defer engine.Shutdown()

	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}

	sec := engine.Node.Section()

	if sec.Members().Len() != 7 {
		t.Fatalf("the founded section should have 7 members, got %d", sec.Members().Len())
	}

	if sec.Chain().Len() != 1 {
		t.Fatal("the founded section should be at genesis")
	}

	selfPub := keys.PublicKeyHex(&engine.Key.PublicKey)
	if _, ok := sec.Members().ByPubKey[selfPub]; !ok {
		t.Fatal("the local node should be a founding member")
	}
}

func TestInitNotInGenesis(t *testing.T) {
	conf := testSetup(t, 7)

	//overwrite the keyfile with a key that is not in genesis.json
	outsider, err := identity.GenerateFullIdentity(identity.NewSeededRand(9000), 0)
	if err != nil {
		t.Fatal(err)
	}

	engine := NewRouting(conf)
	engine.Key = outsider.Key()
	defer engine.Shutdown()

	if err := engine.Init(); err == nil {
		t.Fatal("initializing outside the founding set should fail")
	}
}

func TestGenesisRoundTrip(t *testing.T) {
	dir := t.TempDir()

	founders := []*identity.NodeIdentity{}
	for i := 0; i < 3; i++ {
		full, err := identity.GenerateFullIdentity(identity.NewSeededRand(int64(i)), uint8(i))
		if err != nil {
			t.Fatal(err)
		}
		pub := full.NodeIdentity
		founders = append(founders, &pub)
	}

	store := NewJSONGenesis(dir)

	if err := store.SetMembers(founders); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Members()
	if err != nil {
		t.Fatal(err)
	}

	if len(loaded) != 3 {
		t.Fatalf("3 members expected, got %d", len(loaded))
	}

	for i, m := range loaded {
		if m.PubKeyHex != founders[i].PubKeyHex {
			t.Fatalf("member %d key should round-trip", i)
		}
		if m.Age != founders[i].Age {
			t.Fatalf("member %d age should round-trip", i)
		}
		if m.Name != founders[i].Name {
			t.Fatal("the Name should be rederived from the key")
		}
	}
}
