package routing

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/config"
	"github.com/sectornet/routing/src/crypto/keys"
	"github.com/sectornet/routing/src/identity"
	"github.com/sectornet/routing/src/node"
	"github.com/sectornet/routing/src/section"
	"github.com/sectornet/routing/src/xorname"
)

// Routing assembles a routing node from configuration: key, founding members,
// section store, and the node itself.
type Routing struct {
	Config *config.Config
	Key    *ecdsa.PrivateKey
	Node   *node.Node
	Store  section.Store
}

// NewRouting ...
func NewRouting(conf *config.Config) *Routing {
	return &Routing{
		Config: conf,
	}
}

// Init wires everything together. The section is loaded from the database
// when one exists, otherwise founded from genesis.json.
func (r *Routing) Init() error {
	logger := r.Config.Logger()

	if err := r.initKey(); err != nil {
		return err
	}

	id := identity.NewFullIdentity(r.Key, 0)

	if err := r.initStore(id); err != nil {
		return err
	}

	sizes := section.Sizes{
		ElderSize:       r.Config.ElderSize,
		RecommendedSize: r.Config.RecommendedSectionSize,
		MinSize:         r.Config.MinSectionSize,
	}

	sec, err := r.Store.LoadSection(sizes, logger)
	if err != nil {
		// A store that holds state but fails verification must not be papered
		// over with a fresh founding; only a genuinely empty store falls back
		// to genesis.
		if common.IsCore(err, common.InvalidProofChain) {
			return err
		}

		logger.WithError(err).Debug("No persisted section, founding from genesis")

		sec, err = r.foundSection(sizes)
		if err != nil {
			return err
		}
	}

	if member, ok := sec.Members().ByPubKey[id.PubKeyHex]; ok {
		id = identity.NewFullIdentity(r.Key, member.Age)
	}

	r.Node = node.NewNode(r.Config, id, sec, r.Store)

	return r.Node.Init()
}

// Run starts the node and blocks until shutdown.
func (r *Routing) Run() {
	r.Node.Run()
}

// Shutdown stops the node and closes the store.
func (r *Routing) Shutdown() {
	if r.Node != nil {
		r.Node.Shutdown()
	}
	if r.Store != nil {
		r.Store.Close()
	}
}

func (r *Routing) initKey() error {
	if r.Key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(r.Config.Keyfile())

	key, err := keyfile.ReadKey()
	if err != nil {
		r.Config.Logger().WithError(err).Warn("Cannot read private key from file")

		key, err = keys.GenerateECDSAKey()
		if err != nil {
			return err
		}

		if err := keyfile.WriteKey(key); err != nil {
			return err
		}

		r.Config.Logger().WithField("pub", keys.PublicKeyHex(&key.PublicKey)).
			Info("Created a new key")
	}

	r.Key = key

	return nil
}

func (r *Routing) initStore(id *identity.FullIdentity) error {
	if r.Store != nil {
		return nil
	}

	if !r.Config.Store {
		r.Store = section.NewInmemStore(id)

		r.Config.Logger().Debug("Created new in-mem store")

		return nil
	}

	store, err := section.NewBadgerStore(r.Config.DatabaseDir, id)
	if err != nil {
		return err
	}

	r.Store = store

	r.Config.Logger().WithField("path", r.Config.DatabaseDir).Debug("Opened badger store")

	return nil
}

// foundSection builds the genesis section from genesis.json. The local node
// must be in the founding set.
func (r *Routing) foundSection(sizes section.Sizes) (*section.Section, error) {
	founding, err := NewJSONGenesis(r.Config.DataDir).Members()
	if err != nil {
		return nil, err
	}

	selfPub := keys.PublicKeyHex(&r.Key.PublicKey)

	found := false
	for _, m := range founding {
		if m.PubKeyHex == selfPub {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("cannot find self pubkey in %s", genesisFile)
	}

	return section.NewSection(
		xorname.Prefix{},
		founding,
		sizes,
		r.Config.Logger(),
	), nil
}
