package routing

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/sectornet/routing/src/identity"
)

const genesisFile = "genesis.json"

type genesisMember struct {
	PubKeyHex string
	Age       uint8
}

// JSONGenesis reads and writes the founding member list from a genesis.json
// file in the base directory. Trust in the founding set is established out of
// band; every founding node must start from the same file.
type JSONGenesis struct {
	l    sync.Mutex
	path string
}

// NewJSONGenesis ...
func NewJSONGenesis(base string) *JSONGenesis {
	return &JSONGenesis{
		path: filepath.Join(base, genesisFile),
	}
}

// Members returns the founding members defined in the file.
func (j *JSONGenesis) Members() ([]*identity.NodeIdentity, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	var records []genesisMember
	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, err
	}

	members := make([]*identity.NodeIdentity, 0, len(records))
	for _, r := range records {
		members = append(members, identity.NewNodeIdentity(r.PubKeyHex, r.Age))
	}

	return members, nil
}

// SetMembers overwrites the file with the given founding members.
func (j *JSONGenesis) SetMembers(members []*identity.NodeIdentity) error {
	j.l.Lock()
	defer j.l.Unlock()

	records := make([]genesisMember, 0, len(members))
	for _, m := range members {
		records = append(records, genesisMember{PubKeyHex: m.PubKeyHex, Age: m.Age})
	}

	buf, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf, 0600)
}
