package section

import (
	"fmt"

	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
	"github.com/sirupsen/logrus"
)

// InmemStore implements the Store interface with plain in-memory copies. It
// backs non-persistent runs and tests; a restart loses everything, which for
// this layer just means rejoining from scratch.
type InmemStore struct {
	id     *identity.FullIdentity
	record *sectionRecord
	sig    string
	blocks [][]byte
}

// NewInmemStore ...
func NewInmemStore(id *identity.FullIdentity) *InmemStore {
	return &InmemStore{id: id}
}

// SaveSection implements the Store interface.
func (s *InmemStore) SaveSection(sec *Section) error {
	record := newSectionRecord(sec)
	recordBytes, err := record.Marshal()
	if err != nil {
		return err
	}

	sig, err := signRecord(s.id, recordBytes, sec.Chain())
	if err != nil {
		return err
	}

	blocks := [][]byte{}
	for _, b := range sec.Chain().Blocks() {
		data, err := b.Marshal()
		if err != nil {
			return err
		}
		blocks = append(blocks, data)
	}

	s.record = record
	s.sig = sig
	s.blocks = blocks

	return nil
}

// LoadSection implements the Store interface. The chain is re-verified and the
// record signature re-checked even though nothing left the process; the
// round-trip is the same code path as the persistent store.
func (s *InmemStore) LoadSection(sizes Sizes, logger *logrus.Entry) (*Section, error) {
	if s.record == nil {
		return nil, fmt.Errorf("no saved section")
	}

	blocks := []*ProofBlock{}
	for _, data := range s.blocks {
		block := new(ProofBlock)
		if err := block.Unmarshal(data); err != nil {
			return nil, common.NewCoreErr("store", common.InvalidProofChain, err.Error())
		}
		blocks = append(blocks, block)
	}

	chain, err := NewProofChainFromBlocks(blocks)
	if err != nil {
		return nil, err
	}

	recordBytes, err := s.record.Marshal()
	if err != nil {
		return nil, err
	}

	if err := verifyRecord(s.id, recordBytes, chain, s.sig); err != nil {
		return nil, err
	}

	return rebuildSection(s.record, chain, sizes, logger)
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
