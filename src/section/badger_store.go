package section

import (
	"github.com/dgraph-io/badger"
	"github.com/sectornet/routing/src/common"
	"github.com/sectornet/routing/src/identity"
	"github.com/sirupsen/logrus"
)

const (
	sectionKey    = "section"
	sectionSigKey = "section_sig"
)

// BadgerStore implements the Store interface on top of a Badger database. The
// section record lives under a single key; chain blocks are stored
// individually by sequence number so appends do not rewrite history.
type BadgerStore struct {
	db   *badger.DB
	id   *identity.FullIdentity
	path string
}

// NewBadgerStore opens (or creates) a database at path.
func NewBadgerStore(path string, id *identity.FullIdentity) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		db:   handle,
		id:   id,
		path: path,
	}, nil
}

// SaveSection implements the Store interface.
func (s *BadgerStore) SaveSection(sec *Section) error {
	record := newSectionRecord(sec)
	recordBytes, err := record.Marshal()
	if err != nil {
		return err
	}

	sig, err := signRecord(s.id, recordBytes, sec.Chain())
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(sectionKey), recordBytes); err != nil {
			return err
		}

		if err := tx.Set([]byte(sectionSigKey), []byte(sig)); err != nil {
			return err
		}

		for _, block := range sec.Chain().Blocks() {
			blockBytes, err := block.Marshal()
			if err != nil {
				return err
			}
			if err := tx.Set(blockKey(block.Index()), blockBytes); err != nil {
				return err
			}
		}

		return nil
	})
}

// LoadSection implements the Store interface. The chain is fully re-verified
// and the record signature re-checked against the node's key; a broken hash
// link, an unquorate block, or an edited record anywhere makes the load fail
// with InvalidProofChain, and the section is not reconstructed.
func (s *BadgerStore) LoadSection(sizes Sizes, logger *logrus.Entry) (*Section, error) {
	record := new(sectionRecord)
	recordBytes := []byte{}
	sig := ""
	blocks := []*ProofBlock{}

	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(sectionKey))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			recordBytes = append(recordBytes, val...)
			return record.Unmarshal(val)
		}); err != nil {
			return err
		}

		item, err = tx.Get([]byte(sectionSigKey))
		if err != nil {
			return common.NewCoreErr("store", common.InvalidProofChain, sectionSigKey)
		}
		if err := item.Value(func(val []byte) error {
			sig = string(val)
			return nil
		}); err != nil {
			return err
		}

		for i := 0; i < record.BlockCount; i++ {
			item, err := tx.Get(blockKey(i))
			if err != nil {
				return common.NewCoreErr("store", common.InvalidProofChain, string(blockKey(i)))
			}
			block := new(ProofBlock)
			if err := item.Value(func(val []byte) error {
				return block.Unmarshal(val)
			}); err != nil {
				return err
			}
			blocks = append(blocks, block)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	chain, err := NewProofChainFromBlocks(blocks)
	if err != nil {
		return nil, err
	}

	if err := verifyRecord(s.id, recordBytes, chain, sig); err != nil {
		return nil, err
	}

	return rebuildSection(record, chain, sizes, logger)
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
