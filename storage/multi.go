package storage

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// MultiStore provides deterministic, ordered fallback across multiple stores.
//
// Lookup order is the slice order in Stores; callers MUST supply a fixed order.
// A host typically layers a local cache in front of a remote store.
//
// Put is defined to write only to the first store.
type MultiStore struct {
	Stores []Blockstore
}

var _ Blockstore = MultiStore{}

func (m MultiStore) Put(b Block) error {
	if len(m.Stores) == 0 {
		return errors.New("storage: MultiStore has no stores")
	}
	return m.Stores[0].Put(b)
}

func (m MultiStore) Get(id cid.Cid) (Block, error) {
	for _, s := range m.Stores {
		b, err := s.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return Block{}, err
	}
	return Block{}, ErrNotFound
}

func (m MultiStore) Has(id cid.Cid) bool {
	for _, s := range m.Stores {
		if s.Has(id) {
			return true
		}
	}
	return false
}
