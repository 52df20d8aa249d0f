package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// NamedStore associates a Blockstore with a stable backend name for reporting.
type NamedStore struct {
	Name  string
	Store Blockstore
}

// ReplicatingStore writes every block to all configured backends.
//
// Reads fall back in order. A block counts as written only when every
// backend accepted it; the first failing backend is named in the error.
type ReplicatingStore struct {
	Backends []NamedStore
}

var _ Blockstore = ReplicatingStore{}

func (r ReplicatingStore) Put(b Block) error {
	if err := b.Verify(); err != nil {
		return err
	}
	if len(r.Backends) == 0 {
		return fmt.Errorf("storage: ReplicatingStore has no backends")
	}
	for _, nb := range r.Backends {
		if nb.Store == nil {
			return fmt.Errorf("storage: nil store for backend %q", nb.Name)
		}
		if err := nb.Store.Put(b); err != nil {
			return fmt.Errorf("storage: backend %q: %w", nb.Name, err)
		}
	}
	return nil
}

func (r ReplicatingStore) Get(id cid.Cid) (Block, error) {
	for _, nb := range r.Backends {
		if nb.Store == nil {
			continue
		}
		b, err := nb.Store.Get(id)
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

func (r ReplicatingStore) Has(id cid.Cid) bool {
	for _, nb := range r.Backends {
		if nb.Store != nil && nb.Store.Has(id) {
			return true
		}
	}
	return false
}

// PutAll writes every block in order, stopping at the first failure.
func PutAll(s Blockstore, blocks []Block) error {
	for _, b := range blocks {
		if err := s.Put(b); err != nil {
			return fmt.Errorf("storage: put %s: %w", b.CID, err)
		}
	}
	return nil
}
