package storage

import (
	"bytes"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemStore is an in-memory, write-once Blockstore that remembers insertion
// order. One MemStore backs exactly one bundle build.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid]int
	order  []Block
}

var _ Blockstore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{blocks: map[cid.Cid]int{}}
}

// Put inserts b. Re-inserting identical bytes under the same CID is a no-op;
// different bytes under an existing CID return ErrImmutable.
func (m *MemStore) Put(b Block) error {
	if !b.CID.Defined() {
		return ErrInvalidCID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks == nil {
		m.blocks = map[cid.Cid]int{}
	}
	if i, ok := m.blocks[b.CID]; ok {
		if !bytes.Equal(m.order[i].Data, b.Data) {
			return ErrImmutable
		}
		return nil
	}
	if err := b.Verify(); err != nil {
		return err
	}
	data := append([]byte(nil), b.Data...)
	m.blocks[b.CID] = len(m.order)
	m.order = append(m.order, Block{CID: b.CID, Data: data})
	return nil
}

func (m *MemStore) Get(id cid.Cid) (Block, error) {
	if !id.Defined() {
		return Block{}, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.blocks[id]
	if !ok {
		return Block{}, ErrNotFound
	}
	return m.order[i], nil
}

func (m *MemStore) Has(id cid.Cid) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id]
	return ok
}

// All returns the stored blocks in insertion order.
// Callers must not modify the returned Data slices.
func (m *MemStore) All() []Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Block(nil), m.order...)
}

func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
