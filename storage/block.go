package storage

import (
	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/cidutil"
)

// Block is a (CID, bytes) pair. A block is valid when CID is the
// content address of Data under the codec and hash the CID declares.
type Block struct {
	CID  cid.Cid
	Data []byte
}

// NewBlock addresses data under codec and returns the resulting block.
func NewBlock(codec uint64, data []byte, a cidutil.Addresser) (Block, error) {
	id, err := a.Identify(codec, data)
	if err != nil {
		return Block{}, err
	}
	return Block{CID: id, Data: data}, nil
}

// Verify recomputes the block's CID from Data.
func (b Block) Verify() error {
	if !b.CID.Defined() {
		return ErrInvalidCID
	}
	if err := cidutil.Verify(b.CID, b.Data); err != nil {
		return ErrCIDMismatch
	}
	return nil
}

// Blockstore is a minimal content-addressed block store.
//
// Contract:
// - Put MUST be idempotent for identical blocks.
// - Stored blocks MUST be immutable.
// - Put MUST reject blocks whose CID does not match their bytes.
// - Get MUST return ErrNotFound when the CID is absent.
type Blockstore interface {
	Put(b Block) error
	Get(id cid.Cid) (Block, error)
	Has(id cid.Cid) bool
}
