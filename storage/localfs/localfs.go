package localfs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/storage"
)

// Store is a local filesystem-backed block store.
//
// Blocks are stored immutably, one file per CID, sharded by the first two
// characters of the CID string. The CID string carries the codec, so raw
// code blocks and DAG-CBOR manifests share one directory.
type Store struct {
	root string
}

var _ storage.Blockstore = (*Store)(nil)

// New constructs a filesystem store rooted at root. The directory will be created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(b storage.Block) error {
	if err := b.Verify(); err != nil {
		return err
	}

	path := s.pathFor(b.CID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := s.Get(b.CID)
			if rerr != nil {
				// Present but unreadable or corrupted: never overwrite.
				return storage.ErrImmutable
			}
			if !bytes.Equal(existing.Data, b.Data) {
				return storage.ErrImmutable
			}
			return nil
		}
		return err
	}
	defer f.Close()

	if _, err := f.Write(b.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func (s *Store) Get(id cid.Cid) (storage.Block, error) {
	if !id.Defined() {
		return storage.Block{}, storage.ErrInvalidCID
	}
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.Block{}, storage.ErrNotFound
		}
		return storage.Block{}, err
	}
	b := storage.Block{CID: id, Data: data}
	if err := b.Verify(); err != nil {
		return storage.Block{}, err
	}
	return b, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

func (s *Store) pathFor(id cid.Cid) string {
	str := id.String()
	if len(str) < 2 {
		return filepath.Join(s.root, str)
	}
	return filepath.Join(s.root, str[len(str)-2:], str)
}
