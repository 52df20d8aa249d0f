// Package host is the consumer side of a bundle: what a VM host does with
// an imported archive to find actor code.
package host

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/manifest"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/car"
)

var (
	ErrNoActor        = errors.New("host: actor type not in bundle")
	ErrNetworkVersion = errors.New("host: no bundle for network version")
	ErrDanglingCode   = errors.New("host: manifest references missing code")
)

// Bundle is a decoded manifest bound to the store holding its code.
type Bundle struct {
	Root     cid.Cid
	Manifest *manifest.Manifest
	store    storage.Blockstore
}

// Load fetches and decodes the manifest at root and checks that every
// entry names a raw code block present in store.
func Load(store storage.Blockstore, root cid.Cid) (*Bundle, error) {
	if root.Type() != cidutil.CodecDagCBOR {
		return nil, fmt.Errorf("host: root %s is not dag-cbor", root)
	}
	blk, err := store.Get(root)
	if err != nil {
		return nil, fmt.Errorf("host: manifest %s: %w", root, err)
	}
	if err := blk.Verify(); err != nil {
		return nil, fmt.Errorf("host: manifest %s: %w", root, err)
	}
	m, err := manifest.Decode(blk.Data)
	if err != nil {
		return nil, err
	}
	for _, e := range m.Entries() {
		if e.Code.Type() != cidutil.CodecRaw {
			return nil, fmt.Errorf("host: %s code %s is not raw", e.Type, e.Code)
		}
		if !store.Has(e.Code) {
			return nil, fmt.Errorf("%w: %s %s", ErrDanglingCode, e.Type, e.Code)
		}
	}
	return &Bundle{Root: root, Manifest: m, store: store}, nil
}

// LoadArchive imports a single-root archive into a fresh MemStore and loads it.
func LoadArchive(r io.Reader) (*Bundle, error) {
	store := storage.NewMemStore()
	h, err := car.Import(r, store)
	if err != nil {
		return nil, err
	}
	if len(h.Roots) != 1 {
		return nil, fmt.Errorf("host: expected one root, archive has %d", len(h.Roots))
	}
	return Load(store, h.Roots[0])
}

// Code returns the code CID and bytes for actor type t.
func (b *Bundle) Code(t actors.Type) (cid.Cid, []byte, error) {
	id, ok := b.Manifest.Lookup(t)
	if !ok {
		return cid.Undef, nil, fmt.Errorf("%w: %s", ErrNoActor, t)
	}
	blk, err := b.store.Get(id)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("host: code for %s: %w", t, err)
	}
	if err := blk.Verify(); err != nil {
		return cid.Undef, nil, fmt.Errorf("host: code for %s: %w", t, err)
	}
	return id, blk.Data, nil
}

// Index maps network versions to bundle roots. The zero value is empty
// and ready to use.
type Index struct {
	roots map[uint32]cid.Cid
}

func NewIndex() *Index { return &Index{roots: map[uint32]cid.Cid{}} }

// Add registers root for nv. Re-adding the same root is a no-op; a
// different root for a registered version is an error.
func (x *Index) Add(nv uint32, root cid.Cid) error {
	if !root.Defined() {
		return storage.ErrInvalidCID
	}
	if existing, ok := x.roots[nv]; ok && !existing.Equals(root) {
		return fmt.Errorf("host: network version %d already bound to %s", nv, existing)
	}
	if x.roots == nil {
		x.roots = map[uint32]cid.Cid{}
	}
	x.roots[nv] = root
	return nil
}

// Select returns the root registered for nv.
func (x *Index) Select(nv uint32) (cid.Cid, error) {
	root, ok := x.roots[nv]
	if !ok {
		return cid.Undef, fmt.Errorf("%w: %d", ErrNetworkVersion, nv)
	}
	return root, nil
}

// Versions lists registered network versions in ascending order.
func (x *Index) Versions() []uint32 {
	out := make([]uint32, 0, len(x.roots))
	for nv := range x.roots {
		out = append(out, nv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Open selects the root for nv and loads it from store.
func (x *Index) Open(store storage.Blockstore, nv uint32) (*Bundle, error) {
	root, err := x.Select(nv)
	if err != nil {
		return nil, err
	}
	return Load(store, root)
}
