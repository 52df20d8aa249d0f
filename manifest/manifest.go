package manifest

import (
	"sort"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/storage"
)

// Version is the manifest schema version written into every manifest.
const Version = 1

// Entry binds an actor type to its code CID.
type Entry struct {
	Type actors.Type
	Code cid.Cid
}

// Manifest is a finalized, canonically ordered set of entries. It is
// immutable once returned by Finalize or Decode.
type Manifest struct {
	entries []Entry
}

// Entries returns a copy of the entries in actor-type order.
func (m *Manifest) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

func (m *Manifest) Len() int { return len(m.entries) }

// Lookup returns the code CID for t.
func (m *Manifest) Lookup(t actors.Type) (cid.Cid, bool) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Type >= t })
	if i < len(m.entries) && m.entries[i].Type == t {
		return m.entries[i].Code, true
	}
	return cid.Undef, false
}

// TypeOf returns the actor type whose code is id.
func (m *Manifest) TypeOf(id cid.Cid) (actors.Type, bool) {
	for _, e := range m.entries {
		if e.Code.Equals(id) {
			return e.Type, true
		}
	}
	return 0, false
}

// Block encodes m and addresses it as a DAG-CBOR block.
func (m *Manifest) Block(a cidutil.Addresser) (storage.Block, error) {
	data, err := m.Encode()
	if err != nil {
		return storage.Block{}, err
	}
	return storage.NewBlock(cidutil.CodecDagCBOR, data, a)
}

// Builder accumulates entries for one manifest. A Builder is owned by a
// single build and is not safe for concurrent use.
type Builder struct {
	byType map[actors.Type]cid.Cid
}

func NewBuilder() *Builder {
	return &Builder{byType: map[actors.Type]cid.Cid{}}
}

// Add records that t is implemented by code. Any second Add for t fails
// with *DuplicateTypeError, even when code is the same CID.
func (b *Builder) Add(t actors.Type, code cid.Cid) error {
	if !t.Known() {
		_, err := actors.FromUint64(uint64(t))
		return err
	}
	if !code.Defined() {
		return storage.ErrInvalidCID
	}
	if b.byType == nil {
		b.byType = map[actors.Type]cid.Cid{}
	}
	if existing, ok := b.byType[t]; ok {
		return &DuplicateTypeError{Type: t, Existing: existing, Conflicting: code}
	}
	b.byType[t] = code
	return nil
}

// FinalizeOptions controls completeness checks.
type FinalizeOptions struct {
	// Required lists types that must be present. Nil disables the check,
	// which is how partial and test bundles are built.
	Required []actors.Type
}

// Finalize returns the manifest with entries sorted by actor type.
func (b *Builder) Finalize(opts FinalizeOptions) (*Manifest, error) {
	var missing []actors.Type
	for _, t := range opts.Required {
		if _, ok := b.byType[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &MissingTypeError{Missing: missing}
	}

	entries := make([]Entry, 0, len(b.byType))
	for t, c := range b.byType {
		entries = append(entries, Entry{Type: t, Code: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Type < entries[j].Type })
	return &Manifest{entries: entries}, nil
}
