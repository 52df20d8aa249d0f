package manifest

import (
	"fmt"

	"xdao.co/actorbundle/actors"
	"xdao.co/actorbundle/codec"
)

type wireEntry struct {
	_    struct{} `cbor:",toarray"`
	Code codec.Link
	Type uint64
}

type wireManifest struct {
	_       struct{} `cbor:",toarray"`
	Version uint64
	Entries []wireEntry
}

// Encode returns the canonical DAG-CBOR form of m.
func (m *Manifest) Encode() ([]byte, error) {
	w := wireManifest{Version: Version, Entries: make([]wireEntry, 0, len(m.entries))}
	for _, e := range m.entries {
		w.Entries = append(w.Entries, wireEntry{Code: codec.Link{Cid: e.Code}, Type: uint64(e.Type)})
	}
	b, err := codec.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return b, nil
}

// Decode parses an encoded manifest. Only canonical input is accepted:
// version 1, known actor types, strictly ascending with no duplicates.
func Decode(data []byte) (*Manifest, error) {
	var w wireManifest
	if err := codec.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if w.Version != Version {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrEncoding, w.Version)
	}
	entries := make([]Entry, 0, len(w.Entries))
	for i, we := range w.Entries {
		t, err := actors.FromUint64(we.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrEncoding, i, err)
		}
		if i > 0 && entries[i-1].Type >= t {
			if entries[i-1].Type == t {
				return nil, &DuplicateTypeError{Type: t, Existing: entries[i-1].Code, Conflicting: we.Code.Cid}
			}
			return nil, fmt.Errorf("%w: entries not sorted by actor type at %d", ErrEncoding, i)
		}
		entries = append(entries, Entry{Type: t, Code: we.Code.Cid})
	}
	return &Manifest{entries: entries}, nil
}
