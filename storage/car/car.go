// Package car reads and writes CARv1 archives.
//
// Layout:
//
//	varint(len(header)) || header
//	varint(len(cid)+len(data)) || cid || data   (repeated)
//
// The header is DAG-CBOR {"roots": [cid, ...], "version": 1}. Readers locate
// blocks by CID, not by position, so block order is a writer concern only.
package car

import (
	"errors"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/codec"
)

// FormatVersion is the only archive version this package reads or writes.
const FormatVersion = 1

const (
	// MaxHeaderSize bounds the header section; a single-root header is ~50 bytes.
	MaxHeaderSize = 32 << 10
	// MaxSectionSize bounds one block record.
	MaxSectionSize = 256 << 20
)

var (
	ErrInvalidHeader = errors.New("car: invalid header")
	ErrSectionSize   = errors.New("car: section exceeds size limit")
	ErrTruncated     = errors.New("car: truncated archive")
)

// Header is the archive header.
type Header struct {
	Roots   []cid.Cid
	Version uint64
}

type wireHeader struct {
	Roots   []codec.Link `cbor:"roots"`
	Version uint64       `cbor:"version"`
}

func encodeHeader(h Header) ([]byte, error) {
	if h.Version != FormatVersion {
		return nil, ErrInvalidHeader
	}
	if len(h.Roots) == 0 {
		return nil, errors.New("car: at least one root is required")
	}
	w := wireHeader{Version: h.Version, Roots: make([]codec.Link, 0, len(h.Roots))}
	for _, r := range h.Roots {
		if !r.Defined() {
			return nil, ErrInvalidHeader
		}
		w.Roots = append(w.Roots, codec.Link{Cid: r})
	}
	return codec.Marshal(w)
}

func decodeHeader(b []byte) (Header, error) {
	var w wireHeader
	if err := codec.Unmarshal(b, &w); err != nil {
		return Header{}, errors.Join(ErrInvalidHeader, err)
	}
	if w.Version != FormatVersion {
		return Header{}, errors.Join(ErrInvalidHeader, errors.New("unsupported version"))
	}
	if len(w.Roots) == 0 {
		return Header{}, errors.Join(ErrInvalidHeader, errors.New("no roots"))
	}
	h := Header{Version: w.Version, Roots: make([]cid.Cid, 0, len(w.Roots))}
	for _, l := range w.Roots {
		h.Roots = append(h.Roots, l.Cid)
	}
	return h, nil
}
