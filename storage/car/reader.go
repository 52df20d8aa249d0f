package car

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"xdao.co/actorbundle/storage"
)

// Reader reads a CARv1 archive, verifying every block against its CID.
type Reader struct {
	br     *bufio.Reader
	header Header
}

// NewReader reads and validates the archive header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	hdr, err := readSection(br, MaxHeaderSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty archive", ErrInvalidHeader)
		}
		return nil, err
	}
	h, err := decodeHeader(hdr)
	if err != nil {
		return nil, err
	}
	return &Reader{br: br, header: h}, nil
}

func (r *Reader) Header() Header { return r.header }

// Next returns the next block, or io.EOF after the last one.
func (r *Reader) Next() (storage.Block, error) {
	section, err := readSection(r.br, MaxSectionSize)
	if err != nil {
		return storage.Block{}, err
	}
	n, id, err := cid.CidFromBytes(section)
	if err != nil {
		return storage.Block{}, fmt.Errorf("%w: %v", storage.ErrInvalidCID, err)
	}
	b := storage.Block{CID: id, Data: section[n:]}
	if err := b.Verify(); err != nil {
		return storage.Block{}, err
	}
	return b, nil
}

// readSection reads varint(len) || bytes. A clean EOF before the varint is
// io.EOF; an EOF anywhere else is ErrTruncated.
func readSection(br *bufio.Reader, limit uint64) ([]byte, error) {
	if _, err := br.Peek(1); err != nil {
		return nil, err
	}
	size, err := varint.ReadUvarint(br)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("car: zero-length section")
	}
	if size > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrSectionSize, size, limit)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, ErrTruncated
	}
	return buf, nil
}

// ReadAll reads a whole archive into memory.
func ReadAll(r io.Reader) (Header, []storage.Block, error) {
	cr, err := NewReader(r)
	if err != nil {
		return Header{}, nil, err
	}
	var blocks []storage.Block
	for {
		b, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return cr.Header(), blocks, nil
		}
		if err != nil {
			return Header{}, nil, err
		}
		blocks = append(blocks, b)
	}
}

// Import reads an archive and puts every block into store.
//
// Duplicate records are rejected: a conformant writer emits each CID once.
func Import(r io.Reader, store storage.Blockstore) (Header, error) {
	if store == nil {
		return Header{}, fmt.Errorf("car: nil store")
	}
	cr, err := NewReader(r)
	if err != nil {
		return Header{}, err
	}
	seen := map[cid.Cid]struct{}{}
	for {
		b, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return cr.Header(), nil
		}
		if err != nil {
			return Header{}, err
		}
		if _, ok := seen[b.CID]; ok {
			return Header{}, fmt.Errorf("car: duplicate block entry: %s", b.CID)
		}
		seen[b.CID] = struct{}{}
		if err := store.Put(b); err != nil {
			return Header{}, err
		}
	}
}
