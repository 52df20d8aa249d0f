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

// Writer streams a CARv1 archive. Each Put writes one record; nothing beyond
// the current block is buffered besides the bufio window. Close is the
// commit point: an archive whose Close did not succeed must be discarded.
type Writer struct {
	bw      *bufio.Writer
	written int64
	err     error
	closed  bool
}

// NewWriter writes the header for roots and returns a Writer for the blocks.
func NewWriter(w io.Writer, roots []cid.Cid) (*Writer, error) {
	hdr, err := encodeHeader(Header{Roots: roots, Version: FormatVersion})
	if err != nil {
		return nil, err
	}
	cw := &Writer{bw: bufio.NewWriterSize(w, 64<<10)}
	cw.write(varint.ToUvarint(uint64(len(hdr))))
	cw.write(hdr)
	if cw.err != nil {
		return nil, cw.err
	}
	return cw, nil
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.bw.Write(p)
	w.written += int64(n)
	w.err = err
}

// Put appends one block record.
func (w *Writer) Put(b storage.Block) error {
	if w.closed {
		return errors.New("car: write after close")
	}
	if w.err != nil {
		return w.err
	}
	if !b.CID.Defined() {
		return storage.ErrInvalidCID
	}
	id := b.CID.Bytes()
	size := uint64(len(id)) + uint64(len(b.Data))
	if size > MaxSectionSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrSectionSize, b.CID, size)
	}
	w.write(varint.ToUvarint(size))
	w.write(id)
	w.write(b.Data)
	return w.err
}

// Close flushes buffered output. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}
	w.err = w.bw.Flush()
	return w.err
}

// Written reports bytes accepted so far, including unflushed ones.
func (w *Writer) Written() int64 { return w.written }

// Write emits a complete archive of blocks, in order, under roots.
func Write(dst io.Writer, roots []cid.Cid, blocks []storage.Block) (int64, error) {
	w, err := NewWriter(dst, roots)
	if err != nil {
		return 0, err
	}
	for _, b := range blocks {
		if err := w.Put(b); err != nil {
			return w.Written(), err
		}
	}
	if err := w.Close(); err != nil {
		return w.Written(), err
	}
	return w.Written(), nil
}
