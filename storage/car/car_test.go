package car_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/storage"
	"xdao.co/actorbundle/storage/car"
)

func block(t *testing.T, codec uint64, s string) storage.Block {
	t.Helper()
	b, err := storage.NewBlock(codec, []byte(s), cidutil.Addresser{})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestWriteRead_RoundTrip(t *testing.T) {
	blocks := []storage.Block{
		block(t, cidutil.CodecRaw, "AAA"),
		block(t, cidutil.CodecRaw, ""),
		block(t, cidutil.CodecDagCBOR, "\x80"),
	}
	root := blocks[2].CID

	var buf bytes.Buffer
	n, err := car.Write(&buf, []cid.Cid{root}, blocks)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("Written %d, buffer %d", n, buf.Len())
	}

	h, got, err := car.ReadAll(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if h.Version != 1 || len(h.Roots) != 1 || !h.Roots[0].Equals(root) {
		t.Fatalf("header: %+v", h)
	}
	if len(got) != len(blocks) {
		t.Fatalf("got %d blocks want %d", len(got), len(blocks))
	}
	for i := range blocks {
		if !got[i].CID.Equals(blocks[i].CID) || !bytes.Equal(got[i].Data, blocks[i].Data) {
			t.Fatalf("block %d mismatch", i)
		}
	}
}

func TestWrite_Deterministic(t *testing.T) {
	blocks := []storage.Block{block(t, cidutil.CodecRaw, "x"), block(t, cidutil.CodecRaw, "y")}
	var a, b bytes.Buffer
	if _, err := car.Write(&a, []cid.Cid{blocks[0].CID}, blocks); err != nil {
		t.Fatal(err)
	}
	if _, err := car.Write(&b, []cid.Cid{blocks[0].CID}, blocks); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("expected identical archives")
	}
}

func TestNewWriter_RequiresRoot(t *testing.T) {
	if _, err := car.NewWriter(io.Discard, nil); err == nil {
		t.Fatalf("expected error for empty roots")
	}
}

func TestReader_RejectsCorruptBlock(t *testing.T) {
	good := block(t, cidutil.CodecRaw, "good")
	var buf bytes.Buffer
	if _, err := car.Write(&buf, []cid.Cid{good.CID}, []storage.Block{good}); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff

	if _, _, err := car.ReadAll(bytes.NewReader(raw)); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("got %v want ErrCIDMismatch", err)
	}
}

func TestReader_Truncated(t *testing.T) {
	good := block(t, cidutil.CodecRaw, "payload")
	var buf bytes.Buffer
	if _, err := car.Write(&buf, []cid.Cid{good.CID}, []storage.Block{good}); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()[:buf.Len()-3]
	if _, _, err := car.ReadAll(bytes.NewReader(raw)); !errors.Is(err, car.ErrTruncated) {
		t.Fatalf("got %v want ErrTruncated", err)
	}
	if _, err := car.NewReader(bytes.NewReader(nil)); !errors.Is(err, car.ErrInvalidHeader) {
		t.Fatalf("empty: got %v", err)
	}
}

func TestReader_RejectsOversizedHeader(t *testing.T) {
	raw := varint.ToUvarint(car.MaxHeaderSize + 1)
	if _, err := car.NewReader(bytes.NewReader(raw)); !errors.Is(err, car.ErrSectionSize) {
		t.Fatalf("got %v want ErrSectionSize", err)
	}
}

func TestImport_IntoStore(t *testing.T) {
	blocks := []storage.Block{block(t, cidutil.CodecRaw, "one"), block(t, cidutil.CodecRaw, "two")}
	var buf bytes.Buffer
	if _, err := car.Write(&buf, []cid.Cid{blocks[1].CID}, blocks); err != nil {
		t.Fatal(err)
	}
	store := storage.NewMemStore()
	h, err := car.Import(bytes.NewReader(buf.Bytes()), store)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !h.Roots[0].Equals(blocks[1].CID) {
		t.Fatalf("root mismatch")
	}
	for _, b := range blocks {
		if !store.Has(b.CID) {
			t.Fatalf("missing %s", b.CID)
		}
	}
}

func TestImport_RejectsDuplicateRecords(t *testing.T) {
	b := block(t, cidutil.CodecRaw, "dup")
	var buf bytes.Buffer
	if _, err := car.Write(&buf, []cid.Cid{b.CID}, []storage.Block{b, b}); err != nil {
		t.Fatal(err)
	}
	if _, err := car.Import(bytes.NewReader(buf.Bytes()), storage.NewMemStore()); err == nil {
		t.Fatalf("expected duplicate entry error")
	}
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("disk full")
	}
	f.after -= len(p)
	return len(p), nil
}

func TestWrite_SurfacesIOError(t *testing.T) {
	big := block(t, cidutil.CodecRaw, string(bytes.Repeat([]byte("z"), 256<<10)))
	_, err := car.Write(&failingWriter{after: 16}, []cid.Cid{big.CID}, []storage.Block{big})
	if err == nil {
		t.Fatalf("expected I/O error")
	}
}

func TestCompression_RoundTrip(t *testing.T) {
	blocks := []storage.Block{block(t, cidutil.CodecRaw, "compressible compressible compressible")}
	for _, c := range []car.Compression{car.CompressionNone, car.CompressionZstd, car.CompressionLZ4} {
		var buf bytes.Buffer
		cw, err := car.CompressWriter(&buf, c)
		if err != nil {
			t.Fatalf("%s: CompressWriter: %v", c, err)
		}
		if _, err := car.Write(cw, []cid.Cid{blocks[0].CID}, blocks); err != nil {
			t.Fatalf("%s: Write: %v", c, err)
		}
		if err := cw.Close(); err != nil {
			t.Fatalf("%s: Close: %v", c, err)
		}
		rc, err := car.DecompressReader(bytes.NewReader(buf.Bytes()), c)
		if err != nil {
			t.Fatalf("%s: DecompressReader: %v", c, err)
		}
		_, got, err := car.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("%s: ReadAll: %v", c, err)
		}
		if len(got) != 1 || !bytes.Equal(got[0].Data, blocks[0].Data) {
			t.Fatalf("%s: payload mismatch", c)
		}
		if car.CompressionForPath("bundle"+c.Extension()) != c {
			t.Fatalf("%s: extension not recognized", c)
		}
	}
}
