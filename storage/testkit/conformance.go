package testkit

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/actorbundle/cidutil"
	"xdao.co/actorbundle/storage"
)

// NewStore constructs a fresh, empty Blockstore for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Blockstore

func mustBlock(t *testing.T, codec uint64, data []byte) storage.Block {
	t.Helper()
	b, err := storage.NewBlock(codec, data, cidutil.Addresser{})
	if err != nil {
		t.Fatalf("NewBlock failed: %v", err)
	}
	return b
}

// RunConformance checks the Blockstore contract against newStore.
func RunConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := mustBlock(t, cidutil.CodecRaw, []byte("hello, actor bundle"))

		if err := s.Put(want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(want.CID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.CID.Equals(want.CID) || !bytes.Equal(got.Data, want.Data) {
			t.Fatalf("Get mismatch")
		}
		if err := got.Verify(); err != nil {
			t.Fatalf("Get returned bytes not matching requested CID: %v", err)
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := mustBlock(t, cidutil.CodecRaw, []byte("same bytes"))
		if err := s.Put(b); err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		if err := s.Put(b); err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
	})

	t.Run("PreservesCodec", func(t *testing.T) {
		s := newStore(t)
		b := mustBlock(t, cidutil.CodecDagCBOR, []byte{0x82, 0x01, 0x80})
		if err := s.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(b.CID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.CID.Type() != cidutil.CodecDagCBOR {
			t.Fatalf("codec lost: got 0x%x", got.CID.Type())
		}
	})

	t.Run("RejectCIDMismatch", func(t *testing.T) {
		s := newStore(t)
		good := mustBlock(t, cidutil.CodecRaw, []byte("good"))
		bad := storage.Block{CID: good.CID, Data: []byte("evil")}
		if err := s.Put(bad); !storage.IsIntegrity(err) {
			t.Fatalf("Put mismatched block: got %v want integrity error", err)
		}
		if s.Has(good.CID) {
			t.Fatalf("mismatched block was stored")
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := mustBlock(t, cidutil.CodecRaw, []byte("missing"))
		if s.Has(b.CID) {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := s.Get(b.CID); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
		if err := s.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(b.CID) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		if s.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := s.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})
}
